package annotate

import (
	"errors"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Recognition input size the recognizer was trained on.
const (
	RecognitionWidth  = 320
	RecognitionHeight = 48
)

// ErrInvalidRegion is returned when a box is empty after clamping to the
// image bounds.
var ErrInvalidRegion = errors.New("invalid region bounds")

// ClampToImage clamps a box to the image dimensions and rejects regions that
// end up empty or fully out of bounds.
func ClampToImage(b BBox, imgWidth, imgHeight int) (image.Rectangle, error) {
	x1 := int(b.X)
	y1 := int(b.Y)
	x2 := int(b.X + b.Width)
	y2 := int(b.Y + b.Height)

	if x1 < 0 {
		x1 = 0
	}
	if y1 < 0 {
		y1 = 0
	}
	if x2 > imgWidth {
		x2 = imgWidth
	}
	if y2 > imgHeight {
		y2 = imgHeight
	}

	if x1 >= x2 || y1 >= y2 || x1 >= imgWidth || y1 >= imgHeight {
		return image.Rectangle{}, ErrInvalidRegion
	}
	return image.Rect(x1, y1, x2, y2), nil
}

// CropRegion clamps the box to the image and returns the cropped region.
func CropRegion(img image.Image, b BBox) (image.Image, error) {
	bounds := img.Bounds()
	rect, err := ClampToImage(b, bounds.Dx(), bounds.Dy())
	if err != nil {
		return nil, err
	}
	return imaging.Crop(img, rect), nil
}

// PadToRecognitionSize fits a crop into the fixed recognition input size,
// preserving aspect ratio and zero-padding the remainder. Crops are scaled to
// the full height and anchored left; very wide crops are scaled to the full
// width instead and centered vertically.
func PadToRecognitionSize(img image.Image) *image.NRGBA {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	canvas := imaging.New(RecognitionWidth, RecognitionHeight, color.NRGBA{})
	if w == 0 || h == 0 {
		return canvas
	}

	ratio := float64(w) / float64(h)
	if int(RecognitionHeight*ratio) <= RecognitionWidth {
		resizedW := int(RecognitionHeight * ratio)
		if resizedW < 1 {
			resizedW = 1
		}
		resized := imaging.Resize(img, resizedW, RecognitionHeight, imaging.Linear)
		return imaging.Paste(canvas, resized, image.Pt(0, 0))
	}

	resizedH := int(RecognitionWidth / ratio)
	if resizedH < 1 {
		resizedH = 1
	}
	resized := imaging.Resize(img, RecognitionWidth, resizedH, imaging.Linear)
	padTop := (RecognitionHeight - resizedH) / 2
	return imaging.Paste(canvas, resized, image.Pt(0, padTop))
}
