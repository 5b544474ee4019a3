package annotate

import (
	"bytes"
	"fmt"
	"image"
	"log"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
	"gocv.io/x/gocv"
)

// NoTextPlaceholder is the label suggestion returned when recognition yields
// nothing usable.
const NoTextPlaceholder = "no text"

// EAST network geometry: input is a fixed square, output feature maps are
// 1/4 resolution.
const (
	eastInputSize  = 320
	eastOutputCell = 4
)

var eastOutputLayers = []string{
	"feature_fusion/Conv_7/Sigmoid",
	"feature_fusion/concat_3",
}

// Engine bundles text-region detection (EAST via gocv) and text recognition
// (Tesseract). Detection is optional: with no model configured the engine
// still serves recognition.
type Engine struct {
	client *gosseract.Client

	net              gocv.Net
	detectionEnabled bool
	confThreshold    float32
}

// NewEngine creates an OCR engine. An empty model path disables detection.
func NewEngine(eastModelPath, language string) (*Engine, error) {
	client := gosseract.NewClient()
	if language == "" {
		language = "eng"
	}
	if err := client.SetLanguage(language); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR language %q: %w", language, err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}

	e := &Engine{
		client:        client,
		confThreshold: 0.5,
	}

	if eastModelPath == "" {
		log.Println("ocr: no detection model configured, disabling text detection")
		return e, nil
	}

	net := gocv.ReadNet(eastModelPath, "")
	if net.Empty() {
		log.Printf("ocr: ERROR loading EAST model from %s, disabling text detection", eastModelPath)
		return e, nil
	}
	e.net = net
	e.detectionEnabled = true
	log.Printf("ocr: loaded text detection model from %s", eastModelPath)
	return e, nil
}

// Close releases OCR resources.
func (e *Engine) Close() error {
	if e.detectionEnabled {
		e.net.Close()
		e.detectionEnabled = false
	}
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

// DetectionEnabled reports whether a detection model is loaded.
func (e *Engine) DetectionEnabled() bool {
	return e.detectionEnabled
}

// DetectRegions runs text detection over the image at path and returns the
// detected regions as quadrilaterals in original-image pixel coordinates.
func (e *Engine) DetectRegions(imagePath string) ([]Quad, error) {
	if !e.detectionEnabled {
		return nil, fmt.Errorf("text detection is not enabled")
	}

	img := gocv.IMRead(imagePath, gocv.IMReadColor)
	if img.Empty() {
		return nil, fmt.Errorf("failed to read image %s", imagePath)
	}
	defer img.Close()

	origW := img.Cols()
	origH := img.Rows()
	scaleX := float64(origW) / float64(eastInputSize)
	scaleY := float64(origH) / float64(eastInputSize)

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(img, &resized, image.Pt(eastInputSize, eastInputSize), 0, 0, gocv.InterpolationLinear)

	blob := gocv.BlobFromImage(resized, 1.0, image.Pt(eastInputSize, eastInputSize),
		gocv.NewScalar(123.68, 116.78, 103.94, 0), true, false)
	defer blob.Close()

	e.net.SetInput(blob, "")
	outs := e.net.ForwardLayers(eastOutputLayers)
	defer func() {
		for i := range outs {
			outs[i].Close()
		}
	}()
	if len(outs) != 2 {
		return nil, fmt.Errorf("unexpected detection output count %d", len(outs))
	}

	quads, err := decodeEAST(outs[0], outs[1], e.confThreshold, scaleX, scaleY)
	if err != nil {
		return nil, err
	}
	return quads, nil
}

// decodeEAST converts the EAST score and geometry maps into quadrilaterals.
// Geometry channels 0..3 hold distances from the cell to the rotated box's
// top/right/bottom/left edges, channel 4 the rotation angle.
func decodeEAST(scores, geometry gocv.Mat, confThreshold float32, scaleX, scaleY float64) ([]Quad, error) {
	sizes := scores.Size()
	if len(sizes) != 4 {
		return nil, fmt.Errorf("unexpected score map shape %v", sizes)
	}
	height := sizes[2]
	width := sizes[3]
	plane := height * width

	scoreData, err := scores.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read score map: %w", err)
	}
	geoData, err := geometry.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read geometry map: %w", err)
	}

	var quads []Quad
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			idx := y*width + x
			if scoreData[idx] < confThreshold {
				continue
			}

			top := float64(geoData[0*plane+idx])
			right := float64(geoData[1*plane+idx])
			bottom := float64(geoData[2*plane+idx])
			left := float64(geoData[3*plane+idx])
			angle := float64(geoData[4*plane+idx])

			cosA := math.Cos(angle)
			sinA := math.Sin(angle)
			boxH := top + bottom
			boxW := right + left

			offsetX := float64(x*eastOutputCell) + cosA*right + sinA*bottom
			offsetY := float64(y*eastOutputCell) - sinA*right + cosA*bottom

			// corners of the rotated rectangle, later reduced to an
			// axis-aligned box by Quad.Bounds
			p2 := Point{X: offsetX, Y: offsetY}
			p1 := Point{X: offsetX - sinA*boxH, Y: offsetY - cosA*boxH}
			p3 := Point{X: offsetX - cosA*boxW, Y: offsetY + sinA*boxW}
			p0 := Point{X: p1.X + p3.X - p2.X, Y: p1.Y + p3.Y - p2.Y}

			quad := Quad{p0, p1, p2, p3}
			for i := range quad {
				quad[i].X *= scaleX
				quad[i].Y *= scaleY
			}
			quads = append(quads, quad)
		}
	}
	return quads, nil
}

// RecognizeRegion crops the box from the image, fits it to the recognition
// input size and runs text recognition, returning candidate strings in
// order. An empty slice means nothing was recognized.
func (e *Engine) RecognizeRegion(img image.Image, box BBox) ([]string, error) {
	cropped, err := CropRegion(img, box)
	if err != nil {
		return nil, err
	}
	prepared := PadToRecognitionSize(cropped)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, prepared, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode region: %w", err)
	}
	if err := e.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to set region image: %w", err)
	}

	text, err := e.client.Text()
	if err != nil {
		return nil, fmt.Errorf("recognition failed: %w", err)
	}

	var candidates []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			candidates = append(candidates, line)
		}
	}
	return candidates, nil
}

// SuggestLabels returns label candidates for a selected box. Recognition
// failures and empty results yield the placeholder instead of an error so a
// save never fails on OCR.
func (e *Engine) SuggestLabels(img image.Image, box BBox) []string {
	candidates, err := e.RecognizeRegion(img, box)
	if err != nil {
		log.Printf("ocr: recognition failed, substituting placeholder: %v", err)
		return []string{NoTextPlaceholder}
	}
	if len(candidates) == 0 {
		return []string{NoTextPlaceholder}
	}
	return candidates
}
