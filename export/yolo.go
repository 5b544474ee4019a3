package export

import (
	"fmt"
	"strings"

	"github.com/easylabel/easylabel-backend/annotate"
)

// YOLOContent renders annotations for one image in YOLO format: one line per
// box, "label cx cy w h" with coordinates normalized to the image dimensions.
// An image with no annotations produces an empty file.
func YOLOContent(imgWidth, imgHeight int, annotations []annotate.Annotation) (string, error) {
	if imgWidth <= 0 || imgHeight <= 0 {
		return "", fmt.Errorf("invalid image dimensions %dx%d", imgWidth, imgHeight)
	}

	var sb strings.Builder
	fw := float64(imgWidth)
	fh := float64(imgHeight)
	for _, a := range annotations {
		label := a.Label
		if label == "" {
			label = "unlabeled"
		}
		cx := (a.BBox.X + a.BBox.Width/2) / fw
		cy := (a.BBox.Y + a.BBox.Height/2) / fh
		w := a.BBox.Width / fw
		h := a.BBox.Height / fh
		fmt.Fprintf(&sb, "%s %.6f %.6f %.6f %.6f\n", label, cx, cy, w, h)
	}
	return sb.String(), nil
}
