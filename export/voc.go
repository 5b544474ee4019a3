package export

import (
	"encoding/xml"
	"fmt"
	"math"

	"github.com/easylabel/easylabel-backend/annotate"
)

type vocBndBox struct {
	XMin int `xml:"xmin"`
	YMin int `xml:"ymin"`
	XMax int `xml:"xmax"`
	YMax int `xml:"ymax"`
}

type vocObject struct {
	Name      string    `xml:"name"`
	Pose      string    `xml:"pose"`
	Truncated int       `xml:"truncated"`
	Difficult int       `xml:"difficult"`
	BndBox    vocBndBox `xml:"bndbox"`
}

type vocSize struct {
	Width  int `xml:"width"`
	Height int `xml:"height"`
	Depth  int `xml:"depth"`
}

type vocAnnotation struct {
	XMLName  xml.Name    `xml:"annotation"`
	Folder   string      `xml:"folder"`
	Filename string      `xml:"filename"`
	Size     vocSize     `xml:"size"`
	Objects  []vocObject `xml:"object"`
}

// VOCContent renders annotations for one image as a Pascal VOC XML document.
// Pixel coordinates are rounded to integers with xmax = x + width and
// ymax = y + height.
func VOCContent(filename string, imgWidth, imgHeight int, annotations []annotate.Annotation) (string, error) {
	if imgWidth <= 0 || imgHeight <= 0 {
		return "", fmt.Errorf("invalid image dimensions %dx%d", imgWidth, imgHeight)
	}

	doc := vocAnnotation{
		Folder:   "images",
		Filename: filename,
		Size:     vocSize{Width: imgWidth, Height: imgHeight, Depth: 3},
	}
	for _, a := range annotations {
		label := a.Label
		if label == "" {
			label = "unlabeled"
		}
		doc.Objects = append(doc.Objects, vocObject{
			Name: label,
			Pose: "Unspecified",
			BndBox: vocBndBox{
				XMin: int(math.Round(a.BBox.X)),
				YMin: int(math.Round(a.BBox.Y)),
				XMax: int(math.Round(a.BBox.X + a.BBox.Width)),
				YMax: int(math.Round(a.BBox.Y + a.BBox.Height)),
			},
		})
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal VOC annotation for '%s': %w", filename, err)
	}
	return string(out) + "\n", nil
}
