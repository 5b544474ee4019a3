package annotate

import (
	"math"

	"github.com/easylabel/easylabel-backend/models"
)

// BBox is an axis-aligned rectangle in original-image pixel coordinates.
type BBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Annotation is one in-memory labeled box. IDs are sequential within a set
// and regenerated on every replace; only label+bbox content is stable for
// external consumers.
type Annotation struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
	BBox  BBox   `json:"bbox"`
}

// Point is a 2D pixel coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Quad is a detected (possibly rotated) text region.
type Quad [4]Point

// Bounds computes the axis-aligned bounding rectangle of the quadrilateral
// via min/max of its four corner points.
func (q Quad) Bounds() BBox {
	minX, minY := q[0].X, q[0].Y
	maxX, maxY := q[0].X, q[0].Y
	for _, p := range q[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return BBox{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Set is the in-memory annotation list for the image being edited. It
// reconciles persisted rows, user edits, and OCR-detected regions before the
// set is written back as a whole.
type Set struct {
	items []Annotation
}

// NewSet builds a set from items, renumbering ids 1..N in order received
func NewSet(items []Annotation) *Set {
	s := &Set{}
	s.Replace(items)
	return s
}

// SetFromModels builds a set from persisted annotation rows
func SetFromModels(rows []models.Annotation) *Set {
	items := make([]Annotation, len(rows))
	for i, row := range rows {
		items[i] = Annotation{
			Label: row.Label,
			BBox:  BBox{X: row.X, Y: row.Y, Width: row.Width, Height: row.Height},
		}
	}
	return NewSet(items)
}

// Replace treats the incoming list as the authoritative full set of manual
// edits: the entire in-memory set is swapped out and ids regenerated 1..N.
func (s *Set) Replace(items []Annotation) {
	s.items = make([]Annotation, len(items))
	for i, item := range items {
		item.ID = i + 1
		s.items[i] = item
	}
}

// Items returns a copy of the current set
func (s *Set) Items() []Annotation {
	out := make([]Annotation, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of annotations in the set
func (s *Set) Len() int {
	return len(s.items)
}

// Contains reports whether a box with exactly these [x,y,w,h] values is
// already present. Dedup is an exact tuple match, deliberately not IoU-based.
func (s *Set) Contains(b BBox) bool {
	for _, item := range s.items {
		if item.BBox == b {
			return true
		}
	}
	return false
}

// AppendDetections converts each detected quadrilateral to its bounding
// rectangle and appends an unlabeled annotation for every rectangle not
// already in the set. Returns the number appended. Running detection twice
// on an unchanged image adds nothing the second time.
func (s *Set) AppendDetections(quads []Quad) int {
	added := 0
	for _, q := range quads {
		box := q.Bounds()
		if s.Contains(box) {
			continue
		}
		s.items = append(s.items, Annotation{
			ID:    len(s.items) + 1,
			Label: "",
			BBox:  box,
		})
		added++
	}
	return added
}

// ToModels converts the set into persistence rows for an image
func (s *Set) ToModels(infoID uint) []models.Annotation {
	rows := make([]models.Annotation, len(s.items))
	for i, item := range s.items {
		rows[i] = models.Annotation{
			InfoID: infoID,
			Label:  item.Label,
			X:      item.BBox.X,
			Y:      item.BBox.Y,
			Width:  item.BBox.Width,
			Height: item.BBox.Height,
		}
	}
	return rows
}
