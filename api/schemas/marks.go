// api/schemas/marks.go
package schemas

// BoundingBox is an element's rendered rectangle in document coordinates.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// MarkedElement is one labeled interactive element. Labels are dense
// integers 0..N-1 assigned by a single deterministic sort over the current
// full-document interactive set; any navigation or significant DOM change
// invalidates them. Stale labels fail closed: clicking a missing label is
// an error, never a silent no-op.
type MarkedElement struct {
	Label       int         `json:"label"`
	Selector    string      `json:"selector"`
	TagName     string      `json:"tagName"`
	Type        string      `json:"type,omitempty"`
	Text        string      `json:"text"`
	Href        string      `json:"href,omitempty"`
	BoundingBox BoundingBox `json:"boundingBox"`
}
