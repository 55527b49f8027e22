package attr

import (
	"fmt"

	"github.com/cognicore/attrmatch/pkg/attrmatch/internalerr"
)

// WireCandidate is the JSON shape exchanged with a lookup service: a code
// and exactly one value field.
type WireCandidate struct {
	Code         string   `json:"code"`
	NodeID       *int64   `json:"node_id,omitempty"`
	ValueFloat   *float64 `json:"value_float,omitempty"`
	ValueBoolean *bool    `json:"value_boolean,omitempty"`
}

// WireResponse is the lookup service response body.
type WireResponse struct {
	Attributes []WireCandidate `json:"attributes"`
}

// DecodeWireCandidate converts a wire candidate into the tagged form. Zero
// or several value fields is a contract violation.
func DecodeWireCandidate(w WireCandidate) (Candidate, error) {
	var (
		v   Value
		set int
	)
	if w.NodeID != nil {
		v = NodeValue(*w.NodeID)
		set++
	}
	if w.ValueFloat != nil {
		v = FloatValue(*w.ValueFloat)
		set++
	}
	if w.ValueBoolean != nil {
		v = BoolValue(*w.ValueBoolean)
		set++
	}
	if set != 1 {
		return Candidate{}, fmt.Errorf("candidate %q has %d value fields: %w", w.Code, set, internalerr.ErrUnrecognizedCandidate)
	}
	return Candidate{Code: w.Code, Value: v}, nil
}

// Wire converts a candidate to its wire shape.
func (c Candidate) Wire() WireCandidate {
	w := WireCandidate{Code: c.Code}
	switch c.Value.Kind {
	case Boolean:
		b := c.Value.Bool
		w.ValueBoolean = &b
	case Float:
		f := c.Value.Float
		w.ValueFloat = &f
	case NodeID:
		n := c.Value.NodeID
		w.NodeID = &n
	}
	return w
}
