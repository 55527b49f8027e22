// Package attr defines domain attributes, the tagged candidate value union
// produced by extractors, and the attribute-value records written to storage.
package attr

import (
	"fmt"
	"strconv"

	"github.com/cognicore/attrmatch/pkg/attrmatch/internalerr"
)

// Datatype is the declared type of a domain attribute value.
type Datatype string

const (
	Boolean Datatype = "boolean"
	Float   Datatype = "float"
	NodeID  Datatype = "node_id"
)

// Valid reports whether d is one of the known datatypes.
func (d Datatype) Valid() bool {
	switch d {
	case Boolean, Float, NodeID:
		return true
	}
	return false
}

// Definition describes one domain attribute and how it may be extracted.
type Definition struct {
	ID       int64    `json:"id" yaml:"id"`
	Code     string   `json:"code" yaml:"code"`
	Datatype Datatype `json:"datatype" yaml:"datatype"`

	// ShouldExtractValues makes the attribute eligible for review and
	// description sentences; ShouldExtractFromName for product names.
	ShouldExtractValues   bool `json:"should_extract_values" yaml:"should_extract_values"`
	ShouldExtractFromName bool `json:"should_extract_from_name" yaml:"should_extract_from_name"`

	RegexPatterns []string `json:"regex_patterns,omitempty" yaml:"regex_patterns,omitempty"`
}

// Value is a tagged union over the supported datatypes. Kind is mandatory;
// only the field matching Kind is meaningful.
type Value struct {
	Kind   Datatype
	Bool   bool
	Float  float64
	NodeID int64
}

// BoolValue returns a boolean value.
func BoolValue(b bool) Value { return Value{Kind: Boolean, Bool: b} }

// FloatValue returns a float value.
func FloatValue(f float64) Value { return Value{Kind: Float, Float: f} }

// NodeValue returns a node id value.
func NodeValue(id int64) Value { return Value{Kind: NodeID, NodeID: id} }

// String renders the value for keys and logs.
func (v Value) String() string {
	switch v.Kind {
	case Boolean:
		return strconv.FormatBool(v.Bool)
	case Float:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case NodeID:
		return strconv.FormatInt(v.NodeID, 10)
	}
	return "<invalid>"
}

// Candidate is an attribute match before it is bound to a product.
type Candidate struct {
	Code  string
	Value Value

	// EntityID is the dictionary entity behind a lookup candidate, zero for
	// regex candidates. It does not take part in deduplication.
	EntityID int64
}

// Key is the semantic identity of a candidate: code, datatype and value.
func (c Candidate) Key() string {
	return c.Code + "|" + string(c.Value.Kind) + "|" + c.Value.String()
}

// Dedupe drops candidates whose Key was already seen, keeping first
// occurrences in order.
func Dedupe(cands []Candidate) []Candidate {
	seen := make(map[string]struct{}, len(cands))
	out := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		k := c.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Record is one attribute value stored against a master product. Exactly
// one value field is set, selected by Datatype.
type Record struct {
	SequenceID      int64    `json:"sequence_id"`
	SourceID        int64    `json:"source_id"`
	MasterProductID int64    `json:"master_product_id"`
	AttributeID     int64    `json:"attribute_id"`
	Datatype        Datatype `json:"datatype"`
	ValueBoolean    *bool    `json:"value_boolean,omitempty"`
	ValueFloat      *float64 `json:"value_float,omitempty"`
	ValueNodeID     *int64   `json:"value_node_id,omitempty"`
}

// NewRecord binds a value to a product and attribute. A value without a
// recognized kind is rejected with ErrUnrecognizedCandidate.
func NewRecord(sourceID, productID, attributeID int64, v Value) (Record, error) {
	r := Record{
		SourceID:        sourceID,
		MasterProductID: productID,
		AttributeID:     attributeID,
		Datatype:        v.Kind,
	}
	switch v.Kind {
	case Boolean:
		b := v.Bool
		r.ValueBoolean = &b
	case Float:
		f := v.Float
		r.ValueFloat = &f
	case NodeID:
		n := v.NodeID
		r.ValueNodeID = &n
	default:
		return Record{}, fmt.Errorf("value kind %q: %w", v.Kind, internalerr.ErrUnrecognizedCandidate)
	}
	return r, nil
}

// Value returns the populated value of a record.
func (r Record) Value() (Value, error) {
	switch {
	case r.Datatype == Boolean && r.ValueBoolean != nil:
		return BoolValue(*r.ValueBoolean), nil
	case r.Datatype == Float && r.ValueFloat != nil:
		return FloatValue(*r.ValueFloat), nil
	case r.Datatype == NodeID && r.ValueNodeID != nil:
		return NodeValue(*r.ValueNodeID), nil
	}
	return Value{}, fmt.Errorf("record datatype %q: %w", r.Datatype, internalerr.ErrUnrecognizedCandidate)
}
