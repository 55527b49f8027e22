package config

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/attrmatch/pkg/attrmatch/attr"
	"github.com/cognicore/attrmatch/pkg/attrmatch/dictionary"
	"github.com/cognicore/attrmatch/pkg/attrmatch/store"
)

// Fixture is a YAML seed for a store: attributes, dictionary rows, and
// the catalog content of one or more runs.
//
//	attributes:
//	  - {id: 1, code: rating, datatype: float, should_extract_values: true}
//	dictionary:
//	  - {id: 10, attribute_id: 4, entity_id: 100, text_value: Napa Valley, attribute_code: region}
//	products:
//	  - {id: 1, source_id: 7, name: Reserve Cabernet}
type Fixture struct {
	Attributes   []attr.Definition   `yaml:"attributes"`
	Dictionary   []dictionary.Row    `yaml:"dictionary"`
	Products     []store.Product     `yaml:"products"`
	Reviews      []store.Review      `yaml:"reviews"`
	Descriptions []store.Description `yaml:"descriptions"`
}

// LoadFixture reads a fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return ParseFixture(data)
}

// ParseFixture decodes fixture YAML.
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	return &f, nil
}

// Apply upserts the fixture into s. Dictionary rows are validated first so
// a bad row leaves the store untouched.
func (f *Fixture) Apply(ctx context.Context, s store.Store) error {
	for _, r := range f.Dictionary {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("dictionary row %d: %w", r.ID, err)
		}
	}

	for _, d := range f.Attributes {
		if err := s.UpsertAttribute(ctx, d); err != nil {
			return fmt.Errorf("upsert attribute %s: %w", d.Code, err)
		}
	}
	for _, r := range f.Dictionary {
		if err := s.UpsertDictionaryRow(ctx, r); err != nil {
			return fmt.Errorf("upsert dictionary row %d: %w", r.ID, err)
		}
	}
	for _, p := range f.Products {
		if err := s.UpsertProduct(ctx, p); err != nil {
			return fmt.Errorf("upsert product %d: %w", p.ID, err)
		}
	}
	for _, r := range f.Reviews {
		if err := s.UpsertReview(ctx, r); err != nil {
			return fmt.Errorf("upsert review %d: %w", r.ID, err)
		}
	}
	for _, d := range f.Descriptions {
		if err := s.UpsertDescription(ctx, d); err != nil {
			return fmt.Errorf("upsert description %d: %w", d.MasterProductID, err)
		}
	}
	return nil
}
