package store

import (
	"context"

	"github.com/cognicore/attrmatch/pkg/attrmatch/attr"
	"github.com/cognicore/attrmatch/pkg/attrmatch/dictionary"
)

// Store is the persistence collaborator of the build and extraction
// pipelines.
type Store interface {
	Close() error

	DictionarySource
	AttributeSource
	Catalog
	DescriptionSource
	RecordSink

	// Seeding, used by imports and tests
	UpsertAttribute(ctx context.Context, d attr.Definition) error
	UpsertDictionaryRow(ctx context.Context, r dictionary.Row) error
	UpsertProduct(ctx context.Context, p Product) error
	UpsertReview(ctx context.Context, r Review) error
	UpsertDescription(ctx context.Context, d Description) error

	// AttributeValues returns stored records for a source and sequence,
	// ordered by product then attribute.
	AttributeValues(ctx context.Context, sourceID, sequenceID int64) ([]attr.Record, error)
}

// DictionarySource provides the raw rows of a dictionary build.
type DictionarySource interface {
	DictionaryRows(ctx context.Context) ([]dictionary.Row, error)
}

// AttributeSource provides the domain attribute table.
type AttributeSource interface {
	Attributes(ctx context.Context) ([]attr.Definition, error)
}

// Catalog provides products and reviews in scope for a run.
type Catalog interface {
	Products(ctx context.Context, sourceID int64) ([]Product, error)
	Reviews(ctx context.Context, sourceID, sequenceID int64) ([]Review, error)
}

// DescriptionSource fetches every description of a run in one call.
type DescriptionSource interface {
	DescriptionContents(ctx context.Context, sourceID, sequenceID int64) (map[int64]string, error)
}

// RecordSink persists attribute-value records. BulkUpsert must be atomic
// and idempotent: retrying a batch never duplicates rows.
type RecordSink interface {
	BulkUpsert(ctx context.Context, records []attr.Record) error
}

// Product is a master product in scope for a source.
type Product struct {
	ID       int64  `yaml:"id"`
	SourceID int64  `yaml:"source_id"`
	Name     string `yaml:"name"`
}

// Review is scraped review content for a master product.
type Review struct {
	ID              int64    `yaml:"id"`
	SourceID        int64    `yaml:"source_id"`
	SequenceID      int64    `yaml:"sequence_id"`
	MasterProductID int64    `yaml:"master_product_id"`
	Score           *float64 `yaml:"score"` // nil when the review carries no score
	Content         string   `yaml:"content"`
}

// Description is scraped description text for a master product.
type Description struct {
	SourceID        int64  `yaml:"source_id"`
	SequenceID      int64  `yaml:"sequence_id"`
	MasterProductID int64  `yaml:"master_product_id"`
	Content         string `yaml:"content"`
}

// ValueKey renders the value of a record for uniqueness constraints: the
// same product, attribute and value within a sequence is stored once.
func ValueKey(r attr.Record) (string, error) {
	v, err := r.Value()
	if err != nil {
		return "", err
	}
	return string(v.Kind) + ":" + v.String(), nil
}
