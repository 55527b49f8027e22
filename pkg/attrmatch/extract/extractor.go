// Package extract runs attribute extraction over the products of one
// source and sequence: review ratings, review and product-name sentences,
// then product descriptions in a second pass.
package extract

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/cognicore/attrmatch/pkg/attrmatch/attr"
	"github.com/cognicore/attrmatch/pkg/attrmatch/batch"
	"github.com/cognicore/attrmatch/pkg/attrmatch/internalerr"
	"github.com/cognicore/attrmatch/pkg/attrmatch/store"
	"github.com/cognicore/attrmatch/pkg/attrmatch/textclean"
)

// DefaultRatingCode is the attribute code average review scores are stored under.
const DefaultRatingCode = "rating"

// Lookuper is the dictionary lookup collaborator. It receives normalized
// sentences.
type Lookuper interface {
	Lookup(ctx context.Context, sentence string) ([]attr.Candidate, error)
}

// Options scopes and tunes a run.
type Options struct {
	SourceID   int64
	SequenceID int64
	RatingCode string

	// DebugProductFilter restricts the run to products whose name contains it.
	DebugProductFilter string

	BatchSize int
	RunID     string
	Logger    zerolog.Logger

	// Progress is called after each product of each pass. RunChunks calls
	// it from several goroutines, serialized.
	Progress ProgressFunc
}

// Pass names a phase of ProcessAll.
type Pass string

const (
	PassReviews      Pass = "reviews"
	PassDescriptions Pass = "descriptions"
)

// ProgressFunc reports done of total products for a pass.
type ProgressFunc func(pass Pass, done, total int)

// Deps are the collaborators of a run.
type Deps struct {
	Attributes   store.AttributeSource
	Catalog      store.Catalog
	Descriptions store.DescriptionSource
	Sink         batch.Sink
	Lookup       Lookuper
	Tokenizer    *textclean.Tokenizer
}

func (d Deps) validate() error {
	switch {
	case d.Attributes == nil:
		return fmt.Errorf("attribute source: %w", internalerr.ErrInvalidConfig)
	case d.Catalog == nil:
		return fmt.Errorf("catalog: %w", internalerr.ErrInvalidConfig)
	case d.Descriptions == nil:
		return fmt.Errorf("description source: %w", internalerr.ErrInvalidConfig)
	case d.Sink == nil:
		return fmt.Errorf("record sink: %w", internalerr.ErrInvalidConfig)
	case d.Lookup == nil:
		return fmt.Errorf("lookup: %w", internalerr.ErrInvalidConfig)
	case d.Tokenizer == nil:
		return fmt.Errorf("tokenizer: %w", internalerr.ErrInvalidConfig)
	}
	return nil
}

// snapshot is the read-only run input shared by chunked extractors.
type snapshot struct {
	attrs    []attr.Definition
	products []store.Product
	reviews  map[int64][]store.Review
}

func loadSnapshot(ctx context.Context, opts Options, deps Deps) (*snapshot, error) {
	attrs, err := deps.Attributes.Attributes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load attributes: %w", err)
	}
	if len(attrs) == 0 {
		return nil, fmt.Errorf("domain attribute table is empty: %w", internalerr.ErrInvalidConfig)
	}
	products, err := deps.Catalog.Products(ctx, opts.SourceID)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	reviews, err := deps.Catalog.Reviews(ctx, opts.SourceID, opts.SequenceID)
	if err != nil {
		return nil, fmt.Errorf("load reviews: %w", err)
	}
	byProduct := make(map[int64][]store.Review)
	for _, r := range reviews {
		byProduct[r.MasterProductID] = append(byProduct[r.MasterProductID], r)
	}
	return &snapshot{attrs: attrs, products: products, reviews: byProduct}, nil
}

// subset is the set of attributes eligible for one kind of text.
type subset struct {
	byCode   map[string]attr.Definition
	patterns *PatternMatcher
}

func newSubset(defs []attr.Definition, eligible func(attr.Definition) bool) (subset, error) {
	s := subset{byCode: make(map[string]attr.Definition)}
	var chosen []attr.Definition
	for _, d := range defs {
		if !eligible(d) {
			continue
		}
		chosen = append(chosen, d)
		if _, dup := s.byCode[d.Code]; !dup {
			s.byCode[d.Code] = d
		}
	}
	pm, err := NewPatternMatcher(chosen)
	if err != nil {
		return subset{}, err
	}
	s.patterns = pm
	return s, nil
}

// Extractor processes one set of products. It holds a Batcher and is not
// safe for concurrent use.
type Extractor struct {
	opts     Options
	deps     Deps
	logger   zerolog.Logger
	ratingID int64
	content  subset
	name     subset
	products []store.Product
	reviews  map[int64][]store.Review
	batcher  *batch.Batcher
}

// New loads the attribute table, products and reviews of the run and
// prepares an extractor over all products.
func New(ctx context.Context, opts Options, deps Deps) (*Extractor, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	snap, err := loadSnapshot(ctx, opts, deps)
	if err != nil {
		return nil, err
	}
	return newExtractor(opts, deps, snap, snap.products)
}

func newExtractor(opts Options, deps Deps, snap *snapshot, products []store.Product) (*Extractor, error) {
	if opts.RatingCode == "" {
		opts.RatingCode = DefaultRatingCode
	}
	if opts.RunID == "" {
		opts.RunID = NewRunID()
	}

	ex := &Extractor{
		opts:     opts,
		deps:     deps,
		products: products,
		reviews:  snap.reviews,
		logger: opts.Logger.With().
			Str("run_id", opts.RunID).
			Int64("source_id", opts.SourceID).
			Int64("sequence_id", opts.SequenceID).
			Logger(),
	}

	found := false
	for _, d := range snap.attrs {
		if d.Code == opts.RatingCode {
			ex.ratingID = d.ID
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("no domain attribute with code %q: %w", opts.RatingCode, internalerr.ErrInvalidConfig)
	}

	var err error
	if ex.content, err = newSubset(snap.attrs, func(d attr.Definition) bool { return d.ShouldExtractValues }); err != nil {
		return nil, err
	}
	if ex.name, err = newSubset(snap.attrs, func(d attr.Definition) bool { return d.ShouldExtractFromName }); err != nil {
		return nil, err
	}
	ex.batcher = batch.New(deps.Sink, opts.SequenceID, opts.BatchSize, ex.logger)
	return ex, nil
}

// NewRunID returns a sortable unique run identifier.
func NewRunID() string {
	return ulid.MustNew(ulid.Now(), ulid.Monotonic(rand.Reader, 0)).String()
}

// RunID returns the identifier stamped on this run's logs.
func (ex *Extractor) RunID() string {
	return ex.opts.RunID
}

// ProcessProduct extracts the records of a product's reviews, average
// review score and name.
func (ex *Extractor) ProcessProduct(ctx context.Context, p store.Product) ([]attr.Record, error) {
	var (
		out   []attr.Record
		sum   float64
		count int
	)
	for _, r := range ex.reviews[p.ID] {
		if r.Score != nil {
			sum += *r.Score
			count++
		}
		if r.Content == "" {
			continue
		}
		recs, err := ex.ExtractFromText(ctx, r.Content, p.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
	}

	ex.logger.Trace().Int64("product_id", p.ID).Int("review_count", count).Msg("reviews aggregated")
	if count > 0 {
		rec, err := attr.NewRecord(ex.opts.SourceID, p.ID, ex.ratingID, attr.FloatValue(sum/float64(count)))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}

	recs, err := ex.ExtractInformation(ctx, p.Name, p.ID, true)
	if err != nil {
		return nil, err
	}
	return append(out, recs...), nil
}

// ExtractFromText strips markup from review or description text, splits it
// into sentences and extracts from every sentence longer than
// textclean.MinSentenceLength runes.
func (ex *Extractor) ExtractFromText(ctx context.Context, text string, productID int64) ([]attr.Record, error) {
	var out []attr.Record
	for _, sentence := range textclean.SplitSentences(textclean.StripHTML(text)) {
		if textclean.TooShort(sentence) {
			continue
		}
		recs, err := ex.ExtractInformation(ctx, sentence, productID, false)
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
	}
	return out, nil
}

// ExtractInformation extracts records from one sentence. Product names use
// the from-name attribute subset, everything else the from-content subset.
// Candidates outside the subset are logged and dropped; configuration
// errors abort.
func (ex *Extractor) ExtractInformation(ctx context.Context, sentence string, productID int64, extractName bool) ([]attr.Record, error) {
	sub := ex.content
	if extractName {
		sub = ex.name
	}
	normalized := ex.deps.Tokenizer.NormalizeSentence(sentence)

	cands, err := sub.patterns.Match(normalized)
	if err != nil {
		return nil, err
	}
	found, err := ex.deps.Lookup.Lookup(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("lookup product %d: %w", productID, err)
	}
	cands = attr.Dedupe(append(cands, found...))

	out := make([]attr.Record, 0, len(cands))
	for _, c := range cands {
		def, ok := sub.byCode[c.Code]
		if !ok {
			ex.logger.Error().
				Int64("product_id", productID).
				Str("attribute_code", c.Code).
				Bool("from_name", extractName).
				Msg("no eligible domain attribute for candidate code")
			continue
		}
		rec, err := attr.NewRecord(ex.opts.SourceID, productID, def.ID, c.Value)
		if err != nil {
			return nil, fmt.Errorf("product %d attribute %s: %w", productID, c.Code, err)
		}
		out = append(out, rec)
	}
	return out, nil
}
