package extract

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cognicore/attrmatch/pkg/attrmatch/store"
)

// progressEvery is the product cadence of progress log lines.
const progressEvery = 100

// Summary reports what a run processed and wrote.
type Summary struct {
	RunID              string `json:"run_id"`
	SourceID           int64  `json:"source_id"`
	SequenceID         int64  `json:"sequence_id"`
	Products           int    `json:"products"`
	Filtered           int    `json:"filtered"`
	ReviewRecords      int    `json:"review_records"`
	DescriptionRecords int    `json:"description_records"`
}

func (s *Summary) add(o Summary) {
	s.Products += o.Products
	s.Filtered += o.Filtered
	s.ReviewRecords += o.ReviewRecords
	s.DescriptionRecords += o.DescriptionRecords
}

// selected applies the debug product filter.
func (ex *Extractor) selected() []store.Product {
	if ex.opts.DebugProductFilter == "" {
		return ex.products
	}
	var out []store.Product
	for _, p := range ex.products {
		if strings.Contains(p.Name, ex.opts.DebugProductFilter) {
			out = append(out, p)
		}
	}
	return out
}

// ProcessAll runs both passes. Pass one extracts from reviews and names and
// is flushed before pass two fetches all descriptions in one call and
// extracts from them. A flush or collaborator failure aborts the run; the
// sink's idempotent upsert makes a rerun safe.
func (ex *Extractor) ProcessAll(ctx context.Context) (Summary, error) {
	summary := ex.summary()
	ex.logger.Info().Int("products", summary.Products).Int("filtered", summary.Filtered).Msg("extraction started")

	n, err := ex.reviewPass(ctx)
	summary.ReviewRecords = n
	if err != nil {
		return summary, err
	}

	descriptions, err := fetchDescriptions(ctx, ex.opts, ex.deps)
	if err != nil {
		return summary, err
	}
	n, err = ex.descriptionPass(ctx, descriptions)
	summary.DescriptionRecords = n
	if err != nil {
		return summary, err
	}

	ex.logger.Info().
		Int("review_records", summary.ReviewRecords).
		Int("description_records", summary.DescriptionRecords).
		Msg("extraction finished")
	return summary, nil
}

func (ex *Extractor) summary() Summary {
	products := ex.selected()
	return Summary{
		RunID:      ex.opts.RunID,
		SourceID:   ex.opts.SourceID,
		SequenceID: ex.opts.SequenceID,
		Products:   len(products),
		Filtered:   len(ex.products) - len(products),
	}
}

// reviewPass extracts from the reviews and name of every selected product
// and flushes. It returns the number of records produced.
func (ex *Extractor) reviewPass(ctx context.Context) (int, error) {
	products := ex.selected()
	total := len(products)
	records := 0
	start := time.Now()
	for i, p := range products {
		if err := ctx.Err(); err != nil {
			return records, err
		}
		recs, err := ex.ProcessProduct(ctx, p)
		if err != nil {
			return records, fmt.Errorf("process product %d: %w", p.ID, err)
		}
		if err := ex.batcher.Insert(ctx, recs...); err != nil {
			return records, err
		}
		records += len(recs)
		ex.progress(PassReviews, i, total, &start)
	}
	return records, ex.batcher.Flush(ctx)
}

// descriptionPass extracts from the description of every selected product
// and flushes. descriptions is shared read-only between chunks.
func (ex *Extractor) descriptionPass(ctx context.Context, descriptions map[int64]string) (int, error) {
	products := ex.selected()
	total := len(products)
	records := 0
	start := time.Now()
	for i, p := range products {
		if err := ctx.Err(); err != nil {
			return records, err
		}
		recs, err := ex.ExtractFromText(ctx, descriptions[p.ID], p.ID)
		if err != nil {
			return records, fmt.Errorf("describe product %d: %w", p.ID, err)
		}
		if err := ex.batcher.Insert(ctx, recs...); err != nil {
			return records, err
		}
		records += len(recs)
		ex.progress(PassDescriptions, i, total, &start)
	}
	return records, ex.batcher.Flush(ctx)
}

// fetchDescriptions is the single batched description read of a run.
func fetchDescriptions(ctx context.Context, opts Options, deps Deps) (map[int64]string, error) {
	descriptions, err := deps.Descriptions.DescriptionContents(ctx, opts.SourceID, opts.SequenceID)
	if err != nil {
		return nil, fmt.Errorf("fetch descriptions: %w", err)
	}
	return descriptions, nil
}

func (ex *Extractor) progress(pass Pass, i, total int, start *time.Time) {
	if i%progressEvery == 0 {
		ex.logger.Debug().
			Str("pass", string(pass)).
			Int("done", i).
			Int("total", total).
			Dur("elapsed", time.Since(*start)).
			Msg("extraction progress")
		*start = time.Now()
	}
	if ex.opts.Progress != nil {
		ex.opts.Progress(pass, i+1, total)
	}
}

// RunChunks splits the products of a run into chunks of chunkSize (all in one
// chunk when chunkSize <= 0) and processes them with independent extractors,
// at most workers at a time. The attribute table, products and reviews are
// loaded once and shared read-only. Pass one runs for every chunk before the
// descriptions are fetched, once for the whole run, and pass two starts. The
// first failure cancels the rest.
func RunChunks(ctx context.Context, opts Options, deps Deps, workers, chunkSize int) (Summary, error) {
	if err := deps.validate(); err != nil {
		return Summary{}, err
	}
	if opts.RunID == "" {
		opts.RunID = NewRunID()
	}
	snap, err := loadSnapshot(ctx, opts, deps)
	if err != nil {
		return Summary{}, err
	}
	if workers < 1 {
		workers = 1
	}
	if opts.Progress != nil {
		opts.Progress = serialize(opts.Progress, countSelected(snap.products, opts.DebugProductFilter))
	}

	chunks := chunkify(snap.products, chunkSize)
	extractors := make([]*Extractor, len(chunks))
	total := Summary{RunID: opts.RunID, SourceID: opts.SourceID, SequenceID: opts.SequenceID}
	for i, chunk := range chunks {
		ex, err := newExtractor(opts, deps, snap, chunk)
		if err != nil {
			return total, err
		}
		extractors[i] = ex
		total.add(ex.summary())
	}

	logger := opts.Logger.With().Str("run_id", opts.RunID).Logger()
	logger.Info().
		Int("products", total.Products).
		Int("filtered", total.Filtered).
		Int("chunks", len(chunks)).
		Msg("extraction started")

	var mu sync.Mutex
	eachChunk := func(pass func(context.Context, *Extractor) (int, error), count *int) error {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for _, ex := range extractors {
			ex := ex
			g.Go(func() error {
				n, err := pass(gctx, ex)
				mu.Lock()
				*count += n
				mu.Unlock()
				return err
			})
		}
		return g.Wait()
	}

	err = eachChunk(func(ctx context.Context, ex *Extractor) (int, error) {
		return ex.reviewPass(ctx)
	}, &total.ReviewRecords)
	if err != nil {
		return total, err
	}

	descriptions, err := fetchDescriptions(ctx, opts, deps)
	if err != nil {
		return total, err
	}
	err = eachChunk(func(ctx context.Context, ex *Extractor) (int, error) {
		return ex.descriptionPass(ctx, descriptions)
	}, &total.DescriptionRecords)
	if err != nil {
		return total, err
	}

	logger.Info().
		Int("review_records", total.ReviewRecords).
		Int("description_records", total.DescriptionRecords).
		Msg("extraction finished")
	return total, nil
}

func chunkify(products []store.Product, size int) [][]store.Product {
	if size <= 0 || size >= len(products) {
		return [][]store.Product{products}
	}
	var out [][]store.Product
	for start := 0; start < len(products); start += size {
		end := start + size
		if end > len(products) {
			end = len(products)
		}
		out = append(out, products[start:end])
	}
	return out
}

func countSelected(products []store.Product, filter string) int {
	if filter == "" {
		return len(products)
	}
	n := 0
	for _, p := range products {
		if strings.Contains(p.Name, filter) {
			n++
		}
	}
	return n
}

// serialize wraps fn so chunk extractors report run-wide counts.
func serialize(fn ProgressFunc, total int) ProgressFunc {
	var mu sync.Mutex
	done := make(map[Pass]int)
	return func(pass Pass, _, _ int) {
		mu.Lock()
		defer mu.Unlock()
		done[pass]++
		fn(pass, done[pass], total)
	}
}
