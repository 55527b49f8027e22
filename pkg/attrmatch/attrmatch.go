// Package attrmatch ties the dictionary build, artifact publishing and the
// two-pass extraction together.
package attrmatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cognicore/attrmatch/pkg/attrmatch/artifact"
	"github.com/cognicore/attrmatch/pkg/attrmatch/attr"
	"github.com/cognicore/attrmatch/pkg/attrmatch/dictionary"
	"github.com/cognicore/attrmatch/pkg/attrmatch/extract"
	"github.com/cognicore/attrmatch/pkg/attrmatch/index"
	"github.com/cognicore/attrmatch/pkg/attrmatch/internalerr"
	"github.com/cognicore/attrmatch/pkg/attrmatch/lookup"
	"github.com/cognicore/attrmatch/pkg/attrmatch/stoplist"
	"github.com/cognicore/attrmatch/pkg/attrmatch/store"
	"github.com/cognicore/attrmatch/pkg/attrmatch/textclean"
)

// Engine is the main attrmatch facade
type Engine struct {
	store     store.Store
	artifacts artifact.Store
	tok       *textclean.Tokenizer
	opts      Options
}

// Options configures an Engine
type Options struct {
	Store     store.Store
	Artifacts artifact.Store
	Tokenizer *textclean.Tokenizer

	Dictionary dictionary.Options
	Lookup     lookup.Options

	// IncrementalIndex seeds each build's index from the latest bundle and
	// indexes only new ids and ids whose normalized text changed. Postings of
	// the old text stay in the index; the matcher scores candidates against
	// the current dictionary, so they never produce a match on their own.
	IncrementalIndex bool

	// StopwordThresholds tunes the stopword suggestions of a build.
	StopwordThresholds stoplist.Thresholds

	// Remote, when set, replaces the in-process matcher during extraction.
	Remote extract.Lookuper

	Logger zerolog.Logger
}

// New creates an Engine with the given dependencies
func New(opts Options) *Engine {
	if opts.Tokenizer == nil {
		opts.Tokenizer = textclean.NewTokenizer(stoplist.NewManager(stoplist.Default()))
	}
	if opts.Artifacts == nil {
		opts.Artifacts = artifact.NewMemoryStore()
	}
	if opts.Dictionary.PerfectMatchBonus == 0 {
		opts.Dictionary = dictionary.DefaultOptions()
	}
	if opts.Lookup.Rule == nil && opts.Lookup.FuzzyWeight == 0 {
		opts.Lookup = lookup.DefaultOptions()
	}
	if opts.StopwordThresholds.DFPercent == 0 {
		opts.StopwordThresholds = stoplist.DefaultThresholds()
	}
	opts.Dictionary.Logger = opts.Logger
	opts.Lookup.Logger = opts.Logger
	return &Engine{
		store:     opts.Store,
		artifacts: opts.Artifacts,
		tok:       opts.Tokenizer,
		opts:      opts,
	}
}

// Close cleanly shuts down the stores
func (e *Engine) Close() error {
	return errors.Join(e.store.Close(), e.artifacts.Close())
}

// BuildResult is the outcome of BuildDictionary.
type BuildResult struct {
	Bundle      *artifact.Bundle
	Incremental bool
	// Added counts entities indexed by this build.
	Added       int
	Suggestions []stoplist.Candidate
}

// BuildDictionary reads every dictionary row, builds the weighted dictionary,
// ambiguity map and bigram index, and publishes them as the latest bundle.
func (e *Engine) BuildDictionary(ctx context.Context) (*BuildResult, error) {
	runID := extract.NewRunID()
	logger := e.opts.Logger.With().Str("run_id", runID).Logger()

	rows, err := e.store.DictionaryRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("load dictionary rows: %w", err)
	}

	opts := e.opts.Dictionary
	opts.Logger = logger
	res, err := dictionary.Build(rows, e.tok, opts)
	if err != nil {
		return nil, err
	}

	out := &BuildResult{}
	entities := res.Dictionary.Entities()
	var idx index.Index
	if e.opts.IncrementalIndex {
		prior, err := e.artifacts.Latest(ctx)
		switch {
		case err == nil:
			entities = changedEntities(prior, entities)
			idx = index.Merge(prior.Index.Clone(), index.Extend(nil, entities))
			out.Incremental = true
			logger.Info().Str("prior_run_id", prior.RunID).Int("added", len(entities)).Msg("extending prior index")
		case errors.Is(err, internalerr.ErrNotFound):
			logger.Info().Msg("no prior bundle, building full index")
		default:
			return nil, fmt.Errorf("load prior bundle: %w", err)
		}
	}
	if !out.Incremental {
		idx = index.Extend(nil, entities)
	}
	out.Added = len(entities)

	out.Bundle = &artifact.Bundle{
		RunID:                runID,
		BuiltAt:              time.Now().UTC(),
		CommonWordPercentile: opts.CommonWordPercentile,
		PerfectMatchBonus:    opts.PerfectMatchBonus,
		NgramBonus:           opts.NgramBonus,
		Weights:              res.Weights,
		Cutoff:               res.Cutoff,
		Dictionary:           res.Dictionary,
		Ambiguity:            res.Ambiguity,
		Index:                idx,
		Report:               res.Report,
	}
	if err := e.artifacts.Save(ctx, out.Bundle); err != nil {
		return nil, fmt.Errorf("publish bundle: %w", err)
	}

	out.Suggestions = e.tok.Stoplist().SuggestCandidates(stopwordStats(res), e.opts.StopwordThresholds)
	for _, c := range out.Suggestions {
		logger.Warn().Str("token", c.Token).Float64("df_share", c.Score).Msg("token behaves like a stopword")
	}

	logger.Info().
		Int("entities", res.Dictionary.Len()).
		Int("postings", idx.Size()).
		Msg("bundle published")
	return out, nil
}

// changedEntities returns the entities a prior bundle does not index under
// their current text: new ids and ids whose normalized text changed.
func changedEntities(prior *artifact.Bundle, entities []*dictionary.Entity) []*dictionary.Entity {
	known := prior.Index.IDs()
	var out []*dictionary.Entity
	for _, ent := range entities {
		if _, ok := known[ent.ID]; ok {
			old, found := prior.Dictionary.Get(ent.ID)
			if found && old.NormalizedText == ent.NormalizedText {
				continue
			}
		}
		out = append(out, ent)
	}
	return out
}

func stopwordStats(res *dictionary.Result) []stoplist.Stats {
	n := res.Model.Docs()
	if n == 0 {
		return nil
	}
	tokens := res.Model.Tokens()
	stats := make([]stoplist.Stats, 0, len(tokens))
	for _, t := range tokens {
		df := res.Model.DocFreq(t)
		w, _ := res.Weights.Weight(t)
		stats = append(stats, stoplist.Stats{
			Token:     t,
			DF:        df,
			DFPercent: 100 * float64(df) / float64(n),
			Weight:    w,
		})
	}
	return stats
}

// Matcher returns a matcher over the latest bundle. The bundle's scoring
// bonuses override the configured ones so lookups score like the build did.
func (e *Engine) Matcher(ctx context.Context) (*lookup.Matcher, *artifact.Bundle, error) {
	b, err := e.artifacts.Latest(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load latest bundle: %w", err)
	}
	opts := e.opts.Lookup
	opts.PerfectMatchBonus = b.PerfectMatchBonus
	opts.NgramBonus = b.NgramBonus
	return lookup.NewMatcher(b.Artifacts(), e.tok, opts), b, nil
}

// Lookup normalizes sentence and returns its candidates from the latest bundle.
func (e *Engine) Lookup(ctx context.Context, sentence string) ([]attr.Candidate, error) {
	m, _, err := e.Matcher(ctx)
	if err != nil {
		return nil, err
	}
	return m.Lookup(ctx, e.tok.NormalizeSentence(sentence))
}

// Explain returns the accepted matches for sentence with their scores.
func (e *Engine) Explain(ctx context.Context, sentence string) ([]lookup.Match, error) {
	m, _, err := e.Matcher(ctx)
	if err != nil {
		return nil, err
	}
	return m.Match(e.tok.NormalizeSentence(sentence)), nil
}

// ExtractRequest scopes an extraction run.
type ExtractRequest struct {
	SourceID           int64
	SequenceID         int64
	RatingCode         string
	DebugProductFilter string
	BatchSize          int
	Workers            int
	ChunkSize          int
	Progress           extract.ProgressFunc
}

// Extract runs the two-pass extraction for a source and sequence against
// the latest bundle, or the remote lookup service when one is configured.
func (e *Engine) Extract(ctx context.Context, req ExtractRequest) (extract.Summary, error) {
	lk := e.opts.Remote
	if lk == nil {
		m, b, err := e.Matcher(ctx)
		if err != nil {
			return extract.Summary{}, err
		}
		e.opts.Logger.Info().Str("bundle", b.RunID).Int("entities", b.Dictionary.Len()).Msg("using dictionary bundle")
		lk = m
	}

	runID := extract.NewRunID()
	opts := extract.Options{
		SourceID:           req.SourceID,
		SequenceID:         req.SequenceID,
		RatingCode:         req.RatingCode,
		DebugProductFilter: req.DebugProductFilter,
		BatchSize:          req.BatchSize,
		RunID:              runID,
		Logger:             e.opts.Logger.With().Str("run_id", runID).Logger(),
		Progress:           req.Progress,
	}
	deps := extract.Deps{
		Attributes:   e.store,
		Catalog:      e.store,
		Descriptions: e.store,
		Sink:         e.store,
		Lookup:       lk,
		Tokenizer:    e.tok,
	}
	return extract.RunChunks(ctx, opts, deps, req.Workers, req.ChunkSize)
}
