package main

import (
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"

	"github.com/cognicore/attrmatch/pkg/attrmatch/extract"
)

// passProgress shows one progress bar per extraction pass.
type passProgress struct {
	w    io.Writer
	bars map[extract.Pass]*progressbar.ProgressBar
	done map[extract.Pass]bool
}

func newPassProgress(w io.Writer) *passProgress {
	return &passProgress{
		w:    w,
		bars: make(map[extract.Pass]*progressbar.ProgressBar),
		done: make(map[extract.Pass]bool),
	}
}

// Update implements extract.ProgressFunc. Calls are serialized by the run.
// A pass keeps its bar until it completes, even if updates of passes
// interleave.
func (p *passProgress) Update(pass extract.Pass, done, total int) {
	if p.done[pass] {
		return
	}
	bar, ok := p.bars[pass]
	if !ok {
		bar = p.newBar(pass, total)
		p.bars[pass] = bar
	}
	_ = bar.Set(done)
	if done >= total {
		p.done[pass] = true
		delete(p.bars, pass)
	}
}

func (p *passProgress) newBar(pass extract.Pass, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(
		total,
		progressbar.OptionSetWidth(50),
		progressbar.OptionSetDescription(string(pass)),
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("products"),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(p.w, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// Finish completes every bar still open.
func (p *passProgress) Finish() {
	for pass, bar := range p.bars {
		_ = bar.Finish()
		p.done[pass] = true
		delete(p.bars, pass)
	}
}
