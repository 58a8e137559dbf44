package ui

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"flank/internal/domain"
)

// ProgressBar tracks finished shards. It is safe for concurrent use.
type ProgressBar struct {
	mu       sync.Mutex
	bar      *progressbar.ProgressBar
	attempts int
	passed   int
	failed   int
}

// NewProgressBar creates a new progress bar for count shards
func NewProgressBar(count int) *ProgressBar {
	return newProgressBar(count, os.Stderr)
}

func newProgressBar(count int, w io.Writer) *ProgressBar {
	bar := progressbar.NewOptions(count,
		progressbar.OptionSetDescription(describe(0, 0, 0)),
		progressbar.OptionSetWidth(50),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        color.CyanString("█"),
			SaucerHead:    color.CyanString("█"),
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWriter(w),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(w, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)

	return &ProgressBar{bar: bar}
}

// ShardSubmitted counts a submitted shard attempt
func (p *ProgressBar) ShardSubmitted(_ domain.Shard, _ int, _ string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts++
	p.bar.Describe(describe(p.attempts, p.passed, p.failed))
}

// ShardFinished advances the bar by one terminal shard
func (p *ProgressBar) ShardFinished(outcome domain.ShardOutcome) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if outcome.State == domain.ShardPassed {
		p.passed++
	} else {
		p.failed++
	}
	_ = p.bar.Set(p.passed + p.failed)
	p.bar.Describe(describe(p.attempts, p.passed, p.failed))
}

// Counts returns the passed and failed shard counts so far
func (p *ProgressBar) Counts() (passed, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.passed, p.failed
}

// Finish completes the progress bar
func (p *ProgressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.bar.Finish()
}

func describe(attempts, passed, failed int) string {
	return color.CyanString("Running shards: ") +
		color.WhiteString("[attempts: %d", attempts) +
		" | " +
		color.GreenString("passed: %d", passed) +
		" | " +
		color.RedString("failed: %d]", failed)
}
