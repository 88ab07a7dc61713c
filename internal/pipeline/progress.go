package pipeline

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
)

// Progress reports batch completion. The bar writes to stderr so piped
// record output stays clean.
type Progress interface {
	Add(int) error
	Close()
}

type noopProgress struct{}

func (noopProgress) Add(int) error { return nil }
func (noopProgress) Close()        {}

type barProgress struct {
	bar *progressbar.ProgressBar
}

func (p *barProgress) Add(n int) error { return p.bar.Add(n) }

func (p *barProgress) Close() {
	fmt.Fprint(os.Stderr, "\r\033[K")
}

// newProgress returns a stderr progress bar for the batch, or a no-op
// tracker when progress display is disabled.
func newProgress(total int, enabled bool) Progress {
	if !enabled {
		return noopProgress{}
	}
	return &barProgress{
		bar: progressbar.NewOptions(total,
			progressbar.OptionSetDescription("Processing messages"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			})),
	}
}
