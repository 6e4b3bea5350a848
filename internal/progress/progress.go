// Package progress renders a progress bar for long-running builds. A nil
// *Bar is valid and renders nothing.
package progress

import (
	"io"

	"github.com/schollz/progressbar/v3"
)

type Bar struct {
	pb *progressbar.ProgressBar
}

// New returns a bar counting up to total, writing to w.
func New(w io.Writer, total int, description string) *Bar {
	return &Bar{
		pb: progressbar.NewOptions(total,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription(description),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionClearOnFinish(),
		),
	}
}

func (b *Bar) Add(n int) {
	if b == nil {
		return
	}
	_ = b.pb.Add(n)
}

func (b *Bar) Finish() {
	if b == nil {
		return
	}
	_ = b.pb.Finish()
}
