package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
)

// progressPrinter renders sync and archive progress as a single line
// that rewrites itself on stderr. It stays silent when stderr is not a
// terminal so redirected output is not flooded with carriage returns.
type progressPrinter struct {
	w       io.Writer
	label   string
	enabled bool
	last    int
	wrote   bool
}

func newProgressPrinter(label string) *progressPrinter {
	return &progressPrinter{
		w:       os.Stderr,
		label:   label,
		enabled: isatty.IsTerminal(os.Stderr.Fd()),
		last:    -1,
	}
}

// update implements vrpm.ProgressFunc. Repainting only on whole-percent
// changes keeps a large sync from writing megabytes of terminal noise.
func (p *progressPrinter) update(done, total int64) {
	if !p.enabled || total <= 0 {
		return
	}
	percent := int(done * 100 / total)
	if percent == p.last {
		return
	}
	p.last = percent
	p.wrote = true
	fmt.Fprintf(p.w, "\r%s: %3d%% (%s / %s)", p.label, percent,
		humanize.IBytes(uint64(done)), humanize.IBytes(uint64(total)))
}

// close terminates the progress line so following output starts on a
// fresh one.
func (p *progressPrinter) close() {
	if p.wrote {
		fmt.Fprintln(p.w)
	}
}
