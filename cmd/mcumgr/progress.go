package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"

	"github.com/moffa90/go-mcumgr/dfu"
	"github.com/moffa90/go-mcumgr/transfer"
)

const barWidth = 30

// progressBar draws a single-line bar. It draws nothing unless out is a
// terminal.
type progressBar struct {
	mu      sync.Mutex
	out     io.Writer
	enabled bool
	label   string
	drawn   bool
}

func newProgressBar(out *os.File, label string) *progressBar {
	return &progressBar{
		out:     out,
		enabled: term.IsTerminal(int(out.Fd())),
		label:   label,
	}
}

// Transfer is a transfer.ProgressCallback.
func (b *progressBar) Transfer(p transfer.Progress) {
	b.draw(b.label, p.Percentage, p.Bytes, p.Total)
}

// Upgrade is a dfu.ProgressCallback.
func (b *progressBar) Upgrade(p dfu.Progress) {
	b.draw(p.Phase, p.Percentage, p.BytesSent, p.TotalBytes)
}

func (b *progressBar) draw(label string, pct float64, done, total uint64) {
	if !b.enabled {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	fmt.Fprintf(b.out, "\r%s", renderBar(label, pct, done, total))
	b.drawn = true
}

// Done ends the bar line.
func (b *progressBar) Done() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.drawn {
		fmt.Fprintln(b.out)
		b.drawn = false
	}
}

// renderBar formats one bar line, e.g.
// "uploading [#########.....................]  30.0% 300/1000 B".
func renderBar(label string, pct float64, done, total uint64) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := int(pct / 100 * barWidth)
	return fmt.Sprintf("%-10s [%s%s] %5.1f%% %d/%d B",
		label,
		strings.Repeat("#", filled),
		strings.Repeat(".", barWidth-filled),
		pct, done, total)
}
