package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/handiism/albumpdf/internal/download"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	summaryStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ECDC4")).
			Padding(0, 1)
)

// printer writes progress events with a styled level prefix.
type printer struct {
	out     io.Writer
	verbose bool
	mu      sync.Mutex
}

func (p *printer) event(event download.ProgressEvent) {
	if event.Level == download.LevelVerbose && !p.verbose {
		return
	}

	var prefix string
	switch event.Level {
	case download.LevelError:
		prefix = errorStyle.Render("[error]")
	case download.LevelWarning:
		prefix = warningStyle.Render("[warn] ")
	case download.LevelSuccess:
		prefix = successStyle.Render("[done] ")
	case download.LevelInfo:
		prefix = infoStyle.Render("[info] ")
	default:
		prefix = dimStyle.Render("[..]   ")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, prefix+" "+event.Message)
}

func (p *printer) title(s string) {
	fmt.Fprintln(p.out, titleStyle.Render(s))
}

func (p *printer) summary(s string) {
	fmt.Fprintln(p.out, summaryStyle.Render(s))
}
