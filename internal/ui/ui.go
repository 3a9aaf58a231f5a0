// Package ui renders command output for humans.
package ui

import (
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

var (
	mu       sync.RWMutex
	renderer = lipgloss.NewRenderer(os.Stdout)

	passColor   = lipgloss.AdaptiveColor{Light: "#2E7D32", Dark: "#66BB6A"}
	warnColor   = lipgloss.AdaptiveColor{Light: "#E65100", Dark: "#FFA726"}
	failColor   = lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#EF5350"}
	accentColor = lipgloss.AdaptiveColor{Light: "#1565C0", Dark: "#42A5F5"}
	mutedColor  = lipgloss.AdaptiveColor{Light: "#757575", Dark: "#9E9E9E"}
)

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w any) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Setup points rendering at out. Colors are used only when out is a
// terminal and NO_COLOR is unset.
func Setup(out io.Writer) {
	r := lipgloss.NewRenderer(out)
	if !IsTerminal(out) || os.Getenv("NO_COLOR") != "" {
		r.SetColorProfile(termenv.Ascii)
	}
	mu.Lock()
	renderer = r
	mu.Unlock()
}

func style(color lipgloss.TerminalColor) lipgloss.Style {
	mu.RLock()
	defer mu.RUnlock()
	return renderer.NewStyle().Foreground(color)
}

// RenderPass renders a success marker.
func RenderPass(s string) string { return style(passColor).Bold(true).Render(s) }

// RenderWarn renders a warning marker.
func RenderWarn(s string) string { return style(warnColor).Bold(true).Render(s) }

// RenderFail renders a failure marker.
func RenderFail(s string) string { return style(failColor).Bold(true).Render(s) }

// RenderAccent highlights s.
func RenderAccent(s string) string { return style(accentColor).Render(s) }

// RenderMuted de-emphasises s.
func RenderMuted(s string) string { return style(mutedColor).Render(s) }

// Table renders rows under headers with a rounded border.
func Table(headers []string, rows [][]string) string {
	mu.RLock()
	r := renderer
	mu.RUnlock()

	header := r.NewStyle().Bold(true).Padding(0, 1)
	cell := r.NewStyle().Padding(0, 1)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(r.NewStyle().Foreground(mutedColor)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})
	return t.Render()
}
