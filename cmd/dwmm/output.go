package main

import (
	"fmt"
	"io"
	"strings"

	"dwmm/internal/daemon"
	"dwmm/internal/shared/util"

	"github.com/charmbracelet/lipgloss"
)

var (
	identifierStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true)

	codeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)
)

// printSuggestions lists each undefined identifier with its location and
// candidate imports, best first.
func printSuggestions(w io.Writer, result daemon.SuggestResult) {
	if len(result) == 0 {
		fmt.Fprintln(w, successStyle.Render("no undefined identifiers"))
		return
	}
	for _, name := range util.SortedStringKeys(result) {
		s := result[name]
		header := identifierStyle.Render(name)
		if s.Start != nil {
			header += statusStyle.Render(fmt.Sprintf(" %d:%d", s.Start.Line, s.Start.Column))
		}
		if s.Kind != "" {
			header += statusStyle.Render(" (" + string(s.Kind) + ")")
		}
		fmt.Fprintln(w, header)
		if ctx := strings.TrimSpace(s.Context); ctx != "" {
			fmt.Fprintln(w, "  "+statusStyle.Render(ctx))
		}
		printCodes(w, s.Suggested)
	}
}

func printWheres(w io.Writer, identifier string, result daemon.SuggestResult) {
	s, ok := result[identifier]
	if !ok || len(s.Suggested) == 0 {
		fmt.Fprintln(w, warnStyle.Render("no suggestions for "+identifier))
		return
	}
	for _, sg := range s.Suggested {
		fmt.Fprintln(w, codeStyle.Render(sg.Code))
	}
}

func printCodes(w io.Writer, suggested []daemon.SuggestedImport) {
	if len(suggested) == 0 {
		fmt.Fprintln(w, "  "+warnStyle.Render("no suggestions"))
		return
	}
	for _, sg := range suggested {
		fmt.Fprintln(w, "  "+codeStyle.Render(sg.Code))
	}
}

func printNatives(w io.Writer, natives map[string][]string) {
	for _, name := range util.SortedStringKeys(natives) {
		exports := natives[name]
		line := identifierStyle.Render(name)
		if len(exports) > 0 {
			line += " " + statusStyle.Render(strings.Join(exports, ", "))
		}
		fmt.Fprintln(w, line)
	}
}
