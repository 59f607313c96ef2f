package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"

	"github.com/dzyphr/solana-playground/internal/pipeline"
	"github.com/dzyphr/solana-playground/internal/session"
)

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	infoColor    = color.New(color.FgCyan)
	pathColor    = color.New(color.Bold)
)

func severityColor(sev session.Severity) *color.Color {
	switch sev {
	case session.SeverityError:
		return errorColor
	case session.SeverityWarning:
		return warningColor
	default:
		return infoColor
	}
}

// renderMarkers prints one file's marker set, one line per marker, using
// 1-based line:column coordinates. A positive max caps the printed lines and
// summarizes the rest.
func renderMarkers(out io.Writer, path string, markers []pipeline.Marker, max int) {
	shown := markers
	if max > 0 && len(markers) > max {
		shown = markers[:max]
	}
	for _, m := range shown {
		label := severityColor(m.Severity).Sprint(m.Severity.String())
		loc := pathColor.Sprintf("%s:%d:%d", path, m.Range.Start.Line+1, m.Range.Start.Character+1)
		if m.Code != "" {
			fmt.Fprintf(out, "%s: %s[%s] %s\n", loc, label, m.Code, m.Message)
		} else {
			fmt.Fprintf(out, "%s: %s %s\n", loc, label, m.Message)
		}
	}
	if hidden := len(markers) - len(shown); hidden > 0 {
		fmt.Fprintf(out, "%s: ... and %d more\n", path, hidden)
	}
}

// renderStore prints every file's markers in path order and returns the
// total number of error-severity markers, counted before any display cap.
func renderStore(out io.Writer, store *pipeline.MarkerStore, max int) int {
	paths := store.Paths()
	sort.Strings(paths)
	errorCount := 0
	for _, path := range paths {
		markers := store.Markers(path)
		renderMarkers(out, path, markers, max)
		for _, m := range markers {
			if m.Severity == session.SeverityError {
				errorCount++
			}
		}
	}
	return errorCount
}
