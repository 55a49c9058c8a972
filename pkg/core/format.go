package core

import (
	"fmt"
	"strings"
)

// FormatResults renders search results as a numbered human-readable list.
// Pinned notes carry a marker and no score; unpinned notes show their
// similarity to two decimals.
func FormatResults(results []SearchResult) string {
	var b strings.Builder
	b.WriteString("TOP RETRIEVAL RESULTS:\n")

	if len(results) == 0 {
		b.WriteString("No matching notes found.\n")
		return b.String()
	}

	for i, result := range results {
		fmt.Fprintf(&b, "%d. ", i+1)
		if result.Note.Pinned {
			fmt.Fprintf(&b, "[pinned] %s", result.Note.Text)
		} else {
			fmt.Fprintf(&b, "%s (score: %.2f)", result.Note.Text, result.Score)
		}
		b.WriteString("\n")
	}

	return b.String()
}
