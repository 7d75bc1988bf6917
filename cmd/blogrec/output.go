package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rushteam/blogrec/engine"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	idStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	scoreStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	catStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	noteStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// printRecommendations 以表格输出结果。
func printRecommendations(w io.Writer, items []engine.Recommendation) {
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf(" %-6s  %-6s  %-16s  %-40s  %s", "ID", "SCORE", "CATEGORY", "TITLE", "SOURCES")))
	fmt.Fprintln(w, strings.Repeat("─", 100))
	for _, r := range items {
		fmt.Fprintf(w, " %s  %s  %s  %-40s  %s\n",
			idStyle.Render(fmt.Sprintf("%-6d", r.PostID)),
			scoreStyle.Render(fmt.Sprintf("%-6.2f", r.Score)),
			catStyle.Render(fmt.Sprintf("%-16s", truncate(r.Category, 16))),
			truncate(r.Title, 40),
			strings.Join(r.Sources, ","),
		)
	}
}
