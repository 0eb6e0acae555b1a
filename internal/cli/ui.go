package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Terminal styling for human-facing status lines. Structured output
// goes through charmbracelet/log; these cover the short summaries
// printed after a compile or cache operation finishes.
var (
	styleSuccess = lipgloss.NewStyle().Foreground(lipgloss.Color("35"))
	styleInfo    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	styleMuted   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	styleSpinner = lipgloss.NewStyle().Foreground(lipgloss.Color("36"))
)

// printSuccess prints a checkmarked status line.
func printSuccess(format string, args ...any) {
	fmt.Println(styleSuccess.Render("✓") + " " + fmt.Sprintf(format, args...))
}

// printInfo prints a neutral status line.
func printInfo(format string, args ...any) {
	fmt.Println(styleInfo.Render("›") + " " + fmt.Sprintf(format, args...))
}

// printDetail prints an indented, muted detail line.
func printDetail(format string, args ...any) {
	fmt.Println("  " + styleMuted.Render(fmt.Sprintf(format, args...)))
}

// printStats summarizes a finished compile: output size and whether it
// came from the cache.
func printStats(svgBytes int, cached bool) {
	origin := "fresh"
	originStyle := styleInfo
	if cached {
		origin = "cached"
		originStyle = styleSuccess
	}
	fmt.Println("  " + styleMuted.Render(formatBytes(svgBytes)+" of SVG · ") + originStyle.Render(origin))
}

// formatBytes renders a byte count with a human-friendly unit.
func formatBytes(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f kB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
