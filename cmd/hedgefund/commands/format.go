package commands

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

// JobMetadata holds the header fields of a command run
type JobMetadata struct {
	JobType   string
	Tag       string
	Timestamp string  // Optional
	Period    *Period // Optional
	Symbols   string  // Optional
}

// Period represents a date range
type Period struct {
	StartDate string
	EndDate   string
}

// PrintJobHeader prints a formatted job header
func PrintJobHeader(meta JobMetadata) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s\n", meta.JobType)
	PrintSeparator()
	fmt.Printf("  Tag       : %s\n", meta.Tag)

	// Optional period
	if meta.Period != nil {
		fmt.Printf("  Period    : %s ~ %s\n", meta.Period.StartDate, meta.Period.EndDate)
	}

	// Optional symbols
	if meta.Symbols != "" {
		fmt.Printf("  Symbols   : %s\n", meta.Symbols)
	}

	if meta.Timestamp != "" {
		fmt.Printf("  Started   : %s\n", meta.Timestamp)
	}
	PrintSeparator()
}

// PrintProgress prints a progress step with counter
// Example: [Seed] AAPL: 503 bars [1/3]
func PrintProgress(tag string, message string, current int, total int) {
	fmt.Printf("[%s] %s [%d/%d]\n", tag, message, current, total)
}

// PrintJobCompletion prints job completion message
func PrintJobCompletion(name string, duration float64) {
	fmt.Println()
	fmt.Printf("✅ %s completed in %.2fs\n", name, duration)
}

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println("═══════════════════════════════════════════════════════════")
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Println()
	fmt.Printf("⚠️  %s\n", message)
	fmt.Println()
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Printf("❌ %s\n", message)
}

// PrintInfo prints an info message
func PrintInfo(message string) {
	fmt.Printf("ℹ️  %s\n", message)
}

// PrintTableHeader prints a table header
func PrintTableHeader(columns []string, widths []int) {
	PrintTableRow(columns, widths)

	// Separator line
	totalWidth := 0
	for i, width := range widths {
		totalWidth += width
		if i < len(widths)-1 {
			totalWidth += 2 // spacing
		}
	}
	fmt.Println(strings.Repeat("─", totalWidth))
}

// PrintTableRow prints a table row
func PrintTableRow(values []string, widths []int) {
	for i, val := range values {
		fmt.Printf("%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()
}

// PrintNumberedList prints a numbered list
func PrintNumberedList(items []string) {
	for i, item := range items {
		fmt.Printf("   %d. %s\n", i+1, item)
	}
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Printf("   %-*s : %s\n", keyWidth, key, value)
}

// formatMoney renders 1234567.891 as "1,234,567.89"
func formatMoney(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}

	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	s := strconv.FormatFloat(v, 'f', 2, 64)
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return sign + b.String() + "." + frac
}

// formatPercent renders a ratio with an explicit sign
func formatPercent(ratio float64) string {
	return fmt.Sprintf("%+.2f%%", ratio*100)
}

func rateSharpe(sharpe float64) string {
	switch {
	case sharpe > 3.0:
		return "🌟 (Excellent)"
	case sharpe > 2.0:
		return "✅ (Good)"
	case sharpe > 1.0:
		return "⚠️  (Fair)"
	default:
		return "❌ (Poor)"
	}
}

func rateDrawdown(mdd float64) string {
	switch {
	case mdd < 0.10:
		return "🌟 (Excellent)"
	case mdd < 0.20:
		return "✅ (Good)"
	case mdd < 0.30:
		return "⚠️  (Fair)"
	default:
		return "❌ (High)"
	}
}
