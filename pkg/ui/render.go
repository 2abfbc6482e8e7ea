package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"
)

// Signed renders d with places decimals, green when positive and red when
// negative.
func Signed(d decimal.Decimal, places int32) string {
	s := d.StringFixed(places)
	switch d.Sign() {
	case 1:
		return PositiveValue.Render("+" + s)
	case -1:
		return NegativeValue.Render(s)
	}
	return MutedValue.Render(s)
}

// Tier colours a low/medium/high label.
func Tier(tier string) string {
	switch strings.ToLower(tier) {
	case "low":
		return SuccessBadge.Render(tier)
	case "medium":
		return WarningBadge.Render(tier)
	}
	return FailureBadge.Render(tier)
}

// Badge renders a bold status word.
func Badge(ok bool, text string) string {
	if ok {
		return SuccessBadge.Render(text)
	}
	return FailureBadge.Render(text)
}

// Field is one label/value line of a card.
type Field struct {
	Label string
	Value string
}

// Card renders a titled box of aligned fields. Fields with an empty value are
// skipped.
func Card(title string, fields ...Field) string {
	lines := make([]string, 0, len(fields)+1)
	lines = append(lines, HeaderStyle.Render(title))
	for _, f := range fields {
		if f.Value == "" {
			continue
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, LabelStyle.Render(f.Label), f.Value))
	}
	return BoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// Table renders rows under headers with the shared header and cell styles.
func Table(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorBorder)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableHeaderStyle
			}
			return TableCellStyle
		})
	return t.Render()
}
