package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"gofalre.io/fuelstock/models"
)

var (
	accent  = lipgloss.Color("#7D56F4")
	warning = lipgloss.Color("#F2A900")
	danger  = lipgloss.Color("#E5484D")
	good    = lipgloss.Color("#30A46C")
	dim     = lipgloss.Color("#6C6C6C")

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(accent)
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	dimStyle    = lipgloss.NewStyle().Foreground(dim)
	okStyle     = lipgloss.NewStyle().Foreground(good)
	lowStyle    = lipgloss.NewStyle().Foreground(warning).Bold(true)
	deniedStyle = lipgloss.NewStyle().Foreground(danger).Bold(true)

	productCol = lipgloss.NewStyle().Width(10)
	numberCol  = lipgloss.NewStyle().Width(16).Align(lipgloss.Right)
	typeCol    = lipgloss.NewStyle().Width(10)
)

// RenderLevels renders the stock table; rows at or below reorder level are highlighted.
func RenderLevels(items []*models.StockItem) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Stock levels"))
	b.WriteString("\n\n")

	if len(items) == 0 {
		b.WriteString(dimStyle.Render("  no products tracked"))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString("  " + lipgloss.JoinHorizontal(lipgloss.Top,
		headerStyle.Inherit(productCol).Render("Product"),
		headerStyle.Inherit(numberCol).Render("Quantity (L)"),
		headerStyle.Inherit(numberCol).Render("Reorder (L)"),
	))
	b.WriteString("\n")

	for _, item := range items {
		row := lipgloss.JoinHorizontal(lipgloss.Top,
			productCol.Render(item.Product),
			numberCol.Render(item.Quantity.String()),
			numberCol.Render(item.ReorderLevel.String()),
		)
		if item.IsLow() {
			row = lowStyle.Render(row) + "  " + lowStyle.Render("LOW")
		}
		b.WriteString("  " + row + "\n")
	}

	return b.String()
}

func RenderAlerts(alerts []models.LowStockAlert) string {
	if len(alerts) == 0 {
		return okStyle.Render("All stocks are above reorder levels.") + "\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Low stock alerts"))
	b.WriteString(" " + dimStyle.Render(fmt.Sprintf("(%d)", len(alerts))))
	b.WriteString("\n\n")
	for _, alert := range alerts {
		b.WriteString("  " + lowStyle.Render("!") + " " + alert.String() + "\n")
	}
	return b.String()
}

func RenderAdmission(a models.Admission, checkOnly bool) string {
	var b strings.Builder

	switch {
	case a.Allowed && checkOnly:
		b.WriteString(okStyle.Render(fmt.Sprintf("sale of %sL %s allowed", a.Requested, a.Product)))
	case a.Allowed:
		b.WriteString(okStyle.Render(fmt.Sprintf("sold %sL %s", a.Requested, a.Product)))
	default:
		b.WriteString(deniedStyle.Render("Cannot proceed"))
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("Selling %s %s would drop stock below reorder level.", a.Requested, a.Product))
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Current Stock: %s", a.Current)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Reorder Level: %s", a.ReorderLevel)))
	b.WriteString("\n")

	return b.String()
}

func RenderMovements(product string, movements []*models.StockMovement) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Movements for " + product))
	b.WriteString("\n\n")

	if len(movements) == 0 {
		b.WriteString(dimStyle.Render("  no movements recorded"))
		b.WriteString("\n")
		return b.String()
	}

	for _, m := range movements {
		delta := m.Delta.String()
		if m.Delta.IsPositive() {
			delta = "+" + delta
		}
		b.WriteString("  " + lipgloss.JoinHorizontal(lipgloss.Top,
			dimStyle.Render(m.CreatedAt.Format("2006-01-02 15:04:05"))+"  ",
			typeCol.Render(string(m.Type)),
			numberCol.Render(delta),
			numberCol.Render(m.QuantityAfter.String()),
		))
		if m.ReferenceID != "" {
			b.WriteString("  " + dimStyle.Render(m.ReferenceID))
		}
		b.WriteString("\n")
	}

	return b.String()
}
