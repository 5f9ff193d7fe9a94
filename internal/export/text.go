package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/Simplici0/estimator/internal/pricing"
)

// RenderText writes the bid as plain text. Amounts are rounded to cents here and nowhere earlier.
func RenderText(w io.Writer, d Document) error {
	var b strings.Builder
	r := d.Result

	fmt.Fprintf(&b, "ESTIMATE %s\n", d.Number)
	if !d.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "Date: %s\n", d.CreatedAt.Format("January 2, 2006"))
	}
	if d.Company.Name != "" {
		fmt.Fprintf(&b, "From: %s", d.Company.Name)
		if d.Company.Phone != "" {
			fmt.Fprintf(&b, " (%s)", d.Company.Phone)
		}
		b.WriteString("\n")
	}
	if d.Project.ClientName != "" {
		fmt.Fprintf(&b, "Client: %s", d.Project.ClientName)
		if d.Project.ClientEmail != "" {
			fmt.Fprintf(&b, " <%s>", d.Project.ClientEmail)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Project: %s\n", d.projectLine())
	if d.Project.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", d.Project.Description)
	}

	b.WriteString("\nLine items:\n")
	for _, item := range r.LineItems {
		fmt.Fprintf(&b, "  %-36s %3d %-8s %14s %14s\n",
			item.Description, item.Quantity, item.Unit,
			pricing.FormatMoney(item.UnitPrice), pricing.FormatMoney(item.LineTotal))
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "Subtotal: %s\n", pricing.FormatMoney(r.Subtotal))
	fmt.Fprintf(&b, "Tax (%s): %s\n", pricing.FormatPercent(r.Markup.TaxRate), pricing.FormatMoney(r.Tax))
	fmt.Fprintf(&b, "Total: %s\n", pricing.FormatMoney(r.Total))

	band := r.CompetitorBand
	fmt.Fprintf(&b, "\nMarket range: %s - %s (average %s); this bid is %s market.\n",
		pricing.FormatMoney(band.Min), pricing.FormatMoney(band.Max), pricing.FormatMoney(band.Avg), positionPhrase(r.MarketPosition))

	_, err := io.WriteString(w, b.String())
	return err
}

func positionPhrase(p pricing.MarketPosition) string {
	switch p {
	case pricing.PositionBelow:
		return "below"
	case pricing.PositionAbove:
		return "above"
	default:
		return "at"
	}
}
