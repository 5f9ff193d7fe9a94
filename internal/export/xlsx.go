package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/Simplici0/estimator/internal/pricing"
)

// XLSXContentType is the MIME type of RenderXLSX output.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const sheet = "Estimate"

// RenderXLSX writes the bid as a single-sheet workbook.
func RenderXLSX(w io.Writer, d Document) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	r := d.Result
	cells := [][2]any{
		{"Estimate", d.Number},
		{"Company", d.Company.Name},
		{"Client", d.Project.ClientName},
		{"Project", d.projectLine()},
		{"Description", d.Project.Description},
	}
	if !d.CreatedAt.IsZero() {
		cells = append(cells, [2]any{"Date", d.CreatedAt.Format("2006-01-02")})
	}

	row := 1
	for _, c := range cells {
		if err := setRow(f, row, c[0], c[1]); err != nil {
			return err
		}
		row++
	}

	row++
	header := row
	if err := setRow(f, row, "Description", "Qty", "Unit", "Rate", "Amount"); err != nil {
		return err
	}
	row++
	for _, item := range r.LineItems {
		if err := setRow(f, row, item.Description, item.Quantity, item.Unit,
			pricing.Cents(item.UnitPrice).InexactFloat64(), pricing.Cents(item.LineTotal).InexactFloat64()); err != nil {
			return err
		}
		row++
	}

	row++
	totals := [][2]any{
		{"Subtotal", r.Subtotal},
		{"Tax (" + pricing.FormatPercent(r.Markup.TaxRate) + ")", r.Tax},
		{"TOTAL", r.Total},
	}
	for _, t := range totals {
		if err := setRow(f, row, t[0], "", "", "", pricing.Cents(t[1].(float64)).InexactFloat64()); err != nil {
			return err
		}
		row++
	}

	row++
	band := r.CompetitorBand
	if err := setRow(f, row, "Market low", pricing.Round2(band.Min)); err != nil {
		return err
	}
	if err := setRow(f, row+1, "Market average", pricing.Round2(band.Avg)); err != nil {
		return err
	}
	if err := setRow(f, row+2, "Market high", pricing.Round2(band.Max)); err != nil {
		return err
	}
	if err := setRow(f, row+3, "Market position", string(r.MarketPosition)); err != nil {
		return err
	}

	if err := styleSheet(f, header); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, row int, values ...any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}

func styleSheet(f *excelize.File, headerRow int) error {
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	if err := f.SetCellStyle(sheet, fmt.Sprintf("A%d", headerRow), fmt.Sprintf("E%d", headerRow), bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	money, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return fmt.Errorf("create money style: %w", err)
	}
	if err := f.SetColStyle(sheet, "D:E", money); err != nil {
		return fmt.Errorf("style amounts: %w", err)
	}
	return f.SetColWidth(sheet, "A", "A", 40)
}
