// Package export renders saved estimates as client documents and stores them.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Simplici0/estimator/internal/estimates"
	"github.com/Simplici0/estimator/internal/pricing"
)

// Company is the contractor issuing the bid.
type Company struct {
	Name  string
	Phone string
}

// Document is everything a rendered bid shows.
type Document struct {
	Number    string
	Company   Company
	Project   estimates.ProjectData
	Result    pricing.EstimateResult
	CreatedAt time.Time
}

// FromRecord builds a Document from a saved estimate.
func FromRecord(rec estimates.Record, company Company) Document {
	return Document{
		Number:    rec.Number,
		Company:   company,
		Project:   rec.Project,
		Result:    rec.Result,
		CreatedAt: rec.CreatedAt,
	}
}

// FileName is the base name used for stored documents, without extension.
func (d Document) FileName() string {
	return "estimate-" + strings.ToLower(d.Number)
}

func (d Document) location() string {
	parts := make([]string, 0, 2)
	if d.Project.County != "" {
		parts = append(parts, d.Project.County+" County")
	}
	if d.Project.State != "" {
		parts = append(parts, d.Project.State)
	}
	return strings.Join(parts, ", ")
}

func (d Document) projectLine() string {
	line := fmt.Sprintf("%s, %s", titleCase(d.Project.TradeType), d.Project.ProjectSize)
	if loc := d.location(); loc != "" {
		line += " (" + loc + ")"
	}
	return line
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	if strings.EqualFold(s, string(pricing.TradeHVAC)) {
		return "HVAC"
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

// Renderer writes a Document in one file format.
type Renderer struct {
	Ext         string
	ContentType string
	Render      func(io.Writer, Document) error
}

// Renderers for the supported formats.
var (
	Text = Renderer{Ext: ".txt", ContentType: "text/plain; charset=utf-8", Render: RenderText}
	XLSX = Renderer{Ext: ".xlsx", ContentType: XLSXContentType, Render: RenderXLSX}
)
