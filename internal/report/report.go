package report

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"

	"go-research/internal/summarize"
)

// ErrRender is returned when the PDF document cannot be produced.
var ErrRender = errors.New("report rendering failed")

// Report is the terminal artifact of a research run.
type Report struct {
	Summary summarize.Summary `json:"summary"`
	PDF     []byte            `json:"-"`
}

// Renderer turns a Summary into PDF bytes. Rendering is purely local
// and deterministic: the embedded creation date is fixed so the same
// Summary always yields byte-identical output.
type Renderer struct {
	creationDate time.Time
}

// NewRenderer creates a renderer with a fixed document creation date.
func NewRenderer() *Renderer {
	return &Renderer{
		creationDate: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Render produces the PDF report for a summary.
func (r *Renderer) Render(summary summarize.Summary) (Report, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(r.creationDate)
	pdf.SetMargins(20, 20, 20)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 18)
	title := summary.Title
	if title == "" {
		title = "Research Report"
	}
	pdf.MultiCell(0, 9, tr(title), "", "L", false)
	pdf.Ln(4)

	if len(summary.KeyPoints) > 0 {
		pdf.SetFont("Helvetica", "B", 13)
		pdf.CellFormat(0, 8, "Key Points", "", 1, "L", false, 0, "")
		pdf.Ln(1)
		pdf.SetFont("Helvetica", "", 11)
		for _, point := range summary.KeyPoints {
			pdf.MultiCell(0, 6, tr("- "+point), "", "L", false)
			pdf.Ln(1)
		}
		pdf.Ln(3)
	}

	if summary.Narrative != "" {
		pdf.SetFont("Helvetica", "B", 13)
		pdf.CellFormat(0, 8, "Summary", "", 1, "L", false, 0, "")
		pdf.Ln(1)
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, tr(summary.Narrative), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return Report{}, fmt.Errorf("%w: %v", ErrRender, err)
	}

	return Report{
		Summary: summary,
		PDF:     buf.Bytes(),
	}, nil
}
