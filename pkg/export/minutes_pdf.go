package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// DefenseMinutes carries the fields rendered into a procès-verbal de soutenance.
type DefenseMinutes struct {
	ThemeTitle           string
	StudentName          string
	SupervisorName       string
	Verdict              string
	Grade                *float64
	Remarks              string
	RequiredCorrections  string
	CorrectionsDeadline  *time.Time
	DecidedAt            time.Time
	JuryPresident        string
}

// MinutesExporter renders jury decisions into a printable PDF.
type MinutesExporter struct{}

// NewMinutesExporter constructs a minutes exporter.
func NewMinutesExporter() *MinutesExporter {
	return &MinutesExporter{}
}

// Render creates the defense minutes PDF document.
func (e *MinutesExporter) Render(m DefenseMinutes) ([]byte, error) {
	if m.ThemeTitle == "" {
		return nil, fmt.Errorf("minutes require a theme title")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 20, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, "PROCES-VERBAL DE SOUTENANCE", "", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Arial", "", 11)
	e.row(pdf, "Sujet", m.ThemeTitle)
	e.row(pdf, "Etudiant", m.StudentName)
	e.row(pdf, "Encadrant", m.SupervisorName)
	e.row(pdf, "Decision", strings.ToUpper(m.Verdict))
	if m.Grade != nil {
		e.row(pdf, "Note", fmt.Sprintf("%.2f / 20", *m.Grade))
	}
	if m.Remarks != "" {
		e.row(pdf, "Observations", m.Remarks)
	}
	if m.RequiredCorrections != "" {
		e.row(pdf, "Corrections demandees", m.RequiredCorrections)
		if m.CorrectionsDeadline != nil {
			e.row(pdf, "Delai corrections", m.CorrectionsDeadline.Format("02/01/2006"))
		}
	}
	e.row(pdf, "Date de deliberation", m.DecidedAt.Format("02/01/2006"))

	pdf.Ln(14)
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 8, "Le president du jury", "", 1, "R", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 8, m.JuryPresident, "", 1, "R", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render minutes pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *MinutesExporter) row(pdf *gofpdf.Fpdf, label, value string) {
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(55, 8, label, "", 0, "", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.MultiCell(0, 8, value, "", "", false)
}
