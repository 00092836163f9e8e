// Package report renders pet health reports as PDF documents.
package report

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Content holds the narrative sections produced by the model.
type Content struct {
	Summary        string `json:"summary"`
	MedicalHistory string `json:"medical_history"`
	Reminders      string `json:"reminders"`
	Records        string `json:"records"`
	Logs           string `json:"logs"`

	// Set when the model answer could not be parsed; the raw text is then
	// rendered inline instead of the sections above.
	ParseError string `json:"-"`
	RawText    string `json:"-"`
}

// ContentFromMap lifts a decoded JSON object into Content, tolerating
// missing keys.
func ContentFromMap(data map[string]any) Content {
	str := func(key string) string {
		value, _ := data[key].(string)
		return strings.TrimSpace(value)
	}
	return Content{
		Summary:        str("summary"),
		MedicalHistory: str("medical_history"),
		Reminders:      str("reminders"),
		Records:        str("records"),
		Logs:           str("logs"),
	}
}

type Input struct {
	PetName   string
	OwnerName string
	Content   Content
	Reminders []map[string]any
	Records   []map[string]any
	Logs      []map[string]any
	LogoPath  string
}

const appendixItemLimit = 20

var sectionColor = struct{ r, g, b int }{41, 128, 185}

// Render produces the full report: branded header, narrative sections and
// a raw data appendix. It never fails on empty input arrays.
func Render(input Input) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Pet Health Report", false)
	pdf.SetAutoPageBreak(true, 20)

	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 10,
			fmt.Sprintf("Generated by PawPal - page %d", pdf.PageNo()),
			"", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	renderHeader(pdf, input)

	if input.Content.ParseError != "" {
		renderParseError(pdf, input.Content)
	} else {
		renderSection(pdf, "Summary", input.Content.Summary)
		renderSection(pdf, "Medical History", input.Content.MedicalHistory)
		renderSection(pdf, "Reminders", input.Content.Reminders)
		renderSection(pdf, "Records", input.Content.Records)
		renderSection(pdf, "Activity Logs", input.Content.Logs)
	}

	renderAppendix(pdf, input)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderHeader(pdf *gofpdf.Fpdf, input Input) {
	if input.LogoPath != "" {
		if _, err := os.Stat(input.LogoPath); err == nil {
			pdf.ImageOptions(input.LogoPath, 10, 10, 24, 0, false,
				gofpdf.ImageOptions{ImageType: "", ReadDpi: true}, 0, "")
			pdf.SetY(12)
			pdf.SetX(38)
		}
	}

	pdf.SetFont("Helvetica", "B", 20)
	pdf.SetTextColor(sectionColor.r, sectionColor.g, sectionColor.b)
	pdf.CellFormat(0, 10, "Pet Health Report", "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	pdf.SetTextColor(60, 60, 60)
	petName := input.PetName
	if petName == "" {
		petName = "Unnamed pet"
	}
	pdf.CellFormat(0, 6, "Pet: "+petName, "", 1, "L", false, 0, "")
	if input.OwnerName != "" && input.OwnerName != "unknown" {
		pdf.CellFormat(0, 6, "Owner: "+input.OwnerName, "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(0, 6, "Date: "+time.Now().UTC().Format("2006-01-02"), "", 1, "L", false, 0, "")
	pdf.Ln(4)
}

func renderSection(pdf *gofpdf.Fpdf, title, body string) {
	pdf.SetFillColor(sectionColor.r, sectionColor.g, sectionColor.b)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "  "+title, "", 1, "L", true, 0, "")
	pdf.Ln(2)

	pdf.SetTextColor(30, 30, 30)
	pdf.SetFont("Helvetica", "", 10)
	text := strings.TrimSpace(body)
	if text == "" {
		text = "No " + strings.ToLower(title) + " available."
	}
	pdf.MultiCell(0, 5, text, "", "L", false)
	pdf.Ln(2)

	pdf.SetDrawColor(200, 200, 200)
	x, y := pdf.GetX(), pdf.GetY()
	pdf.Line(x, y, x+190, y)
	pdf.Ln(4)
}

func renderParseError(pdf *gofpdf.Fpdf, content Content) {
	pdf.SetFillColor(192, 57, 43)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "  Report Content Unavailable", "", 1, "L", true, 0, "")
	pdf.Ln(2)

	pdf.SetTextColor(30, 30, 30)
	pdf.SetFont("Helvetica", "", 10)
	pdf.MultiCell(0, 5, "The generated report could not be structured: "+content.ParseError, "", "L", false)
	pdf.Ln(2)
	if strings.TrimSpace(content.RawText) != "" {
		pdf.SetFont("Helvetica", "I", 9)
		pdf.MultiCell(0, 5, content.RawText, "", "L", false)
		pdf.Ln(2)
	}
}

func renderAppendix(pdf *gofpdf.Fpdf, input Input) {
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetTextColor(sectionColor.r, sectionColor.g, sectionColor.b)
	pdf.CellFormat(0, 10, "Raw Data Appendix", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	renderAppendixList(pdf, "Reminders", input.Reminders, []string{"title", "name"}, []string{"dueDate", "due_date", "date"}, []string{"description", "status"})
	renderAppendixList(pdf, "Medical Records", input.Records, []string{"title", "name"}, []string{"date", "createdAt", "created_at"}, []string{"type", "description"})
	renderAppendixList(pdf, "Activity Logs", input.Logs, []string{"action", "title"}, []string{"createdAt", "created_at", "date"}, []string{"notes", "description"})
}

func renderAppendixList(pdf *gofpdf.Fpdf, title string, items []map[string]any, titleKeys, dateKeys, detailKeys []string) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetTextColor(30, 30, 30)
	pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")

	if len(items) == 0 {
		pdf.SetFont("Helvetica", "I", 9)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 6, "No entries.", "", 1, "L", false, 0, "")
		pdf.Ln(2)
		return
	}

	bounded := items
	if len(bounded) > appendixItemLimit {
		bounded = bounded[:appendixItemLimit]
	}

	pdf.SetFont("Helvetica", "", 9)
	for i, item := range bounded {
		name := firstString(item, titleKeys)
		if name == "" {
			name = "Untitled"
		}
		date := firstString(item, dateKeys)
		if date == "" {
			date = "unknown date"
		}
		line := fmt.Sprintf("%d. %s (%s)", i+1, name, date)
		if detail := firstString(item, detailKeys); detail != "" {
			line += " - " + truncateDetail(detail, 160)
		}
		pdf.SetTextColor(30, 30, 30)
		pdf.MultiCell(0, 5, line, "", "L", false)
	}
	if len(items) > appendixItemLimit {
		pdf.SetFont("Helvetica", "I", 9)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 6, fmt.Sprintf("... and %d more entries", len(items)-appendixItemLimit), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
	}
	pdf.Ln(3)
}

func firstString(item map[string]any, keys []string) string {
	for _, key := range keys {
		if value, ok := item[key].(string); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

func truncateDetail(value string, max int) string {
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return strings.TrimSpace(string(runes[:max])) + "..."
}
