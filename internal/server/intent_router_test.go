package server

import (
	"strings"
	"testing"
)

func sampleRecords() []map[string]any {
	return []map[string]any{
		{
			"title":         "Annual checkup",
			"date":          "2025-03-10",
			"extractedText": "Weight stable. Prescribed Amoxicillin 250 mg twice daily for 7 days.",
		},
		{
			"title":         "Vaccination card",
			"date":          "2025-06-02",
			"extractedText": "Rabies booster administered.\nNext due 2026-06-02.",
		},
		{
			"title":       "Skin exam",
			"date":        "2024-11-20",
			"description": "Apply ointment to the affected area once a day.",
		},
	}
}

func TestRouteIntentReturnsNewestExtractedTextVerbatim(t *testing.T) {
	records := sampleRecords()
	result := routeIntent("show me the extracted text of the last document", records)

	if result.Intent != intentLastDocumentText {
		t.Fatalf("expected %s intent, got %s", intentLastDocumentText, result.Intent)
	}
	want := "Rabies booster administered.\nNext due 2026-06-02."
	if result.Answer != want {
		t.Fatalf("answer must be verbatim newest text:\n got %q\nwant %q", result.Answer, want)
	}

	// Input order must not matter.
	reversed := []map[string]any{records[2], records[1], records[0]}
	again := routeIntent("what was the OCR text in my most recent record?", reversed)
	if again.Answer != want {
		t.Fatalf("reordered input changed the answer: %q", again.Answer)
	}
}

func TestRouteIntentLastDocumentDetails(t *testing.T) {
	result := routeIntent("tell me about my latest document", sampleRecords())

	if result.Intent != intentLastDocumentDetails {
		t.Fatalf("expected %s intent, got %s", intentLastDocumentDetails, result.Intent)
	}
	lines := strings.Split(result.Answer, "\n")
	if len(lines) < 3 {
		t.Fatalf("details answer should have title, date and text lines: %q", result.Answer)
	}
	if lines[0] != "Latest document: Vaccination card" {
		t.Fatalf("unexpected title line: %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "Date: 2025-06-02") {
		t.Fatalf("unexpected date line: %q", lines[1])
	}
}

func TestRouteIntentMedicationScan(t *testing.T) {
	result := routeIntent("list the medications mentioned across all my documents", sampleRecords())

	if result.Intent != intentMedicationScan {
		t.Fatalf("expected %s intent, got %s", intentMedicationScan, result.Intent)
	}
	lines := splitNonEmptyLines(result.Answer)
	if len(lines) != 2 {
		t.Fatalf("expected 2 medication lines, got %d: %q", len(lines), result.Answer)
	}
	for _, line := range lines {
		if !medicationLinePattern.MatchString(line) {
			t.Fatalf("line does not look like a medication mention: %q", line)
		}
		if !strings.Contains(line, "(from ") {
			t.Fatalf("line is missing its document attribution: %q", line)
		}
	}
}

func TestRouteIntentNoMatchesFound(t *testing.T) {
	result := routeIntent("show the extracted text of the last document", nil)
	if result.Answer != noDocumentsMessage {
		t.Fatalf("expected %q, got %q", noDocumentsMessage, result.Answer)
	}

	noMeds := []map[string]any{{"title": "note", "date": "2025-01-01", "description": "all good"}}
	result = routeIntent("any drugs listed across all records?", noMeds)
	if result.Answer != noMedicationMessage {
		t.Fatalf("expected %q, got %q", noMedicationMessage, result.Answer)
	}
}

func TestRouteIntentDefersGeneralQuestions(t *testing.T) {
	for _, message := range []string{
		"how much should I feed her?",
		"is my cat's weight healthy?",
		"what vaccines are coming up?",
	} {
		result := routeIntent(message, sampleRecords())
		if result.Intent != intentDefer {
			t.Fatalf("message %q should defer, got %s", message, result.Intent)
		}
		if result.Answer != "" {
			t.Fatalf("deferred route must carry no answer, got %q", result.Answer)
		}
	}
}
