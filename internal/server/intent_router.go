package server

import (
	"fmt"
	"regexp"
	"strings"
)

// chatIntent is the typed result of the message matcher. The first three
// intents answer directly from supplied data and never reach the model.
type chatIntent string

const (
	intentLastDocumentText    chatIntent = "last_document_text"
	intentLastDocumentDetails chatIntent = "last_document_details"
	intentMedicationScan      chatIntent = "medication_scan"
	intentDefer               chatIntent = "defer"
)

const (
	noDocumentsMessage  = "No medical documents with extracted text were found."
	noMedicationMessage = "No medication details were found across the stored documents."
)

var (
	extractedTextPattern = regexp.MustCompile(`(?i)\b(extracted\s+text|ocr(\s+text)?|raw\s+text|scanned\s+text)\b`)
	lastDocumentPattern  = regexp.MustCompile(`(?i)\b(last|latest|newest|most\s+recent|recent)\b[^.!?]*\b(document|doc|record|report|file|upload)s?\b`)
	medicationPattern    = regexp.MustCompile(`(?i)\b(medication|medicine|meds?|drugs?|prescriptions?|prescribed?|dosage|dose)\b`)
	allDocumentsPattern  = regexp.MustCompile(`(?i)\b(all|every|each|across|entire|whole)\b[^.!?]*\b(documents?|records?|reports?|files?|history)\b`)

	medicationLinePattern = regexp.MustCompile(
		`(?i)(\d+(\.\d+)?\s*(mg|ml|mcg|g|iu)\b|\b(tablets?|capsules?|pills?|doses?|dosage|syrup|injections?|ointment|drops)\b|\bprescrib|\b(once|twice|three\s+times)\s+(a\s+day|daily)\b|\bevery\s+\d+\s+hours?\b)`,
	)
)

type routeResult struct {
	Intent chatIntent
	Answer string
}

// routeIntent inspects the raw message against the fixed rule set, first
// match wins. Records are the full unsummarized array so the verbatim rules
// see untruncated text.
func routeIntent(message string, records []map[string]any) routeResult {
	switch {
	case extractedTextPattern.MatchString(message) && lastDocumentPattern.MatchString(message):
		return routeResult{Intent: intentLastDocumentText, Answer: lastDocumentText(records)}
	case lastDocumentPattern.MatchString(message):
		return routeResult{Intent: intentLastDocumentDetails, Answer: lastDocumentDetails(records)}
	case medicationPattern.MatchString(message) && allDocumentsPattern.MatchString(message):
		return routeResult{Intent: intentMedicationScan, Answer: medicationScan(records)}
	default:
		return routeResult{Intent: intentDefer}
	}
}

func newestRecord(records []map[string]any) (map[string]any, bool) {
	ordered := sortByDateDesc(records, recordDateKeys)
	if len(ordered) == 0 {
		return nil, false
	}
	return ordered[0], true
}

func recordText(record map[string]any) string {
	return stringField(record, "extractedText", "extracted_text", "description")
}

func lastDocumentText(records []map[string]any) string {
	record, ok := newestRecord(records)
	if !ok {
		return noDocumentsMessage
	}
	text := recordText(record)
	if text == "" {
		return noDocumentsMessage
	}
	return text
}

func lastDocumentDetails(records []map[string]any) string {
	record, ok := newestRecord(records)
	if !ok {
		return noDocumentsMessage
	}
	title := stringField(record, "title", "name")
	if title == "" {
		title = "Untitled document"
	}
	date := stringField(record, recordDateKeys...)
	if date == "" {
		date = "unknown date"
	}
	text := recordText(record)
	if text == "" {
		text = "No extracted text available."
	}
	return strings.Join([]string{
		"Latest document: " + title,
		"Date: " + date,
		text,
	}, "\n")
}

func medicationScan(records []map[string]any) string {
	matches := make([]string, 0, 16)
	for _, record := range records {
		title := stringField(record, "title", "name")
		if title == "" {
			title = "Untitled document"
		}
		date := stringField(record, recordDateKeys...)
		if date == "" {
			date = "unknown date"
		}
		seen := map[string]struct{}{}
		for _, source := range []string{
			stringField(record, "extractedText", "extracted_text"),
			stringField(record, "description"),
		} {
			for _, line := range splitNonEmptyLines(source) {
				if !medicationLinePattern.MatchString(line) {
					continue
				}
				if _, dup := seen[line]; dup {
					continue
				}
				seen[line] = struct{}{}
				matches = append(matches, fmt.Sprintf("%s (from %s, %s)", line, title, date))
			}
		}
	}
	if len(matches) == 0 {
		return noMedicationMessage
	}
	return strings.Join(matches, "\n")
}
