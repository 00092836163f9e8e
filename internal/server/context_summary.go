package server

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	contextItemLimit    = 5
	contextFieldRuneMax = 500
	truncationMarker    = "...[truncated]"
)

var (
	reminderDateKeys = []string{"dueDate", "due_date", "date", "createdAt", "created_at"}
	recordDateKeys   = []string{"date", "createdAt", "created_at"}
	logDateKeys      = []string{"createdAt", "created_at", "timestamp", "date"}

	// Binary payloads never reach a prompt or report body.
	fileFieldKeys = []string{"file", "fileUrl", "file_url", "fileData", "file_data", "fileBase64", "file_base64"}
)

type contextBundle struct {
	User           map[string]any   `json:"user"`
	Pet            map[string]any   `json:"pet"`
	Reminders      []map[string]any `json:"reminders"`
	MedicalRecords []map[string]any `json:"medical_records"`
	Logs           []map[string]any `json:"logs"`
}

type contextSummary struct {
	Reminders       []map[string]any
	Records         []map[string]any
	Logs            []map[string]any
	ReminderSummary string
	RecordSummary   string
	LogSummary      string
}

// summarizeContext reduces a caller-supplied bundle into bounded arrays and
// one-line summaries that are safe to embed in a prompt. It never fails:
// missing or malformed dates sort last instead of erroring.
func summarizeContext(bundle contextBundle, now time.Time) contextSummary {
	reminders := boundedByDateDesc(bundle.Reminders, reminderDateKeys)
	records := boundedByDateDesc(bundle.MedicalRecords, recordDateKeys)
	logs := boundedByDateDesc(bundle.Logs, logDateKeys)

	return contextSummary{
		Reminders:       reminders,
		Records:         records,
		Logs:            logs,
		ReminderSummary: summarizeReminders(bundle.Reminders, reminders, now),
		RecordSummary:   summarizeRecords(bundle.MedicalRecords),
		LogSummary:      summarizeLogs(bundle.Logs, logs),
	}
}

func boundedByDateDesc(items []map[string]any, dateKeys []string) []map[string]any {
	ordered := sortByDateDesc(items, dateKeys)
	if len(ordered) > contextItemLimit {
		ordered = ordered[:contextItemLimit]
	}
	result := make([]map[string]any, 0, len(ordered))
	for _, item := range ordered {
		result = append(result, sanitizeContextItem(item))
	}
	return result
}

func sortByDateDesc(items []map[string]any, dateKeys []string) []map[string]any {
	ordered := make([]map[string]any, len(items))
	copy(ordered, items)
	sort.SliceStable(ordered, func(i, j int) bool {
		left, _ := itemTime(ordered[i], dateKeys...)
		right, _ := itemTime(ordered[j], dateKeys...)
		return left.After(right)
	})
	return ordered
}

func sanitizeContextItem(item map[string]any) map[string]any {
	if item == nil {
		return map[string]any{}
	}
	result := make(map[string]any, len(item))
	for key, value := range item {
		result[key] = value
	}
	for _, key := range fileFieldKeys {
		delete(result, key)
	}
	for _, key := range []string{"description", "extractedText", "extracted_text"} {
		if raw, ok := result[key]; ok {
			if text := toString(raw); text != "" {
				result[key] = truncateWithMarker(text, contextFieldRuneMax)
			}
		}
	}
	return result
}

func truncateWithMarker(value string, max int) string {
	trimmed := strings.TrimSpace(value)
	if max <= 0 || len([]rune(trimmed)) <= max {
		return trimmed
	}
	return truncateRunes(trimmed, max) + truncationMarker
}

func summarizeReminders(all, recent []map[string]any, now time.Time) string {
	if len(all) == 0 {
		return "No reminders on file."
	}
	overdue := 0
	recurring := 0
	for _, item := range all {
		if isOverdueReminder(item, now) {
			overdue++
		}
		if isRecurringReminder(item) {
			recurring++
		}
	}
	latestTitle := "untitled"
	if len(recent) > 0 {
		if title := stringField(recent[0], "title", "name"); title != "" {
			latestTitle = title
		}
	}
	return fmt.Sprintf(
		"%d reminders (%d overdue, %d recurring); most recent: %s",
		len(all), overdue, recurring, latestTitle,
	)
}

func isOverdueReminder(item map[string]any, now time.Time) bool {
	status := strings.ToLower(strings.TrimSpace(stringField(item, "status")))
	if status == "overdue" {
		return true
	}
	if status == "completed" {
		return false
	}
	due, ok := itemTime(item, reminderDateKeys...)
	return ok && due.Before(now)
}

func isRecurringReminder(item map[string]any) bool {
	for _, key := range []string{"recurring", "isRecurring", "is_recurring"} {
		switch v := item[key].(type) {
		case bool:
			if v {
				return true
			}
		case string:
			if strings.EqualFold(strings.TrimSpace(v), "true") {
				return true
			}
		}
	}
	return false
}

func summarizeRecords(all []map[string]any) string {
	if len(all) == 0 {
		return "No medical records on file."
	}
	countByType := map[string]int{}
	for _, item := range all {
		recordType := strings.ToLower(strings.TrimSpace(stringField(item, "type")))
		if recordType == "" {
			recordType = "other"
		}
		countByType[recordType]++
	}
	types := make([]string, 0, len(countByType))
	for recordType := range countByType {
		types = append(types, recordType)
	}
	sort.Strings(types)
	parts := make([]string, 0, len(types))
	for _, recordType := range types {
		parts = append(parts, fmt.Sprintf("%s: %d", recordType, countByType[recordType]))
	}
	return fmt.Sprintf("%d medical records (%s)", len(all), strings.Join(parts, ", "))
}

func summarizeLogs(all, recent []map[string]any) string {
	if len(all) == 0 {
		return "No activity logs on file."
	}
	latestAction := "unknown"
	if len(recent) > 0 {
		if action := stringField(recent[0], "action", "event", "title"); action != "" {
			latestAction = action
		}
	}
	return fmt.Sprintf("%d activity logs; most recent: %s", len(all), latestAction)
}

func stringField(item map[string]any, keys ...string) string {
	for _, key := range keys {
		if raw, ok := item[key]; ok {
			if text := strings.TrimSpace(toString(raw)); text != "" {
				return text
			}
		}
	}
	return ""
}

var contextTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func itemTime(item map[string]any, keys ...string) (time.Time, bool) {
	raw := stringField(item, keys...)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range contextTimeLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}
