package server

import "strings"

// Only scalar profile fields reach the prompt; nested collections travel
// through the summarized arrays instead.
var petProfileKeys = []string{"id", "name", "species", "breed", "age", "gender", "color", "weight", "notes"}

var chatInstructionLines = []string{
	"You are PawPal, a careful assistant for pet owners.",
	"Always cross-reference the pet profile, reminders, medical records, and activity logs supplied below before answering.",
	"Never invent values that are not present in the supplied data.",
	"When the user asks for extracted text from a document, quote it verbatim without paraphrasing.",
	"Flag any mismatch between active reminders and prescriptions found in the medical records.",
	"When a field the user asks about is missing from the data, say so explicitly instead of guessing.",
}

func buildChatMessages(bundle contextBundle, summary contextSummary, message, attachmentURL string) []ChatMessage {
	lines := make([]string, 0, len(chatInstructionLines)+16)
	lines = append(lines, chatInstructionLines...)
	lines = append(lines, "", "Owner: "+ownerName(bundle.User))
	lines = append(lines,
		"Pet profile:",
		mustMarshalJSON(reducePetProfile(bundle.Pet)),
		"Reminders: "+summary.ReminderSummary,
		mustMarshalJSON(summary.Reminders),
		"Medical records: "+summary.RecordSummary,
		mustMarshalJSON(summary.Records),
		"Activity logs: "+summary.LogSummary,
		mustMarshalJSON(summary.Logs),
	)

	userContent := strings.TrimSpace(message)
	if url := strings.TrimSpace(attachmentURL); url != "" {
		userContent = userContent + "\n[Attached image: " + url + "]"
	}

	return []ChatMessage{
		{Role: "system", Content: strings.Join(lines, "\n")},
		{Role: "user", Content: userContent},
	}
}

func ownerName(user map[string]any) string {
	if name := stringField(user, "name", "fullName", "full_name", "email"); name != "" {
		return name
	}
	return "unknown"
}

func reducePetProfile(pet map[string]any) map[string]any {
	result := make(map[string]any, len(petProfileKeys))
	for _, key := range petProfileKeys {
		if raw, ok := pet[key]; ok {
			result[key] = raw
		}
	}
	return result
}
