package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"pawpal/backend/internal/report"
)

type tipRequest struct {
	Species   string `json:"species"`
	PetName   string `json:"petName"`
	OwnerName string `json:"ownerName"`
}

func (a *App) generateTip(c *gin.Context) {
	var req tipRequest
	if !mustJSON(c, &req) {
		return
	}
	for field, value := range map[string]string{
		"species":   req.Species,
		"petName":   req.PetName,
		"ownerName": req.OwnerName,
	} {
		if strings.TrimSpace(value) == "" {
			writeError(c, http.StatusBadRequest, field+" is required")
			return
		}
	}

	prompt := strings.Join([]string{
		fmt.Sprintf("Write one short, friendly daily care tip for %s, a %s owned by %s.", req.PetName, req.Species, req.OwnerName),
		"Address the owner directly and mention the pet by name.",
		"Do not use the words \"cat\", \"dog\", \"pet\" or \"animal\".",
		"Reply with the tip sentence only, no preamble.",
	}, " ")

	tip, err := a.ai.Complete(c.Request.Context(), CompletionRequest{
		Messages:    []ChatMessage{{Role: "user", Content: prompt}},
		Temperature: 1.0,
		MaxTokens:   60,
	})
	if err != nil {
		log.Printf("tip generation failed pet=%s err=%v", req.PetName, err)
		writeError(c, http.StatusInternalServerError, "Failed to generate tip")
		return
	}
	c.JSON(http.StatusOK, gin.H{"tip": tip})
}

type careGuideRequest struct {
	PetID   string         `json:"petId"`
	PetInfo map[string]any `json:"petInfo"`
}

func (a *App) generateCareGuide(c *gin.Context) {
	var req careGuideRequest
	if !mustJSON(c, &req) {
		return
	}
	if strings.TrimSpace(req.PetID) == "" {
		writeError(c, http.StatusBadRequest, "petId is required")
		return
	}
	if len(req.PetInfo) == 0 {
		writeError(c, http.StatusBadRequest, "petInfo is required")
		return
	}

	prompt := strings.Join([]string{
		"Create a complete care guide for the following pet.",
		"Pet profile: " + mustMarshalJSON(req.PetInfo),
		"Respond with a single JSON object and nothing else. Use these keys:",
		`"feeding", "exercise", "grooming", "health", "training", "environment".`,
		"Each key maps to an object with \"summary\" (string) and \"recommendations\" (array of strings).",
	}, "\n")

	answer, err := a.ai.Complete(c.Request.Context(), CompletionRequest{
		Messages:    []ChatMessage{{Role: "user", Content: prompt}},
		Temperature: 1.0,
		MaxTokens:   4000,
	})
	if err != nil {
		log.Printf("care guide generation failed pet_id=%s err=%v", req.PetID, err)
		writeError(c, http.StatusInternalServerError, "Failed to generate care guide")
		return
	}

	guide, parseErr := decodeModelJSON(answer)
	if parseErr != nil {
		// A malformed guide is still returned so the caller sees what the
		// model produced, but it is never persisted.
		c.JSON(http.StatusOK, gin.H{"care_guide": gin.H{
			"error": "Care guide response was not valid JSON: " + parseErr.Error(),
			"raw":   answer,
		}})
		return
	}

	if err := a.savePetCareGuide(c.Request.Context(), req.PetID, mustMarshalJSON(guide)); err != nil {
		log.Printf("care guide persistence failed pet_id=%s err=%v", req.PetID, err)
		a.writeHandlerError(c, err, "Failed to store care guide")
		return
	}
	c.JSON(http.StatusOK, gin.H{"care_guide": guide})
}

type healthReportRequest struct {
	Pet       map[string]any   `json:"pet"`
	User      map[string]any   `json:"user"`
	Records   []map[string]any `json:"records"`
	Reminders []map[string]any `json:"reminders"`
	Logs      []map[string]any `json:"logs"`
}

func (a *App) generateHealthReport(c *gin.Context) {
	var req healthReportRequest
	if !mustJSON(c, &req) {
		return
	}
	if len(req.Pet) == 0 {
		writeError(c, http.StatusBadRequest, "pet is required")
		return
	}
	if req.Records == nil || req.Reminders == nil || req.Logs == nil {
		writeError(c, http.StatusBadRequest, "records, reminders and logs are required")
		return
	}

	bundle := contextBundle{
		User:           req.User,
		Pet:            req.Pet,
		Reminders:      req.Reminders,
		MedicalRecords: req.Records,
		Logs:           req.Logs,
	}
	summary := summarizeContext(bundle, time.Now().UTC())

	prompt := strings.Join([]string{
		"Write a veterinary-style health report for the following pet.",
		"Pet profile: " + mustMarshalJSON(reducePetProfile(req.Pet)),
		"Reminders: " + summary.ReminderSummary,
		mustMarshalJSON(summary.Reminders),
		"Medical records: " + summary.RecordSummary,
		mustMarshalJSON(summary.Records),
		"Activity logs: " + summary.LogSummary,
		mustMarshalJSON(summary.Logs),
		"Respond with a single JSON object and nothing else. Use these keys, each mapping to a few paragraphs of plain text:",
		`"summary", "medical_history", "reminders", "records", "logs".`,
	}, "\n")

	answer, err := a.ai.Complete(c.Request.Context(), CompletionRequest{
		Messages:    []ChatMessage{{Role: "user", Content: prompt}},
		Temperature: 0.7,
		MaxTokens:   3000,
	})
	if err != nil {
		log.Printf("health report generation failed pet=%s err=%v", stringField(req.Pet, "name"), err)
		writeError(c, http.StatusInternalServerError, "Failed to generate health report")
		return
	}

	var content report.Content
	if raw, parseErr := decodeModelJSON(answer); parseErr != nil {
		// Rendering continues with the raw text inline; a broken model
		// response should not cost the caller the whole report.
		content = report.Content{ParseError: parseErr.Error(), RawText: answer}
	} else {
		content = report.ContentFromMap(raw)
	}

	petName := stringField(req.Pet, "name")
	pdf, err := report.Render(report.Input{
		PetName:   petName,
		OwnerName: ownerName(req.User),
		Content:   content,
		Reminders: req.Reminders,
		Records:   req.Records,
		Logs:      req.Logs,
		LogoPath:  a.cfg.ReportLogoPath,
	})
	if err != nil {
		log.Printf("health report rendering failed pet=%s err=%v", petName, err)
		writeError(c, http.StatusInternalServerError, "Failed to render health report")
		return
	}

	filename := "health-report-" + sanitizeFilename(petName) + ".pdf"
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}

type healthScoreRequest struct {
	PetID string `json:"petId"`
}

func (a *App) healthScore(c *gin.Context) {
	var req healthScoreRequest
	if !mustJSON(c, &req) {
		return
	}
	if strings.TrimSpace(req.PetID) == "" {
		writeError(c, http.StatusBadRequest, "petId is required")
		return
	}

	score, err := a.computeHealthScore(c.Request.Context(), req.PetID)
	if err != nil {
		log.Printf("health score failed pet_id=%s err=%v", req.PetID, err)
		a.writeHandlerError(c, err, "Failed to compute health score")
		return
	}
	if err := a.savePetHealthScore(c.Request.Context(), req.PetID, score); err != nil {
		log.Printf("health score persistence failed pet_id=%s err=%v", req.PetID, err)
		a.writeHandlerError(c, err, "Failed to store health score")
		return
	}
	c.JSON(http.StatusOK, gin.H{"score": score})
}

// computeHealthScore loads a compact snapshot of the pet and asks the model
// for a single integer. The prompt is intentionally small; the batch job
// runs it for every pet.
func (a *App) computeHealthScore(ctx context.Context, petID string) (int, error) {
	pet, err := a.loadPetProfile(ctx, petID)
	if err != nil {
		return 0, err
	}
	reminders, err := a.loadRecentReminders(ctx, petID, 3)
	if err != nil {
		return 0, err
	}
	logs, err := a.loadRecentLogs(ctx, petID, 3)
	if err != nil {
		return 0, err
	}
	record, err := a.loadNewestRecord(ctx, petID)
	if err != nil {
		return 0, err
	}

	lines := []string{
		"Rate this pet's overall health from 0 to 100 based on the data below.",
		"Pet: " + mustMarshalJSON(pet),
		"Recent reminders: " + mustMarshalJSON(reminders),
		"Recent activity: " + mustMarshalJSON(logs),
	}
	if record != nil {
		lines = append(lines, "Latest medical record: "+mustMarshalJSON(record))
	}
	lines = append(lines, "Reply with the integer only. No words, no punctuation.")

	answer, err := a.ai.Complete(ctx, CompletionRequest{
		Messages:    []ChatMessage{{Role: "user", Content: strings.Join(lines, "\n")}},
		Temperature: 0.2,
		MaxTokens:   10,
	})
	if err != nil {
		return 0, err
	}
	return parseHealthScore(answer)
}

var healthScoreDigits = regexp.MustCompile(`\d{1,3}`)

func parseHealthScore(answer string) (int, error) {
	match := healthScoreDigits.FindString(answer)
	if match == "" {
		return 0, fmt.Errorf("unparsable health score: %q", strings.TrimSpace(answer))
	}
	score, err := strconv.Atoi(match)
	if err != nil {
		return 0, fmt.Errorf("unparsable health score: %q", strings.TrimSpace(answer))
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score, nil
}

// decodeModelJSON tolerates the markdown code fences models often wrap
// around JSON answers.
func decodeModelJSON(answer string) (map[string]any, error) {
	cleaned := strings.TrimSpace(answer)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var result map[string]any
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("empty JSON object")
	}
	return result, nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

func sanitizeFilename(name string) string {
	cleaned := unsafeFilenameChars.ReplaceAllString(strings.TrimSpace(name), "-")
	cleaned = strings.Trim(cleaned, "-.")
	if cleaned == "" {
		return "pet"
	}
	return cleaned
}
