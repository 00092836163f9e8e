package server

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

type chatRequest struct {
	Message       string        `json:"message"`
	Context       contextBundle `json:"context"`
	AttachmentURL string        `json:"attachment_url"`
}

func (a *App) chat(c *gin.Context) {
	var req chatRequest
	if !mustJSON(c, &req) {
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		writeError(c, http.StatusBadRequest, "message is required")
		return
	}

	userID := toString(req.Context.User["id"])
	petID := toString(req.Context.Pet["id"])

	// Rules one through three answer verbatim from the supplied records
	// without spending a model call.
	routed := routeIntent(message, req.Context.MedicalRecords)
	if routed.Intent != intentDefer {
		a.chatLog.Append(userID, petID, "user", message, string(routed.Intent))
		a.chatLog.Append(userID, petID, "assistant", routed.Answer, string(routed.Intent))
		c.JSON(http.StatusOK, gin.H{
			"response": routed.Answer,
			"intent":   string(routed.Intent),
		})
		return
	}

	summary := summarizeContext(req.Context, time.Now().UTC())
	messages := buildChatMessages(req.Context, summary, message, req.AttachmentURL)

	answer, err := a.ai.Complete(c.Request.Context(), CompletionRequest{
		Messages:    messages,
		Temperature: 0.7,
		MaxTokens:   800,
	})
	if err != nil {
		log.Printf("chat completion failed user_id=%s pet_id=%s err=%v", userID, petID, err)
		writeError(c, http.StatusInternalServerError, "Failed to execute chat query")
		return
	}

	a.chatLog.Append(userID, petID, "user", message, string(intentDefer))
	a.chatLog.Append(userID, petID, "assistant", answer, string(intentDefer))
	c.JSON(http.StatusOK, gin.H{"response": answer})
}

func (a *App) chatHistory(c *gin.Context) {
	entries := a.chatLog.History(c.Query("user_id"), c.Query("pet_id"))
	c.JSON(http.StatusOK, gin.H{"messages": entries})
}
