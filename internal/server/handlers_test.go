package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"pawpal/backend/internal/config"
)

func newTestApp(ai AIClient) *App {
	gin.SetMode(gin.TestMode)
	cfg := config.Config{
		APIPrefix:        "/api",
		CORSAllowOrigins: []string{"http://localhost:5173"},
		JWTSecret:        "unit-test-secret-value",
		JWTAlgorithm:     "HS256",
	}
	return &App{
		cfg:      cfg,
		ai:       ai,
		identity: newIdentityClient(cfg),
		chatLog:  newChatLogStore(),
	}
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var result map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("invalid JSON response: %v\n%s", err, recorder.Body.String())
	}
	return result
}

func TestChatAnswersDocumentQuestionsWithoutModel(t *testing.T) {
	app := newTestApp(MockAIClient{Reply: "model should not be called"})
	router := app.Router()

	body := `{
		"message": "show me the extracted text of the last document",
		"context": {
			"user": {"id": "u1"},
			"pet": {"id": "p1", "name": "Luna"},
			"medical_records": [
				{"title": "Checkup", "date": "2025-02-01", "extractedText": "old text"},
				{"title": "Bloodwork", "date": "2025-06-01", "extractedText": "WBC within normal range."}
			]
		}
	}`
	recorder := doJSON(t, router, http.MethodPost, "/api/chat", body)
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", recorder.Code, recorder.Body.String())
	}
	response := decodeBody(t, recorder)
	if response["response"] != "WBC within normal range." {
		t.Fatalf("expected verbatim document text, got %v", response["response"])
	}
	if response["intent"] != string(intentLastDocumentText) {
		t.Fatalf("expected intent %s, got %v", intentLastDocumentText, response["intent"])
	}

	history := app.chatLog.History("u1", "p1")
	if len(history) != 2 {
		t.Fatalf("expected 2 logged entries, got %d", len(history))
	}
	if history[0].Role != "user" || history[1].Role != "assistant" {
		t.Fatalf("expected user then assistant entries, got %+v", history)
	}
}

func TestChatDefersToModel(t *testing.T) {
	app := newTestApp(MockAIClient{Reply: "Feed her twice a day."})
	router := app.Router()

	body := `{
		"message": "how often should I feed Luna?",
		"context": {"user": {"id": "u1"}, "pet": {"id": "p1", "name": "Luna"}}
	}`
	recorder := doJSON(t, router, http.MethodPost, "/api/chat", body)
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", recorder.Code, recorder.Body.String())
	}
	response := decodeBody(t, recorder)
	if response["response"] != "Feed her twice a day." {
		t.Fatalf("unexpected response %v", response["response"])
	}
	if _, ok := response["intent"]; ok {
		t.Fatalf("model-backed answers must not carry an intent field")
	}
}

func TestChatRequiresMessage(t *testing.T) {
	app := newTestApp(MockAIClient{})
	recorder := doJSON(t, app.Router(), http.MethodPost, "/api/chat", `{"message": "  "}`)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}

func TestChatHistoryEndpointFilters(t *testing.T) {
	app := newTestApp(MockAIClient{})
	app.chatLog.Append("u1", "p1", "user", "first", "")
	app.chatLog.Append("u1", "p2", "user", "second", "")
	router := app.Router()

	recorder := doJSON(t, router, http.MethodGet, "/api/chat/history?user_id=u1&pet_id=p1", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", recorder.Code)
	}
	response := decodeBody(t, recorder)
	messages, ok := response["messages"].([]any)
	if !ok || len(messages) != 1 {
		t.Fatalf("expected exactly 1 filtered message, got %v", response["messages"])
	}
}

func TestGenerateTipValidatesFields(t *testing.T) {
	app := newTestApp(MockAIClient{})
	router := app.Router()

	recorder := doJSON(t, router, http.MethodPost, "/api/generate-tip",
		`{"species": "rabbit", "petName": "Luna"}`)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
	response := decodeBody(t, recorder)
	if response["detail"] != "ownerName is required" {
		t.Fatalf("unexpected detail %v", response["detail"])
	}
}

func TestGenerateTipReturnsModelAnswer(t *testing.T) {
	app := newTestApp(MockAIClient{Reply: "Offer Luna fresh hay this morning, Dana!"})
	router := app.Router()

	recorder := doJSON(t, router, http.MethodPost, "/api/generate-tip",
		`{"species": "rabbit", "petName": "Luna", "ownerName": "Dana"}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", recorder.Code, recorder.Body.String())
	}
	response := decodeBody(t, recorder)
	if response["tip"] != "Offer Luna fresh hay this morning, Dana!" {
		t.Fatalf("unexpected tip %v", response["tip"])
	}
}

func TestGenerateCareGuideValidatesInput(t *testing.T) {
	app := newTestApp(MockAIClient{})
	router := app.Router()

	recorder := doJSON(t, router, http.MethodPost, "/api/generate-care-guide", `{"petInfo": {"name": "Luna"}}`)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing petId, got %d", recorder.Code)
	}

	recorder = doJSON(t, router, http.MethodPost, "/api/generate-care-guide", `{"petId": "p1"}`)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing petInfo, got %d", recorder.Code)
	}
}

func TestGenerateCareGuideReturnsRawOnParseFailure(t *testing.T) {
	app := newTestApp(MockAIClient{Reply: "here is your guide: feed twice daily"})
	router := app.Router()

	recorder := doJSON(t, router, http.MethodPost, "/api/generate-care-guide",
		`{"petId": "p1", "petInfo": {"name": "Luna", "species": "rabbit"}}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", recorder.Code, recorder.Body.String())
	}
	response := decodeBody(t, recorder)
	guide, ok := response["care_guide"].(map[string]any)
	if !ok {
		t.Fatalf("expected care_guide object, got %v", response["care_guide"])
	}
	if guide["raw"] != "here is your guide: feed twice daily" {
		t.Fatalf("raw model text must be preserved, got %v", guide["raw"])
	}
	if _, ok := guide["error"]; !ok {
		t.Fatalf("parse failure must be reported in the payload")
	}
}

func TestGenerateHealthReportValidatesInput(t *testing.T) {
	app := newTestApp(MockAIClient{})
	router := app.Router()

	recorder := doJSON(t, router, http.MethodPost, "/api/generate-health-report", `{"pet": {"name": "Luna"}}`)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing arrays, got %d", recorder.Code)
	}
}

func TestGenerateHealthReportReturnsPDF(t *testing.T) {
	app := newTestApp(MockAIClient{Reply: `{"summary": "Luna is in good shape.", "medical_history": "None.", "reminders": "One upcoming.", "records": "One on file.", "logs": "Active."}`})
	router := app.Router()

	body := `{
		"pet": {"name": "Luna", "species": "rabbit"},
		"records": [{"title": "Checkup", "date": "2025-06-01"}],
		"reminders": [],
		"logs": []
	}`
	recorder := doJSON(t, router, http.MethodPost, "/api/generate-health-report", body)
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", recorder.Code, recorder.Body.String())
	}
	if got := recorder.Header().Get("Content-Type"); got != "application/pdf" {
		t.Fatalf("unexpected content type %q", got)
	}
	if got := recorder.Header().Get("Content-Disposition"); !strings.Contains(got, "health-report-Luna.pdf") {
		t.Fatalf("unexpected content disposition %q", got)
	}
	if !strings.HasPrefix(recorder.Body.String(), "%PDF") {
		t.Fatalf("response does not look like a PDF")
	}
}

func TestGenerateHealthReportRendersDespiteParseFailure(t *testing.T) {
	app := newTestApp(MockAIClient{Reply: "not json at all"})
	router := app.Router()

	body := `{"pet": {"name": "Luna"}, "records": [], "reminders": [], "logs": []}`
	recorder := doJSON(t, router, http.MethodPost, "/api/generate-health-report", body)
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", recorder.Code, recorder.Body.String())
	}
	if !strings.HasPrefix(recorder.Body.String(), "%PDF") {
		t.Fatalf("parse failures must still produce a PDF")
	}
}

func TestHealthScoreRequiresPetID(t *testing.T) {
	app := newTestApp(MockAIClient{})
	recorder := doJSON(t, app.Router(), http.MethodPost, "/api/health-score", `{}`)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}

func TestDeleteAccountRequiresBearerToken(t *testing.T) {
	app := newTestApp(MockAIClient{})
	recorder := doJSON(t, app.Router(), http.MethodDelete, "/api/delete-account", "")
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}
}

func TestParseHealthScore(t *testing.T) {
	cases := []struct {
		answer  string
		want    int
		wantErr bool
	}{
		{answer: "87", want: 87},
		{answer: "The score is 87% healthy", want: 87},
		{answer: "150", want: 100},
		{answer: "0", want: 0},
		{answer: "no idea", wantErr: true},
		{answer: "", wantErr: true},
	}
	for _, tc := range cases {
		got, err := parseHealthScore(tc.answer)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("parseHealthScore(%q) expected error, got %d", tc.answer, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseHealthScore(%q) unexpected error: %v", tc.answer, err)
		}
		if got != tc.want {
			t.Fatalf("parseHealthScore(%q) = %d, want %d", tc.answer, got, tc.want)
		}
	}
}

func TestDecodeModelJSONStripsFences(t *testing.T) {
	answer := "```json\n{\"summary\": \"ok\"}\n```"
	result, err := decodeModelJSON(answer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result["summary"] != "ok" {
		t.Fatalf("unexpected result %v", result)
	}

	if _, err := decodeModelJSON("plain prose"); err == nil {
		t.Fatalf("expected error for non-JSON answer")
	}
}

func TestSanitizeFilename(t *testing.T) {
	if got := sanitizeFilename("Luna Bell / 2025"); got != "Luna-Bell-2025" {
		t.Fatalf("unexpected filename %q", got)
	}
	if got := sanitizeFilename("   "); got != "pet" {
		t.Fatalf("empty names must fall back, got %q", got)
	}
}

func TestHealthEndpoint(t *testing.T) {
	app := newTestApp(MockAIClient{})
	recorder := doJSON(t, app.Router(), http.MethodGet, "/health", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", recorder.Code)
	}
	response := decodeBody(t, recorder)
	if response["status"] != "ok" {
		t.Fatalf("unexpected payload %v", response)
	}
}
