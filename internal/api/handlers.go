package api

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/donbr/treat-or-hell/internal/core"
	"github.com/donbr/treat-or-hell/internal/store"
)

//go:embed templates/*.html
var templatesFS embed.FS

var pages = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

// AngelResponder is the persona service surface the handlers depend on.
type AngelResponder interface {
	Respond(ctx context.Context, userMessage string) (string, error)
}

type APIHandler struct {
	angel AngelResponder
	store store.Store
	log   logrus.FieldLogger
}

func NewAPIHandler(angel AngelResponder, st store.Store, log logrus.FieldLogger) *APIHandler {
	return &APIHandler{angel: angel, store: st, log: log}
}

type ChatRequest struct {
	Message string `json:"message"`
}

type ChatResponse struct {
	Response string `json:"response"`
}

type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func (h *APIHandler) ChatAngelHandler(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "Message must not be empty", "")
		return
	}

	log := h.log.WithFields(logrus.Fields{
		"request_id":     requestIDFrom(r.Context()),
		"message_length": len(req.Message),
	})
	log.Info("Chat request received")

	text, err := h.angel.Respond(r.Context(), req.Message)
	if err != nil {
		var cerr *core.CompletionError
		switch {
		case errors.As(err, &cerr) && cerr.RateLimited:
			log.WithError(err).Warn("Chat request rate limited")
			writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.", "")
		case errors.As(err, &cerr) && cerr.Transient:
			log.WithError(err).Error("Chat request failed upstream")
			writeError(w, http.StatusServiceUnavailable, "The Angel is temporarily unavailable. Please try again later.", "")
		default:
			log.WithError(err).Error("Chat request failed unexpectedly")
			writeError(w, http.StatusInternalServerError, "An unexpected error occurred. Please try again later.", "")
		}
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{Response: text})
}

func (h *APIHandler) QuestionsFormHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pages.ExecuteTemplate(w, "questions.html", nil); err != nil {
		h.log.WithError(err).Error("Failed to render questions form")
	}
}

func (h *APIHandler) SubmitQuestionsHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid form data", err.Error())
		return
	}

	rec := store.Record{
		Q1: strings.TrimSpace(r.PostFormValue("q1")),
		Q2: strings.TrimSpace(r.PostFormValue("q2")),
		Q3: strings.TrimSpace(r.PostFormValue("q3")),
		Q4: strings.TrimSpace(r.PostFormValue("q4")),
	}
	if rec.Q1 == "" || rec.Q2 == "" || rec.Q3 == "" || rec.Q4 == "" {
		writeError(w, http.StatusBadRequest, "All four answers are required", "")
		return
	}

	log := h.log.WithField("request_id", requestIDFrom(r.Context()))

	if err := h.store.Save(r.Context(), &rec); err != nil {
		log.WithError(err).Error("Failed to save student responses")
		writeError(w, http.StatusInternalServerError, "Failed to save student responses. Please try again later.", "")
		return
	}
	log.Info("Student responses submitted")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pages.ExecuteTemplate(w, "submitted.html", nil); err != nil {
		log.WithError(err).Error("Failed to render confirmation page")
	}
}

func (h *APIHandler) MetaHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "TreatOrHell API",
		"endpoints": []string{"/chat/angel", "/questions", "/questions/submit"},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message, detail string) {
	writeJSON(w, status, ErrorResponse{Error: message, Detail: detail})
}
