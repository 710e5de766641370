package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"sigma-backend/internal/models"
	"sigma-backend/internal/repository"
)

type threadRepository interface {
	List(ctx context.Context) ([]models.ThreadSummary, error)
	GetMessages(ctx context.Context, threadID string) ([]models.Message, error)
	Delete(ctx context.Context, threadID string) (bool, error)
}

type ThreadHandler struct {
	threadRepo threadRepository
}

func NewThreadHandler(threadRepo threadRepository) *ThreadHandler {
	return &ThreadHandler{threadRepo: threadRepo}
}

// List returns all thread summaries, most recently updated first.
func (h *ThreadHandler) List(w http.ResponseWriter, r *http.Request) {
	threads, err := h.threadRepo.List(r.Context())
	if err != nil {
		log.Printf("Error listing threads: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list threads", r))
		return
	}
	writeJSON(w, http.StatusOK, threads)
}

// Get returns a thread's messages in arrival order.
func (h *ThreadHandler) Get(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadId")

	messages, err := h.threadRepo.GetMessages(r.Context(), threadID)
	if err != nil {
		if isNotFound(err) {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Thread not found", r))
			return
		}
		log.Printf("Error fetching thread %s: %v", threadID, err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch thread", r))
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}
	writeJSON(w, http.StatusOK, messages)
}

// Delete removes a thread and all its messages.
func (h *ThreadHandler) Delete(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadId")

	deleted, err := h.threadRepo.Delete(r.Context(), threadID)
	if err != nil {
		log.Printf("Error deleting thread %s: %v", threadID, err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to delete thread", r))
		return
	}
	if !deleted {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Thread not found", r))
		return
	}
	writeJSON(w, http.StatusOK, models.DeleteResponse{Message: "deleted"})
}

// Shared helpers

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrThreadNotFound)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get("X-Request-ID"),
		},
	}
}
