package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/meetscribe/minuted/internal/store"
	"github.com/meetscribe/minuted/internal/worker"
)

// RetryService re-enqueues a failed meeting for processing.
type RetryService interface {
	Retry(ctx context.Context, meetingID string) error
}

type RetryHandler struct {
	svc RetryService
}

func NewRetryHandler(svc RetryService) *RetryHandler {
	return &RetryHandler{svc: svc}
}

func (h *RetryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	meetingID := chi.URLParam(r, "meetingId")
	if meetingID == "" {
		WriteError(w, http.StatusBadRequest, "missing meetingId")
		return
	}

	err := h.svc.Retry(r.Context(), meetingID)
	switch {
	case err == nil:
		WriteJSON(w, http.StatusOK, map[string]string{
			"meetingId": meetingID,
			"status":    "processing",
		})
	case errors.Is(err, store.ErrNotFound):
		WriteError(w, http.StatusNotFound, "meeting not found")
	case errors.Is(err, worker.ErrNotFailed):
		WriteErrorDetail(w, http.StatusBadRequest, "meeting is not retryable", err.Error())
	case errors.Is(err, worker.ErrConflict):
		WriteError(w, http.StatusConflict, "retry already in progress")
	default:
		hlog.FromRequest(r).Error().Err(err).Str("meeting_id", meetingID).Msg("retry failed")
		WriteError(w, http.StatusInternalServerError, "retry failed")
	}
}
