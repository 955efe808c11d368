package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ivankudzin/modactions/internal/domain/model"
	pgrepo "github.com/ivankudzin/modactions/internal/repo/postgres"
	"github.com/ivankudzin/modactions/internal/transport/http/dto"
	httperrors "github.com/ivankudzin/modactions/internal/transport/http/errors"
)

type DeadLetterStore interface {
	ListUnresolved(ctx context.Context, limit int) ([]model.DeadLetterRecord, error)
	MarkResolved(ctx context.Context, id int64) error
}

type DeadLetterHandler struct {
	store DeadLetterStore
}

func NewDeadLetterHandler(store DeadLetterStore) *DeadLetterHandler {
	return &DeadLetterHandler{store: store}
}

func (h *DeadLetterHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeInternal(w, "DEAD_LETTERS_UNAVAILABLE", "dead letter store is unavailable")
		return
	}

	limit := queryInt(r, "limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	letters, err := h.store.ListUnresolved(r.Context(), limit)
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to list dead letters")
		return
	}

	out := dto.DeadLettersResponse{
		Total:       len(letters),
		DeadLetters: make([]dto.DeadLetter, 0, len(letters)),
	}
	for _, rec := range letters {
		out.DeadLetters = append(out.DeadLetters, dto.FromDeadLetter(rec))
	}

	httperrors.Write(w, http.StatusOK, out)
}

func (h *DeadLetterHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeInternal(w, "DEAD_LETTERS_UNAVAILABLE", "dead letter store is unavailable")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeBadRequest(w, "VALIDATION_ERROR", "id must be a positive integer")
		return
	}

	if err := h.store.MarkResolved(r.Context(), id); err != nil {
		if errors.Is(err, pgrepo.ErrDeadLetterNotFound) {
			writeNotFound(w, "DEAD_LETTER_NOT_FOUND", "no dead letter with this id")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "failed to resolve dead letter")
		return
	}

	httperrors.Write(w, http.StatusOK, struct {
		ID       int64 `json:"id"`
		Resolved bool  `json:"resolved"`
	}{ID: id, Resolved: true})
}
