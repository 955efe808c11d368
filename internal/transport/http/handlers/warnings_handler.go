package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ivankudzin/modactions/internal/domain/model"
	"github.com/ivankudzin/modactions/internal/transport/http/dto"
	httperrors "github.com/ivankudzin/modactions/internal/transport/http/errors"
)

type WarningStore interface {
	GetWarnings(ctx context.Context, groupID, userID int64) (model.WarningCount, error)
	ResetWarnings(ctx context.Context, groupID, userID int64) error
}

type WarningsHandler struct {
	store WarningStore
}

func NewWarningsHandler(store WarningStore) *WarningsHandler {
	return &WarningsHandler{store: store}
}

func (h *WarningsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeInternal(w, "WARNINGS_UNAVAILABLE", "warning store is unavailable")
		return
	}

	groupID, userID, ok := warningIDs(r)
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "group_id must be negative and user_id positive")
		return
	}

	count, err := h.store.GetWarnings(r.Context(), groupID, userID)
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to load warnings")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.WarningsResponse{
		GroupID: groupID,
		UserID:  userID,
		Count:   count.Count,
	})
}

func (h *WarningsHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeInternal(w, "WARNINGS_UNAVAILABLE", "warning store is unavailable")
		return
	}

	groupID, userID, ok := warningIDs(r)
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "group_id must be negative and user_id positive")
		return
	}

	if err := h.store.ResetWarnings(r.Context(), groupID, userID); err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to reset warnings")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.WarningsResponse{
		GroupID: groupID,
		UserID:  userID,
		Count:   0,
	})
}

func warningIDs(r *http.Request) (int64, int64, bool) {
	groupID, err := strconv.ParseInt(chi.URLParam(r, "group_id"), 10, 64)
	if err != nil || groupID >= 0 {
		return 0, 0, false
	}
	userID, err := strconv.ParseInt(chi.URLParam(r, "user_id"), 10, 64)
	if err != nil || userID <= 0 {
		return 0, 0, false
	}
	return groupID, userID, true
}
