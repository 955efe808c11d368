package handlers

import (
	"net/http"

	httperrors "github.com/ivankudzin/modactions/internal/transport/http/errors"
)

type PendingCounter interface {
	PendingCount() int
}

type HealthHandler struct {
	pending PendingCounter
}

func NewHealthHandler(pending PendingCounter) *HealthHandler {
	return &HealthHandler{pending: pending}
}

func (h *HealthHandler) Get(w http.ResponseWriter, _ *http.Request) {
	pending := 0
	if h.pending != nil {
		pending = h.pending.PendingCount()
	}

	httperrors.Write(w, http.StatusOK, struct {
		Status  string `json:"status"`
		Pending int    `json:"pending_actions"`
	}{Status: "ok", Pending: pending})
}
