package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/maxpower-app/wallet-backend/internal/store"
)

// HealthHandler exposes Kubernetes-style liveness and readiness endpoints.
type HealthHandler struct {
	store store.Store
}

func NewHealthHandler(st store.Store) *HealthHandler {
	return &HealthHandler{store: st}
}

// Live always reports OK. If the process is up, it's live.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready checks the record store with a cheap read.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
	defer cancel()

	if _, _, err := h.store.Get(ctx, store.Path(store.CollectionAdmin, store.SettingsKey)); err != nil {
		RespondError(w, r, http.StatusServiceUnavailable, "health/store-unavailable", "record store unavailable")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
