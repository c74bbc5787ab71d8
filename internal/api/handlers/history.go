package handlers

import (
	"net/http"

	"github.com/charquest/ml-service/internal/api/response"
	"github.com/charquest/ml-service/internal/storage"
	"github.com/charquest/ml-service/internal/storage/models"
)

// HistoryHandler handles training history and snapshot endpoints.
type HistoryHandler struct {
	store *storage.Service
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(store *storage.Service) *HistoryHandler {
	return &HistoryHandler{store: store}
}

// Runs lists completed training runs, newest first.
func (h *HistoryHandler) Runs(w http.ResponseWriter, r *http.Request) {
	runs, err := h.store.TrainingRuns.List(r.Context(), queryInt(r, "limit", 20))
	if err != nil {
		response.InternalError(w, err)
		return
	}
	response.Success(w, runs)
}

// Snapshots lists persisted snapshot metadata of one kind.
func (h *HistoryHandler) Snapshots(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	if kind == "" {
		kind = models.SnapshotKindCharacterTree
	}

	snapshots, err := h.store.Snapshots.List(r.Context(), kind, queryInt(r, "limit", 20))
	if err != nil {
		response.InternalError(w, err)
		return
	}
	response.Success(w, snapshots)
}
