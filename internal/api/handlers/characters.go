package handlers

import (
	"net/http"

	"github.com/charquest/ml-service/internal/api/response"
	"github.com/charquest/ml-service/internal/characters"
)

// CharactersHandler handles character data set endpoints.
type CharactersHandler struct {
	source *characters.Source
}

// NewCharactersHandler creates a new CharactersHandler.
func NewCharactersHandler(source *characters.Source) *CharactersHandler {
	return &CharactersHandler{source: source}
}

// List returns the currently loaded character records.
func (h *CharactersHandler) List(w http.ResponseWriter, _ *http.Request) {
	records := h.source.Records()
	response.Success(w, map[string]interface{}{
		"count":      len(records),
		"characters": records,
	})
}

// Reload re-reads the character file from disk.
func (h *CharactersHandler) Reload(w http.ResponseWriter, _ *http.Request) {
	if err := h.source.Load(); err != nil {
		response.InternalError(w, err)
		return
	}
	response.Success(w, map[string]interface{}{
		"count": h.source.Count(),
		"path":  h.source.Path(),
	})
}
