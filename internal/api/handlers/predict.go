package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/charquest/ml-service/internal/api/response"
	"github.com/charquest/ml-service/internal/characters"
	"github.com/charquest/ml-service/internal/ml"
)

// PredictHandler handles prediction endpoints.
type PredictHandler struct {
	model *ml.Service
}

// NewPredictHandler creates a new PredictHandler.
func NewPredictHandler(model *ml.Service) *PredictHandler {
	return &PredictHandler{model: model}
}

// PredictRequest is the shared request shape of all prediction
// endpoints. TopK is ignored by the difficulty endpoints.
type PredictRequest struct {
	Character characters.Character `json:"character"`
	TopK      int                  `json:"top_k,omitempty"`
}

func decodePredictRequest(w http.ResponseWriter, r *http.Request) (*PredictRequest, bool) {
	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, fmt.Errorf("invalid request body: %w", err))
		return nil, false
	}
	if req.TopK <= 0 {
		req.TopK = 3
	}
	return &req, true
}

// Character ranks candidate characters for the submitted record.
func (h *PredictHandler) Character(w http.ResponseWriter, r *http.Request) {
	req, ok := decodePredictRequest(w, r)
	if !ok {
		return
	}

	predictions, err := h.model.PredictCharacter(req.Character, req.TopK)
	if err != nil {
		writeModelError(w, err)
		return
	}
	response.Success(w, predictions)
}

// Difficulty estimates tree-based difficulty for the submitted record.
func (h *PredictHandler) Difficulty(w http.ResponseWriter, r *http.Request) {
	req, ok := decodePredictRequest(w, r)
	if !ok {
		return
	}

	difficulty, err := h.model.PredictDifficulty(req.Character)
	if err != nil {
		writeModelError(w, err)
		return
	}
	response.Success(w, map[string]float64{"difficulty": difficulty})
}

// GuessCount estimates the linear guess-count difficulty.
func (h *PredictHandler) GuessCount(w http.ResponseWriter, r *http.Request) {
	req, ok := decodePredictRequest(w, r)
	if !ok {
		return
	}

	guesses, err := h.model.PredictGuessCount(req.Character)
	if err != nil {
		writeModelError(w, err)
		return
	}
	response.Success(w, map[string]float64{"expected_guesses": guesses})
}

// Genre ranks genre labels for the submitted record.
func (h *PredictHandler) Genre(w http.ResponseWriter, r *http.Request) {
	req, ok := decodePredictRequest(w, r)
	if !ok {
		return
	}

	predictions, err := h.model.PredictGenre(req.Character, req.TopK)
	if err != nil {
		writeModelError(w, err)
		return
	}
	response.Success(w, predictions)
}

// Universe ranks universe labels for the submitted record.
func (h *PredictHandler) Universe(w http.ResponseWriter, r *http.Request) {
	req, ok := decodePredictRequest(w, r)
	if !ok {
		return
	}

	predictions, err := h.model.PredictUniverse(req.Character, req.TopK)
	if err != nil {
		writeModelError(w, err)
		return
	}
	response.Success(w, predictions)
}
