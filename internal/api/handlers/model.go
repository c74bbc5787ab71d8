package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/charquest/ml-service/internal/api/response"
	"github.com/charquest/ml-service/internal/characters"
	"github.com/charquest/ml-service/internal/ml"
)

// ModelHandler handles training and introspection endpoints.
type ModelHandler struct {
	model  *ml.Service
	source *characters.Source
}

// NewModelHandler creates a new ModelHandler.
func NewModelHandler(model *ml.Service, source *characters.Source) *ModelHandler {
	return &ModelHandler{model: model, source: source}
}

// TrainRequest optionally carries an inline data set. When Records is
// empty the currently loaded character file is used.
type TrainRequest struct {
	Records []characters.Character `json:"records,omitempty"`
}

// Train fits fresh models and returns the training metrics.
func (h *ModelHandler) Train(w http.ResponseWriter, r *http.Request) {
	var req TrainRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.BadRequest(w, fmt.Errorf("invalid request body: %w", err))
			return
		}
	}

	records := req.Records
	if len(records) == 0 {
		records = h.source.Records()
	}

	metrics, err := h.model.Train(r.Context(), records)
	if err != nil {
		writeModelError(w, err)
		return
	}
	response.Success(w, metrics)
}

// Metrics returns the metrics of the last training run.
func (h *ModelHandler) Metrics(w http.ResponseWriter, _ *http.Request) {
	metrics := h.model.Metrics()
	if metrics == nil {
		response.ServiceUnavailable(w, ml.ErrNotTrained)
		return
	}
	response.Success(w, metrics)
}

// Info summarizes the current model state.
func (h *ModelHandler) Info(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, h.model.Info())
}

// Importance returns the top weighted classifier features.
func (h *ModelHandler) Importance(w http.ResponseWriter, r *http.Request) {
	topN := queryInt(r, "top_n", 10)

	ranked, err := h.model.FeatureImportance(topN)
	if err != nil {
		writeModelError(w, err)
		return
	}
	response.Success(w, ranked)
}

// Rules returns the classifier's decision paths as text.
func (h *ModelHandler) Rules(w http.ResponseWriter, r *http.Request) {
	maxDepth := queryInt(r, "max_depth", 3)

	rules, err := h.model.DecisionRules(maxDepth)
	if err != nil {
		writeModelError(w, err)
		return
	}
	response.Success(w, map[string]string{"rules": rules})
}

// Diagram returns a rendered tree diagram, base64-encoded.
func (h *ModelHandler) Diagram(w http.ResponseWriter, r *http.Request) {
	which := r.URL.Query().Get("which")
	if which == "" {
		which = ml.DiagramClassifier
	}
	maxDepth := queryInt(r, "max_depth", 3)

	diagram, err := h.model.RenderDiagram(which, maxDepth)
	if err != nil {
		writeModelError(w, err)
		return
	}
	response.Success(w, map[string]string{
		"which":          which,
		"diagram_base64": diagram,
	})
}

// ImportanceChart serves the feature importance bar chart as HTML.
func (h *ModelHandler) ImportanceChart(w http.ResponseWriter, r *http.Request) {
	topN := queryInt(r, "top_n", 10)

	rendered, err := h.model.ImportanceChart(topN)
	if err != nil {
		writeModelError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rendered) //nolint:errcheck // Response write failure is unrecoverable
}

// Load restores the most recent persisted snapshots.
func (h *ModelHandler) Load(w http.ResponseWriter, r *http.Request) {
	loaded, err := h.model.LoadLatest(r.Context())
	if err != nil {
		response.InternalError(w, err)
		return
	}
	if !loaded {
		response.NotFound(w, fmt.Errorf("no persisted model snapshot found"))
		return
	}
	response.Success(w, h.model.Info())
}

// queryInt parses an integer query parameter with a fallback.
func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
