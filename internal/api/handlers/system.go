package handlers

import (
	"net/http"

	"github.com/charquest/ml-service/internal/api/response"
	"github.com/charquest/ml-service/internal/version"
)

// SystemHandler handles service-level endpoints.
type SystemHandler struct{}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler() *SystemHandler {
	return &SystemHandler{}
}

// Version returns the running service version.
func (h *SystemHandler) Version(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, map[string]string{"version": version.GetVersion()})
}
