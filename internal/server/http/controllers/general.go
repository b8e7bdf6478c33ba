package controllers

import (
	"net/http"

	"github.com/MrMoose/rescue/internal/runtime"
)

// GeneralController handles health and namespace endpoints.
type GeneralController struct {
	rt *runtime.Runtime
}

// NewGeneralController creates a new general controller.
func NewGeneralController(rt *runtime.Runtime) *GeneralController {
	return &GeneralController{rt: rt}
}

// RegisterRoutes registers general routes with the given mux.
//
// This method sets up HTTP endpoints for:
// - Health checks (/v1/healthz)
// - Namespace management (/v1/namespaces, /v1/ns/create)
func (c *GeneralController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/namespaces", c.handleListNamespaces)
	mux.HandleFunc("/v1/healthz", c.handleHealth)
	mux.HandleFunc("/v1/ns/create", c.handleNSCreate)
}

// handleListNamespaces lists all namespaces.
func (c *GeneralController) handleListNamespaces(w http.ResponseWriter, r *http.Request) {
	list, err := c.rt.Namespaces(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list namespaces")
		return
	}
	writeJSON(w, map[string]any{"namespaces": anyList(list)})
}

// handleHealth returns 200 OK with {"status": "ok"} if healthy, 503 otherwise.
func (c *GeneralController) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := c.rt.CheckHealth(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "not_serving")
		return
	}
	writeJSON(w, map[string]any{"status": "ok"})
}

func (c *GeneralController) handleNSCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	req, err := readObject(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	meta, err := c.rt.EnsureNamespace(r.Context(), req.GetFields()["namespace"].GetStringValue())
	if err != nil {
		writeError(w, namespaceStatus(err), err.Error())
		return
	}
	writeCreated(w, namespaceFields(meta))
}
