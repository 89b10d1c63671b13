package http

import (
	"github.com/gin-gonic/gin"
)

// ModelRequest names a model of a provider
type ModelRequest struct {
	Model string `json:"model"`
}

// ModelsResponse is the model history of a provider
type ModelsResponse struct {
	Provider string   `json:"provider"`
	Models   []string `json:"models"`
}

func modelsResponse(provider string, models []string) ModelsResponse {
	if models == nil {
		models = []string{}
	}
	return ModelsResponse{Provider: provider, Models: models}
}

// ListModels handles GET /api/models/:provider
func (h *Handlers) ListModels(c *gin.Context) {
	provider := c.Param("provider")
	models, err := h.services.Models.List(c.Request.Context(), provider)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, modelsResponse(provider, models))
}

// AddModel handles POST /api/models/:provider
func (h *Handlers) AddModel(c *gin.Context) {
	var req ModelRequest
	if !h.bindJSON(c, &req) {
		return
	}

	provider := c.Param("provider")
	models, err := h.services.Models.Add(c.Request.Context(), provider, req.Model)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, modelsResponse(provider, models))
}

// RemoveModel handles DELETE /api/models/:provider?model=...
func (h *Handlers) RemoveModel(c *gin.Context) {
	model := c.Query("model")
	if model == "" {
		var req ModelRequest
		if c.Request.ContentLength > 0 && !h.bindJSON(c, &req) {
			return
		}
		model = req.Model
	}

	provider := c.Param("provider")
	models, err := h.services.Models.Remove(c.Request.Context(), provider, model)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, modelsResponse(provider, models))
}

// FreeVisionModels handles GET /api/openrouter/free-vision-models
func (h *Handlers) FreeVisionModels(c *gin.Context) {
	models, err := h.services.Models.FreeVisionModels(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	if models == nil {
		models = []string{}
	}
	respondOK(c, gin.H{"models": models})
}

// GetUsage handles GET /api/usage
func (h *Handlers) GetUsage(c *gin.Context) {
	report, err := h.services.Usage.Report(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, report)
}

// ResetUsage handles DELETE /api/usage
func (h *Handlers) ResetUsage(c *gin.Context) {
	if err := h.services.Usage.Reset(c.Request.Context()); err != nil {
		h.respondError(c, err)
		return
	}
	respondOK(c, gin.H{"reset": true})
}
