package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"inboxpilot-backend/pkg/ai"

	"github.com/gin-gonic/gin"
)

// RuntimeSettings holds the Ollama settings that can change while the
// server runs. The shared OllamaService reads them through BaseURL and
// Model.
type RuntimeSettings struct {
	mu            sync.RWMutex
	OllamaBaseURL string `json:"ollama_base_url"`
	OllamaModel   string `json:"ollama_model,omitempty"`
}

func NewRuntimeSettings(ollamaBaseURL, ollamaModel string) *RuntimeSettings {
	return &RuntimeSettings{
		OllamaBaseURL: ollamaBaseURL,
		OllamaModel:   ollamaModel,
	}
}

func (s *RuntimeSettings) BaseURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.OllamaBaseURL
}

func (s *RuntimeSettings) Model() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.OllamaModel
}

func (s *RuntimeSettings) update(baseURL, model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.OllamaBaseURL = baseURL
	if model != "" {
		s.OllamaModel = model
	}
}

// UpdateOllamaSettingsRequest represents the request body for updating Ollama settings
type UpdateOllamaSettingsRequest struct {
	OllamaBaseURL string `json:"ollama_base_url" binding:"required,url"`
	OllamaModel   string `json:"ollama_model,omitempty"`
}

type SettingsHandler struct {
	settings *RuntimeSettings
	ollama   *ai.OllamaService
}

func NewSettingsHandler(settings *RuntimeSettings, ollama *ai.OllamaService) *SettingsHandler {
	return &SettingsHandler{settings: settings, ollama: ollama}
}

// GetOllamaSettings returns current Ollama configuration
// GET /api/settings/ollama
func (h *SettingsHandler) GetOllamaSettings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ollama_base_url": h.settings.BaseURL(),
		"ollama_model":    h.settings.Model(),
	})
}

// UpdateOllamaSettings updates Ollama configuration at runtime
// PUT /api/settings/ollama
func (h *SettingsHandler) UpdateOllamaSettings(c *gin.Context) {
	var req UpdateOllamaSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.settings.update(req.OllamaBaseURL, req.OllamaModel)

	c.JSON(http.StatusOK, gin.H{
		"message":         "Ollama settings updated successfully",
		"ollama_base_url": h.settings.BaseURL(),
		"ollama_model":    h.settings.Model(),
	})
}

// TestOllamaConnection tests if the Ollama server is reachable
// POST /api/settings/ollama/test
func (h *SettingsHandler) TestOllamaConnection(c *gin.Context) {
	var req struct {
		OllamaBaseURL string `json:"ollama_base_url"`
	}
	// An empty body tests the current setting.
	_ = c.ShouldBindJSON(&req)

	baseURL := req.OllamaBaseURL
	if baseURL == "" {
		baseURL = h.settings.BaseURL()
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	if err := h.ollama.Ping(ctx, baseURL); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"connected": false,
			"error":     err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"connected":       true,
		"ollama_base_url": baseURL,
	})
}
