package delivery

import (
	"errors"
	"net/http"
	"strings"

	authdelivery "inboxpilot-backend/internal/auth/delivery"
	"inboxpilot-backend/internal/command/usecase"

	"github.com/gin-gonic/gin"
)

type ChatRequest struct {
	Prompt string `json:"prompt"`
}

type CommandHandler struct {
	commandUsecase usecase.CommandUsecase
}

func NewCommandHandler(commandUsecase usecase.CommandUsecase) *CommandHandler {
	return &CommandHandler{commandUsecase: commandUsecase}
}

func (h *CommandHandler) Chat(c *gin.Context) {
	acc, ok := authdelivery.CurrentAccount(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Prompt) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Prompt is required"})
		return
	}

	reply, err := h.commandUsecase.Chat(c.Request.Context(), acc.ID, req.Prompt)
	if err != nil {
		if errors.Is(err, usecase.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, reply)
}
