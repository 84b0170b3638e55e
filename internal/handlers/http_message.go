package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/thereayou/notiflow/internal/handlers/dto"
	"github.com/thereayou/notiflow/internal/middleware"
	"github.com/thereayou/notiflow/internal/models"
	"github.com/thereayou/notiflow/internal/service"
)

// HTTPMessageHandler HTTP адаптер поверх того же сервиса, что и WebSocket
type HTTPMessageHandler struct {
	svc *service.MessageService
	log *zap.Logger
}

func NewHTTPMessageHandler(svc *service.MessageService, log *zap.Logger) *HTTPMessageHandler {
	return &HTTPMessageHandler{svc: svc, log: log}
}

// SendMessage отправляет сообщение через HTTP (альтернатива WebSocket)
func (h *HTTPMessageHandler) SendMessage(c *gin.Context) {
	role := c.MustGet(middleware.RoleKey).(models.Role)
	if role != models.RoleOperator {
		c.JSON(http.StatusForbidden, gin.H{"error": "only operators can send messages"})
		return
	}

	senderID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	message, err := h.svc.Send(c.Request.Context(), service.SendInput{
		RecipientID:  req.RecipientID,
		SenderID:     senderID,
		Title:        req.Title,
		Body:         req.Body,
		Category:     models.Category(req.Category),
		ReferenceIDs: req.ReferenceIDs,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, message)
}

// ListMessages получает сообщения получателя с фильтрами и пагинацией
func (h *HTTPMessageHandler) ListMessages(c *gin.Context) {
	recipientID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	input := service.ListInput{
		Category:   c.Query("category"),
		UnreadOnly: c.Query("unread") == "true",
	}

	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			input.Limit = parsed
		}
	}

	if before := c.Query("before"); before != "" {
		if id, err := uuid.Parse(before); err == nil {
			input.Before = &id
		}
	}

	messages, err := h.svc.List(c.Request.Context(), recipientID, input)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"messages": messages,
		"has_more": input.Limit > 0 && len(messages) == input.Limit,
	})
}

// UnreadCount количество непрочитанных для бейджа
func (h *HTTPMessageHandler) UnreadCount(c *gin.Context) {
	recipientID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	count, err := h.svc.UnreadCount(c.Request.Context(), recipientID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"unread": count})
}

// MarkRead отмечает сообщение прочитанным
func (h *HTTPMessageHandler) MarkRead(c *gin.Context) {
	requesterID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	messageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	message, err := h.svc.MarkRead(c.Request.Context(), messageID, requesterID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, message)
}

func (h *HTTPMessageHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
	default:
		// Ошибка хранилища: отправитель может повторить запрос
		h.log.Error("message request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "temporary failure, try again"})
	}
}
