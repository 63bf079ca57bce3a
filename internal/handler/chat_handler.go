package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edubridge-api/internal/models"
	"github.com/noah-isme/edubridge-api/internal/service"
	appErrors "github.com/noah-isme/edubridge-api/pkg/errors"
	"github.com/noah-isme/edubridge-api/pkg/response"
)

// ChatHandler wires HTTP endpoints to the chat service.
type ChatHandler struct {
	service *service.ChatService
}

// NewChatHandler creates a new handler.
func NewChatHandler(svc *service.ChatService) *ChatHandler {
	return &ChatHandler{service: svc}
}

// ListMessages godoc
// @Summary List visible messages
// @Tags Chat
// @Produce json
// @Param mode query string false "public or private" default(public)
// @Param channel query string false "students or teachers" default(students)
// @Param peer_id query string false "Narrow private mode to one peer"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /chat/messages [get]
func (h *ChatHandler) ListMessages(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	mode := models.VisibilityMode(c.DefaultQuery("mode", string(models.VisibilityPublic)))
	if mode != models.VisibilityPublic && mode != models.VisibilityPrivate {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "mode must be public or private"))
		return
	}
	channel := models.ChatChannel(c.DefaultQuery("channel", string(models.ChannelStudents)))
	if mode == models.VisibilityPublic && !channel.Valid() {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown channel"))
		return
	}

	viewer := models.ViewerContext{
		UserID:         claims.UserID,
		Role:           claims.Role,
		Section:        claims.Section,
		Mode:           mode,
		Channel:        channel,
		SelectedPeerID: c.Query("peer_id"),
	}

	messages, err := h.service.ListMessages(c.Request.Context(), viewer)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, messages, nil)
}

// Send godoc
// @Summary Send a message
// @Tags Chat
// @Accept json
// @Produce json
// @Param payload body service.SendRequest true "Message"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /chat/messages [post]
func (h *ChatHandler) Send(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid message payload"))
		return
	}

	msg, err := h.service.SendMessage(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, msg)
}

// Contacts godoc
// @Summary List private-message contacts
// @Tags Chat
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /chat/contacts [get]
func (h *ChatHandler) Contacts(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	contacts, err := h.service.ListContacts(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, contacts, nil)
}
