package messages

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/worknest/messaging-api/internal/domain"
	"github.com/worknest/messaging-api/internal/interfaces/httpserver/handlers/messagehandler"
	"github.com/worknest/messaging-api/internal/interfaces/httpserver/middlewares"
	"github.com/worknest/messaging-api/internal/interfaces/httpserver/requests/messagereq"
	"github.com/worknest/messaging-api/internal/interfaces/httpserver/responses"
	"github.com/worknest/messaging-api/internal/utils/platformerrors"
)

type MessageRoute struct {
	handler *messagehandler.MessageHandler
	log     zerolog.Logger
}

func NewMessageRoute(handler *messagehandler.MessageHandler, log zerolog.Logger) *MessageRoute {
	return &MessageRoute{handler: handler, log: log.With().Str("route", "messages").Logger()}
}

func (route *MessageRoute) RegisterRouter(router gin.IRouter) {
	chat := router.Group("/chats/:chat_id")
	chat.GET("/messages", route.listMessages)
	chat.POST("/messages", route.sendMessage)
	chat.GET("/search", route.searchMessages)
	chat.GET("/attachments", route.listAttachments)
	chat.POST("/read", route.markRead)
	chat.GET("/unread", route.unreadCount)

	messages := router.Group("/messages")
	messages.PATCH("/:message_id", route.editMessage)
	messages.DELETE("/:message_id", route.deleteMessage)
}

func (route *MessageRoute) principal(c *gin.Context) (domain.Principal, bool) {
	principal, ok := middlewares.PrincipalFromContext(c)
	if !ok {
		responses.HandleNewError(c, route.log, platformerrors.ErrorTypeUnauthorized, "authentication required", "message-route-unauthenticated")
	}
	return principal, ok
}

// listMessages godoc
// @Summary List messages
// @Description Returns a page of the chat's history, oldest first. Pass nextBefore from the previous page as before to go further back.
// @Tags Messages API
// @Security BearerAuth
// @Produce json
// @Param chat_id path string true "Chat ID"
// @Param limit query int false "Page size"
// @Param before query string false "Message ID to page before"
// @Success 200 {object} messageres.MessageListResponse
// @Failure 400 {object} responses.ErrorResponse
// @Failure 403 {object} responses.ErrorResponse
// @Failure 404 {object} responses.ErrorResponse
// @Router /v1/chats/{chat_id}/messages [get]
func (route *MessageRoute) listMessages(c *gin.Context) {
	principal, ok := route.principal(c)
	if !ok {
		return
	}
	var query messagereq.ListMessagesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		responses.HandleNewError(c, route.log, platformerrors.ErrorTypeValidation, "invalid query parameters: "+err.Error(), "message-list-bind")
		return
	}
	resp, err := route.handler.List(c.Request.Context(), principal, c.Param("chat_id"), query)
	if err != nil {
		responses.HandleError(c, route.log, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// sendMessage godoc
// @Summary Send a message
// @Description Posts a message with text, attachments or both. Mentions are extracted from the content.
// @Tags Messages API
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param chat_id path string true "Chat ID"
// @Param request body messagereq.SendMessageRequest true "Message"
// @Success 201 {object} messageres.MessageResponse
// @Failure 400 {object} responses.ErrorResponse
// @Failure 403 {object} responses.ErrorResponse
// @Failure 404 {object} responses.ErrorResponse
// @Router /v1/chats/{chat_id}/messages [post]
func (route *MessageRoute) sendMessage(c *gin.Context) {
	principal, ok := route.principal(c)
	if !ok {
		return
	}
	var req messagereq.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, route.log, platformerrors.ErrorTypeValidation, "invalid request body: "+err.Error(), "message-send-bind")
		return
	}
	resp, err := route.handler.Send(c.Request.Context(), principal, c.Param("chat_id"), req)
	if err != nil {
		responses.HandleError(c, route.log, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// editMessage godoc
// @Summary Edit a message
// @Description Replaces the content of the caller's own message and marks it edited.
// @Tags Messages API
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param message_id path string true "Message ID"
// @Param request body messagereq.EditMessageRequest true "New content"
// @Success 200 {object} messageres.MessageResponse
// @Failure 400 {object} responses.ErrorResponse
// @Failure 403 {object} responses.ErrorResponse
// @Failure 404 {object} responses.ErrorResponse
// @Router /v1/messages/{message_id} [patch]
func (route *MessageRoute) editMessage(c *gin.Context) {
	principal, ok := route.principal(c)
	if !ok {
		return
	}
	var req messagereq.EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, route.log, platformerrors.ErrorTypeValidation, "invalid request body: "+err.Error(), "message-edit-bind")
		return
	}
	resp, err := route.handler.Edit(c.Request.Context(), principal, c.Param("message_id"), req)
	if err != nil {
		responses.HandleError(c, route.log, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// deleteMessage godoc
// @Summary Delete a message
// @Description Soft-deletes the caller's own message and returns the tombstone.
// @Tags Messages API
// @Security BearerAuth
// @Produce json
// @Param message_id path string true "Message ID"
// @Success 200 {object} messageres.MessageResponse
// @Failure 403 {object} responses.ErrorResponse
// @Failure 404 {object} responses.ErrorResponse
// @Router /v1/messages/{message_id} [delete]
func (route *MessageRoute) deleteMessage(c *gin.Context) {
	principal, ok := route.principal(c)
	if !ok {
		return
	}
	resp, err := route.handler.Delete(c.Request.Context(), principal, c.Param("message_id"))
	if err != nil {
		responses.HandleError(c, route.log, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// searchMessages godoc
// @Summary Search a chat
// @Description Case-insensitive substring search over live messages, newest first, at most 50 results.
// @Tags Messages API
// @Security BearerAuth
// @Produce json
// @Param chat_id path string true "Chat ID"
// @Param q query string true "Search text"
// @Success 200 {object} messageres.SearchResponse
// @Failure 400 {object} responses.ErrorResponse
// @Failure 403 {object} responses.ErrorResponse
// @Router /v1/chats/{chat_id}/search [get]
func (route *MessageRoute) searchMessages(c *gin.Context) {
	principal, ok := route.principal(c)
	if !ok {
		return
	}
	var query messagereq.SearchQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		responses.HandleNewError(c, route.log, platformerrors.ErrorTypeValidation, "invalid query parameters: "+err.Error(), "message-search-bind")
		return
	}
	resp, err := route.handler.Search(c.Request.Context(), principal, c.Param("chat_id"), strings.TrimSpace(query.Q))
	if err != nil {
		responses.HandleError(c, route.log, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// listAttachments godoc
// @Summary List chat attachments
// @Description Returns every attachment posted in the chat, newest first.
// @Tags Messages API
// @Security BearerAuth
// @Produce json
// @Param chat_id path string true "Chat ID"
// @Success 200 {object} messageres.ChatAttachmentListResponse
// @Failure 403 {object} responses.ErrorResponse
// @Failure 404 {object} responses.ErrorResponse
// @Router /v1/chats/{chat_id}/attachments [get]
func (route *MessageRoute) listAttachments(c *gin.Context) {
	principal, ok := route.principal(c)
	if !ok {
		return
	}
	resp, err := route.handler.Attachments(c.Request.Context(), principal, c.Param("chat_id"))
	if err != nil {
		responses.HandleError(c, route.log, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// markRead godoc
// @Summary Mark a chat read
// @Description Moves the caller's read marker to now. The marker never moves backwards.
// @Tags Messages API
// @Security BearerAuth
// @Produce json
// @Param chat_id path string true "Chat ID"
// @Success 200 {object} messageres.ReadResponse
// @Failure 403 {object} responses.ErrorResponse
// @Failure 404 {object} responses.ErrorResponse
// @Router /v1/chats/{chat_id}/read [post]
func (route *MessageRoute) markRead(c *gin.Context) {
	principal, ok := route.principal(c)
	if !ok {
		return
	}
	resp, err := route.handler.MarkRead(c.Request.Context(), principal, c.Param("chat_id"))
	if err != nil {
		responses.HandleError(c, route.log, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// unreadCount godoc
// @Summary Unread count
// @Description Counts messages from other users newer than the caller's read marker.
// @Tags Messages API
// @Security BearerAuth
// @Produce json
// @Param chat_id path string true "Chat ID"
// @Success 200 {object} messageres.UnreadCountResponse
// @Failure 403 {object} responses.ErrorResponse
// @Failure 404 {object} responses.ErrorResponse
// @Router /v1/chats/{chat_id}/unread [get]
func (route *MessageRoute) unreadCount(c *gin.Context) {
	principal, ok := route.principal(c)
	if !ok {
		return
	}
	resp, err := route.handler.UnreadCount(c.Request.Context(), principal, c.Param("chat_id"))
	if err != nil {
		responses.HandleError(c, route.log, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
