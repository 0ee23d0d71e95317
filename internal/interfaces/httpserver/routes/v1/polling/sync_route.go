package polling

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/worknest/messaging-api/internal/domain"
	"github.com/worknest/messaging-api/internal/interfaces/httpserver/handlers/synchandler"
	"github.com/worknest/messaging-api/internal/interfaces/httpserver/middlewares"
	"github.com/worknest/messaging-api/internal/interfaces/httpserver/requests/messagereq"
	"github.com/worknest/messaging-api/internal/interfaces/httpserver/responses"
	"github.com/worknest/messaging-api/internal/utils/platformerrors"
)

// SyncRoute exposes typing presence and the polling snapshot.
type SyncRoute struct {
	handler *synchandler.SyncHandler
	log     zerolog.Logger
}

func NewSyncRoute(handler *synchandler.SyncHandler, log zerolog.Logger) *SyncRoute {
	return &SyncRoute{handler: handler, log: log.With().Str("route", "sync").Logger()}
}

func (route *SyncRoute) RegisterRouter(router gin.IRouter) {
	chat := router.Group("/chats/:chat_id")
	chat.PUT("/typing", route.setTyping)
	chat.GET("/typing", route.typingUsers)
	chat.GET("/sync", route.snapshot)
}

func (route *SyncRoute) principal(c *gin.Context) (domain.Principal, bool) {
	principal, ok := middlewares.PrincipalFromContext(c)
	if !ok {
		responses.HandleNewError(c, route.log, platformerrors.ErrorTypeUnauthorized, "authentication required", "sync-route-unauthenticated")
	}
	return principal, ok
}

// setTyping godoc
// @Summary Report typing
// @Description Starts or stops the caller's typing signal. A signal expires after five seconds without a refresh.
// @Tags Sync API
// @Security BearerAuth
// @Accept json
// @Param chat_id path string true "Chat ID"
// @Param request body messagereq.TypingRequest true "Typing state"
// @Success 204
// @Failure 400 {object} responses.ErrorResponse
// @Failure 403 {object} responses.ErrorResponse
// @Router /v1/chats/{chat_id}/typing [put]
func (route *SyncRoute) setTyping(c *gin.Context) {
	principal, ok := route.principal(c)
	if !ok {
		return
	}
	var req messagereq.TypingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, route.log, platformerrors.ErrorTypeValidation, "invalid request body: "+err.Error(), "typing-bind")
		return
	}
	if err := route.handler.SetTyping(c.Request.Context(), principal, c.Param("chat_id"), req); err != nil {
		responses.HandleError(c, route.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// typingUsers godoc
// @Summary Who is typing
// @Description Lists the other members currently typing in the chat.
// @Tags Sync API
// @Security BearerAuth
// @Produce json
// @Param chat_id path string true "Chat ID"
// @Success 200 {object} messageres.TypingResponse
// @Failure 403 {object} responses.ErrorResponse
// @Router /v1/chats/{chat_id}/typing [get]
func (route *SyncRoute) typingUsers(c *gin.Context) {
	principal, ok := route.principal(c)
	if !ok {
		return
	}
	resp, err := route.handler.TypingUsers(c.Request.Context(), principal, c.Param("chat_id"))
	if err != nil {
		responses.HandleError(c, route.log, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// snapshot godoc
// @Summary Poll for changes
// @Description Returns messages created, edited or deleted after the (since, after) position, plus typing users and the unread count. Feed cursor back as since and cursorId as after on the next poll, and merge messages by id since recent rows can repeat.
// @Tags Sync API
// @Security BearerAuth
// @Produce json
// @Param chat_id path string true "Chat ID"
// @Param since query string false "RFC 3339 cursor"
// @Param after query string false "Cursor message id"
// @Param limit query int false "Maximum messages"
// @Success 200 {object} messageres.SyncResponse
// @Failure 400 {object} responses.ErrorResponse
// @Failure 403 {object} responses.ErrorResponse
// @Router /v1/chats/{chat_id}/sync [get]
func (route *SyncRoute) snapshot(c *gin.Context) {
	principal, ok := route.principal(c)
	if !ok {
		return
	}
	var query messagereq.SyncQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		responses.HandleNewError(c, route.log, platformerrors.ErrorTypeValidation, "invalid query parameters: "+err.Error(), "sync-bind")
		return
	}
	resp, err := route.handler.Snapshot(c.Request.Context(), principal, c.Param("chat_id"), query)
	if err != nil {
		responses.HandleError(c, route.log, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
