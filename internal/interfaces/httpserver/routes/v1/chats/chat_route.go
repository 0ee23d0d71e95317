package chats

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/worknest/messaging-api/internal/domain"
	"github.com/worknest/messaging-api/internal/interfaces/httpserver/handlers/chathandler"
	"github.com/worknest/messaging-api/internal/interfaces/httpserver/middlewares"
	"github.com/worknest/messaging-api/internal/interfaces/httpserver/requests/chatreq"
	"github.com/worknest/messaging-api/internal/interfaces/httpserver/responses"
	"github.com/worknest/messaging-api/internal/utils/platformerrors"
)

type ChatRoute struct {
	handler *chathandler.ChatHandler
	log     zerolog.Logger
}

func NewChatRoute(handler *chathandler.ChatHandler, log zerolog.Logger) *ChatRoute {
	return &ChatRoute{handler: handler, log: log.With().Str("route", "chats").Logger()}
}

func (route *ChatRoute) RegisterRouter(router gin.IRouter) {
	chats := router.Group("/chats")
	chats.GET("", route.listChats)
	chats.GET("/unread", route.unreadSummary)
	chats.POST("/direct", route.getOrCreateDirect)
	chats.POST("/project", route.getOrCreateProject)
	chats.POST("/group", route.createGroup)
	chats.GET("/:chat_id", route.getChat)
	chats.PATCH("/:chat_id", route.updateGroup)
	chats.DELETE("/:chat_id", route.deleteGroup)
	chats.POST("/:chat_id/favorite", route.toggleFavorite)
}

func (route *ChatRoute) principal(c *gin.Context) (domain.Principal, bool) {
	principal, ok := middlewares.PrincipalFromContext(c)
	if !ok {
		responses.HandleNewError(c, route.log, platformerrors.ErrorTypeUnauthorized, "authentication required", "chat-route-unauthenticated")
	}
	return principal, ok
}

// listChats godoc
// @Summary List chats
// @Description Lists every chat the caller belongs to, most recently active first, with the latest message and unread count of each.
// @Tags Chats API
// @Security BearerAuth
// @Produce json
// @Success 200 {object} chatres.ChatListResponse
// @Failure 401 {object} responses.ErrorResponse
// @Failure 500 {object} responses.ErrorResponse
// @Router /v1/chats [get]
func (route *ChatRoute) listChats(c *gin.Context) {
	principal, ok := route.principal(c)
	if !ok {
		return
	}
	resp, err := route.handler.ListChats(c.Request.Context(), principal)
	if err != nil {
		responses.HandleError(c, route.log, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// unreadSummary godoc
// @Summary Global unread indicator
// @Description Reports the total number of unread messages across the caller's chats.
// @Tags Chats API
// @Security BearerAuth
// @Produce json
// @Success 200 {object} chatres.UnreadSummaryResponse
// @Failure 401 {object} responses.ErrorResponse
// @Router /v1/chats/unread [get]
func (route *ChatRoute) unreadSummary(c *gin.Context) {
	principal, ok := route.principal(c)
	if !ok {
		return
	}
	resp, err := route.handler.UnreadSummary(c.Request.Context(), principal)
	if err != nil {
		responses.HandleError(c, route.log, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// getOrCreateDirect godoc
// @Summary Open a direct chat
// @Description Returns the direct chat between the caller and userId, creating it when it does not exist yet.
// @Tags Chats API
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body chatreq.DirectChatRequest true "Other participant"
// @Success 200 {object} chatres.ResolvedChatResponse "Existing chat"
// @Success 201 {object} chatres.ResolvedChatResponse "Chat created"
// @Failure 400 {object} responses.ErrorResponse
// @Failure 401 {object} responses.ErrorResponse
// @Router /v1/chats/direct [post]
func (route *ChatRoute) getOrCreateDirect(c *gin.Context) {
	principal, ok := route.principal(c)
	if !ok {
		return
	}
	var req chatreq.DirectChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, route.log, platformerrors.ErrorTypeValidation, "invalid request body: "+err.Error(), "chat-direct-bind")
		return
	}
	resp, err := route.handler.GetOrCreateDirect(c.Request.Context(), principal, req)
	if err != nil {
		responses.HandleError(c, route.log, err)
		return
	}
	c.JSON(resolvedStatus(resp.Created), resp)
}

// getOrCreateProject godoc
// @Summary Open a project chat
// @Description Returns the chat bound to projectId, creating it with the caller as admin when it does not exist yet.
// @Tags Chats API
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body chatreq.ProjectChatRequest true "Project"
// @Success 200 {object} chatres.ResolvedChatResponse "Existing chat"
// @Success 201 {object} chatres.ResolvedChatResponse "Chat created"
// @Failure 400 {object} responses.ErrorResponse
// @Failure 401 {object} responses.ErrorResponse
// @Router /v1/chats/project [post]
func (route *ChatRoute) getOrCreateProject(c *gin.Context) {
	principal, ok := route.principal(c)
	if !ok {
		return
	}
	var req chatreq.ProjectChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, route.log, platformerrors.ErrorTypeValidation, "invalid request body: "+err.Error(), "chat-project-bind")
		return
	}
	resp, err := route.handler.GetOrCreateProject(c.Request.Context(), principal, req)
	if err != nil {
		responses.HandleError(c, route.log, err)
		return
	}
	c.JSON(resolvedStatus(resp.Created), resp)
}

// createGroup godoc
// @Summary Create a group chat
// @Description Creates a group with the caller as admin and the listed users as members.
// @Tags Chats API
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body chatreq.CreateGroupRequest true "Group"
// @Success 201 {object} chatres.ChatInfoResponse
// @Failure 400 {object} responses.ErrorResponse
// @Failure 401 {object} responses.ErrorResponse
// @Router /v1/chats/group [post]
func (route *ChatRoute) createGroup(c *gin.Context) {
	principal, ok := route.principal(c)
	if !ok {
		return
	}
	var req chatreq.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, route.log, platformerrors.ErrorTypeValidation, "invalid request body: "+err.Error(), "chat-group-bind")
		return
	}
	resp, err := route.handler.CreateGroup(c.Request.Context(), principal, req)
	if err != nil {
		responses.HandleError(c, route.log, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// getChat godoc
// @Summary Get chat info
// @Description Returns the chat with its members. Only members may read it.
// @Tags Chats API
// @Security BearerAuth
// @Produce json
// @Param chat_id path string true "Chat ID"
// @Success 200 {object} chatres.ChatInfoResponse
// @Failure 403 {object} responses.ErrorResponse
// @Failure 404 {object} responses.ErrorResponse
// @Router /v1/chats/{chat_id} [get]
func (route *ChatRoute) getChat(c *gin.Context) {
	principal, ok := route.principal(c)
	if !ok {
		return
	}
	resp, err := route.handler.GetInfo(c.Request.Context(), principal, c.Param("chat_id"))
	if err != nil {
		responses.HandleError(c, route.log, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// updateGroup godoc
// @Summary Update a group chat
// @Description Renames the group, changes its image and adds or removes members. Requires group admin or system admin.
// @Tags Chats API
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param chat_id path string true "Chat ID"
// @Param request body chatreq.UpdateGroupRequest true "Patch"
// @Success 200 {object} chatres.ChatInfoResponse
// @Failure 400 {object} responses.ErrorResponse
// @Failure 403 {object} responses.ErrorResponse
// @Failure 404 {object} responses.ErrorResponse
// @Router /v1/chats/{chat_id} [patch]
func (route *ChatRoute) updateGroup(c *gin.Context) {
	principal, ok := route.principal(c)
	if !ok {
		return
	}
	var req chatreq.UpdateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, route.log, platformerrors.ErrorTypeValidation, "invalid request body: "+err.Error(), "chat-update-bind")
		return
	}
	resp, err := route.handler.UpdateGroup(c.Request.Context(), principal, c.Param("chat_id"), req)
	if err != nil {
		responses.HandleError(c, route.log, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// deleteGroup godoc
// @Summary Delete a group chat
// @Description Deletes the group together with its members and messages.
// @Tags Chats API
// @Security BearerAuth
// @Produce json
// @Param chat_id path string true "Chat ID"
// @Success 200 {object} chatres.DeletedResponse
// @Failure 400 {object} responses.ErrorResponse
// @Failure 403 {object} responses.ErrorResponse
// @Failure 404 {object} responses.ErrorResponse
// @Router /v1/chats/{chat_id} [delete]
func (route *ChatRoute) deleteGroup(c *gin.Context) {
	principal, ok := route.principal(c)
	if !ok {
		return
	}
	resp, err := route.handler.DeleteGroup(c.Request.Context(), principal, c.Param("chat_id"))
	if err != nil {
		responses.HandleError(c, route.log, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// toggleFavorite godoc
// @Summary Toggle favorite
// @Description Flips the caller's favorite flag on the chat.
// @Tags Chats API
// @Security BearerAuth
// @Produce json
// @Param chat_id path string true "Chat ID"
// @Success 200 {object} chatres.FavoriteResponse
// @Failure 403 {object} responses.ErrorResponse
// @Failure 404 {object} responses.ErrorResponse
// @Router /v1/chats/{chat_id}/favorite [post]
func (route *ChatRoute) toggleFavorite(c *gin.Context) {
	principal, ok := route.principal(c)
	if !ok {
		return
	}
	resp, err := route.handler.ToggleFavorite(c.Request.Context(), principal, c.Param("chat_id"))
	if err != nil {
		responses.HandleError(c, route.log, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func resolvedStatus(created bool) int {
	if created {
		return http.StatusCreated
	}
	return http.StatusOK
}
