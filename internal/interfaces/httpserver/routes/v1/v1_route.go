package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/worknest/messaging-api/internal/interfaces/httpserver/middlewares"
	"github.com/worknest/messaging-api/internal/interfaces/httpserver/routes/v1/attachments"
	"github.com/worknest/messaging-api/internal/interfaces/httpserver/routes/v1/chats"
	"github.com/worknest/messaging-api/internal/interfaces/httpserver/routes/v1/messages"
	"github.com/worknest/messaging-api/internal/interfaces/httpserver/routes/v1/polling"
	"github.com/worknest/messaging-api/internal/utils/platformerrors"
)

// Version is overridden at build time with -ldflags.
var Version = "dev"

type V1Route struct {
	chats       *chats.ChatRoute
	messages    *messages.MessageRoute
	sync        *polling.SyncRoute
	attachments *attachments.AttachmentRoute
}

func NewV1Route(
	chats *chats.ChatRoute,
	messages *messages.MessageRoute,
	sync *polling.SyncRoute,
	attachments *attachments.AttachmentRoute,
) *V1Route {
	return &V1Route{
		chats,
		messages,
		sync,
		attachments,
	}
}

// RegisterRouter mounts the authenticated /v1 API on router.
func (v1Route *V1Route) RegisterRouter(router gin.IRouter) {
	v1Router := router.Group("/v1")
	v1Router.GET("/me", GetMe)

	v1Route.chats.RegisterRouter(v1Router)
	v1Route.messages.RegisterRouter(v1Router)
	v1Route.sync.RegisterRouter(v1Router)
	v1Route.attachments.RegisterRouter(v1Router)
}

// RegisterPublicRouter mounts the unauthenticated /v1 endpoints.
func (v1Route *V1Route) RegisterPublicRouter(router gin.IRouter) {
	v1Router := router.Group("/v1")
	v1Router.GET("/version", GetVersion)
}

type MeResponse struct {
	ID         string   `json:"id"`
	Subject    string   `json:"subject"`
	Username   string   `json:"username,omitempty"`
	Email      string   `json:"email,omitempty"`
	Name       string   `json:"name"`
	Picture    string   `json:"picture,omitempty"`
	Roles      []string `json:"roles"`
	SystemRole string   `json:"systemRole"`
	AuthMethod string   `json:"authMethod"`
}

// GetMe godoc
// @Summary Current user
// @Description Returns the authenticated caller as the API sees it.
// @Tags Server API
// @Security BearerAuth
// @Produce json
// @Success 200 {object} MeResponse
// @Failure 401 {object} responses.ErrorResponse
// @Router /v1/me [get]
func GetMe(c *gin.Context) {
	principal, ok := middlewares.PrincipalFromContext(c)
	if !ok {
		platformerrors.WriteUnauthorized(c, "authentication required")
		return
	}
	roles := principal.Roles
	if roles == nil {
		roles = []string{}
	}
	c.JSON(http.StatusOK, MeResponse{
		ID:         principal.ID,
		Subject:    principal.Subject,
		Username:   principal.Username,
		Email:      principal.Email,
		Name:       principal.DisplayName(),
		Picture:    principal.Picture,
		Roles:      roles,
		SystemRole: string(principal.SystemRole),
		AuthMethod: string(principal.AuthMethod),
	})
}

// GetVersion godoc
// @Summary Get API build version
// @Tags Server API
// @Produce json
// @Success 200 {object} map[string]string
// @Router /v1/version [get]
func GetVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"version": Version})
}
