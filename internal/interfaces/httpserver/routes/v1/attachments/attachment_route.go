package attachments

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/worknest/messaging-api/internal/interfaces/httpserver/handlers/attachmenthandler"
	"github.com/worknest/messaging-api/internal/interfaces/httpserver/middlewares"
	"github.com/worknest/messaging-api/internal/interfaces/httpserver/responses"
	"github.com/worknest/messaging-api/internal/utils/platformerrors"
)

type AttachmentRoute struct {
	handler *attachmenthandler.AttachmentHandler
	log     zerolog.Logger
}

func NewAttachmentRoute(handler *attachmenthandler.AttachmentHandler, log zerolog.Logger) *AttachmentRoute {
	return &AttachmentRoute{handler: handler, log: log.With().Str("route", "attachments").Logger()}
}

func (route *AttachmentRoute) RegisterRouter(router gin.IRouter) {
	router.POST("/attachments", route.upload)
	router.GET("/attachments/*key", route.download)
}

// upload godoc
// @Summary Upload an attachment
// @Description Stores a file and returns the descriptor to reference from a message.
// @Tags Attachments API
// @Security BearerAuth
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "File to upload"
// @Success 201 {object} messageres.Attachment
// @Failure 400 {object} responses.ErrorResponse
// @Failure 413 {object} responses.ErrorResponse
// @Router /v1/attachments [post]
func (route *AttachmentRoute) upload(c *gin.Context) {
	principal, ok := middlewares.PrincipalFromContext(c)
	if !ok {
		responses.HandleNewError(c, route.log, platformerrors.ErrorTypeUnauthorized, "authentication required", "attachment-route-unauthenticated")
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		responses.HandleNewError(c, route.log, platformerrors.ErrorTypeValidation, "multipart field 'file' is required", "attachment-form-file")
		return
	}
	file, err := header.Open()
	if err != nil {
		responses.HandleNewError(c, route.log, platformerrors.ErrorTypeValidation, "unable to read uploaded file", "attachment-form-open")
		return
	}
	defer file.Close()

	resp, err := route.handler.Upload(c.Request.Context(), principal, header.Filename, file)
	if err != nil {
		responses.HandleError(c, route.log, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// download godoc
// @Summary Download an attachment
// @Description Redirects to a short-lived object URL when the backend supports it, otherwise streams the file.
// @Tags Attachments API
// @Security BearerAuth
// @Param key path string true "Attachment key"
// @Success 200 {file} binary
// @Success 302
// @Failure 404 {object} responses.ErrorResponse
// @Router /v1/attachments/{key} [get]
func (route *AttachmentRoute) download(c *gin.Context) {
	principal, ok := middlewares.PrincipalFromContext(c)
	if !ok {
		responses.HandleNewError(c, route.log, platformerrors.ErrorTypeUnauthorized, "authentication required", "attachment-route-unauthenticated")
		return
	}
	download, err := route.handler.Open(c.Request.Context(), principal, c.Param("key"))
	if err != nil {
		responses.HandleError(c, route.log, err)
		return
	}
	if download.RedirectURL != "" {
		c.Redirect(http.StatusFound, download.RedirectURL)
		return
	}
	defer download.Body.Close()

	c.Header("Content-Type", download.ContentType)
	c.Header("Cache-Control", "private, max-age=300")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, download.Body); err != nil {
		route.log.Warn().Err(err).Str("key", c.Param("key")).Msg("attachment stream interrupted")
	}
}
