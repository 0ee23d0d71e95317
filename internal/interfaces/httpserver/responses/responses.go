// Package responses holds the shared HTTP error helpers.
package responses

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/worknest/messaging-api/internal/utils/platformerrors"
)

// ErrorResponse is the error envelope documented for every endpoint.
type ErrorResponse = platformerrors.HTTPErrorResponse

// HandleError writes err and records it on the gin context for the tracing
// and logging middlewares.
func HandleError(c *gin.Context, log zerolog.Logger, err error) {
	_ = c.Error(err)
	platformerrors.WriteError(c, err, log)
}

// HandleNewError writes a typed error raised by the route layer itself.
func HandleNewError(c *gin.Context, log zerolog.Logger, errorType platformerrors.ErrorType, message, code string) {
	HandleError(c, log, platformerrors.NewError(c.Request.Context(), platformerrors.LayerRoute, errorType, message, nil, code))
}
