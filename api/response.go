package api

import (
	"errors"
	"net/http"

	"github.com/michaelpento.lv/swapquote/types"

	"github.com/gin-gonic/gin"
)

type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

func Error(c *gin.Context, status int, err string) {
	c.AbortWithStatusJSON(status, Response{
		Success: false,
		Error:   err,
	})
}

func BadRequest(c *gin.Context, err string) {
	Error(c, http.StatusBadRequest, err)
}

func NotFound(c *gin.Context, err string) {
	Error(c, http.StatusNotFound, err)
}

func InternalError(c *gin.Context, err string) {
	Error(c, http.StatusInternalServerError, err)
}

// StatusFor maps a service error to its HTTP status. A missing route is an
// outcome and is checked before the client errors it may be joined with.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, types.ErrNoRouteFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrInvalidArgument),
		errors.Is(err, types.ErrUnknownNetwork),
		errors.Is(err, types.ErrTokenLookup):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// HandleError writes err with its mapped status. Internal failures are not
// echoed to the client.
func HandleError(c *gin.Context, err error) {
	status := StatusFor(err)
	switch status {
	case http.StatusNotFound:
		NotFound(c, types.ErrNoRouteFound.Error())
	case http.StatusInternalServerError:
		InternalError(c, "internal error")
	default:
		Error(c, status, err.Error())
	}
}
