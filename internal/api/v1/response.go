package v1

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/redtrack-io/redtrack/internal/core"
	"github.com/redtrack-io/redtrack/internal/middleware"
	"github.com/redtrack-io/redtrack/internal/service"
	"github.com/redtrack-io/redtrack/internal/workflow"
)

func sendSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func sendCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": data})
}

func sendError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": message})
}

// handleServiceError translates the core error taxonomy into a response.
func handleServiceError(c *gin.Context, err error) {
	var (
		fieldErr *core.FieldError
		docErr   *workflow.ValidationError
	)
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		sendError(c, http.StatusUnauthorized, err.Error())
	case core.IsAuthorization(err):
		sendError(c, http.StatusForbidden, core.ErrAuthorization.Error())
	case core.IsNotFound(err):
		sendError(c, http.StatusNotFound, err.Error())
	case core.IsConflict(err):
		sendError(c, http.StatusConflict, err.Error())
	case errors.As(err, &docErr):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
			"success":  false,
			"error":    "invalid workflow document",
			"problems": docErr.Problems,
		})
	case errors.As(err, &fieldErr) && core.IsValidation(err):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
			"success": false,
			"error":   fieldErr.Err.Error(),
			"field":   fieldErr.Field,
		})
	case core.IsValidation(err):
		sendError(c, http.StatusUnprocessableEntity, err.Error())
	default:
		log.Printf("api: %s %s request_id=%s: %v", c.Request.Method, c.FullPath(), middleware.GetRequestID(c), err)
		sendError(c, http.StatusInternalServerError, "internal server error")
	}
}

// paramInt reads a positive integer path parameter, answering 400 when it is malformed.
func paramInt(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		sendError(c, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

// currentUser returns the authenticated caller, answering 401 when absent.
func currentUser(c *gin.Context) (int, bool) {
	id, ok := middleware.UserID(c)
	if !ok {
		sendError(c, http.StatusUnauthorized, "User not authenticated")
	}
	return id, ok
}
