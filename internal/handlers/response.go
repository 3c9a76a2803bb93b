package handlers

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/visaflow/visaflow-backend/internal/apperr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// RespondAppError maps a service error to its HTTP status. In production
// mode the wrapped cause is stripped so provider detail never leaks.
func RespondAppError(c *gin.Context, err error) {
	msg := err.Error()
	if os.Getenv("APP_MODE") == "production" {
		msg = apperr.PublicMessage(err)
	}
	c.JSON(apperr.HTTPStatus(err), ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    string(apperr.KindOf(err)),
		},
	})
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}
