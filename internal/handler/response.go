package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	apperrors "github.com/jwalitptl/clinic-queue-api/pkg/errors"
)

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

var validate = validator.New()

// BindAndValidate decodes the JSON body into req and runs struct
// validation. On failure it writes the 400 response and returns false.
func BindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(err.Error()))
		return false
	}
	return true
}

// Error writes the response for a service error, mapping the error kind
// to an HTTP status. Unrecognized errors become opaque 500s.
func Error(c *gin.Context, err error) {
	switch apperrors.Kind(err) {
	case apperrors.ErrNotFound:
		c.JSON(http.StatusNotFound, NewErrorResponse(err.Error()))
	case apperrors.ErrInvalidState:
		c.JSON(http.StatusConflict, NewErrorResponse(err.Error()))
	case apperrors.ErrConflict:
		c.JSON(http.StatusConflict, NewErrorResponse(err.Error()))
	case apperrors.ErrPolicyViolation:
		c.JSON(http.StatusUnprocessableEntity, NewErrorResponse(err.Error()))
	case apperrors.ErrUnauthorized:
		c.JSON(http.StatusForbidden, NewErrorResponse(err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, NewErrorResponse("internal server error"))
	}
}
