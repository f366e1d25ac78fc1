package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/community-backend/internal/lifecycle"
)

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error errorPayload `json:"error"`
}

func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{
		Error: errorPayload{
			Code:    code,
			Message: message,
		},
	}
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, lifecycle.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, lifecycle.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, lifecycle.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, lifecycle.ErrInvalidTransition),
		errors.Is(err, lifecycle.ErrAlreadyResolved),
		errors.Is(err, lifecycle.ErrAlreadySubmitted),
		errors.Is(err, lifecycle.ErrSubjectUnavailable):
		return http.StatusConflict
	case errors.Is(err, lifecycle.ErrUnknownRecipient):
		return http.StatusUnprocessableEntity
	case errors.Is(err, lifecycle.ErrStorageFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err in the error envelope. Unclassified errors keep
// their detail out of the response.
func writeError(c echo.Context, err error, fallback string) error {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		c.Logger().Error(err)
		return c.JSON(status, NewErrorResponse("internal_error", fallback))
	}
	return c.JSON(status, NewErrorResponse(lifecycle.Code(err), err.Error()))
}

func currentUID(c echo.Context) (string, error) {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return "", c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	return uid, nil
}
