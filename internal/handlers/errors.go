package handlers

import (
	"net/http"
	"strconv"

	"github.com/anonto42/rehab-social/backend/internal/apperr"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Hint    string `json:"hint,omitempty"`
}

type errorResponse struct {
	Success bool      `json:"success"`
	Error   errorBody `json:"error"`
}

// ErrorHandler renders apperr errors, and echo's own HTTP errors, as
// {"success":false,"error":{...}} with the matching status.
func ErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := describeError(err)
		if status >= http.StatusInternalServerError {
			log.Error("Request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, errorResponse{Success: false, Error: body})
		}
		if err != nil {
			log.Warn("Could not write error response", zap.Error(err))
		}
	}
}

func describeError(err error) (int, errorBody) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok {
			msg = s
		}
		return he.Code, errorBody{Message: msg, Code: codeForStatus(he.Code)}
	}

	kind := apperr.KindOf(err)
	return apperr.HTTPStatus(kind), errorBody{
		Message: apperr.PublicMessage(err),
		Code:    string(kind),
		Hint:    apperr.HintOf(err),
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return string(apperr.KindInvalidRequest)
	case http.StatusUnauthorized:
		return string(apperr.KindUnauthenticated)
	case http.StatusForbidden:
		return string(apperr.KindForbidden)
	case http.StatusNotFound:
		return string(apperr.KindNotFound)
	case http.StatusConflict:
		return string(apperr.KindConflict)
	}
	if status >= http.StatusInternalServerError {
		return string(apperr.KindInternal)
	}
	return "http_" + strconv.Itoa(status)
}

// paramID parses a positive numeric path parameter.
func paramID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		return 0, apperr.InvalidRequest("invalid %s", name)
	}
	return uint(id), nil
}

// bind decodes and validates the request body.
func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return apperr.InvalidRequest("invalid request payload")
	}
	return c.Validate(dst)
}
