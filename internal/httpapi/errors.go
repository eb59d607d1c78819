package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/goliatone/go-docfill/pkg/docerr"
)

type errorBody struct {
	Error errorView `json:"error"`
}

type errorView struct {
	Kind     string           `json:"kind,omitempty"`
	Message  string           `json:"message"`
	Template string           `json:"template,omitempty"`
	Stage    string           `json:"stage,omitempty"`
	Fields   []fieldErrorView `json:"fields,omitempty"`
}

type fieldErrorView struct {
	Field    string   `json:"field"`
	Kind     string   `json:"kind"`
	Message  string   `json:"message"`
	Expected string   `json:"expected,omitempty"`
	Choices  []string `json:"choices,omitempty"`
}

// StatusFor maps a pipeline error to an HTTP status.
func StatusFor(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	if kind, ok := docerr.KindOf(err); ok {
		return statusForKind(kind)
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func statusForKind(kind docerr.Kind) int {
	switch {
	case kind == docerr.KindNotFound:
		return http.StatusNotFound
	case kind.Binding():
		return http.StatusUnprocessableEntity
	case kind == docerr.KindUnsupportedFormat:
		return http.StatusBadRequest
	case kind == docerr.KindConversionFailed:
		return http.StatusBadGateway
	default:
		// InvalidMetadata and RenderFailed are server side template defects.
		return http.StatusInternalServerError
	}
}

func describe(err error) errorView {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return errorView{Message: fmt.Sprint(he.Message)}
	}

	var bindErrs *docerr.BindingErrors
	if errors.As(err, &bindErrs) {
		view := errorView{
			Kind:     "invalid_values",
			Message:  "submitted values failed validation",
			Template: bindErrs.Template,
			Stage:    bindErrs.Stage,
		}
		for _, fe := range bindErrs.Errors {
			view.Fields = append(view.Fields, fieldErrorView{
				Field:    fe.Field,
				Kind:     string(fe.Kind),
				Message:  fe.Message,
				Expected: fe.Expected,
				Choices:  fe.Choices,
			})
		}
		return view
	}

	var typed *docerr.Error
	if errors.As(err, &typed) {
		msg := typed.Message
		if typed.Err != nil {
			if msg != "" {
				msg += ": "
			}
			msg += typed.Err.Error()
		}
		return errorView{
			Kind:     string(typed.Kind),
			Message:  msg,
			Template: typed.Template,
			Stage:    typed.Stage,
		}
	}

	if StatusFor(err) == http.StatusInternalServerError {
		return errorView{Message: http.StatusText(http.StatusInternalServerError)}
	}
	return errorView{Message: err.Error()}
}

// handleError is the echo error handler: every failure becomes a JSON
// error body.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status := StatusFor(err)
	s.logFailure(c, status, err)

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	if writeErr := c.JSON(status, errorBody{Error: describe(err)}); writeErr != nil {
		s.logger.Error().Err(writeErr).Msg("write error response")
	}
}

func (s *Server) logFailure(c echo.Context, status int, err error) {
	event := s.logger.Debug()
	if status >= http.StatusInternalServerError {
		event = s.logger.Error()
	}
	event.Err(err).
		Int("status", status).
		Str("uri", c.Request().RequestURI).
		Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
		Msg("request failed")
}
