package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"floorflow/backend/internal/logging"
	"floorflow/backend/internal/repository"
	"floorflow/backend/internal/scancode"
	"floorflow/backend/internal/services"
	"floorflow/backend/internal/workflow"
)

// MIMEProblemJSON is the media type of RFC 7807 responses.
const MIMEProblemJSON = "application/problem+json"

// ProblemDetails represents an RFC 7807 Problem Details response
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`

	// MissingActions lists the labels of unmet required actions.
	MissingActions []string `json:"missing_actions,omitempty"`
	// Issues lists the blocking problems of a workflow definition.
	Issues workflow.Issues `json:"issues,omitempty"`
}

func problem(status int, detail string) ProblemDetails {
	return ProblemDetails{
		Type:   "about:blank",
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	}
}

// Problem maps an error from the service layer to its HTTP problem.
func Problem(err error) ProblemDetails {
	var (
		he      *echo.HTTPError
		missing *workflow.MissingRequiredActionsError
		invalid *workflow.WorkflowInvalidError
		persist *services.PersistenceError
	)
	switch {
	case errors.As(err, &he):
		return problem(he.Code, fmt.Sprint(he.Message))
	case errors.As(err, &missing):
		p := problem(http.StatusUnprocessableEntity, err.Error())
		p.Title = "Missing required actions"
		p.MissingActions = missing.Labels
		return p
	case errors.As(err, &invalid):
		p := problem(http.StatusUnprocessableEntity, err.Error())
		p.Title = "Invalid workflow"
		p.Issues = invalid.Issues.Errors()
		return p
	case errors.As(err, &persist):
		return problem(http.StatusServiceUnavailable, "The change could not be saved. Please retry.")
	case errors.Is(err, workflow.ErrItemNotActive),
		errors.Is(err, workflow.ErrStageMismatch),
		errors.Is(err, services.ErrItemTerminal),
		errors.Is(err, services.ErrWorkflowInUse),
		errors.Is(err, repository.ErrConflict):
		return problem(http.StatusConflict, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		return problem(http.StatusNotFound, err.Error())
	case errors.Is(err, repository.ErrNoTenant):
		return problem(http.StatusUnauthorized, err.Error())
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, scancode.ErrEmptyCode),
		errors.Is(err, scancode.ErrUnknownKind):
		return problem(http.StatusBadRequest, err.Error())
	case errors.Is(err, workflow.ErrStageNotFound):
		return problem(http.StatusInternalServerError, "The item refers to a stage its workflow does not contain.")
	}
	return problem(http.StatusInternalServerError, "An unexpected error occurred.")
}

// HTTPErrorHandler renders every handler error as application/problem+json.
func HTTPErrorHandler(logger *logging.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		p := Problem(err)
		p.Instance = c.Request().URL.Path
		if p.Status >= http.StatusInternalServerError {
			logger.Error("request failed",
				"method", c.Request().Method, "path", p.Instance, "status", p.Status, "error", err)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(p.Status)
		} else {
			var body []byte
			body, err = json.Marshal(p)
			if err == nil {
				err = c.Blob(p.Status, MIMEProblemJSON, body)
			}
		}
		if err != nil {
			logger.Error("failed to write problem response", "error", err)
		}
	}
}
