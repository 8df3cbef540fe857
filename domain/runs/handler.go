package runs

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/arclane/assistants-executor/pkg/apperror"
)

// Handler exposes the Run Executor's upward interface over HTTP (spec
// §6): creating a run, submitting tool outputs, and reading run/step
// state.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRunRequest struct {
	ThreadID     uuid.UUID `json:"thread_id"`
	AssistantID  uuid.UUID `json:"assistant_id"`
	UserID       string    `json:"user_id"`
	Model        string    `json:"model"`
	Instructions string    `json:"instructions"`
	FileIDs      []string  `json:"file_ids"`
}

func (h *Handler) CreateRun(c echo.Context) error {
	var req createRunRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body").ToEchoError()
	}

	run, err := h.service.CreateRun(c.Request().Context(), CreateRunInput{
		ThreadID:     req.ThreadID,
		AssistantID:  req.AssistantID,
		UserID:       req.UserID,
		Model:        req.Model,
		Instructions: req.Instructions,
		FileIDs:      req.FileIDs,
	})
	if err != nil {
		return toEchoError(err)
	}
	return c.JSON(http.StatusCreated, run)
}

func (h *Handler) GetRun(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.NewBadRequest("invalid run id").ToEchoError()
	}
	run, err := h.service.GetRun(c.Request().Context(), id)
	if err != nil {
		return toEchoError(err)
	}
	return c.JSON(http.StatusOK, run)
}

func (h *Handler) ListSteps(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.NewBadRequest("invalid run id").ToEchoError()
	}
	steps, err := h.service.ListSteps(c.Request().Context(), id)
	if err != nil {
		return toEchoError(err)
	}
	return c.JSON(http.StatusOK, steps)
}

type submitToolOutputsRequest struct {
	ToolOutputs []struct {
		ToolCallID string `json:"tool_call_id"`
		Output     string `json:"output"`
	} `json:"tool_outputs"`
}

func (h *Handler) SubmitToolOutputs(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperror.NewBadRequest("invalid run id").ToEchoError()
	}

	var req submitToolOutputsRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body").ToEchoError()
	}

	outputs := make([]SubmittedOutput, 0, len(req.ToolOutputs))
	for _, o := range req.ToolOutputs {
		outputs = append(outputs, SubmittedOutput{ToolCallID: o.ToolCallID, Output: o.Output})
	}

	run, err := h.service.SubmitToolOutputs(c.Request().Context(), id, outputs)
	if err != nil {
		return toEchoError(err)
	}
	return c.JSON(http.StatusOK, run)
}

func toEchoError(err error) error {
	if appErr, ok := err.(*apperror.Error); ok {
		return appErr.ToEchoError()
	}
	return apperror.ErrServerError.WithInternal(err).ToEchoError()
}
