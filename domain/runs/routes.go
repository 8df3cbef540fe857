package runs

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers the Run Executor's HTTP surface.
func RegisterRoutes(e *echo.Echo, h *Handler) {
	e.POST("/api/runs", h.CreateRun)
	e.GET("/api/runs/:id", h.GetRun)
	e.GET("/api/runs/:id/steps", h.ListSteps)
	e.POST("/api/runs/:id/submit_tool_outputs", h.SubmitToolOutputs)
}
