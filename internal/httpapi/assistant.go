package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chronoflow/chronoflow/internal/auth"
	"github.com/chronoflow/chronoflow/internal/llm"
)

// ChatRequest is the request body for POST /api/v1/assistant/chat.
type ChatRequest struct {
	Message string        `json:"message"`
	History []llm.Message `json:"history"`
}

func (s *Server) handleAssistantChat(c echo.Context) error {
	if s.assistant == nil {
		return errNoAssistant
	}
	userID := auth.UserID(c)
	if !s.limiters.allow(userID) {
		AssistantRequestsTotal.WithLabelValues("rate_limited").Inc()
		return errRateLimited
	}

	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	reply, err := s.assistant.Chat(c.Request().Context(), userID, req.Message, conversation(req.History))
	if err != nil {
		AssistantRequestsTotal.WithLabelValues("error").Inc()
		return err
	}
	AssistantRequestsTotal.WithLabelValues("success").Inc()
	return c.JSON(http.StatusOK, reply)
}

// conversation keeps only user and assistant turns from a client-supplied
// history.
func conversation(history []llm.Message) []llm.Message {
	out := make([]llm.Message, 0, len(history))
	for _, m := range history {
		if m.Role == llm.RoleUser || m.Role == llm.RoleAssistant {
			out = append(out, m)
		}
	}
	return out
}
