package httpapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/chronoflow/chronoflow/internal/auth"
	"github.com/chronoflow/chronoflow/internal/schedule"
)

// LoginResponse is the response body for POST /api/v1/auth/telegram.
type LoginResponse struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expiresAt"`
	User      *schedule.User `json:"user"`
}

// AuthConfig tells the web UI how to render the Telegram Login Widget.
type AuthConfig struct {
	BotUsername string `json:"botUsername"`
	Enabled     bool   `json:"enabled"`
}

func (s *Server) handleAuthConfig(c echo.Context) error {
	return c.JSON(http.StatusOK, AuthConfig{
		BotUsername: s.botUsername,
		Enabled:     s.botToken != "" && s.botUsername != "",
	})
}

func (s *Server) handleTelegramLogin(c echo.Context) error {
	var data auth.LoginData
	if err := c.Bind(&data); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := auth.VerifyTelegramLogin(data, s.botToken, s.loginMaxAge, s.now()); err != nil {
		s.logger.Warn("telegram login rejected", zap.Int64("telegram_id", data.ID), zap.Error(err))
		return err
	}

	ctx := c.Request().Context()
	user := data.User()
	if err := s.users.UpsertTelegramUser(ctx, user); err != nil {
		return err
	}

	token, exp, err := s.issuer.Issue(user.ID)
	if err != nil {
		return err
	}

	s.logger.Info("user signed in", zap.String("user_id", user.ID), zap.Int64("telegram_id", user.TelegramID))
	s.callbacks.Fire(ctx, user)

	return c.JSON(http.StatusOK, LoginResponse{Token: token, ExpiresAt: exp, User: user})
}

func (s *Server) handleMe(c echo.Context) error {
	u, err := s.users.GetUser(c.Request().Context(), auth.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}
