package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-bot/internal/auth"
	"github.com/spec-kit/support-bot/internal/domain"
	"github.com/spec-kit/support-bot/internal/service"
	"github.com/spec-kit/support-bot/pkg/util"
)

// AdminHandler exposes login and settings management over HTTP.
type AdminHandler struct {
	settings   *service.SettingsService
	tokens     *auth.TokenManager
	secretHash string
}

// NewAdminHandler returns a new handler instance.
func NewAdminHandler(settings *service.SettingsService, tokens *auth.TokenManager, secretHash string) *AdminHandler {
	return &AdminHandler{settings: settings, tokens: tokens, secretHash: secretHash}
}

type loginRequest struct {
	Secret string `json:"secret"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login exchanges the admin secret for a JWT.
func (h *AdminHandler) Login(c *fiber.Ctx) error {
	if h.secretHash == "" {
		return util.NewUnauthorized("admin API disabled: no secret configured")
	}
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return util.NewValidationError("invalid request body", nil)
	}
	if err := auth.VerifyAdminSecret(h.secretHash, req.Secret); err != nil {
		return util.NewUnauthorized("invalid admin secret")
	}
	token, expiresAt, err := h.tokens.GenerateToken()
	if err != nil {
		return util.NewInternalError(err)
	}
	return c.JSON(loginResponse{Token: token, ExpiresAt: expiresAt})
}

// GetSettings returns the current guild settings.
func (h *AdminHandler) GetSettings(c *fiber.Ctx) error {
	settings, err := h.settings.Get(c.UserContext())
	if err != nil {
		return util.NewInternalError(err)
	}
	return c.JSON(settings)
}

// PutSettings replaces the guild settings whole-object.
func (h *AdminHandler) PutSettings(c *fiber.Ctx) error {
	var settings domain.Settings
	if err := c.BodyParser(&settings); err != nil {
		return util.NewValidationError("invalid request body", nil)
	}
	if err := h.settings.Replace(c.UserContext(), settings); err != nil {
		return util.NewInternalError(err)
	}
	return c.JSON(settings)
}
