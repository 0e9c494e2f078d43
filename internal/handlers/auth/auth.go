package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/mkostiuk/contact_service/internal/apperr"
	"github.com/mkostiuk/contact_service/internal/events"
	"github.com/mkostiuk/contact_service/internal/hash"
	"github.com/mkostiuk/contact_service/internal/logging"
	mw "github.com/mkostiuk/contact_service/internal/middleware/auth"
	"github.com/mkostiuk/contact_service/internal/models"
	"github.com/mkostiuk/contact_service/internal/service/identity"
	"github.com/mkostiuk/contact_service/internal/service/token"
	"github.com/mkostiuk/contact_service/internal/tokens"
)

// MailSender is what the handler needs from the mail layer. Delivery is best
// effort: failures are logged, never surfaced to the client.
type MailSender interface {
	SendVerification(to, token string) error
	SendPasswordReset(to, token string) error
}

type AvatarStore interface {
	Upload(ctx context.Context, file io.Reader, ownerEmail string) (string, error)
}

type AuthHandler struct {
	DB       *gorm.DB
	Tokens   *token.Service
	Resolver *identity.Resolver
	Mail     MailSender
	Avatars  AvatarStore
	Producer *events.Producer
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Signup(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_signup")

	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("signup_failed", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if !strings.Contains(req.Email, "@") || len(req.Password) < 6 {
		l.Warn("signup_failed", "status", 400, "reason", "invalid email or password")
		return echo.NewHTTPError(http.StatusBadRequest, "email must be valid and password at least 6 characters")
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		l.Error("signup_failed", "status", 500, "reason", "cannot hash the password", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	var existing models.User
	if err := h.DB.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		l.Warn("signup_failed", "status", 409, "reason", "email_taken")
		return echo.NewHTTPError(http.StatusConflict, "user with this email already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		l.Error("signup_failed", "status", 500, "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	user := models.User{
		Email:        req.Email,
		PasswordHash: pwHash,
		Confirmed:    false,
		Role:         "user",
	}
	// The unique constraint is the real duplicate check; the lookup above
	// only buys a cleaner fast path.
	if err := h.DB.Create(&user).Error; err != nil {
		if isDuplicate(err) {
			l.Warn("signup_failed", "status", 409, "reason", "email_taken")
			return echo.NewHTTPError(http.StatusConflict, "user with this email already exists")
		}
		l.Error("signup_failed", "status", 500, "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	go h.sendVerification(l, user)

	h.publish(c, events.TopicUserEvents, strconv.FormatUint(uint64(user.ID), 10), map[string]interface{}{
		"type":    "user_registered",
		"user_id": user.ID,
		"email":   user.Email,
	})

	l.Info("signup_success", "user_id", user.ID)
	return c.JSON(http.StatusCreated, user)
}

func (h *AuthHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("login_failed", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	// Same response whether the email is unknown or the password is wrong.
	var user models.User
	if err := h.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		l.Warn("login_failed", "status", 401, "reason", "incorrect email or password")
		return echo.NewHTTPError(http.StatusUnauthorized, "incorrect email or password")
	}
	if !hash.CheckPassword(user.PasswordHash, req.Password) {
		l.Warn("login_failed", "status", 401, "reason", "incorrect email or password")
		return echo.NewHTTPError(http.StatusUnauthorized, "incorrect email or password")
	}

	accessToken, err := h.Tokens.IssueAccess(user.Email)
	if err != nil {
		l.Error("login_failed", "status", 500, "reason", "cannot create token", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot create token")
	}
	refreshToken, err := h.Tokens.IssueRefresh(ctx, user.Email)
	if err != nil {
		l.Error("login_failed", "status", 500, "reason", "cannot create token", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot create token")
	}

	h.publish(c, events.TopicUserEvents, strconv.FormatUint(uint64(user.ID), 10), map[string]interface{}{
		"type":    "user_logged_in",
		"user_id": user.ID,
		"email":   user.Email,
	})

	l.Info("login_success", "user_id", user.ID)
	return c.JSON(http.StatusOK, echo.Map{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"token_type":    "bearer",
		"user":          user,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_refresh")

	var req refreshRequest
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		l.Warn("refresh_failed", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	newAccess, newRefresh, err := h.Tokens.ExchangeRefresh(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, apperr.ErrAuthentication) {
			l.Warn("refresh_failed", "status", 401, "error", err)
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired refresh token")
		}
		l.Error("refresh_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	l.Info("refresh_success")
	return c.JSON(http.StatusOK, echo.Map{
		"access_token":  newAccess,
		"refresh_token": newRefresh,
		"token_type":    "bearer",
	})
}

func (h *AuthHandler) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_logout")

	var req refreshRequest
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		l.Warn("logout_failed", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	claims, err := h.Tokens.ParseRefresh(req.RefreshToken)
	if err != nil {
		l.Warn("logout_failed", "status", 401, "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid refresh token")
	}
	if err := h.Tokens.Revoke(ctx, claims.ID); err != nil {
		l.Error("logout_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	l.Info("logout_success")
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_verify_email")

	claims, err := h.Tokens.ParseAction(c.QueryParam("token"), tokens.KindEmailVerification)
	if err != nil {
		l.Warn("verify_failed", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid or expired token")
	}

	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		l.Warn("verify_failed", "status", 400, "reason", "bad_subject")
		return echo.NewHTTPError(http.StatusBadRequest, "invalid or expired token")
	}

	var user models.User
	if err := h.DB.First(&user, uint(userID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("verify_failed", "status", 404, "reason", "user_not_found")
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		l.Error("verify_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	if user.Confirmed {
		return c.JSON(http.StatusOK, echo.Map{"message": "email already verified"})
	}

	user.Confirmed = true
	if err := h.DB.Save(&user).Error; err != nil {
		l.Error("verify_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	h.Resolver.Invalidate(ctx, user.Email)

	l.Info("verify_success", "user_id", user.ID)
	return c.JSON(http.StatusOK, echo.Map{"message": "email successfully verified"})
}

type emailRequest struct {
	Email string `json:"email"`
}

// RequestPasswordReset answers the same way whether or not the account
// exists.
func (h *AuthHandler) RequestPasswordReset(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_reset_request")

	var req emailRequest
	if err := c.Bind(&req); err != nil || req.Email == "" {
		l.Warn("reset_request_failed", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	var user models.User
	if err := h.DB.Where("email = ?", req.Email).First(&user).Error; err == nil {
		go h.sendPasswordReset(l, user)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		l.Error("reset_request_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "if the email exists, password reset instructions have been sent",
	})
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func (h *AuthHandler) ResetPassword(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_reset_password")

	var req resetPasswordRequest
	if err := c.Bind(&req); err != nil || req.Token == "" {
		l.Warn("reset_failed", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if len(req.NewPassword) < 6 {
		l.Warn("reset_failed", "status", 400, "reason", "short_password")
		return echo.NewHTTPError(http.StatusBadRequest, "password must be at least 6 characters")
	}

	claims, err := h.Tokens.ParseAction(req.Token, tokens.KindPasswordReset)
	if err != nil {
		l.Warn("reset_failed", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid or expired token")
	}

	var user models.User
	if err := h.DB.Where("email = ?", claims.Subject).First(&user).Error; err != nil {
		l.Warn("reset_failed", "status", 400, "reason", "user_not_found")
		return echo.NewHTTPError(http.StatusBadRequest, "invalid or expired token")
	}

	pwHash, err := hash.HashPassword(req.NewPassword)
	if err != nil {
		l.Error("reset_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	if err := h.DB.Model(&user).Update("password_hash", pwHash).Error; err != nil {
		l.Error("reset_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	h.Resolver.Invalidate(ctx, user.Email)

	l.Info("reset_success", "user_id", user.ID)
	return c.JSON(http.StatusOK, echo.Map{"message": "password has been reset successfully"})
}

func (h *AuthHandler) Me(c echo.Context) error {
	user := mw.CurrentUser(c)
	if user == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "could not validate credentials")
	}
	return c.JSON(http.StatusOK, user)
}

func (h *AuthHandler) UpdateAvatar(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_update_avatar")

	user := mw.CurrentUser(c)
	if user == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "could not validate credentials")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		l.Warn("avatar_failed", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	if fileHeader.Size == 0 {
		l.Warn("avatar_failed", "status", 400, "reason", "empty_file")
		return echo.NewHTTPError(http.StatusBadRequest, "file is empty")
	}
	file, err := fileHeader.Open()
	if err != nil {
		l.Error("avatar_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	defer file.Close()

	if h.Avatars == nil {
		l.Error("avatar_failed", "status", 500, "reason", "avatar storage not configured")
		return echo.NewHTTPError(http.StatusInternalServerError, "avatar storage not configured")
	}

	url, err := h.Avatars.Upload(ctx, file, user.Email)
	if err != nil {
		l.Error("avatar_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to upload avatar")
	}

	if err := h.DB.Model(&models.User{}).Where("id = ?", user.ID).Update("avatar", url).Error; err != nil {
		l.Error("avatar_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	h.Resolver.Invalidate(ctx, user.Email)

	user.Avatar = url
	l.Info("avatar_updated", "user_id", user.ID)
	return c.JSON(http.StatusOK, user)
}

// ListUsers backs the admin-only user listing.
func (h *AuthHandler) ListUsers(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", "auth_list_users")

	var users []models.User
	if err := h.DB.Order("id").Find(&users).Error; err != nil {
		l.Error("list_users_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, users)
}

func (h *AuthHandler) sendVerification(l *slog.Logger, user models.User) {
	if h.Mail == nil {
		return
	}
	tok, err := h.Tokens.IssueAction(strconv.FormatUint(uint64(user.ID), 10), tokens.KindEmailVerification)
	if err != nil {
		l.Error("verification_token_failed", "user_id", user.ID, "error", err)
		return
	}
	if err := h.Mail.SendVerification(user.Email, tok); err != nil {
		l.Warn("verification_email_failed", "user_id", user.ID, "error", err)
	}
}

func (h *AuthHandler) sendPasswordReset(l *slog.Logger, user models.User) {
	if h.Mail == nil {
		return
	}
	tok, err := h.Tokens.IssueAction(user.Email, tokens.KindPasswordReset)
	if err != nil {
		l.Error("reset_token_failed", "user_id", user.ID, "error", err)
		return
	}
	if err := h.Mail.SendPasswordReset(user.Email, tok); err != nil {
		l.Warn("reset_email_failed", "user_id", user.ID, "error", err)
	}
}

func (h *AuthHandler) publish(c echo.Context, topic, key string, event map[string]interface{}) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, topic, key, event); err != nil {
		logging.FromContext(c.Request().Context()).Warn("event_publish_failed", "topic", topic, "error", err)
	}
}

func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint")
}
