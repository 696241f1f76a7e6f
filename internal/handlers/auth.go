package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/duadua/marketplace/internal/hash"
	"github.com/duadua/marketplace/internal/mailer"
	"github.com/duadua/marketplace/internal/middleware/auth"
	"github.com/duadua/marketplace/internal/models"
	"github.com/duadua/marketplace/internal/mykafka"
	"github.com/duadua/marketplace/internal/tokens"
)

const passwordResetTTL = 15 * time.Minute

type AuthHandler struct {
	DB          *gorm.DB
	Tokens      *tokens.Manager
	Mailer      *mailer.Mailer
	Producer    *mykafka.Producer
	FrontendURL string
}

func (h *AuthHandler) setAuthCookies(c echo.Context, access, refresh string, refreshExp time.Time) {
	c.SetCookie(&http.Cookie{
		Name:     "accessToken",
		Value:    access,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(h.Tokens.AccessTTL),
	})
	c.SetCookie(&http.Cookie{
		Name:     "refreshToken",
		Value:    refresh,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  refreshExp,
	})
}

func (h *AuthHandler) issueTokens(c echo.Context, user *models.User) (map[string]any, error) {
	access, err := h.Tokens.GenerateAccess(user.ID, user.Role)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "failed to issue token")
	}
	refresh, refreshExp, err := h.Tokens.GenerateRefresh(user.ID, user.Role)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "failed to issue token")
	}
	record := models.RefreshToken{
		Token:     refresh,
		UserID:    user.ID,
		ExpiresAt: refreshExp.Unix(),
	}
	if err := h.DB.Create(&record).Error; err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "failed to persist token")
	}
	h.setAuthCookies(c, access, refresh, refreshExp)
	return map[string]any{
		"access_token":  access,
		"refresh_token": refresh,
		"user":          user,
	}, nil
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req struct {
		Name             string `json:"name"`
		Email            string `json:"email"`
		Password         string `json:"password"`
		Role             string `json:"role"`
		StoreName        string `json:"store_name"`
		StoreDescription string `json:"store_description"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" || req.Email == "" || len(req.Password) < 8 {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "name, email and a password of at least 8 characters are required")
	}
	role := models.RoleCustomer
	if req.Role == models.RoleVendor {
		role = models.RoleVendor
		if req.StoreName == "" {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "store_name is required for vendor accounts")
		}
	}

	passwordHash, err := hash.HashPassword(req.Password)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to hash password")
	}

	user := models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: passwordHash,
		Role:         role,
	}
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("email = ?", req.Email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return echo.NewHTTPError(http.StatusConflict, "email already registered")
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		if role == models.RoleVendor {
			profile := models.VendorProfile{
				UserID:           user.ID,
				StoreName:        req.StoreName,
				StoreDescription: req.StoreDescription,
				ContactEmail:     req.Email,
			}
			if err := tx.Create(&profile).Error; err != nil {
				var he *echo.HTTPError
				if !errors.As(err, &he) && strings.Contains(err.Error(), "store_name") {
					return echo.NewHTTPError(http.StatusConflict, "store name already taken")
				}
				return err
			}
			user.VendorProfile = &profile
		}
		return nil
	})
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "registration failed")
	}

	if role == models.RoleVendor {
		h.Mailer.SendVendorWelcome(user.Email, user.Name, req.StoreName)
	} else {
		h.Mailer.SendWelcome(user.Email, user.Name)
	}
	publish(c, h.Producer, "user_events", user.Email, map[string]any{
		"type":   "user_registered",
		"userID": user.ID,
		"role":   role,
	})

	resp, err := h.issueTokens(c, &user)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, resp)
}

func (h *AuthHandler) login(c echo.Context, requireRole string) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	var user models.User
	if err := h.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	if !hash.CheckPassword(req.Password, user.PasswordHash) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	if requireRole != "" && user.Role != requireRole {
		return echo.NewHTTPError(http.StatusForbidden, "insufficient permissions")
	}

	resp, err := h.issueTokens(c, &user)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) Login(c echo.Context) error {
	return h.login(c, "")
}

func (h *AuthHandler) AdminLogin(c echo.Context) error {
	return h.login(c, models.RoleAdmin)
}

func (h *AuthHandler) LogOut(c echo.Context) error {
	if cookie, err := c.Cookie("refreshToken"); err == nil && cookie.Value != "" {
		h.DB.Model(&models.RefreshToken{}).
			Where("token = ?", cookie.Value).
			Update("revoked", true)
	}
	expired := time.Unix(0, 0)
	c.SetCookie(&http.Cookie{Name: "accessToken", Value: "", Path: "/", HttpOnly: true, Expires: expired})
	c.SetCookie(&http.Cookie{Name: "refreshToken", Value: "", Path: "/", HttpOnly: true, Expires: expired})
	return c.NoContent(http.StatusNoContent)
}

// Refresh rotates the refresh token: the presented token must exist, be
// unrevoked and unexpired; it is revoked and a fresh pair is issued.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	_ = c.Bind(&req)
	if req.RefreshToken == "" {
		if cookie, err := c.Cookie("refreshToken"); err == nil {
			req.RefreshToken = cookie.Value
		}
	}
	if req.RefreshToken == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing refresh token")
	}

	claims, err := h.Tokens.ParseRefresh(req.RefreshToken)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid refresh token")
	}

	var record models.RefreshToken
	if err := h.DB.Where("token = ?", req.RefreshToken).First(&record).Error; err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid refresh token")
	}
	if record.Revoked || record.ExpiresAt < time.Now().Unix() {
		return echo.NewHTTPError(http.StatusUnauthorized, "refresh token revoked or expired")
	}

	var user models.User
	if err := h.DB.First(&user, claims.UserID).Error; err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unknown user")
	}

	if err := h.DB.Model(&record).Update("revoked", true).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to rotate token")
	}

	resp, err := h.issueTokens(c, &user)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// ForgotPassword issues a reset credential valid for fifteen minutes: a
// 6-digit OTP for signed-in sessions, a token link otherwise. The response is
// the same whether or not the email exists.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	var user models.User
	if err := h.DB.Where("email = ?", req.Email).First(&user).Error; err == nil {
		// A signed-in user gets a short code to type in; anyone else gets a
		// link carrying a long token.
		var code string
		if auth.UserID(c) != 0 {
			code, err = randomDigits(6)
		} else {
			code, err = randomToken()
		}
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to issue code")
		}
		tokenHash, err := hash.HashPassword(code)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to issue code")
		}
		reset := models.PasswordReset{Email: user.Email, Token: tokenHash, CreatedAt: time.Now()}
		h.DB.Where("email = ?", user.Email).Delete(&models.PasswordReset{})
		if err := h.DB.Create(&reset).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to issue code")
		}
		if auth.UserID(c) != 0 {
			h.Mailer.SendOTP(user.Email, code, "password reset")
		} else {
			h.Mailer.SendResetLink(user.Email, h.FrontendURL+"/reset-password?email="+user.Email+"&token="+code)
		}
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": "if the email exists, a reset code has been sent",
	})
}

// VerifyOTP checks the code without consuming it, so the client can gate the
// new-password form.
func (h *AuthHandler) VerifyOTP(c echo.Context) error {
	var req struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := h.checkReset(req.Email, req.OTP); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "code verified"})
}

func (h *AuthHandler) checkReset(email, otp string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	var reset models.PasswordReset
	if err := h.DB.Where("email = ?", email).First(&reset).Error; err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "invalid or expired code")
	}
	if time.Since(reset.CreatedAt) > passwordResetTTL {
		h.DB.Delete(&reset)
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "invalid or expired code")
	}
	if !hash.CheckPassword(otp, reset.Token) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "invalid or expired code")
	}
	return nil
}

// ResetPassword consumes the OTP: the row is deleted on success so the code
// cannot be replayed.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req struct {
		Email    string `json:"email"`
		OTP      string `json:"otp"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if len(req.Password) < 8 {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "password must be at least 8 characters")
	}
	if err := h.checkReset(req.Email, req.OTP); err != nil {
		return err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	passwordHash, err := hash.HashPassword(req.Password)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to hash password")
	}
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{}).Where("email = ?", email).
			Update("password_hash", passwordHash).Error; err != nil {
			return err
		}
		if err := tx.Where("email = ?", email).Delete(&models.PasswordReset{}).Error; err != nil {
			return err
		}
		// All sessions end when the password changes.
		return tx.Model(&models.RefreshToken{}).
			Where("user_id = (?)", tx.Model(&models.User{}).Select("id").Where("email = ?", email)).
			Update("revoked", true).Error
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to reset password")
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "password reset"})
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(c echo.Context) error {
	var user models.User
	if err := h.DB.Preload("VendorProfile").First(&user, auth.UserID(c)).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	return c.JSON(http.StatusOK, user)
}

// guestIDFromRequest reads the opaque guest session id guests shop under.
func guestIDFromRequest(c echo.Context) string {
	if v := c.Request().Header.Get("X-Guest-ID"); v != "" {
		return v
	}
	if cookie, err := c.Cookie("guestID"); err == nil {
		return cookie.Value
	}
	return ""
}
