package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/duadua/marketplace/internal/hash"
	"github.com/duadua/marketplace/internal/models"
	"github.com/duadua/marketplace/internal/tokens"
)

func newAuthHandler(db *gorm.DB) *AuthHandler {
	return &AuthHandler{
		DB:          db,
		Tokens:      tokens.NewManager("test-secret", "test-refresh-secret"),
		Mailer:      noopMailer(),
		FrontendURL: "http://localhost:3000",
	}
}

func TestRegisterAndLogin(t *testing.T) {
	db := newTestDB(t)
	e := echo.New()
	h := newAuthHandler(db)

	c, rec := newContext(t, e, http.MethodPost, "/register", map[string]any{
		"name":     "Ada",
		"email":    "Ada@Shop.Test",
		"password": "password123",
	})
	require.NoError(t, h.Register(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]any
	decodeBody(t, rec, &resp)
	require.NotEmpty(t, resp["access_token"])
	require.NotEmpty(t, resp["refresh_token"])

	// Email is normalized to lower case.
	var user models.User
	require.NoError(t, db.Where("email = ?", "ada@shop.test").First(&user).Error)
	require.Equal(t, models.RoleCustomer, user.Role)
	require.NotEqual(t, "password123", user.PasswordHash)

	// Duplicate registration conflicts.
	c2, _ := newContext(t, e, http.MethodPost, "/register", map[string]any{
		"name":     "Ada",
		"email":    "ada@shop.test",
		"password": "password123",
	})
	err := h.Register(c2)
	require.Equal(t, http.StatusConflict, httpErrorCode(t, err))

	c3, rec3 := newContext(t, e, http.MethodPost, "/login", map[string]any{
		"email":    "ada@shop.test",
		"password": "password123",
	})
	require.NoError(t, h.Login(c3))
	require.Equal(t, http.StatusOK, rec3.Code)

	c4, _ := newContext(t, e, http.MethodPost, "/login", map[string]any{
		"email":    "ada@shop.test",
		"password": "wrong-password",
	})
	err = h.Login(c4)
	require.Equal(t, http.StatusUnauthorized, httpErrorCode(t, err))
}

func TestRegisterVendorCreatesProfile(t *testing.T) {
	db := newTestDB(t)
	e := echo.New()
	h := newAuthHandler(db)

	c, rec := newContext(t, e, http.MethodPost, "/register", map[string]any{
		"name":       "Vee",
		"email":      "vee@shop.test",
		"password":   "password123",
		"role":       models.RoleVendor,
		"store_name": "Vee's Goods",
	})
	require.NoError(t, h.Register(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var profile models.VendorProfile
	require.NoError(t, db.Where("store_name = ?", "Vee's Goods").First(&profile).Error)

	// A vendor without a store name is refused.
	c2, _ := newContext(t, e, http.MethodPost, "/register", map[string]any{
		"name":     "No Store",
		"email":    "nostore@shop.test",
		"password": "password123",
		"role":     models.RoleVendor,
	})
	err := h.Register(c2)
	require.Equal(t, http.StatusUnprocessableEntity, httpErrorCode(t, err))
}

func TestAdminLoginRejectsCustomers(t *testing.T) {
	db := newTestDB(t)
	e := echo.New()
	h := newAuthHandler(db)
	createUser(t, db, "customer@shop.test", models.RoleCustomer)

	c, _ := newContext(t, e, http.MethodPost, "/admin/login", map[string]any{
		"email":    "customer@shop.test",
		"password": "password123",
	})
	err := h.AdminLogin(c)
	require.Equal(t, http.StatusForbidden, httpErrorCode(t, err))
}

func TestRefreshRotatesToken(t *testing.T) {
	db := newTestDB(t)
	e := echo.New()
	h := newAuthHandler(db)
	user := createUser(t, db, "ada@shop.test", models.RoleCustomer)

	refresh, exp, err := h.Tokens.GenerateRefresh(user.ID, user.Role)
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.RefreshToken{
		Token: refresh, UserID: user.ID, ExpiresAt: exp.Unix(),
	}).Error)

	c, rec := newContext(t, e, http.MethodPost, "/refresh", map[string]any{"refresh_token": refresh})
	require.NoError(t, h.Refresh(c))
	require.Equal(t, http.StatusOK, rec.Code)

	// The old token is revoked and cannot be replayed.
	var old models.RefreshToken
	require.NoError(t, db.Where("token = ?", refresh).First(&old).Error)
	require.True(t, old.Revoked)

	c2, _ := newContext(t, e, http.MethodPost, "/refresh", map[string]any{"refresh_token": refresh})
	err = h.Refresh(c2)
	require.Equal(t, http.StatusUnauthorized, httpErrorCode(t, err))
}

func seedReset(t *testing.T, db *gorm.DB, email, otp string, age time.Duration) {
	t.Helper()
	tokenHash, err := hash.HashPassword(otp)
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.PasswordReset{
		Email:     email,
		Token:     tokenHash,
		CreatedAt: time.Now().Add(-age),
	}).Error)
}

func TestResetPasswordConsumesOTP(t *testing.T) {
	db := newTestDB(t)
	e := echo.New()
	h := newAuthHandler(db)
	createUser(t, db, "ada@shop.test", models.RoleCustomer)
	seedReset(t, db, "ada@shop.test", "123456", time.Minute)

	c, rec := newContext(t, e, http.MethodPost, "/reset-password", map[string]any{
		"email":    "ada@shop.test",
		"otp":      "123456",
		"password": "new-password",
	})
	require.NoError(t, h.ResetPassword(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var user models.User
	require.NoError(t, db.Where("email = ?", "ada@shop.test").First(&user).Error)
	require.True(t, hash.CheckPassword("new-password", user.PasswordHash))

	// The code is gone; replaying it fails.
	c2, _ := newContext(t, e, http.MethodPost, "/reset-password", map[string]any{
		"email":    "ada@shop.test",
		"otp":      "123456",
		"password": "another-password",
	})
	err := h.ResetPassword(c2)
	require.Equal(t, http.StatusUnprocessableEntity, httpErrorCode(t, err))
}

func TestResetPasswordExpiredOTP(t *testing.T) {
	db := newTestDB(t)
	e := echo.New()
	h := newAuthHandler(db)
	createUser(t, db, "ada@shop.test", models.RoleCustomer)
	seedReset(t, db, "ada@shop.test", "123456", 16*time.Minute)

	c, _ := newContext(t, e, http.MethodPost, "/reset-password", map[string]any{
		"email":    "ada@shop.test",
		"otp":      "123456",
		"password": "new-password",
	})
	err := h.ResetPassword(c)
	require.Equal(t, http.StatusUnprocessableEntity, httpErrorCode(t, err))
}
