package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/duadua/marketplace/internal/hash"
	"github.com/duadua/marketplace/internal/middleware/auth"
	"github.com/duadua/marketplace/internal/models"
)

type AccountHandler struct {
	DB *gorm.DB
}

func (h *AccountHandler) GetSettings(c echo.Context) error {
	userID := auth.UserID(c)
	var settings models.AccountSetting
	err := h.DB.Where("user_id = ?", userID).
		FirstOrCreate(&settings, models.AccountSetting{UserID: userID}).Error
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load settings")
	}
	return c.JSON(http.StatusOK, settings)
}

func (h *AccountHandler) UpdateSettings(c echo.Context) error {
	userID := auth.UserID(c)
	var settings models.AccountSetting
	err := h.DB.Where("user_id = ?", userID).
		FirstOrCreate(&settings, models.AccountSetting{UserID: userID}).Error
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load settings")
	}

	var req struct {
		SettlementAccountDetails datatypes.JSON `json:"settlement_account_details"`
		StoreStatus              string         `json:"store_status"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.SettlementAccountDetails != nil {
		settings.SettlementAccountDetails = req.SettlementAccountDetails
	}
	if req.StoreStatus != "" {
		switch req.StoreStatus {
		case "active", "paused":
			settings.StoreStatus = req.StoreStatus
		default:
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "unknown store status")
		}
	}
	if err := h.DB.Save(&settings).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to save settings")
	}
	return c.JSON(http.StatusOK, settings)
}

func (h *AccountHandler) UpdateProfile(c echo.Context) error {
	var user models.User
	if err := h.DB.First(&user, auth.UserID(c)).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Name != "" {
		user.Name = req.Name
	}
	if err := h.DB.Save(&user).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update profile")
	}
	return c.JSON(http.StatusOK, user)
}

// ChangePassword requires the current password and revokes every refresh
// token on success.
func (h *AccountHandler) ChangePassword(c echo.Context) error {
	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if len(req.NewPassword) < 8 {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "password must be at least 8 characters")
	}

	var user models.User
	if err := h.DB.First(&user, auth.UserID(c)).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	if !hash.CheckPassword(req.CurrentPassword, user.PasswordHash) {
		return echo.NewHTTPError(http.StatusUnauthorized, "current password is wrong")
	}

	passwordHash, err := hash.HashPassword(req.NewPassword)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to hash password")
	}
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&user).Update("password_hash", passwordHash).Error; err != nil {
			return err
		}
		return tx.Model(&models.RefreshToken{}).
			Where("user_id = ?", user.ID).Update("revoked", true).Error
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to change password")
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "password changed"})
}
