package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/duadua/marketplace/internal/hash"
	"github.com/duadua/marketplace/internal/middleware/auth"
	"github.com/duadua/marketplace/internal/models"
	"github.com/duadua/marketplace/internal/paystack"
)

// VendorHandler manages vendor store profiles and their payment gateway
// subaccounts.
type VendorHandler struct {
	DB      *gorm.DB
	Gateway paystack.Gateway
}

func (h *VendorHandler) loadOwn(c echo.Context) (*models.VendorProfile, error) {
	var profile models.VendorProfile
	if err := h.DB.Where("user_id = ?", auth.UserID(c)).First(&profile).Error; err != nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "vendor profile not found")
	}
	return &profile, nil
}

func (h *VendorHandler) Profile(c echo.Context) error {
	profile, err := h.loadOwn(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, profile)
}

func (h *VendorHandler) UpdateProfile(c echo.Context) error {
	profile, err := h.loadOwn(c)
	if err != nil {
		return err
	}
	var req struct {
		StoreName        string `json:"store_name"`
		StoreDescription string `json:"store_description"`
		StoreLogo        string `json:"store_logo"`
		ContactEmail     string `json:"contact_email"`
		PhoneNumber      string `json:"phone_number"`
		Address          string `json:"address"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.StoreName != "" {
		profile.StoreName = req.StoreName
	}
	if req.StoreDescription != "" {
		profile.StoreDescription = req.StoreDescription
	}
	if req.StoreLogo != "" {
		profile.StoreLogo = req.StoreLogo
	}
	if req.ContactEmail != "" {
		profile.ContactEmail = req.ContactEmail
	}
	if req.PhoneNumber != "" {
		profile.PhoneNumber = req.PhoneNumber
	}
	if req.Address != "" {
		profile.Address = req.Address
	}
	if err := h.DB.Save(profile).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update profile")
	}
	return c.JSON(http.StatusOK, profile)
}

// PublicProfile exposes a vendor's storefront details by user id.
func (h *VendorHandler) PublicProfile(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var profile models.VendorProfile
	if err := h.DB.Where("user_id = ?", id).First(&profile).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "vendor not found")
	}
	// Bank details stay private.
	profile.AccountNumber = ""
	profile.AccountName = ""
	profile.SettlementBank = ""
	profile.SubaccountCode = ""
	return c.JSON(http.StatusOK, profile)
}

// SetupSubaccount creates (or replaces) the vendor's gateway subaccount from
// their bank details and stores the returned code for split settlement.
func (h *VendorHandler) SetupSubaccount(c echo.Context) error {
	profile, err := h.loadOwn(c)
	if err != nil {
		return err
	}
	var req struct {
		BankName         string  `json:"bank_name"`
		BankCode         string  `json:"bank_code"`
		AccountNumber    string  `json:"account_number"`
		PercentageCharge float64 `json:"percentage_charge"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.BankCode == "" || req.AccountNumber == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "bank_code and account_number are required")
	}

	resolved, err := h.Gateway.ResolveAccount(c.Request().Context(), req.AccountNumber, req.BankCode)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "could not resolve bank account")
	}

	gatewayReq := paystack.SubaccountRequest{
		BusinessName:     profile.StoreName,
		BankCode:         req.BankCode,
		AccountNumber:    req.AccountNumber,
		PercentageCharge: req.PercentageCharge,
	}

	var subaccount *paystack.Subaccount
	if profile.SubaccountCode == "" {
		subaccount, err = h.Gateway.CreateSubaccount(c.Request().Context(), gatewayReq)
	} else {
		subaccount, err = h.Gateway.UpdateSubaccount(c.Request().Context(), profile.SubaccountCode, gatewayReq)
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "payment gateway rejected the subaccount")
	}

	profile.SubaccountCode = subaccount.SubaccountCode
	profile.BankName = req.BankName
	profile.SettlementBank = req.BankCode
	profile.AccountNumber = req.AccountNumber
	profile.AccountName = resolved.AccountName
	profile.PercentageCharge = req.PercentageCharge
	if err := h.DB.Save(profile).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to save profile")
	}
	return c.JSON(http.StatusOK, profile)
}

func (h *VendorHandler) Banks(c echo.Context) error {
	banks, err := h.Gateway.ListBanks(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "failed to list banks")
	}
	return c.JSON(http.StatusOK, banks)
}

func (h *VendorHandler) ResolveAccount(c echo.Context) error {
	accountNumber := c.QueryParam("account_number")
	bankCode := c.QueryParam("bank_code")
	if accountNumber == "" || bankCode == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "account_number and bank_code are required")
	}
	resolved, err := h.Gateway.ResolveAccount(c.Request().Context(), accountNumber, bankCode)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "could not resolve bank account")
	}
	return c.JSON(http.StatusOK, resolved)
}

// AdminCreate onboards a vendor in one shot: the gateway subaccount is
// created first so a rejected bank account aborts before any rows are
// written, then the user and profile land in a single transaction.
func (h *VendorHandler) AdminCreate(c echo.Context) error {
	var req struct {
		Name             string  `json:"name"`
		Email            string  `json:"email"`
		Password         string  `json:"password"`
		StoreName        string  `json:"store_name"`
		StoreDescription string  `json:"store_description"`
		ContactEmail     string  `json:"contact_email"`
		PhoneNumber      string  `json:"phone_number"`
		Address          string  `json:"address"`
		BankName         string  `json:"bank_name"`
		BankCode         string  `json:"bank_code"`
		AccountNumber    string  `json:"account_number"`
		PercentageCharge float64 `json:"percentage_charge"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || len(req.Password) < 8 || req.StoreName == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "email, password and store_name are required")
	}
	if req.BankCode == "" || req.AccountNumber == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "bank_code and account_number are required")
	}

	resolved, err := h.Gateway.ResolveAccount(c.Request().Context(), req.AccountNumber, req.BankCode)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "could not resolve bank account")
	}
	subaccount, err := h.Gateway.CreateSubaccount(c.Request().Context(), paystack.SubaccountRequest{
		BusinessName:     req.StoreName,
		BankCode:         req.BankCode,
		AccountNumber:    req.AccountNumber,
		PercentageCharge: req.PercentageCharge,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "payment gateway rejected the subaccount")
	}

	passwordHash, err := hash.HashPassword(req.Password)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to hash password")
	}

	user := models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: passwordHash,
		Role:         models.RoleVendor,
	}
	profile := models.VendorProfile{
		StoreName:        req.StoreName,
		StoreDescription: req.StoreDescription,
		ContactEmail:     req.ContactEmail,
		PhoneNumber:      req.PhoneNumber,
		Address:          req.Address,
		BankName:         req.BankName,
		SettlementBank:   req.BankCode,
		AccountNumber:    req.AccountNumber,
		AccountName:      resolved.AccountName,
		SubaccountCode:   subaccount.SubaccountCode,
		PercentageCharge: req.PercentageCharge,
	}
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		profile.UserID = user.ID
		return tx.Create(&profile).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return echo.NewHTTPError(http.StatusConflict, "email or store name already in use")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create vendor")
	}

	user.PasswordHash = ""
	profile.User = &user
	return c.JSON(http.StatusCreated, profile)
}

// AdminUpdate edits a vendor profile. Changed bank details go to the gateway
// first so the stored subaccount never drifts from what the gateway holds.
func (h *VendorHandler) AdminUpdate(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var profile models.VendorProfile
	if err := h.DB.First(&profile, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "vendor not found")
	}

	var req struct {
		StoreName        string   `json:"store_name"`
		StoreDescription string   `json:"store_description"`
		ContactEmail     string   `json:"contact_email"`
		PhoneNumber      string   `json:"phone_number"`
		Address          string   `json:"address"`
		BankName         string   `json:"bank_name"`
		BankCode         string   `json:"bank_code"`
		AccountNumber    string   `json:"account_number"`
		PercentageCharge *float64 `json:"percentage_charge"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	bankChanged := (req.BankCode != "" && req.BankCode != profile.SettlementBank) ||
		(req.AccountNumber != "" && req.AccountNumber != profile.AccountNumber) ||
		(req.PercentageCharge != nil && *req.PercentageCharge != profile.PercentageCharge)
	if bankChanged && profile.SubaccountCode != "" {
		bankCode := profile.SettlementBank
		if req.BankCode != "" {
			bankCode = req.BankCode
		}
		accountNumber := profile.AccountNumber
		if req.AccountNumber != "" {
			accountNumber = req.AccountNumber
		}
		charge := profile.PercentageCharge
		if req.PercentageCharge != nil {
			charge = *req.PercentageCharge
		}
		storeName := profile.StoreName
		if req.StoreName != "" {
			storeName = req.StoreName
		}
		if _, err := h.Gateway.UpdateSubaccount(c.Request().Context(), profile.SubaccountCode, paystack.SubaccountRequest{
			BusinessName:     storeName,
			BankCode:         bankCode,
			AccountNumber:    accountNumber,
			PercentageCharge: charge,
		}); err != nil {
			return echo.NewHTTPError(http.StatusBadGateway, "payment gateway rejected the update")
		}
	}

	if req.StoreName != "" {
		profile.StoreName = req.StoreName
	}
	if req.StoreDescription != "" {
		profile.StoreDescription = req.StoreDescription
	}
	if req.ContactEmail != "" {
		profile.ContactEmail = req.ContactEmail
	}
	if req.PhoneNumber != "" {
		profile.PhoneNumber = req.PhoneNumber
	}
	if req.Address != "" {
		profile.Address = req.Address
	}
	if req.BankName != "" {
		profile.BankName = req.BankName
	}
	if req.BankCode != "" {
		profile.SettlementBank = req.BankCode
	}
	if req.AccountNumber != "" {
		profile.AccountNumber = req.AccountNumber
	}
	if req.PercentageCharge != nil {
		profile.PercentageCharge = *req.PercentageCharge
	}
	if err := h.DB.Save(&profile).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update vendor")
	}
	return c.JSON(http.StatusOK, profile)
}

// AdminIndex lists all vendor profiles for back-office review.
func (h *VendorHandler) AdminIndex(c echo.Context) error {
	page, offset, limit := pageParams(c)
	q := h.DB.Model(&models.VendorProfile{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to count vendors")
	}
	var profiles []models.VendorProfile
	if err := q.Preload("User").Order("created_at DESC").
		Offset(offset).Limit(limit).Find(&profiles).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load vendors")
	}
	for i := range profiles {
		if profiles[i].User != nil {
			profiles[i].User.PasswordHash = ""
		}
	}
	return listResponse(c, profiles, page, limit, total)
}
