package handlers

import (
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/duadua/marketplace/internal/models"
)

func onboardingBody() map[string]any {
	return map[string]any{
		"name":           "Ada Stone",
		"email":          "Ada@Stones.test",
		"password":       "password123",
		"store_name":     "Stoneware",
		"bank_code":      "001",
		"account_number": "0123456789",
	}
}

func TestAdminVendorOnboarding(t *testing.T) {
	db := newTestDB(t)
	e := echo.New()
	h := &VendorHandler{DB: db, Gateway: &fakeGateway{}}

	c, rec := newContext(t, e, http.MethodPost, "/admin/vendors", onboardingBody())
	require.NoError(t, h.AdminCreate(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var user models.User
	require.NoError(t, db.Where("email = ?", "ada@stones.test").First(&user).Error)
	require.Equal(t, models.RoleVendor, user.Role)

	var profile models.VendorProfile
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&profile).Error)
	require.Equal(t, "ACCT_test", profile.SubaccountCode)
	require.Equal(t, "Test Vendor", profile.AccountName)
}

func TestAdminVendorOnboardingGatewayFailureAborts(t *testing.T) {
	db := newTestDB(t)
	e := echo.New()
	h := &VendorHandler{DB: db, Gateway: &fakeGateway{subaccountErr: errors.New("boom")}}

	c, _ := newContext(t, e, http.MethodPost, "/admin/vendors", onboardingBody())
	require.Equal(t, http.StatusBadGateway, httpErrorCode(t, h.AdminCreate(c)))

	// Nothing was written.
	var users int64
	db.Model(&models.User{}).Count(&users)
	require.Zero(t, users)
}

func TestAdminVendorUpdatePushesBankChanges(t *testing.T) {
	db := newTestDB(t)
	e := echo.New()
	vendor := createUser(t, db, "vendor@shop.test", models.RoleVendor)
	profile := models.VendorProfile{
		UserID:         vendor.ID,
		StoreName:      "Stoneware",
		SubaccountCode: "ACCT_old",
		SettlementBank: "001",
		AccountNumber:  "0123456789",
	}
	require.NoError(t, db.Create(&profile).Error)
	h := &VendorHandler{DB: db, Gateway: &fakeGateway{}}

	c, rec := newContext(t, e, http.MethodPatch, "/admin/vendors/1", map[string]any{
		"bank_code":      "002",
		"account_number": "9876543210",
	})
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, h.AdminUpdate(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.VendorProfile
	require.NoError(t, db.First(&got, profile.ID).Error)
	require.Equal(t, "002", got.SettlementBank)
	require.Equal(t, "9876543210", got.AccountNumber)
}
