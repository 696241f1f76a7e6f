package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/duadua/marketplace/internal/hash"
	"github.com/duadua/marketplace/internal/mailer"
	"github.com/duadua/marketplace/internal/middleware/auth"
	"github.com/duadua/marketplace/internal/models"
	"github.com/duadua/marketplace/internal/paystack"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to open in-memory db")
	require.NoError(t, db.AutoMigrate(models.All()...), "failed to migrate tables")
	return db
}

// newContext builds an echo context carrying a JSON body; the response
// recorder is returned for assertions.
func newContext(t *testing.T, e *echo.Echo, method, path string, body any) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func asUser(c echo.Context, userID uint, role string) {
	c.Set(auth.ContextUserID, userID)
	c.Set(auth.ContextRole, role)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func httpErrorCode(t *testing.T, err error) int {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected *echo.HTTPError, got %v", err)
	return he.Code
}

func noopMailer() *mailer.Mailer {
	return &mailer.Mailer{}
}

func createUser(t *testing.T, db *gorm.DB, email, role string) *models.User {
	t.Helper()
	passwordHash, err := hash.HashPassword("password123")
	require.NoError(t, err)
	user := models.User{Name: "Test " + role, Email: email, PasswordHash: passwordHash, Role: role}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func createProduct(t *testing.T, db *gorm.DB, vendorID uint, name string, price float64, stock int) *models.Product {
	t.Helper()
	product := models.Product{
		UserID:   vendorID,
		Name:     name,
		Slug:     strings.ToLower(strings.ReplaceAll(name, " ", "-")),
		Price:    price,
		Stock:    stock,
		Status:   models.ProductAvailable,
		Approval: models.ApprovalApproved,
	}
	require.NoError(t, db.Create(&product).Error)
	return &product
}

// fakeGateway records verification calls and answers with a fixed status.
type fakeGateway struct {
	status        string
	verifyCalls   int
	subaccountErr error
}

func (g *fakeGateway) VerifyTransaction(_ context.Context, reference string) (*paystack.VerifyData, error) {
	g.verifyCalls++
	return &paystack.VerifyData{Status: g.status, Reference: reference}, nil
}

func (g *fakeGateway) CreateSubaccount(_ context.Context, req paystack.SubaccountRequest) (*paystack.Subaccount, error) {
	if g.subaccountErr != nil {
		return nil, g.subaccountErr
	}
	return &paystack.Subaccount{SubaccountCode: "ACCT_test", BusinessName: req.BusinessName}, nil
}

func (g *fakeGateway) UpdateSubaccount(_ context.Context, code string, req paystack.SubaccountRequest) (*paystack.Subaccount, error) {
	return &paystack.Subaccount{SubaccountCode: code, BusinessName: req.BusinessName}, nil
}

func (g *fakeGateway) ListBanks(context.Context) ([]paystack.Bank, error) {
	return []paystack.Bank{{Name: "Test Bank", Code: "001"}}, nil
}

func (g *fakeGateway) ResolveAccount(_ context.Context, accountNumber, _ string) (*paystack.ResolvedAccount, error) {
	return &paystack.ResolvedAccount{AccountNumber: accountNumber, AccountName: "Test Vendor"}, nil
}
