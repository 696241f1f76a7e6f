package handlers

import (
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/duadua/marketplace/internal/models"
)

// seedPaidOrder creates a vendor, a product and a paid order for one unit.
func seedPaidOrder(t *testing.T, db *gorm.DB) (*models.User, *models.Order, *models.Transaction) {
	t.Helper()
	vendor := createUser(t, db, "vendor@shop.test", models.RoleVendor)
	product := createProduct(t, db, vendor.ID, "Widget", 40, 10)

	order := models.Order{
		Email:           "buyer@shop.test",
		TotalAmount:     40,
		Status:          models.OrderPaid,
		ShippingAddress: "1 Test Street",
		BillingAddress:  "1 Test Street",
	}
	require.NoError(t, db.Create(&order).Error)
	require.NoError(t, db.Create(&models.OrderItem{
		OrderID: order.ID, ProductID: product.ID, Quantity: 1, Price: 40,
	}).Error)
	transaction := models.Transaction{
		OrderID: order.ID, Reference: "ORD-TEST-1", Amount: 40, Status: models.TxSuccess,
	}
	require.NoError(t, db.Create(&transaction).Error)
	return vendor, &order, &transaction
}

func TestVendorDoneOpensSettlement(t *testing.T) {
	db := newTestDB(t)
	e := echo.New()
	vendor, order, _ := seedPaidOrder(t, db)
	h := &VendorOrderHandler{DB: db, Mailer: noopMailer()}

	c, rec := newContext(t, e, http.MethodPatch, "/vendor/orders/1/status", map[string]any{"status": "done"})
	c.SetParamNames("id")
	c.SetParamValues("1")
	asUser(c, vendor.ID, models.RoleVendor)
	require.NoError(t, h.UpdateStatus(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var settlement models.Settlement
	require.NoError(t, db.Where("order_id = ?", order.ID).First(&settlement).Error)
	require.Equal(t, models.SettlementPending, settlement.Status)
	require.Equal(t, order.TotalAmount, settlement.Amount)

	// Marking done twice conflicts.
	c2, _ := newContext(t, e, http.MethodPatch, "/vendor/orders/1/status", map[string]any{"status": "done"})
	c2.SetParamNames("id")
	c2.SetParamValues("1")
	asUser(c2, vendor.ID, models.RoleVendor)
	err := h.UpdateStatus(c2)
	require.Equal(t, http.StatusConflict, httpErrorCode(t, err))
}

func TestVendorShippedPersistsOnOrder(t *testing.T) {
	db := newTestDB(t)
	e := echo.New()
	vendor, order, _ := seedPaidOrder(t, db)
	h := &VendorOrderHandler{DB: db, Mailer: noopMailer()}

	c, rec := newContext(t, e, http.MethodPatch, "/vendor/orders/1/status", map[string]any{
		"status":          "shipped",
		"tracking_number": "TRK-99",
	})
	c.SetParamNames("id")
	c.SetParamValues("1")
	asUser(c, vendor.ID, models.RoleVendor)
	require.NoError(t, h.UpdateStatus(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.Order
	require.NoError(t, db.First(&got, order.ID).Error)
	require.Equal(t, models.OrderShipped, got.Status)
	require.Equal(t, "TRK-99", got.TrackingNumber)

	// The shipped order shows up under the status filter.
	c2, rec2 := newContext(t, e, http.MethodGet, "/vendor/orders?status=shipped", nil)
	asUser(c2, vendor.ID, models.RoleVendor)
	require.NoError(t, h.Index(c2))
	var listing struct {
		Data []models.Order `json:"data"`
	}
	decodeBody(t, rec2, &listing)
	require.Len(t, listing.Data, 1)
	require.Equal(t, order.ID, listing.Data[0].ID)

	// A shipped order can still be marked done.
	c3, _ := newContext(t, e, http.MethodPatch, "/vendor/orders/1/status", map[string]any{"status": "done"})
	c3.SetParamNames("id")
	c3.SetParamValues("1")
	asUser(c3, vendor.ID, models.RoleVendor)
	require.NoError(t, h.UpdateStatus(c3))

	require.NoError(t, db.First(&got, order.ID).Error)
	require.Equal(t, models.OrderDone, got.Status)
}

func TestVendorCannotTouchOthersOrders(t *testing.T) {
	db := newTestDB(t)
	e := echo.New()
	_, _, _ = seedPaidOrder(t, db)
	other := createUser(t, db, "other@shop.test", models.RoleVendor)
	h := &VendorOrderHandler{DB: db, Mailer: noopMailer()}

	c, _ := newContext(t, e, http.MethodPatch, "/vendor/orders/1/status", map[string]any{"status": "done"})
	c.SetParamNames("id")
	c.SetParamValues("1")
	asUser(c, other.ID, models.RoleVendor)
	err := h.UpdateStatus(c)
	require.Equal(t, http.StatusNotFound, httpErrorCode(t, err))
}

func TestTransactionCompletionCompletesOrder(t *testing.T) {
	db := newTestDB(t)
	e := echo.New()
	admin := createUser(t, db, "admin@shop.test", models.RoleAdmin)
	_, order, transaction := seedPaidOrder(t, db)
	h := &TransactionHandler{DB: db, Mailer: noopMailer()}

	c, rec := newContext(t, e, http.MethodPatch, "/admin/transactions/1", map[string]any{"status": "completed"})
	c.SetParamNames("id")
	c.SetParamValues("1")
	asUser(c, admin.ID, models.RoleAdmin)
	require.NoError(t, h.Update(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var updated models.Order
	require.NoError(t, db.First(&updated, order.ID).Error)
	require.Equal(t, models.OrderCompleted, updated.Status)
	_ = transaction
}

func TestSettlementPayoutGuard(t *testing.T) {
	db := newTestDB(t)
	e := echo.New()
	admin := createUser(t, db, "admin@shop.test", models.RoleAdmin)
	_, order, _ := seedPaidOrder(t, db)

	settlement := models.Settlement{OrderID: order.ID, Amount: order.TotalAmount, Status: models.SettlementPending}
	require.NoError(t, db.Create(&settlement).Error)
	h := &SettlementHandler{DB: db, Mailer: noopMailer()}

	patch := func(body map[string]any) (int, error) {
		c, rec := newContext(t, e, http.MethodPatch, "/admin/settlements/1", body)
		c.SetParamNames("id")
		c.SetParamValues("1")
		asUser(c, admin.ID, models.RoleAdmin)
		err := h.Update(c)
		return rec.Code, err
	}

	// Payout before approval is refused.
	_, err := patch(map[string]any{"status": models.SettlementPaid})
	require.Equal(t, http.StatusUnprocessableEntity, httpErrorCode(t, err))

	code, err := patch(map[string]any{"status": models.SettlementApproved})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, code)

	// Still refused: the order has not completed.
	_, err = patch(map[string]any{"status": models.SettlementPaid})
	require.Equal(t, http.StatusUnprocessableEntity, httpErrorCode(t, err))

	require.NoError(t, db.Model(&models.Order{}).Where("id = ?", order.ID).
		Update("status", models.OrderCompleted).Error)

	code, err = patch(map[string]any{"status": models.SettlementPaid, "disbursement_id": "DISB-42"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, code)

	var paid models.Settlement
	require.NoError(t, db.First(&paid, settlement.ID).Error)
	require.Equal(t, models.SettlementPaid, paid.Status)
	require.Equal(t, "DISB-42", paid.DisbursementID)

	var settled models.Order
	require.NoError(t, db.First(&settled, order.ID).Error)
	require.Equal(t, models.OrderSettled, settled.Status)
}
