package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/duadua/marketplace/internal/mailer"
	"github.com/duadua/marketplace/internal/middleware/auth"
	"github.com/duadua/marketplace/internal/models"
	"github.com/duadua/marketplace/internal/mykafka"
	"github.com/duadua/marketplace/internal/util"
)

// VendorOrderHandler serves vendors the orders that contain their products
// and lets them drive fulfillment.
type VendorOrderHandler struct {
	DB       *gorm.DB
	Mailer   *mailer.Mailer
	Producer *mykafka.Producer
}

func (h *VendorOrderHandler) vendorOrderIDs(userID uint) *gorm.DB {
	return h.DB.Model(&models.OrderItem{}).
		Select("DISTINCT order_items.order_id").
		Joins("JOIN products ON products.id = order_items.product_id").
		Where("products.user_id = ?", userID)
}

// Index lists paid-or-later orders containing the vendor's products.
func (h *VendorOrderHandler) Index(c echo.Context) error {
	userID := auth.UserID(c)
	page, offset, limit := pageParams(c)

	q := h.DB.Model(&models.Order{}).
		Where("id IN (?)", h.vendorOrderIDs(userID)).
		Where("status <> ?", models.OrderPending)
	if v := c.QueryParam("status"); v != "" {
		q = q.Where("status = ?", v)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to count orders")
	}
	var orders []models.Order
	if err := q.Preload("Items").Preload("Items.Product").Preload("Settlement").
		Order("created_at DESC").Offset(offset).Limit(limit).Find(&orders).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load orders")
	}
	return listResponse(c, orders, page, limit, total)
}

// orderInFulfillment reports whether a vendor can still progress the order:
// paid for, not yet confirmed complete by an admin.
func orderInFulfillment(status string) bool {
	switch status {
	case models.OrderPaid, models.OrderProcessing, models.OrderShipped, models.OrderDone:
		return true
	}
	return false
}

// UpdateStatus records fulfillment progress. Marking an order done opens its
// settlement record; the settlement is paid out later once an admin approves
// it and the order completes.
func (h *VendorOrderHandler) UpdateStatus(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req struct {
		Status         string `json:"status"`
		TrackingNumber string `json:"tracking_number"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	userID := auth.UserID(c)
	var order models.Order
	err = h.DB.Where("id = ? AND id IN (?)", id, h.vendorOrderIDs(userID)).
		Preload("Settlement").First(&order).Error
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "order not found")
	}
	if !orderInFulfillment(order.Status) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "order is not awaiting fulfillment")
	}

	switch req.Status {
	case models.OrderProcessing, models.OrderShipped:
		updates := map[string]any{"status": req.Status}
		if req.TrackingNumber != "" {
			updates["tracking_number"] = req.TrackingNumber
		}
		if err := h.DB.Model(&order).Updates(updates).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to update order")
		}
		h.Mailer.SendOrderProgress(order.Email, order.ID, req.Status)
		return c.JSON(http.StatusOK, order)

	case models.OrderDone:
		if order.Settlement != nil {
			return echo.NewHTTPError(http.StatusConflict, "settlement already opened")
		}
		if err := h.DB.Model(&order).Update("status", models.OrderDone).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to update order")
		}
		settlement := models.Settlement{
			OrderID: order.ID,
			Amount:  order.TotalAmount,
			Status:  models.SettlementPending,
		}
		if err := h.DB.Create(&settlement).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to open settlement")
		}
		publish(c, h.Producer, "settlement_events", order.Email, map[string]any{
			"type":         "settlement_opened",
			"orderID":      order.ID,
			"settlementID": settlement.ID,
		})
		return c.JSON(http.StatusOK, map[string]any{"order": order, "settlement": settlement})

	default:
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "unknown status")
	}
}

// TransactionHandler is the admin view over payment transactions.
type TransactionHandler struct {
	DB     *gorm.DB
	Mailer *mailer.Mailer
}

func (h *TransactionHandler) Index(c echo.Context) error {
	page, offset, limit := pageParams(c)
	q := h.DB.Model(&models.Transaction{})
	if v := c.QueryParam("status"); v != "" {
		q = q.Where("status = ?", v)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to count transactions")
	}
	var items []models.Transaction
	if err := q.Preload("Order").Order("created_at DESC").
		Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load transactions")
	}

	now := time.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	yearStart := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	var monthly, yearly float64
	h.DB.Model(&models.Transaction{}).
		Where("status = ? AND created_at >= ?", models.TxSuccess, monthStart).
		Select("COALESCE(SUM(amount), 0)").Scan(&monthly)
	h.DB.Model(&models.Transaction{}).
		Where("status = ? AND created_at >= ?", models.TxSuccess, yearStart).
		Select("COALESCE(SUM(amount), 0)").Scan(&yearly)

	return c.JSON(http.StatusOK, map[string]any{
		"data": items,
		"meta": util.NewMeta(page, limit, total),
		"summary": map[string]float64{
			"monthly_volume": monthly,
			"yearly_volume":  yearly,
		},
	})
}

// Update transitions a transaction. Marking one "completed" confirms delivery
// and completes the order, which is the precondition for paying out its
// settlement.
func (h *TransactionHandler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Status != "completed" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "unknown status")
	}

	var transaction models.Transaction
	if err := h.DB.Preload("Order").First(&transaction, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "transaction not found")
	}
	if transaction.Status != models.TxSuccess {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "only successful transactions can complete")
	}
	order := transaction.Order
	if order == nil || !orderInFulfillment(order.Status) {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "order is not in a completable state")
	}

	if err := h.DB.Model(order).Update("status", models.OrderCompleted).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to complete order")
	}
	order.Status = models.OrderCompleted
	h.Mailer.SendOrderProgress(order.Email, order.ID, models.OrderCompleted)
	return c.JSON(http.StatusOK, map[string]any{"transaction": transaction, "order": order})
}

// SettlementHandler manages vendor payouts.
type SettlementHandler struct {
	DB       *gorm.DB
	Mailer   *mailer.Mailer
	Producer *mykafka.Producer
}

// Index lists settlements: admins see all, vendors only their own orders'.
func (h *SettlementHandler) Index(c echo.Context) error {
	page, offset, limit := pageParams(c)
	q := h.DB.Model(&models.Settlement{})
	if auth.Role(c) != models.RoleAdmin {
		sub := h.DB.Model(&models.OrderItem{}).
			Select("DISTINCT order_items.order_id").
			Joins("JOIN products ON products.id = order_items.product_id").
			Where("products.user_id = ?", auth.UserID(c))
		q = q.Where("order_id IN (?)", sub)
	}
	if v := c.QueryParam("status"); v != "" {
		q = q.Where("status = ?", v)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to count settlements")
	}
	var items []models.Settlement
	if err := q.Preload("Order").Order("created_at DESC").
		Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load settlements")
	}

	now := time.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	yearStart := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	paid := func(since time.Time) float64 {
		var sum float64
		scope := h.DB.Model(&models.Settlement{}).
			Where("settlements.status = ? AND settlements.updated_at >= ?", models.SettlementPaid, since)
		if auth.Role(c) != models.RoleAdmin {
			sub := h.DB.Model(&models.OrderItem{}).
				Select("DISTINCT order_items.order_id").
				Joins("JOIN products ON products.id = order_items.product_id").
				Where("products.user_id = ?", auth.UserID(c))
			scope = scope.Where("order_id IN (?)", sub)
		}
		scope.Select("COALESCE(SUM(amount), 0)").Scan(&sum)
		return sum
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": items,
		"meta": util.NewMeta(page, limit, total),
		"summary": map[string]float64{
			"monthly_paid": paid(monthStart),
			"yearly_paid":  paid(yearStart),
		},
	})
}

// Update transitions a settlement. "approved" is a plain admin sign-off;
// "paid" additionally requires the order to be completed, and records the
// disbursement id exactly once while moving the order to its terminal
// "completed & settled" state.
func (h *SettlementHandler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req struct {
		Status         string `json:"status"`
		DisbursementID string `json:"disbursement_id"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	var settlement models.Settlement
	if err := h.DB.Preload("Order").First(&settlement, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "settlement not found")
	}

	switch req.Status {
	case models.SettlementApproved:
		if settlement.Status != models.SettlementPending {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "settlement is not pending")
		}
		if err := h.DB.Model(&settlement).Update("status", models.SettlementApproved).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to update settlement")
		}
		settlement.Status = models.SettlementApproved

	case models.SettlementPaid:
		if settlement.Status != models.SettlementApproved {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "settlement must be approved before payout")
		}
		if settlement.Order == nil || settlement.Order.Status != models.OrderCompleted {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "order must be completed before payout")
		}
		err := h.DB.Transaction(func(tx *gorm.DB) error {
			updates := map[string]any{"status": models.SettlementPaid}
			if req.DisbursementID != "" {
				updates["disbursement_id"] = req.DisbursementID
			}
			if err := tx.Model(&settlement).Updates(updates).Error; err != nil {
				return err
			}
			return tx.Model(settlement.Order).Update("status", models.OrderSettled).Error
		})
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to update settlement")
		}
		settlement.Status = models.SettlementPaid
		settlement.DisbursementID = req.DisbursementID
		settlement.Order.Status = models.OrderSettled

	default:
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "unknown status")
	}

	h.notifyVendor(&settlement)
	publish(c, h.Producer, "settlement_events", req.Status, map[string]any{
		"type":         "settlement_" + req.Status,
		"settlementID": settlement.ID,
		"orderID":      settlement.OrderID,
	})
	return c.JSON(http.StatusOK, settlement)
}

func (h *SettlementHandler) notifyVendor(settlement *models.Settlement) {
	var vendors []models.User
	err := h.DB.Distinct("users.*").
		Joins("JOIN products ON products.user_id = users.id").
		Joins("JOIN order_items ON order_items.product_id = products.id").
		Where("order_items.order_id = ?", settlement.OrderID).
		Find(&vendors).Error
	if err != nil {
		return
	}
	for _, vendor := range vendors {
		h.Mailer.SendSettlementUpdate(vendor.Email, settlement.ID, settlement.Status)
	}
}
