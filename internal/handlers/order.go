package handlers

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/duadua/marketplace/internal/mailer"
	"github.com/duadua/marketplace/internal/middleware/auth"
	"github.com/duadua/marketplace/internal/models"
	"github.com/duadua/marketplace/internal/mykafka"
	"github.com/duadua/marketplace/internal/paystack"
)

type OrderHandler struct {
	DB        *gorm.DB
	Producer  *mykafka.Producer
	Mailer    *mailer.Mailer
	Gateway   paystack.Gateway
	PublicKey string
}

// lockForUpdate adds a row lock on dialects that support it. SQLite has no
// row locks; its single writer serializes checkouts instead.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// Index lists the caller's orders. An authenticated request that still
// carries a guest session id first claims that guest's orders, so a shopper
// who checked out before signing up keeps their history.
func (h *OrderHandler) Index(c echo.Context) error {
	userID := auth.UserID(c)
	guestID := guestIDFromRequest(c)
	page, offset, limit := pageParams(c)

	q := h.DB.Model(&models.Order{})
	switch {
	case userID != 0:
		if guestID != "" {
			h.DB.Model(&models.Order{}).
				Where("guest_id = ? AND user_id IS NULL", guestID).
				Updates(map[string]any{"user_id": userID, "guest_id": nil})
		}
		q = q.Where("user_id = ?", userID)
	case guestID != "":
		q = q.Where("guest_id = ?", guestID)
	default:
		return echo.NewHTTPError(http.StatusUnauthorized, "sign in or provide a guest id")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to count orders")
	}
	var orders []models.Order
	if err := q.Preload("Items").Preload("Items.Product").
		Order("created_at DESC").Offset(offset).Limit(limit).Find(&orders).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load orders")
	}
	return listResponse(c, orders, page, limit, total)
}

func (h *OrderHandler) Show(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var order models.Order
	if err := h.DB.Preload("Items").Preload("Items.Product").
		Preload("Transactions").First(&order, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "order not found")
	}
	if !h.canAccess(c, &order) {
		return echo.NewHTTPError(http.StatusNotFound, "order not found")
	}
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) canAccess(c echo.Context, order *models.Order) bool {
	if auth.Role(c) == models.RoleAdmin {
		return true
	}
	if userID := auth.UserID(c); userID != 0 && order.UserID != nil && *order.UserID == userID {
		return true
	}
	if guestID := guestIDFromRequest(c); guestID != "" && order.GuestID != nil && *order.GuestID == guestID {
		return true
	}
	return false
}

// Checkout converts the cart into a pending order. Stock is reserved
// immediately: product rows are locked in ascending id order (so concurrent
// checkouts cannot deadlock), quantities are clamped to what is in stock, and
// totals come from the live product prices, not the prices the cart saw.
func (h *OrderHandler) Checkout(c echo.Context) error {
	var req struct {
		Email           string `json:"email"`
		ShippingAddress string `json:"shipping_address"`
		BillingAddress  string `json:"billing_address"`
		CartID          string `json:"cart_id"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.ShippingAddress == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "email and shipping_address are required")
	}
	if req.BillingAddress == "" {
		req.BillingAddress = req.ShippingAddress
	}

	userID := auth.UserID(c)
	guestID := guestIDFromRequest(c)
	if userID == 0 && guestID == "" {
		guestID = uuid.NewString()
	}

	var order models.Order
	var items []models.CartItem
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		var cart models.Cart
		cartQuery := tx.Where("id = ?", req.CartID)
		if userID != 0 {
			cartQuery = tx.Where("user_id = ?", userID)
		} else if req.CartID == "" {
			cartQuery = tx.Where("id = ?", cartIDFromRequest(c))
		}
		if err := cartQuery.First(&cart).Error; err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "cart not found")
		}

		if err := tx.Where("cart_id = ?", cart.ID).Find(&items).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "cart is empty")
		}

		idSet := map[uint]struct{}{}
		for _, item := range items {
			idSet[item.ProductID] = struct{}{}
		}
		productIDs := make([]uint, 0, len(idSet))
		for id := range idSet {
			productIDs = append(productIDs, id)
		}
		sort.Slice(productIDs, func(i, j int) bool { return productIDs[i] < productIDs[j] })

		var products []models.Product
		if err := lockForUpdate(tx).Where("id IN ?", productIDs).
			Order("id ASC").Find(&products).Error; err != nil {
			return err
		}
		byID := make(map[uint]*models.Product, len(products))
		for i := range products {
			byID[products[i].ID] = &products[i]
		}

		var total float64
		orderItems := make([]models.OrderItem, 0, len(items))
		for _, item := range items {
			product, ok := byID[item.ProductID]
			if !ok || !product.Open() {
				return echo.NewHTTPError(http.StatusUnprocessableEntity,
					fmt.Sprintf("product %d is no longer available", item.ProductID))
			}
			if product.Stock < 1 {
				return echo.NewHTTPError(http.StatusUnprocessableEntity,
					fmt.Sprintf("%s is out of stock", product.Name))
			}
			qty := item.Quantity
			if qty > product.Stock {
				qty = product.Stock
			}
			product.Stock -= qty
			total += product.Price * float64(qty)
			orderItems = append(orderItems, models.OrderItem{
				ProductID: product.ID,
				Quantity:  qty,
				Price:     product.Price,
			})
		}

		for i := range products {
			if err := tx.Model(&models.Product{}).Where("id = ?", products[i].ID).
				Update("stock", products[i].Stock).Error; err != nil {
				return err
			}
		}

		order = models.Order{
			Email:           req.Email,
			TotalAmount:     total,
			Status:          models.OrderPending,
			ShippingAddress: req.ShippingAddress,
			BillingAddress:  req.BillingAddress,
		}
		if userID != 0 {
			order.UserID = &userID
		} else {
			order.GuestID = &guestID
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}
		for i := range orderItems {
			orderItems[i].OrderID = order.ID
		}
		if err := tx.Create(&orderItems).Error; err != nil {
			return err
		}
		order.Items = orderItems

		reference, err := orderReference()
		if err != nil {
			return err
		}
		transaction := models.Transaction{
			OrderID:   order.ID,
			Reference: reference,
			Amount:    total,
			Status:    models.TxPending,
		}
		if err := tx.Create(&transaction).Error; err != nil {
			return err
		}
		order.Transactions = []models.Transaction{transaction}

		return tx.Where("cart_id = ?", cart.ID).Delete(&models.CartItem{}).Error
	})
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "checkout failed")
	}

	h.notifyVendors(c, &order)
	publish(c, h.Producer, "order_events", order.Transactions[0].Reference, map[string]any{
		"type":    "order_created",
		"orderID": order.ID,
		"total":   order.TotalAmount,
	})

	resp := map[string]any{
		"order": order,
		"paystack": map[string]any{
			"key":       h.PublicKey,
			"email":     order.Email,
			"amount":    int64(math.Round(order.TotalAmount * 100)),
			"reference": order.Transactions[0].Reference,
		},
	}
	if order.GuestID != nil {
		resp["guest_id"] = *order.GuestID
	}
	return c.JSON(http.StatusCreated, resp)
}

// notifyVendors mails each vendor whose product appears in the order. Best
// effort only.
func (h *OrderHandler) notifyVendors(c echo.Context, order *models.Order) {
	productIDs := make([]uint, 0, len(order.Items))
	for _, item := range order.Items {
		productIDs = append(productIDs, item.ProductID)
	}
	var vendors []models.User
	err := h.DB.Distinct("users.*").
		Joins("JOIN products ON products.user_id = users.id").
		Where("products.id IN ?", productIDs).
		Find(&vendors).Error
	if err != nil {
		c.Logger().Errorf("vendor lookup error: %v", err)
		return
	}
	for _, vendor := range vendors {
		h.Mailer.SendNewOrder(vendor.Email, order.ID)
	}
}

// VerifyPayment asks the gateway about a reference and settles the order
// state. Verification is idempotent: a transaction already marked success is
// returned as-is without another gateway call, and stock is restored at most
// once when a payment fails.
func (h *OrderHandler) VerifyPayment(c echo.Context) error {
	var req struct {
		Reference string `json:"reference"`
	}
	if err := c.Bind(&req); err != nil || req.Reference == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "reference is required")
	}

	var transaction models.Transaction
	if err := h.DB.Preload("Order").Preload("Order.Items").
		Where("reference = ?", req.Reference).First(&transaction).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "transaction not found")
	}
	if transaction.Order == nil || !h.canAccess(c, transaction.Order) {
		return echo.NewHTTPError(http.StatusNotFound, "transaction not found")
	}

	if transaction.Status == models.TxSuccess {
		return c.JSON(http.StatusOK, map[string]any{
			"status": transaction.Status,
			"order":  transaction.Order,
		})
	}

	result, err := h.Gateway.VerifyTransaction(c.Request().Context(), req.Reference)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "payment verification failed")
	}

	order := transaction.Order
	if result.Status == "success" {
		err = h.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&transaction).Update("status", models.TxSuccess).Error; err != nil {
				return err
			}
			return tx.Model(order).Update("status", models.OrderPaid).Error
		})
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to record payment")
		}
		transaction.Status = models.TxSuccess
		order.Status = models.OrderPaid

		h.Mailer.SendOrderConfirmation(order.Email, order.ID, order.TotalAmount)
		publish(c, h.Producer, "order_events", req.Reference, map[string]any{
			"type":    "order_paid",
			"orderID": order.ID,
		})
		return c.JSON(http.StatusOK, map[string]any{"status": transaction.Status, "order": order})
	}

	// Failed or abandoned: release the reserved stock, once.
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&transaction).Update("status", models.TxFailed).Error; err != nil {
			return err
		}
		if order.Status != models.OrderPending {
			return nil // stock already released by an earlier verification
		}
		for _, item := range order.Items {
			if err := tx.Model(&models.Product{}).Where("id = ?", item.ProductID).
				Update("stock", gorm.Expr("stock + ?", item.Quantity)).Error; err != nil {
				return err
			}
		}
		return tx.Model(order).Update("status", models.OrderFailed).Error
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to record payment")
	}
	transaction.Status = models.TxFailed
	order.Status = models.OrderFailed

	h.Mailer.SendPaymentFailed(order.Email, order.ID)
	publish(c, h.Producer, "order_events", req.Reference, map[string]any{
		"type":    "order_payment_failed",
		"orderID": order.ID,
	})
	return c.JSON(http.StatusOK, map[string]any{"status": transaction.Status, "order": order})
}
