package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	RoleCustomer = "customer"
	RoleVendor   = "vendor"
	RoleAdmin    = "admin"
)

const (
	ProductAvailable   = "available"
	ProductUnavailable = "unavailable"
	ProductArchived    = "archived"

	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

const (
	OrderPending    = "pending"
	OrderPaid       = "paid"
	OrderFailed     = "failed"
	OrderProcessing = "processing"
	OrderShipped    = "shipped"
	OrderDone       = "done"
	OrderCompleted  = "completed"
	OrderSettled    = "completed & settled"
)

const (
	TxPending = "pending"
	TxSuccess = "success"
	TxFailed  = "failed"
)

const (
	SettlementPending  = "pending"
	SettlementApproved = "approved"
	SettlementPaid     = "paid"
)

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string    `gorm:"not null"                 json:"name"`
	Email        string    `gorm:"uniqueIndex;not null"     json:"email"`
	PasswordHash string    `gorm:"not null"                 json:"-"`
	Role         string    `gorm:"not null;default:customer" json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Products      []Product      `gorm:"foreignKey:UserID" json:"products,omitempty"`
	Cart          *Cart          `gorm:"foreignKey:UserID" json:"cart,omitempty"`
	Wishlist      *Wishlist      `gorm:"foreignKey:UserID" json:"wishlist,omitempty"`
	VendorProfile *VendorProfile `gorm:"foreignKey:UserID" json:"vendor_profile,omitempty"`
}

type RefreshToken struct {
	ID        uint   `gorm:"primaryKey"      json:"id"`
	Token     string `gorm:"unique;not null" json:"token"`
	UserID    uint   `gorm:"index;not null"  json:"user_id"`
	ExpiresAt int64  `gorm:"not null"        json:"expires_at"`
	Revoked   bool   `gorm:"default:false"   json:"revoked"`
}

// PasswordReset is a shared-secret OTP/token row keyed by email. A row is
// valid for fifteen minutes and is deleted once the password is reset.
type PasswordReset struct {
	Email     string    `gorm:"primaryKey" json:"email"`
	Token     string    `gorm:"not null"   json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

type Product struct {
	ID          uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      uint           `gorm:"index;not null"           json:"user_id"`
	CategoryID  *uint          `gorm:"index"                    json:"category_id"`
	Name        string         `gorm:"not null"                 json:"name"`
	Slug        string         `gorm:"uniqueIndex"              json:"slug"`
	Description string         `json:"description"`
	Price       float64        `gorm:"not null"                 json:"price"`
	Stock       int            `gorm:"not null;default:0;check:stock >= 0" json:"stock"`
	Status      string         `gorm:"not null;default:available" json:"status"`
	Approval    string         `gorm:"column:approval_status;not null;default:pending" json:"approval_status"`
	Image       string         `json:"image"`
	Images      datatypes.JSON `json:"images"`
	Tags        datatypes.JSON `json:"tags"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	User     *User           `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Category *Category       `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Options  []ProductOption `gorm:"foreignKey:ProductID" json:"options,omitempty"`
}

// Open reports whether the product may be sold to customers: it must be
// available and have passed moderation.
func (p *Product) Open() bool {
	return p.Status == ProductAvailable && p.Approval == ApprovalApproved
}

// ProductOption describes a selectable variant axis, e.g. Size -> [S, M, L].
type ProductOption struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	ProductID uint           `gorm:"index;not null" json:"product_id"`
	Name      string         `gorm:"not null" json:"name"`
	Values    datatypes.JSON `json:"values"`
}

type Category struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"uniqueIndex;not null"     json:"name"`
	Slug        string    `gorm:"uniqueIndex"              json:"slug"`
	Description string    `json:"description"`
	Image       string    `json:"image"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Products []Product `gorm:"foreignKey:CategoryID" json:"products,omitempty"`
}

const (
	ShowcaseStandard         = "standard"
	ShowcaseWithPlaceholders = "with_placeholders"
)

type ShowcaseSet struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"uniqueIndex;not null"     json:"name"`
	Slug        string    `gorm:"uniqueIndex"              json:"slug"`
	Description string    `json:"description"`
	Type        string    `gorm:"not null;default:standard" json:"type"`
	IsActive    bool      `gorm:"default:true"             json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Products     []Product             `gorm:"many2many:product_showcase_sets" json:"products,omitempty"`
	Placeholders []ShowcasePlaceholder `gorm:"foreignKey:ShowcaseSetID" json:"placeholders,omitempty"`
}

type ShowcasePlaceholder struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	ShowcaseSetID uint   `gorm:"index;not null" json:"showcase_set_id"`
	Title         string `gorm:"not null" json:"title"`
	Description   string `json:"description"`
	CTAText       string `gorm:"column:cta_text" json:"cta_text"`
	CTAURL        string `gorm:"column:cta_url"  json:"cta_url"`

	Products []Product `gorm:"many2many:product_showcase_placeholders" json:"products,omitempty"`
}

// Cart is addressed by an opaque UUID so an anonymous client can hold on to
// the id without it being guessable. UserID is nil for anonymous carts; an
// authenticated user has at most one cart.
type Cart struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    *uint     `gorm:"uniqueIndex"        json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Items []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE" json:"items"`
}

func (c *Cart) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// CartItem lines are unique per (cart, product, normalized options bag).
type CartItem struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	CartID    string            `gorm:"index;size:36;not null" json:"cart_id"`
	ProductID uint              `gorm:"index;not null" json:"product_id"`
	Quantity  int               `gorm:"not null;check:quantity > 0" json:"quantity"`
	Options   datatypes.JSONMap `json:"options"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`

	Product *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}

type Wishlist struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    *uint     `gorm:"uniqueIndex"        json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Items []WishlistItem `gorm:"foreignKey:WishlistID;constraint:OnDelete:CASCADE" json:"items"`
}

func (w *Wishlist) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	return nil
}

type WishlistItem struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	WishlistID string    `gorm:"uniqueIndex:idx_wishlist_product;size:36;not null" json:"wishlist_id"`
	ProductID  uint      `gorm:"uniqueIndex:idx_wishlist_product;not null" json:"product_id"`
	CreatedAt  time.Time `json:"created_at"`

	Product *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}

// Order belongs to either a user or a guest session id, never both. Email and
// addresses are snapshots taken at checkout time.
type Order struct {
	ID              uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID          *uint     `gorm:"index" json:"user_id"`
	GuestID         *string   `gorm:"index;size:64" json:"guest_id"`
	Email           string    `gorm:"not null" json:"email"`
	TotalAmount     float64   `gorm:"not null" json:"total_amount"`
	Status          string    `gorm:"not null;default:pending" json:"status"`
	ShippingAddress string    `gorm:"not null" json:"shipping_address"`
	BillingAddress  string    `gorm:"not null" json:"billing_address"`
	TrackingNumber  string    `json:"tracking_number"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	User         *User         `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Items        []OrderItem   `gorm:"foreignKey:OrderID" json:"items,omitempty"`
	Transactions []Transaction `gorm:"foreignKey:OrderID" json:"transactions,omitempty"`
	Settlement   *Settlement   `gorm:"foreignKey:OrderID" json:"settlement,omitempty"`
}

// OrderItem snapshots price and quantity at checkout; later product edits do
// not affect it.
type OrderItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OrderID   uint      `gorm:"index;not null" json:"order_id"`
	ProductID uint      `gorm:"index;not null" json:"product_id"`
	Quantity  int       `gorm:"not null" json:"quantity"`
	Price     float64   `gorm:"not null" json:"price"`
	CreatedAt time.Time `json:"created_at"`

	Product *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}

// Transaction carries the gateway reference used to verify a payment.
type Transaction struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OrderID   uint      `gorm:"index;not null" json:"order_id"`
	Reference string    `gorm:"uniqueIndex;not null" json:"reference"`
	Amount    float64   `gorm:"not null" json:"amount"`
	Status    string    `gorm:"not null;default:pending" json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Order *Order `gorm:"foreignKey:OrderID" json:"order,omitempty"`
}

// Settlement is the payout record for a completed order. DisbursementID is
// the transfer that paid the vendor out, recorded exactly once when the
// settlement moves to paid.
type Settlement struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	OrderID        uint      `gorm:"uniqueIndex;not null" json:"order_id"`
	Amount         float64   `gorm:"not null" json:"amount"`
	Status         string    `gorm:"not null;default:pending" json:"status"`
	DisbursementID string    `json:"disbursement_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	Order *Order `gorm:"foreignKey:OrderID" json:"order,omitempty"`
}

type VendorProfile struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	UserID           uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	StoreName        string    `gorm:"uniqueIndex;not null" json:"store_name"`
	StoreDescription string    `json:"store_description"`
	StoreLogo        string    `json:"store_logo"`
	ContactEmail     string    `json:"contact_email"`
	PhoneNumber      string    `json:"phone_number"`
	Address          string    `json:"address"`
	SubaccountCode   string    `json:"subaccount_code"`
	BankName         string    `json:"bank_name"`
	AccountNumber    string    `json:"account_number"`
	AccountName      string    `json:"account_name"`
	SettlementBank   string    `json:"settlement_bank"`
	PercentageCharge float64   `json:"percentage_charge"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

type AccountSetting struct {
	ID                       uint           `gorm:"primaryKey" json:"id"`
	UserID                   uint           `gorm:"uniqueIndex;not null" json:"user_id"`
	SettlementAccountDetails datatypes.JSON `json:"settlement_account_details"`
	StoreStatus              string         `gorm:"default:active" json:"store_status"`
	CreatedAt                time.Time      `json:"created_at"`
	UpdatedAt                time.Time      `json:"updated_at"`
}

// Slugged entity kinds a redirect may point at.
const (
	KindProduct     = "product"
	KindCategory    = "category"
	KindShowcaseSet = "showcase_set"
)

// SlugRedirect is an append-only log of retired slugs. Old links resolve
// through it and answer with a permanent redirect to the current slug.
type SlugRedirect struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Slug       string    `gorm:"index;not null" json:"slug"`
	EntityKind string    `gorm:"index:idx_redirect_entity;not null" json:"entity_kind"`
	EntityID   uint      `gorm:"index:idx_redirect_entity;not null" json:"entity_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// All lists every model for AutoMigrate.
func All() []any {
	return []any{
		&User{}, &RefreshToken{}, &PasswordReset{},
		&Product{}, &ProductOption{}, &Category{},
		&ShowcaseSet{}, &ShowcasePlaceholder{},
		&Cart{}, &CartItem{}, &Wishlist{}, &WishlistItem{},
		&Order{}, &OrderItem{}, &Transaction{}, &Settlement{},
		&VendorProfile{}, &AccountSetting{}, &SlugRedirect{},
	}
}
