package httpserver

import (
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/duadua/marketplace/internal/handlers"
	"github.com/duadua/marketplace/internal/middleware/auth"
	"github.com/duadua/marketplace/internal/models"
	"github.com/duadua/marketplace/internal/tokens"
)

type Deps struct {
	DB          *gorm.DB
	Tokens      *tokens.Manager
	Auth        *handlers.AuthHandler
	Products    *handlers.ProductHandler
	Categories  *handlers.CategoryHandler
	Showcases   *handlers.ShowcaseHandler
	Cart        *handlers.CartHandler
	Wishlist    *handlers.WishlistHandler
	Orders      *handlers.OrderHandler
	VendorOrder *handlers.VendorOrderHandler
	Vendors     *handlers.VendorHandler
	Settlements *handlers.SettlementHandler
	Txns        *handlers.TransactionHandler
	Account     *handlers.AccountHandler
	Admin       *handlers.AdminHandler
	Search      *handlers.SearchHandler
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	requireAuth := auth.RequireAuth(d.Tokens)
	optionalAuth := auth.OptionalAuth(d.Tokens)
	vendorOnly := auth.RequireRole(models.RoleVendor, models.RoleAdmin)
	adminOnly := auth.RequireRole(models.RoleAdmin)

	v1 := e.Group("/api/v1")

	v1.POST("/register", d.Auth.Register)
	v1.POST("/login", d.Auth.Login)
	v1.POST("/admin/login", d.Auth.AdminLogin)
	v1.POST("/logout", d.Auth.LogOut)
	v1.POST("/refresh", d.Auth.Refresh)
	v1.POST("/forgot-password", d.Auth.ForgotPassword, optionalAuth)
	v1.POST("/verify-otp", d.Auth.VerifyOTP)
	v1.POST("/reset-password", d.Auth.ResetPassword)
	v1.GET("/me", d.Auth.Me, requireAuth)

	v1.GET("/search", d.Search.Search)

	products := v1.Group("/products", optionalAuth)
	products.GET("", d.Products.Index)
	products.GET("/:identifier", d.Products.Show)
	products.GET("/:identifier/related", d.Products.Related)

	v1.GET("/categories", d.Categories.Index)
	v1.GET("/categories/:identifier", d.Categories.Show)

	v1.GET("/showcases", d.Showcases.Index)
	v1.GET("/showcases/:identifier", d.Showcases.Show)

	v1.GET("/vendors/:id", d.Vendors.PublicProfile)
	v1.GET("/vendors/:id/products", d.Products.ByVendor)

	cart := v1.Group("/cart", optionalAuth)
	cart.GET("", d.Cart.GetCart)
	cart.DELETE("", d.Cart.Clear)
	cart.POST("/items", d.Cart.AddItem)
	cart.PATCH("/items/:id", d.Cart.UpdateItem)
	cart.DELETE("/items/:id", d.Cart.DeleteItem)
	cart.POST("/items/:id/wishlist", d.Cart.MoveToWishlist)

	orders := v1.Group("/orders", optionalAuth)
	orders.GET("", d.Orders.Index)
	orders.POST("/checkout", d.Orders.Checkout)
	orders.POST("/verify", d.Orders.VerifyPayment)
	orders.GET("/:id", d.Orders.Show)

	wishlist := v1.Group("/wishlist", optionalAuth)
	wishlist.GET("", d.Wishlist.Get)
	wishlist.POST("", d.Wishlist.Add)
	wishlist.DELETE("/:id", d.Wishlist.Remove)
	wishlist.POST("/:id/cart", d.Wishlist.MoveToCart)

	account := v1.Group("/account", requireAuth)
	account.GET("/settings", d.Account.GetSettings)
	account.PATCH("/settings", d.Account.UpdateSettings)
	account.PATCH("/profile", d.Account.UpdateProfile)
	account.POST("/password", d.Account.ChangePassword)

	vendor := v1.Group("/vendor", requireAuth, vendorOnly)
	vendor.GET("/profile", d.Vendors.Profile)
	vendor.PATCH("/profile", d.Vendors.UpdateProfile)
	vendor.POST("/subaccount", d.Vendors.SetupSubaccount)
	vendor.GET("/banks", d.Vendors.Banks)
	vendor.GET("/banks/resolve", d.Vendors.ResolveAccount)

	vendor.POST("/products", d.Products.Create)
	vendor.GET("/products", d.Products.MyProducts)
	vendor.GET("/products/archived", d.Products.Archived)
	vendor.PATCH("/products/:id", d.Products.Update)
	vendor.DELETE("/products/:id", d.Products.Delete)
	vendor.PATCH("/products/:id/status", d.Products.UpdateStatus)
	vendor.PATCH("/products/:id/stock", d.Products.UpdateStock)
	vendor.POST("/products/bulk", d.Products.BulkAction)

	vendor.GET("/orders", d.VendorOrder.Index)
	vendor.PATCH("/orders/:id/status", d.VendorOrder.UpdateStatus)
	vendor.GET("/settlements", d.Settlements.Index)

	admin := v1.Group("/admin", requireAuth, adminOnly)
	admin.GET("/dashboard", d.Admin.Dashboard)
	admin.GET("/users", d.Admin.Users)
	admin.GET("/orders", d.Admin.Orders)
	admin.GET("/carts", d.Admin.Carts)

	admin.GET("/products", d.Products.AdminIndex)
	admin.PATCH("/products/:id/approval", d.Products.Moderate)
	admin.POST("/products/bulk", d.Products.BulkAction)

	admin.POST("/categories", d.Categories.Create)
	admin.PATCH("/categories/:id", d.Categories.Update)
	admin.DELETE("/categories/:id", d.Categories.Delete)
	admin.POST("/categories/:id/products", d.Categories.AddProducts)
	admin.GET("/categories/:id/products/available", d.Categories.AvailableProducts)
	admin.DELETE("/categories/:id/products/:productID", d.Categories.RemoveProduct)

	admin.POST("/showcases", d.Showcases.Create)
	admin.PATCH("/showcases/:id", d.Showcases.Update)
	admin.DELETE("/showcases/:id", d.Showcases.Delete)
	admin.POST("/showcases/:id/products", d.Showcases.AttachProducts)
	admin.DELETE("/showcases/:id/products/:productID", d.Showcases.DetachProduct)
	admin.POST("/showcases/:id/placeholders", d.Showcases.CreatePlaceholder)
	admin.DELETE("/showcases/:id/placeholders/:placeholderID", d.Showcases.DeletePlaceholder)

	admin.GET("/vendors", d.Vendors.AdminIndex)
	admin.POST("/vendors", d.Vendors.AdminCreate)
	admin.PATCH("/vendors/:id", d.Vendors.AdminUpdate)
	admin.GET("/transactions", d.Txns.Index)
	admin.PATCH("/transactions/:id", d.Txns.Update)
	admin.GET("/settlements", d.Settlements.Index)
	admin.PATCH("/settlements/:id", d.Settlements.Update)
}
