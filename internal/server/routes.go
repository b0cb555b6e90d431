package server

import (
	"storefront/internal/handler"
	"storefront/internal/repository"
)

type Handlers struct {
	Auth          *handler.AuthHandler
	Products      *handler.ProductHandler
	Orders        *handler.OrderHandler
	Webhook       *handler.PaymentWebhookHandler
	AdminProducts *handler.AdminProductHandler
	AdminOrders   *handler.AdminOrderHandler
	AdminUsers    *handler.AdminUserHandler
	AdminAudit    *handler.AdminAuditLogHandler
}

func (s *Server) RegisterRoutes(h Handlers, userRepo repository.UserRepository) {
	h.Auth.RegisterRoutes(s.e)
	h.Products.RegisterRoutes(s.e)
	h.Orders.RegisterRoutes(s.e, s.cfg, userRepo)
	h.Webhook.RegisterRoutes(s.e)
	h.AdminProducts.RegisterRoutes(s.e, s.cfg, userRepo)
	h.AdminOrders.RegisterRoutes(s.e, s.cfg, userRepo)
	h.AdminUsers.RegisterRoutes(s.e)
	h.AdminAudit.RegisterRoutes(s.e, s.cfg, userRepo)
}
