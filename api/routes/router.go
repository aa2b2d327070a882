package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teranga-eats/teranga-backend/api/controllers"
	"github.com/teranga-eats/teranga-backend/api/middleware"
	"github.com/teranga-eats/teranga-backend/internal/admins"
	checkoutsvc "github.com/teranga-eats/teranga-backend/internal/checkout"
	"github.com/teranga-eats/teranga-backend/internal/fulfillment"
	"github.com/teranga-eats/teranga-backend/internal/orders"
	"github.com/teranga-eats/teranga-backend/internal/payments"
	paydunyawebhook "github.com/teranga-eats/teranga-backend/internal/webhooks/paydunya"
	"github.com/teranga-eats/teranga-backend/pkg/config"
	"github.com/teranga-eats/teranga-backend/pkg/logger"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisP controllers.Pinger,
	registry *prometheus.Registry,
	ordersSvc orders.Service,
	paymentsSvc payments.Service,
	checkoutSvc checkoutsvc.Service,
	fulfillmentSvc fulfillment.Service,
	adminsSvc admins.Service,
	webhookSvc *paydunyawebhook.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.OrderCreate(ordersSvc, logg))
			r.Get("/{orderId}", controllers.OrderDetail(ordersSvc, logg))
			r.Put("/{orderId}", controllers.OrderUpdate(ordersSvc, logg))
			r.Get("/number/{orderNumber}", controllers.OrderByNumber(ordersSvc, logg))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/", controllers.PaymentCreate(paymentsSvc, logg))
			r.Get("/{paymentId}", controllers.PaymentDetail(paymentsSvc, logg))
			r.Put("/{paymentId}", controllers.PaymentUpdate(paymentsSvc, logg))
			r.Get("/by-order/{orderId}", controllers.PaymentByOrder(paymentsSvc, logg))
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", controllers.Checkout(checkoutSvc, logg))
			r.Get("/return/{orderId}", controllers.CheckoutReturn(checkoutSvc, logg))
			r.Post("/cancel/{orderId}", controllers.CheckoutCancel(checkoutSvc, logg))
		})

		r.Route("/paydunya", func(r chi.Router) {
			r.Post("/initialize", controllers.PayDunyaInitialize(checkoutSvc, logg))
			r.Post("/callback", controllers.PayDunyaCallback(webhookSvc, logg))
			r.Get("/status/{orderId}", controllers.PayDunyaStatus(checkoutSvc, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/auth/login", controllers.AdminAuthLogin(adminsSvc, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(cfg.JWT, logg))
				r.Route("/orders", func(r chi.Router) {
					r.Get("/", controllers.AdminOrderList(ordersSvc, logg))
					r.Post("/{orderId}/advance", controllers.AdminOrderAdvance(fulfillmentSvc, logg))
					r.Put("/{orderId}/status", controllers.AdminOrderSetStatus(fulfillmentSvc, logg))
				})
			})
		})
	})

	return r
}
