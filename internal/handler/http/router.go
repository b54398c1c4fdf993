package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/auth"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/domain"
	"github.com/FirudinMustafa/OkulTedarik-sub000/internal/service"
	"github.com/FirudinMustafa/OkulTedarik-sub000/pkg/health"
	"github.com/FirudinMustafa/OkulTedarik-sub000/pkg/middleware"
)

const serviceName = "okultedarik"

// Services groups the business services exposed over HTTP.
type Services struct {
	Auth        *service.AuthService
	Orders      *service.OrderService
	Discounts   *service.DiscountService
	Cancels     *service.CancellationService
	Batches     *service.BatchService
	Commissions *service.CommissionService
	Catalog     *service.CatalogService
	Exports     *service.ExportService
	Reports     *service.ReportService
}

// RouterConfig holds the transport settings of the router.
type RouterConfig struct {
	Tokens       *auth.JWTManager
	CORS         middleware.CORSConfig
	SecureCookie bool
	PprofCIDRs   []string
	// PublicLimiter throttles the unauthenticated endpoints. Nil disables it.
	PublicLimiter *middleware.IPRateLimiter
	// RequestTimeout bounds every API request except batch operations,
	// which run for up to BatchTimeout. Zero selects the defaults.
	RequestTimeout time.Duration
	BatchTimeout   time.Duration
}

// Default request deadlines.
const (
	DefaultRequestTimeout = 30 * time.Second
	DefaultBatchTimeout   = 10 * time.Minute
)

func (c RouterConfig) timeouts() (request, batch time.Duration) {
	request, batch = c.RequestTimeout, c.BatchTimeout
	if request <= 0 {
		request = DefaultRequestTimeout
	}
	if batch <= 0 {
		batch = DefaultBatchTimeout
	}
	return request, batch
}

// NewRouter creates a chi router with all routes registered.
func NewRouter(
	svc Services,
	cfg RouterConfig,
	healthHandler *health.Handler,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(chimw.Compress(5))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	authHandler := NewAuthHandler(svc.Auth, cfg.SecureCookie, logger)
	orderHandler := NewOrderHandler(svc.Orders, svc.Cancels, svc.Exports, logger)
	discountHandler := NewDiscountHandler(svc.Discounts, logger)
	cancelHandler := NewCancelHandler(svc.Cancels, logger)
	batchHandler := NewBatchHandler(svc.Batches, logger)
	commissionHandler := NewCommissionHandler(svc.Commissions, logger)
	catalogHandler := NewCatalogHandler(svc.Catalog, logger)
	reportHandler := NewReportHandler(svc.Reports, logger)

	authenticate := middleware.Auth(TokenValidator(cfg.Tokens), SessionCookie)

	// Batch operations call the adapters once or twice per order, so they
	// get their own deadline instead of the one every other request has.
	requestTimeout, batchTimeout := cfg.timeouts()
	timeout := chimw.Timeout(requestTimeout)

	r.Route("/api", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		// Unauthenticated endpoints.
		r.Group(func(r chi.Router) {
			r.Use(timeout)
			if cfg.PublicLimiter != nil {
				r.Use(cfg.PublicLimiter.Middleware)
			}
			r.Post("/auth/admin/login", authHandler.AdminLogin)
			r.Post("/auth/director/login", authHandler.DirectorLogin)
			r.Post("/auth/parent/verify", authHandler.VerifySchool)
			r.Post("/auth/logout", authHandler.Logout)

			r.Get("/orders/track/{orderNumber}", orderHandler.TrackOrder)
			r.Post("/payments/callback", orderHandler.PaymentCallback)
			r.Post("/discounts/validate", discountHandler.ValidateDiscount)
		})

		r.Route("/parent", func(r chi.Router) {
			r.Use(timeout)
			r.Use(authenticate)
			r.Use(middleware.RequireRole(string(domain.ActorParent)))

			r.Get("/offers", catalogHandler.SchoolOffers)
			r.Post("/orders", orderHandler.CreateOrder)
			r.Post("/orders/{id}/pay", orderHandler.PayOrder)
			r.Post("/orders/{id}/cancel-request", orderHandler.RequestCancellation)
		})

		r.Route("/director", func(r chi.Router) {
			r.Use(timeout)
			r.Use(authenticate)
			r.Use(middleware.RequireRole(string(domain.ActorDirector)))

			r.Get("/dashboard", reportHandler.DirectorDashboard)
			r.Get("/orders", orderHandler.ListOrders)
			r.Get("/orders/export", orderHandler.ExportOrders)
			r.Get("/orders/{id}", orderHandler.GetOrder)
			r.Get("/classes", catalogHandler.ListClasses)
			r.Get("/commission", commissionHandler.Statement)
			r.Get("/payouts", commissionHandler.ListPayouts)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(authenticate)
			r.Use(middleware.RequireRole(string(domain.ActorAdmin)))

			r.Group(func(r chi.Router) {
				r.Use(chimw.Timeout(batchTimeout))
				r.Post("/batch", batchHandler.RunAction)
				r.Post("/batch/{op}", batchHandler.Run)
			})

			r.Group(func(r chi.Router) {
				r.Use(timeout)

				r.Get("/dashboard", reportHandler.AdminDashboard)
				r.Get("/logs", reportHandler.ListLogs)

				r.Route("/orders", func(r chi.Router) {
					r.Get("/", orderHandler.ListOrders)
					r.Get("/export", orderHandler.ExportOrders)
					r.Get("/{id}", orderHandler.GetOrder)
					r.Patch("/{id}", orderHandler.UpdateOrder)
					r.Put("/{id}/status", orderHandler.UpdateOrderStatus)
				})

				r.Get("/cancel-requests", cancelHandler.ListCancelRequests)
				r.Put("/cancel-requests/{id}", cancelHandler.ProcessCancelRequest)

				r.Route("/discounts", func(r chi.Router) {
					r.Get("/", discountHandler.ListDiscounts)
					r.Post("/", discountHandler.CreateDiscount)
					r.Get("/{id}", discountHandler.GetDiscount)
					r.Put("/{id}", discountHandler.UpdateDiscount)
					r.Delete("/{id}", discountHandler.DeleteDiscount)
				})

				r.Route("/schools", func(r chi.Router) {
					r.Get("/", catalogHandler.ListSchools)
					r.Post("/", catalogHandler.CreateSchool)
					r.Get("/{id}", catalogHandler.GetSchool)
					r.Patch("/{id}", catalogHandler.UpdateSchool)
					r.Delete("/{id}", catalogHandler.DeleteSchool)
					r.Post("/{id}/password", catalogHandler.RegenerateSchoolPassword)
					r.Put("/{id}/director", catalogHandler.SetDirectorCredentials)
					r.Get("/{id}/classes", catalogHandler.ListClasses)
					r.Get("/{id}/commission", commissionHandler.Statement)
					r.Get("/{id}/payouts", commissionHandler.ListPayouts)
				})

				r.Route("/classes", func(r chi.Router) {
					r.Post("/", catalogHandler.CreateClass)
					r.Put("/{id}", catalogHandler.UpdateClass)
					r.Delete("/{id}", catalogHandler.DeleteClass)
				})

				r.Route("/packages", func(r chi.Router) {
					r.Get("/", catalogHandler.ListPackages)
					r.Post("/", catalogHandler.CreatePackage)
					r.Get("/{id}", catalogHandler.GetPackage)
					r.Put("/{id}", catalogHandler.UpdatePackage)
					r.Delete("/{id}", catalogHandler.DeletePackage)
				})

				r.Get("/commissions", commissionHandler.Overview)
				r.Post("/payouts", commissionHandler.CreatePayout)
				r.Post("/payouts/{id}/paid", commissionHandler.MarkPayoutPaid)
			})
		})
	})

	return r
}
