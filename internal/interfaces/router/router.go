package router

import (
	"net/http"

	healthsvc "sol-backend/internal/application/health"
	ordersvc "sol-backend/internal/application/order"
	paysvc "sol-backend/internal/application/payments"
	solsvc "sol-backend/internal/application/sols"
	toursvc "sol-backend/internal/application/tours"
	xfersvc "sol-backend/internal/application/transfers"
	"sol-backend/internal/config"
	"sol-backend/internal/constants"
	"sol-backend/internal/infrastructure/database"
	"sol-backend/internal/infrastructure/locking"
	healthhandler "sol-backend/internal/interfaces/handlers/health"
	orderhandler "sol-backend/internal/interfaces/handlers/order"
	payhandler "sol-backend/internal/interfaces/handlers/payments"
	solhandler "sol-backend/internal/interfaces/handlers/sols"
	tourhandler "sol-backend/internal/interfaces/handlers/tours"
	xferhandler "sol-backend/internal/interfaces/handlers/transfers"
	"sol-backend/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type gormDBPinger struct {
	db *gorm.DB
}

func (g *gormDBPinger) Ping() error {
	if g == nil || g.db == nil {
		return nil
	}
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Services are the application services behind /api/v1, sharing one DB and one per-Sol locker.
type Services struct {
	Sols      *solsvc.Service
	Order     *ordersvc.Service
	Tours     *toursvc.Service
	Payments  *paysvc.Service
	Transfers *xfersvc.Service
}

// NewServices wires the services. intents may be nil, which disables card checkout.
func NewServices(db *gorm.DB, locks locking.Locker, intents paysvc.PaymentIntentCreator, defaultCurrency string) *Services {
	return &Services{
		Sols:      &solsvc.Service{DB: db, Locks: locks, DefaultCurrency: defaultCurrency},
		Order:     &ordersvc.Service{DB: db, Locks: locks},
		Tours:     &toursvc.Service{DB: db, Locks: locks},
		Payments:  &paysvc.Service{DB: db, Locks: locks, Intents: intents},
		Transfers: &xfersvc.Service{DB: db, Locks: locks},
	}
}

// Mount registers the authenticated API on r (normally the /api/v1 group).
func Mount(r fiber.Router, s *Services) {
	auth := middleware.RequireAuth()
	view := middleware.AuthorizePermission(constants.ViewData)

	sh := &solhandler.Handlers{Service: s.Sols}
	oh := &orderhandler.Handlers{Service: s.Order}
	th := &tourhandler.Handlers{Service: s.Tours}
	ph := &payhandler.Handlers{Service: s.Payments}
	xh := &xferhandler.Handlers{Service: s.Transfers}

	sg := r.Group("/sols", auth)
	sg.Post("/", middleware.AuthorizePermission(constants.CreateSol), sh.CreateSol)
	sg.Get("/:sol_id", view, sh.GetSol)
	sg.Get("/:sol_id/participants", view, sh.ListParticipants)
	sg.Post("/:sol_id/join", sh.Join)
	sg.Delete("/:sol_id/participants/:participant_id", sh.RemoveParticipant)
	sg.Post("/:sol_id/activate", sh.Activate)
	sg.Post("/:sol_id/cancel", sh.Cancel)
	sg.Post("/:sol_id/advance", middleware.AuthorizePermission(constants.AdvanceRounds), sh.Advance)

	sg.Put("/:sol_id/order", oh.SetOrder)
	sg.Post("/:sol_id/order/randomize", oh.Randomize)
	sg.Post("/:sol_id/order/preview", view, oh.Preview)
	sg.Get("/:sol_id/order/verify", view, oh.Verify)

	sg.Get("/:sol_id/tour", view, th.Status)
	sg.Get("/:sol_id/tour/history", view, th.History)
	sg.Get("/:sol_id/payments", view, ph.List)

	pg := r.Group("/payments", auth)
	pg.Post("/:payment_id/submit", ph.Submit)
	pg.Post("/:payment_id/validate", middleware.AuthorizePermission(constants.ValidatePayments), ph.Validate)
	pg.Post("/:payment_id/reject", middleware.AuthorizePermission(constants.ValidatePayments), ph.Reject)
	pg.Post("/:payment_id/checkout", ph.Checkout)
	pg.Post("/:payment_id/mark-transferred", middleware.AuthorizePermission(constants.ManageTransfers), xh.MarkPaymentTransferred)

	xg := r.Group("/transfers", auth)
	xg.Get("/pending", middleware.AuthorizePermission(constants.ViewAllTransfers), xh.ListPending)
	xg.Get("/:transfer_id", view, xh.Get)
	xg.Post("/:transfer_id/mark-transferred", middleware.AuthorizePermission(constants.ManageTransfers), xh.MarkTransferred)
	xg.Post("/:transfer_id/confirm", xh.Confirm)
	xg.Post("/:transfer_id/dispute", xh.Dispute)
	xg.Post("/:transfer_id/reopen", middleware.AuthorizePermission(constants.ResolveDisputes), xh.Reopen)
}

func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}))

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		var err error
		rdb, err = database.OpenRedis(cfg.RedisURL)
		if err != nil {
			return nil, nil, nil, err
		}
	}

	var db *gorm.DB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := database.AutoMigrate(db); err != nil {
			return nil, nil, nil, err
		}
	}

	// Stripe calls the webhook without a session; it must stay ahead of the session middleware.
	stripeWebhook := &payhandler.WebhookHandler{WebhookSecret: cfg.StripeWebhookSecret}
	app.Post("/api/v1/stripe/webhook", stripeWebhook.HandleWebhook)

	app.Use(middleware.Session(rdb))
	app.Use(middleware.HealthMarker(rdb))
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())

	checker := &healthsvc.Checker{Rdb: rdb, LockBackend: cfg.LockBackend}
	if cfg.StripeSecretKey != "" {
		checker.Probes = append(checker.Probes, healthsvc.Probe{Name: "stripe", URL: "https://api.stripe.com/healthcheck"})
	}
	hh := &healthhandler.Handlers{Checker: checker, HealthAdminKey: cfg.HealthAdminKey}
	app.Get("/reset", hh.Reset)
	app.Get("/health/json", hh.JSON)
	app.Get("/health/errors", hh.Errors)

	if db == nil {
		log.Warn().Msg("DATABASE_URL not set, API routes disabled")
		return app, db, rdb, nil
	}
	checker.DB = &gormDBPinger{db: db}

	var locks locking.Locker
	if cfg.LockBackend == "redis" && rdb != nil {
		locks = locking.NewRedis(rdb, cfg.LockTTL, cfg.LockWait)
	} else {
		if cfg.LockBackend == "redis" {
			log.Warn().Msg("LOCK_BACKEND=redis without REDIS_URL, using in-process locks")
			checker.LockBackend = "local"
		}
		locks = locking.NewLocal(cfg.LockWait)
	}

	var intents paysvc.PaymentIntentCreator
	if cfg.StripeSecretKey != "" {
		intents = &paysvc.RealStripeCreator{SecretKey: cfg.StripeSecretKey}
	}
	services := NewServices(db, locks, intents, cfg.DefaultCurrency)
	stripeWebhook.Service = services.Payments

	Mount(app.Group("/api/v1"), services)
	return app, db, rdb, nil
}

func Handler(app *fiber.App) http.Handler {
	return adaptor.FiberApp(app)
}
