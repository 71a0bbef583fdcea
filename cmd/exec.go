package cmd

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/ilivegod/TickEase/config"
	"github.com/ilivegod/TickEase/handlers"
	"github.com/ilivegod/TickEase/internal/services/payment"
	"github.com/ilivegod/TickEase/models"
	"github.com/ilivegod/TickEase/monitoring"
	"github.com/ilivegod/TickEase/security"
	"github.com/ilivegod/TickEase/services"
	"github.com/ilivegod/TickEase/utils"
)

// Start wires the ledger, reservation registry, ticket issuer and
// checkout orchestrator into a PocketBase app and runs it.
func Start() error {
	cfg := config.LoadConfig()
	app := pocketbase.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisClient := utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)

	var ledger services.Ledger
	switch cfg.LedgerBackend {
	case "redis":
		ledger = services.NewRedisLedger(redisClient)
	default:
		ledger = services.NewMemoryLedger()
	}
	slog.Info("inventory ledger ready", "backend", cfg.LedgerBackend)

	monitor := monitoring.NewMonitor()
	reservations := services.NewReservationService(ledger, monitor)
	reservations.SetRetention(cfg.HoldRetention)
	tickets := services.NewTicketService(monitor)

	provider, err := payment.New(cfg)
	if err != nil {
		return err
	}
	sandbox, _ := provider.(*payment.Sandbox)

	checkout := services.NewCheckoutService(ledger, reservations, tickets, provider, monitor, cfg)
	limiter := security.NewRateLimiter(redisClient, cfg.CheckoutRateLimit, cfg.CheckoutRateWindow)

	checkoutHandler := handlers.NewCheckoutHandler(app, checkout, sandbox)
	ticketHandler := handlers.NewTicketHandler(app, tickets)
	eventHandler := handlers.NewEventHandler(app, checkout)

	// archive every resolved hold and roll confirmed sales into the
	// durable tier counters
	reservations.SetResolveHook(func(hold *models.Hold) {
		archiveHold(app, hold)
	})

	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: cfg.Environment == "development",
	})

	app.OnServe().BindFunc(func(se *core.ServeEvent) error {
		tierIDs, err := loadTiers(app, ledger, checkout)
		if err != nil {
			return err
		}
		slog.Info("tier counters installed", "tiers", len(tierIDs))

		reservations.StartSweeper(cfg.SweepInterval)

		if cfg.EnableMetrics {
			go monitor.Watch(ctx, ledger, tierIDs, 30*time.Second)
			go startMetricsServer(cfg.MetricsPort)
		}

		se.Router.GET("/health", func(e *core.RequestEvent) error {
			redisStatus := "ok"
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				redisStatus = "unreachable"
			}
			return e.JSON(http.StatusOK, map[string]any{
				"status": "ok",
				"redis":  redisStatus,
			})
		})

		se.Router.GET("/api/events/{eventId}/tiers", eventHandler.ListTiers)

		se.Router.POST("/api/checkout/begin", checkoutHandler.Begin).
			Bind(apis.RequireAuth()).
			BindFunc(limiter.CheckoutGuard())
		se.Router.POST("/api/checkout/complete", checkoutHandler.Complete).
			Bind(apis.RequireAuth())
		se.Router.DELETE("/api/checkout/{holdId}", checkoutHandler.Cancel).
			Bind(apis.RequireAuth())

		se.Router.POST("/api/tickets/check-in", ticketHandler.CheckIn).
			Bind(apis.RequireAuth())
		se.Router.GET("/api/tickets/history", ticketHandler.History).
			Bind(apis.RequireAuth())
		se.Router.POST("/api/tickets/{ticketId}/revoke", ticketHandler.Revoke).
			Bind(apis.RequireSuperuserAuth())

		if cfg.Environment == "development" && sandbox != nil {
			se.Router.POST("/api/dev/simulate-payment", checkoutHandler.SimulatePayment).
				Bind(apis.RequireAuth())
		}

		return se.Next()
	})

	app.OnTerminate().BindFunc(func(te *core.TerminateEvent) error {
		reservations.Stop()
		if err := provider.Close(context.Background()); err != nil {
			slog.Warn("payment provider close", "err", err)
		}
		if err := redisClient.Close(); err != nil {
			slog.Warn("redis close", "err", err)
		}
		cancel()
		return te.Next()
	})

	return app.Start()
}

// loadTiers installs a ledger counter and a catalog entry for every
// tier record. The durable "available" column is the authoritative
// starting count after a restart; in-flight holds do not survive one.
func loadTiers(app *pocketbase.PocketBase, ledger services.Ledger, checkout *services.CheckoutService) ([]string, error) {
	records, err := app.FindAllRecords("tiers")
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	tierIDs := make([]string, 0, len(records))
	for _, record := range records {
		capacity := int64(record.GetInt("capacity"))
		available := int64(record.GetInt("available"))

		if err := ledger.RegisterTier(ctx, record.Id, capacity, available); err != nil {
			return nil, err
		}

		checkout.RegisterTier(&models.PriceTier{
			ID:       record.Id,
			EventID:  record.GetString("event_id"),
			Name:     record.GetString("name"),
			Price:    decimal.NewFromFloat(record.GetFloat("price")),
			Currency: record.GetString("currency"),
			Capacity: capacity,
		})
		tierIDs = append(tierIDs, record.Id)
	}

	return tierIDs, nil
}

// archiveHold writes a terminal hold to holds_archive and, for
// confirmed holds, debits the durable available column so a restart
// starts from the right count.
func archiveHold(app *pocketbase.PocketBase, hold *models.Hold) {
	collection, err := app.FindCollectionByNameOrId("holds_archive")
	if err != nil {
		slog.Error("holds_archive collection missing", "err", err)
		return
	}

	record := core.NewRecord(collection)
	record.Set("hold_id", hold.ID)
	record.Set("tier_id", hold.TierID)
	record.Set("event_id", hold.EventID)
	record.Set("owner", hold.OwnerID)
	record.Set("quantity", hold.Quantity)
	record.Set("state", hold.State().String())
	record.Set("expires_at", hold.ExpiresAt)

	if err := app.Save(record); err != nil {
		slog.Error("hold archive failed", "hold_id", hold.ID, "err", err)
	}

	if hold.State() != models.HoldConfirmed {
		return
	}

	tier, err := app.FindRecordById("tiers", hold.TierID)
	if err != nil {
		slog.Error("tier record missing for confirmed hold", "tier_id", hold.TierID, "err", err)
		return
	}

	tier.Set("available", int64(tier.GetInt("available"))-hold.Quantity)
	if err := app.Save(tier); err != nil {
		slog.Error("tier availability update failed", "tier_id", hold.TierID, "err", err)
	}
}

func startMetricsServer(port string) {
	e := echo.New()
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	slog.Info("metrics server listening", "port", port)
	if err := e.Start(":" + port); err != nil {
		log.Printf("metrics server stopped: %v", err)
	}
}
