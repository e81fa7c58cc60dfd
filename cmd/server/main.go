package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"quadra/internal/api"
	"quadra/internal/availability"
	"quadra/internal/battle"
	"quadra/internal/booking"
	"quadra/internal/config"
	"quadra/internal/database"
	"quadra/internal/events"
	"quadra/internal/metrics"
	"quadra/internal/models"
	"quadra/internal/notify"
	"quadra/internal/pricing"
	"quadra/internal/report"
	"quadra/internal/sheets"
)

func main() {
	_ = godotenv.Load()

	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("QUADRA_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := database.NewDB(cfg.Database.Path, cfg.Database.BusyTimeoutMS)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := events.NewEventBus()

	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		sink := events.NewRedisSink(rdb, cfg.Redis.Channel, &logger)
		sink.Attach(bus)
	}

	if cfg.Telegram.BotToken != "" {
		tg, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
		if err != nil {
			logger.Fatal().Err(err).Msg("create telegram bot error")
		}
		notifier := notify.NewNotifier(tg, db, cfg.Telegram.ManagerChat,
			cfg.Telegram.RatePerSec, cfg.Telegram.Burst, &logger)
		notifier.Attach(bus)
		notifier.StartReminders(ctx)
	}

	calendar := availability.NewCalendar(db, cfg.SlotMinutes())
	resolver := pricing.NewResolver(db)

	rules := booking.Rules{
		AutoConfirm: cfg.Booking.AutoConfirm,
		MinAdvance:  cfg.BookingMinAdvance(),
		MaxAdvance:  cfg.BookingMaxAdvance(),
	}
	reservations := booking.NewService(db, calendar, resolver, bus, rules, cfg.StoreTimeout(), &logger)
	battles := battle.NewService(db, bus, cfg.StoreTimeout(), &logger)
	reporter := report.NewReporter(db)

	if cfg.Sheets.Enabled {
		sheetSvc, err := sheets.NewService(ctx, cfg.Sheets.CredentialsFile,
			cfg.Sheets.SpreadsheetID, cfg.Sheets.SheetName, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("sheets sync disabled")
		} else {
			sheetSvc.Attach(bus)
			sheetSvc.StartPeriodicSync(ctx, 15*time.Minute, func(ctx context.Context) ([]models.Reservation, error) {
				from := time.Now().Format("2006-01-02")
				to := time.Now().AddDate(0, 0, 30).Format("2006-01-02")
				return db.ListReservationsByDateRange(ctx, from, to)
			})
		}
	}

	if cfg.Report.Enabled {
		go runDailyReports(ctx, db, reporter, cfg.Report.Path, cfg.Report.RetentionDays, &logger)
	}

	if cfg.Backup.Enabled {
		backup := database.NewBackupService(cfg.Database.Path, database.BackupOptions{
			Enabled:       true,
			Interval:      time.Duration(cfg.Backup.IntervalHours) * time.Hour,
			StoragePath:   cfg.Backup.Path,
			RetentionDays: cfg.Backup.RetentionDays,
		}, &logger)
		go backup.Start(ctx)
	}

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, db, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	server := api.NewHTTPServer(db, reservations, battles, calendar, reporter, cfg.Server.APIKey, &logger)
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()

	logger.Info().Int("port", cfg.Server.Port).Msg("quadra server started")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("http server error")
	}
}

// runDailyReports writes a rolling 30-day Excel export once a day so the
// back office always has a fresh file even without hitting the API. With a
// retention horizon set it also prunes reservations older than that, after
// they had their last chance to appear in an export.
func runDailyReports(ctx context.Context, db *database.DB, reporter *report.Reporter, dir string, retentionDays int, logger *zerolog.Logger) {
	if dir == "" {
		dir = "data/reports"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Error().Err(err).Msg("create report directory")
		return
	}

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	write := func() {
		to := time.Now().Format("2006-01-02")
		from := time.Now().AddDate(0, 0, -30).Format("2006-01-02")
		path := filepath.Join(dir, fmt.Sprintf("reservas_%s.xlsx", to))
		if err := reporter.SaveReservations(ctx, from, to, path); err != nil {
			logger.Error().Err(err).Msg("daily report failed")
			return
		}
		logger.Info().Str("path", path).Msg("daily report written")

		if retentionDays > 0 {
			cutoff := time.Now().AddDate(0, 0, -retentionDays).Format("2006-01-02")
			n, err := db.DeleteOldReservations(ctx, cutoff)
			if err != nil {
				logger.Error().Err(err).Msg("reservation cleanup failed")
			} else if n > 0 {
				logger.Info().Int64("deleted", n).Str("before", cutoff).Msg("old reservations pruned")
			}
		}
	}

	write()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			write()
		}
	}
}

func startHealthServer(ctx context.Context, port int, db *database.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := db.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
