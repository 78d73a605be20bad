package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	"mindcare-service/internal/appointments"
	"mindcare-service/internal/calendar"
	"mindcare-service/internal/config"
	"mindcare-service/internal/directory"
	"mindcare-service/internal/events"
	apptCancel "mindcare-service/internal/http-server/handlers/appointments/cancel"
	apptComplete "mindcare-service/internal/http-server/handlers/appointments/complete"
	apptConfirm "mindcare-service/internal/http-server/handlers/appointments/confirm"
	apptCreate "mindcare-service/internal/http-server/handlers/appointments/create"
	apptGet "mindcare-service/internal/http-server/handlers/appointments/get"
	slotGenerate "mindcare-service/internal/http-server/handlers/slots/generate"
	slotGet "mindcare-service/internal/http-server/handlers/slots/get"
	studentList "mindcare-service/internal/http-server/handlers/students/list"
	studentUpcoming "mindcare-service/internal/http-server/handlers/students/upcoming"
	therapistAppts "mindcare-service/internal/http-server/handlers/therapists/appointments"
	therapistDay "mindcare-service/internal/http-server/handlers/therapists/day"
	therapistList "mindcare-service/internal/http-server/handlers/therapists/list"
	therapistSchedule "mindcare-service/internal/http-server/handlers/therapists/schedule"
	"mindcare-service/internal/jobs"
	"mindcare-service/internal/lock"
	"mindcare-service/internal/metrics"
	svc "mindcare-service/internal/service"
	"mindcare-service/internal/storage"
	"mindcare-service/internal/storage/memory"
	"mindcare-service/internal/storage/postgres"
	redisstore "mindcare-service/internal/storage/redis"
	slogpretty "mindcare-service/pkg/handlers/slogPretty"
	"mindcare-service/pkg/middleware/mwLogger"
	"mindcare-service/pkg/sl"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {

	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("Starting API", slog.String("env", cfg.Env))
	log.Debug("Debug messages are enabled")

	store, storeCloser, redisClient, err := setupStorage(cfg)
	if err != nil {
		log.Error("Failed to init storage", slog.String("driver", cfg.Storage.Driver), sl.Err(err))
		os.Exit(1)
	}

	locker, lockCloser, err := setupLocker(cfg, redisClient)
	if err != nil {
		log.Error("Failed to init locker", slog.String("driver", cfg.Lock.Driver), sl.Err(err))
		os.Exit(1)
	}

	// Validated by config.Load.
	loc, _ := cfg.Schedule.Location()

	therapists := directory.New(store)
	schedulingMetrics := metrics.NewSchedulingMetrics(nil)

	service := svc.NewService(calendar.New(store), appointments.New(store), therapists, locker, svc.Options{
		Hours:    cfg.Schedule.WorkingHours(),
		Location: loc,
		LockTTL:  cfg.Lock.TTL,
		LockWait: cfg.Lock.Wait,
		Logger:   log,
		Observer: schedulingMetrics,
	})
	service.OnChange(schedulingMetrics.ObserveChange)

	publisher := events.NewPublisher(log, events.Config{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic})
	service.OnChange(publisher.Listen)

	publisherCtx, stopPublisher := context.WithCancel(context.Background())
	publisherDone := make(chan struct{})
	go func() {
		defer close(publisherDone)
		publisher.Run(publisherCtx)
	}()

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), time.Minute)
	if err := therapists.Seed(startupCtx, cfg.Therapists); err != nil {
		log.Error("Failed to seed therapist directory", sl.Err(err))
		os.Exit(1)
	}
	if _, err := service.GenerateWindow(startupCtx, time.Now(), cfg.Schedule.WindowDays); err != nil {
		log.Error("Failed to generate availability window", sl.Err(err))
		os.Exit(1)
	}
	cancelStartup()

	scheduler, err := jobs.New(log, service, jobs.Config{
		Spec:       cfg.Schedule.RefreshCron,
		WindowDays: cfg.Schedule.WindowDays,
		Location:   loc,
	})
	if err != nil {
		log.Error("Failed to init jobs", sl.Err(err))
		os.Exit(1)
	}
	scheduler.Start()

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(mwLogger.New(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)
	router.Use(CORS)

	// Therapists
	router.Get("/therapists", therapistList.New(log, service))
	router.Get("/therapists/{id}/availability", slotGet.New(log, service))
	router.Get("/therapists/{id}/availability/{date}", therapistDay.New(log, service))
	router.Put("/therapists/{id}/availability/{date}", therapistSchedule.New(log, service))
	router.Get("/therapists/{id}/appointments", therapistAppts.New(log, service))

	// Appointments
	router.Post("/appointments", apptCreate.New(log, service))
	router.Get("/appointments/{id}", apptGet.New(log, service))
	router.Post("/appointments/{id}/confirm", apptConfirm.New(log, service))
	router.Post("/appointments/{id}/cancel", apptCancel.New(log, service))
	router.Post("/appointments/{id}/complete", apptComplete.New(log, service))

	// Students
	router.Get("/students/{ref}/appointments", studentList.New(log, service))
	router.Get("/students/{ref}/appointments/upcoming", studentUpcoming.New(log, service, time.Now))

	// Slots
	router.Post("/slots/generate", slotGenerate.New(log, service))

	router.Handle("/metrics", promhttp.Handler())

	serv := &http.Server{
		Addr:         cfg.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	serverErrCh := make(chan error, 1)

	go func() {
		log.Info("Starting HTTP server", slog.String("addr", cfg.Address))
		if err := serv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		} else {
			serverErrCh <- nil
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case err := <-serverErrCh:
		if err != nil {
			log.Error("HTTP server stopped unexpectedly", sl.Err(err))
		} else {
			log.Info("HTTP server stopped gracefully")
		}
	}

	shutdownTimeout := cfg.HTTPServer.ShutdownTimeout

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	log.Info("Shutting down HTTP server", slog.String("timeout", shutdownTimeout.String()))

	if err := serv.Shutdown(ctx); err != nil {
		log.Error("Server shutdown failed", sl.Err(err))
	} else {
		log.Info("Server shutdown complete")
	}

	scheduler.Stop(ctx)

	stopPublisher()
	select {
	case <-publisherDone:
		log.Info("Event publisher stopped")
	case <-ctx.Done():
		log.Warn("Event publisher did not stop in time")
	}

	if err := lockCloser.Close(); err != nil {
		log.Error("Failed to close locker", sl.Err(err))
	} else {
		log.Info("Locker closed")
	}

	if err := storeCloser.Close(); err != nil {
		log.Error("Failed to close storage", sl.Err(err))
	} else {
		log.Info("Storage closed")
	}

	log.Info("Shutdown finished, server stopped")

}

// setupStorage returns the configured store. The redis client is returned for
// the redis driver so that a redis locker can share the connection.
func setupStorage(cfg *config.Config) (storage.Store, io.Closer, *goredis.Client, error) {
	switch cfg.Storage.Driver {
	case "memory":
		s := memory.New()
		return s, s, nil, nil
	case "redis":
		s, err := redisstore.New(redisstore.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   "mindcare:",
		})
		if err != nil {
			return nil, nil, nil, err
		}
		return s, s, s.Client(), nil
	case "postgres":
		s, err := postgres.New(cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, nil, nil, err
		}
		return s, s, nil, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func setupLocker(cfg *config.Config, client *goredis.Client) (lock.Locker, io.Closer, error) {
	switch cfg.Lock.Driver {
	case "local":
		l := lock.NewLocalLock()
		return l, l, nil
	case "redis":
		if client != nil {
			l := lock.NewRedisLockWithClient(client)
			return l, l, nil
		}
		l, err := lock.NewRedisLock(cfg.Redis.Addr, cfg.Redis.Password)
		if err != nil {
			return nil, nil, err
		}
		return l, l, nil
	default:
		return nil, nil, fmt.Errorf("unknown lock driver %q", cfg.Lock.Driver)
	}
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger
	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}
