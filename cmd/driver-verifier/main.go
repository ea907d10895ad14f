package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/giorgiosld/driver-verifier/internal/config"
	"github.com/giorgiosld/driver-verifier/internal/hostio"
	"github.com/giorgiosld/driver-verifier/internal/httpapi"
	"github.com/giorgiosld/driver-verifier/internal/mqtt"
	"github.com/giorgiosld/driver-verifier/internal/observability"
	"github.com/giorgiosld/driver-verifier/internal/store"
	"github.com/giorgiosld/driver-verifier/internal/verifier"
)

const (
	topicCommandScan   = "driververifier/commands/scan"
	topicCommandVerify = "driververifier/commands/verify"
)

func main() {
	cfg := config.Load()
	slog.SetLogLoggerLevel(logLevel(cfg.LogLevel))

	host := hostio.NewSysfsHost()
	vc := verifier.New(host, verifier.Options{DevDir: cfg.DevDir, SysfsDir: cfg.SysfsDir})

	if cfg.Oneshot {
		runOneshot(vc)
		return
	}

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		cfg.Postgres.Host, cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.DBName, cfg.Postgres.Port)
	repo, err := store.NewRepository(dsn)
	if err != nil {
		slog.Error("db init failed", "error", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		slog.Error("redis init failed", "error", err)
		os.Exit(1)
	}
	cache := store.NewVerdictCache(rdb)

	mClient := mqtt.New(cfg.MQTTBrokerURL)

	shutdownObs, promHandler, tracer := observability.SetupObservability("driver-verifier")
	defer shutdownObs()

	srv := httpapi.NewServer(vc, repo, cache, mClient)
	srv.SetHistoryRetention(cfg.HistoryRetention)

	// Startup mirrors module load: scan, verify, report the verdict.
	if _, _, err := srv.RunScan(context.Background()); err != nil {
		slog.Error("initial device scan failed", "error", err)
	} else if rec, err := srv.RunVerification(context.Background()); err != nil {
		slog.Error("initial touchpad verification failed", "error", err, "code", rec.Code)
	} else {
		slog.Info("initial touchpad verification finished", "verdict", rec.Verdict, "code", rec.Code)
	}

	subscribeCommands(mClient, srv)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promHandler)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("ok")) })
	srv.Register(mux)

	httpSrv := &http.Server{Addr: ":" + cfg.Port, Handler: observability.WrapHandler(tracer, "driver-verifier", mux)}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("verifier server error", "error", err)
		}
	}()
	slog.Info("driver-verifier started", "port", cfg.Port, "dev_dir", cfg.DevDir)

	done := make(chan struct{})
	if cfg.ScanInterval > 0 {
		go rescanLoop(srv, cfg.ScanInterval, done)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	close(done)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	mClient.Unsubscribe(topicCommandScan)
	mClient.Unsubscribe(topicCommandVerify)
	_ = rdb.Close()
	_ = httpSrv.Shutdown(ctx)
	slog.Info("driver-verifier stopped")
}

// runOneshot reproduces the original module-load sequence: one scan, one
// verification, the tri-state code in the log, and a process exit code
// (0 working, 1 not working or not found, 2 hard error).
func runOneshot(vc *verifier.Context) {
	if _, err := vc.ScanDevices(); err != nil {
		slog.Error("device scan failed", "error", err)
		os.Exit(2)
	}
	working, err := vc.VerifyTouchpad()
	code := verifier.StatusCode(working, err)
	if err != nil {
		slog.Error("touchpad verification failed", "error", err, "code", code)
		os.Exit(2)
	}
	slog.Info("touchpad verification finished", "working", working, "code", code)
	if working {
		os.Exit(0)
	}
	os.Exit(1)
}

func subscribeCommands(m *mqtt.Client, srv *httpapi.Server) {
	if err := m.SubscribeFunc(topicCommandScan, func(topic string, _ []byte) {
		slog.Info("scan requested over mqtt", "topic", topic)
		if _, _, err := srv.RunScan(context.Background()); err != nil {
			slog.Error("mqtt-triggered scan failed", "error", err)
		}
	}); err != nil {
		slog.Error("subscribe failed", "topic", topicCommandScan, "error", err)
	}
	if err := m.SubscribeFunc(topicCommandVerify, func(topic string, _ []byte) {
		slog.Info("verification requested over mqtt", "topic", topic)
		if _, err := srv.RunVerification(context.Background()); err != nil {
			slog.Error("mqtt-triggered verification failed", "error", err)
		}
	}); err != nil {
		slog.Error("subscribe failed", "topic", topicCommandVerify, "error", err)
	}
}

func rescanLoop(srv *httpapi.Server, interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if _, _, err := srv.RunScan(context.Background()); err != nil {
				slog.Error("periodic scan failed", "error", err)
				continue
			}
			if _, err := srv.RunVerification(context.Background()); err != nil {
				slog.Error("periodic verification failed", "error", err)
			}
		}
	}
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
