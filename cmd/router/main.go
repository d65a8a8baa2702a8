package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/LeventeLantos/outbound-router/internal/adapter"
	"github.com/LeventeLantos/outbound-router/internal/api"
	"github.com/LeventeLantos/outbound-router/internal/config"
	"github.com/LeventeLantos/outbound-router/internal/directory"
	"github.com/LeventeLantos/outbound-router/internal/lock"
	"github.com/LeventeLantos/outbound-router/internal/model"
	"github.com/LeventeLantos/outbound-router/internal/receipt"
	"github.com/LeventeLantos/outbound-router/internal/store"
	"github.com/LeventeLantos/outbound-router/internal/sweep"
	"github.com/LeventeLantos/outbound-router/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadAll()
	if err != nil {
		log.Fatal(err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		cancel()
		log.Fatalf("redis ping failed: %v", err)
	}
	cancel()

	db, err := sql.Open("pgx", cfg.Database.PostgresURL)
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	defer db.Close()

	clk := clock.New()
	queue := store.NewQueue(rdb, clk)
	locks := lock.NewManager(rdb)
	dir := directory.NewPostgresDirectory(db)
	receipts := receipt.NewRedis(rdb, cfg.Message.ReceiptTTL)

	reg := adapter.NewRegistry()
	gateway := adapter.NewGateway(cfg.Gateway.URL)
	reg.Register(model.ChannelBasicMessaging, gateway)
	reg.Register(model.ChannelRichMessaging, gateway)
	if cfg.ChatRelay.URL != "" {
		reg.Register(model.ChannelRichChat, adapter.NewChatRelay(cfg.ChatRelay.URL, cfg.ChatRelay.APIKey))
	}
	if cfg.SMTP.Address != "" {
		reg.Register(model.ChannelEmail, adapter.NewEmail(cfg.SMTP.Address, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From))
	}

	opts := worker.Options{
		DequeueWait: cfg.Worker.DequeueWait,
		LockTTL:     cfg.Worker.LockTTL,
		BackoffBase: cfg.Worker.BackoffBase,
		DelayMin:    cfg.Worker.DelayMin,
		DelayMax:    cfg.Worker.DelayMax,
	}
	sendWorker := worker.NewSend(queue, locks, reg, clk, opts)
	confirmWorker := worker.NewConfirm(queue, locks, receipts, clk, opts)

	sweeper, err := sweep.New(cfg.Sweep.Interval, queue)
	if err != nil {
		log.Fatalf("create sweeper: %v", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	for i := 0; i < cfg.Worker.SendWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sendWorker.Run(ctx)
		}()
	}
	for i := 0; i < cfg.Worker.ConfirmWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			confirmWorker.Run(ctx)
		}()
	}

	handler := api.NewHandler(queue, dir, receipts, sweeper, clk, cfg.Message.ContentMax, cfg.Message.ExpiryWindow)
	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: loggingMiddleware(api.Router(handler)),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("outbound router starting",
		"addr", cfg.Server.Address,
		"send_workers", cfg.Worker.SendWorkers,
		"confirm_workers", cfg.Worker.ConfirmWorkers,
		"sweep_interval", cfg.Sweep.Interval.String(),
	)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}

	wg.Wait()
	slog.Info("outbound router stopped")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
