// Command server runs the voting engine: the HTTP API plus the lifecycle
// worker that opens, closes, and publishes elections on schedule.
//
// With DATABASE_URL set, state lives in Postgres and casts run in SQL
// transactions. Without it, the in-memory stores back a single-process
// deployment for local development.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"agora/internal/audit"
	"agora/internal/ballot"
	"agora/internal/device"
	"agora/internal/election"
	"agora/internal/httpapi"
	"agora/internal/platform/config"
	"agora/internal/platform/httpserver"
	"agora/internal/platform/logger"
	"agora/internal/platform/metrics"
	"agora/internal/platform/ratelimit"
	platformredis "agora/internal/platform/redis"
	"agora/internal/voter"
	"agora/pkg/platform/middleware/auth"
	"agora/pkg/platform/tx"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	var (
		electionStore election.Store
		tallies       ballot.TallyStore
		voteStore     ballot.Store
		directory     voter.Directory
		census        voter.Census
		deviceStore   device.Store
		auditStore    audit.Store
		runner        ballot.TxRunner
	)

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Error("open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			log.Error("ping database", "error", err)
			os.Exit(1)
		}

		es := election.NewPostgresStore(db)
		dir := voter.NewPostgresDirectory(db)
		electionStore, tallies = es, es
		voteStore = ballot.NewPostgresStore(db)
		directory, census = dir, dir
		deviceStore = device.NewPostgresStore(db)
		auditStore = audit.NewPostgresStore(db)
		runner = tx.NewRunner(db)
		log.Info("storage backend", "kind", "postgres")
	} else {
		es := election.NewMemoryStore()
		vs := ballot.NewMemoryStore()
		es.SetVoteChecker(vs)
		dir := voter.NewMemoryDirectory()
		electionStore, tallies = es, es
		voteStore = vs
		directory, census = dir, dir
		deviceStore = device.NewMemoryStore()
		auditStore = audit.NewMemoryStore()
		runner = ballot.NopTxRunner{}
		log.Info("storage backend", "kind", "memory")
	}

	var limiter ratelimit.Limiter = ratelimit.NewMemoryLimiter()
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		limiter = ratelimit.NewRedisLimiter(redisClient)
	}

	auditor := audit.NewService(auditStore)
	devices := device.NewRegistry(deviceStore)
	gate := ballot.NewGate(devices, voteStore)
	ballots := ballot.NewService(
		electionStore, tallies, voteStore, directory, gate, auditor,
		ballot.NewHasher(cfg.VoteHashSecret), runner, m, log,
	)
	elections := election.NewService(electionStore, census, auditor, log)
	worker := election.NewWorker(electionStore, auditor, m, log, cfg.LifecycleInterval, cfg.Timezone)

	router := httpapi.NewRouter(httpapi.Deps{
		Logger:         log,
		Validator:      auth.NewValidator(cfg.JWTSigningKey),
		Ballots:        ballots,
		Elections:      elections,
		Devices:        devices,
		Auditor:        auditor,
		Limiter:        limiter,
		Location:       cfg.Timezone,
		MetricsHandler: promhttp.Handler(),
		CastLimit:      10,
		CastPeriod:     time.Minute,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := httpserver.New(cfg.Addr, router)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return worker.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
