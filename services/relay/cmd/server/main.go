package main

import (
	"context"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/go-chi/chi/v5"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/ecp-eth/comments-monorepo-sub007/pkg/appsigner"
	"github.com/ecp-eth/comments-monorepo-sub007/pkg/chainreader"
	"github.com/ecp-eth/comments-monorepo-sub007/pkg/db"
	"github.com/ecp-eth/comments-monorepo-sub007/pkg/pipeline"
	"github.com/ecp-eth/comments-monorepo-sub007/pkg/ratelimit"
	"github.com/ecp-eth/comments-monorepo-sub007/pkg/submitter"
	"github.com/ecp-eth/comments-monorepo-sub007/pkg/typedpayload"
	"github.com/ecp-eth/comments-monorepo-sub007/services/relay/internal/config"
	"github.com/ecp-eth/comments-monorepo-sub007/services/relay/internal/metrics"
	"github.com/ecp-eth/comments-monorepo-sub007/services/relay/internal/store"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if !common.IsHexAddress(cfg.ContractAddress) {
		log.Fatalf("config: CONTRACT_ADDRESS is not a hex address")
	}
	contract := common.HexToAddress(cfg.ContractAddress)
	chainID := big.NewInt(cfg.ChainID)

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	st := store.New(pool)

	rpcClient, err := rpc.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		log.Fatalf("rpc: %v", err)
	}
	eth := ethclient.NewClient(rpcClient)

	signer, err := appsigner.FromHex(cfg.AppSignerKey)
	if err != nil {
		log.Fatalf("app signer: %v", err)
	}
	sub, err := submitter.New(eth, cfg.SubmitterKey, signer.Address(), chainID,
		submitter.WithTimeout(cfg.SubmitTimeout()))
	if err != nil {
		log.Fatalf("submitter: %v", err)
	}

	limiter := newLimiter(ctx, cfg)
	resolver := chainreader.New(rpcClient, contract)
	factory := typedpayload.NewFactory(typedpayload.WithDomain(cfg.DomainName, cfg.DomainVersion))

	pipe := pipeline.New(factory, signer, resolver, sub, limiter, st, pipeline.Config{
		MaxContentLength:  cfg.MaxContentLength,
		MaxDeadlineWindow: cfg.MaxDeadlineWindow(),
	})

	h := &handlers{pipe: pipe, st: st, chainID: chainID, contract: contract}

	metrics.Register()

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Post("/{kind}/prepare", h.prepare)
		api.Post("/{kind}/send", h.send)
		api.Post("/admin/moderation/{author}", h.moderate)
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Submission can legitimately hold a response open for the full
		// submit timeout; leave headroom beyond it.
		WriteTimeout: cfg.SubmitTimeout() + 15*time.Second,
	}
	log.Infof("relay listening on :%s (app signer %s, relay %s)", cfg.Port, signer.Address().Hex(), sub.From().Hex())
	if err := srv.ListenAndServe(); err != nil {
		log.Fatalf("server: %v", err)
	}
}

// newLimiter prefers the shared Redis window and falls back to the
// in-process limiter when Redis is not configured or unreachable.
func newLimiter(ctx context.Context, cfg config.Config) ratelimit.Limiter {
	if cfg.RedisURL == "" {
		return ratelimit.NewInMemory(cfg.RateLimitWindow())
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Warnf("redis unavailable, falling back to in-memory rate limits: %v", err)
		return ratelimit.NewInMemory(cfg.RateLimitWindow())
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warnf("redis unavailable, falling back to in-memory rate limits: %v", err)
		return ratelimit.NewInMemory(cfg.RateLimitWindow())
	}
	return ratelimit.NewRedis(client, cfg.RateLimitWindow())
}
