package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/btcsuite/btcd/rpcclient"
	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/chainfold/utxoindex-backend/internal/bitcoin"
	"github.com/chainfold/utxoindex-backend/internal/indexer"
	"github.com/chainfold/utxoindex-backend/internal/metrics"
	"github.com/chainfold/utxoindex-backend/internal/query"
	"github.com/chainfold/utxoindex-backend/internal/store/sqlite"
	"github.com/chainfold/utxoindex-backend/internal/transport"
)

type config struct {
	DBPath                string        `long:"db-path" env:"UTXOINDEX_DB_PATH" description:"path to the sqlite database" default:"utxoindex.db"`
	Network               string        `long:"network" env:"UTXOINDEX_NETWORK" description:"bitcoin network name" default:"mainnet"`
	RPCURL                string        `long:"rpc-url" env:"UTXOINDEX_RPC_URL" description:"bitcoin node RPC URL" default:"http://127.0.0.1:8332"`
	RPCUser               string        `long:"rpc-user" env:"UTXOINDEX_RPC_USER" description:"bitcoin node RPC username"`
	RPCPassword           string        `long:"rpc-password" env:"UTXOINDEX_RPC_PASSWORD" description:"bitcoin node RPC password"`
	RPCRateLimit          int           `long:"rpc-rate-limit" env:"UTXOINDEX_RPC_RATE_LIMIT" description:"max node RPC requests per second, 0 for unlimited" default:"0"`
	ZMQAddr               string        `long:"zmq-addr" env:"UTXOINDEX_ZMQ_ADDR" description:"bitcoin node zmq hashblock endpoint (requires zmq build tag)"`
	PollInterval          time.Duration `long:"poll-interval" env:"UTXOINDEX_POLL_INTERVAL" description:"tip poll interval in live mode" default:"10s"`
	FetchWorkers          int           `long:"fetch-workers" env:"UTXOINDEX_FETCH_WORKERS" description:"concurrent block fetchers during batch sync" default:"8"`
	ReorgProtectionBlocks uint64        `long:"reorg-protection-blocks" env:"UTXOINDEX_REORG_PROTECTION_BLOCKS" description:"max auto-recoverable reorg depth" default:"100"`
	HTTPHost              string        `long:"http-host" env:"UTXOINDEX_HTTP_HOST" description:"query API listen host" default:"0.0.0.0"`
	HTTPPort              int           `long:"http-port" env:"UTXOINDEX_HTTP_PORT" description:"query API listen port" default:"8080"`
	MetricsAddr           string        `long:"metrics-addr" env:"UTXOINDEX_METRICS_ADDR" description:"address for metrics server" default:":2112"`
}

func main() {
	cfg := config{}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic("can't initialize zap logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync()
	}()

	if _, err := flags.ParseArgs(&cfg, os.Args); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return
		}
		logger.Fatal("failed to parse flags", zap.Error(err))
	}

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("indexer failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config, logger *zap.Logger) error {
	startMetricsServer(ctx, cfg.MetricsAddr, logger)

	st, err := sqlite.Open(cfg.DBPath, metrics.NewStore(cfg.Network), logger)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("close store", zap.Error(err))
		}
	}()

	rpcClient, err := newRPCClient(cfg.RPCURL, cfg.RPCUser, cfg.RPCPassword)
	if err != nil {
		return fmt.Errorf("init rpc client: %w", err)
	}
	defer func() {
		rpcClient.Shutdown()
		rpcClient.WaitForShutdown()
	}()
	rpc := bitcoin.NewRPCClient(rpcClient, cfg.RPCRateLimit, metrics.NewRPCClient(cfg.Network))

	signals, err := startBlockSignal(ctx, cfg.ZMQAddr, logger)
	if err != nil {
		return fmt.Errorf("init block signal: %w", err)
	}

	source, err := bitcoin.NewSource(rpc, signals, bitcoin.SourceConfig{
		Network:      cfg.Network,
		PollInterval: cfg.PollInterval,
	}, logger)
	if err != nil {
		return fmt.Errorf("init chain source: %w", err)
	}

	coordinator, err := indexer.NewCoordinator(source, st, metrics.NewCoordinator(cfg.Network), indexer.Config{
		ReorgProtectionBlocks: cfg.ReorgProtectionBlocks,
		FetchWorkers:          cfg.FetchWorkers,
	}, logger)
	if err != nil {
		return fmt.Errorf("init coordinator: %w", err)
	}

	facade, err := query.NewFacade(st, source, logger)
	if err != nil {
		return fmt.Errorf("init query facade: %w", err)
	}
	api := transport.NewServer(facade, logger)
	api.Run(cfg.HTTPHost, cfg.HTTPPort)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := api.Shutdown(shutdownCtx); err != nil {
			logger.Warn("api shutdown", zap.Error(err))
		}
	}()

	return coordinator.Run(ctx)
}

func startMetricsServer(ctx context.Context, addr string, logger *zap.Logger) {
	log := logger.Named("metrics")

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       time.Minute,
	}

	go func() {
		log.Info("listen", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("serve failed", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown failed", zap.Error(err))
		}
	}()
}

func newRPCClient(rawURL, user, password string) (*rpcclient.Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse rpc url: %w", err)
	}
	if parsed.Scheme != "http" {
		return nil, fmt.Errorf("rpc url scheme %q not supported, use http", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, errors.New("rpc url missing host")
	}

	cfg := &rpcclient.ConnConfig{
		Host:         parsed.Host,
		User:         user,
		Pass:         password,
		HTTPPostMode: true,
		DisableTLS:   true,
	}
	return rpcclient.New(cfg, nil)
}
