package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"
	"golang.org/x/time/rate"

	"github.com/malbeclabs/airdrop/indexer/pkg/claimcache"
	"github.com/malbeclabs/airdrop/indexer/pkg/indexer"
	"github.com/malbeclabs/airdrop/indexer/pkg/merkle"
	"github.com/malbeclabs/airdrop/indexer/pkg/metrics"
	"github.com/malbeclabs/airdrop/indexer/pkg/server"
	"github.com/malbeclabs/airdrop/indexer/pkg/vesting"
	"github.com/malbeclabs/airdrop/utils/pkg/logger"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	defaultListenAddr  = "0.0.0.0:7001"
	defaultMetricsAddr = "0.0.0.0:0"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "Enable verbose (debug) logging")
	envFileFlag := flag.String("env-file", ".env", "Optional dotenv file loaded before reading environment overrides")
	listenAddrFlag := flag.String("listen-addr", defaultListenAddr, "HTTP API listen address (or set LISTEN_ADDR env var)")
	metricsAddrFlag := flag.String("metrics-addr", defaultMetricsAddr, "Address to listen on for prometheus metrics")

	// Airdrop
	merkleTreePathFlag := flag.String("merkle-tree-path", "", "Directory of merkle tree JSON files (or set MERKLE_TREE_PATH env var)")
	programIDFlag := flag.String("program-id", "", "Merkle distributor program id (or set AIRDROP_PROGRAM_ID env var)")
	mintFlag := flag.String("mint", "", "Airdropped token mint (or set AIRDROP_MINT env var)")
	headStartFlag := flag.Uint64("head-start-ppm", uint64(vesting.DefaultHeadStart), "Share of unlocked tokens claimable at start, in parts per million")

	// Solana
	rpcURLFlag := flag.String("rpc-url", solanarpc.MainNetBeta_RPC, "Solana RPC URL (or set SOLANA_RPC_URL env var)")
	wsURLFlag := flag.String("ws-url", solanarpc.MainNetBeta_WS, "Solana websocket URL (or set SOLANA_WS_URL env var)")

	// Claim cache
	refreshIntervalFlag := flag.Duration("refresh-interval", claimcache.DefaultRefreshInterval, "Distributor refresh interval")
	reconnectBaseDelayFlag := flag.Duration("reconnect-base-delay", claimcache.DefaultReconnectBaseDelay, "Base delay between subscription reconnects, doubled per consecutive failure")
	maxReconnectDelayFlag := flag.Duration("max-reconnect-delay", 0, "Cap on the reconnect delay (0 = uncapped)")
	maxReconnectAttemptsFlag := flag.Int("max-reconnect-attempts", claimcache.DefaultMaxReconnectAttempts, "Consecutive subscription failures before a distributor feed gives up")
	updateBufferFlag := flag.Int("update-buffer-size", claimcache.DefaultUpdateBufferSize, "Capacity of the claim status update queue")

	// HTTP
	rateLimitFlag := flag.Float64("rate-limit", float64(server.DefaultRateLimit), "Requests per second")
	rateBurstFlag := flag.Int("rate-burst", 0, "Rate limit burst (0 = one second's worth)")
	rateLimitPerIPFlag := flag.Bool("rate-limit-per-ip", false, "Apply the rate limit per client IP instead of globally")
	allowedOriginsFlag := flag.StringSlice("allowed-origins", nil, "CORS allowed origins (default any)")
	requestTimeoutFlag := flag.Duration("request-timeout", server.DefaultRequestTimeout, "Per-request timeout")
	shutdownTimeoutFlag := flag.Duration("shutdown-timeout", server.DefaultShutdownTimeout, "Maximum time to wait for in-flight requests during graceful shutdown")

	sentryDSNFlag := flag.String("sentry-dsn", "", "Sentry DSN for failure reports (or set SENTRY_DSN env var)")

	flag.Parse()

	log := logger.New(*verboseFlag)

	if err := godotenv.Load(*envFileFlag); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load env file %s: %w", *envFileFlag, err)
	}

	// Override flags with environment variables if set
	for env, target := range map[string]*string{
		"LISTEN_ADDR":        listenAddrFlag,
		"MERKLE_TREE_PATH":   merkleTreePathFlag,
		"AIRDROP_PROGRAM_ID": programIDFlag,
		"AIRDROP_MINT":       mintFlag,
		"SOLANA_RPC_URL":     rpcURLFlag,
		"SOLANA_WS_URL":      wsURLFlag,
		"SENTRY_DSN":         sentryDSNFlag,
	} {
		if v := os.Getenv(env); v != "" {
			*target = v
		}
	}
	if v := os.Getenv("HEAD_START_PPM"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid HEAD_START_PPM: %w", err)
		}
		*headStartFlag = n
	}

	if *merkleTreePathFlag == "" {
		return errors.New("--merkle-tree-path is required")
	}
	programID, err := solana.PublicKeyFromBase58(*programIDFlag)
	if err != nil {
		return fmt.Errorf("invalid --program-id: %w", err)
	}
	mint, err := solana.PublicKeyFromBase58(*mintFlag)
	if err != nil {
		return fmt.Errorf("invalid --mint: %w", err)
	}

	if *sentryDSNFlag != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:     *sentryDSNFlag,
			Release: version,
		}); err != nil {
			return fmt.Errorf("failed to initialize sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	// Start metrics server
	if *metricsAddrFlag != "" {
		metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
		go func() {
			listener, err := net.Listen("tcp", *metricsAddrFlag)
			if err != nil {
				log.Error("failed to start prometheus metrics server listener", "error", err)
				return
			}
			log.Info("prometheus metrics server listening", "address", listener.Addr().String())
			http.Handle("/metrics", promhttp.Handler())
			if err := http.Serve(listener, nil); err != nil {
				log.Error("failed to start prometheus metrics server", "error", err)
			}
		}()
	}

	index, err := merkle.LoadIndex(log, *merkleTreePathFlag, programID, mint)
	if err != nil {
		return fmt.Errorf("failed to load merkle trees: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	srv, err := server.New(server.Config{
		ListenAddr:      *listenAddrFlag,
		ShutdownTimeout: *shutdownTimeoutFlag,
		RequestTimeout:  *requestTimeoutFlag,
		VersionInfo: server.VersionInfo{
			Version: version,
			Commit:  commit,
			Date:    date,
		},
		RateLimit:      rate.Limit(*rateLimitFlag),
		RateBurst:      *rateBurstFlag,
		RateLimitPerIP: *rateLimitPerIPFlag,
		AllowedOrigins: *allowedOriginsFlag,
		IndexerConfig: indexer.Config{
			Logger:               log,
			Index:                index,
			ProgramID:            programID,
			RPC:                  solanarpc.New(*rpcURLFlag),
			Subscriber:           &claimcache.WSSubscriber{URL: *wsURLFlag},
			RefreshInterval:      *refreshIntervalFlag,
			ReconnectBaseDelay:   *reconnectBaseDelayFlag,
			MaxReconnectDelay:    *maxReconnectDelayFlag,
			MaxReconnectAttempts: *maxReconnectAttemptsFlag,
			UpdateBufferSize:     *updateBufferFlag,
			HeadStart:            vesting.HeadStart(*headStartFlag),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	go reportFeedFailures(ctx, log, srv.Indexer().Failures())

	return srv.Run(ctx)
}

// reportFeedFailures sends every feed that gave up to sentry, when
// configured.
func reportFeedFailures(ctx context.Context, log *slog.Logger, failures <-chan claimcache.FeedError) {
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-failures:
			log.Error("distributor feed failed, claim statuses will go stale until restart", "distributor", f.Distributor.String(), "error", f.Err)
			hub := sentry.CurrentHub().Clone()
			hub.WithScope(func(scope *sentry.Scope) {
				scope.SetTag("distributor", f.Distributor.String())
				hub.CaptureException(f)
			})
		}
	}
}
