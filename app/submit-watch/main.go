package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ardanlabs/conf"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/availkit/go-node-client/business/domain/tx"
	"github.com/availkit/go-node-client/codec"
	"github.com/availkit/go-node-client/external/elastic"
	"github.com/availkit/go-node-client/external/noderpc"
	"github.com/availkit/go-node-client/infrastructure/store/pebbledb"
	"github.com/availkit/go-node-client/metrics"
	"github.com/availkit/go-node-client/retry"
)

const prefix = "SUBMIT_WATCH"

func main() {
	if err := run(); err != nil {
		log.Fatalf("main: exited with error: %s", err.Error())
	}
}

func run() error {
	config := zap.NewProductionConfig()
	// this is just for sugar, to display a readable date instead of an epoch time
	config.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.DateTime)

	logger, err := config.Build()
	if err != nil {
		return fmt.Errorf("creating logger: %v", err)
	}
	defer logger.Sync()
	sLogger := logger.Sugar()

	_ = godotenv.Load()

	var cfg struct {
		NodeUrl             string        `conf:"default:http://127.0.0.1:9944"`
		InternalStoreFolder string        `conf:"default:store"`
		ServerListenAddr    string        `conf:"default:0.0.0.0:8000"`
		NodeRequestTimeout  time.Duration `conf:"default:30s"`
		PollInterval        time.Duration `conf:"default:3s"`
		SignerUri           string        `conf:"default://Alice"`
		AppId               uint32        `conf:"default:0"`
		DataPalletId        uint          `conf:"default:29"`
		DataVariantId       uint          `conf:"default:1"`
		SubmitData          string
		Elastic             struct {
			Address string
			Index   string        `conf:"default:receipts"`
			Timeout time.Duration `conf:"default:30s"`
		}
	}

	if err := conf.Parse(os.Args[1:], prefix, &cfg); err != nil {
		switch err {
		case conf.ErrHelpWanted:
			usage, err := conf.Usage(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config usage: %v", err)
			}
			fmt.Println(usage)
			return nil
		case conf.ErrVersionWanted:
			version, err := conf.VersionString(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config version: %v", err)
			}
			fmt.Println(version)
			return nil
		}
		return fmt.Errorf("parsing config: %v", err)
	}

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %v", err)
	}
	log.Printf("main: Config :\n%v\n", out)

	signer, err := codec.KeypairFromURI(cfg.SignerUri)
	if err != nil {
		return errors.Wrap(err, "deriving signer keypair")
	}

	node, waiter, closeTransport, err := buildNodeClient(cfg.NodeUrl, cfg.NodeRequestTimeout, cfg.PollInterval, sLogger)
	if err != nil {
		return errors.Wrap(err, "creating node client")
	}
	if closeTransport != nil {
		defer closeTransport()
	}

	journal, err := pebbledb.NewJournalStore(cfg.InternalStoreFolder)
	if err != nil {
		return fmt.Errorf("creating journal store: %v", err)
	}
	defer journal.Close()

	var indexer ReceiptIndexer
	if cfg.Elastic.Address != "" {
		esClient, err := elastic.NewClient(cfg.Elastic.Address, cfg.Elastic.Index, cfg.Elastic.Timeout)
		if err != nil {
			return errors.Wrap(err, "creating elasticsearch client")
		}
		indexer = esClient
	}

	watcherMetrics := metrics.NewMetrics("submit_watch")
	txClient := tx.NewClient(node, waiter, sLogger)
	watcher := NewWatcher(txClient, journal, indexer, watcherMetrics, signer, cfg.AppId, sLogger)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watchErrors := make(chan error, 1)
	go func() {
		if cfg.SubmitData != "" {
			if _, err := watcher.SubmitData(ctx, uint8(cfg.DataPalletId), uint8(cfg.DataVariantId), []byte(cfg.SubmitData)); err != nil {
				watchErrors <- err
				return
			}
		}
		watchErrors <- watcher.ResolvePending(ctx)
	}()

	go pollChainMetrics(ctx, node, watcherMetrics, cfg.PollInterval, sLogger)

	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/v1/status", func(w http.ResponseWriter, r *http.Request) {
		pending, err := journal.GetPendingSubmissions()
		if err != nil {
			http.Error(w, fmt.Sprintf("getting pending submissions: %v", err), http.StatusInternalServerError)
			return
		}
		pendingHashes := make([]string, 0, len(pending))
		for _, sub := range pending {
			pendingHashes = append(pendingHashes, sub.TxHash.Hex())
		}
		response := map[string]any{
			"pendingCount":  len(pending),
			"pendingTxs":    pendingHashes,
			"signerAccount": signer.AccountID().Hex(),
		}
		data, err := json.Marshal(response)
		if err != nil {
			http.Error(w, fmt.Sprintf("marshalling response: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write(data); err != nil {
			http.Error(w, fmt.Sprintf("writing response: %v", err), http.StatusInternalServerError)
			return
		}
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- http.ListenAndServe(cfg.ServerListenAddr, nil)
	}()

	watchDone := false
	for {
		select {
		case <-shutdown:
			return errors.New("shutting down")
		case err := <-watchErrors:
			if err != nil {
				return fmt.Errorf("watch error: %v", err)
			}
			if !watchDone {
				watchDone = true
				sLogger.Info("all submissions resolved")
			}
		case err := <-serverErr:
			return fmt.Errorf("server error: %v", err)
		}
	}
}

// buildNodeClient picks the transport from the URL scheme. WebSocket endpoints
// get subscription-driven block waiting; HTTP endpoints poll.
func buildNodeClient(nodeURL string, timeout, pollInterval time.Duration, logger *zap.SugaredLogger) (*noderpc.Client, tx.BlockWaiter, func(), error) {
	if strings.HasPrefix(nodeURL, "ws://") || strings.HasPrefix(nodeURL, "wss://") {
		dialCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		transport, err := noderpc.DialWS(dialCtx, nodeURL, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		node := noderpc.NewClient(transport, retry.DefaultPolicy(), logger)
		return node, tx.NewSubWaiter(node, node, logger), func() { _ = transport.Close() }, nil
	}

	node := noderpc.NewClient(noderpc.NewHTTPTransport(nodeURL, timeout), retry.DefaultPolicy(), logger)
	return node, tx.NewPollWaiter(node, pollInterval, logger), nil, nil
}

func pollChainMetrics(ctx context.Context, node *noderpc.Client, m *metrics.Metrics, interval time.Duration, logger *zap.SugaredLogger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := node.ChainInfo(ctx)
			if err != nil {
				logger.Warnw("fetching chain info", "error", err)
				continue
			}
			m.SetChainHeights(info.BestHeight, info.FinalizedHeight)
		}
	}
}
