package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/rlp"

	"nftmarket/chain"
	"nftmarket/client"
	"nftmarket/config"
	"nftmarket/core/types"
	"nftmarket/crypto"
	"nftmarket/native/auction"
	"nftmarket/native/bidding"
	"nftmarket/native/staking"
	"nftmarket/native/store"
	"nftmarket/native/swapmarket"
	"nftmarket/native/trade"
	"nftmarket/observability"
	"nftmarket/observability/logging"
	"nftmarket/storage"
)

const deployerPassEnv = "MKT_DEPLOYER_PASS"

// bootstrapFunding seeds the deployer on a fresh local network so it can fund
// contract custody and slot accounts.
var bootstrapFunding = big.NewInt(1_000_000_000)

var deploymentKey = []byte("market-deployment")

type storedDeployment struct {
	Store   uint64
	Trade   uint64
	Bid     uint64
	Auction uint64
	Swap    uint64
	Staking uint64
}

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("MKT_ENV"))
	logger := logging.Setup("marketd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	if err := config.Validate(cfg); err != nil {
		logger.Error("Invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	pass := os.Getenv(deployerPassEnv)
	key, err := crypto.LoadFromKeystore(cfg.DeployerKeystorePath, pass)
	if err != nil {
		panic(fmt.Sprintf("Failed to load deployer key: %v", err))
	}
	deployer := key.PubKey().Address()
	logger.Info("Deployer key loaded",
		slog.String("keystore", cfg.DeployerKeystorePath),
		logging.MaskField("passphrase", pass))

	params := cfg.Ledger.Params()
	ledger, ids, fresh, err := restoreLedger(db, params)
	if err != nil {
		logger.Error("Failed to restore ledger", slog.Any("error", err))
		os.Exit(1)
	}
	if fresh {
		ledger = chain.NewLedger(params)
	}
	ledger.SetRecorder(observability.Ledger())
	ledger.SetEmitter(observability.Events())

	if fresh {
		ids, err = bootstrap(ledger, cfg, deployer)
		if err != nil {
			logger.Error("Failed to deploy marketplace", slog.Any("error", err))
			os.Exit(1)
		}
		if err := persistState(db, ledger, ids); err != nil {
			logger.Error("Failed to persist ledger", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Marketplace deployed",
			slog.Uint64("store", ids.Store),
			slog.Uint64("trade", ids.Trade),
			slog.Uint64("bid", ids.Bid),
			slog.Uint64("auction", ids.Auction),
			slog.Uint64("swap", ids.Swap),
			slog.Uint64("staking", ids.Staking))
	}

	market, err := client.NewMarket(ledger, ids)
	if err != nil {
		logger.Error("Failed to resolve deployment", slog.Any("error", err))
		os.Exit(1)
	}

	encoded, err := crypto.EncodeAddress(deployer)
	if err != nil {
		logger.Error("Failed to encode deployer address", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Marketplace ready",
		slog.String("network", cfg.NetworkName),
		slog.String("deployer", encoded),
		slog.Uint64("store", market.IDs().Store))

	var metricsSrv *http.Server
	if strings.TrimSpace(cfg.MetricsAddress) != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.Handler())
		metricsSrv = &http.Server{Addr: cfg.MetricsAddress, Handler: mux}
		go func() {
			logger.Info("Metrics listening", slog.String("address", cfg.MetricsAddress))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server stopped", slog.Any("error", err))
			}
		}()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down")
	if metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logger.Error("Metrics shutdown failed", slog.Any("error", err))
		}
		cancel()
	}
	if err := persistState(db, ledger, ids); err != nil {
		logger.Error("Failed to persist ledger", slog.Any("error", err))
		os.Exit(1)
	}
}

// restoreLedger rebuilds the ledger and deployment from a prior snapshot.
// A missing deployment record means a fresh data directory.
func restoreLedger(db storage.Database, params chain.Params) (*chain.Ledger, client.Deployment, bool, error) {
	ok, err := db.Has(deploymentKey)
	if err != nil {
		return nil, client.Deployment{}, false, err
	}
	if !ok {
		return nil, client.Deployment{}, true, nil
	}

	raw, err := db.Get(deploymentKey)
	if err != nil {
		return nil, client.Deployment{}, false, err
	}
	var stored storedDeployment
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, client.Deployment{}, false, fmt.Errorf("decode deployment record: %w", err)
	}
	ids := client.Deployment{
		Store:   stored.Store,
		Trade:   stored.Trade,
		Bid:     stored.Bid,
		Auction: stored.Auction,
		Swap:    stored.Swap,
		Staking: stored.Staking,
	}

	resolve := func(appID uint64) chain.AppLogic {
		switch appID {
		case ids.Store:
			return store.Contract{}
		case ids.Trade:
			return trade.Contract{}
		case ids.Bid:
			return bidding.Contract{}
		case ids.Auction:
			return auction.Contract{}
		case ids.Swap:
			return swapmarket.Contract{}
		case ids.Staking:
			return staking.Contract{}
		default:
			return nil
		}
	}
	ledger, err := chain.Restore(db, params, resolve)
	if err != nil {
		return nil, client.Deployment{}, false, err
	}
	return ledger, ids, false, nil
}

// bootstrap funds the deployer, mints the staking token and deploys the full
// contract suite. Unset fee sinks default to the deployer.
func bootstrap(ledger *chain.Ledger, cfg *config.Config, deployer types.Address) (client.Deployment, error) {
	ledger.Fund(deployer, bootstrapFunding)

	stakingSink, err := resolveSink(cfg.StakingSink, deployer)
	if err != nil {
		return client.Deployment{}, fmt.Errorf("staking sink: %w", err)
	}
	teamSink, err := resolveSink(cfg.TeamSink, deployer)
	if err != nil {
		return client.Deployment{}, fmt.Errorf("team sink: %w", err)
	}

	token := ledger.CreateAsset(deployer, cfg.StakeTokenSupply, "STK")
	return client.Deploy(ledger, deployer, stakingSink, teamSink, token)
}

func resolveSink(encoded string, fallback types.Address) (types.Address, error) {
	if strings.TrimSpace(encoded) == "" {
		return fallback, nil
	}
	return crypto.DecodeAddress(encoded)
}

func persistState(db storage.Database, ledger *chain.Ledger, ids client.Deployment) error {
	raw, err := rlp.EncodeToBytes(&storedDeployment{
		Store:   ids.Store,
		Trade:   ids.Trade,
		Bid:     ids.Bid,
		Auction: ids.Auction,
		Swap:    ids.Swap,
		Staking: ids.Staking,
	})
	if err != nil {
		return fmt.Errorf("encode deployment record: %w", err)
	}
	if err := db.Put(deploymentKey, raw); err != nil {
		return err
	}
	return ledger.Persist(db)
}
