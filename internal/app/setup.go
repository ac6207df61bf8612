package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/quantfold/polyarb/internal/circuitbreaker"
	"github.com/quantfold/polyarb/internal/detector"
	"github.com/quantfold/polyarb/internal/discovery"
	"github.com/quantfold/polyarb/internal/engine"
	"github.com/quantfold/polyarb/internal/feecalc"
	"github.com/quantfold/polyarb/internal/markets"
	"github.com/quantfold/polyarb/internal/merger"
	"github.com/quantfold/polyarb/internal/orders"
	"github.com/quantfold/polyarb/internal/quotes"
	"github.com/quantfold/polyarb/internal/storage"
	"github.com/quantfold/polyarb/internal/txmgr"
	"github.com/quantfold/polyarb/pkg/cache"
	"github.com/quantfold/polyarb/pkg/config"
	"github.com/quantfold/polyarb/pkg/healthprobe"
	"github.com/quantfold/polyarb/pkg/httpserver"
	"github.com/quantfold/polyarb/pkg/ledger"
	"github.com/quantfold/polyarb/pkg/venue"
	"github.com/quantfold/polyarb/pkg/wallet"
	"github.com/quantfold/polyarb/pkg/websocket"
)

// New creates a new application instance.
func New(cfg *config.Config, logger *zap.Logger, opts *Options) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	appCache, err := setupCache(logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup cache: %w", err)
	}

	discoverySvc := setupDiscovery(cfg, logger, appCache, opts)
	wsManager := setupStream(cfg, logger)
	feed := setupFeed(cfg, logger, wsManager)
	det := setupDetector(cfg, logger, appCache)

	store, err := setupStorage(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup storage: %w", err)
	}

	exec, err := setupExecution(ctx, cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup execution: %w", err)
	}

	rules := markets.NewCachedMetadataClient(markets.NewMetadataClient(cfg.CLOBBaseURL), appCache)

	var gate engine.SafetyGate = engine.NewDefaultGate(cfg.MaxTradeCost, cfg.MaxDailyTrades)
	var breaker *circuitbreaker.Breaker
	var tracker *wallet.Tracker
	if exec.contracts != nil {
		breaker, err = circuitbreaker.New(&circuitbreaker.Config{
			CheckInterval: cfg.BreakerCheckInterval,
			MinAbsolute:   cfg.BreakerMinBalance,
			Balances:      exec.contracts,
			Address:       exec.owner,
			Logger:        logger,
		})
		if err != nil {
			cancel()
			return nil, fmt.Errorf("create circuit breaker: %w", err)
		}
		gate = engine.MultiGate{gate, breaker}

		walletClient, err := wallet.NewClient(exec.chain, cfg.CollateralAddr, "", logger)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("create wallet client: %w", err)
		}
		tracker, err = wallet.New(&wallet.Config{
			Client:       walletClient,
			Address:      exec.owner,
			PollInterval: cfg.WalletPollInterval,
			Logger:       logger,
		})
		if err != nil {
			cancel()
			return nil, fmt.Errorf("create wallet tracker: %w", err)
		}
	}

	eng := engine.New(det, exec.orders, exec.merger, txMaintenance(exec.txManager), store,
		gate,
		engine.FixedSizer{Pairs: cfg.PositionSize},
		feed.Quotes(),
		engine.Config{
			SweepInterval: cfg.SweepInterval,
			Slippage:      cfg.Slippage,
			Rules:         rules,
			Logger:        logger,
		})

	a := &App{
		cfg:           cfg,
		logger:        logger,
		healthChecker: healthprobe.New(),
		discoverySvc:  discoverySvc,
		wsManager:     wsManager,
		feed:          feed,
		det:           det,
		orderMgr:      exec.orders,
		txManager:     exec.txManager,
		merger:        exec.merger,
		breaker:       breaker,
		tracker:       tracker,
		eng:           eng,
		store:         store,
		ctx:           ctx,
		cancel:        cancel,
	}
	a.httpServer = httpserver.New(&httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: a.healthChecker,
		Status:        a,
	})

	return a, nil
}

// txMaintenance avoids a typed-nil interface when running in paper mode.
func txMaintenance(m *txmgr.Manager) engine.TxMaintenance {
	if m == nil {
		return nil
	}
	return m
}

func setupCache(logger *zap.Logger) (cache.Cache, error) {
	return cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 10000,
		MaxCost:     1000,
		BufferItems: 64,
		Logger:      logger,
	})
}

func setupDiscovery(cfg *config.Config, logger *zap.Logger, appCache cache.Cache, opts *Options) *discovery.Service {
	client := discovery.NewClient("https://gamma-api.polymarket.com", logger)
	return discovery.New(&discovery.Config{
		Client:       client,
		Cache:        appCache,
		PollInterval: 30 * time.Second,
		MarketLimit:  100,
		SingleMarket: opts.SingleMarket,
		Logger:       logger,
	})
}

func setupStream(cfg *config.Config, logger *zap.Logger) *websocket.Manager {
	return websocket.New(websocket.Config{
		URL:                   cfg.CLOBWSURL,
		DialTimeout:           cfg.WSDialTimeout,
		PingInterval:          cfg.WSPingInterval,
		ReconnectInitialDelay: cfg.WSReconnectInitialDelay,
		ReconnectMaxDelay:     cfg.WSReconnectMaxDelay,
		ReconnectBackoffMult:  cfg.WSReconnectBackoffMult,
		MessageBufferSize:     cfg.WSMessageBufferSize,
		Logger:                logger,
	})
}

func setupFeed(cfg *config.Config, logger *zap.Logger, stream *websocket.Manager) *quotes.Feed {
	return quotes.New(quotes.Config{
		Stream:       stream,
		PollInterval: cfg.PollInterval,
		Logger:       logger,
	})
}

func setupDetector(cfg *config.Config, logger *zap.Logger, appCache cache.Cache) *detector.Detector {
	fees := feecalc.NewCached(feecalc.NewDynamic(), appCache, time.Hour)
	return detector.New(detector.Config{
		MinProfitPct: cfg.MinProfitPct,
		Fees:         fees,
		Logger:       logger,
	})
}

func setupStorage(cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	if cfg.StorageMode == "postgres" {
		pg, err := storage.NewPostgresStorage(&storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres storage: %w", err)
		}
		return pg, nil
	}

	return storage.NewConsoleStorage(logger), nil
}

// execDeps bundles the execution-side collaborators. contracts, chain and
// owner are nil/zero in paper mode.
type execDeps struct {
	orders    *orders.Manager
	txManager *txmgr.Manager
	merger    engine.Merger
	contracts *ledger.Contracts
	chain     *ethclient.Client
	owner     common.Address
}

// setupExecution builds the venue client, transaction manager and merger.
// Paper mode substitutes simulated execution and no chain connection.
func setupExecution(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*execDeps, error) {
	if cfg.ExecutionMode == "paper" {
		logger.Info("paper-execution-enabled",
			zap.String("note", "orders fill at limit price, merges are simulated"))
		orderMgr := orders.New(&paperVenue{logger: logger}, orders.Config{
			SubmitTimeout: cfg.SubmitTimeout,
			Logger:        logger,
		})
		return &execDeps{orders: orderMgr, merger: &paperMerger{}}, nil
	}

	venueClient, err := venue.New(venue.Config{
		BaseURL:           cfg.CLOBBaseURL,
		APIKey:            cfg.APIKey,
		Secret:            cfg.Secret,
		Passphrase:        cfg.Passphrase,
		PrivateKey:        cfg.PrivateKey,
		ProxyAddress:      cfg.ProxyAddress,
		SignatureType:     cfg.SignatureType,
		ChainID:           cfg.ChainID,
		RequestsPerSecond: cfg.RequestsPerSec,
		Logger:            logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create venue client: %w", err)
	}

	orderMgr := orders.New(venueClient, orders.Config{
		SubmitTimeout: cfg.SubmitTimeout,
		Logger:        logger,
	})

	client, err := ledger.Dial(ctx, cfg.RPCURL, cfg.ChainID, logger)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	signer, err := ledger.NewSigner(cfg.PrivateKey, cfg.ChainID)
	if err != nil {
		return nil, fmt.Errorf("create signer: %w", err)
	}

	txManager := txmgr.New(client, signer, txmgr.Config{
		MaxPending:     cfg.MaxPendingTxs,
		StuckAfter:     cfg.StuckAfter,
		ConfirmTimeout: cfg.ConfirmTimeout,
		Logger:         logger,
	})

	contracts := ledger.NewContracts(client, cfg.CTFAddress, cfg.CollateralAddr)
	mg := merger.New(contracts, contracts, client, txManager, signer.Address(), merger.Config{
		Tolerance:      cfg.MergeTolerance,
		ConfirmTimeout: cfg.ConfirmTimeout,
		Logger:         logger,
	})

	return &execDeps{
		orders:    orderMgr,
		txManager: txManager,
		merger:    mg,
		contracts: contracts,
		chain:     client,
		owner:     signer.Address(),
	}, nil
}
