package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/gateway"
	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/handler"
	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/hub"
	"github.com/shubham-shewale/stock-ticker/cmd/gateway/internal/repository"
	"github.com/shubham-shewale/stock-ticker/pkg/config"
	"github.com/shubham-shewale/stock-ticker/pkg/market"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger, err := config.NewLogger(cfg.Logger)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	repo := repository.NewRedisStore(rdb)
	defer repo.Close()

	// The gateway keeps its own copy of the market, fed from Redis.
	m := market.New(logger)
	for sym, price := range cfg.Market.Symbols {
		m.AddStock(market.Stock{Symbol: sym, Price: price})
	}

	wsHub := hub.NewHub(repo, m, logger)
	m.AddObserver(wsHub)

	feed := hub.NewFeed(m, logger)
	if n, err := feed.Hydrate(ctx, repo, cfg.Market.SymbolList()); err != nil {
		logger.Warn("Could not load snapshots, starting from configured prices", zap.Error(err))
	} else {
		logger.Info("Loaded snapshots", zap.Int("count", n))
	}
	go repo.RunPubSub(ctx, feed.OnMessage)

	wsHandler := gateway.Handler(wsHub, logger, gateway.Options{
		SendBuffer:     cfg.Gateway.SendBuffer,
		MaxMessageSize: cfg.Gateway.MaxMessageSize,
	})

	srv := &http.Server{
		Addr:    cfg.App.Port,
		Handler: handler.NewRouter(m, wsHandler, logger),
	}

	go func() {
		logger.Info("Server Started", zap.String("port", cfg.App.Port))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP Error", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}
	logger.Info("Shutdown Complete")
}
