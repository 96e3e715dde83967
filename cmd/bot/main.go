package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/redis/go-redis/v9"

	tc "github.com/Roma7-7-7/telegram"

	"github.com/Roma7-7-7/price-notifier/internal/config"
	"github.com/Roma7-7-7/price-notifier/internal/dal"
	"github.com/Roma7-7-7/price-notifier/internal/providers"
	"github.com/Roma7-7-7/price-notifier/internal/server"
	"github.com/Roma7-7-7/price-notifier/internal/service"
	"github.com/Roma7-7-7/price-notifier/internal/telegram"
	"github.com/Roma7-7-7/price-notifier/pkg/clock"
)

type subscribersStore interface {
	service.SubscribersStore
	Ping(ctx context.Context) error
	Close() error
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	conf, err := config.NewConfig(ctx)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	log := mustLogger(conf.Dev)

	store, err := openStore(ctx, conf, log)
	if err != nil {
		log.Error("Failed to open subscribers store", "storage", conf.Storage, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	clk := clock.NewWithLocation(conf.Location)
	sender := tc.NewClient(http.DefaultClient, conf.TelegramToken)

	pricesSvc := service.NewPrices(priceSources(conf), clk, conf.FetchTimeout, log)
	subscriptionsSvc := service.NewSubscriptions(store, log)
	broadcaster := service.NewBroadcaster(pricesSvc, store, sender, clk, service.BroadcastOptions{
		Concurrency:  conf.DeliveryConcurrency,
		SendTimeout:  conf.SendTimeout,
		PurgeBlocked: conf.PurgeBlocked,
	}, log)
	scheduler := service.NewScheduler(broadcaster, conf.BroadcastHours, conf.Location, conf.BroadcastTimeout, log)

	handler := telegram.NewHandler(subscriptionsSvc, pricesSvc, conf.BroadcastHours, conf.FetchTimeout*2, log) //nolint:mnd // fetch plus reply
	purge := telegram.NewPurgeOnForbiddenMiddleware(subscriptionsSvc, log)
	bot, err := telegram.NewBot(conf.TelegramToken, handler, log, purge.Handle)
	if err != nil {
		log.Error("Failed to create telegram bot", "error", err)
		os.Exit(1)
	}

	wg := &sync.WaitGroup{}
	wg.Go(func() {
		if err := scheduler.Start(ctx); err != nil {
			log.Error("Scheduler failed", "error", err)
			cancel()
		}
	})

	if conf.HTTPAddr != "" {
		srv := server.New(store, pricesSvc, broadcaster, log)
		wg.Go(func() {
			if err := srv.Start(ctx, conf.HTTPAddr); err != nil {
				log.Error("HTTP server failed", "error", err)
				cancel()
			}
		})
	}

	log.Info("Starting bot")
	err = bot.Start(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Error("Failed to start bot", "error", err)
		}
	}

	wg.Wait()
	log.Info("Stopped bot")
}

func openStore(ctx context.Context, conf *config.Config, log *slog.Logger) (subscribersStore, error) {
	switch conf.Storage {
	case config.StorageBolt:
		store, err := dal.OpenBolt(conf.DBPath, log)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StorageSQLite:
		store, err := dal.OpenSQLite(ctx, conf.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StorageRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     conf.RedisAddr,
			Password: conf.RedisPassword,
			DB:       conf.RedisDB,
		})
		store := dal.NewRedis(client, conf.RedisKey)
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		return store, nil
	case config.StorageMemory:
		log.Warn("Using in-memory subscribers store, subscriptions are lost on restart")
		return dal.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage %q", conf.Storage)
	}
}

func priceSources(conf *config.Config) []service.PriceSource {
	var domestic service.PriceSource
	switch conf.DomesticProvider {
	case providers.BonbastName:
		domestic = providers.NewBonbast(conf.BonbastURL, conf.BonbastSelectors, conf.FetchTimeout)
	default:
		domestic = providers.NewNavasan(conf.NavasanURL, conf.NavasanAPIKey, conf.NavasanKeys, conf.FetchTimeout)
	}

	var crypto service.PriceSource
	switch conf.CryptoProvider {
	case providers.CoinGeckoName:
		crypto = providers.NewCoinGecko(conf.CoinGeckoURL, conf.CoinGeckoCoin, conf.FetchTimeout)
	default:
		crypto = providers.NewBinance(conf.BinanceURL, conf.BinanceSymbol, conf.FetchTimeout)
	}

	return []service.PriceSource{domestic, crypto}
}

func mustLogger(dev bool) *slog.Logger {
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})

	if dev {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}

	return slog.New(handler)
}
