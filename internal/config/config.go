package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"time"
	_ "time/tzdata" // the bot runs in slim containers without zoneinfo

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/Roma7-7-7/price-notifier/internal/models"
	"github.com/Roma7-7-7/price-notifier/internal/providers"
)

const (
	StorageBolt   = "bolt"
	StorageSQLite = "sqlite"
	StorageRedis  = "redis"
	StorageMemory = "memory"

	maxDeliveryConcurrency = 50
)

var (
	storages          = []string{StorageBolt, StorageSQLite, StorageRedis, StorageMemory}
	domesticProviders = []string{providers.NavasanName, providers.BonbastName}
	cryptoProviders   = []string{providers.BinanceName, providers.CoinGeckoName}
)

type Config struct {
	Dev            bool   `envconfig:"DEV" default:"false"`
	Timezone       string `envconfig:"TIMEZONE" default:"Asia/Tehran"`
	BroadcastHours []int  `envconfig:"BROADCAST_HOURS" default:"11,13,15,17"`

	Storage       string `envconfig:"STORAGE" default:"bolt"`
	DBPath        string `envconfig:"DB_PATH" default:"data/price-notifier.db"`
	SQLitePath    string `envconfig:"SQLITE_PATH" default:"data/price-notifier.sqlite"`
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	RedisKey      string `envconfig:"REDIS_KEY" default:"price-notifier"`

	DomesticProvider string `envconfig:"DOMESTIC_PROVIDER" default:"navasan"`
	NavasanURL       string `envconfig:"NAVASAN_URL" default:"https://api.navasan.tech/latest/"`
	BonbastURL       string `envconfig:"BONBAST_URL" default:"https://www.bonbast.com/"`
	CryptoProvider   string `envconfig:"CRYPTO_PROVIDER" default:"binance"`
	BinanceURL       string `envconfig:"BINANCE_URL" default:"https://api.binance.com/api/v3/ticker/price"`
	BinanceSymbol    string `envconfig:"BINANCE_SYMBOL" default:"BTCUSDT"`
	CoinGeckoURL     string `envconfig:"COINGECKO_URL" default:"https://api.coingecko.com/api/v3/simple/price"`
	CoinGeckoCoin    string `envconfig:"COINGECKO_COIN" default:"bitcoin"`
	FeedKeysFile     string `envconfig:"FEED_KEYS_FILE"`

	FetchTimeout        time.Duration `envconfig:"FETCH_TIMEOUT" default:"15s"`
	SendTimeout         time.Duration `envconfig:"SEND_TIMEOUT" default:"10s"`
	BroadcastTimeout    time.Duration `envconfig:"BROADCAST_TIMEOUT" default:"2m"`
	DeliveryConcurrency int           `envconfig:"DELIVERY_CONCURRENCY" default:"10"`
	PurgeBlocked        bool          `envconfig:"PURGE_BLOCKED" default:"true"`

	HTTPAddr string `envconfig:"HTTP_ADDR" default:"127.0.0.1:8080"`

	SSMPrefix     string `envconfig:"SSM_PREFIX" default:"/price-notifier-bot/prod"`
	TelegramToken string `envconfig:"TELEGRAM_TOKEN"`
	NavasanAPIKey string `envconfig:"NAVASAN_API_KEY"`

	Location         *time.Location     `ignored:"true"`
	NavasanKeys      providers.KeyTable `ignored:"true"`
	BonbastSelectors providers.KeyTable `ignored:"true"`
}

type ParameterStore interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// ParameterStoreFactory is called lazily, only when a secret has to be read from the store.
type ParameterStoreFactory func(ctx context.Context) (ParameterStore, error)

func NewConfig(ctx context.Context) (*Config, error) {
	return Load(ctx, newSSMStore)
}

// Load reads .env (when present) and the environment, resolves missing secrets through the
// parameter store outside of dev mode and validates the result.
func Load(ctx context.Context, parameterStore ParameterStoreFactory) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	res := &Config{}
	if err := envconfig.Process("", res); err != nil {
		return nil, fmt.Errorf("envconfig process: %w", err)
	}

	if err := res.resolveSecrets(ctx, parameterStore); err != nil {
		return nil, err
	}

	if err := res.validate(); err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(res.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", res.Timezone, err)
	}
	res.Location = loc

	if err := res.loadFeedKeys(); err != nil {
		return nil, err
	}

	return res, nil
}

func (c *Config) resolveSecrets(ctx context.Context, parameterStore ParameterStoreFactory) error {
	needsAPIKey := c.DomesticProvider == providers.NavasanName
	if !c.Dev && (c.TelegramToken == "" || (needsAPIKey && c.NavasanAPIKey == "")) {
		store, err := parameterStore(ctx)
		if err != nil {
			return err
		}

		if c.TelegramToken == "" {
			if c.TelegramToken, err = getParameter(ctx, store, c.SSMPrefix+"/telegram-token"); err != nil {
				return fmt.Errorf("get telegram token: %w", err)
			}
		}
		if needsAPIKey && c.NavasanAPIKey == "" {
			if c.NavasanAPIKey, err = getParameter(ctx, store, c.SSMPrefix+"/navasan-api-key"); err != nil {
				return fmt.Errorf("get navasan api key: %w", err)
			}
		}
	}

	if c.TelegramToken == "" {
		return errors.New("telegram token is required")
	}
	if needsAPIKey && c.NavasanAPIKey == "" {
		return errors.New("navasan api key is required")
	}
	return nil
}

func (c *Config) validate() error {
	if len(c.BroadcastHours) == 0 {
		return errors.New("at least one broadcast hour is required")
	}
	for _, hour := range c.BroadcastHours {
		if hour < 0 || hour > 23 {
			return fmt.Errorf("invalid broadcast hour %d", hour)
		}
	}

	if !slices.Contains(storages, c.Storage) {
		return fmt.Errorf("unknown storage %q, expected one of %s", c.Storage, strings.Join(storages, ", "))
	}
	if !slices.Contains(domesticProviders, c.DomesticProvider) {
		return fmt.Errorf("unknown domestic provider %q, expected one of %s", c.DomesticProvider, strings.Join(domesticProviders, ", "))
	}
	if !slices.Contains(cryptoProviders, c.CryptoProvider) {
		return fmt.Errorf("unknown crypto provider %q, expected one of %s", c.CryptoProvider, strings.Join(cryptoProviders, ", "))
	}

	if c.FetchTimeout <= 0 || c.SendTimeout <= 0 || c.BroadcastTimeout <= 0 {
		return errors.New("timeouts must be positive")
	}
	if c.DeliveryConcurrency <= 0 {
		return fmt.Errorf("invalid delivery concurrency %d", c.DeliveryConcurrency)
	}
	c.DeliveryConcurrency = min(c.DeliveryConcurrency, maxDeliveryConcurrency)

	return nil
}

type feedKeysFile struct {
	Quantities map[string][]string `mapstructure:"quantities"`
	Selectors  map[string][]string `mapstructure:"selectors"`
}

func (c *Config) loadFeedKeys() error {
	c.NavasanKeys = providers.DefaultNavasanKeys()
	c.BonbastSelectors = providers.DefaultBonbastSelectors()
	if c.FeedKeysFile == "" {
		return nil
	}

	v := viper.New()
	v.SetConfigFile(c.FeedKeysFile)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read feed keys file: %w", err)
	}

	file := feedKeysFile{}
	if err := v.Unmarshal(&file); err != nil {
		return fmt.Errorf("unmarshal feed keys file: %w", err)
	}

	quantities, err := toKeyTable(file.Quantities)
	if err != nil {
		return fmt.Errorf("feed keys quantities: %w", err)
	}
	selectors, err := toKeyTable(file.Selectors)
	if err != nil {
		return fmt.Errorf("feed keys selectors: %w", err)
	}

	c.NavasanKeys = c.NavasanKeys.Merge(quantities)
	c.BonbastSelectors = c.BonbastSelectors.Merge(selectors)
	return nil
}

func toKeyTable(raw map[string][]string) (providers.KeyTable, error) {
	res := make(providers.KeyTable, len(raw))
	for name, keys := range raw {
		q := models.Quantity(strings.ToLower(name))
		if q != models.QuantityUSD && q != models.QuantityGold18 {
			return nil, fmt.Errorf("unknown quantity %q", name)
		}
		res[q] = keys
	}
	return res, nil
}

func newSSMStore(ctx context.Context) (ParameterStore, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return ssm.NewFromConfig(cfg), nil
}

func getParameter(ctx context.Context, store ParameterStore, name string) (string, error) {
	param, err := store.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("get SSM parameter %s: %w", name, err)
	}
	if param.Parameter == nil || param.Parameter.Value == nil {
		return "", fmt.Errorf("SSM parameter %s not found", name)
	}
	return *param.Parameter.Value, nil
}
