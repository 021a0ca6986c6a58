package main

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"

	"github.com/nmarkelov/simshop/internal/logger"
)

const (
	defaultListenAddr      = "localhost:8000"
	defaultLoggingLevel    = logger.LevelInfo
	defaultEnvironment     = logger.EnvProduction
	defaultProviderAddr    = "https://api.sms-activate.org"
	defaultProviderCountry = "0"
	defaultFulfillmentWait = 15 * time.Minute
	defaultConvStateTTL    = 30 * time.Minute
)

type Config struct {
	// Default logging level
	LogLevel string

	// Environment
	Environment string

	// Address on which the service will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Redis address for conversation state; empty disables the endpoints
	RedisAddr string

	// NATS url for event publishing; empty means events are dropped
	NatsURL string

	// Telegram bot token used for notifications; empty disables them
	BotToken string

	// Bearer tokens for the two caller classes
	ServiceToken string
	AdminToken   string

	// Platform ids allowed to approve recharges and listings
	AdminIDs []int64

	// Upstream activation provider
	ProviderAddr    string
	ProviderKey     string
	ProviderCountry string

	// Bonus credited to a referrer on referred registration
	ReferralBonus decimal.Decimal

	// How long an order may await fulfillment before it is refunded
	FulfillmentWait time.Duration

	// How long a bot conversation step stays alive
	ConvStateTTL time.Duration
}

func NewConfig() *Config {
	return &Config{
		LogLevel:        defaultLoggingLevel,
		Environment:     defaultEnvironment,
		ListenAddr:      defaultListenAddr,
		ProviderAddr:    defaultProviderAddr,
		ProviderCountry: defaultProviderCountry,
		FulfillmentWait: defaultFulfillmentWait,
		ConvStateTTL:    defaultConvStateTTL,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		c.LoadEnv(func(key string) string {
			return envMap[key]
		})
		return nil
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) {
		return func(value string) {
			if value != "" {
				*o = value
			}
		}
	}
	setDuration := func(o *time.Duration) func(value string) {
		return func(value string) {
			if d, err := time.ParseDuration(value); err == nil {
				*o = d
			}
		}
	}

	envMap := map[string]func(string){
		"RUN_ADDRESS":      setString(&c.ListenAddr),
		"DATABASE_URI":     setString(&c.DatabaseDSN),
		"REDIS_ADDR":       setString(&c.RedisAddr),
		"NATS_URL":         setString(&c.NatsURL),
		"BOT_TOKEN":        setString(&c.BotToken),
		"SERVICE_TOKEN":    setString(&c.ServiceToken),
		"ADMIN_TOKEN":      setString(&c.AdminToken),
		"PROVIDER_ADDRESS": setString(&c.ProviderAddr),
		"PROVIDER_API_KEY": setString(&c.ProviderKey),
		"PROVIDER_COUNTRY": setString(&c.ProviderCountry),
		"LOG_LEVEL":        setString(&c.LogLevel),
		"ENVIRONMENT":      setString(&c.Environment),
		"FULFILLMENT_WAIT": setDuration(&c.FulfillmentWait),
		"CONVSTATE_TTL":    setDuration(&c.ConvStateTTL),
		"ADMIN_IDS": func(value string) {
			if ids, err := parseAdminIDs(value); err == nil && len(ids) > 0 {
				c.AdminIDs = ids
			}
		},
		"REFERRAL_BONUS": func(value string) {
			if bonus, err := decimal.NewFromString(value); err == nil {
				c.ReferralBonus = bonus
			}
		},
	}

	for key, parseFn := range envMap {
		parseFn(getenv(key))
	}
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("simshop", pflag.ContinueOnError)

	var adminIDs string
	var referralBonus string

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVar(&c.RedisAddr, "redis", c.RedisAddr, "Redis address for conversation state")
	fs.StringVar(&c.NatsURL, "nats", c.NatsURL, "NATS url for event publishing")
	fs.StringVar(&c.BotToken, "bot-token", c.BotToken, "Telegram bot token for notifications")
	fs.StringVar(&c.ServiceToken, "service-token", c.ServiceToken, "Bearer token for the bot frontend")
	fs.StringVar(&c.AdminToken, "admin-token", c.AdminToken, "Bearer token for the admin surface")
	fs.StringVar(&adminIDs, "admin-ids", "", "Comma separated admin platform ids")
	fs.StringVarP(&c.ProviderAddr, "provider", "p", c.ProviderAddr, "Activation provider address")
	fs.StringVar(&c.ProviderKey, "provider-key", c.ProviderKey, "Activation provider api key")
	fs.StringVar(&referralBonus, "referral-bonus", "", "Referral bonus amount")
	fs.DurationVar(&c.FulfillmentWait, "fulfillment-wait", c.FulfillmentWait, "Order fulfillment deadline")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if adminIDs != "" {
		ids, err := parseAdminIDs(adminIDs)
		if err != nil {
			return err
		}
		c.AdminIDs = ids
	}

	if referralBonus != "" {
		bonus, err := decimal.NewFromString(referralBonus)
		if err != nil {
			return err
		}
		c.ReferralBonus = bonus
	}

	return nil
}

func parseAdminIDs(value string) ([]int64, error) {
	parts := strings.Split(value, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
