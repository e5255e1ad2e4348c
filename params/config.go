package params

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// AssetConfig is an asset registered at startup: symbol plus the custody contract
// the external collaborator moves funds through.
type AssetConfig struct {
	Symbol  string
	Custody common.Address
}

type Exchange struct {
	// QuoteAsset settles every market: BUY orders pay in it, SELL orders receive it.
	QuoteAsset string
	Assets     []AssetConfig
}

type Node struct {
	APIAddr     string
	LogFile     string
	CORSOrigins []string
	Verbose     bool

	// TradeStoreDir is the Pebble directory for trade history.
	// Empty keeps the store in memory.
	TradeStoreDir string

	// JournalFile receives one line per processed order. Empty disables it.
	JournalFile string
}

// Feeder drives synthetic order flow on devnets.
type Feeder struct {
	Enabled  bool
	Interval time.Duration
	Traders  int
	Batch    int
}

type Config struct {
	Exchange Exchange
	Node     Node
	Feeder   Feeder
}

func Default() Config {
	return Config{
		Exchange: Exchange{
			QuoteAsset: "DAI",
			Assets: []AssetConfig{
				{Symbol: "LINK", Custody: common.HexToAddress("0x514910771AF9Ca656af840dff83E8264EcF986CA")},
				{Symbol: "DAI", Custody: common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")},
			},
		},
		Node: Node{
			APIAddr:     ":8080",
			LogFile:     "data/node.log",
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:3001"},
		},
		Feeder: Feeder{
			Enabled:  false,
			Interval: 100 * time.Millisecond,
			Traders:  20,
			Batch:    10,
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) (Config, error) {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if quote := os.Getenv("EXCHANGE_QUOTE_ASSET"); quote != "" {
		cfg.Exchange.QuoteAsset = quote
	}
	if raw := os.Getenv("EXCHANGE_ASSETS"); raw != "" {
		assets, err := ParseAssets(raw)
		if err != nil {
			return cfg, err
		}
		cfg.Exchange.Assets = assets
	}

	cfg.Node.APIAddr = getEnv("API_ADDR", cfg.Node.APIAddr)
	cfg.Node.LogFile = getEnv("LOG_FILE", cfg.Node.LogFile)
	cfg.Node.TradeStoreDir = getEnv("TRADE_STORE_DIR", cfg.Node.TradeStoreDir)
	cfg.Node.JournalFile = getEnv("JOURNAL_FILE", cfg.Node.JournalFile)
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.Node.CORSOrigins = splitList(origins)
	}
	if verbose := os.Getenv("VERBOSE"); verbose != "" {
		cfg.Node.Verbose = verbose == "true"
	}

	if enabled := os.Getenv("ENABLE_FEEDER"); enabled != "" {
		cfg.Feeder.Enabled = enabled == "true"
	}
	if ms := os.Getenv("FEEDER_INTERVAL_MS"); ms != "" {
		n, err := strconv.Atoi(ms)
		if err != nil || n <= 0 {
			return cfg, fmt.Errorf("invalid FEEDER_INTERVAL_MS %q", ms)
		}
		cfg.Feeder.Interval = time.Duration(n) * time.Millisecond
	}
	if traders := os.Getenv("FEEDER_TRADERS"); traders != "" {
		n, err := strconv.Atoi(traders)
		if err != nil || n <= 0 {
			return cfg, fmt.Errorf("invalid FEEDER_TRADERS %q", traders)
		}
		cfg.Feeder.Traders = n
	}
	if batch := os.Getenv("FEEDER_BATCH"); batch != "" {
		n, err := strconv.Atoi(batch)
		if err != nil || n <= 0 {
			return cfg, fmt.Errorf("invalid FEEDER_BATCH %q", batch)
		}
		cfg.Feeder.Batch = n
	}

	return cfg, cfg.Validate()
}

// ParseAssets parses "LINK=0x...,DAI=0x..." into asset configs, keeping the listed order.
func ParseAssets(raw string) ([]AssetConfig, error) {
	var assets []AssetConfig
	for _, item := range splitList(raw) {
		symbol, addr, ok := strings.Cut(item, "=")
		if !ok || symbol == "" {
			return nil, fmt.Errorf("invalid asset entry %q (want SYMBOL=0xaddress)", item)
		}
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("invalid custody address for %s: %q", symbol, addr)
		}
		assets = append(assets, AssetConfig{Symbol: symbol, Custody: common.HexToAddress(addr)})
	}
	return assets, nil
}

// Validate checks that the quote asset is among the configured assets.
func (c Config) Validate() error {
	if c.Exchange.QuoteAsset == "" {
		return fmt.Errorf("quote asset must be set")
	}
	for _, a := range c.Exchange.Assets {
		if a.Symbol == c.Exchange.QuoteAsset {
			return nil
		}
	}
	return fmt.Errorf("quote asset %s is not in the configured asset list", c.Exchange.QuoteAsset)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
