package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"cross-venue-mm/infrastructure/logger"
)

// AppConfig holds the main runtime configuration.
// A loaded value is never mutated; a config change produces a new value.
type AppConfig struct {
	Symbol    string          `yaml:"symbol"`
	VenueX    string          `yaml:"venueX"`
	VenueY    string          `yaml:"venueY"`
	FeesY     Fees            `yaml:"feesY"`
	Hedge     HedgeParams     `yaml:"hedge"`
	Risk      RiskLimits      `yaml:"risk"`
	Quote     QuoteParams     `yaml:"quote"`
	Inventory InventoryParams `yaml:"inventory"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Log       logger.Config   `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Status    StatusConfig    `yaml:"status"`
}

// Fees 对冲所费率（bps）。
type Fees struct {
	MakerBps float64 `yaml:"makerBps"`
	TakerBps float64 `yaml:"takerBps"`
}

type HedgeParams struct {
	TakerFraction    float64 `yaml:"takerFraction"`    // 立即 IOC 对冲的比例
	MakerTimeoutMs   int     `yaml:"makerTimeoutMs"`   // maker 腿下单调用的超时
	EscalateMaker    bool    `yaml:"escalateMaker"`    // maker 腿未成交部分是否再 IOC 吃掉
	MaxSlippageBps   float64 `yaml:"maxSlippageBps"`   // IOC 保护价偏离参考价的上限
	PostBpsFromMicro float64 `yaml:"postBpsFromMicro"` // maker 腿相对参考价的偏移
}

type RiskLimits struct {
	MaxInventoryUSD       float64 `yaml:"maxInventoryUsd"`
	MaxOrderRatePerS      float64 `yaml:"maxOrderRatePerS"`
	MaxVenueDownMs        int64   `yaml:"maxVenueDownMs"`
	HedgeFailureThreshold int     `yaml:"hedgeFailureThreshold"` // 连续对冲失败多少次暂停报价，0 关闭
	HedgeCooldownMs       int64   `yaml:"hedgeCooldownMs"`
}

type QuoteParams struct {
	BaseRefreshMs     int     `yaml:"baseRefreshMs"`
	EpsilonMoveBps    float64 `yaml:"epsilonMoveBps"`
	VolWindowSecs     int     `yaml:"volWindowSecs"`
	VolStepMs         int     `yaml:"volStepMs"`
	VWAPWindowTrades  int     `yaml:"vwapWindowTrades"`
	SizeUSD           float64 `yaml:"sizeUsd"`
	SizeCurveK        float64 `yaml:"sizeCurveK"`
	SizeCurveScaleBps float64 `yaml:"sizeCurveScaleBps"`
}

type InventoryParams struct {
	Gamma       float64 `yaml:"gamma"`
	HorizonSecs int     `yaml:"horizonSecs"`
}

type GatewayConfig struct {
	APIKey         string `yaml:"apiKey"`
	APISecret      string `yaml:"apiSecret"`
	RestURL        string `yaml:"restURL"`
	WsURL          string `yaml:"wsURL"`
	RecvWindowMs   int64  `yaml:"recvWindowMs"`
	PricePrecision int32  `yaml:"pricePrecision"` // 下单价格小数位（tickSize）
	QtyPrecision   int32  `yaml:"qtyPrecision"`   // 下单数量小数位（stepSize）
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// StatusConfig Redis 状态镜像；RedisAddr 为空表示关闭。
type StatusConfig struct {
	RedisAddr string `yaml:"redisAddr"`
	RedisDB   int    `yaml:"redisDB"`
	KeyPrefix string `yaml:"keyPrefix"`
}

// Default returns the baseline configuration every YAML file is overlaid on.
func Default() AppConfig {
	return AppConfig{
		Symbol: "SUIUSDT",
		VenueX: "binance-spot-mm",
		VenueY: "binance-spot",
		FeesY:  Fees{MakerBps: 0, TakerBps: 4},
		Hedge: HedgeParams{
			TakerFraction:    0.5,
			MakerTimeoutMs:   1500,
			MaxSlippageBps:   3,
			PostBpsFromMicro: 1,
		},
		Risk: RiskLimits{
			MaxInventoryUSD:       10000,
			MaxOrderRatePerS:      5,
			MaxVenueDownMs:        3000,
			HedgeFailureThreshold: 3,
			HedgeCooldownMs:       30000,
		},
		Quote: QuoteParams{
			BaseRefreshMs:     250,
			EpsilonMoveBps:    1,
			VolWindowSecs:     300,
			VolStepMs:         1000,
			VWAPWindowTrades:  200,
			SizeUSD:           25000,
			SizeCurveK:        1.6,
			SizeCurveScaleBps: 1,
		},
		Inventory: InventoryParams{Gamma: 0.5, HorizonSecs: 300},
		Gateway: GatewayConfig{
			RestURL:        "https://api.binance.com",
			WsURL:          "wss://stream.binance.com:9443",
			RecvWindowMs:   5000,
			PricePrecision: 4,
			QtyPrecision:   1,
		},
		Log:     logger.DefaultConfig(),
		Metrics: MetricsConfig{Addr: ":9100"},
		Status:  StatusConfig{KeyPrefix: "mm"},
	}
}

// Load reads YAML config from path on top of Default and validates it.
func Load(path string) (AppConfig, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads .env (if present) and config, then overrides
// sensitive fields from env vars.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return AppConfig{}, fmt.Errorf("load .env: %w", err)
	}
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("MM_GATEWAY_API_KEY"); v != "" {
		cfg.Gateway.APIKey = v
	}
	if v := os.Getenv("MM_GATEWAY_API_SECRET"); v != "" {
		cfg.Gateway.APISecret = v
	}
	return cfg, Validate(cfg)
}
