package main

import (
	"context"
	"flag"
	"log"
	"strings"
	"time"

	"go.uber.org/zap"

	"cross-venue-mm/config"
	"cross-venue-mm/gateway"
	"cross-venue-mm/infrastructure/logger"
)

// 紧急撤掉对冲所上残留的 maker 腿挂单。做市所为模拟撮合，无需处理。
func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	symbol := flag.String("symbol", "", "交易对，默认取配置文件")
	timeout := flag.Duration("timeout", 10*time.Second, "请求超时")
	flag.Parse()

	cfg, err := config.LoadWithEnvOverrides(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if *symbol != "" {
		cfg.Symbol = strings.ToUpper(*symbol)
	}
	if !cfg.HasCredentials() {
		log.Fatal("需要 gateway.apiKey/apiSecret 或 MM_GATEWAY_API_KEY/MM_GATEWAY_API_SECRET")
	}

	lg, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer lg.Close()

	client := &gateway.BinanceRESTClient{
		BaseURL:      cfg.Gateway.RestURL,
		APIKey:       cfg.Gateway.APIKey,
		Secret:       cfg.Gateway.APISecret,
		RecvWindowMs: cfg.Gateway.RecvWindowMs,
		HTTPClient:   gateway.NewDefaultHTTPClient(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	if err := client.CancelAll(ctx, cfg.Symbol); err != nil {
		lg.Fatal("cancel all failed", zap.String("symbol", cfg.Symbol), zap.Error(err))
	}
	lg.Info("all resting hedge orders cancelled", zap.String("symbol", cfg.Symbol), zap.String("venue", cfg.VenueY))
}
