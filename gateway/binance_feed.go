package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"cross-venue-mm/market"
)

const BinanceSpotWSEndpoint = "wss://stream.binance.com:9443"

// BinanceFeed 订阅对冲所 <symbol>@bookTicker 与 <symbol>@trade 组合流。
// Run 只负责一次连接会话，断线后返回错误，由调用方退避重连。
type BinanceFeed struct {
	Endpoint    string
	Symbol      string
	Dialer      *websocket.Dialer
	ReadTimeout time.Duration
	Logger      *zap.Logger
	now         func() time.Time
}

func NewBinanceFeed(endpoint, symbol string, logger *zap.Logger) *BinanceFeed {
	if endpoint == "" {
		endpoint = BinanceSpotWSEndpoint
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BinanceFeed{
		Endpoint:    endpoint,
		Symbol:      symbol,
		Dialer:      websocket.DefaultDialer,
		ReadTimeout: 30 * time.Second,
		Logger:      logger,
		now:         time.Now,
	}
}

// StreamURL 构建 combined stream 地址。
func (f *BinanceFeed) StreamURL() (string, error) {
	if f.Symbol == "" {
		return "", fmt.Errorf("symbol required")
	}
	u, err := url.Parse(f.Endpoint)
	if err != nil {
		return "", fmt.Errorf("parse ws endpoint: %w", err)
	}
	sym := strings.ToLower(f.Symbol)
	u.Path = "/stream"
	q := u.Query()
	q.Set("streams", sym+"@bookTicker/"+sym+"@trade")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Run 连接并把解析后的盘口/成交同步推给 sink，直到断线或 ctx 取消。
func (f *BinanceFeed) Run(ctx context.Context, sink market.Sink) error {
	endpoint, err := f.StreamURL()
	if err != nil {
		return err
	}
	conn, _, err := f.Dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("ws dial: %w", err)
	}
	f.Logger.Info("market feed connected", zap.String("symbol", f.Symbol), zap.String("url", endpoint))

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()
	defer conn.Close()

	timeout := f.ReadTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(timeout))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("ws read: %w", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(timeout))
		kind, book, trade, err := ParseCombined(msg, f.now().UnixMilli())
		if err != nil {
			f.Logger.Debug("skip ws message", zap.Error(err))
			continue
		}
		switch kind {
		case StreamBookTicker:
			sink.OnBook(book)
		case StreamTrade:
			sink.OnTrade(trade)
		}
	}
}

// IsClosed 判断错误是否来自正常关闭。
func IsClosed(err error) bool {
	return errors.Is(err, context.Canceled) || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
