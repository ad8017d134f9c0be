package gateway

import (
	"encoding/json"
	"fmt"
	"strings"

	"cross-venue-mm/market"
)

// CombinedMessage 对应 binance combined stream 包装。
type CombinedMessage struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// StreamKind 区分 combined stream 中的消息类型。
type StreamKind int

const (
	StreamUnknown StreamKind = iota
	StreamBookTicker
	StreamTrade
)

// bookTickerUpdate <symbol>@bookTicker 的核心字段。
type bookTickerUpdate struct {
	Symbol string      `json:"s"`
	BidPx  json.Number `json:"b"`
	BidSz  json.Number `json:"B"`
	AskPx  json.Number `json:"a"`
	AskSz  json.Number `json:"A"`
}

// tradeUpdate <symbol>@trade 的核心字段；m=true 表示买方为 maker（即主动卖出）。
type tradeUpdate struct {
	Symbol       string      `json:"s"`
	Price        json.Number `json:"p"`
	Qty          json.Number `json:"q"`
	TradeTime    int64       `json:"T"`
	BuyerIsMaker bool        `json:"m"`
}

// ParseCombined 解析 combined stream 消息。bookTicker 不带时间戳，使用 recvMs。
func ParseCombined(raw []byte, recvMs int64) (StreamKind, market.BookTop, market.Trade, error) {
	var msg CombinedMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return StreamUnknown, market.BookTop{}, market.Trade{}, err
	}
	switch {
	case strings.HasSuffix(msg.Stream, "@bookTicker"):
		var u bookTickerUpdate
		if err := json.Unmarshal(msg.Data, &u); err != nil {
			return StreamUnknown, market.BookTop{}, market.Trade{}, err
		}
		book, err := u.toBook(recvMs)
		return StreamBookTicker, book, market.Trade{}, err
	case strings.HasSuffix(msg.Stream, "@trade"):
		var u tradeUpdate
		if err := json.Unmarshal(msg.Data, &u); err != nil {
			return StreamUnknown, market.BookTop{}, market.Trade{}, err
		}
		tr, err := u.toTrade()
		return StreamTrade, market.BookTop{}, tr, err
	default:
		return StreamUnknown, market.BookTop{}, market.Trade{}, fmt.Errorf("unknown stream %q", msg.Stream)
	}
}

func (u bookTickerUpdate) toBook(recvMs int64) (market.BookTop, error) {
	var (
		b   market.BookTop
		err error
	)
	if b.BidPx, err = u.BidPx.Float64(); err != nil {
		return b, fmt.Errorf("bid price: %w", err)
	}
	if b.BidSz, err = u.BidSz.Float64(); err != nil {
		return b, fmt.Errorf("bid size: %w", err)
	}
	if b.AskPx, err = u.AskPx.Float64(); err != nil {
		return b, fmt.Errorf("ask price: %w", err)
	}
	if b.AskSz, err = u.AskSz.Float64(); err != nil {
		return b, fmt.Errorf("ask size: %w", err)
	}
	b.TsMs = recvMs
	return b, nil
}

func (u tradeUpdate) toTrade() (market.Trade, error) {
	px, err := u.Price.Float64()
	if err != nil {
		return market.Trade{}, fmt.Errorf("trade price: %w", err)
	}
	qty, err := u.Qty.Float64()
	if err != nil {
		return market.Trade{}, fmt.Errorf("trade qty: %w", err)
	}
	side := market.Buy
	if u.BuyerIsMaker {
		side = market.Sell
	}
	return market.Trade{Px: px, Sz: qty, Side: side, TsMs: u.TradeTime}, nil
}
