package strategy

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cross-venue-mm/config"
	"cross-venue-mm/market"
)

func newTestEngine() QuoteEngine {
	return NewQuoteEngine(config.Default())
}

var thinBook = market.BookTop{BidPx: 100, BidSz: 10, AskPx: 100.1, AskSz: 10, TsMs: 1}

func TestComputeHigherSigmaWidensQuote(t *testing.T) {
	e := newTestEngine()
	calm := e.Compute(thinBook, 10, 0, 25000)
	wild := e.Compute(thinBook, 50, 0, 25000)

	require.NoError(t, calm.Validate())
	require.NoError(t, wild.Validate())
	assert.Greater(t, wild.HalfSpreadBps, calm.HalfSpreadBps)
	assert.Less(t, wild.Bid, calm.Bid)
	assert.Greater(t, wild.Ask, calm.Ask)
	assert.InDelta(t, 100.05, calm.MidRef, 1e-9)
}

func TestComputeExactValues(t *testing.T) {
	e := newTestEngine()
	q := e.Compute(thinBook, 50, 0, 25000)

	// 4 taker + 2 slippage(25000 > 10*100.05) + 0.35*sqrt(50) + 1*(1)^(0.6)
	wantH := 4 + 2 + 0.35*math.Sqrt(50) + 1
	assert.InDelta(t, wantH, q.HalfSpreadBps, 1e-12)
	assert.InDelta(t, 100.05*(1-wantH/1e4), q.Bid, 1e-9)
	assert.InDelta(t, 100.05*(1+wantH/1e4), q.Ask, 1e-9)
}

func TestComputeIsIdempotent(t *testing.T) {
	e := newTestEngine()
	a := e.Compute(thinBook, 23.4, -0.02, 25000)
	b := e.Compute(thinBook, 23.4, -0.02, 25000)
	assert.Equal(t, a, b)
}

func TestComputeSymmetricAroundReservation(t *testing.T) {
	e := newTestEngine()
	skew := -0.05
	q := e.Compute(thinBook, 20, skew, 25000)
	r := q.MidRef + skew
	assert.InDelta(t, r-q.Bid, q.Ask-r, 1e-9)

	flat := e.Compute(thinBook, 20, 0, 25000)
	assert.Less(t, q.Bid, flat.Bid, "long inventory lowers both sides")
	assert.Less(t, q.Ask, flat.Ask)
}

func TestExpectedSlippageBoundary(t *testing.T) {
	depth := math.Min(thinBook.BidSz, thinBook.AskSz) * thinBook.Mid()
	assert.Equal(t, 1.0, ExpectedSlippageBps(thinBook, depth))
	assert.Equal(t, 2.0, ExpectedSlippageBps(thinBook, depth+0.01))
	assert.Equal(t, 1.0, ExpectedSlippageBps(thinBook, 500))
}

func TestSizePremiumGrowsConvexly(t *testing.T) {
	e := newTestEngine()
	assert.Equal(t, 0.0, e.SizePremiumBps(0))
	small := e.SizePremiumBps(12500)
	ref := e.SizePremiumBps(25000)
	big := e.SizePremiumBps(50000)
	assert.InDelta(t, 1.0, ref, 1e-12)
	assert.Less(t, small, ref)
	assert.Greater(t, big, ref)
}

func TestZeroSizeBookFallsBackToMid(t *testing.T) {
	e := newTestEngine()
	book := market.BookTop{BidPx: 100, AskPx: 100.2}
	q := e.Compute(book, 0, 0, 1000)
	assert.InDelta(t, 100.1, q.MidRef, 1e-12)
	assert.NoError(t, q.Validate())
}

func TestQuoteValidate(t *testing.T) {
	cases := []struct {
		name string
		q    Quote
	}{
		{"交叉报价", Quote{Bid: 101, Ask: 100, MidRef: 100.5}},
		{"非正价格", Quote{Bid: -1, Ask: 100, MidRef: 50}},
		{"NaN", Quote{Bid: math.NaN(), Ask: 100, MidRef: 100}},
		{"无穷大", Quote{Bid: 99, Ask: math.Inf(1), MidRef: 100}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.q.Validate()
			assert.True(t, errors.Is(err, ErrInvalidQuote))
		})
	}
}

func TestMovedBps(t *testing.T) {
	prev := Quote{Bid: 100, Ask: 101}
	assert.True(t, math.IsInf(prev.MovedBps(Quote{}), 1))
	assert.InDelta(t, 0.0, prev.MovedBps(prev), 1e-12)
	next := Quote{Bid: 100.02, Ask: 101}
	assert.InDelta(t, 2.0, next.MovedBps(prev), 1e-9)
}
