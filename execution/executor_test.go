package execution

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cross-venue-mm/market"
)

func TestSimulatedIOCSlippageBoundary(t *testing.T) {
	sim := NewSimulated(4, 0)
	ctx := context.Background()

	buy, err := sim.IOCCross(ctx, market.Buy, 5, 100, 3)
	require.NoError(t, err)
	assert.InDelta(t, 100.03, buy.AvgPx, 1e-12)
	assert.Equal(t, 5.0, buy.Filled)
	assert.Equal(t, 4.0, buy.FeeBps)
	assert.Equal(t, Taker, buy.Liquidity)

	sell, err := sim.IOCCross(ctx, market.Sell, 5, 100, 3)
	require.NoError(t, err)
	assert.InDelta(t, 99.97, sell.AvgPx, 1e-12)

	flat, err := sim.IOCCross(ctx, market.Sell, 5, 100, 0)
	require.NoError(t, err)
	assert.Equal(t, 100.0, flat.AvgPx)
}

func TestSimulatedPostMaker(t *testing.T) {
	sim := NewSimulated(4, 0)
	r, err := sim.PostMaker(context.Background(), market.Buy, 99.99, 5)
	require.NoError(t, err)
	assert.Equal(t, ExecReport{AvgPx: 99.99, Filled: 5, FeeBps: 0, Liquidity: Maker}, r)
}

func TestSimulatedZeroQty(t *testing.T) {
	sim := NewSimulated(4, 0)
	r, err := sim.IOCCross(context.Background(), market.Buy, 0, 100, 3)
	require.NoError(t, err)
	assert.Equal(t, 0.0, r.Filled)
}

func TestSimulatedPreconditions(t *testing.T) {
	sim := NewSimulated(4, 0)
	ctx := context.Background()
	cases := []struct {
		name string
		run  func() error
		want error
	}{
		{"负数量", func() error { _, err := sim.IOCCross(ctx, market.Buy, -1, 100, 3); return err }, ErrInvalidQty},
		{"NaN 数量", func() error { _, err := sim.PostMaker(ctx, market.Sell, 100, math.NaN()); return err }, ErrInvalidQty},
		{"非法方向", func() error { _, err := sim.IOCCross(ctx, market.Side(0), 1, 100, 3); return err }, market.ErrInvalidSide},
		{"零价格", func() error { _, err := sim.PostMaker(ctx, market.Buy, 0, 1); return err }, ErrInvalidPrice},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, errors.Is(tc.run(), tc.want))
		})
	}
}

func TestParseLiquidity(t *testing.T) {
	l, err := ParseLiquidity(" Maker ")
	require.NoError(t, err)
	assert.Equal(t, Maker, l)
	_, err = ParseLiquidity("both")
	assert.ErrorIs(t, err, ErrInvalidLiquidity)

	b, err := Taker.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "taker", string(b))
	var back Liquidity
	require.NoError(t, back.UnmarshalText(b))
	assert.Equal(t, Taker, back)
}
