package curve

import (
	"testing"

	"github.com/stretchr/testify/require"

	"openamm/internal/model"
)

func TestConstantProductRoundsUp(t *testing.T) {
	c, err := New(model.ConstantProduct, 9, 9)
	require.NoError(t, err)
	r := Reserves{Base: 1_000_000_000, Quote: 1_000_000_000}

	// 1e18 / 999_200_000 = 1_000_800_640.51...
	quoteIn, err := c.QuoteInForBaseOut(r, 800_000)
	require.NoError(t, err)
	require.Equal(t, uint64(800_641), quoteIn)

	baseIn, err := c.BaseInForQuoteOut(r, 1_000_000)
	require.NoError(t, err)
	require.Equal(t, uint64(1_001_002), baseIn)
}

func TestConstantProductKeepsInvariant(t *testing.T) {
	c, err := New(model.ConstantProduct, 0, 0)
	require.NoError(t, err)
	r := Reserves{Base: 7_919, Quote: 104_729}
	k := r.Base * r.Quote

	for out := uint64(1); out < r.Base; out += 97 {
		in, err := c.QuoteInForBaseOut(r, out)
		require.NoError(t, err)
		require.GreaterOrEqual(t, (r.Base-out)*(r.Quote+in), k, "out=%d", out)
	}
}

func TestCurveErrors(t *testing.T) {
	for _, kind := range []model.CurveKind{model.ConstantProduct, model.Stable} {
		c, err := New(kind, 6, 6)
		require.NoError(t, err)

		_, err = c.QuoteInForBaseOut(Reserves{Base: 0, Quote: 10}, 1)
		require.ErrorIs(t, err, ErrEmptyReserves)
		_, err = c.BaseInForQuoteOut(Reserves{Base: 10, Quote: 0}, 1)
		require.ErrorIs(t, err, ErrEmptyReserves)
		_, err = c.QuoteInForBaseOut(Reserves{Base: 10, Quote: 10}, 10)
		require.ErrorIs(t, err, ErrInsufficientReserve)
	}

	_, err := New(model.CurveKind(9), 6, 6)
	require.Error(t, err)
	_, err = New(model.Stable, 0, 18)
	require.Error(t, err)
}

func TestStableIsTighterNearPeg(t *testing.T) {
	stable, err := New(model.Stable, 6, 6)
	require.NoError(t, err)
	xyk, err := New(model.ConstantProduct, 6, 6)
	require.NoError(t, err)
	r := Reserves{Base: 1_000_000_000, Quote: 1_000_000_000}

	stableIn, err := stable.QuoteInForBaseOut(r, 1_000_000)
	require.NoError(t, err)
	xykIn, err := xyk.QuoteInForBaseOut(r, 1_000_000)
	require.NoError(t, err)

	require.Equal(t, uint64(1_000_091), stableIn)
	require.Equal(t, uint64(1_001_002), xykIn)
	require.Less(t, stableIn, xykIn)

	symmetric, err := stable.BaseInForQuoteOut(r, 1_000_000)
	require.NoError(t, err)
	require.Equal(t, stableIn, symmetric)
}

func TestStableImbalancedPool(t *testing.T) {
	stable, err := New(model.Stable, 6, 6)
	require.NoError(t, err)

	// Base is scarce, so buying it costs well above par but far below xyk.
	in, err := stable.QuoteInForBaseOut(Reserves{Base: 1_000_000_000, Quote: 3_000_000_000}, 1_000_000)
	require.NoError(t, err)
	require.Equal(t, uint64(1_156_982), in)
}

func TestStableNormalizesDecimals(t *testing.T) {
	// 1000 units each side: base has 6 decimals, quote 9.
	stable, err := New(model.Stable, 6, 9)
	require.NoError(t, err)
	r := Reserves{Base: 1_000_000_000, Quote: 1_000_000_000_000}

	quoteIn, err := stable.QuoteInForBaseOut(r, 1_000_000)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000_090_918), quoteIn)

	baseIn, err := stable.BaseInForQuoteOut(r, 1_000_000_000)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000_091), baseIn)
}

func TestSizeAtPrice(t *testing.T) {
	c, err := New(model.ConstantProduct, 9, 9)
	require.NoError(t, err)
	r := Reserves{Base: 1_000_000_000, Quote: 1_000_000_000}

	askSize, err := SizeAtPrice(c, r, model.Ask, 101, 100)
	require.NoError(t, err)
	require.Equal(t, uint64(9_900_945), askSize)

	bidSize, err := SizeAtPrice(c, r, model.Bid, 99, 100)
	require.NoError(t, err)
	require.Equal(t, uint64(9_999_945), bidSize)

	_, err = SizeAtPrice(c, Reserves{}, model.Ask, 1, 1)
	require.ErrorIs(t, err, ErrEmptyReserves)
}

func TestFeeBps(t *testing.T) {
	require.Equal(t, uint64(20), FeeBps(model.ConstantProduct))
	require.Equal(t, uint64(4), FeeBps(model.Stable))
}
