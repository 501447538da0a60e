package model

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestPoolJSONRoundTrip(t *testing.T) {
	original := Pool{
		Address:     common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Market:      "SOL/USDC",
		CurveKind:   Stable,
		BaseAsset:   "SOL",
		QuoteAsset:  "USDC",
		BaseAmount:  1_000_000_000,
		QuoteAmount: 2_000_000_000,
		LPSupply:    1_414_213_561,
		PlacedAsks: []PlacedOrder{
			{OrderID: 3, ClientOrderID: 1, Price: 1003, BaseLots: 800, MaxQuote: 802400},
		},
		PlacedBids:         []PlacedOrder{},
		MarketMakingActive: true,
		Sequence:           4,
	}

	b, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded Pool
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if !reflect.DeepEqual(original, decoded) {
		t.Fatalf("round-trip mismatch: %+v != %+v", original, decoded)
	}
}

func TestCurveKindText(t *testing.T) {
	data, err := json.Marshal(map[string]CurveKind{"kind": ConstantProduct})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) != `{"kind":"xyk"}` {
		t.Fatalf("unexpected encoding: %s", data)
	}

	kind, err := ParseCurveKind("StableSwap")
	if err != nil || kind != Stable {
		t.Fatalf("parse mismatch: %v %v", kind, err)
	}
	if _, err := ParseCurveKind("weighted"); err == nil {
		t.Fatalf("expected error for unknown curve")
	}
}

func TestPoolState(t *testing.T) {
	cases := []struct {
		name string
		pool Pool
		want PoolState
	}{
		{name: "empty", pool: Pool{}, want: Uninitialized},
		{name: "live", pool: Pool{LPSupply: 10, MarketMakingActive: true}, want: Live},
		{name: "refund", pool: Pool{LPSupply: 10, MarketMakingActive: true, RefundQuoteAmount: 1}, want: PendingRefund},
		{name: "paused", pool: Pool{LPSupply: 10, RefundQuoteAmount: 1}, want: Paused},
	}
	for _, tc := range cases {
		if got := tc.pool.State(); got != tc.want {
			t.Fatalf("%s: state %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestPoolCloneIsDeep(t *testing.T) {
	p := Pool{PlacedAsks: []PlacedOrder{{Price: 10}}}
	c := p.Clone()
	c.PlacedAsks[0].Price = 11
	if p.PlacedAsks[0].Price != 10 {
		t.Fatalf("clone shares placed orders")
	}
}

func TestBookSnapshotBest(t *testing.T) {
	snap := BookSnapshot{
		Bids: []BookLevel{{Price: 99, BaseLots: 1}, {Price: 98, BaseLots: 4}},
		Asks: []BookLevel{{Price: 101, BaseLots: 2}},
	}
	if snap.BestBid() != 99 || snap.BestAsk() != 101 {
		t.Fatalf("best mismatch: %d %d", snap.BestBid(), snap.BestAsk())
	}
	if (BookSnapshot{}).BestAsk() != 0 {
		t.Fatalf("empty book should report 0")
	}
}
