package market

import (
	"testing"
)

func TestShouldFire(t *testing.T) {
	tests := []struct {
		name      string
		ask       float64
		threshold float64
		fired     bool
		expected  bool
	}{
		{"低于阈值", 0.49, 0.5, false, true},
		{"等于阈值", 0.5, 0.5, false, false},
		{"高于阈值", 0.51, 0.5, false, false},
		{"卖一为0", 0, 0.5, false, false},
		{"已触发过", 0.49, 0.5, true, false},
	}
	for _, tc := range tests {
		if got := ShouldFire(tc.ask, tc.threshold, tc.fired); got != tc.expected {
			t.Errorf("%s: ShouldFire(%f, %f, %v) = %v, expected %v",
				tc.name, tc.ask, tc.threshold, tc.fired, got, tc.expected)
		}
	}
}

func TestOrderQuantity(t *testing.T) {
	// 100 USDT / 0.49 = 204.0816... 向下取整到5位小数
	qty := OrderQuantity(100, 0.49)
	if qty != 204.08163 {
		t.Errorf("Expected 204.08163, got %v", qty)
	}

	if OrderQuantity(100, 0) != 0 {
		t.Error("Zero ask price must yield zero quantity")
	}

	// 整除时不留尾数
	if qty := OrderQuantity(10, 0.5); qty != 20 {
		t.Errorf("Expected 20, got %v", qty)
	}
}

func TestFormatQuantity(t *testing.T) {
	tests := []struct {
		qty      float64
		expected string
	}{
		{20, "20"},
		{204.08163, "204.08163"},
		{0.001, "0.001"},
	}
	for _, tc := range tests {
		if got := FormatQuantity(tc.qty); got != tc.expected {
			t.Errorf("FormatQuantity(%v) = %s, expected %s", tc.qty, got, tc.expected)
		}
	}
}

func TestFoldBookTicker(t *testing.T) {
	sm := NewStreamManager("wss://example/ws", "REDUSDT")

	var ticks []BookTicker
	sm.OnBookTicker(func(b BookTicker) { ticks = append(ticks, b) })

	state := PriceState{}
	sm.fold(&state, rawMessage{
		Stream: "redusdt@bookTicker",
		Data:   []byte(`{"s":"REDUSDT","b":"0.48","B":"1000","a":"0.49","A":"500"}`),
	})

	if state.Book.AskPrice != 0.49 || state.Book.BidPrice != 0.48 {
		t.Errorf("Unexpected book: %+v", state.Book)
	}
	if len(ticks) != 1 || ticks[0].AskQty != 500 {
		t.Errorf("Tick callback not invoked correctly: %+v", ticks)
	}
	if state.UpdatedAt.IsZero() {
		t.Error("Fold must stamp the state")
	}
}

func TestFoldTradeAndDepth(t *testing.T) {
	sm := NewStreamManager("wss://example/ws", "REDUSDT")
	state := PriceState{}

	sm.fold(&state, rawMessage{
		Stream: "redusdt@trade",
		Data:   []byte(`{"s":"REDUSDT","p":"0.488","q":"120","T":1700000000000,"m":true}`),
	})
	if state.LastTrade.Price != 0.488 || state.LastTrade.IsBuyer {
		t.Errorf("Unexpected trade: %+v", state.LastTrade)
	}
	if state.TradeCount != 1 {
		t.Errorf("Expected trade count 1, got %d", state.TradeCount)
	}

	sm.fold(&state, rawMessage{
		Stream: "redusdt@depth10@1000ms",
		Data:   []byte(`{"bids":[["0.48","1000"],["0.47","2000"]],"asks":[["0.49","500"]]}`),
	})
	if len(state.Depth.Bids) != 2 || len(state.Depth.Asks) != 1 {
		t.Errorf("Unexpected depth: %+v", state.Depth)
	}
	if state.Depth.Bids[1].Quantity != 2000 {
		t.Errorf("Unexpected bid level: %+v", state.Depth.Bids[1])
	}
}
