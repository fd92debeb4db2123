package market

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"profitcal/logger"
)

// BookTicker 最优买卖盘
type BookTicker struct {
	Symbol   string
	BidPrice float64
	BidQty   float64
	AskPrice float64
	AskQty   float64
}

// Trade 逐笔成交
type Trade struct {
	Symbol   string
	Price    float64
	Quantity float64
	IsBuyer  bool
	TradeTime int64
}

// DepthLevel 一档深度
type DepthLevel struct {
	Price    float64
	Quantity float64
}

// Depth 盘口快照（10档）
type Depth struct {
	Bids []DepthLevel
	Asks []DepthLevel
}

// PriceState 行情折叠状态。所有流的更新折叠进一个状态，
// 读取通过请求通道串行化，不加锁。
type PriceState struct {
	Book       BookTicker
	LastTrade  Trade
	Depth      Depth
	UpdatedAt  time.Time
	TradeCount int64
}

// rawMessage 原始流消息（combined stream 信封）
type rawMessage struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type stateRequest struct {
	reply chan PriceState
}

// StreamManager 行情流管理器。一条连接订阅 bookTicker、trade 和
// depth10，消息在单个折叠协程中处理。
type StreamManager struct {
	symbol string
	wsBase string

	conn      *websocket.Conn
	mu        sync.Mutex
	isRunning atomic.Bool

	updates  chan rawMessage
	stateReq chan stateRequest
	stopChan chan struct{}

	// 每次 bookTicker 更新时回调（触发器挂在这里）
	tickCallback func(BookTicker)
}

// NewStreamManager 创建行情流管理器
func NewStreamManager(wsBase, symbol string) *StreamManager {
	return &StreamManager{
		symbol:   strings.ToLower(symbol),
		wsBase:   strings.TrimRight(wsBase, "/"),
		updates:  make(chan rawMessage, 1000),
		stateReq: make(chan stateRequest),
		stopChan: make(chan struct{}),
	}
}

// OnBookTicker 注册盘口更新回调（必须在 Start 之前调用）
func (sm *StreamManager) OnBookTicker(cb func(BookTicker)) {
	sm.tickCallback = cb
}

// Start 连接并订阅行情流
func (sm *StreamManager) Start(ctx context.Context) error {
	if sm.isRunning.Load() {
		return fmt.Errorf("行情流已在运行")
	}

	streams := []string{
		sm.symbol + "@bookTicker",
		sm.symbol + "@trade",
		sm.symbol + "@depth10@1000ms",
	}
	// 组合流端点在 /stream 下，消息带 stream 字段信封
	base := strings.TrimSuffix(sm.wsBase, "/ws")
	url := fmt.Sprintf("%s/stream?streams=%s", base, strings.Join(streams, "/"))

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("连接行情流失败: %w", err)
	}

	sm.mu.Lock()
	sm.conn = conn
	sm.mu.Unlock()
	sm.isRunning.Store(true)

	go sm.readMessages()
	go sm.foldLoop()

	logger.Info("✅ 行情流已启动: %s", strings.ToUpper(sm.symbol))
	return nil
}

// readMessages 读消息并塞进折叠通道
func (sm *StreamManager) readMessages() {
	for {
		select {
		case <-sm.stopChan:
			return
		default:
		}

		_, data, err := sm.conn.ReadMessage()
		if err != nil {
			select {
			case <-sm.stopChan:
			default:
				logger.Warn("⚠️ 行情流读取失败: %v", err)
			}
			return
		}

		var msg rawMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Debug("行情消息解析失败: %v", err)
			continue
		}

		select {
		case sm.updates <- msg:
		default:
			// 折叠协程来不及消费时丢弃旧行情，只有最新状态有意义
		}
	}
}

// foldLoop 单协程折叠全部流更新，同时应答状态读取请求
func (sm *StreamManager) foldLoop() {
	state := PriceState{}

	for {
		select {
		case <-sm.stopChan:
			return
		case msg := <-sm.updates:
			sm.fold(&state, msg)
		case req := <-sm.stateReq:
			req.reply <- state
		}
	}
}

func (sm *StreamManager) fold(state *PriceState, msg rawMessage) {
	switch {
	case strings.HasSuffix(msg.Stream, "@bookTicker"):
		var raw struct {
			Symbol string `json:"s"`
			Bid    string `json:"b"`
			BidQty string `json:"B"`
			Ask    string `json:"a"`
			AskQty string `json:"A"`
		}
		if err := json.Unmarshal(msg.Data, &raw); err != nil {
			return
		}
		state.Book = BookTicker{
			Symbol:   raw.Symbol,
			BidPrice: parseFloat(raw.Bid),
			BidQty:   parseFloat(raw.BidQty),
			AskPrice: parseFloat(raw.Ask),
			AskQty:   parseFloat(raw.AskQty),
		}
		state.UpdatedAt = time.Now()
		if sm.tickCallback != nil {
			sm.tickCallback(state.Book)
		}

	case strings.HasSuffix(msg.Stream, "@trade"):
		var raw struct {
			Symbol    string `json:"s"`
			Price     string `json:"p"`
			Quantity  string `json:"q"`
			TradeTime int64  `json:"T"`
			IsMaker   bool   `json:"m"`
		}
		if err := json.Unmarshal(msg.Data, &raw); err != nil {
			return
		}
		state.LastTrade = Trade{
			Symbol:    raw.Symbol,
			Price:     parseFloat(raw.Price),
			Quantity:  parseFloat(raw.Quantity),
			IsBuyer:   !raw.IsMaker,
			TradeTime: raw.TradeTime,
		}
		state.TradeCount++
		state.UpdatedAt = time.Now()

	case strings.Contains(msg.Stream, "@depth"):
		var raw struct {
			Bids [][]string `json:"bids"`
			Asks [][]string `json:"asks"`
		}
		if err := json.Unmarshal(msg.Data, &raw); err != nil {
			return
		}
		state.Depth = Depth{
			Bids: parseLevels(raw.Bids),
			Asks: parseLevels(raw.Asks),
		}
		state.UpdatedAt = time.Now()
	}
}

// Snapshot 读取当前折叠状态
func (sm *StreamManager) Snapshot(ctx context.Context) (PriceState, error) {
	req := stateRequest{reply: make(chan PriceState, 1)}
	select {
	case sm.stateReq <- req:
	case <-sm.stopChan:
		return PriceState{}, fmt.Errorf("行情流已停止")
	case <-ctx.Done():
		return PriceState{}, ctx.Err()
	}
	select {
	case state := <-req.reply:
		return state, nil
	case <-sm.stopChan:
		return PriceState{}, fmt.Errorf("行情流已停止")
	case <-ctx.Done():
		return PriceState{}, ctx.Err()
	}
}

// Stop 关闭行情流
func (sm *StreamManager) Stop() {
	if !sm.isRunning.CompareAndSwap(true, false) {
		return
	}
	close(sm.stopChan)

	sm.mu.Lock()
	if sm.conn != nil {
		sm.conn.Close()
	}
	sm.mu.Unlock()
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func parseLevels(raw [][]string) []DepthLevel {
	levels := make([]DepthLevel, 0, len(raw))
	for _, l := range raw {
		if len(l) < 2 {
			continue
		}
		levels = append(levels, DepthLevel{
			Price:    parseFloat(l[0]),
			Quantity: parseFloat(l[1]),
		})
	}
	return levels
}
