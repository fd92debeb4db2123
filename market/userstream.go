package market

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/gorilla/websocket"

	"profitcal/logger"
)

// OrderUpdate 用户数据流里的订单状态变化
type OrderUpdate struct {
	Symbol        string
	OrderID       int64
	ClientOrderID string
	Side          string
	Status        string
	Price         float64
	Quantity      float64
	FilledQty     float64
}

// UserStream 用户数据流。通过 listenKey 订阅订单回报，
// 触发下单后用它确认成交状态。
type UserStream struct {
	client *binance.Client
	wsBase string

	conn      *websocket.Conn
	listenKey string
	isRunning atomic.Bool
	stopChan  chan struct{}

	callback func(OrderUpdate)
}

// NewUserStream 创建用户数据流
func NewUserStream(client *binance.Client, wsBase string) *UserStream {
	return &UserStream{
		client:   client,
		wsBase:   strings.TrimRight(wsBase, "/"),
		stopChan: make(chan struct{}),
	}
}

// Start 申请 listenKey 并连接用户数据流
func (us *UserStream) Start(ctx context.Context, callback func(OrderUpdate)) error {
	if us.isRunning.Load() {
		return fmt.Errorf("用户数据流已在运行")
	}
	us.callback = callback

	listenKey, err := us.client.NewStartUserStreamService().Do(ctx)
	if err != nil {
		return fmt.Errorf("申请 listenKey 失败: %w", err)
	}
	us.listenKey = listenKey

	url := us.wsBase + "/" + listenKey
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("连接用户数据流失败: %w", err)
	}
	us.conn = conn
	us.isRunning.Store(true)

	go us.readMessages()
	go us.keepAlive()

	logger.Info("✅ 用户数据流已启动")
	return nil
}

func (us *UserStream) readMessages() {
	for {
		select {
		case <-us.stopChan:
			return
		default:
		}

		_, data, err := us.conn.ReadMessage()
		if err != nil {
			select {
			case <-us.stopChan:
			default:
				logger.Warn("⚠️ 用户数据流读取失败: %v", err)
			}
			return
		}

		var head struct {
			EventType string `json:"e"`
		}
		if err := json.Unmarshal(data, &head); err != nil {
			continue
		}
		if head.EventType != "executionReport" {
			continue
		}

		var raw struct {
			Symbol        string `json:"s"`
			Side          string `json:"S"`
			OrderID       int64  `json:"i"`
			ClientOrderID string `json:"c"`
			Status        string `json:"X"`
			Price         string `json:"p"`
			Quantity      string `json:"q"`
			FilledQty     string `json:"z"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			continue
		}

		update := OrderUpdate{
			Symbol:        raw.Symbol,
			OrderID:       raw.OrderID,
			ClientOrderID: raw.ClientOrderID,
			Side:          raw.Side,
			Status:        raw.Status,
			Price:         parseFloat(raw.Price),
			Quantity:      parseFloat(raw.Quantity),
			FilledQty:     parseFloat(raw.FilledQty),
		}
		logger.Info("📋 订单回报: %s %s %s 状态 %s", update.Symbol, update.Side,
			update.ClientOrderID, update.Status)
		if us.callback != nil {
			us.callback(update)
		}
	}
}

// keepAlive 每30分钟续期 listenKey
func (us *UserStream) keepAlive() {
	ticker := time.NewTicker(30 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-us.stopChan:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := us.client.NewKeepaliveUserStreamService().ListenKey(us.listenKey).Do(ctx)
			cancel()
			if err != nil {
				logger.Warn("⚠️ listenKey 续期失败: %v", err)
			}
		}
	}
}

// Stop 关闭用户数据流
func (us *UserStream) Stop() {
	if !us.isRunning.CompareAndSwap(true, false) {
		return
	}
	close(us.stopChan)
	if us.conn != nil {
		us.conn.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	us.client.NewCloseUserStreamService().ListenKey(us.listenKey).Do(ctx)
}
