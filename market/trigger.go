package market

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync/atomic"
	"time"

	binance "github.com/adshao/go-binance/v2"

	"profitcal/config"
	"profitcal/event"
	"profitcal/logger"
	"profitcal/metrics"
	"profitcal/storage"
)

// ShouldFire 触发判定：卖一有效且低于阈值，且还没触发过
func ShouldFire(askPrice, threshold float64, fired bool) bool {
	if fired {
		return false
	}
	return askPrice > 0 && askPrice < threshold
}

// OrderQuantity 按金额和卖一价计算下单数量，向下取整到5位小数
func OrderQuantity(notional, askPrice float64) float64 {
	if askPrice <= 0 {
		return 0
	}
	qty := notional / askPrice
	return math.Floor(qty*1e5) / 1e5
}

// FormatQuantity 数量转下单参数字符串
func FormatQuantity(qty float64) string {
	return strconv.FormatFloat(qty, 'f', -1, 64)
}

// Trigger 一次性触发下单器。盯住卖一价，低于阈值时挂一笔
// 限价买单（GTC），下单一次后整个程序的使命就结束了。
type Trigger struct {
	cfg    *config.TriggerConfig
	client *binance.Client
	store  *storage.SQLiteStorage
	bus    *event.EventBus

	fired atomic.Bool
	done  chan *storage.TriggerOrder
}

// NewTrigger 创建触发下单器
func NewTrigger(cfg *config.TriggerConfig, store *storage.SQLiteStorage, bus *event.EventBus) *Trigger {
	// 下单走测试网时切换 REST 端点
	binance.UseTestnet = cfg.Testnet
	client := binance.NewClient(cfg.APIKey, cfg.SecretKey)

	return &Trigger{
		cfg:    cfg,
		client: client,
		store:  store,
		bus:    bus,
		done:   make(chan *storage.TriggerOrder, 1),
	}
}

// Done 触发完成通道：下单结果就绪后收到一次
func (t *Trigger) Done() <-chan *storage.TriggerOrder {
	return t.done
}

// Client 暴露 REST 客户端，用户数据流申请 listenKey 要用
func (t *Trigger) Client() *binance.Client {
	return t.client
}

// HandleTick 处理一次盘口更新（挂到 StreamManager 的回调上）
func (t *Trigger) HandleTick(book BookTicker) {
	if !ShouldFire(book.AskPrice, t.cfg.PriceThreshold, t.fired.Load()) {
		return
	}
	// CAS 保证并发 tick 下只触发一次
	if !t.fired.CompareAndSwap(false, true) {
		return
	}

	logger.Info("🎯 卖一 %.8f 低于阈值 %.8f，触发下单", book.AskPrice, t.cfg.PriceThreshold)
	go t.placeOrder(book)
}

func (t *Trigger) placeOrder(book BookTicker) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	qty := OrderQuantity(t.cfg.Notional, book.AskPrice)
	record := &storage.TriggerOrder{
		Symbol:       t.cfg.Symbol,
		TriggerPrice: t.cfg.PriceThreshold,
		AskPrice:     book.AskPrice,
		Quantity:     qty,
	}

	if qty <= 0 {
		record.Status = "REJECTED"
		t.finish(record, fmt.Errorf("计算数量无效: %f", qty))
		return
	}

	order, err := t.client.NewCreateOrderService().
		Symbol(t.cfg.Symbol).
		Side(binance.SideTypeBuy).
		Type(binance.OrderTypeLimit).
		TimeInForce(binance.TimeInForceTypeGTC).
		Quantity(FormatQuantity(qty)).
		Price(strconv.FormatFloat(book.AskPrice, 'f', -1, 64)).
		Do(ctx)
	if err != nil {
		record.Status = "FAILED"
		t.finish(record, err)
		return
	}

	record.OrderID = order.OrderID
	record.ClientOrderID = order.ClientOrderID
	record.Status = string(order.Status)
	t.finish(record, nil)
}

func (t *Trigger) finish(record *storage.TriggerOrder, err error) {
	if t.store != nil {
		if saveErr := t.store.SaveTriggerOrder(record); saveErr != nil {
			logger.Warn("⚠️ 保存触发下单记录失败: %v", saveErr)
		}
	}

	if err != nil {
		metrics.RecordTriggerOrder(t.cfg.Symbol, "failed")
		logger.Error("❌ 触发下单失败: %v", err)
		if t.bus != nil {
			t.bus.Publish(&event.Event{
				Type:    event.EventTypeOrderFailed,
				Source:  "trigger",
				Title:   "触发下单失败",
				Message: err.Error(),
				Data:    map[string]interface{}{"symbol": t.cfg.Symbol, "askPrice": record.AskPrice},
			})
		}
	} else {
		metrics.RecordTriggerOrder(t.cfg.Symbol, "placed")
		logger.Info("✅ 触发下单成功: %s 订单号 %d 数量 %s 价格 %.8f",
			record.Symbol, record.OrderID, FormatQuantity(record.Quantity), record.AskPrice)
		if t.bus != nil {
			t.bus.Publish(&event.Event{
				Type:    event.EventTypeOrderPlaced,
				Source:  "trigger",
				Title:   "触发下单成功",
				Message: fmt.Sprintf("%s 买入 %s @ %.8f", record.Symbol, FormatQuantity(record.Quantity), record.AskPrice),
				Data:    map[string]interface{}{"orderId": record.OrderID},
			})
		}
	}

	select {
	case t.done <- record:
	default:
	}
}
