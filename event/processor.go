package event

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"profitcal/database"
	"profitcal/logger"
)

// Notifier 通知接口（避免循环依赖）
type Notifier interface {
	Send(title, message string)
}

// Processor 事件处理器：消费总线上的事件，落库并按级别外发通知
type Processor struct {
	bus      *EventBus
	db       database.Database
	notifier Notifier

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewProcessor 创建事件处理器。db 和 notifier 都可以为 nil（对应能力关闭）。
func NewProcessor(bus *EventBus, db database.Database, notifier Notifier) *Processor {
	return &Processor{
		bus:      bus,
		db:       db,
		notifier: notifier,
	}
}

// Start 启动消费协程
func (p *Processor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case event, ok := <-p.bus.Subscribe():
				if !ok {
					return
				}
				p.process(ctx, event)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop 停止处理器
func (p *Processor) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

func (p *Processor) process(ctx context.Context, event *Event) {
	switch event.Severity {
	case SeverityCritical:
		logger.Error("🔴 [%s] %s: %s", event.Type, event.Title, event.Message)
	case SeverityWarning:
		logger.Warn("🟡 [%s] %s: %s", event.Type, event.Title, event.Message)
	default:
		logger.Debug("[%s] %s: %s", event.Type, event.Title, event.Message)
	}

	if p.db != nil {
		p.persist(ctx, event)
	}

	// info 级别不打扰，warning 及以上外发通知
	if p.notifier != nil && event.Severity != SeverityInfo {
		p.notifier.Send(event.Title, event.Message)
	}
}

func (p *Processor) persist(ctx context.Context, event *Event) {
	var data string
	if len(event.Data) > 0 {
		if b, err := json.Marshal(event.Data); err == nil {
			data = string(b)
		}
	}

	saveCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	record := &database.EventRecord{
		Type:      string(event.Type),
		Severity:  string(event.Severity),
		Source:    event.Source,
		Title:     event.Title,
		Message:   event.Message,
		Data:      data,
		CreatedAt: event.Timestamp,
	}
	if err := p.db.SaveEvent(saveCtx, record); err != nil {
		logger.Warn("⚠️ 事件落库失败: %v", err)
	}
}
