package event

import (
	"time"

	"profitcal/logger"
)

// EventType 事件类型
type EventType string

const (
	EventTypeSystemStart     EventType = "system_start"
	EventTypeSystemStop      EventType = "system_stop"
	EventTypeDataRefreshed   EventType = "data_refreshed"
	EventTypeDataSaved       EventType = "data_saved"
	EventTypeDocWriteFailed  EventType = "doc_write_failed"
	EventTypeDocFetchFailed  EventType = "doc_fetch_failed"
	EventTypeRecordChanged   EventType = "record_changed"
	EventTypeUserChanged     EventType = "user_changed"
	EventTypeTaskGenerated   EventType = "task_generated"
	EventTypeImportCompleted EventType = "import_completed"
	EventTypeTriggerArmed    EventType = "trigger_armed"
	EventTypeOrderPlaced     EventType = "order_placed"
	EventTypeOrderFailed     EventType = "order_failed"
	EventTypeAuthFailed      EventType = "auth_failed"
	EventTypeError           EventType = "error"
)

// EventSeverity 事件严重级别
type EventSeverity string

const (
	SeverityInfo     EventSeverity = "info"
	SeverityWarning  EventSeverity = "warning"
	SeverityCritical EventSeverity = "critical"
)

// SeverityFor 事件类型对应的默认严重级别
func SeverityFor(eventType EventType) EventSeverity {
	switch eventType {
	case EventTypeDocWriteFailed, EventTypeOrderFailed, EventTypeError:
		return SeverityCritical
	case EventTypeDocFetchFailed, EventTypeAuthFailed:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// Event 事件结构
type Event struct {
	Type      EventType
	Severity  EventSeverity
	Source    string
	Title     string
	Message   string
	Timestamp time.Time
	Data      map[string]interface{}
}

// EventBus 事件总线
type EventBus struct {
	eventCh    chan *Event
	bufferSize int
}

// NewEventBus 创建事件总线
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &EventBus{
		eventCh:    make(chan *Event, bufferSize),
		bufferSize: bufferSize,
	}
}

// Publish 发布事件（非阻塞）
func (eb *EventBus) Publish(event *Event) {
	if event == nil {
		return
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Severity == "" {
		event.Severity = SeverityFor(event.Type)
	}

	select {
	case eb.eventCh <- event:
	default:
		// Channel 满了，记录警告但不阻塞
		logger.Warn("⚠️ 事件队列已满，丢弃事件: %s", event.Type)
	}
}

// Subscribe 订阅事件（返回 channel）
func (eb *EventBus) Subscribe() <-chan *Event {
	return eb.eventCh
}

// Close 关闭事件总线
func (eb *EventBus) Close() {
	close(eb.eventCh)
}
