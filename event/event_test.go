package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"profitcal/database"
)

// mockDatabase 模拟事件落库
type mockDatabase struct {
	mu     sync.Mutex
	events []*database.EventRecord
}

func (m *mockDatabase) SaveEvent(ctx context.Context, event *database.EventRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *mockDatabase) GetEvents(ctx context.Context, filter *database.EventFilter) ([]*database.EventRecord, error) {
	return nil, nil
}

func (m *mockDatabase) CountEvents(ctx context.Context, filter *database.EventFilter) (int64, error) {
	return 0, nil
}

func (m *mockDatabase) CleanupEvents(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func (m *mockDatabase) Close() error { return nil }

func (m *mockDatabase) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// mockNotifier 模拟通知服务
type mockNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (m *mockNotifier) Send(title, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, title)
}

func (m *mockNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

func TestPublishNonBlocking(t *testing.T) {
	bus := NewEventBus(2)
	defer bus.Close()

	// 超过缓冲区也不阻塞
	for i := 0; i < 10; i++ {
		bus.Publish(&Event{Type: EventTypeDataRefreshed})
	}

	// 缓冲区里最多只有2条
	received := 0
	for {
		select {
		case <-bus.Subscribe():
			received++
			continue
		default:
		}
		break
	}
	if received != 2 {
		t.Errorf("Expected 2 buffered events, got %d", received)
	}
}

func TestPublishFillsDefaults(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	bus.Publish(&Event{Type: EventTypeDocWriteFailed})
	event := <-bus.Subscribe()

	if event.Severity != SeverityCritical {
		t.Errorf("Expected critical severity, got %s", event.Severity)
	}
	if event.Timestamp.IsZero() {
		t.Error("Publish should stamp the event")
	}
}

func TestSeverityMapping(t *testing.T) {
	tests := []struct {
		eventType EventType
		expected  EventSeverity
	}{
		{EventTypeDocWriteFailed, SeverityCritical},
		{EventTypeOrderFailed, SeverityCritical},
		{EventTypeDocFetchFailed, SeverityWarning},
		{EventTypeAuthFailed, SeverityWarning},
		{EventTypeDataRefreshed, SeverityInfo},
		{EventTypeTaskGenerated, SeverityInfo},
	}
	for _, tc := range tests {
		if got := SeverityFor(tc.eventType); got != tc.expected {
			t.Errorf("SeverityFor(%s) = %s, expected %s", tc.eventType, got, tc.expected)
		}
	}
}

func TestProcessorPersistsAndNotifies(t *testing.T) {
	bus := NewEventBus(10)
	db := &mockDatabase{}
	notifier := &mockNotifier{}

	processor := NewProcessor(bus, db, notifier)
	processor.Start()

	bus.Publish(&Event{Type: EventTypeDataRefreshed, Title: "刷新", Message: "ok"})
	bus.Publish(&Event{Type: EventTypeDocWriteFailed, Title: "写入失败", Message: "HTTP 429"})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && db.count() < 2 {
		time.Sleep(10 * time.Millisecond)
	}
	processor.Stop()

	if db.count() != 2 {
		t.Errorf("Expected 2 persisted events, got %d", db.count())
	}
	// info 级别不外发，critical 外发
	if notifier.count() != 1 {
		t.Errorf("Expected 1 notification, got %d", notifier.count())
	}
}
