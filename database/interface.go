package database

import (
	"context"
	"time"
)

// EventRecord 应用事件的持久化记录（审计与事后排查用）
type EventRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Type      string    `gorm:"index" json:"type"`
	Severity  string    `gorm:"index" json:"severity"`
	Source    string    `json:"source"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Data      string    `gorm:"type:text" json:"data,omitempty"` // JSON 附加数据
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

// EventFilter 事件查询条件
type EventFilter struct {
	Type      string
	Severity  string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
	Offset    int
}

// Database 事件持久化接口
type Database interface {
	SaveEvent(ctx context.Context, event *EventRecord) error
	GetEvents(ctx context.Context, filter *EventFilter) ([]*EventRecord, error)
	CountEvents(ctx context.Context, filter *EventFilter) (int64, error)
	CleanupEvents(ctx context.Context, before time.Time) (int64, error)
	Close() error
}
