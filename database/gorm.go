package database

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormDatabase GORM 数据库实现
type GormDatabase struct {
	db *gorm.DB
}

// NewGormDatabase 创建 GORM 数据库实例
func NewGormDatabase(config *Config) (*GormDatabase, error) {
	var dialector gorm.Dialector

	switch config.Type {
	case "sqlite":
		dialector = sqlite.Open(config.DSN)
	case "postgres", "postgresql":
		dialector = postgres.Open(config.DSN)
	case "mysql":
		dialector = mysql.Open(config.DSN)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", config.Type)
	}

	logLevel := logger.Silent
	switch config.LogLevel {
	case "error":
		logLevel = logger.Error
	case "warn":
		logLevel = logger.Warn
	case "info":
		logLevel = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if config.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	if err := db.AutoMigrate(&EventRecord{}); err != nil {
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}

	return &GormDatabase{db: db}, nil
}

// SaveEvent 保存事件记录
func (g *GormDatabase) SaveEvent(ctx context.Context, event *EventRecord) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	return g.db.WithContext(ctx).Create(event).Error
}

func (g *GormDatabase) eventQuery(ctx context.Context, filter *EventFilter) *gorm.DB {
	query := g.db.WithContext(ctx).Model(&EventRecord{})
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity)
	}
	if filter.StartTime != nil {
		query = query.Where("created_at >= ?", filter.StartTime)
	}
	if filter.EndTime != nil {
		query = query.Where("created_at <= ?", filter.EndTime)
	}
	return query
}

// GetEvents 查询事件记录（按时间倒序）
func (g *GormDatabase) GetEvents(ctx context.Context, filter *EventFilter) ([]*EventRecord, error) {
	query := g.eventQuery(ctx, filter).Order("created_at DESC")

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query = query.Limit(limit).Offset(filter.Offset)

	var events []*EventRecord
	if err := query.Find(&events).Error; err != nil {
		return nil, fmt.Errorf("查询事件失败: %w", err)
	}
	return events, nil
}

// CountEvents 统计事件数量
func (g *GormDatabase) CountEvents(ctx context.Context, filter *EventFilter) (int64, error) {
	var count int64
	if err := g.eventQuery(ctx, filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("统计事件失败: %w", err)
	}
	return count, nil
}

// CleanupEvents 删除指定时间之前的事件
func (g *GormDatabase) CleanupEvents(ctx context.Context, before time.Time) (int64, error) {
	result := g.db.WithContext(ctx).Where("created_at < ?", before).Delete(&EventRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("清理事件失败: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Close 关闭数据库
func (g *GormDatabase) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
