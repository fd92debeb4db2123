package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"profitcal/utils"
)

// SQLiteStorage 本地 SQLite 存储。保存远端文档的快照副本
// （远端不可用时的降级数据源）和触发下单的执行记录。
type SQLiteStorage struct {
	db     *sql.DB
	closed bool
}

// NewSQLiteStorage 创建 SQLite 存储
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	// 使用 WAL 模式提高并发性能
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}

	// SQLite 并发限制
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("创建表失败: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func createTables(db *sql.DB) error {
	// 文档快照表
	snapshotsSQL := `
	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		bin_id TEXT NOT NULL,
		document TEXT NOT NULL,
		fetched_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_snapshots_bin_id ON snapshots(bin_id, fetched_at);`

	// 触发下单执行记录表
	triggerOrdersSQL := `
	CREATE TABLE IF NOT EXISTS trigger_orders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		order_id BIGINT,
		client_order_id TEXT,
		trigger_price DECIMAL(20,8),
		ask_price DECIMAL(20,8),
		quantity DECIMAL(20,8),
		status TEXT,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_trigger_orders_symbol ON trigger_orders(symbol, created_at);`

	for _, stmt := range []string{snapshotsSQL, triggerOrdersSQL} {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot 远端文档的本地快照
type Snapshot struct {
	ID        int64           `json:"id"`
	BinID     string          `json:"binId"`
	Document  json.RawMessage `json:"document"`
	FetchedAt time.Time       `json:"fetchedAt"`
}

// SaveSnapshot 保存一份文档快照
func (s *SQLiteStorage) SaveSnapshot(binID string, document []byte) error {
	if s.closed {
		return fmt.Errorf("存储已关闭")
	}
	if !json.Valid(document) {
		return fmt.Errorf("快照内容不是合法 JSON")
	}

	_, err := s.db.Exec(`
		INSERT INTO snapshots (bin_id, document, fetched_at)
		VALUES (?, ?, ?)
	`, binID, string(document), utils.NowUTC())
	if err != nil {
		return fmt.Errorf("保存快照失败: %w", err)
	}
	return nil
}

// LatestSnapshot 取某个文档最近的一份快照，没有时返回 nil
func (s *SQLiteStorage) LatestSnapshot(binID string) (*Snapshot, error) {
	row := s.db.QueryRow(`
		SELECT id, bin_id, document, fetched_at
		FROM snapshots
		WHERE bin_id = ?
		ORDER BY fetched_at DESC, id DESC
		LIMIT 1
	`, binID)

	var snap Snapshot
	var document string
	err := row.Scan(&snap.ID, &snap.BinID, &document, &snap.FetchedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询快照失败: %w", err)
	}
	snap.Document = json.RawMessage(document)
	return &snap, nil
}

// PruneSnapshots 每个文档只保留最近 keep 份快照，返回删除的行数
func (s *SQLiteStorage) PruneSnapshots(binID string, keep int) (int64, error) {
	if keep < 1 {
		keep = 1
	}
	result, err := s.db.Exec(`
		DELETE FROM snapshots
		WHERE bin_id = ? AND id NOT IN (
			SELECT id FROM snapshots
			WHERE bin_id = ?
			ORDER BY fetched_at DESC, id DESC
			LIMIT ?
		)
	`, binID, binID, keep)
	if err != nil {
		return 0, fmt.Errorf("清理快照失败: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

// TriggerOrder 触发下单的执行记录
type TriggerOrder struct {
	ID            int64     `json:"id"`
	Symbol        string    `json:"symbol"`
	OrderID       int64     `json:"orderId"`
	ClientOrderID string    `json:"clientOrderId"`
	TriggerPrice  float64   `json:"triggerPrice"`
	AskPrice      float64   `json:"askPrice"`
	Quantity      float64   `json:"quantity"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
}

// SaveTriggerOrder 保存触发下单记录
func (s *SQLiteStorage) SaveTriggerOrder(order *TriggerOrder) error {
	if s.closed {
		return fmt.Errorf("存储已关闭")
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = utils.NowUTC()
	}

	result, err := s.db.Exec(`
		INSERT INTO trigger_orders (symbol, order_id, client_order_id, trigger_price, ask_price, quantity, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, order.Symbol, order.OrderID, order.ClientOrderID, order.TriggerPrice,
		order.AskPrice, order.Quantity, order.Status, order.CreatedAt)
	if err != nil {
		return fmt.Errorf("保存触发下单记录失败: %w", err)
	}
	order.ID, _ = result.LastInsertId()
	return nil
}

// QueryTriggerOrders 查询触发下单记录（按时间倒序）
func (s *SQLiteStorage) QueryTriggerOrders(symbol string, limit int) ([]*TriggerOrder, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, symbol, order_id, client_order_id, trigger_price, ask_price, quantity, status, created_at
		FROM trigger_orders
	`
	args := []interface{}{}
	if symbol != "" {
		query += " WHERE symbol = ?"
		args = append(args, symbol)
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("查询触发下单记录失败: %w", err)
	}
	defer rows.Close()

	var orders []*TriggerOrder
	for rows.Next() {
		var o TriggerOrder
		if err := rows.Scan(&o.ID, &o.Symbol, &o.OrderID, &o.ClientOrderID,
			&o.TriggerPrice, &o.AskPrice, &o.Quantity, &o.Status, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("扫描触发下单记录失败: %w", err)
		}
		orders = append(orders, &o)
	}
	return orders, rows.Err()
}

// Close 关闭存储
func (s *SQLiteStorage) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
