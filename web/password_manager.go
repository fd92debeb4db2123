package web

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"
)

// PasswordManager 访问密码管理器。整个应用共享一个访问密码，
// 哈希存在本地 auth.db 里，不进远端文档。
type PasswordManager struct {
	db     *sql.DB
	dbPath string
}

// NewPasswordManager 创建密码管理器
func NewPasswordManager(dataDir string) (*PasswordManager, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %v", err)
	}

	dbPath := filepath.Join(dataDir, "auth.db")
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=30000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %v", err)
	}
	db.SetMaxOpenConns(1)

	pm := &PasswordManager{
		db:     db,
		dbPath: dbPath,
	}

	if err := pm.initDatabase(); err != nil {
		db.Close()
		return nil, fmt.Errorf("初始化数据库失败: %v", err)
	}

	return pm, nil
}

func (pm *PasswordManager) initDatabase() error {
	// 单行凭证表，id 固定为 1
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS credentials (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		password_hash TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := pm.db.Exec(createTableSQL); err != nil {
		return fmt.Errorf("创建凭证表失败: %v", err)
	}
	return nil
}

// SetPassword 设置访问密码（首次设置或修改）
func (pm *PasswordManager) SetPassword(password string) error {
	if len(password) < 4 {
		return fmt.Errorf("密码长度至少4位")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("生成密码哈希失败: %v", err)
	}

	_, err = pm.db.Exec(`
		INSERT INTO credentials (id, password_hash, updated_at)
		VALUES (1, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET password_hash = excluded.password_hash, updated_at = CURRENT_TIMESTAMP
	`, string(hash))
	if err != nil {
		return fmt.Errorf("保存密码失败: %v", err)
	}
	return nil
}

// VerifyPassword 验证访问密码
func (pm *PasswordManager) VerifyPassword(password string) (bool, error) {
	var passwordHash string
	err := pm.db.QueryRow("SELECT password_hash FROM credentials WHERE id = 1").Scan(&passwordHash)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("查询凭证失败: %v", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)) != nil {
		return false, nil
	}
	return true, nil
}

// HasPassword 是否已设置过访问密码
func (pm *PasswordManager) HasPassword() (bool, error) {
	var count int
	err := pm.db.QueryRow("SELECT COUNT(*) FROM credentials WHERE id = 1").Scan(&count)
	if err != nil {
		return false, fmt.Errorf("查询凭证失败: %v", err)
	}
	return count > 0, nil
}

// Close 关闭数据库连接
func (pm *PasswordManager) Close() error {
	return pm.db.Close()
}
