package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"
)

// 忘记访问密码时的应急工具，直接改写 auth.db 里的凭证。

func main() {
	if len(os.Args) < 2 {
		fmt.Println("用法: set_password <新密码> [数据目录]")
		os.Exit(1)
	}

	newPassword := os.Args[1]
	if len(newPassword) < 4 {
		fmt.Println("错误: 密码长度至少4位")
		os.Exit(1)
	}

	dataDir := "./data"
	if len(os.Args) > 2 {
		dataDir = os.Args[2]
	}
	dbPath := filepath.Join(dataDir, "auth.db")

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Printf("错误: 数据库文件不存在: %s\n", dbPath)
		os.Exit(1)
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=30000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		fmt.Printf("错误: 打开数据库失败: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		fmt.Printf("错误: 生成密码哈希失败: %v\n", err)
		os.Exit(1)
	}

	_, err = db.Exec(`
		INSERT INTO credentials (id, password_hash, updated_at)
		VALUES (1, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET password_hash = excluded.password_hash, updated_at = CURRENT_TIMESTAMP
	`, string(hash))
	if err != nil {
		fmt.Printf("错误: 更新密码失败: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("✓ 访问密码已更新")
	fmt.Printf("  数据库: %s\n", dbPath)
}
