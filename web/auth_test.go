package web

import (
	"testing"
	"time"

	"profitcal/ledger"
)

func TestPasswordManagerLifecycle(t *testing.T) {
	pm, err := NewPasswordManager(t.TempDir())
	if err != nil {
		t.Fatalf("创建密码管理器失败: %v", err)
	}
	defer pm.Close()

	hasPwd, err := pm.HasPassword()
	if err != nil || hasPwd {
		t.Fatalf("新库不应有密码: %v %v", hasPwd, err)
	}

	if err := pm.SetPassword("abc"); err == nil {
		t.Error("过短的密码应被拒绝")
	}

	if err := pm.SetPassword("secret123"); err != nil {
		t.Fatalf("设置密码失败: %v", err)
	}

	hasPwd, _ = pm.HasPassword()
	if !hasPwd {
		t.Error("设置后 HasPassword 应为 true")
	}

	ok, err := pm.VerifyPassword("secret123")
	if err != nil || !ok {
		t.Errorf("正确密码验证失败: %v %v", ok, err)
	}
	ok, _ = pm.VerifyPassword("wrong")
	if ok {
		t.Error("错误密码不应通过")
	}

	// 修改后旧密码失效
	if err := pm.SetPassword("newpass456"); err != nil {
		t.Fatalf("修改密码失败: %v", err)
	}
	if ok, _ := pm.VerifyPassword("secret123"); ok {
		t.Error("旧密码不应再通过")
	}
	if ok, _ := pm.VerifyPassword("newpass456"); !ok {
		t.Error("新密码应通过")
	}
	t.Log("✅ 密码生命周期验证通过")
}

func TestSessionManager(t *testing.T) {
	sm := NewSessionManager()

	session, err := sm.CreateSession("1.2.3.4", "test-agent")
	if err != nil {
		t.Fatalf("创建会话失败: %v", err)
	}
	if session.SessionID == "" {
		t.Fatal("会话ID不能为空")
	}

	got, ok := sm.GetSession(session.SessionID)
	if !ok || got.IP != "1.2.3.4" {
		t.Errorf("会话查找失败: %v %+v", ok, got)
	}

	// 过期的会话查不到
	sm.mu.Lock()
	sm.sessions[session.SessionID].ExpiresAt = time.Now().Add(-time.Minute)
	sm.mu.Unlock()
	if _, ok := sm.GetSession(session.SessionID); ok {
		t.Error("过期会话不应返回")
	}

	sm.DeleteSession(session.SessionID)
	if _, ok := sm.GetSession(session.SessionID); ok {
		t.Error("删除后会话不应存在")
	}
}

func TestParsePlatform(t *testing.T) {
	for _, valid := range []string{"binance", "okx", "gate"} {
		if _, err := parsePlatform(valid); err != nil {
			t.Errorf("平台 %s 应合法: %v", valid, err)
		}
	}
	if _, err := parsePlatform("bybit"); err == nil {
		t.Error("未知平台应报错")
	}
}

func TestSectionRecordsOKXRequiresAccount(t *testing.T) {
	u := &ledger.UserData{}
	if _, err := sectionRecords(u, ledger.PlatformOKX, ""); err == nil {
		t.Error("OKX 缺少账号参数应报错")
	}

	acc := u.OKXAccountSection("main")
	acc.Date = append(acc.Date, ledger.DateRecord{Date: "2025-01-01", Fee: 1})
	records, err := sectionRecords(u, ledger.PlatformOKX, "main")
	if err != nil || len(records) != 1 {
		t.Errorf("OKX 账号记录读取失败: %v %v", records, err)
	}

	// 返回的是快照，修改不影响原数据
	records[0].Fee = 99
	if u.OKX.Accounts["main"].Date[0].Fee != 1 {
		t.Error("sectionRecords 应返回副本")
	}
}
