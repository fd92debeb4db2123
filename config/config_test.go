package config

import (
	"os"
	"path/filepath"
	"testing"
)

func createValidConfig() *Config {
	cfg := &Config{}
	cfg.DocStore.MasterKey = "test_master_key"
	cfg.DocStore.DefaultBin = "6891ba4d7b4b8670d8ad8f65"
	cfg.DocStore.Bins = map[string]string{
		"ss": "68da884143b1c97be9543259",
		"ll": "68919b1aae596e708fc1da23",
	}
	cfg.Storage.Path = "./test_data/profitcal.db"
	cfg.Web.Port = 28890
	return cfg
}

func TestConfigValidate(t *testing.T) {
	cfg := createValidConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("有效配置验证失败: %v", err)
	}

	// 缺失 master_key 应该报错
	invalidCfg1 := createValidConfig()
	invalidCfg1.DocStore.MasterKey = ""
	if err := invalidCfg1.Validate(); err == nil {
		t.Error("未配置 master_key 应该报错")
	}

	// 既无 default_bin 也无 bins 应该报错
	invalidCfg2 := createValidConfig()
	invalidCfg2.DocStore.DefaultBin = ""
	invalidCfg2.DocStore.Bins = nil
	if err := invalidCfg2.Validate(); err == nil {
		t.Error("缺少文档 ID 配置应该报错")
	}

	// 触发器启用但缺 API 配置应该报错
	invalidCfg3 := createValidConfig()
	invalidCfg3.Trigger.Enabled = true
	invalidCfg3.Trigger.Symbol = "BTCUSDT"
	invalidCfg3.Trigger.PriceThreshold = 111400
	if err := invalidCfg3.Validate(); err == nil {
		t.Error("触发器缺少 API 配置应该报错")
	}

	// 默认值补全
	cfgWithDefaults := createValidConfig()
	if err := cfgWithDefaults.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfgWithDefaults.Refresh.IntervalSeconds != 300 {
		t.Errorf("期望默认刷新间隔为300, 得到 %d", cfgWithDefaults.Refresh.IntervalSeconds)
	}
	if cfgWithDefaults.DocStore.TimeoutSeconds != 10 {
		t.Errorf("期望默认超时为10, 得到 %d", cfgWithDefaults.DocStore.TimeoutSeconds)
	}
	if cfgWithDefaults.Lock.Type != "none" {
		t.Errorf("期望默认锁类型为 none, 得到 %s", cfgWithDefaults.Lock.Type)
	}
}

func TestResolveBin(t *testing.T) {
	cfg := createValidConfig()

	// 别名命中映射
	if id := cfg.ResolveBin("ss"); id != "68da884143b1c97be9543259" {
		t.Errorf("别名解析错误: %s", id)
	}

	// 未知别名回退到兜底 ID
	if id := cfg.ResolveBin("unknown"); id != cfg.DocStore.DefaultBin {
		t.Errorf("未知别名应回退到 default_bin, 得到 %s", id)
	}

	// 空别名回退到兜底 ID
	if id := cfg.ResolveBin(""); id != cfg.DocStore.DefaultBin {
		t.Errorf("空别名应回退到 default_bin, 得到 %s", id)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
docstore:
  master_key: "test_key"
  default_bin: "abc123"
web:
  port: 18080
system:
  timezone: "Asia/Shanghai"
  log_language: "zh-CN"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("验证失败: %v", err)
	}
	if cfg.Web.Port != 18080 {
		t.Errorf("期望端口 18080, 得到 %d", cfg.Web.Port)
	}

	// 文件不存在
	if _, err := LoadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("加载不存在的配置文件应该报错")
	}
}
