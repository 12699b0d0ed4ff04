package app

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleConfig = `
telegram:
  token: "test-token"
  run_mode: longpoll
logging:
  level: info
  format: json
database:
  host: localhost
  port: "5432"
  user: bot
  password: secret
  name: maxexpress
marketplaces:
  help_1688: "помощь 1688"
  help_pinduoduo: "помощь pinduoduo"
  help_poizon: "помощь poizon"
  help_taobao: "помощь taobao"
vendor:
  base_url: "http://www.107kapro.cn"
  timeout_seconds: 5
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "test-token" {
		t.Errorf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Database.Name != "maxexpress" {
		t.Errorf("database name = %q", cfg.Database.Name)
	}
	if cfg.Marketplaces.HelpPoizon != "помощь poizon" {
		t.Errorf("poizon help = %q", cfg.Marketplaces.HelpPoizon)
	}
	if cfg.Vendor.BaseURL != "http://www.107kapro.cn" {
		t.Errorf("vendor base url = %q", cfg.Vendor.BaseURL)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("BOT_TOKEN", "env-token")
	t.Setenv("POSTGRES_HOST", "db.internal")
	t.Setenv("HELP_TAOBAO", "taobao from env")

	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "env-token" {
		t.Errorf("token = %q, want env override", cfg.Telegram.Token)
	}
	if cfg.Database.Host != "db.internal" {
		t.Errorf("database host = %q, want env override", cfg.Database.Host)
	}
	if cfg.Marketplaces.HelpTaobao != "taobao from env" {
		t.Errorf("taobao help = %q, want env override", cfg.Marketplaces.HelpTaobao)
	}
}

func TestLoadConfigRejectsMissingDatabase(t *testing.T) {
	body := `
telegram:
  token: "test-token"
marketplaces:
  help_1688: "a"
  help_pinduoduo: "b"
  help_poizon: "c"
  help_taobao: "d"
`
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatal("Load must fail without database settings")
	}
}
