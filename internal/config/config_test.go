package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestNilSafety(t *testing.T) {
	c := New(nil)

	if got := c.GetString("any"); got != "" {
		t.Errorf("GetString on nil viper = %q, want empty", got)
	}
	if got := c.GetInt("any"); got != 0 {
		t.Errorf("GetInt on nil viper = %d, want 0", got)
	}
	if got := c.GetBool("any"); got {
		t.Error("GetBool on nil viper = true, want false")
	}
	if got := c.GetDuration("any"); got != 0 {
		t.Errorf("GetDuration on nil viper = %v, want 0", got)
	}
	if c.IsSet("any") {
		t.Error("IsSet on nil viper = true, want false")
	}
	if sub := c.Sub("any"); sub == nil {
		t.Error("Sub on nil viper returned nil")
	}
	if err := c.Unmarshal(&struct{}{}); err != nil {
		t.Errorf("Unmarshal on nil viper: %v", err)
	}
}

func TestAccessors(t *testing.T) {
	v := viper.New()
	v.Set("api.key", "k-123")
	v.Set("scan.workers", 16)
	v.Set("block.enabled", true)
	v.Set("api.timeout", "45s")

	c := New(v)

	if got := c.GetString("api.key"); got != "k-123" {
		t.Errorf("GetString = %q", got)
	}
	if got := c.GetInt("scan.workers"); got != 16 {
		t.Errorf("GetInt = %d", got)
	}
	if !c.GetBool("block.enabled") {
		t.Error("GetBool = false, want true")
	}
	if got := c.GetDuration("api.timeout"); got != 45*time.Second {
		t.Errorf("GetDuration = %v", got)
	}
	if !c.IsSet("api.key") {
		t.Error("IsSet(api.key) = false")
	}
	if c.IsSet("missing.key") {
		t.Error("IsSet(missing.key) = true")
	}
}

func TestSub(t *testing.T) {
	v := viper.New()
	v.Set("smtp.host", "mail.example.com")
	v.Set("smtp.from", "audits@example.com")

	smtp := New(v).Sub("smtp")
	if got := smtp.GetString("host"); got != "mail.example.com" {
		t.Errorf("Sub host = %q", got)
	}
	if got := smtp.GetString("from"); got != "audits@example.com" {
		t.Errorf("Sub from = %q", got)
	}

	missing := New(v).Sub("nope")
	if got := missing.GetString("host"); got != "" {
		t.Errorf("missing Sub host = %q, want empty", got)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fleetaudit.yaml")
	body := `
api:
  key: from-file
org:
  id: "123456"
scan:
  lookback_days: 7
  workers: 3
output:
  dir: /var/reports
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := c.GetString("api.key"); got != "from-file" {
		t.Errorf("api.key = %q", got)
	}
	if got := c.GetString("org.id"); got != "123456" {
		t.Errorf("org.id = %q", got)
	}
	if got := c.GetInt("scan.lookback_days"); got != 7 {
		t.Errorf("scan.lookback_days = %d", got)
	}
	if got := c.GetString("output.dir"); got != "/var/reports" {
		t.Errorf("output.dir = %q", got)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(path, []byte("org:\n  id: \"9\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := c.GetString("api.base_url"); got != "https://api.meraki.com/api/v1" {
		t.Errorf("api.base_url default = %q", got)
	}
	if got := c.GetInt("scan.lookback_days"); got != 30 {
		t.Errorf("scan.lookback_days default = %d", got)
	}
	if got := c.GetInt("scan.block_workers"); got != 8 {
		t.Errorf("scan.block_workers default = %d", got)
	}
	if c.GetBool("block.enabled") {
		t.Error("block.enabled default = true, want false")
	}
	if got := c.GetInt("retention.days"); got != 90 {
		t.Errorf("retention.days default = %d", got)
	}
	if got := c.GetInt("scan.workers"); got < 1 {
		t.Errorf("scan.workers default = %d, want >= 1", got)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("FLEETAUDIT_API_KEY", "from-env")
	t.Setenv("FLEETAUDIT_ORG_ID", "777")

	dir := t.TempDir()
	path := filepath.Join(dir, "fleetaudit.yaml")
	if err := os.WriteFile(path, []byte("api:\n  key: from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got := c.GetString("api.key"); got != "from-env" {
		t.Errorf("api.key = %q, want env value", got)
	}
	if got := c.GetString("org.id"); got != "777" {
		t.Errorf("org.id = %q", got)
	}
}

func TestValidate(t *testing.T) {
	v := viper.New()
	c := New(v)
	if err := c.Validate(); err == nil {
		t.Error("Validate with no api.key should fail")
	}

	v.Set("api.key", "k")
	if err := c.Validate(); err == nil {
		t.Error("Validate with no org.id should fail")
	}

	v.Set("org.id", "1")
	if err := c.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/fleetaudit.yaml"); err == nil {
		t.Error("Load with explicit missing file should fail")
	}
}
