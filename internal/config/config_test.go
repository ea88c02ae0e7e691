package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultRoundTrips(t *testing.T) {
	cfg, err := FromYAML([]byte(GenerateDefault("admin@example.test")))
	if err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Bootstrap.AdminEmail != "admin@example.test" {
		t.Fatalf("admin email %s", cfg.Bootstrap.AdminEmail)
	}
	if cfg.Addr() != ":8484" {
		t.Fatalf("addr %s", cfg.Addr())
	}
	if len(cfg.Institutions) != 1 || cfg.Institutions[0].ID != "printshop" {
		t.Fatalf("default institutions %+v", cfg.Institutions)
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			"missing admin email",
			"server:\n  port: 8484\n",
			"admin_email",
		},
		{
			"port out of range",
			"server:\n  port: 70000\nbootstrap:\n  admin_email: a@b.test\n",
			"port",
		},
		{
			"institution without name",
			"bootstrap:\n  admin_email: a@b.test\ninstitutions:\n  - id: x\n",
			"empty name",
		},
		{
			"duplicate institution ids",
			"bootstrap:\n  admin_email: a@b.test\ninstitutions:\n  - id: x\n    name: One\n  - id: x\n    name: Two\n",
			"duplicate",
		},
		{
			"webhook without url",
			"bootstrap:\n  admin_email: a@b.test\nwebhooks:\n  - secret: s\n",
			"url",
		},
	}
	for _, c := range cases {
		_, err := FromYAML([]byte(c.yaml))
		if err == nil || !strings.Contains(err.Error(), c.want) {
			t.Errorf("%s: err=%v, want substring %q", c.name, err, c.want)
		}
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	if err != nil || cfg != nil {
		t.Fatalf("missing file should yield nil,nil: %v %v", cfg, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "designflow.yml"), []byte(GenerateDefault("a@b.test")), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = LoadOptional(dir)
	if err != nil || cfg == nil {
		t.Fatalf("load written config: %v", err)
	}
	if cfg.Auth.TokenTTL != "24h" {
		t.Fatalf("token ttl %s", cfg.Auth.TokenTTL)
	}
}
