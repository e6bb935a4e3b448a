package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "database:\n  dsn: file:" + filepath.Join(dir, "panel.db") + "\njwt:\n  secret: cli-test\n"
	if errWrite := os.WriteFile(path, []byte(content), 0o600); errWrite != nil {
		t.Fatalf("write config: %v", errWrite)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	errRun := root.Execute()
	return out.String(), errRun
}

func TestCodesGeneratePrintsCodes(t *testing.T) {
	cfgPath := writeConfig(t)
	out, err := runCLI(t, "--config", cfgPath, "codes", "generate", "--amount", "5.00", "-n", "3")
	if err != nil {
		t.Fatalf("codes generate: %v (%s)", err, out)
	}
	lines := strings.Fields(out)
	if len(lines) != 3 {
		t.Fatalf("expected 3 codes, got %q", out)
	}
}

func TestCouponsGenerateUsesPrefix(t *testing.T) {
	cfgPath := writeConfig(t)
	out, err := runCLI(t, "--config", cfgPath, "coupons", "generate", "--type", "percent", "--value", "15", "--prefix", "spring", "-n", "2")
	if err != nil {
		t.Fatalf("coupons generate: %v (%s)", err, out)
	}
	codes := strings.Fields(out)
	if len(codes) != 2 {
		t.Fatalf("expected 2 coupons, got %q", out)
	}
	for _, code := range codes {
		if !strings.HasPrefix(code, "SPRING") {
			t.Fatalf("code %q lacks prefix", code)
		}
	}
}

func TestCouponTemplateRejectsBadInput(t *testing.T) {
	if _, err := couponTemplate("bogus", "1", "0", "0"); err == nil {
		t.Fatalf("expected error for unknown type")
	}
	if _, err := couponTemplate("fixed", "1.234", "0", "0"); err == nil {
		t.Fatalf("expected error for three decimals")
	}
	tmpl, err := couponTemplate("fixed", "2.50", "10", "0")
	if err != nil {
		t.Fatalf("couponTemplate: %v", err)
	}
	if tmpl.Value != 250 || tmpl.MinAmount != 1000 {
		t.Fatalf("template = %+v", tmpl)
	}
}

func TestAdminCreateAndMigrate(t *testing.T) {
	cfgPath := writeConfig(t)
	if out, err := runCLI(t, "--config", cfgPath, "migrate"); err != nil {
		t.Fatalf("migrate: %v (%s)", err, out)
	}
	out, err := runCLI(t, "--config", cfgPath, "admin", "create", "-u", "root", "-p", "secret123")
	if err != nil {
		t.Fatalf("admin create: %v (%s)", err, out)
	}
	if !strings.Contains(out, "super_admin=true") {
		t.Fatalf("output = %q", out)
	}
}
