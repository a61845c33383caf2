package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"aeromedia/internal/config"
	"aeromedia/internal/store"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeTestConfig(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	encoded, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(base, "config.toml")
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestPackageCommandsRejectUnknownAccessCode(t *testing.T) {
	cfgPath := writeTestConfig(t)

	for _, args := range [][]string{
		{"packages", "show", "NO-SUCH-CODE"},
		{"packages", "expire", "NO-SUCH-CODE"},
		{"upload", "NO-SUCH-CODE", filepath.Join(t.TempDir(), "clip.mp4")},
	} {
		_, err := runCommand(t, append([]string{"--config", cfgPath}, args...)...)
		if err == nil {
			t.Fatalf("%v: expected an error for an unknown access code", args)
		}
		if !strings.Contains(err.Error(), "no package with access code") {
			t.Fatalf("%v: unexpected error %v", args, err)
		}
	}
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := runCommand(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, "Wrote sample configuration") {
		t.Fatalf("unexpected output: %q", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, err := runCommand(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected error when config already exists")
	}
	if _, err := runCommand(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestInferFileType(t *testing.T) {
	cases := []struct {
		contentType string
		want        store.FileType
	}{
		{"image/jpeg", store.FileTypePhoto},
		{"image/png", store.FileTypePhoto},
		{"video/mp4", store.FileTypeVideo},
		{"application/octet-stream", ""},
	}
	for _, tc := range cases {
		if got := inferFileType(tc.contentType); got != tc.want {
			t.Errorf("inferFileType(%q) = %q, want %q", tc.contentType, got, tc.want)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	if got := formatAmount(12999, ""); got != "129.99" {
		t.Fatalf("formatAmount = %q", got)
	}
	if got := formatAmount(500, "usd"); got != "5.00 USD" {
		t.Fatalf("formatAmount with currency = %q", got)
	}
}
