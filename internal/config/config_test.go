// Package config tests validate config loading behavior.
package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

// TestLoadAppliesDefaults confirms defaults are applied on load.
func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	p := writeConfig(t, `
security:
  admin_password_hash: "argon2id$v=19$m=65536,t=3,p=4$c2FsdA$aGFzaA"
storage:
  directory: `+dir+`
`)
	c, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Server.Port != 8080 {
		t.Fatalf("expected default server.port 8080, got %d", c.Server.Port)
	}
	if c.Storage.MaxFileSizeMB != 100 {
		t.Fatalf("expected default max_file_size_mb 100, got %d", c.Storage.MaxFileSizeMB)
	}
	if c.Security.SessionLifetimeSeconds != 3600 {
		t.Fatalf("expected default session lifetime 3600, got %d", c.Security.SessionLifetimeSeconds)
	}
	if !filepath.IsAbs(c.Storage.Directory) {
		t.Fatalf("storage directory should be absolute: %q", c.Storage.Directory)
	}
	if c.Storage.AllowedExtensions != nil {
		t.Fatalf("absent allowed_extensions should stay unrestricted")
	}
}

// TestLoadRequiresPasswordHash rejects configs with no admin hash.
func TestLoadRequiresPasswordHash(t *testing.T) {
	p := writeConfig(t, "server:\n  port: 9000\n")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected error for missing admin_password_hash")
	}
}

// TestLoadCreatesStorageDirectory makes the storage root when absent.
func TestLoadCreatesStorageDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "files")
	p := writeConfig(t, `
security:
  admin_password_hash: "argon2id$v=19$m=65536,t=3,p=4$c2FsdA$aGFzaA"
storage:
  directory: `+dir+`
`)
	if _, err := Load(p); err != nil {
		t.Fatalf("Load: %v", err)
	}
	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		t.Fatalf("storage directory not created: %v", err)
	}
}

// TestLoadNormalizesExtensions lowercases and adds leading dots.
func TestLoadNormalizesExtensions(t *testing.T) {
	p := writeConfig(t, `
security:
  admin_password_hash: "argon2id$v=19$m=65536,t=3,p=4$c2FsdA$aGFzaA"
storage:
  directory: `+t.TempDir()+`
  allowed_extensions: ["TXT", ".Png", "pdf"]
`)
	c, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{".txt", ".png", ".pdf"}
	if len(c.Storage.AllowedExtensions) != len(want) {
		t.Fatalf("extensions %v", c.Storage.AllowedExtensions)
	}
	for i, w := range want {
		if c.Storage.AllowedExtensions[i] != w {
			t.Fatalf("extensions %v, want %v", c.Storage.AllowedExtensions, want)
		}
	}
}

// TestLoadRejectsHalfConfiguredTLS requires both cert and key.
func TestLoadRejectsHalfConfiguredTLS(t *testing.T) {
	p := writeConfig(t, `
security:
  admin_password_hash: "argon2id$v=19$m=65536,t=3,p=4$c2FsdA$aGFzaA"
server:
  tls:
    cert_path: /etc/ssl/cert.pem
`)
	if _, err := Load(p); err == nil {
		t.Fatalf("expected error for half-configured TLS")
	}
}
