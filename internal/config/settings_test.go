package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultSettings_Valid(t *testing.T) {
	s := DefaultSettings()
	if err := s.Validate(); err != nil {
		t.Fatalf("default settings invalid: %v", err)
	}
	if s.RetryCount != 3 {
		t.Errorf("RetryCount = %d, want 3", s.RetryCount)
	}
	if s.RetryInitialBackoff != time.Second || s.RetryMaxBackoff != 10*time.Second {
		t.Errorf("backoff = %s..%s, want 1s..10s", s.RetryInitialBackoff, s.RetryMaxBackoff)
	}
	if s.RequestTimeout != 30*time.Second {
		t.Errorf("RequestTimeout = %s, want 30s", s.RequestTimeout)
	}
	if s.MaxConnections != 100 {
		t.Errorf("MaxConnections = %d, want 100", s.MaxConnections)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.CachePolicy != CachePolicyAny {
		t.Errorf("CachePolicy = %q, want %q", s.CachePolicy, CachePolicyAny)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
base_dir: /srv/albums
domain_list:
  - a.example.com
  - b.example.com
retry_count: 5
retry_initial_backoff: 250ms
server:
  port: 9000
  public_url: http://files.example.com
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ALBUMPDF_SERVER_PORT", "9100")
	t.Setenv("ALBUMPDF_CACHE_POLICY", "complete")

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if s.BaseDir != "/srv/albums" {
		t.Errorf("BaseDir = %q", s.BaseDir)
	}
	if len(s.DomainList) != 2 || s.DomainList[1] != "b.example.com" {
		t.Errorf("DomainList = %v", s.DomainList)
	}
	if s.RetryCount != 5 {
		t.Errorf("RetryCount = %d, want 5", s.RetryCount)
	}
	if s.RetryInitialBackoff != 250*time.Millisecond {
		t.Errorf("RetryInitialBackoff = %s, want 250ms", s.RetryInitialBackoff)
	}
	if s.RetryMaxBackoff != 10*time.Second {
		t.Errorf("RetryMaxBackoff = %s, want default 10s", s.RetryMaxBackoff)
	}
	if s.Server.Port != 9100 {
		t.Errorf("Server.Port = %d, want env override 9100", s.Server.Port)
	}
	if s.CachePolicy != CachePolicyComplete {
		t.Errorf("CachePolicy = %q, want env override %q", s.CachePolicy, CachePolicyComplete)
	}
	if s.Server.PublicURL != "http://files.example.com" {
		t.Errorf("Server.PublicURL = %q", s.Server.PublicURL)
	}
}

func TestLoad_InvalidSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("retry_count: 0\ncache_policy: sometimes\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Settings)
	}{
		{"empty base dir", func(s *Settings) { s.BaseDir = "" }},
		{"no domains", func(s *Settings) { s.DomainList = nil }},
		{"zero retries", func(s *Settings) { s.RetryCount = 0 }},
		{"max below initial", func(s *Settings) { s.RetryMaxBackoff = time.Millisecond }},
		{"zero connections", func(s *Settings) { s.MaxConnections = 0 }},
		{"zero page workers", func(s *Settings) { s.MaxConcurrentPages = 0 }},
		{"zero dpi", func(s *Settings) { s.PDFDPI = 0 }},
		{"unknown policy", func(s *Settings) { s.CachePolicy = "maybe" }},
		{"zero request timeout", func(s *Settings) { s.RequestTimeout = 0 }},
		{"negative request timeout", func(s *Settings) { s.RequestTimeout = -time.Second }},
		{"zero produce timeout", func(s *Settings) { s.ProduceTimeout = 0 }},
		{"retry cap below retry count", func(s *Settings) { s.RetryCount = 5; s.MaxRetryCount = 4 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.modify(s)
			if err := s.Validate(); err == nil {
				t.Error("expected error but got none")
			}
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	for _, name := range []string{"config.yaml", "config.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			want := DefaultSettings()
			want.BaseDir = "/data/albums"
			want.RetryMaxBackoff = 20 * time.Second

			if err := want.Save(path); err != nil {
				t.Fatalf("Save() error = %v", err)
			}

			got, err := Load(path)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if got.BaseDir != want.BaseDir {
				t.Errorf("BaseDir = %q, want %q", got.BaseDir, want.BaseDir)
			}
			if got.RetryMaxBackoff != want.RetryMaxBackoff {
				t.Errorf("RetryMaxBackoff = %s, want %s", got.RetryMaxBackoff, want.RetryMaxBackoff)
			}
		})
	}
}
