package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig()

	if cfg.Uploader.Collection != "opensource" {
		t.Errorf("Expected Collection=opensource, got %s", cfg.Uploader.Collection)
	}
	if cfg.Uploader.Language != "es" {
		t.Errorf("Expected Language=es, got %s", cfg.Uploader.Language)
	}
	if cfg.Uploader.ProcessedDir != "Uploaded" {
		t.Errorf("Expected ProcessedDir=Uploaded, got %s", cfg.Uploader.ProcessedDir)
	}
	if cfg.Uploader.ProgressFile != ".archive_progress.json" {
		t.Errorf("Expected ProgressFile=.archive_progress.json, got %s", cfg.Uploader.ProgressFile)
	}
	if cfg.Uploader.Workers != 1 {
		t.Errorf("Expected Workers=1, got %d", cfg.Uploader.Workers)
	}
	if cfg.Backend.Type != BackendArchive {
		t.Errorf("Expected Backend.Type=archive, got %s", cfg.Backend.Type)
	}
	if cfg.Archive.Endpoint != DefaultArchiveEndpoint {
		t.Errorf("Expected default archive endpoint, got %s", cfg.Archive.Endpoint)
	}
	if cfg.FileTimeout() != 2*time.Hour {
		t.Errorf("Expected FileTimeout=2h, got %v", cfg.FileTimeout())
	}
}

func TestConfigLoadSave(t *testing.T) {
	t.Setenv(EnvArchiveAccessKey, "")
	t.Setenv(EnvArchiveSecretKey, "")

	configPath := filepath.Join(t.TempDir(), "sub", "config.ini")

	cfg := NewConfig()
	cfg.Uploader.Author = "Jane Doe"
	cfg.Uploader.Collection = "community_texts"
	cfg.Uploader.Workers = 3
	cfg.Uploader.FileTimeoutMinutes = 30
	cfg.Backend.Type = BackendS3
	cfg.Archive.AccessKey = "access"
	cfg.Archive.SecretKey = "secret"
	cfg.S3.Bucket = "books"
	cfg.S3.Endpoint = "http://localhost:9000"
	cfg.GCS.Bucket = "gcs-books"
	cfg.Azure.ContainerURL = "https://acct.blob.core.windows.net/c?sv=1"
	cfg.Proxy.Mode = "basic"
	cfg.Proxy.Host = "proxy.local"
	cfg.Proxy.Port = 3128

	if err := Save(cfg, configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(configPath)
		if err != nil {
			t.Fatalf("Config file was not created: %v", err)
		}
		if info.Mode().Perm() != 0600 {
			t.Errorf("Expected 0600 permissions, got %v", info.Mode().Perm())
		}
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if loaded.Uploader.Author != "Jane Doe" {
		t.Errorf("Author mismatch: got %q", loaded.Uploader.Author)
	}
	if loaded.Uploader.Collection != "community_texts" {
		t.Errorf("Collection mismatch: got %q", loaded.Uploader.Collection)
	}
	if loaded.Uploader.Workers != 3 {
		t.Errorf("Workers mismatch: got %d", loaded.Uploader.Workers)
	}
	if loaded.FileTimeout() != 30*time.Minute {
		t.Errorf("FileTimeout mismatch: got %v", loaded.FileTimeout())
	}
	if loaded.Backend.Type != BackendS3 {
		t.Errorf("Backend mismatch: got %q", loaded.Backend.Type)
	}
	if loaded.Archive.AccessKey != "access" || loaded.Archive.SecretKey != "secret" {
		t.Errorf("Archive keys mismatch: got %q/%q", loaded.Archive.AccessKey, loaded.Archive.SecretKey)
	}
	if loaded.S3.Bucket != "books" || loaded.S3.Endpoint != "http://localhost:9000" {
		t.Errorf("S3 mismatch: got %+v", loaded.S3)
	}
	if loaded.GCS.Bucket != "gcs-books" {
		t.Errorf("GCS bucket mismatch: got %q", loaded.GCS.Bucket)
	}
	if loaded.Azure.ContainerURL != cfg.Azure.ContainerURL {
		t.Errorf("Azure mismatch: got %q", loaded.Azure.ContainerURL)
	}
	if loaded.Proxy.Mode != "basic" || loaded.Proxy.Host != "proxy.local" || loaded.Proxy.Port != 3128 {
		t.Errorf("Proxy mismatch: got %+v", loaded.Proxy)
	}

	if _, err := os.Stat(configPath + ".tmp"); !os.IsNotExist(err) {
		t.Error("Temp file should not remain after save")
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv(EnvArchiveAccessKey, "")
	t.Setenv(EnvArchiveSecretKey, "")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.ini"))
	if err != nil {
		t.Fatalf("Expected no error for missing file, got %v", err)
	}
	if cfg.Uploader.Collection != "opensource" {
		t.Errorf("Expected defaults, got collection %q", cfg.Uploader.Collection)
	}
}

func TestLoadPartialFile(t *testing.T) {
	t.Setenv(EnvArchiveAccessKey, "")
	t.Setenv(EnvArchiveSecretKey, "")

	path := filepath.Join(t.TempDir(), "config.ini")
	content := "[uploader]\nauthor = Ana\n\n[backend]\ntype = GCS\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Uploader.Author != "Ana" {
		t.Errorf("Expected author Ana, got %q", cfg.Uploader.Author)
	}
	if cfg.Backend.Type != BackendGCS {
		t.Errorf("Expected backend type to be lower-cased to gcs, got %q", cfg.Backend.Type)
	}
	if cfg.Uploader.Language != "es" {
		t.Errorf("Expected default language, got %q", cfg.Uploader.Language)
	}
	if cfg.Uploader.Workers != 1 {
		t.Errorf("Expected default workers, got %d", cfg.Uploader.Workers)
	}
}

func TestEnvOverridesArchiveKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.ini")
	content := "[archive]\naccess_key = from-file\nsecret_key = from-file\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv(EnvArchiveAccessKey, "env-access")
	t.Setenv(EnvArchiveSecretKey, "env-secret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Archive.AccessKey != "env-access" || cfg.Archive.SecretKey != "env-secret" {
		t.Errorf("Expected env keys to win, got %q/%q", cfg.Archive.AccessKey, cfg.Archive.SecretKey)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := NewConfig()
		cfg.Archive.AccessKey = "a"
		cfg.Archive.SecretKey = "s"
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"valid", func(*Config) {}, nil},
		{"zero workers", func(c *Config) { c.Uploader.Workers = 0 }, ErrInvalidWorkers},
		{"too many workers", func(c *Config) { c.Uploader.Workers = 6 }, ErrInvalidWorkers},
		{"zero timeout", func(c *Config) { c.Uploader.FileTimeoutMinutes = 0 }, ErrInvalidFileTimeout},
		{"empty processed dir", func(c *Config) { c.Uploader.ProcessedDir = " " }, ErrMissingProcessedDir},
		{"missing archive keys", func(c *Config) { c.Archive.SecretKey = "" }, ErrMissingArchiveKeys},
		{"s3 without bucket", func(c *Config) { c.Backend.Type = BackendS3 }, ErrMissingS3Bucket},
		{"azure without url", func(c *Config) { c.Backend.Type = BackendAzure }, ErrMissingAzureContainer},
		{"gcs without bucket", func(c *Config) { c.Backend.Type = BackendGCS }, ErrMissingGCSBucket},
		{"unknown backend", func(c *Config) { c.Backend.Type = "ftp" }, ErrUnknownBackend},
		{"bad proxy mode", func(c *Config) { c.Proxy.Mode = "socks" }, ErrInvalidProxyMode},
		{"ntlm without host", func(c *Config) { c.Proxy.Mode = "ntlm" }, ErrMissingProxyHost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRedacted(t *testing.T) {
	cfg := NewConfig()
	cfg.Archive.SecretKey = "supersecret"
	cfg.Azure.ContainerURL = "https://acct.blob.core.windows.net/c?sv=2020&sig=abc"

	r := cfg.Redacted()
	if strings.Contains(r.Archive.SecretKey, "persecr") {
		t.Errorf("Secret not masked: %q", r.Archive.SecretKey)
	}
	if r.Azure.ContainerURL != "https://acct.blob.core.windows.net/c?<sas>" {
		t.Errorf("SAS not stripped: %q", r.Azure.ContainerURL)
	}
	if cfg.Archive.SecretKey != "supersecret" {
		t.Error("Redacted must not modify the original")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := ExpandPath("~/x.json"); got != filepath.Join(home, "x.json") {
		t.Errorf("ExpandPath(~/x.json) = %q", got)
	}
	if got := ExpandPath(".archive_progress.json"); got != ".archive_progress.json" {
		t.Errorf("relative path changed: %q", got)
	}
	if got := ExpandPath(""); got != "" {
		t.Errorf("empty path changed: %q", got)
	}

	cfg := NewConfig()
	if got := cfg.ProgressFilePath("custom.json"); got != "custom.json" {
		t.Errorf("override ignored: %q", got)
	}
	if got := cfg.LogFilePath(""); got != ".archive_upload.log" {
		t.Errorf("default log path: %q", got)
	}
}
