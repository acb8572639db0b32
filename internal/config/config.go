// Package config provides configuration management for archive-uploader.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/rescale/archive-uploader/internal/constants"
)

// Config is the uploader configuration.
//
// Config file location:
//   - Windows: %APPDATA%\archive-uploader\config.ini
//   - Unix: ~/.config/archive-uploader/config.ini
//
// INI format:
//
//	[uploader]
//	author = Jane Doe
//	collection = opensource
//	language = es
//	license_url = https://creativecommons.org/licenses/by-sa/4.0/
//	processed_dir = Uploaded
//	progress_file = .archive_progress.json
//	log_file = .archive_upload.log
//	workers = 1
//	file_timeout_minutes = 120
//
//	[backend]
//	type = archive
//
//	[archive]
//	endpoint = https://s3.us.archive.org
//	access_key = ...
//	secret_key = ...
//
//	[s3]
//	bucket = my-bucket
//	region = us-east-1
//	endpoint =
//	access_key =
//	secret_key =
//
//	[azure]
//	container_url = https://account.blob.core.windows.net/container?sv=...
//
//	[gcs]
//	bucket = my-bucket
//	credentials_file = /path/to/key.json
//
//	[proxy]
//	mode = no-proxy
//	host =
//	port = 0
//	user =
//	password =
//	no_proxy =
type Config struct {
	Uploader UploaderConfig
	Backend  BackendConfig
	Archive  ArchiveConfig
	S3       S3Config
	Azure    AzureConfig
	GCS      GCSConfig
	Proxy    ProxyConfig
}

// UploaderConfig holds the orchestration settings.
type UploaderConfig struct {
	// Author is used when the CLI does not receive one positionally.
	Author string

	// Collection is the remote collection items are filed under.
	// Default: "opensource"
	Collection string

	// Language is the metadata language tag. Default: "es"
	Language string

	// LicenseURL is the metadata license. Default: CC BY-SA 4.0
	LicenseURL string

	// ProcessedDir is the sibling folder name uploaded files are moved into.
	// Default: "Uploaded"
	ProcessedDir string

	// ProgressFile is the progress ledger path. Default: .archive_progress.json
	ProgressFile string

	// LogFile is the diagnostic log path. Default: .archive_upload.log
	LogFile string

	// Workers is the parallel driver pool size. 1 means sequential.
	// Minimum: 1, Maximum: 5, Default: 1
	Workers int

	// FileTimeoutMinutes bounds one file's upload in the parallel driver.
	// Default: 120
	FileTimeoutMinutes int
}

// BackendConfig selects the upload client.
type BackendConfig struct {
	// Type is one of "archive", "s3", "azure", "gcs". Default: "archive"
	Type string
}

// ArchiveConfig holds Internet Archive S3-like API credentials.
type ArchiveConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
}

// S3Config holds settings for any S3-compatible bucket.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string // empty = AWS
	AccessKey string // empty = default AWS credential chain
	SecretKey string
}

// AzureConfig holds the container SAS URL.
type AzureConfig struct {
	ContainerURL string
}

// GCSConfig holds Google Cloud Storage settings.
type GCSConfig struct {
	Bucket          string
	CredentialsFile string // empty = Application Default Credentials
}

// ProxyConfig holds outbound proxy settings shared by every backend.
type ProxyConfig struct {
	Mode     string // "no-proxy", "system", "basic", "ntlm"
	Host     string
	Port     int
	User     string
	Password string
	NoProxy  string // Comma-separated list of hosts to bypass proxy
}

// Backend types
const (
	BackendArchive = "archive"
	BackendS3      = "s3"
	BackendAzure   = "azure"
	BackendGCS     = "gcs"
)

// DefaultArchiveEndpoint is the Internet Archive S3-like upload endpoint.
const DefaultArchiveEndpoint = "https://s3.us.archive.org"

// Validation errors
var (
	ErrUnknownBackend        = errors.New("backend type must be one of archive, s3, azure, gcs")
	ErrInvalidWorkers        = errors.New("workers must be between 1 and 5")
	ErrInvalidFileTimeout    = errors.New("file_timeout_minutes must be at least 1")
	ErrMissingArchiveKeys    = errors.New("archive access_key and secret_key are required")
	ErrMissingS3Bucket       = errors.New("s3 bucket is required")
	ErrMissingAzureContainer = errors.New("azure container_url is required")
	ErrMissingGCSBucket      = errors.New("gcs bucket is required")
	ErrInvalidProxyMode      = errors.New("proxy mode must be one of no-proxy, system, basic, ntlm")
	ErrMissingProxyHost      = errors.New("proxy host is required for basic and ntlm modes")
	ErrMissingProcessedDir   = errors.New("processed_dir must not be empty")
)

// Environment overrides for archive credentials
const (
	EnvArchiveAccessKey = "IA_ACCESS_KEY"
	EnvArchiveSecretKey = "IA_SECRET_KEY"
)

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		Uploader: UploaderConfig{
			Collection:         constants.DefaultCollection,
			Language:           constants.DefaultLanguage,
			LicenseURL:         constants.DefaultLicenseURL,
			ProcessedDir:       constants.ProcessedDirName,
			ProgressFile:       constants.ProgressFileName,
			LogFile:            constants.LogFileName,
			Workers:            constants.DefaultWorkers,
			FileTimeoutMinutes: int(constants.DefaultFileTimeout / time.Minute),
		},
		Backend: BackendConfig{
			Type: BackendArchive,
		},
		Archive: ArchiveConfig{
			Endpoint: DefaultArchiveEndpoint,
		},
		S3: S3Config{
			Region: "us-east-1",
		},
		Proxy: ProxyConfig{
			Mode: "no-proxy",
		},
	}
}

// DefaultConfigPath returns the default path for config.ini.
//   - Windows: %APPDATA%\archive-uploader\config.ini
//   - Unix: ~/.config/archive-uploader/config.ini
func DefaultConfigPath() (string, error) {
	var configDir string

	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData == "" {
			userProfile := os.Getenv("USERPROFILE")
			if userProfile == "" {
				return "", errors.New("neither APPDATA nor USERPROFILE environment variable set")
			}
			appData = filepath.Join(userProfile, "AppData", "Roaming")
		}
		configDir = filepath.Join(appData, "archive-uploader")
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config", "archive-uploader")
	}

	return filepath.Join(configDir, "config.ini"), nil
}

// Load loads configuration from an INI file.
// If path is empty, uses the default path.
// If the file doesn't exist, returns defaults and no error.
// If the file exists but is invalid, returns an error.
// Environment credentials are applied last in every case.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			cfg.applyEnv()
			return cfg, nil
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg.applyEnv()
		return cfg, nil
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	up := iniFile.Section("uploader")
	cfg.Uploader.Author = up.Key("author").String()
	cfg.Uploader.Collection = up.Key("collection").MustString(constants.DefaultCollection)
	cfg.Uploader.Language = up.Key("language").MustString(constants.DefaultLanguage)
	cfg.Uploader.LicenseURL = up.Key("license_url").MustString(constants.DefaultLicenseURL)
	cfg.Uploader.ProcessedDir = up.Key("processed_dir").MustString(constants.ProcessedDirName)
	cfg.Uploader.ProgressFile = up.Key("progress_file").MustString(constants.ProgressFileName)
	cfg.Uploader.LogFile = up.Key("log_file").MustString(constants.LogFileName)
	cfg.Uploader.Workers = up.Key("workers").MustInt(constants.DefaultWorkers)
	cfg.Uploader.FileTimeoutMinutes = up.Key("file_timeout_minutes").MustInt(cfg.Uploader.FileTimeoutMinutes)

	cfg.Backend.Type = strings.ToLower(iniFile.Section("backend").Key("type").MustString(BackendArchive))

	ia := iniFile.Section("archive")
	cfg.Archive.Endpoint = ia.Key("endpoint").MustString(DefaultArchiveEndpoint)
	cfg.Archive.AccessKey = ia.Key("access_key").String()
	cfg.Archive.SecretKey = ia.Key("secret_key").String()

	s3 := iniFile.Section("s3")
	cfg.S3.Bucket = s3.Key("bucket").String()
	cfg.S3.Region = s3.Key("region").MustString("us-east-1")
	cfg.S3.Endpoint = s3.Key("endpoint").String()
	cfg.S3.AccessKey = s3.Key("access_key").String()
	cfg.S3.SecretKey = s3.Key("secret_key").String()

	cfg.Azure.ContainerURL = iniFile.Section("azure").Key("container_url").String()

	gcs := iniFile.Section("gcs")
	cfg.GCS.Bucket = gcs.Key("bucket").String()
	cfg.GCS.CredentialsFile = gcs.Key("credentials_file").String()

	proxy := iniFile.Section("proxy")
	cfg.Proxy.Mode = strings.ToLower(proxy.Key("mode").MustString("no-proxy"))
	cfg.Proxy.Host = proxy.Key("host").String()
	cfg.Proxy.Port = proxy.Key("port").MustInt(0)
	cfg.Proxy.User = proxy.Key("user").String()
	cfg.Proxy.Password = proxy.Key("password").String()
	cfg.Proxy.NoProxy = proxy.Key("no_proxy").String()

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv lets IA_ACCESS_KEY / IA_SECRET_KEY override the file.
func (cfg *Config) applyEnv() {
	if v := os.Getenv(EnvArchiveAccessKey); v != "" {
		cfg.Archive.AccessKey = v
	}
	if v := os.Getenv(EnvArchiveSecretKey); v != "" {
		cfg.Archive.SecretKey = v
	}
}

// Save writes configuration to an INI file.
// If path is empty, uses the default path.
// Creates parent directories if they don't exist.
func Save(cfg *Config, path string) error {
	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return fmt.Errorf("failed to determine config path: %w", err)
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()

	sections := []struct {
		name   string
		values [][2]string
	}{
		{"uploader", [][2]string{
			{"author", cfg.Uploader.Author},
			{"collection", cfg.Uploader.Collection},
			{"language", cfg.Uploader.Language},
			{"license_url", cfg.Uploader.LicenseURL},
			{"processed_dir", cfg.Uploader.ProcessedDir},
			{"progress_file", cfg.Uploader.ProgressFile},
			{"log_file", cfg.Uploader.LogFile},
			{"workers", fmt.Sprintf("%d", cfg.Uploader.Workers)},
			{"file_timeout_minutes", fmt.Sprintf("%d", cfg.Uploader.FileTimeoutMinutes)},
		}},
		{"backend", [][2]string{
			{"type", cfg.Backend.Type},
		}},
		{"archive", [][2]string{
			{"endpoint", cfg.Archive.Endpoint},
			{"access_key", cfg.Archive.AccessKey},
			{"secret_key", cfg.Archive.SecretKey},
		}},
		{"s3", [][2]string{
			{"bucket", cfg.S3.Bucket},
			{"region", cfg.S3.Region},
			{"endpoint", cfg.S3.Endpoint},
			{"access_key", cfg.S3.AccessKey},
			{"secret_key", cfg.S3.SecretKey},
		}},
		{"azure", [][2]string{
			{"container_url", cfg.Azure.ContainerURL},
		}},
		{"gcs", [][2]string{
			{"bucket", cfg.GCS.Bucket},
			{"credentials_file", cfg.GCS.CredentialsFile},
		}},
		{"proxy", [][2]string{
			{"mode", cfg.Proxy.Mode},
			{"host", cfg.Proxy.Host},
			{"port", fmt.Sprintf("%d", cfg.Proxy.Port)},
			{"user", cfg.Proxy.User},
			{"password", cfg.Proxy.Password},
			{"no_proxy", cfg.Proxy.NoProxy},
		}},
	}

	for _, s := range sections {
		section, err := iniFile.NewSection(s.name)
		if err != nil {
			return fmt.Errorf("failed to create %s section: %w", s.name, err)
		}
		for _, kv := range s.values {
			section.Key(kv[0]).SetValue(kv[1])
		}
	}

	// Credentials live in this file: temp file + chmod + rename
	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// Validate checks the settings needed to run an upload.
func (cfg *Config) Validate() error {
	if strings.TrimSpace(cfg.Uploader.ProcessedDir) == "" {
		return ErrMissingProcessedDir
	}
	if cfg.Uploader.Workers < 1 || cfg.Uploader.Workers > constants.MaxWorkers {
		return ErrInvalidWorkers
	}
	if cfg.Uploader.FileTimeoutMinutes < 1 {
		return ErrInvalidFileTimeout
	}

	switch cfg.Proxy.Mode {
	case "no-proxy", "", "system":
	case "basic", "ntlm":
		if cfg.Proxy.Host == "" {
			return ErrMissingProxyHost
		}
	default:
		return ErrInvalidProxyMode
	}

	return cfg.ValidateBackend()
}

// ValidateBackend checks that the selected backend has what it needs to connect.
func (cfg *Config) ValidateBackend() error {
	switch cfg.Backend.Type {
	case BackendArchive, "":
		if cfg.Archive.AccessKey == "" || cfg.Archive.SecretKey == "" {
			return ErrMissingArchiveKeys
		}
	case BackendS3:
		if cfg.S3.Bucket == "" {
			return ErrMissingS3Bucket
		}
	case BackendAzure:
		if cfg.Azure.ContainerURL == "" {
			return ErrMissingAzureContainer
		}
	case BackendGCS:
		if cfg.GCS.Bucket == "" {
			return ErrMissingGCSBucket
		}
	default:
		return ErrUnknownBackend
	}
	return nil
}

// FileTimeout returns the per-file timeout as a duration.
func (cfg *Config) FileTimeout() time.Duration {
	if cfg.Uploader.FileTimeoutMinutes <= 0 {
		return constants.DefaultFileTimeout
	}
	return time.Duration(cfg.Uploader.FileTimeoutMinutes) * time.Minute
}

// Redacted returns a copy safe for printing (secrets masked).
func (cfg *Config) Redacted() *Config {
	out := *cfg
	out.Archive.SecretKey = mask(cfg.Archive.SecretKey)
	out.S3.SecretKey = mask(cfg.S3.SecretKey)
	out.Proxy.Password = mask(cfg.Proxy.Password)
	if i := strings.Index(cfg.Azure.ContainerURL, "?"); i >= 0 {
		out.Azure.ContainerURL = cfg.Azure.ContainerURL[:i] + "?<sas>"
	}
	return &out
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
