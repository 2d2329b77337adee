// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package config loads the gateway settings.
//
// Values come from zero or more YAML files followed by environment variables,
// which always win. The two variables every deployment sets are BUCKET_NAME
// and S3_LINK_EXPIRATION; everything else has a default.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultLinkExpiration is the presigned link lifetime in seconds.
	DefaultLinkExpiration = 3600
	// MaxLinkExpiration is the longest lifetime S3 accepts for a SigV4
	// presigned URL.
	MaxLinkExpiration = 7 * 24 * 60 * 60

	DefaultServerPort = 8080
	DefaultServerMode = "http"
	ServerModeHTTPS   = "https"

	DefaultBufferSize     = 16 << 20
	DefaultPageSize       = 13
	DefaultMaxBodyBytes   = 512 << 20
	DefaultPresignWorkers = 8
	DefaultLedgerLimit    = 10000

	LedgerMemory = "memory"
	LedgerSQLite = "sqlite"
	LedgerNone   = "none"
)

// Settings is the complete gateway configuration.
type Settings struct {
	// BucketName may be empty at startup; requests touching storage then
	// fail with a configuration error.
	BucketName     string `yaml:"bucket_name" env:"BUCKET_NAME" env-description:"object storage bucket holding telemetry"`
	LinkExpiration int    `yaml:"link_expiration" env:"S3_LINK_EXPIRATION" env-default:"3600" env-description:"lifetime of presigned links in seconds"`

	Storage Storage `yaml:"storage"`
	Server  Server  `yaml:"server"`
	Logging Logging `yaml:"logging"`
	Listing Listing `yaml:"listing"`
	Ledger  Ledger  `yaml:"ledger"`
	Upload  Upload  `yaml:"upload"`
}

type Storage struct {
	Endpoint        string `yaml:"endpoint" env:"S3_ENDPOINT" env-description:"S3 compatible endpoint host[:port]; empty selects AWS"`
	Region          string `yaml:"region" env:"AWS_REGION" env-default:"us-east-1" env-description:"bucket region"`
	AccessKeyID     string `yaml:"access_key_id" env:"S3_ACCESS_KEY_ID" env-description:"static access key; empty uses the AWS credential chain"`
	SecretAccessKey string `yaml:"secret_access_key" env:"S3_SECRET_ACCESS_KEY" env-description:"static secret key"`
	SessionToken    string `yaml:"session_token" env:"S3_SESSION_TOKEN" env-description:"optional session token for static keys"`
	UseSSL          bool   `yaml:"use_ssl" env:"S3_USE_SSL" env-default:"true" env-description:"use TLS to reach the endpoint"`
	PathStyle       bool   `yaml:"path_style" env:"S3_PATH_STYLE" env-default:"false" env-description:"force path style bucket addressing"`
	CreateBucket    bool   `yaml:"create_bucket" env:"S3_CREATE_BUCKET" env-default:"false" env-description:"create the bucket at startup when missing"`
	// BufferSize bounds the memory held per raw upload; longer uploads are
	// spooled to SpoolDir before they are sent.
	BufferSize int64  `yaml:"buffer_size" env:"S3_UPLOAD_BUFFER_SIZE" env-default:"16777216" env-description:"bytes of a raw upload held in memory"`
	SpoolDir   string `yaml:"spool_dir" env:"S3_SPOOL_DIR" env-description:"directory for spooled uploads; empty uses the system temp dir"`
}

type Server struct {
	Mode         string        `yaml:"mode" env:"SERVER_MODE" env-default:"http" env-description:"server mode such as http, https"`
	Port         uint          `yaml:"port" env:"SERVER_PORT" env-default:"8080" env-description:"server port"`
	Profiling    bool          `yaml:"profiling" env:"SERVER_PROFILING" env-default:"false" env-description:"enable profiling"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT" env-default:"5m" env-description:"maximum time to read a request, uploads included"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT" env-default:"5m" env-description:"maximum time to write a response"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT" env-default:"2m" env-description:"keep-alive idle timeout"`
	// CertFile and KeyFile are required in https mode and reloaded on SIGHUP.
	CertFile string `yaml:"cert_file" env:"SERVER_CERT_FILE" env-description:"TLS certificate path"`
	KeyFile  string `yaml:"key_file" env:"SERVER_KEY_FILE" env-description:"TLS private key path"`
}

type Logging struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info" env-description:"logging level such as debug, info, error"`
	// FilteredFields are removed from console log lines.
	FilteredFields []string `yaml:"filtered_fields" env:"LOG_FILTERED_FIELDS" env-separator:"," env-description:"log fields dropped from console output"`
}

type Listing struct {
	PageSize       int `yaml:"page_size" env:"LISTING_PAGE_SIZE" env-default:"13" env-description:"entries per file manager page"`
	PresignWorkers int `yaml:"presign_workers" env:"LISTING_PRESIGN_WORKERS" env-default:"8" env-description:"concurrent presign calls for a download view"`
}

type Ledger struct {
	Backend string `yaml:"backend" env:"LEDGER_BACKEND" env-default:"memory" env-description:"upload ledger backend: memory, sqlite or none"`
	DSN     string `yaml:"dsn" env:"LEDGER_DSN" env-default:"file:memory?mode=memory&cache=shared" env-description:"sqlite data source name"`
	Limit   int    `yaml:"limit" env:"LEDGER_LIMIT" env-default:"10000" env-description:"events kept by the ledger; older ones are pruned"`
}

type Upload struct {
	MaxBodyBytes int64 `yaml:"max_body_bytes" env:"UPLOAD_MAX_BODY_BYTES" env-default:"536870912" env-description:"largest accepted upload after decoding"`
	// RequiredFields must be declared by every scenario record.
	RequiredFields []string `yaml:"required_fields" env:"UPLOAD_REQUIRED_FIELDS" env-separator:"," env-description:"scenario fields every record must declare"`
}

// NewSettings reads the given files in order, then the environment, and
// validates the result.
func NewSettings(configFiles ...string) (*Settings, error) {
	var cfg Settings

	read := false
	for _, cfgFile := range configFiles {
		if cfgFile == "" {
			continue
		}

		if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("no config %s: %w", cfgFile, err)
		}

		if err := cleanenv.ReadConfig(cfgFile, &cfg); err != nil {
			return nil, fmt.Errorf("config read %s: %w", cfgFile, err)
		}
		read = true
	}

	if !read {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, errors.Wrap(err, "failed to read environment")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "failed to validate settings")
	}

	return &cfg, nil
}

// Validate fills defaults for zero values and rejects invalid settings.
func (s *Settings) Validate() error {
	s.BucketName = strings.TrimSpace(s.BucketName)

	if s.LinkExpiration == 0 {
		s.LinkExpiration = DefaultLinkExpiration
	}
	if s.LinkExpiration < 0 || s.LinkExpiration > MaxLinkExpiration {
		return fmt.Errorf("S3_LINK_EXPIRATION must be between 1 and %d seconds, got %d", MaxLinkExpiration, s.LinkExpiration)
	}

	if err := s.Storage.Validate(); err != nil {
		return errors.Wrap(err, "storage validation")
	}
	if err := s.Server.Validate(); err != nil {
		return errors.Wrap(err, "server validation")
	}
	if err := s.Listing.Validate(); err != nil {
		return errors.Wrap(err, "listing validation")
	}
	if err := s.Ledger.Validate(); err != nil {
		return errors.Wrap(err, "ledger validation")
	}
	if err := s.Upload.Validate(); err != nil {
		return errors.Wrap(err, "upload validation")
	}
	return nil
}

// LinkTTL returns the presigned link lifetime.
func (s *Settings) LinkTTL() time.Duration {
	return time.Duration(s.LinkExpiration) * time.Second
}

func (s *Storage) Validate() error {
	s.Endpoint = strings.TrimSpace(s.Endpoint)
	for _, scheme := range []string{"https://", "http://"} {
		if strings.HasPrefix(s.Endpoint, scheme) {
			s.UseSSL = scheme == "https://"
			s.Endpoint = strings.TrimPrefix(s.Endpoint, scheme)
		}
	}
	s.Endpoint = strings.TrimSuffix(s.Endpoint, "/")
	if (s.AccessKeyID == "") != (s.SecretAccessKey == "") {
		return errors.New("access key id and secret access key must be set together")
	}
	if s.BufferSize <= 0 {
		s.BufferSize = DefaultBufferSize
	}
	return nil
}

func (s *Server) Validate() error {
	s.Mode = strings.ToLower(strings.TrimSpace(s.Mode))
	if s.Mode == "" {
		s.Mode = DefaultServerMode
	}
	if s.Port == 0 {
		s.Port = DefaultServerPort
	}
	switch s.Mode {
	case DefaultServerMode:
	case ServerModeHTTPS:
		if s.CertFile == "" || s.KeyFile == "" {
			return errors.New("https mode requires cert_file and key_file")
		}
	default:
		return fmt.Errorf("unknown server mode %q", s.Mode)
	}
	return nil
}

func (l *Listing) Validate() error {
	if l.PageSize <= 0 {
		l.PageSize = DefaultPageSize
	}
	if l.PresignWorkers == 0 {
		l.PresignWorkers = DefaultPresignWorkers
	}
	return nil
}

func (l *Ledger) Validate() error {
	l.Backend = strings.ToLower(strings.TrimSpace(l.Backend))
	switch l.Backend {
	case "":
		l.Backend = LedgerMemory
	case LedgerMemory, LedgerNone:
	case LedgerSQLite:
		if l.DSN == "" {
			return errors.New("sqlite ledger requires a dsn")
		}
	default:
		return fmt.Errorf("unknown ledger backend %q", l.Backend)
	}
	if l.Limit <= 0 {
		l.Limit = DefaultLedgerLimit
	}
	return nil
}

func (u *Upload) Validate() error {
	if u.MaxBodyBytes <= 0 {
		u.MaxBodyBytes = DefaultMaxBodyBytes
	}
	fields := u.RequiredFields[:0]
	for _, f := range u.RequiredFields {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	u.RequiredFields = fields
	return nil
}

// Files is a flag.Value collecting repeated -config flags.
type Files []string

func (c *Files) String() string {
	return strings.Join(*c, ",")
}

// Set appends a new configuration file to the Files
func (c *Files) Set(value string) error {
	*c = append(*c, value)
	return nil
}

func (s *Settings) ToYAML() ([]byte, error) {
	raw, err := yaml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode into yaml: %w", err)
	}
	return raw, nil
}

// ToBytes returns a serialized representation of the settings.
func (s *Settings) ToBytes() ([]byte, error) {
	return s.ToYAML()
}
