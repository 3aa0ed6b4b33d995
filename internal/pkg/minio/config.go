package minio

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config represents the configuration for MinIO client
type Config struct {
	// Endpoint is the S3-compatible object storage endpoint, host[:port]
	Endpoint string

	AccessKeyID     string
	SecretAccessKey string

	// SessionToken is the session token for temporary credentials (optional)
	SessionToken string

	// Region is the region of the object storage (optional)
	Region string

	// UseSSL determines whether to use HTTPS (true) or HTTP (false)
	UseSSL bool

	// Bucket is the container downloads are read from
	Bucket string

	// RequestTimeout bounds a single download
	// Default: 30 seconds
	RequestTimeout time.Duration
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("minio: endpoint is required")
	}

	if c.AccessKeyID == "" {
		return errors.New("minio: access key ID is required")
	}

	if c.SecretAccessKey == "" {
		return errors.New("minio: secret access key is required")
	}

	return nil
}

// SetDefaults sets default values for unspecified configuration fields
func (c *Config) SetDefaults() {
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		UseSSL:         true,
		RequestTimeout: 30 * time.Second,
	}
}

// ParseConnectionString builds a Config from a semicolon separated
// key=value string, e.g.
//
//	Endpoint=minio:9000;AccessKey=k;SecretKey=s;UseSSL=false;Region=us-east-1
//
// Keys are case-insensitive. UseSSL defaults to true.
func ParseConnectionString(conn string) (*Config, error) {
	cfg := DefaultConfig()

	for _, part := range strings.Split(conn, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("minio: malformed connection string segment %q", part)
		}
		value = strings.TrimSpace(value)

		switch strings.ToLower(strings.TrimSpace(key)) {
		case "endpoint":
			cfg.Endpoint = value
		case "accesskey", "accesskeyid":
			cfg.AccessKeyID = value
		case "secretkey", "secretaccesskey":
			cfg.SecretAccessKey = value
		case "sessiontoken":
			cfg.SessionToken = value
		case "region":
			cfg.Region = value
		case "usessl":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return nil, fmt.Errorf("minio: invalid UseSSL value %q", value)
			}
			cfg.UseSSL = b
		default:
			return nil, fmt.Errorf("minio: unknown connection string key %q", key)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
