package types

import (
	"fmt"
	"time"
)

// Credentials holds the FAR API key material used to sign requests.
type Credentials struct {
	// PublicKey identifies the caller in the Authorization header.
	PublicKey string `json:"public_key" yaml:"public_key"`

	// PrivateKey is the HMAC signing secret. Never logged or echoed.
	PrivateKey string `json:"private_key,omitempty" yaml:"private_key,omitempty"`

	// DatabaseID selects the institutional database on the FAR side.
	DatabaseID string `json:"database_id" yaml:"database_id"`
}

// Validate reports ErrAuthConfig when any credential part is missing.
func (c Credentials) Validate() error {
	if c.PublicKey == "" {
		return fmt.Errorf("%w: missing public key", ErrAuthConfig)
	}
	if c.PrivateKey == "" {
		return fmt.Errorf("%w: missing private key", ErrAuthConfig)
	}
	if c.DatabaseID == "" {
		return fmt.Errorf("%w: missing database id", ErrAuthConfig)
	}
	return nil
}

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout (default 60s).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "faculty-sync/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`

	// MaxRetries is the number of retry attempts for transient failures (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// SyncConfig holds settings for the sync stage.
type SyncConfig struct {
	HTTPConfig `yaml:",inline"`

	// BaseURL is the FAR API root. Defaults to the hosted production
	// endpoint when empty.
	BaseURL string `json:"base_url" yaml:"base_url"`

	// PageSize is the number of records requested per page (default 100).
	PageSize int `json:"page_size" yaml:"page_size"`

	// Workers is the number of concurrent record processors
	// (default runtime.NumCPU()).
	Workers int `json:"workers" yaml:"workers"`

	// Prune controls whether activities absent from a fully fetched
	// section are deleted from the store after the sync.
	Prune bool `json:"prune" yaml:"prune"`
}

// StoreConfig holds connection pool settings for the SQLite store.
type StoreConfig struct {
	// MaxOpenConns caps concurrent connections (default 1).
	MaxOpenConns int `json:"max_open_conns" yaml:"max_open_conns"`

	// MaxIdleConns caps idle pooled connections (default MaxOpenConns).
	MaxIdleConns int `json:"max_idle_conns" yaml:"max_idle_conns"`

	// ConnMaxLifetime recycles connections older than this (0 = no limit).
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`

	// ConnMaxIdleTime closes connections idle longer than this (0 = no limit).
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time" yaml:"conn_max_idle_time"`
}

// ClassifyConfig holds settings for the keyword classification stage.
type ClassifyConfig struct {
	// Method names the scan recorded in identified_via (default "initial_scan").
	Method string `json:"method" yaml:"method"`

	// KeywordFile optionally replaces the built-in taxonomy with a YAML file.
	KeywordFile string `json:"keyword_file,omitempty" yaml:"keyword_file,omitempty"`

	// Intersection switches to the intersection taxonomy and records
	// matches under the "intersection_scan" method.
	Intersection bool `json:"intersection" yaml:"intersection"`
}
