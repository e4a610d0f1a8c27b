package main

import (
	"fmt"
	"log"
	"os"

	"github.com/midwork-finds-jobs/frozenlake-commoncrawl/crawl"
	"github.com/midwork-finds-jobs/frozenlake-commoncrawl/lake"
	"github.com/midwork-finds-jobs/frozenlake-commoncrawl/metrics"
	"gopkg.in/yaml.v3"
)

// Access modes for the remote source.
const (
	ModeAuto = "auto"
	ModeS3   = "s3"
	ModeHTTP = "http"
)

// Default file prefixes per transport.
const (
	defaultHTTPPrefix = "https://data.commoncrawl.org/"
	defaultS3Prefix   = "s3://commoncrawl/"
)

// AppConfig represents the application configuration.
type AppConfig struct {
	Service struct {
		Name        string `yaml:"name"`
		Environment string `yaml:"environment"`
	} `yaml:"service"`

	Source struct {
		// Mode selects the ingest transport: "auto", "s3", or "http".
		// auto uses s3 when AWS credentials are present and falls back
		// to the public, rate-limited HTTP transport otherwise.
		Mode string `yaml:"mode"`

		IndexURL     string `yaml:"index_url"`     // collinfo endpoint
		DataURL      string `yaml:"data_url"`      // HTTPS data endpoint
		S3Prefix     string `yaml:"s3_prefix"`     // s3:// file prefix
		CollinfoPath string `yaml:"collinfo_path"` // local override file

		AWSAccessKeyID     string `yaml:"aws_access_key_id"`
		AWSSecretAccessKey string `yaml:"aws_secret_access_key"`
		AWSRegion          string `yaml:"aws_region"`
	} `yaml:"source"`

	DuckLake struct {
		CatalogPath string `yaml:"catalog_path"`
		CatalogName string `yaml:"catalog_name"`
		DataPath    string `yaml:"data_path"`
	} `yaml:"ducklake"`

	Ingest struct {
		ThrottleWaitSeconds int `yaml:"throttle_wait_seconds"`
		ProgressInterval    int `yaml:"progress_interval"`
	} `yaml:"ingest"`

	Metrics metrics.Config `yaml:"metrics"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// Transport is the resolved access mode: the file prefix every relative
// path is joined to, plus S3 credentials when the s3 transport is active.
type Transport struct {
	Mode       string
	FilePrefix string
	S3         *lake.S3Credentials
}

// LoadAppConfig loads configuration from a YAML file. Environment
// variables in the file are expanded. An empty path yields the defaults,
// which cover the public Common Crawl endpoints.
func LoadAppConfig(path string) (*AppConfig, error) {
	var config AppConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	config.ApplyDefaults()
	return &config, nil
}

// ApplyDefaults sets default values for every unset field except the
// catalog path, which depends on the resolved transport.
func (c *AppConfig) ApplyDefaults() {
	if c.Service.Name == "" {
		c.Service.Name = "frozenlake-commoncrawl"
	}
	if c.Source.Mode == "" {
		c.Source.Mode = ModeAuto
	}
	if c.Source.IndexURL == "" {
		c.Source.IndexURL = crawl.DefaultCollinfoURL
	}
	if c.Source.DataURL == "" {
		c.Source.DataURL = defaultHTTPPrefix
	}
	if c.Source.S3Prefix == "" {
		c.Source.S3Prefix = defaultS3Prefix
	}
	if c.Source.CollinfoPath == "" {
		c.Source.CollinfoPath = crawl.DefaultCollinfoOverride
	}
	if c.DuckLake.CatalogName == "" {
		c.DuckLake.CatalogName = "commoncrawl"
	}
	if c.DuckLake.DataPath == "" {
		// DuckLake requires a DATA_PATH even though this pipeline only
		// registers external files and never writes its own.
		c.DuckLake.DataPath = "tmp_always_empty"
	}
	if c.Ingest.ThrottleWaitSeconds == 0 {
		c.Ingest.ThrottleWaitSeconds = 300
	}
	if c.Ingest.ProgressInterval == 0 {
		c.Ingest.ProgressInterval = 10
	}
	c.Metrics.ApplyDefaults()
}

// Validate checks the configuration.
func (c *AppConfig) Validate() error {
	switch c.Source.Mode {
	case ModeAuto, ModeS3, ModeHTTP:
	default:
		return fmt.Errorf("source.mode must be one of auto, s3, http (got %q)", c.Source.Mode)
	}
	if c.Ingest.ThrottleWaitSeconds < 0 {
		return fmt.Errorf("ingest.throttle_wait_seconds must be positive")
	}
	return nil
}

// ResolveTransport decides the effective access mode. Missing credentials
// under explicit s3 mode are a fatal condition, detected before any
// connection is opened.
func (c *AppConfig) ResolveTransport() (*Transport, error) {
	keyID := c.Source.AWSAccessKeyID
	secret := c.Source.AWSSecretAccessKey
	if keyID == "" {
		keyID = os.Getenv("AWS_ACCESS_KEY_ID")
	}
	if secret == "" {
		secret = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
	haveCreds := keyID != "" && secret != ""

	mode := c.Source.Mode
	if mode == ModeAuto {
		if haveCreds {
			mode = ModeS3
		} else {
			log.Println("[config] No AWS credentials found, using public HTTP transport (rate-limited)")
			mode = ModeHTTP
		}
	}

	switch mode {
	case ModeS3:
		if !haveCreds {
			return nil, fmt.Errorf("s3 mode requires AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY")
		}
		return &Transport{
			Mode:       ModeS3,
			FilePrefix: c.Source.S3Prefix,
			S3: &lake.S3Credentials{
				KeyID:  keyID,
				Secret: secret,
				Region: c.Source.AWSRegion,
			},
		}, nil
	case ModeHTTP:
		return &Transport{Mode: ModeHTTP, FilePrefix: c.Source.DataURL}, nil
	default:
		return nil, fmt.Errorf("unknown source mode %q", mode)
	}
}

// CatalogPath returns the configured catalog path, defaulting per
// transport so HTTP and S3 ingestion keep separate catalogs (their
// manifests record different absolute file locations).
func (c *AppConfig) CatalogPath(t *Transport) string {
	if c.DuckLake.CatalogPath != "" {
		return c.DuckLake.CatalogPath
	}
	if t.Mode == ModeS3 {
		return "ducklake:commoncrawl_s3.ducklake"
	}
	return "ducklake:commoncrawl.ducklake"
}
