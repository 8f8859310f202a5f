// Package config assembles server configuration from defaults, environment
// variables and command-line flags, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/damacus/bucketview/internal/services"
	"github.com/damacus/bucketview/internal/tree"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

const (
	BackendS3     = "s3"
	BackendMemory = "memory"
)

type Config struct {
	// Store
	Backend      string
	Region       string
	AccessKey    string
	SecretKey    string
	SessionToken string
	Bucket       string
	Endpoint     string
	Secure       string // "", "true" or "false"; empty derives from the endpoint

	// HTTP surface
	ListenAddr   string
	PublicURL    string
	APIToken     string
	AllowOrigins []string
	AdminUsage   bool

	// Tree builder and cache
	MaxDepth       int
	MaxConcurrency int
	ListTimeout    time.Duration
	Strict         bool
	CacheTTL       time.Duration
	CacheEntries   int

	CapabilityTTL     time.Duration
	MemoryStoreSecret string
	LogLevel          string
}

// Default returns the configuration used before env and flags are applied
func Default() *Config {
	return &Config{
		Backend:        BackendS3,
		Endpoint:       "s3.amazonaws.com",
		ListenAddr:     ":8080",
		AllowOrigins:   []string{"*"},
		MaxDepth:       tree.DefaultMaxDepth,
		MaxConcurrency: tree.DefaultMaxConcurrency,
		ListTimeout:    tree.DefaultListTimeout,
		CacheTTL:       5 * time.Second,
		CacheEntries:   tree.DefaultCacheEntries,
		CapabilityTTL:  time.Hour,
		LogLevel:       "info",
	}
}

// Load applies environment variables over the defaults, then parses args.
// Flags win over the environment.
func Load(args []string) (*Config, error) {
	c := Default()
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	fs := c.Flags()
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return c, nil
}

// Flags binds every option to a flag set
func (c *Config) Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("bucketview", pflag.ContinueOnError)
	fs.StringVar(&c.Backend, "backend", c.Backend, "Object store backend: 's3' or 'memory'.")
	fs.StringVar(&c.Region, "region", c.Region, "Store region (AWS_REGION).")
	fs.StringVar(&c.Bucket, "bucket", c.Bucket, "Bucket name (AWS_BUCKET_NAME).")
	fs.StringVar(&c.Endpoint, "endpoint", c.Endpoint, "S3 endpoint host[:port] (S3_ENDPOINT).")
	fs.StringVar(&c.Secure, "secure", c.Secure, "Force TLS to the endpoint: 'true' or 'false'. Empty derives it from the endpoint.")
	fs.StringVar(&c.ListenAddr, "listen", c.ListenAddr, "Address to serve HTTP on.")
	fs.StringVar(&c.PublicURL, "public-url", c.PublicURL, "External base URL of this server, used in memory backend capability URLs.")
	fs.StringSliceVar(&c.AllowOrigins, "cors-allow-origins", c.AllowOrigins, "Origins allowed to call the API from a browser.")
	fs.BoolVar(&c.AdminUsage, "admin-usage", c.AdminUsage, "Serve /usage from the MinIO admin API.")
	fs.IntVar(&c.MaxDepth, "tree-max-depth", c.MaxDepth, "Deepest folder level expanded when building a tree.")
	fs.IntVar(&c.MaxConcurrency, "tree-max-concurrency", c.MaxConcurrency, "Maximum in-flight listing calls per tree build.")
	fs.DurationVar(&c.ListTimeout, "tree-list-timeout", c.ListTimeout, "Timeout for each listing call. Negative disables it.")
	fs.BoolVar(&c.Strict, "tree-strict", c.Strict, "Fail the whole tree when any sub-listing fails.")
	fs.DurationVar(&c.CacheTTL, "tree-cache-ttl", c.CacheTTL, "How long built trees are reused. 0 disables the cache.")
	fs.IntVar(&c.CacheEntries, "tree-cache-max-entries", c.CacheEntries, "Maximum number of cached tree roots; the oldest are evicted first.")
	fs.DurationVar(&c.CapabilityTTL, "capability-ttl", c.CapabilityTTL, "Lifetime of issued capability URLs.")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level: debug, info, warn or error.")
	return fs
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}
	str("STORE_BACKEND", &c.Backend)
	str("AWS_REGION", &c.Region)
	str("AWS_ACCESS_KEY", &c.AccessKey)
	str("AWS_SECRET_ACCESS_KEY", &c.SecretKey)
	str("AWS_SESSION_TOKEN", &c.SessionToken)
	str("AWS_BUCKET_NAME", &c.Bucket)
	str("S3_ENDPOINT", &c.Endpoint)
	str("S3_SECURE", &c.Secure)
	str("LISTEN_ADDR", &c.ListenAddr)
	str("PUBLIC_URL", &c.PublicURL)
	str("API_TOKEN", &c.APIToken)
	str("MEMORY_STORE_SECRET", &c.MemoryStoreSecret)
	str("LOG_LEVEL", &c.LogLevel)
	if v, ok := lookup("CORS_ALLOW_ORIGINS"); ok && v != "" {
		c.AllowOrigins = splitList(v)
	}

	var errs []error
	integer := func(name string, dst *int) {
		if v, ok := lookup(name); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = n
		}
	}
	duration := func(name string, dst *time.Duration) {
		if v, ok := lookup(name); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := lookup(name); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = b
		}
	}
	integer("TREE_MAX_DEPTH", &c.MaxDepth)
	integer("TREE_MAX_CONCURRENCY", &c.MaxConcurrency)
	duration("TREE_LIST_TIMEOUT", &c.ListTimeout)
	boolean("TREE_STRICT", &c.Strict)
	duration("TREE_CACHE_TTL", &c.CacheTTL)
	integer("TREE_CACHE_MAX_ENTRIES", &c.CacheEntries)
	duration("CAPABILITY_TTL", &c.CapabilityTTL)
	boolean("ADMIN_USAGE", &c.AdminUsage)
	return errors.Join(errs...)
}

// Validate reports every problem at once so a misconfigured deployment can be
// fixed in one pass.
func (c *Config) Validate() error {
	var errs []error
	switch c.Backend {
	case BackendS3:
		var missing []string
		for _, req := range []struct{ name, value string }{
			{"AWS_REGION", c.Region},
			{"AWS_ACCESS_KEY", c.AccessKey},
			{"AWS_SECRET_ACCESS_KEY", c.SecretKey},
			{"AWS_BUCKET_NAME", c.Bucket},
		} {
			if req.value == "" {
				missing = append(missing, req.name)
			}
		}
		if len(missing) > 0 {
			errs = append(errs, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", ")))
		}
	case BackendMemory:
		if c.AdminUsage {
			errs = append(errs, errors.New("--admin-usage requires the s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("--backend must be %q or %q, got %q", BackendS3, BackendMemory, c.Backend))
	}

	if c.Secure != "" {
		if _, err := strconv.ParseBool(c.Secure); err != nil {
			errs = append(errs, fmt.Errorf("--secure must be 'true' or 'false', got %q", c.Secure))
		}
	}
	if c.MaxDepth < 1 {
		errs = append(errs, fmt.Errorf("--tree-max-depth must be >= 1, got %d", c.MaxDepth))
	}
	if c.MaxConcurrency < 1 {
		errs = append(errs, fmt.Errorf("--tree-max-concurrency must be >= 1, got %d", c.MaxConcurrency))
	}
	if c.CacheTTL < 0 {
		errs = append(errs, fmt.Errorf("--tree-cache-ttl must not be negative, got %s", c.CacheTTL))
	}
	if c.CacheEntries < 1 {
		errs = append(errs, fmt.Errorf("--tree-cache-max-entries must be >= 1, got %d", c.CacheEntries))
	}
	if c.CapabilityTTL <= 0 || c.CapabilityTTL > 7*24*time.Hour {
		errs = append(errs, fmt.Errorf("--capability-ttl must be between 1s and 168h, got %s", c.CapabilityTTL))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("--log-level: %w", err))
	}
	return errors.Join(errs...)
}

// Credentials returns the store connection settings
func (c *Config) Credentials() services.Credentials {
	creds := services.Credentials{
		Endpoint:     c.Endpoint,
		Region:       c.Region,
		AccessKey:    c.AccessKey,
		SecretKey:    c.SecretKey,
		SessionToken: c.SessionToken,
	}
	if b, err := strconv.ParseBool(c.Secure); err == nil {
		creds.Secure = &b
	}
	return creds
}

// TreeOptions returns the builder bounds
func (c *Config) TreeOptions() tree.Options {
	return tree.Options{
		MaxDepth:       c.MaxDepth,
		MaxConcurrency: c.MaxConcurrency,
		ListTimeout:    c.ListTimeout,
		Strict:         c.Strict,
	}
}

// BaseURL is PublicURL, or a localhost URL derived from ListenAddr
func (c *Config) BaseURL() string {
	if c.PublicURL != "" {
		return strings.TrimSuffix(c.PublicURL, "/")
	}
	addr := c.ListenAddr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr
}

// Log writes the effective configuration with secrets redacted
func (c *Config) Log(logger zerolog.Logger) {
	logger.Info().
		Str("backend", c.Backend).
		Str("region", c.Region).
		Str("bucket", c.Bucket).
		Str("endpoint", c.Endpoint).
		Str("listen", c.ListenAddr).
		Str("public_url", c.BaseURL()).
		Bool("api_token", c.APIToken != "").
		Bool("admin_usage", c.AdminUsage).
		Int("tree_max_depth", c.MaxDepth).
		Int("tree_max_concurrency", c.MaxConcurrency).
		Dur("tree_list_timeout", c.ListTimeout).
		Bool("tree_strict", c.Strict).
		Dur("tree_cache_ttl", c.CacheTTL).
		Int("tree_cache_max_entries", c.CacheEntries).
		Dur("capability_ttl", c.CapabilityTTL).
		Msg("configuration loaded")
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
