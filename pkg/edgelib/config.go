package edgelib

import (
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// #############################################################################
// # Defaults
// #############################################################################

const (
	DefaultPort          = 3000
	DefaultUpstream      = "127.0.0.1:8001"
	DefaultAPIPrefix     = "/api/"
	DefaultEntryDocument = "index.html"
	DefaultContentType   = "application/octet-stream"
	ServiceName          = "spa-edge"
)

var defaultMIMETypes = map[string]string{
	".html":        "text/html",
	".js":          "text/javascript",
	".mjs":         "text/javascript",
	".css":         "text/css",
	".json":        "application/json",
	".map":         "application/json",
	".webmanifest": "application/manifest+json",
	".png":         "image/png",
	".jpg":         "image/jpeg",
	".jpeg":        "image/jpeg",
	".gif":         "image/gif",
	".svg":         "image/svg+xml",
	".webp":        "image/webp",
	".ico":         "image/x-icon",
	".woff":        "font/woff",
	".woff2":       "font/woff2",
	".wasm":        "application/wasm",
	".txt":         "text/plain",
}

var defaultCSP = []string{
	"default-src 'self'",
	"img-src 'self' https://res.cloudinary.com https://quickchart.io data: blob:",
	"script-src 'self' 'unsafe-inline'",
	"style-src 'self' 'unsafe-inline'",
	"connect-src 'self' https://*.emergentagent.com https://duobuddy.my",
	"font-src 'self' data:",
	"base-uri 'self'",
	"form-action 'self'",
}

var defaultSecurityHeaders = []Header{
	{Name: "X-Content-Type-Options", Value: "nosniff"},
	{Name: "X-Frame-Options", Value: "DENY"},
	{Name: "X-XSS-Protection", Value: "1; mode=block"},
	{Name: "Referrer-Policy", Value: "strict-origin-when-cross-origin"},
}

// #############################################################################
// # Config
// #############################################################################

// Header is a single fixed response header.
type Header struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// Config is the edge server configuration. Use LoadConfig or Validated to get
// one; handlers keep their own Clone, so it is never mutated while serving.
type Config struct {
	Port               int               `yaml:"port"`
	StaticRoot         string            `yaml:"staticRoot"`
	EntryDocument      string            `yaml:"entryDocument"`
	Upstream           string            `yaml:"upstream"`
	APIPrefix          string            `yaml:"apiPrefix"`
	UpstreamKeepAlive  bool              `yaml:"upstreamKeepAlive"`
	UpstreamTimeout    time.Duration     `yaml:"upstreamTimeout"`
	MIMETypes          map[string]string `yaml:"mimeTypes"`
	DefaultContentType string            `yaml:"defaultContentType"`
	CSP                []string          `yaml:"csp"`
	SecurityHeaders    []Header          `yaml:"securityHeaders"`
	HealthPath         string            `yaml:"healthPath"`
	LogRequests        bool              `yaml:"logRequests"`
}

// DefaultConfig returns the built-in configuration rooted at the working directory.
func DefaultConfig() *Config {
	root, err := os.Getwd()
	if err != nil {
		root = "."
	}

	mimeTypes := make(map[string]string, len(defaultMIMETypes))
	for ext, ct := range defaultMIMETypes {
		mimeTypes[ext] = ct
	}

	return &Config{
		Port:               DefaultPort,
		StaticRoot:         root,
		EntryDocument:      DefaultEntryDocument,
		Upstream:           DefaultUpstream,
		APIPrefix:          DefaultAPIPrefix,
		MIMETypes:          mimeTypes,
		DefaultContentType: DefaultContentType,
		CSP:                append([]string(nil), defaultCSP...),
		SecurityHeaders:    append([]Header(nil), defaultSecurityHeaders...),
		LogRequests:        true,
	}
}

// Overrides are command-line values applied on top of file and environment.
// Zero values leave the loaded setting untouched.
type Overrides struct {
	Port       int
	StaticRoot string
	Upstream   string
}

// LoadConfig builds the configuration from defaults, the optional YAML file at
// configPath, the PORT, STATIC_ROOT and UPSTREAM environment variables and
// finally overrides. The result is already validated.
// YAML mimeTypes extend the built-in table; csp and securityHeaders replace it.
func LoadConfig(configPath string, overrides Overrides) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		yamlFile, err := os.ReadFile(configPath)
		if err != nil {
			return nil, InvalidConfig.Wrap(err, "failed to read config file '%s'", configPath)
		}
		if err := yaml.Unmarshal(yamlFile, cfg); err != nil {
			return nil, InvalidConfig.Wrap(err, "syntax error in config file '%s'", configPath)
		}
		log.Printf("INFO: Loaded config from %s", configPath)
	}

	if portStr := os.Getenv("PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, InvalidConfig.New("invalid PORT '%s'", portStr)
		}
		cfg.Port = port
	}
	cfg.StaticRoot = getenv("STATIC_ROOT", cfg.StaticRoot)
	cfg.Upstream = getenv("UPSTREAM", cfg.Upstream)

	if overrides.Port != 0 {
		cfg.Port = overrides.Port
	}
	if overrides.StaticRoot != "" {
		cfg.StaticRoot = overrides.StaticRoot
	}
	if overrides.Upstream != "" {
		cfg.Upstream = overrides.Upstream
	}

	return cfg.Validated()
}

// Validated returns a normalized, validated copy of c. The receiver is left
// untouched and shares no maps or slices with the result.
func (c Config) Validated() (*Config, error) {
	v := c.Clone()

	if v.Port < 1 || v.Port > 65535 {
		return nil, InvalidConfig.New("port %d out of range", v.Port)
	}

	if _, _, err := net.SplitHostPort(v.Upstream); err != nil {
		return nil, InvalidConfig.Wrap(err, "upstream must be host:port, got '%s'", v.Upstream)
	}

	if !strings.HasPrefix(v.APIPrefix, "/") || !strings.HasSuffix(v.APIPrefix, "/") {
		return nil, InvalidConfig.New("api prefix must start and end with '/', got '%s'", v.APIPrefix)
	}

	if v.EntryDocument == "" {
		v.EntryDocument = DefaultEntryDocument
	}
	if v.DefaultContentType == "" {
		v.DefaultContentType = DefaultContentType
	}

	root, err := filepath.Abs(v.StaticRoot)
	if err != nil {
		return nil, InvalidConfig.Wrap(err, "static root '%s'", v.StaticRoot)
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	v.StaticRoot = root

	info, err := os.Stat(v.StaticRoot)
	if err != nil {
		return nil, InvalidConfig.Wrap(err, "static root '%s'", v.StaticRoot)
	}
	if !info.IsDir() {
		return nil, InvalidConfig.New("static root '%s' is not a directory", v.StaticRoot)
	}

	entry := filepath.Join(v.StaticRoot, v.EntryDocument)
	if entry == v.StaticRoot || !within(v.StaticRoot, entry) {
		return nil, InvalidConfig.New("entry document '%s' is not a file under the static root", v.EntryDocument)
	}

	if v.HealthPath != "" {
		if !strings.HasPrefix(v.HealthPath, "/") {
			return nil, InvalidConfig.New("health path must start with '/', got '%s'", v.HealthPath)
		}
		if Route(v.APIPrefix, v.HealthPath) == TargetProxy {
			return nil, InvalidConfig.New("health path '%s' is shadowed by api prefix '%s'", v.HealthPath, v.APIPrefix)
		}
	}

	// keys are matched against lowercased extensions
	normalized := make(map[string]string, len(v.MIMETypes))
	for ext, ct := range v.MIMETypes {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalized[ext] = ct
	}
	v.MIMETypes = normalized

	return v, nil
}

// Clone is a deep copy of c.
func (c *Config) Clone() *Config {
	v := *c
	v.MIMETypes = make(map[string]string, len(c.MIMETypes))
	for ext, ct := range c.MIMETypes {
		v.MIMETypes[ext] = ct
	}
	v.CSP = append([]string(nil), c.CSP...)
	v.SecurityHeaders = append([]Header(nil), c.SecurityHeaders...)
	return &v
}

// Addr is the listen address on all interfaces.
func (c *Config) Addr() string {
	return fmt.Sprintf("0.0.0.0:%d", c.Port)
}

// ContentType maps a file extension (with leading dot, any case) to its content type.
func (c *Config) ContentType(ext string) string {
	if ct, ok := c.MIMETypes[strings.ToLower(ext)]; ok {
		return ct
	}
	return c.DefaultContentType
}

// CSPHeader is the Content-Security-Policy value.
func (c *Config) CSPHeader() string {
	return strings.Join(c.CSP, "; ")
}

// HeaderSet is the full set of security headers decorated onto static responses.
func (c *Config) HeaderSet() []Header {
	headers := make([]Header, 0, len(c.SecurityHeaders)+1)
	if len(c.CSP) > 0 {
		headers = append(headers, Header{Name: "Content-Security-Policy", Value: c.CSPHeader()})
	}
	return append(headers, c.SecurityHeaders...)
}

func getenv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
