package server

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"socket-file-drop/internal/store"
)

// DefaultConfigPath is read when SFD_CONFIG is not set.
const DefaultConfigPath = "settings/config.yml"

// Config is resolved once at startup and not modified afterwards.
type Config struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	StaticRoot   string        `yaml:"static_folder"`
	UploadRoot   string        `yaml:"upload_folder"`
	Token        string        `yaml:"token"`
	Debug        bool          `yaml:"debug"`
	BinaryBodies bool          `yaml:"binary_bodies"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WatchUploads bool          `yaml:"watch_uploads"`
	DatabaseURL  string        `yaml:"database_url"`

	MirrorConfig store.MirrorConfig `yaml:"mirror"`

	// TokenHash is the SHA-256 hex digest of Token. Cookies are compared
	// against it verbatim.
	TokenHash string `yaml:"-"`

	// Optional collaborators, wired by main.
	Mirror store.Mirror `yaml:"-"`
	Audit  AuditRecorder `yaml:"-"`
	Logger *Logger       `yaml:"-"`
}

// DefaultConfig returns the settings used when nothing overrides them.
func DefaultConfig() Config {
	return Config{
		Host:       "127.0.0.1",
		Port:       8080,
		StaticRoot: "static",
		UploadRoot: "static/upload",
	}
}

// Addr is the host:port the listener binds to.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// HashToken returns the hex SHA-256 digest handed out in the token cookie.
func HashToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

// envOverrides maps environment variables onto config keys.
var envOverrides = []struct {
	env string
	key string
}{
	{"SFD_HOST", "host"},
	{"SFD_PORT", "port"},
	{"SFD_STATIC_ROOT", "static_folder"},
	{"SFD_UPLOAD_ROOT", "upload_folder"},
	{"SFD_TOKEN", "token"},
	{"SFD_DEBUG", "debug"},
	{"SFD_BINARY_BODIES", "binary_bodies"},
	{"SFD_READ_TIMEOUT", "read_timeout"},
	{"SFD_WATCH_UPLOADS", "watch_uploads"},
	{"DATABASE_URL", "database_url"},
	{"SFD_S3_ENDPOINT", "mirror.endpoint"},
	{"SFD_S3_ACCESS_KEY", "mirror.access_key"},
	{"SFD_S3_SECRET_KEY", "mirror.secret_key"},
	{"SFD_BUCKET", "mirror.bucket"},
	{"SFD_S3_PREFIX", "mirror.prefix"},
}

// LoadConfig layers the YAML file at path, the environment and the
// command-line key=value args over DefaultConfig, hashes the token and
// validates the result. A missing file is not an error.
func LoadConfig(path string, args []string) (Config, error) {
	cfg := DefaultConfig()

	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		if err := decodeStrict(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	var overrides []string
	for _, e := range envOverrides {
		if v := os.Getenv(e.env); v != "" {
			overrides = append(overrides, e.key+"="+v)
		}
	}
	if err := cfg.apply(overrides); err != nil {
		return cfg, fmt.Errorf("environment: %w", err)
	}
	if err := cfg.apply(args); err != nil {
		return cfg, fmt.Errorf("arguments: %w", err)
	}

	cfg.TokenHash = HashToken(cfg.Token)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// apply merges dotted key=value overrides such as "port=9000" or
// "mirror.bucket=drops". Values are typed the way YAML would type them.
func (c *Config) apply(overrides []string) error {
	if len(overrides) == 0 {
		return nil
	}
	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, o := range overrides {
		key, value, ok := strings.Cut(o, "=")
		if !ok || key == "" {
			return fmt.Errorf("override %q is not key=value", o)
		}
		setPath(root, strings.Split(key, "."), value)
	}
	b, err := yaml.Marshal(root)
	if err != nil {
		return err
	}
	return decodeStrict(b, c)
}

func setPath(m *yaml.Node, path []string, value string) {
	for i := 0; i < len(m.Content); i += 2 {
		if m.Content[i].Value != path[0] {
			continue
		}
		if len(path) == 1 {
			m.Content[i+1] = &yaml.Node{Kind: yaml.ScalarNode, Value: value}
			return
		}
		if m.Content[i+1].Kind != yaml.MappingNode {
			m.Content[i+1] = &yaml.Node{Kind: yaml.MappingNode}
		}
		setPath(m.Content[i+1], path[1:], value)
		return
	}

	key := &yaml.Node{Kind: yaml.ScalarNode, Value: path[0]}
	var val *yaml.Node
	if len(path) == 1 {
		val = &yaml.Node{Kind: yaml.ScalarNode, Value: value}
	} else {
		val = &yaml.Node{Kind: yaml.MappingNode}
		setPath(val, path[1:], value)
	}
	m.Content = append(m.Content, key, val)
}

func decodeStrict(b []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
