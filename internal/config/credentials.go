package config

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// Credentials resolves an API key from a TOML secret store first and the
// process environment second. Every Lookup re-reads both sources, so a key
// added while the server runs is picked up on the next turn.
type Credentials struct {
	secretsFile string
	key         string

	warnOnce sync.Once
}

// NewCredentials looks key up in secretsFile (TOML) and then in the env var of
// the same name.
func NewCredentials(secretsFile, key string) *Credentials {
	return &Credentials{secretsFile: secretsFile, key: key}
}

// Lookup implements generation.KeySource.
func (c *Credentials) Lookup() (string, bool) {
	if c == nil {
		return "", false
	}
	if v := c.fromSecretsFile(); v != "" {
		return v, true
	}
	if v := strings.TrimSpace(os.Getenv(c.key)); v != "" {
		return v, true
	}
	return "", false
}

// Source names where the key currently comes from, for startup logs.
func (c *Credentials) Source() string {
	if c.fromSecretsFile() != "" {
		return c.secretsFile
	}
	if strings.TrimSpace(os.Getenv(c.key)) != "" {
		return "env:" + c.key
	}
	return ""
}

// WarnIfMissing logs once when no key is configured.
func (c *Credentials) WarnIfMissing() {
	if _, ok := c.Lookup(); ok {
		return
	}
	c.warnOnce.Do(func() {
		log.Printf("[config] %s not found. Please set it in %s or as an environment variable.", c.key, c.secretsFile)
	})
}

func (c *Credentials) fromSecretsFile() string {
	if strings.TrimSpace(c.secretsFile) == "" {
		return ""
	}

	v := viper.New()
	v.SetConfigFile(c.secretsFile)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Printf("[config] read %s: %v", c.secretsFile, err)
		}
		return ""
	}
	return resolveEnvRef(strings.TrimSpace(v.GetString(c.key)))
}

// resolveEnvRef 支持在 secrets 文件里写 "${VAR}" 引用环境变量。
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		return strings.TrimSpace(os.Getenv(val[2 : len(val)-1]))
	}
	return val
}
