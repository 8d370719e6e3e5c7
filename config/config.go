package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the supernoded node configuration.
type Config struct {
	ListenAddress     string  `toml:"ListenAddress"`
	Environment       string  `toml:"Environment"`
	DataDir           string  `toml:"DataDir"`
	StorageBackend    string  `toml:"StorageBackend"`
	GenesisFile       string  `toml:"GenesisFile"`
	JournalDSN        string  `toml:"JournalDSN"`
	ProtocolRecipient string  `toml:"ProtocolRecipient"`
	Logging           Logging `toml:"logging"`
	RPC               RPC     `toml:"rpc"`
	Webhook           Webhook `toml:"webhook"`
	Pauses            Pauses  `toml:"pauses"`
}

// Default returns the configuration written for a fresh node.
func Default() *Config {
	cfg := &Config{
		ListenAddress:  ":8545",
		Environment:    "local",
		DataDir:        "./supernode-data",
		StorageBackend: "leveldb",
		JournalDSN:     "file:supernode-data/journal.db",
		Logging: Logging{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
		RPC: RPC{
			AuthTokenEnv:    "SUPERNODE_RPC_TOKEN",
			JWTSecretEnv:    "SUPERNODE_JWT_SECRET",
			RateLimitPerSec: 20,
			RateLimitBurst:  40,
			AllowedOrigins:  []string{},
			ReadTimeout:     Duration{15 * time.Second},
			WriteTimeout:    Duration{15 * time.Second},
			ShutdownTimeout: Duration{10 * time.Second},
		},
		Webhook: Webhook{
			SecretEnv: "SUPERNODE_WEBHOOK_SECRET",
			Events:    []string{},
		},
	}
	return cfg
}

// Load reads the configuration at path, writing the default file first when
// it does not exist. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	def := Default()
	if strings.TrimSpace(c.ListenAddress) == "" {
		c.ListenAddress = def.ListenAddress
	}
	if strings.TrimSpace(c.StorageBackend) == "" {
		c.StorageBackend = def.StorageBackend
	}
	c.StorageBackend = strings.ToLower(strings.TrimSpace(c.StorageBackend))
	if c.RPC.AllowedOrigins == nil {
		c.RPC.AllowedOrigins = []string{}
	}
	if c.RPC.ShutdownTimeout.Duration <= 0 {
		c.RPC.ShutdownTimeout = def.RPC.ShutdownTimeout
	}
	if c.RPC.ReadTimeout.Duration <= 0 {
		c.RPC.ReadTimeout = def.RPC.ReadTimeout
	}
	if c.RPC.WriteTimeout.Duration <= 0 {
		c.RPC.WriteTimeout = def.RPC.WriteTimeout
	}
}

// ResolveGenesisPath returns the genesis path relative to the config file.
func (c *Config) ResolveGenesisPath(configPath string) string {
	genesis := strings.TrimSpace(c.GenesisFile)
	if genesis == "" || filepath.IsAbs(genesis) {
		return genesis
	}
	return filepath.Join(filepath.Dir(configPath), genesis)
}

func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
