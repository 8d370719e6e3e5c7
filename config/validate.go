package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var storageBackends = map[string]struct{}{
	"memory":  {},
	"leveldb": {},
	"bolt":    {},
}

// Validate checks the configuration for values the node cannot start with.
func (c *Config) Validate() error {
	if _, ok := storageBackends[c.StorageBackend]; !ok {
		return fmt.Errorf("StorageBackend %q must be one of memory, leveldb, bolt", c.StorageBackend)
	}
	if c.StorageBackend != "memory" && strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("DataDir required for %s storage", c.StorageBackend)
	}
	if recipient := strings.TrimSpace(c.ProtocolRecipient); recipient != "" && !common.IsHexAddress(recipient) {
		return fmt.Errorf("ProtocolRecipient %q is not a hex address", recipient)
	}
	if c.RPC.RateLimitPerSec < 0 || c.RPC.RateLimitBurst < 0 {
		return fmt.Errorf("rpc: rate limits must not be negative")
	}
	if c.RPC.RateLimitPerSec > 0 && c.RPC.RateLimitBurst == 0 {
		return fmt.Errorf("rpc: RateLimitBurst required when RateLimitPerSec is set")
	}
	if strings.TrimSpace(c.Webhook.URL) != "" && strings.TrimSpace(c.Webhook.SecretEnv) == "" {
		return fmt.Errorf("webhook: SecretEnv required when URL is set")
	}
	return nil
}

// ProtocolRecipientAddress parses ProtocolRecipient, returning the zero
// address when unset.
func (c *Config) ProtocolRecipientAddress() common.Address {
	if !common.IsHexAddress(strings.TrimSpace(c.ProtocolRecipient)) {
		return common.Address{}
	}
	return common.HexToAddress(strings.TrimSpace(c.ProtocolRecipient))
}

// Secret reads the environment variable named by envName.
func Secret(envName string) string {
	envName = strings.TrimSpace(envName)
	if envName == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(envName))
}
