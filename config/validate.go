package config

import (
	"fmt"
	"strings"

	"nftmarket/crypto"
)

// Validate checks the loaded configuration before the service starts. The fee
// sinks are optional; when set they must be well-formed bech32 addresses.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil configuration")
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return fmt.Errorf("config: DataDir must not be empty")
	}
	if cfg.StakeTokenSupply == 0 {
		return fmt.Errorf("config: StakeTokenSupply must be positive")
	}
	for _, sink := range []struct {
		name  string
		value string
	}{
		{"StakingSink", cfg.StakingSink},
		{"TeamSink", cfg.TeamSink},
	} {
		if strings.TrimSpace(sink.value) == "" {
			continue
		}
		if _, err := crypto.DecodeAddress(sink.value); err != nil {
			return fmt.Errorf("config: invalid %s: %w", sink.name, err)
		}
	}
	return nil
}
