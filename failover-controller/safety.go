package main

import (
	"errors"
	"fmt"
)

// ValidateTopology guards against configurations that would make a failover
// harmful: promoting the instance that is already the primary, or checking
// an instance without an identifier.
func ValidateTopology(cfg FailoverConfig) error {
	// 1. Both sides must be named
	if cfg.Primary.Identifier == "" || cfg.Secondary.Identifier == "" {
		return errors.New("primary and secondary identifiers are required")
	}

	// 2. The replica must be a different instance than the primary
	if cfg.Primary.Identifier == cfg.Secondary.Identifier && cfg.Primary.Region == cfg.Secondary.Region {
		return fmt.Errorf("primary and secondary are the same instance %s", cfg.Primary)
	}

	// 3. Someone has to hear about a failover
	if cfg.AlertDestination == "" {
		return errors.New("alert destination is required")
	}

	return nil
}
