package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateConfig checks that the loaded configuration carries everything the
// server needs to start. Redis settings are not required: the rate limiter
// degrades to a no-op without them.
func ValidateConfig(cfg *Config) error {
	var errors []string

	required := map[string]string{
		"server_port": cfg.ServerPort,
		"db_host":     cfg.DBHost,
		"db_port":     cfg.DBPort,
		"db_user":     cfg.DBUser,
		"db_password": cfg.DBPassword,
		"db_name":     cfg.DBName,
		"jwt_secret":  cfg.JWTSecret,
	}

	for name, value := range required {
		if value == "" {
			errors = append(errors, fmt.Sprintf("required setting %s is not set", name))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errors, "\n"))
	}

	return nil
}
