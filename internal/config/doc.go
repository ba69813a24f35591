// Package config handles configuration loading for authgate.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from AUTHGATE_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/authgate/authgate.yaml
//  3. ~/.config/authgate/authgate.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	database:
//	  path: "${AUTHGATE_DB}"
//
// Syntax: ${VAR_NAME}
//
// # Configuration Sections
//
// Database:
//
//	database:
//	  path: "/var/lib/authgate/app.db"
//
// Guard policy:
//
//	auth:
//	  protect_last_admin: true  # refuse demoting the last remaining admin
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Validation
//
// Load() validates:
//
//   - Database path presence
//   - Logging level and format values
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load("/etc/authgate/authgate.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
