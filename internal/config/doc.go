// Package config handles configuration loading for commons.
//
// # Configuration File
//
// Default location (in order):
//
//  1. Path from COMMONS_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/commons/commons.yaml
//  3. ~/.config/commons/commons.yaml
//
// Files ending in .toml are decoded as TOML. Anything else is YAML.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${COMMONS_JWT_SECRET}"
//
// Unset variables expand to the empty string.
//
// # Example
//
//	server:
//	  http_addr: "localhost:8080"
//
//	database:
//	  driver: "sqlite"          # sqlite, sqlite3, postgres, memory
//	  path: "~/.local/share/commons/commons.db"
//
//	auth:
//	  jwt_secret: "${COMMONS_JWT_SECRET}"
//	  session_ttl: "24h"
//	  bcrypt_cost: 10
//
//	bootstrap:
//	  username: "SUPERADMIN"
//	  password: "${COMMONS_ADMIN_PASSWORD}"
//
//	logging:
//	  level: "info"
//	  format: "text"
//
// # Validation
//
// Load applies defaults and then rejects unknown drivers, missing database
// paths or DSNs, JWT secrets shorter than MinJWTSecretLength and bcrypt
// costs outside 4..31.
package config
