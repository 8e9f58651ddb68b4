// Package config handles configuration loading for the techscore server.
//
// # Configuration File
//
// The file is found at:
//
//  1. Path from the TECHSCORE_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/techscore/techscore.yaml
//  3. ~/.config/techscore/techscore.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${TECHSCORE_JWT_SECRET}"
//
// Unset variables expand to the empty string.
//
// # Example
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//	  shutdown_timeout: "10s"
//
//	database:
//	  path: "/var/lib/techscore/techscore.db"
//
//	auth:
//	  jwt_secret: "${TECHSCORE_JWT_SECRET}"  # API tokens and webhook signing
//	  token_ttl: "720h"
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
//	webadmin:
//	  base_url: "https://scores.example.org"
//	  secure_cookies: true
//	  session_ttl: "168h"
//	  invite_ttl: "24h"
//
//	updates:
//	  enabled: true
//	  webhook_url: "https://public.example.org/hooks/techscore"
//	  interval: "5s"
//	  coalesce: "30s"
//	  timeout: "10s"
//	  batch_size: 50
//	  max_attempts: 5
//
//	scoring:
//	  team_boats: 3
//	  default_boat: "FJ"
//
// Durations use time.ParseDuration syntax. Missing values get defaults
// before Validate runs.
package config
