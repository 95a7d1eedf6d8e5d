// Package config loads and validates server configuration.
//
// Values come from defaults, then an optional bastion.yaml, then environment
// variables. Nested keys map to env vars by joining with an underscore:
//
//	SERVER_PORT                          server.port (default 8080)
//	SERVER_ENV                           server.env: development, production or test
//	CORS_ALLOWED_ORIGINS                 comma separated
//	CSRF_EXEMPT_PREFIXES                 comma separated (default /v1/auth/callback/)
//	RATELIMIT_STORE                      memory or redis
//	RATELIMIT_POLICIES_<NAME>_MAX_REQUESTS
//	RATELIMIT_POLICIES_<NAME>_WINDOW     Go duration, e.g. 15m
//	REDIS_ADDR, REDIS_PASSWORD, REDIS_DB
//	DB_ENABLED, DB_HOST, DB_PORT         SurrealDB event persistence
//	AUDIT_FILE_PATH                      rotated security event file
//	AUDIT_RETENTION                      age at which persisted events are purged (default 2160h)
//	JWT_PUBLIC_KEY_PATH, JWT_ISSUER
//
// Named policies beyond the defaults can only be added through the file:
//
//	ratelimit:
//	  policies:
//	    export:
//	      max_requests: 2
//	      window: 24h
//	      key: user
//
// Validate reports every problem at once.
package config
