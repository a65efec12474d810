// Package config loads environment-driven configuration.
//
// Config structs declare their variables with env struct tags:
//
//	type Config struct {
//		Addresses []string `env:"OPENSEARCH_ADDRESSES,required" envSeparator:","`
//		Username  string   `env:"OPENSEARCH_USERNAME,notEmpty"`
//	}
//
// Load reads a .env file once, parses each config type once and serves
// copies from a cache. NewLogger builds the zap logger the other packages
// accept through their SetLogger functions, controlled by LOG_LEVEL and
// LOG_FORMAT (json or console).
package config
