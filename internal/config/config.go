// Package config wraps viper.Viper behind a small interface so the rest of
// the module depends on a concrete, test-friendly type rather than viper
// directly.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config wraps a *viper.Viper. The zero value (and New(nil)) is usable and
// returns zero values from every getter instead of panicking, so callers
// that construct a Config before configuration is loaded stay safe.
type Config struct {
	v *viper.Viper
}

// New wraps v. A nil v is accepted and behaves as an empty configuration.
func New(v *viper.Viper) *Config {
	return &Config{v: v}
}

func (c *Config) GetString(key string) string {
	if c.v == nil {
		return ""
	}
	return c.v.GetString(key)
}

func (c *Config) GetInt(key string) int {
	if c.v == nil {
		return 0
	}
	return c.v.GetInt(key)
}

func (c *Config) GetBool(key string) bool {
	if c.v == nil {
		return false
	}
	return c.v.GetBool(key)
}

func (c *Config) GetDuration(key string) time.Duration {
	if c.v == nil {
		return 0
	}
	return c.v.GetDuration(key)
}

func (c *Config) IsSet(key string) bool {
	if c.v == nil {
		return false
	}
	return c.v.IsSet(key)
}

// Sub returns the configuration rooted at key. It never returns nil: a
// missing or non-map key yields an empty Config so callers can chain
// getters without a nil check.
func (c *Config) Sub(key string) *Config {
	if c.v == nil {
		return New(nil)
	}
	sub := c.v.Sub(key)
	if sub == nil {
		return New(viper.New())
	}
	return New(sub)
}

// Unmarshal decodes the whole configuration tree into target.
func (c *Config) Unmarshal(target interface{}) error {
	if c.v == nil {
		return nil
	}
	return c.v.Unmarshal(target)
}
