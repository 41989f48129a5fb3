package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load fills cfg from environment variables declared with `env` tags.
//
//	type Config struct {
//	    HTTPPort   int    `env:"STOREFRONT_HTTP_PORT" envDefault:"8090"`
//	    BackendURL string `env:"BACKEND_URL,required"`
//	}
func Load(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
