package test

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Addr        string `envconfig:"CHAT_ADDR" default:"127.0.0.1:9077"`
	TokenSecret string `envconfig:"CHAT_TOKEN_SECRET" default:"integration-secret"`
	// CHAT_DEBUG enables debug-level logs during the scenario
	Debug bool `envconfig:"CHAT_DEBUG" default:"false"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
