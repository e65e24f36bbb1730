package engine

import (
	"github.com/spaghettifunk/neuranim/engine/config"
)

type ApplicationConfig struct {
	// The application name used in logs.
	Name   string
	Config *config.Config
}
