// Package modkit provides module wiring and core deps
package modkit

import (
	"seochecker/internal/modkit/repokit"
	"seochecker/internal/platform/config"
	"seochecker/internal/platform/logger"
	"seochecker/internal/platform/store"
)

// Deps holds what every module may need; PG is required, RDS is optional
type Deps struct {
	Log logger.Logger
	Cfg config.Conf
	PG  repokit.TxRunner
	RDS store.Redis
}
