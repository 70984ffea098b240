// Package app arma el contenedor de dependencias que comparten los handlers.
package app

import (
	"github.com/varela-dev/multipass/internal/cache"
	"github.com/varela-dev/multipass/internal/config"
	"github.com/varela-dev/multipass/internal/oauth"
	"github.com/varela-dev/multipass/internal/rate"
	"github.com/varela-dev/multipass/internal/session"
	"github.com/varela-dev/multipass/internal/store/core"
	"github.com/varela-dev/multipass/internal/tenant"
)

type Container struct {
	Cfg      *config.Config
	Store    core.Repository
	Cache    cache.Client
	Engine   *oauth.Engine
	Guard    *oauth.Guard
	Resolver *tenant.Resolver
	Sessions *session.Manager
	Limiter  rate.Limiter
}
