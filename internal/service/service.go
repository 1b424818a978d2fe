// Package service is the operation layer of the planning engine. It
// orchestrates series generation, update-scope propagation, the
// coverage cascade, and the expiry sweep over the persistence layer.
package service

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nhle/newsroom-planning/internal/cascade"
	"github.com/nhle/newsroom-planning/internal/model"
	"github.com/nhle/newsroom-planning/internal/notify"
	"github.com/nhle/newsroom-planning/internal/scope"
	"github.com/nhle/newsroom-planning/internal/store"
)

// Service exposes the engine operations.
type Service struct {
	store    store.Store
	cfg      model.Config
	log      *logrus.Logger
	pub      notify.Publisher
	cascade  *cascade.Cascade
	resolver *scope.Resolver

	// now is swappable for deterministic tests.
	now func() time.Time
}

// New builds a Service. A nil logger falls back to the standard logger
// and a nil publisher discards notifications.
func New(st store.Store, cfg model.Config, log *logrus.Logger, pub notify.Publisher) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if pub == nil {
		pub = notify.NopPublisher{}
	}
	return &Service{
		store:    st,
		cfg:      cfg,
		log:      log,
		pub:      pub,
		cascade:  cascade.New(st, st, cfg, log),
		resolver: scope.NewResolver(st, cfg, log),
		now:      time.Now,
	}
}

// SetClock overrides the service clock.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}
