package connectivity

import (
	"context"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

// Probe текущая доступность сети. Результат не кэшируется, каждый вызов проверяет заново.
type Probe interface {
	IsOnline(ctx context.Context) bool
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingProbe проверяет доступность удаленного хранилища пингом с таймаутом
type PingProbe struct {
	Target  Pinger
	Timeout time.Duration
}

func NewPingProbe(target Pinger, timeout time.Duration) *PingProbe {
	return &PingProbe{Target: target, Timeout: timeout}
}

func (p *PingProbe) IsOnline(ctx context.Context) bool {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	if err := p.Target.PingContext(ctx); err != nil {
		log.WithField("err", err).Debug("Удаленное хранилище недоступно")
		return false
	}
	return true
}

// Static переключаемый вручную признак сети: принудительный офлайн-режим и тесты
type Static struct {
	online atomic.Bool
}

func NewStatic(online bool) *Static {
	s := &Static{}
	s.online.Store(online)
	return s
}

func (s *Static) Set(online bool) {
	s.online.Store(online)
}

func (s *Static) IsOnline(context.Context) bool {
	return s.online.Load()
}
