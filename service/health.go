package service

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/chaos-io/cutout/util"
)

// Pinger is a remote dependency that can report whether it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthMonitor probes the registered models on a cron schedule and keeps
// the last result of each.
type HealthMonitor struct {
	timeout time.Duration
	cron    *cron.Cron

	mu     sync.RWMutex
	probes map[string]Pinger
	status map[string]bool
}

func NewHealthMonitor(timeout time.Duration) *HealthMonitor {
	return &HealthMonitor{
		timeout: timeout,
		cron:    cron.New(),
		probes:  make(map[string]Pinger),
		status:  make(map[string]bool),
	}
}

func (m *HealthMonitor) Register(name string, p Pinger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probes[name] = p
	m.status[name] = false
}

// Start runs one check right away and then on every tick of spec.
func (m *HealthMonitor) Start(spec string) error {
	if _, err := m.cron.AddFunc(spec, func() { m.Check(context.Background()) }); err != nil {
		return err
	}
	m.Check(context.Background())
	m.cron.Start()
	return nil
}

// Stop waits for a running check to finish.
func (m *HealthMonitor) Stop() {
	<-m.cron.Stop().Done()
}

func (m *HealthMonitor) Check(ctx context.Context) {
	m.mu.RLock()
	probes := maps.Clone(m.probes)
	m.mu.RUnlock()

	for name, p := range probes {
		pctx, cancel := context.WithTimeout(ctx, m.timeout)
		err := p.Ping(pctx)
		cancel()

		m.mu.Lock()
		prev := m.status[name]
		m.status[name] = err == nil
		m.mu.Unlock()

		switch {
		case err != nil && prev:
			util.Logger.Warn("model became unreachable", zap.String("model", name), zap.Error(err))
		case err == nil && !prev:
			util.Logger.Info("model reachable", zap.String("model", name))
		}
	}
}

// Status reports the last probe result per model.
func (m *HealthMonitor) Status() map[string]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.status)
}
