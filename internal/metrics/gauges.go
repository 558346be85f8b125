package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/agri-identity/agrigate/internal/cache"
	"github.com/agri-identity/agrigate/internal/logger"

	"go.uber.org/zap"
)

// GaugeStore is the subset of the store the gauge updater reads.
type GaugeStore interface {
	CountPendingAuthorizationRequests(ctx context.Context) (int64, error)
	CountActiveConsents(ctx context.Context) (int64, error)
}

const (
	gaugeKeyPending  = "gauge:auth_requests:pending"
	gaugeKeyConsents = "gauge:consents:active"
)

// GaugeUpdater refreshes database-derived gauges. Counts go through a
// shared cache so several server instances do not each hit the database on
// every tick.
type GaugeUpdater struct {
	store    GaugeStore
	loader   *cache.Loader[int64]
	recorder Recorder

	mu         sync.Mutex
	lastErrors map[string]time.Time
	errWindow  time.Duration
}

// NewGaugeUpdater creates an updater whose cached counts live for ttl.
func NewGaugeUpdater(store GaugeStore, c cache.Cache[int64], recorder Recorder, ttl time.Duration) *GaugeUpdater {
	return &GaugeUpdater{
		store:      store,
		loader:     cache.NewLoader(c, ttl),
		recorder:   recorder,
		lastErrors: make(map[string]time.Time),
		errWindow:  5 * time.Minute,
	}
}

// Update reads both counts and sets the gauges. Failures are counted and
// logged at most once per window per operation.
func (g *GaugeUpdater) Update(ctx context.Context) {
	pending, err := g.loader.Get(ctx, gaugeKeyPending, g.store.CountPendingAuthorizationRequests)
	if err != nil {
		g.fail("count_pending_auth_requests", err)
	} else {
		g.recorder.SetPendingAuthorizationRequests(pending)
	}

	active, err := g.loader.Get(ctx, gaugeKeyConsents, g.store.CountActiveConsents)
	if err != nil {
		g.fail("count_active_consents", err)
	} else {
		g.recorder.SetActiveConsents(active)
	}
}

func (g *GaugeUpdater) fail(operation string, err error) {
	g.recorder.RecordDatabaseQueryError(operation)

	g.mu.Lock()
	defer g.mu.Unlock()
	now := time.Now()
	if last, ok := g.lastErrors[operation]; ok && now.Sub(last) < g.errWindow {
		return
	}
	g.lastErrors[operation] = now
	logger.L().Warn("gauge query failed",
		logger.Op(operation),
		logger.Err(err),
		zap.Duration("suppressed_for", g.errWindow),
	)
}
