package guard

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// DefaultDashboardRoutes are the routes that may be replaced by the welcome
// page.
var DefaultDashboardRoutes = []string{"home", "dashboard"}

// Counter counts workspace content.
type Counter interface {
	CountFlows(ctx context.Context, tenant string) (int64, error)
	CountExecutions(ctx context.Context, tenant string) (int64, error)
}

// WelcomeChecker decides whether a workspace is empty enough to show the
// welcome page.
type WelcomeChecker struct {
	counter   Counter
	dashboard map[string]struct{}
}

// NewWelcomeChecker uses DefaultDashboardRoutes when routes is empty.
func NewWelcomeChecker(counter Counter, routes ...string) *WelcomeChecker {
	if len(routes) == 0 {
		routes = DefaultDashboardRoutes
	}
	w := &WelcomeChecker{counter: counter, dashboard: make(map[string]struct{}, len(routes))}
	for _, r := range routes {
		w.dashboard[r] = struct{}{}
	}
	return w
}

func (w *WelcomeChecker) IsDashboardRoute(name string) bool {
	_, ok := w.dashboard[name]
	return ok
}

// ShouldShowWelcome is true when tenant has neither flows nor executions.
func (w *WelcomeChecker) ShouldShowWelcome(ctx context.Context, tenant string) (bool, error) {
	var flows, executions int64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := w.counter.CountFlows(gctx, tenant)
		flows = n
		return err
	})
	g.Go(func() error {
		n, err := w.counter.CountExecutions(gctx, tenant)
		executions = n
		return err
	})
	if err := g.Wait(); err != nil {
		return false, fmt.Errorf("[guard ShouldShowWelcome] %w", err)
	}
	return flows == 0 && executions == 0, nil
}
