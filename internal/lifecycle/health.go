package lifecycle

import (
	"context"
	"fmt"

	"github.com/MrWong99/voiced/internal/health"
)

// Checkers returns one health.Checker per built component, each probing
// IsAvailable on demand. Pass the result to health.New to serve /readyz
// (§4.3 phase 4 health gate, surfaced at runtime as well as at startup).
func (m *Manager) Checkers() []health.Checker {
	m.mu.RLock()
	defer m.mu.RUnlock()

	checkers := make([]health.Checker, 0, len(m.components))
	for kind, inst := range m.components {
		kind, inst := kind, inst
		checkers = append(checkers, health.Checker{
			Name: string(kind),
			Check: func(ctx context.Context) error {
				if !instanceHealthy(ctx, inst) {
					return fmt.Errorf("component %q reports unavailable", kind)
				}
				return nil
			},
		})
	}
	return checkers
}
