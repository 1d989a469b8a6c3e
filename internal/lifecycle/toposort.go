package lifecycle

import (
	"fmt"
	"strings"

	"github.com/MrWong99/voiced/internal/config"
)

// cycleError reports a dependency cycle among the enabled component kinds.
type cycleError struct {
	path []config.ComponentKind
}

func (e cycleError) Error() string {
	names := make([]string, len(e.path))
	for i, k := range e.path {
		names[i] = string(k)
	}
	return fmt.Sprintf("dependency cycle: %s", strings.Join(names, " -> "))
}

// topoLevels returns the enabled component kinds in dependency order,
// grouped into levels: every kind in level N depends only on kinds in
// levels < N, so all kinds within one level can be constructed
// concurrently. Ties within a level are broken by [config.AllKinds]'s
// declared order for determinism (§4.3).
func topoLevels(enabled map[config.ComponentKind]config.ComponentCfg) ([][]config.ComponentKind, error) {
	remaining := make(map[config.ComponentKind]bool, len(enabled))
	for k := range enabled {
		remaining[k] = true
	}

	var levels [][]config.ComponentKind
	for len(remaining) > 0 {
		var level []config.ComponentKind
		for _, kind := range config.AllKinds {
			if !remaining[kind] {
				continue
			}
			ready := true
			for _, dep := range enabled[kind].DependsOnComponents {
				if remaining[dep] {
					ready = false
					break
				}
			}
			if ready {
				level = append(level, kind)
			}
		}
		if len(level) == 0 {
			return nil, cycleError{path: cyclePath(remaining, enabled)}
		}
		for _, kind := range level {
			delete(remaining, kind)
		}
		levels = append(levels, level)
	}
	return levels, nil
}

// cyclePath returns an arbitrary chain of still-unresolved kinds for a
// readable cycle error.
func cyclePath(remaining map[config.ComponentKind]bool, enabled map[config.ComponentKind]config.ComponentCfg) []config.ComponentKind {
	var path []config.ComponentKind
	seen := map[config.ComponentKind]bool{}
	for k := range remaining {
		cur := k
		for !seen[cur] {
			seen[cur] = true
			path = append(path, cur)
			deps := enabled[cur].DependsOnComponents
			var next config.ComponentKind
			found := false
			for _, d := range deps {
				if remaining[d] {
					next = d
					found = true
					break
				}
			}
			if !found {
				break
			}
			cur = next
		}
		break
	}
	return path
}

// reverseKinds returns kinds in reverse order, flattening levels, for
// best-effort shutdown (§4.3 phase teardown: reverse construction order).
func reverseKinds(levels [][]config.ComponentKind) []config.ComponentKind {
	var flat []config.ComponentKind
	for _, level := range levels {
		flat = append(flat, level...)
	}
	reversed := make([]config.ComponentKind, len(flat))
	for i, k := range flat {
		reversed[len(flat)-1-i] = k
	}
	return reversed
}
