// Package kernelsvc implements the KernelService: the dependency-DAG
// engine that sequences every other service's startup and shutdown.
// Grounded on heleny-kernel/src/service/cal_deps.rs (DepsRelation:
// Kahn-order computation, prepare_cache/refresh_cache two-phase
// readiness tracking, cycle/missing-dependency detection) and
// heleny-kernel/src/service/handle_status.rs (the status-upload state
// machine). Secondary grounding for the Kahn-layering idiom:
// tab-fuku/internal/app/runner/runner.go's buildDependencyLayers.
package kernelsvc

import (
	"fmt"
	"sort"

	"github.com/hsiatein/helenium/internal/errors"
	"github.com/hsiatein/helenium/internal/runtime"
)

// depGraph is the static shape derived once from the factory list: who
// depends on whom, and a deterministic deps-first ordering.
type depGraph struct {
	names      []string
	deps       map[string][]string // name -> direct dependencies
	dependents map[string][]string // name -> direct dependents (reverse edges)
	order      []string            // Kahn order, dependencies before dependents
}

func buildDepGraph(factories []runtime.Factory) (*depGraph, error) {
	known := make(map[string]struct{}, len(factories))
	for _, f := range factories {
		known[f.Name] = struct{}{}
	}

	g := &depGraph{
		deps:       make(map[string][]string, len(factories)),
		dependents: make(map[string][]string, len(factories)),
	}

	for _, f := range factories {
		g.names = append(g.names, f.Name)
		g.deps[f.Name] = append([]string(nil), f.Deps...)

		for _, dep := range f.Deps {
			if _, ok := known[dep]; !ok {
				return nil, fmt.Errorf("%w: %s depends on unregistered %s", errors.ErrUnknownDependency, f.Name, dep)
			}
			g.dependents[dep] = append(g.dependents[dep], f.Name)
		}
	}

	order, err := kahnOrder(g.names, g.deps, g.dependents)
	if err != nil {
		return nil, err
	}
	g.order = order

	return g, nil
}

// kahnOrder computes a dependencies-first topological order. Ties are
// broken by name for determinism, since map iteration order in Go is
// randomized and the original Rust implementation iterates a BTreeMap.
func kahnOrder(names []string, deps, dependents map[string][]string) ([]string, error) {
	indegree := make(map[string]int, len(names))
	for _, n := range names {
		indegree[n] = len(deps[n])
	}

	var ready []string
	for _, n := range names {
		if indegree[n] == 0 {
			ready = append(ready, n)
		}
	}
	sort.Strings(ready)

	var order []string
	for len(ready) > 0 {
		sort.Strings(ready)
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)

		var unlocked []string
		for _, dep := range dependents[n] {
			indegree[dep]--
			if indegree[dep] == 0 {
				unlocked = append(unlocked, dep)
			}
		}
		sort.Strings(unlocked)
		ready = append(ready, unlocked...)
	}

	if len(order) != len(names) {
		stuck := make([]string, 0, len(names)-len(order))
		seen := make(map[string]bool, len(order))
		for _, n := range order {
			seen[n] = true
		}
		for _, n := range names {
			if !seen[n] {
				stuck = append(stuck, n)
			}
		}
		sort.Strings(stuck)
		return nil, fmt.Errorf("%w: %v", errors.ErrCyclicDependency, stuck)
	}

	return order, nil
}

// readinessCache tracks, per service, the set of prerequisites not yet
// satisfied. For init that set is unmet direct dependencies; for
// shutdown it is direct dependents not yet stopped. Both directions
// share the same prepare/refresh shape, mirroring DepsRelation's
// symmetric cal_deps.rs algorithm.
type readinessCache struct {
	waiting map[string]map[string]struct{}
}

func newReadinessCache(prereqs map[string][]string, all []string) *readinessCache {
	rc := &readinessCache{waiting: make(map[string]map[string]struct{}, len(all))}
	for _, n := range all {
		set := make(map[string]struct{}, len(prereqs[n]))
		for _, p := range prereqs[n] {
			set[p] = struct{}{}
		}
		rc.waiting[n] = set
	}
	return rc
}

// prepare returns the services with no unmet prerequisite at all —
// the first wave of candidates, in deterministic order.
func (rc *readinessCache) prepare() []string {
	var ready []string
	for n, set := range rc.waiting {
		if len(set) == 0 {
			ready = append(ready, n)
		}
	}
	sort.Strings(ready)
	return ready
}

// refresh records that `done` satisfied its obligation (became healthy,
// or stopped) and returns the services newly unblocked by that, in
// deterministic order. `done` itself is removed from the cache.
func (rc *readinessCache) refresh(done string) []string {
	delete(rc.waiting, done)

	var unlocked []string
	for n, set := range rc.waiting {
		if _, waiting := set[done]; waiting {
			delete(set, done)
			if len(set) == 0 {
				unlocked = append(unlocked, n)
			}
		}
	}
	sort.Strings(unlocked)
	return unlocked
}

func (rc *readinessCache) remaining() int {
	return len(rc.waiting)
}
