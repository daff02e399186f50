// Package services is the explicit-builder service registry: the one
// place that lists every runtime.Factory the Kernel launches, in the
// teacher's registry idiom of naming dependencies up front rather than
// relying on reflection or package init() side effects.
package services

import (
	"github.com/hsiatein/helenium/internal/config"
	"github.com/hsiatein/helenium/internal/config/logger"
	"github.com/hsiatein/helenium/internal/hub"
	"github.com/hsiatein/helenium/internal/memory"
	"github.com/hsiatein/helenium/internal/runtime"
	"github.com/hsiatein/helenium/internal/scheduler"
	"github.com/hsiatein/helenium/internal/task"
	"github.com/hsiatein/helenium/internal/toolkit"
)

// Factories returns every service this build registers with the
// Kernel. Each Factory declares its own Deps; the Kernel computes
// launch order from the resulting graph, so entries below need not be
// listed in dependency order themselves.
//
// Config, Fs, Chat, Auth, Stats, User, and Webui are not yet wired: the
// Task and Toolkit services already Ask them as best-effort bus
// targets (see DESIGN.md §I/§J), so their absence degrades gracefully
// rather than blocking startup.
func Factories(cfg *config.Config, log logger.Logger) []runtime.Factory {
	return []runtime.Factory{
		hub.Factory(),
		scheduler.Factory(cfg, log),
		task.Factory(cfg, log),
		toolkit.Factory(cfg, log),
		memory.Factory(cfg, log),
	}
}
