package router

import (
	"sort"

	"user-api/internal/transport/http/ez"
)

// Module mounts its routes on an EZ group.
type Module interface{ Mount(ez.EZ) }

// Optional: lower mounts first. Modules without it count as 100.
type prioritizer interface{ Priority() int }

// Registry collects modules for one engine.
type Registry struct {
	mods []Module
}

func (r *Registry) Register(mods ...Module) {
	r.mods = append(r.mods, mods...)
}

// MountAll mounts every registered module in priority order; ties keep
// registration order.
func (r *Registry) MountAll(e ez.EZ) {
	mods := append([]Module(nil), r.mods...)
	sort.SliceStable(mods, func(i, j int) bool {
		return priorityOf(mods[i]) < priorityOf(mods[j])
	})
	for _, m := range mods {
		m.Mount(e)
	}
}

func priorityOf(v any) int {
	if p, ok := v.(prioritizer); ok {
		return p.Priority()
	}
	return 100
}
