package padsp

/*------------------------------------------------------------------
 *
 * Purpose: Allocation group (C8) — the reference engine tracks a
 *	flat list of malloc'd blocks per stream/host API so a failed
 *	multi-step Open can free everything acquired so far in one
 *	call. Go has no manual frees to track, so AllocationGroup
 *	instead tracks a list of release closures (backend handles,
 *	opened files, spawned goroutines to stop) and runs them in
 *	reverse acquisition order, the same rollback-on-partial-failure
 *	guarantee in an idiomatic Go shape.
 *
 *---------------------------------------------------------------*/

// AllocationGroup collects cleanup actions for a sequence of acquisition
// steps so that a failure partway through can unwind everything already
// acquired. Zero value is ready to use.
type AllocationGroup struct {
	releases []func()
	released bool
}

// Defer registers a cleanup action to run, in LIFO order, if Release is
// called before Commit.
func (g *AllocationGroup) Defer(release func()) {
	g.releases = append(g.releases, release)
}

// Commit discards the group's release list without running it, marking
// every acquired resource as successfully adopted by the caller.
func (g *AllocationGroup) Commit() {
	g.releases = nil
}

// Release runs every registered cleanup in reverse order. Safe to call
// more than once; only the first call has an effect. Intended to be
// deferred immediately after constructing the group so a panic or an
// early return during Open still unwinds partial state.
func (g *AllocationGroup) Release() {
	if g.released {
		return
	}
	g.released = true
	for i := len(g.releases) - 1; i >= 0; i-- {
		g.releases[i]()
	}
	g.releases = nil
}
