package export

// Guard accumulates restore actions for collaborator state that is
// toggled for the duration of an export (the host side flips modifier
// visibility and similar flags before sampling and must put them back on
// every exit path, success or failure).
//
// Restore runs the accumulated actions in reverse registration order and
// is idempotent, so it is safe to both defer it and call it explicitly.
type Guard struct {
	restores []func()
	done     bool
}

// Defer registers a restore action to run when the guard is restored.
func (g *Guard) Defer(f func()) {
	g.restores = append(g.restores, f)
}

// Restore runs all registered actions in reverse order, once.
func (g *Guard) Restore() {
	if g.done {
		return
	}
	g.done = true
	for i := len(g.restores) - 1; i >= 0; i-- {
		g.restores[i]()
	}
}
