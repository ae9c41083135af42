//go:build frozen

package resource

// DefaultMode is ModeFrozen in builds tagged "frozen", normally release builds.
const DefaultMode = ModeFrozen
