//go:build !frozen

package resource

// DefaultMode is ModeLive unless built with -tags frozen.
const DefaultMode = ModeLive
