package resource

import (
	"strings"

	"github.com/keithlinneman/resource/internal/xerrors"
)

// Mode selects the backend a Loader uses.
type Mode uint8

const (
	// ModeDefault defers to DefaultMode, fixed by build tags.
	ModeDefault Mode = iota
	// ModeFrozen serves content embedded at build time.
	ModeFrozen
	// ModeLive reads content from disk and supports reloads.
	ModeLive
)

func (m Mode) String() string {
	switch m {
	case ModeFrozen:
		return "frozen"
	case ModeLive:
		return "live"
	case ModeDefault:
		return "default"
	default:
		return "unknown"
	}
}

// Resolve maps ModeDefault to DefaultMode.
func (m Mode) Resolve() Mode {
	if m == ModeDefault {
		return DefaultMode
	}
	return m
}

// ParseMode accepts the mode names used on the command line and in the
// environment. The empty string means ModeDefault.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default", "auto":
		return ModeDefault, nil
	case "frozen", "embedded", "static":
		return ModeFrozen, nil
	case "live", "file", "dynamic":
		return ModeLive, nil
	default:
		return ModeDefault, xerrors.Newf("%w %q (valid modes are frozen|live|default)", ErrUnknownMode, s)
	}
}
