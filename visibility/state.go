package visibility

import (
	"strings"

	"github.com/pkg/errors"
)

// ErrUnknownState is returned when a visibility state can not be parsed.
var ErrUnknownState = errors.New("unknown visibility state")

// State is the visibility state of the hosting page.
type State uint8

const (
	// Visible means that the page is shown to the user.
	Visible State = iota
	// Hidden means that the page is in a background tab, minimized or otherwise not shown.
	Hidden
	// Prerender means that the page is being rendered but was not shown yet.
	Prerender
)

// IsVisible returns true if the state allows scheduled work to run.
func (s State) IsVisible() bool {
	return s == Visible
}

func (s State) String() string {
	switch s {
	case Visible:
		return "visible"
	case Hidden:
		return "hidden"
	case Prerender:
		return "prerender"
	default:
		return "unknown"
	}
}

// ParseState parses the textual representation of a State (case-insensitive).
func ParseState(value string) (State, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "visible":
		return Visible, nil
	case "hidden":
		return Hidden, nil
	case "prerender":
		return Prerender, nil
	default:
		return Hidden, errors.Wrapf(ErrUnknownState, "%q", value)
	}
}
