// Package clipboard copies report text to the system clipboard.
package clipboard

import (
	"errors"

	cb "github.com/atotto/clipboard"
)

var ErrUnavailable = errors.New("no clipboard utility available (install xclip, xsel or wl-clipboard)")

// Available reports whether a clipboard backend was found at startup.
func Available() bool {
	return !cb.Unsupported
}

func Copy(text string) error {
	if !Available() {
		return ErrUnavailable
	}
	return cb.WriteAll(text)
}
