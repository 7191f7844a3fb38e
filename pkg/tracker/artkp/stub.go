//go:build !artoolkitplus

package artkp

import "github.com/cyclopcam/implant/pkg/tracker"

// Available is false when the native tracker was not compiled in
const Available = false

func Open(setup tracker.Setup) (tracker.Backend, error) {
	return nil, ErrNotBuilt
}
