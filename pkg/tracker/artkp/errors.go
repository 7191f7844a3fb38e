// Package artkp is the native ARToolKitPlus tracker backend.
// It is only functional when built with -tags artoolkitplus, and libARToolKitPlus installed.
package artkp

import "errors"

var ErrNotBuilt = errors.New("ARToolKitPlus support was not compiled in (build with -tags artoolkitplus)")
