package tracker

import "errors"

// ErrSetup is the one failure kind raised by the tracker bridge itself.
// It covers invalid pattern geometry, and matrix accessors that receive nothing from the tracker.
var ErrSetup = errors.New("Tracker setup failed")

var ErrClosed = errors.New("Tracker is closed")
var ErrNotInitialized = errors.New("Tracker has not been initialized")
var ErrInitFailed = errors.New("Tracker initialization failed")
var ErrBadFrame = errors.New("Image size does not match tracker camera size")
