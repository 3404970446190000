// Package core defines the shared frame type and sentinel errors, with zero external dependencies.
package core

import "errors"

// Sentinel errors. Call sites wrap them with %w; callers match with errors.Is.
var (
	// Setup errors
	ErrNoSuchDevice        = errors.New("callwatch: no such capture device")
	ErrDeviceOpen          = errors.New("callwatch: capture device open failed")
	ErrFilterInvalid       = errors.New("callwatch: invalid capture filter")
	ErrUnsupportedLinkType = errors.New("callwatch: unsupported link type")

	// Capture integrity errors
	ErrNotUDP = errors.New("callwatch: captured frame is not UDP")

	// Not an error condition for the capture loop: no packet arrived within the read timeout.
	ErrTimeout = errors.New("callwatch: capture read timeout")

	// Configuration errors
	ErrConfigInvalid = errors.New("callwatch: invalid configuration")
)
