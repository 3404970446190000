package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelErrorsWrap(t *testing.T) {
	sentinels := []error{
		ErrNoSuchDevice,
		ErrDeviceOpen,
		ErrFilterInvalid,
		ErrUnsupportedLinkType,
		ErrNotUDP,
		ErrTimeout,
		ErrConfigInvalid,
	}

	for _, sentinel := range sentinels {
		t.Run(sentinel.Error(), func(t *testing.T) {
			wrapped := fmt.Errorf("context: %w", sentinel)
			if !errors.Is(wrapped, sentinel) {
				t.Errorf("errors.Is(%v, %v) = false", wrapped, sentinel)
			}
		})
	}
}

func TestSentinelErrorsDistinct(t *testing.T) {
	if errors.Is(ErrTimeout, ErrNotUDP) {
		t.Error("ErrTimeout must not match ErrNotUDP")
	}
	if errors.Is(ErrNoSuchDevice, ErrDeviceOpen) {
		t.Error("ErrNoSuchDevice must not match ErrDeviceOpen")
	}
}

func TestFrameZeroValue(t *testing.T) {
	var f Frame
	if f.SourcePort != 0 || f.Length != 0 {
		t.Errorf("expected zero frame, got %+v", f)
	}
	if !f.Timestamp.IsZero() {
		t.Errorf("expected zero timestamp, got %v", f.Timestamp)
	}
}
