//go:build !linux

package capture

import (
	"fmt"

	"firestige.xyz/callwatch/internal/core"
)

func openAFPacket(cfg Config, _ string) (Source, error) {
	return nil, fmt.Errorf("%w: %s: afpacket backend requires linux", core.ErrDeviceOpen, cfg.Device)
}
