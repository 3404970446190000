//go:build linux

package capture

import (
	"errors"
	"fmt"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/afpacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/callwatch/internal/core"
	"firestige.xyz/callwatch/internal/log"
)

const defaultRingBufferMB = 8

type afpacketOptions struct {
	BufferSizeMB int `mapstructure:"buffer_size_mb"`
}

// afpacketSource reads from a TPACKET_V3 ring. Filters are compiled by
// libpcap and attached to the socket as raw BPF.
type afpacketSource struct {
	handle  *afpacket.TPacket
	snapLen int
}

func openAFPacket(cfg Config, filter string) (Source, error) {
	opts := afpacketOptions{BufferSizeMB: defaultRingBufferMB}
	if err := decodeOptions(cfg.Options, &opts); err != nil {
		return nil, fmt.Errorf("%w: afpacket options: %v", core.ErrDeviceOpen, err)
	}

	frameSize, blockSize, numBlocks, err := ringLayout(opts.BufferSizeMB, cfg.SnapLen, os.Getpagesize())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrDeviceOpen, err)
	}

	handle, err := afpacket.NewTPacket(
		afpacket.OptInterface(cfg.Device),
		afpacket.OptFrameSize(frameSize),
		afpacket.OptBlockSize(blockSize),
		afpacket.OptNumBlocks(numBlocks),
		afpacket.OptPollTimeout(cfg.Timeout),
		afpacket.SocketRaw,
		afpacket.TPacketVersion3,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrDeviceOpen, cfg.Device, err)
	}

	s := &afpacketSource{handle: handle, snapLen: cfg.SnapLen}
	if err := s.SetFilter(filter); err != nil {
		handle.Close()
		return nil, err
	}

	logger := log.GetLogger().WithFields(map[string]interface{}{
		"device":     cfg.Device,
		"frame_size": frameSize,
		"block_size": blockSize,
		"num_blocks": numBlocks,
	})
	if cfg.Promiscuous {
		logger.Warn("afpacket backend does not enable promiscuous mode")
	}
	logger.Info("afpacket capture opened")
	return s, nil
}

func (s *afpacketSource) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	data, ci, err := s.handle.ReadPacketData()
	switch {
	case err == nil:
		return data, ci, nil
	case errors.Is(err, afpacket.ErrTimeout):
		return nil, ci, core.ErrTimeout
	default:
		return nil, ci, fmt.Errorf("afpacket read: %w", err)
	}
}

func (s *afpacketSource) LinkType() layers.LinkType {
	return layers.LinkTypeEthernet
}

func (s *afpacketSource) SetFilter(expr string) error {
	raw, err := compileRawBPF(layers.LinkTypeEthernet, s.snapLen, expr)
	if err != nil {
		return err
	}
	if err := s.handle.SetBPF(raw); err != nil {
		return fmt.Errorf("%w: %q: %v", core.ErrFilterInvalid, expr, err)
	}
	return nil
}

func (s *afpacketSource) Live() bool { return true }

func (s *afpacketSource) Close() {
	s.handle.Close()
}
