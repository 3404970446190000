package capture

import (
	"errors"
	"fmt"
	"io"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"firestige.xyz/callwatch/internal/core"
	"firestige.xyz/callwatch/internal/log"
)

type pcapOptions struct {
	BufferSizeMB int  `mapstructure:"buffer_size_mb"`
	Immediate    bool `mapstructure:"immediate"`
}

// pcapSource reads from a libpcap handle, live or offline.
type pcapSource struct {
	handle *pcap.Handle
	live   bool
}

func openPcap(cfg Config, filter string) (Source, error) {
	var opts pcapOptions
	if err := decodeOptions(cfg.Options, &opts); err != nil {
		return nil, fmt.Errorf("%w: pcap options: %v", core.ErrDeviceOpen, err)
	}

	inactive, err := pcap.NewInactiveHandle(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrDeviceOpen, cfg.Device, err)
	}
	defer inactive.CleanUp()

	if err := inactive.SetSnapLen(cfg.SnapLen); err != nil {
		return nil, fmt.Errorf("%w: snap_len: %v", core.ErrDeviceOpen, err)
	}
	if err := inactive.SetPromisc(cfg.Promiscuous); err != nil {
		return nil, fmt.Errorf("%w: promiscuous: %v", core.ErrDeviceOpen, err)
	}
	if err := inactive.SetTimeout(cfg.Timeout); err != nil {
		return nil, fmt.Errorf("%w: timeout: %v", core.ErrDeviceOpen, err)
	}
	if opts.BufferSizeMB > 0 {
		if err := inactive.SetBufferSize(opts.BufferSizeMB * 1024 * 1024); err != nil {
			return nil, fmt.Errorf("%w: buffer_size_mb: %v", core.ErrDeviceOpen, err)
		}
	}
	if opts.Immediate {
		if err := inactive.SetImmediateMode(true); err != nil {
			return nil, fmt.Errorf("%w: immediate: %v", core.ErrDeviceOpen, err)
		}
	}

	handle, err := inactive.Activate()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrDeviceOpen, cfg.Device, err)
	}

	s := &pcapSource{handle: handle, live: true}
	if err := s.SetFilter(filter); err != nil {
		handle.Close()
		return nil, err
	}

	log.GetLogger().WithFields(map[string]interface{}{
		"device":    cfg.Device,
		"snap_len":  cfg.SnapLen,
		"timeout":   cfg.Timeout,
		"link_type": handle.LinkType(),
	}).Info("pcap capture opened")
	return s, nil
}

// OpenFile opens a pcap file for offline replay with filter applied.
func OpenFile(path, filter string) (Source, error) {
	handle, err := pcap.OpenOffline(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrDeviceOpen, path, err)
	}

	s := &pcapSource{handle: handle}
	if err := s.SetFilter(filter); err != nil {
		handle.Close()
		return nil, err
	}

	log.GetLogger().WithField("file", path).Info("pcap file opened")
	return s, nil
}

func (s *pcapSource) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	data, ci, err := s.handle.ReadPacketData()
	switch {
	case err == nil:
		return data, ci, nil
	case errors.Is(err, pcap.NextErrorTimeoutExpired):
		return nil, ci, core.ErrTimeout
	case errors.Is(err, io.EOF):
		return nil, ci, io.EOF
	default:
		return nil, ci, fmt.Errorf("pcap read: %w", err)
	}
}

func (s *pcapSource) LinkType() layers.LinkType {
	return s.handle.LinkType()
}

func (s *pcapSource) SetFilter(expr string) error {
	if err := s.handle.SetBPFFilter(expr); err != nil {
		return fmt.Errorf("%w: %q: %v", core.ErrFilterInvalid, expr, err)
	}
	return nil
}

func (s *pcapSource) Live() bool { return s.live }

func (s *pcapSource) Close() {
	s.handle.Close()
}
