package capture

import (
	"fmt"
	"net"
	"strings"

	"github.com/google/gopacket/pcap"

	"firestige.xyz/callwatch/internal/core"
)

// Device is a capture-capable network interface.
type Device struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Addresses   []net.IP `json:"addresses,omitempty" yaml:"addresses,omitempty"`
	Loopback    bool     `json:"loopback" yaml:"loopback"`
}

// ListDevices enumerates the interfaces libpcap can open.
func ListDevices() ([]Device, error) {
	ifs, err := pcap.FindAllDevs()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}

	devs := make([]Device, 0, len(ifs))
	for _, itf := range ifs {
		d := Device{
			Name:        itf.Name,
			Description: itf.Description,
			Loopback:    isLoopbackName(itf.Name),
		}
		for _, addr := range itf.Addresses {
			d.Addresses = append(d.Addresses, addr.IP)
			if addr.IP.IsLoopback() {
				d.Loopback = true
			}
		}
		devs = append(devs, d)
	}
	return devs, nil
}

// ResolveDevice returns the named device, or picks a default when name is empty.
func ResolveDevice(name string) (Device, error) {
	devs, err := ListDevices()
	if err != nil {
		return Device{}, err
	}
	return resolveFrom(devs, name)
}

// resolveFrom prefers the first non-loopback device with an address, then
// any non-loopback device.
func resolveFrom(devs []Device, name string) (Device, error) {
	if name != "" {
		for _, d := range devs {
			if d.Name == name {
				return d, nil
			}
		}
		return Device{}, fmt.Errorf("%w: %q", core.ErrNoSuchDevice, name)
	}

	var fallback *Device
	for i, d := range devs {
		if d.Loopback || d.Name == "any" {
			continue
		}
		if len(d.Addresses) > 0 {
			return d, nil
		}
		if fallback == nil {
			fallback = &devs[i]
		}
	}
	if fallback != nil {
		return *fallback, nil
	}
	return Device{}, fmt.Errorf("%w: no usable capture device", core.ErrNoSuchDevice)
}

func isLoopbackName(name string) bool {
	return name == "lo" || name == "lo0" || strings.HasPrefix(name, "Loopback")
}
