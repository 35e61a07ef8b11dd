package main

import (
	"fmt"

	"github.com/muurk/origctl/internal/config"
	"github.com/muurk/origctl/internal/transport"
)

// linkOptions describes how the daemon reaches the earbuds
type linkOptions struct {
	Transport string
	Channel   int
	Port      string
	Relay     string
}

// linkFromDevice returns the link stored for a device, with defaults
func linkFromDevice(dev *config.Device) linkOptions {
	link := linkOptions{
		Transport: config.TransportRFCOMM,
		Channel:   config.DefaultChannel,
	}
	if dev == nil {
		return link
	}
	if dev.Transport != "" {
		link.Transport = dev.Transport
	}
	if dev.Channel > 0 {
		link.Channel = dev.Channel
	}
	link.Port = dev.SerialPort
	link.Relay = dev.RelayURL
	return link
}

// apply records the link on the device entry
func (l linkOptions) apply(dev *config.Device) {
	dev.Transport = l.Transport
	dev.Channel = l.Channel
	dev.SerialPort = l.Port
	dev.RelayURL = l.Relay
}

// newDialer builds the transport dialer for the link
func newDialer(l linkOptions) (transport.Dialer, error) {
	switch l.Transport {
	case config.TransportRFCOMM:
		if l.Channel < 1 || l.Channel > 30 {
			return nil, fmt.Errorf("invalid RFCOMM channel %d (must be 1-30)", l.Channel)
		}
		return transport.NewRFCOMMDialer(uint8(l.Channel)), nil
	case config.TransportSerial:
		if l.Port == "" {
			return nil, fmt.Errorf("--port is required for the serial transport")
		}
		return transport.NewSerialDialer(l.Port), nil
	case config.TransportWebSocket:
		if l.Relay == "" {
			return nil, fmt.Errorf("--relay is required for the websocket transport")
		}
		return transport.NewWebSocketDialer(l.Relay), nil
	default:
		return nil, fmt.Errorf("unknown transport %q (want %s, %s or %s)", l.Transport,
			config.TransportRFCOMM, config.TransportSerial, config.TransportWebSocket)
	}
}

// usesHostBluetooth reports whether BlueZ sees the same link as the dialer
func (l linkOptions) usesHostBluetooth() bool {
	return l.Transport == config.TransportRFCOMM || l.Transport == config.TransportSerial
}
