package isa

import (
	"fmt"
	"strings"
)

// DeviceType identifies the target GPU.
type DeviceType uint8

const (
	DeviceCapeVerde DeviceType = iota
	DevicePitcairn
	DeviceTahiti
	DeviceOland
	DeviceBonaire
	DeviceSpectre
	DeviceSpooky
	DeviceKalindi
	DeviceHainan
	DeviceHawaii
)

// Generation is the GCN hardware generation of a device.
type Generation uint8

const (
	GCN1 Generation = iota
	GCN11
)

var deviceNames = map[string]DeviceType{
	"capeverde": DeviceCapeVerde,
	"pitcairn":  DevicePitcairn,
	"tahiti":    DeviceTahiti,
	"oland":     DeviceOland,
	"bonaire":   DeviceBonaire,
	"spectre":   DeviceSpectre,
	"spooky":    DeviceSpooky,
	"kalindi":   DeviceKalindi,
	"hainan":    DeviceHainan,
	"hawaii":    DeviceHawaii,
}

var deviceStrings = map[DeviceType]string{
	DeviceCapeVerde: "capeverde",
	DevicePitcairn:  "pitcairn",
	DeviceTahiti:    "tahiti",
	DeviceOland:     "oland",
	DeviceBonaire:   "bonaire",
	DeviceSpectre:   "spectre",
	DeviceSpooky:    "spooky",
	DeviceKalindi:   "kalindi",
	DeviceHainan:    "hainan",
	DeviceHawaii:    "hawaii",
}

// ParseDevice resolves a device name from the CLI or a config file.
func ParseDevice(name string) (DeviceType, error) {
	if d, ok := deviceNames[strings.ToLower(name)]; ok {
		return d, nil
	}
	return 0, fmt.Errorf("unknown device type: %s", name)
}

func (d DeviceType) String() string {
	if s, ok := deviceStrings[d]; ok {
		return s
	}
	return "unknown"
}

// Gen returns the hardware generation of the device.
func (d DeviceType) Gen() Generation {
	switch d {
	case DeviceBonaire, DeviceSpectre, DeviceSpooky, DeviceKalindi, DeviceHawaii:
		return GCN11
	default:
		return GCN1
	}
}
