package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidDevice is returned for malformed device descriptions
var ErrInvalidDevice = errors.New("invalid device")

// Device is an opaque target device description passed through to the remote service
type Device struct {
	Model       string `json:"model" yaml:"model"`
	Version     string `json:"version" yaml:"version"`
	Locale      string `json:"locale,omitempty" yaml:"locale,omitempty"`
	Orientation string `json:"orientation,omitempty" yaml:"orientation,omitempty"`
}

// ParseDevice parses a device given as model=..,version=..,locale=..,orientation=..
func ParseDevice(s string) (Device, error) {
	var d Device
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return Device{}, fmt.Errorf("%w: %q is not key=value", ErrInvalidDevice, part)
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "model":
			d.Model = value
		case "version":
			d.Version = value
		case "locale":
			d.Locale = value
		case "orientation":
			d.Orientation = value
		default:
			return Device{}, fmt.Errorf("%w: unknown key %q", ErrInvalidDevice, key)
		}
	}
	return d, nil
}

// String formats the device the way ParseDevice reads it
func (d Device) String() string {
	parts := []string{"model=" + d.Model, "version=" + d.Version}
	if d.Locale != "" {
		parts = append(parts, "locale="+d.Locale)
	}
	if d.Orientation != "" {
		parts = append(parts, "orientation="+d.Orientation)
	}
	return strings.Join(parts, ",")
}
