package domain

import (
	"errors"
	"fmt"
	"regexp"
)

var (
	ErrDriverDisabled   = errors.New("driver is disabled")
	ErrDriverNotFound   = errors.New("driver not found")
	ErrChecksumMismatch = errors.New("driver checksum mismatch")
	ErrDriverTimeout    = errors.New("driver timeout")
)

var sha256Pattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// Manifest declares an out-of-process pressure driver.
type Manifest struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Binary  string `json:"binary"`
	SHA256  string `json:"sha256"`
	Enabled bool   `json:"enabled"`
	// RawHID marks drivers that report unsigned HID bytes instead of [-1,1].
	RawHID bool `json:"raw_hid,omitempty"`
}

func (m Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("driver name is required")
	}
	if m.Version == "" {
		return fmt.Errorf("driver version is required")
	}
	if m.Binary == "" {
		return fmt.Errorf("driver binary path is required")
	}
	if !sha256Pattern.MatchString(m.SHA256) {
		return fmt.Errorf("driver sha256 must be lowercase 64-char hex")
	}
	return nil
}

// DriverInfo is what a running driver reports about the device behind it.
type DriverInfo struct {
	Name         string
	Version      string
	Model        string
	SampleRateHz int
}
