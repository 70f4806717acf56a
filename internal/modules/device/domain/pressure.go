package domain

import (
	"fmt"
	"strconv"
	"strings"
)

type SourceKind string

const (
	SourceRecording SourceKind = "recording"
	SourceDriver    SourceKind = "driver"
	SourceScript    SourceKind = "script"
	SourceConstant  SourceKind = "constant"
)

func (k SourceKind) Validate() error {
	switch k {
	case SourceRecording, SourceDriver, SourceScript, SourceConstant:
		return nil
	default:
		return fmt.Errorf("unknown source kind: %s", k)
	}
}

// Normalize maps raw HID readings (0..255, centred on 127) into roughly
// [-1, 1]. Values already in range pass through.
func Normalize(raw float64) float64 {
	if raw > 1 {
		return (raw - 127) / 128
	}
	return raw
}

// ParseRecordingLine decodes one line of a .fiz recording. Pressure lines
// look like "v 42" and carry hundredths; anything else is skipped.
func ParseRecordingLine(line string) (float64, bool) {
	parts := strings.Split(strings.TrimSpace(line), " ")
	if len(parts) != 2 || parts[0] != "v" {
		return 0, false
	}
	value, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, false
	}
	return value / 100.0, true
}
