package domain

// Tolerance is the fraction of the calibrated maxima a breath must exceed to count as full.
const Tolerance = 0.80

// Quality buckets a breath percentage into 0..4. The band edges are strict on
// both sides, so exactly 0.25, 0.5 and 0.75 fall through to 0.
func Quality(percentage float64) int {
	switch {
	case percentage > 0.25 && percentage < 0.5:
		return 1
	case percentage > 0.5 && percentage < 0.75:
		return 2
	case percentage > 0.75 && percentage < 1.0:
		return 3
	case percentage >= 1.0:
		return 4
	default:
		return 0
	}
}

// IsBreathFull reports whether a breath exceeded Tolerance of both the
// calibrated length and, on average, the calibrated pressure.
func IsBreathFull(breathLength, exhaledVolume float64, cal Calibration) bool {
	if !cal.Calibrated() {
		return false
	}
	full := breathLength > Tolerance*cal.MaxBreathLength()
	if breathLength > 0 {
		full = full && exhaledVolume/breathLength > Tolerance*cal.MaxPressure()
	}
	return full
}

// Percentage is the breath progress towards Tolerance of the calibrated length.
func Percentage(breathLength float64, cal Calibration) float64 {
	target := Tolerance * cal.MaxBreathLength()
	if !cal.Calibrated() || target <= 0 {
		return 0
	}
	return breathLength / target
}
