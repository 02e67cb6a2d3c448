// Package stress derives a normalized stress score from wearable readings.
//
// Every caller that needs a stress value (biometric ingestion, the dashboard,
// behavioral profiling) goes through Score so the formula lives in one place.
package stress

// Stress level labels reported to clients
const (
	LevelHigh   = "High"
	LevelMedium = "Medium"
	LevelLow    = "Low"

	LoadHigh   = "High"
	LoadNormal = "Normal"
)

const (
	restingHeartRate = 60.0
	heartRateSpan    = 40.0
	baselineHRV      = 100.0
	hrvSpan          = 80.0

	heartRateWeight = 0.4
	hrvWeight       = 0.6

	// Acute pattern: elevated pulse with suppressed variability
	acuteHeartRate = 90.0
	acuteHRV       = 35.0
	acuteFloor     = 0.8
)

// Score returns a stress score in [0, 1] from heart rate (bpm) and HRV (ms)
func Score(heartRate, hrv float64) float64 {
	hrTerm := clamp01((heartRate - restingHeartRate) / heartRateSpan)
	hrvTerm := clamp01((baselineHRV - hrv) / hrvSpan)

	score := heartRateWeight*hrTerm + hrvWeight*hrvTerm

	if Acute(heartRate, hrv) && score < acuteFloor {
		score = acuteFloor
	}

	return score
}

// Acute reports the elevated-pulse, suppressed-variability pattern
func Acute(heartRate, hrv float64) bool {
	return heartRate > acuteHeartRate && hrv < acuteHRV
}

// Level maps a stress score to its display label
func Level(score float64) string {
	switch {
	case score > 0.7:
		return LevelHigh
	case score > 0.4:
		return LevelMedium
	default:
		return LevelLow
	}
}

// CognitiveLoad reports "High" when the score suggests decision fatigue
func CognitiveLoad(score float64) string {
	if score > 0.6 {
		return LoadHigh
	}
	return LoadNormal
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
