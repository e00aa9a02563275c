package tts

import "fmt"

// Playback speed multiplier bounds. 150 WPM is normal speech, so 300 WPM
// plays at 2.0x and 50 WPM at 0.33x, clamped to what audio pipelines and
// listeners tolerate.
const (
	minSpeedMultiplier = 0.3
	maxSpeedMultiplier = 2.5
)

// SpeedMultiplier converts a words-per-minute rate into the playback speed
// multiplier applied to engines that take a rate scale instead of a WPM
// value.
func SpeedMultiplier(wpm int) float64 {
	r := Request{WPM: wpm}.Clamp()
	m := float64(r.WPM) / float64(BaselineWPM)
	if m < minSpeedMultiplier {
		m = minSpeedMultiplier
	}
	if m > maxSpeedMultiplier {
		m = maxSpeedMultiplier
	}
	return m
}

// LengthScale converts a WPM rate into a Piper length_scale value. Piper
// stretches phoneme durations by the scale, so faster speech means a scale
// below 1.0.
func LengthScale(wpm int) float64 {
	return 1.0 / SpeedMultiplier(wpm)
}

// SayRate converts a WPM rate into the value passed to the macOS say
// command's -r flag, which is itself words per minute.
func SayRate(wpm int) int {
	return Request{WPM: wpm}.Clamp().WPM
}

// RatePercent converts a WPM rate into the signed percent string the Edge
// TTS service expects, e.g. "+20%" or "-33%".
func RatePercent(wpm int) string {
	r := Request{WPM: wpm}.Clamp()
	pct := (r.WPM - BaselineWPM) * 100 / BaselineWPM
	return fmt.Sprintf("%+d%%", pct)
}
