package video

import "math"

// DefaultPixelsPerSecond is the timeline scale at zoom 1.
const DefaultPixelsPerSecond = 50

// Timeline converts between timeline pixels and seconds.
type Timeline struct {
	PixelsPerSecond float64
}

func NewTimeline(zoom float64) Timeline {
	if zoom <= 0 {
		zoom = 1
	}
	return Timeline{PixelsPerSecond: DefaultPixelsPerSecond * zoom}
}

func (t Timeline) ToPixels(seconds float64) float64 {
	return seconds * t.PixelsPerSecond
}

// ToSeconds never returns a negative time.
func (t Timeline) ToSeconds(px float64) float64 {
	if t.PixelsPerSecond <= 0 || px <= 0 {
		return 0
	}
	return px / t.PixelsPerSecond
}

// ClipOffsets returns where each clip starts on the timeline, in seconds.
func ClipOffsets(clips []Clip) []float64 {
	offsets := make([]float64, len(clips))
	at := 0.0
	for i, c := range clips {
		offsets[i] = at
		at += c.PlayedLength()
	}
	return offsets
}

// Locate maps a timeline time to a clip index and a source time inside that
// clip. ok is false past the end of the last clip.
func Locate(clips []Clip, t float64) (index int, source float64, ok bool) {
	if t < 0 {
		t = 0
	}
	at := 0.0
	for i, c := range clips {
		length := c.PlayedLength()
		if t < at+length || (i == len(clips)-1 && math.Abs(t-(at+length)) < 1e-9) {
			speed := c.Speed
			if speed <= 0 {
				speed = 1
			}
			return i, c.Trim.Start + (t-at)*speed, true
		}
		at += length
	}
	return -1, 0, false
}
