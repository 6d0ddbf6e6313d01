package entity

import "math"

// CollectionRef is an opaque handle to a raster collection held by the
// raster engine. The service never inspects it.
type CollectionRef string

// RasterRef is an opaque handle to a single raster held by the raster engine.
type RasterRef string

// Frame is the blended RGB visualization for one source year. Frames are
// immutable once produced; the sequencer only references them.
type Frame struct {
	Year  int       `json:"year"`
	Image RasterRef `json:"image"`
}

// FrameSequence is the expanded playback order of a timelapse: every year's
// frame repeated for its on-screen duration, plus a freeze-hold of the final
// frame. Expansion never alters frame content.
type FrameSequence struct {
	Frames         []Frame `json:"frames"`
	FPS            float64 `json:"fps"`
	RepeatsPerYear int     `json:"repeats_per_year"`
	FreezeRepeats  int     `json:"freeze_repeats"`
}

// NewFrameSequence expands an ordered per-year frame list into playback order.
// Each frame appears round(fps*secondsPerYear) times consecutively, in input
// order, and the last frame appears round(fps*freezeHoldSeconds) extra times.
// Repetition counts depend only on the arguments, so identical configuration
// yields identical ordering. An empty input yields an empty sequence with no
// freeze-hold.
func NewFrameSequence(frames []Frame, fps, secondsPerYear, freezeHoldSeconds float64) FrameSequence {
	repeats := int(math.Round(fps * secondsPerYear))
	freeze := int(math.Round(fps * freezeHoldSeconds))

	seq := FrameSequence{
		FPS:            fps,
		RepeatsPerYear: repeats,
		FreezeRepeats:  freeze,
	}
	if len(frames) == 0 {
		return seq
	}

	expanded := make([]Frame, 0, len(frames)*repeats+freeze)
	for _, f := range frames {
		for i := 0; i < repeats; i++ {
			expanded = append(expanded, f)
		}
	}
	last := frames[len(frames)-1]
	for i := 0; i < freeze; i++ {
		expanded = append(expanded, last)
	}

	seq.Frames = expanded
	return seq
}

// Len is the total number of playback frames.
func (s FrameSequence) Len() int {
	return len(s.Frames)
}

// SourceYears returns the distinct years in playback order.
func (s FrameSequence) SourceYears() []int {
	years := make([]int, 0)
	for _, f := range s.Frames {
		if len(years) == 0 || years[len(years)-1] != f.Year {
			years = append(years, f.Year)
		}
	}
	return years
}
