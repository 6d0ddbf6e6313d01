package entity

import "fmt"

// Region is the geographic bounding box a timelapse is rendered over,
// in WGS84 degrees.
type Region struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

func (r Region) Validate() error {
	if r.West >= r.East {
		return fmt.Errorf("region west (%v) must be less than east (%v)", r.West, r.East)
	}
	if r.South >= r.North {
		return fmt.Errorf("region south (%v) must be less than north (%v)", r.South, r.North)
	}
	if r.South < -90 || r.North > 90 {
		return fmt.Errorf("region latitude out of range [-90,90]: south=%v north=%v", r.South, r.North)
	}
	if r.West < -180 || r.East > 180 {
		return fmt.Errorf("region longitude out of range [-180,180]: west=%v east=%v", r.West, r.East)
	}
	return nil
}

// Ring returns the closed polygon ring for the bounding box, counterclockwise
// starting at the southwest corner. This is the shape the render service
// expects for the export region.
func (r Region) Ring() [][2]float64 {
	return [][2]float64{
		{r.West, r.South},
		{r.East, r.South},
		{r.East, r.North},
		{r.West, r.North},
		{r.West, r.South},
	}
}
