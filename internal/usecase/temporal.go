package usecase

import (
	"time"
	_ "time/tzdata"
)

// The buildings archive keys every tile by the epoch-seconds timestamp of
// June 30 of its year, evaluated at midnight US Pacific time. The keys were
// precomputed against that anchor, so any deviation here matches zero rows.
const (
	buildingAnchorMonth = time.June
	buildingAnchorDay   = 30
)

var pacific = mustLoadPacific()

func mustLoadPacific() *time.Location {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		// tzdata is linked in, so this only fires on a corrupt build.
		panic("load America/Los_Angeles: " + err.Error())
	}
	return loc
}

// TemporalKey carries both temporal selectors for one calendar year: the
// exact epoch key the buildings archive is matched on, and the inclusive
// calendar-year range the lights archive is filtered by.
type TemporalKey struct {
	Year            int
	BuildingEpoch   int64
	LightsStartYear int
	LightsEndYear   int
}

// MapYear computes the temporal selectors for a year. It is a pure function
// of its argument: no wall clock, no archive lookups, no failure mode. Years
// outside an archive's holdings simply match nothing downstream.
func MapYear(year int) TemporalKey {
	anchor := time.Date(year, buildingAnchorMonth, buildingAnchorDay, 0, 0, 0, 0, pacific)
	return TemporalKey{
		Year:            year,
		BuildingEpoch:   anchor.Unix(),
		LightsStartYear: year,
		LightsEndYear:   year,
	}
}
