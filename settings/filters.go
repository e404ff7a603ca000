package settings

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/depthcam/dcmode"
)

// PlaneFilteringMode selects which side of the filtering plane is kept.
type PlaneFilteringMode int8

// Plane filtering modes.
const (
	PlaneNone PlaneFilteringMode = iota
	PlaneAbove
	PlaneBelow
)

// RGB is a color with channels in [0,1].
type RGB struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

// HSVTolerance is a per channel tolerance, hue in degrees, saturation and value in [0,1].
type HSVTolerance struct {
	H float64 `json:"h"`
	S float64 `json:"s"`
	V float64 `json:"v"`
}

// FiltersSettings drives depth filtering. Width, height and depth bounds are factors of the
// depth image size and of the sensor range.
type FiltersSettings struct {
	MinWidthF  float64 `json:"min_width_f"`
	MaxWidthF  float64 `json:"max_width_f"`
	MinHeightF float64 `json:"min_height_f"`
	MaxHeightF float64 `json:"max_height_f"`
	MinDepthF  float64 `json:"min_depth_f"`
	MaxDepthF  float64 `json:"max_depth_f"`

	FilterDepthWithColor bool         `json:"filter_depth_with_color"`
	FilterColor          RGB          `json:"filter_color"`
	MaxDiffColor         HSVTolerance `json:"max_diff_color"`

	FilterDepthWithCloud bool               `json:"filter_depth_with_cloud"`
	PlaneMode            PlaneFilteringMode `json:"p1_f_mode"`
	// plane points, in meters
	PlaneA r3.Vector `json:"p1_a"`
	PlaneB r3.Vector `json:"p1_b"`
	PlaneC r3.Vector `json:"p1_c"`

	DoLocalDiffFiltering  bool                `json:"do_local_diff_filtering"`
	MaxLocalDiff          float64             `json:"max_local_diff"`
	LocalDiffConnectivity dcmode.Connectivity `json:"local_diff_connectivity"`

	DoMinNeighboursFiltering  bool                `json:"do_min_neighbours_filtering"`
	NbMinNeighbours           uint8               `json:"nb_min_neighbours"`
	MinNeighboursLoops        uint8               `json:"min_neighbours_loops"`
	MinNeighboursConnectivity dcmode.Connectivity `json:"min_neighbours_connectivity"`

	DoErosion           bool                `json:"do_erosion"`
	ErosionLoops        uint8               `json:"erosion_loops"`
	ErosionConnectivity dcmode.Connectivity `json:"erosion_connectivity"`

	KeepOnlyBiggestCluster bool `json:"keep_only_biggest_cluster"`

	RemoveAfterClosestPoint bool `json:"remove_after_closest_point"`
	// in meters
	MaxDistanceAfterClosestPoint float64 `json:"max_distance_after_closest_point"`

	InvalidateColorFromDepth bool `json:"invalidate_color_from_depth"`
	InvalidateInfraFromDepth bool `json:"invalidate_infra_from_depth"`
}

// DefaultFiltersSettings only removes local depth discontinuities.
func DefaultFiltersSettings() FiltersSettings {
	return FiltersSettings{
		MaxWidthF:                    1,
		MaxHeightF:                   1,
		MaxDepthF:                    1,
		FilterColor:                  RGB{0, 0.5, 0.08},
		MaxDiffColor:                 HSVTolerance{20, 0.5, 0.5},
		DoLocalDiffFiltering:         true,
		MaxLocalDiff:                 10,
		LocalDiffConnectivity:        dcmode.Connectivity2H,
		NbMinNeighbours:              1,
		MinNeighboursLoops:           1,
		MinNeighboursConnectivity:    dcmode.Connectivity4,
		ErosionLoops:                 1,
		ErosionConnectivity:          dcmode.Connectivity8,
		MaxDistanceAfterClosestPoint: 0.2,
	}
}

// CalibrationFiltersSettings keeps a single clean blob, used while registering several cameras.
func CalibrationFiltersSettings() FiltersSettings {
	fs := DefaultFiltersSettings()
	fs.DoMinNeighboursFiltering = true
	fs.NbMinNeighbours = 4
	fs.MinNeighboursLoops = 2
	fs.DoErosion = true
	fs.ErosionLoops = 2
	fs.KeepOnlyBiggestCluster = true
	fs.InvalidateColorFromDepth = true
	fs.InvalidateInfraFromDepth = true
	return fs
}

// Validate checks the factor bounds.
func (fs *FiltersSettings) Validate(path string) ([]string, error) {
	bounds := []struct {
		name     string
		min, max float64
	}{
		{"width", fs.MinWidthF, fs.MaxWidthF},
		{"height", fs.MinHeightF, fs.MaxHeightF},
		{"depth", fs.MinDepthF, fs.MaxDepthF},
	}
	for _, b := range bounds {
		if b.min < 0 || b.max > 1 || b.min > b.max {
			return nil, errors.Errorf("%s: invalid %s factors [%v,%v]", path, b.name, b.min, b.max)
		}
	}
	if fs.PlaneMode < PlaneNone || fs.PlaneMode > PlaneBelow {
		return nil, errors.Errorf("%s: invalid p1_f_mode %d", path, fs.PlaneMode)
	}
	var ignored []string
	if fs.PlaneMode != PlaneNone && !fs.FilterDepthWithCloud {
		ignored = append(ignored, path+".p1_f_mode")
	}
	return ignored, nil
}
