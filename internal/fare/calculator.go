package fare

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/citylink/citylink_core/internal/models"
)

// ErrNoMatchingSlab is returned when a fare cannot be computed: the
// config is empty or malformed, or the distance is negative
var ErrNoMatchingSlab = errors.New("no matching fare slab")

// Breakdown explains a computed fare for display and billing logs
type Breakdown struct {
	DistanceKm        float64 `json:"distance_km"`
	BaseFareINR       float64 `json:"base_fare"`
	AppliedMultiplier float64 `json:"peak_multiplier"`
	FinalFareINR      float64 `json:"final_fare"`
	IsPeakHour        bool    `json:"is_peak_hour"`
	Slab              string  `json:"slab"`
}

// Calculate returns the fare for a distance. The first slab whose upper
// bound covers the distance applies; the last slab is open-ended. Pure
// function, safe for concurrent use.
func Calculate(distanceKm float64, isPeak bool, cfg models.FareConfig) (float64, error) {
	b, err := CalculateBreakdown(distanceKm, isPeak, cfg)
	if err != nil {
		return 0, err
	}
	return b.FinalFareINR, nil
}

// CalculateBreakdown is Calculate with the full fare detail
func CalculateBreakdown(distanceKm float64, isPeak bool, cfg models.FareConfig) (*Breakdown, error) {
	if distanceKm < 0 {
		return nil, fmt.Errorf("%w: negative distance %.2f km", ErrNoMatchingSlab, distanceKm)
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	// Last slab applies to everything beyond its predecessors
	slabIdx := len(cfg.Slabs) - 1
	for i, slab := range cfg.Slabs {
		if distanceKm <= slab.UpToKm {
			slabIdx = i
			break
		}
	}

	base := cfg.Slabs[slabIdx].BaseFareINR
	multiplier := 1.0
	if isPeak {
		multiplier = cfg.PeakMultiplier
	}

	return &Breakdown{
		DistanceKm:        round2(distanceKm),
		BaseFareINR:       base,
		AppliedMultiplier: multiplier,
		FinalFareINR:      round2(base * multiplier),
		IsPeakHour:        isPeak,
		Slab:              slabLabel(cfg.Slabs, slabIdx),
	}, nil
}

// validateConfig rejects empty and malformed fare tables
func validateConfig(cfg models.FareConfig) error {
	if len(cfg.Slabs) == 0 {
		return fmt.Errorf("%w: empty fare config", ErrNoMatchingSlab)
	}
	if cfg.PeakMultiplier <= 0 {
		return fmt.Errorf("%w: peak multiplier must be positive, got %.2f", ErrNoMatchingSlab, cfg.PeakMultiplier)
	}
	for i, slab := range cfg.Slabs {
		if slab.BaseFareINR < 0 {
			return fmt.Errorf("%w: slab %d has negative fare %.2f", ErrNoMatchingSlab, i, slab.BaseFareINR)
		}
		if i > 0 && slab.UpToKm <= cfg.Slabs[i-1].UpToKm {
			return fmt.Errorf("%w: slab bounds not ascending at index %d", ErrNoMatchingSlab, i)
		}
	}
	return nil
}

// slabLabel renders a slab as "5-10 km" or "20+ km" for the open tail
func slabLabel(slabs []models.FareSlab, idx int) string {
	lower := 0.0
	if idx > 0 {
		lower = slabs[idx-1].UpToKm
	}
	if idx == len(slabs)-1 {
		return fmt.Sprintf("%g+ km", lower)
	}
	return fmt.Sprintf("%g-%g km", lower, slabs[idx].UpToKm)
}

// PeakWindow is a half-open [StartHour, EndHour) wall-clock window
// during which fares are multiplied
type PeakWindow struct {
	StartHour int `json:"start_hour"`
	EndHour   int `json:"end_hour"`
}

// DefaultPeakWindows are the city's configured peak hours: 08:00-11:59
// morning and 18:00-20:59 evening
func DefaultPeakWindows() []PeakWindow {
	return []PeakWindow{
		{StartHour: 8, EndHour: 12},
		{StartHour: 18, EndHour: 21},
	}
}

// IsPeakHour classifies a wall-clock time against peak windows
func IsPeakHour(t time.Time, windows []PeakWindow) bool {
	hour := t.Hour()
	for _, w := range windows {
		if hour >= w.StartHour && hour < w.EndHour {
			return true
		}
	}
	return false
}

// DefaultConfig is the Bhopal demo fare table
func DefaultConfig() models.FareConfig {
	return models.FareConfig{
		Slabs: []models.FareSlab{
			{UpToKm: 5, BaseFareINR: 10},
			{UpToKm: 10, BaseFareINR: 15},
			{UpToKm: 20, BaseFareINR: 25},
			{UpToKm: 50, BaseFareINR: 40},
		},
		PeakMultiplier: 1.2,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
