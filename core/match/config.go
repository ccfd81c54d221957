package match

import (
	"fmt"

	"github.com/Sara-Samara/HealthAidProj-sub002/core/model"
)

// Config defines matching parameters. Weights and radii are tuning knobs,
// not business law.
type Config struct {
	DistanceWeight float64 `json:"distance_weight"`
	RatingWeight   float64 `json:"rating_weight"`
	TagWeight      float64 `json:"tag_weight"`

	// InitialRadiusM maps priority names to the starting search radius.
	InitialRadiusM map[string]float64 `json:"initial_radius_m"`
	// MaxDoublings bounds radius expansion.
	MaxDoublings int `json:"max_doublings"`
}

// SetDefaults applies the default weights and radii.
func (c *Config) SetDefaults() {
	if c.DistanceWeight == 0 && c.RatingWeight == 0 && c.TagWeight == 0 {
		c.DistanceWeight = 0.5
		c.RatingWeight = 0.3
		c.TagWeight = 0.2
	}
	if c.InitialRadiusM == nil {
		c.InitialRadiusM = map[string]float64{
			model.PriorityLow.String():      1000,
			model.PriorityMedium.String():   2000,
			model.PriorityHigh.String():     3000,
			model.PriorityCritical.String(): 5000,
		}
	}
	if c.MaxDoublings == 0 {
		c.MaxDoublings = 4
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.DistanceWeight < 0 || c.RatingWeight < 0 || c.TagWeight < 0 {
		return fmt.Errorf("weights must not be negative")
	}
	if c.MaxDoublings < 0 {
		return fmt.Errorf("max doublings must not be negative")
	}
	for name, r := range c.InitialRadiusM {
		if r <= 0 {
			return fmt.Errorf("initial radius for %s must be positive", name)
		}
		if _, err := model.ParsePriority(name); err != nil {
			return err
		}
	}
	return nil
}

func (c Config) initialRadius(p model.Priority) float64 {
	if r, ok := c.InitialRadiusM[p.String()]; ok {
		return r
	}
	return 1000
}
