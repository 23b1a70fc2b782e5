package quant

import "math"

// Holding roles used in the rendered blueprint.
const (
	RoleCore      = "Core"
	RoleSatellite = "Satellite"
)

// Holding is one line of the final allocation: a fund and its target weight.
type Holding struct {
	Identifier    string  `json:"identifier"`
	Name          string  `json:"name,omitempty"`
	Role          string  `json:"role"`
	WeightPercent float64 `json:"weight_percent"`
	Score         float64 `json:"score"`
	Rationale     string  `json:"rationale"`
}

// SelectPortfolio applies the core/satellite split to an already-ranked
// sequence. The top holding receives cfg.CorePercent; the remainder is split
// equally among up to cfg.SatelliteCount runner-ups. With fewer eligible
// funds the weights are redistributed over whatever remains (a single fund
// carries 100), and an empty input returns ErrNoEligibleFunds.
//
// Satellite weights are rounded to 0.01 and the residual is folded into the
// core, so the weights always sum to exactly 100.
func SelectPortfolio(ranked []MetricRecord, cfg Config) ([]Holding, error) {
	if len(ranked) == 0 {
		return nil, ErrNoEligibleFunds
	}

	satCount := cfg.SatelliteCount
	if satCount > len(ranked)-1 {
		satCount = len(ranked) - 1
	}

	corePercent := cfg.CorePercent
	if satCount <= 0 {
		satCount = 0
		corePercent = 100
	}

	var satWeight float64
	if satCount > 0 {
		satWeight = roundWeight((100 - corePercent) / float64(satCount))
		corePercent = 100 - satWeight*float64(satCount)
	}

	holdings := make([]Holding, 0, satCount+1)
	holdings = append(holdings, Holding{
		Identifier:    ranked[0].Identifier,
		Name:          ranked[0].Name,
		Role:          RoleCore,
		WeightPercent: roundWeight(corePercent),
		Score:         *ranked[0].Score,
		Rationale:     "Highest risk-adjusted score",
	})

	for i := 1; i <= satCount; i++ {
		holdings = append(holdings, Holding{
			Identifier:    ranked[i].Identifier,
			Name:          ranked[i].Name,
			Role:          RoleSatellite,
			WeightPercent: satWeight,
			Score:         *ranked[i].Score,
			Rationale:     "Risk-adjusted runner-up",
		})
	}

	return holdings, nil
}

// roundWeight snaps a weight to two decimal places, the resolution of the
// rendered allocation table.
func roundWeight(w float64) float64 {
	return math.Round(w*100) / 100
}
