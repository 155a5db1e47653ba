package kernel

// RegionEconomySummary is one region's row in the `economy` shell verb's
// output.
type RegionEconomySummary struct {
	RegionID       int32     `json:"region_id"`
	Population     int64     `json:"population"`
	Prices         [5]float64 `json:"prices"`
	Specialization [5]float64 `json:"specialization"`
	Development    float64   `json:"development"`
	Welfare        float64   `json:"welfare"`
	Hardship       float64   `json:"hardship"`
	Inequality     float64   `json:"inequality"`
	System         string    `json:"system"`
}

// EconomyReport builds the per-region economic summary.
func (k *Kernel) EconomyReport() []RegionEconomySummary {
	out := make([]RegionEconomySummary, 0, len(k.Regions))
	for _, r := range k.Regions {
		out = append(out, RegionEconomySummary{
			RegionID:       r.ID,
			Population:     r.Population,
			Prices:         r.Prices,
			Specialization: r.Specialization,
			Development:    r.Development,
			Welfare:        r.Welfare,
			Hardship:       r.Hardship,
			Inequality:     r.Inequality,
			System:         r.System.String(),
		})
	}
	return out
}
