package kernel

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
)

// jsonFloat formats v as a json.Number with fixed 4-decimal precision.
// encoding/json writes a json.Number's string verbatim rather than
// re-quoting it, so this gets spec.md's ">= 4 decimal digits" without
// encoding/json's default shortest-round-trip float formatting (e.g.
// 0.5 instead of 0.5000).
func jsonFloat(v float64) json.Number {
	return json.Number(strconv.FormatFloat(v, 'f', 4, 64))
}

// Metrics is the scalar summary published by the `metrics` shell verb and
// each row of the CSV run output.
type Metrics struct {
	Generation       uint64  `json:"generation"`
	PolarizationMean float64 `json:"polarization_mean"`
	PolarizationStd  float64 `json:"polarization_std"`
	AvgOpenness      float64 `json:"avg_openness"`
	AvgConformity    float64 `json:"avg_conformity"`
	Welfare          float64 `json:"welfare"`
	Inequality       float64 `json:"inequality"`
	Hardship         float64 `json:"hardship"`
	TradeVolume      float64 `json:"trade_volume"`
	Population       int     `json:"population"`
	NumericWarnings  uint64  `json:"numeric_warnings"`
}

// MarshalJSON renders Metrics' float fields at fixed 4-decimal precision.
func (m Metrics) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Generation       uint64      `json:"generation"`
		PolarizationMean json.Number `json:"polarization_mean"`
		PolarizationStd  json.Number `json:"polarization_std"`
		AvgOpenness      json.Number `json:"avg_openness"`
		AvgConformity    json.Number `json:"avg_conformity"`
		Welfare          json.Number `json:"welfare"`
		Inequality       json.Number `json:"inequality"`
		Hardship         json.Number `json:"hardship"`
		TradeVolume      json.Number `json:"trade_volume"`
		Population       int         `json:"population"`
		NumericWarnings  uint64      `json:"numeric_warnings"`
	}{
		Generation:       m.Generation,
		PolarizationMean: jsonFloat(m.PolarizationMean),
		PolarizationStd:  jsonFloat(m.PolarizationStd),
		AvgOpenness:      jsonFloat(m.AvgOpenness),
		AvgConformity:    jsonFloat(m.AvgConformity),
		Welfare:          jsonFloat(m.Welfare),
		Inequality:       jsonFloat(m.Inequality),
		Hardship:         jsonFloat(m.Hardship),
		TradeVolume:      jsonFloat(m.TradeVolume),
		Population:       m.Population,
		NumericWarnings:  m.NumericWarnings,
	})
}

// csvHeader is the fixed column order for CSV run output.
var csvHeader = []string{
	"generation", "polarization_mean", "polarization_std", "avg_openness",
	"avg_conformity", "welfare", "inequality", "hardship", "trade_volume", "population",
	"numeric_warnings",
}

// Metrics computes the current scalar summary over all live agents and
// regions.
func (k *Kernel) Metrics() Metrics {
	var sumOpenness, sumConformity, sumPolarization, sumSqPolarization float64
	live := 0
	for row := 0; row < k.Table.Len(); row++ {
		if !k.Table.Alive[row] {
			continue
		}
		live++
		sumOpenness += float64(k.Table.Openness[row])
		sumConformity += float64(k.Table.Conformity[row])
		pol := math.Sqrt(k.Table.BNormSq[row])
		sumPolarization += pol
		sumSqPolarization += pol * pol
	}

	m := Metrics{
		Generation: k.Tick,
		Population: live,
	}
	if live > 0 {
		n := float64(live)
		m.AvgOpenness = sumOpenness / n
		m.AvgConformity = sumConformity / n
		m.PolarizationMean = sumPolarization / n
		variance := sumSqPolarization/n - m.PolarizationMean*m.PolarizationMean
		if variance < 0 {
			variance = 0
		}
		m.PolarizationStd = math.Sqrt(variance)
	}

	var welfareSum, inequalitySum, hardshipSum, tradeVolumeSum float64
	for _, r := range k.Regions {
		welfareSum += r.Welfare
		inequalitySum += r.Inequality
		hardshipSum += r.Hardship
		for g := 0; g < len(r.Production); g++ {
			tradeVolumeSum += math.Abs(r.Production[g] - r.Demand[g])
		}
	}
	if len(k.Regions) > 0 {
		n := float64(len(k.Regions))
		m.Welfare = welfareSum / n
		m.Inequality = inequalitySum / n
		m.Hardship = hardshipSum / n
	}
	m.TradeVolume = tradeVolumeSum
	m.NumericWarnings = k.NumericWarnings()

	return m
}

// AgentSnapshot is one agent's JSON representation for the `state` verb.
type AgentSnapshot struct {
	ID      uint32     `json:"id"`
	Region  int32      `json:"region"`
	Lang    uint8      `json:"lang"`
	Beliefs [4]float64 `json:"beliefs"`
	Alive   bool       `json:"alive"`
	Age     float64    `json:"age"`
	Female  bool       `json:"female"`

	Openness      *float32 `json:"openness,omitempty"`
	Conformity    *float32 `json:"conformity,omitempty"`
	Assertiveness *float32 `json:"assertiveness,omitempty"`
	Sociality     *float32 `json:"sociality,omitempty"`
}

// MarshalJSON renders AgentSnapshot's float fields at fixed 4-decimal
// precision, preserving omitempty on the optional trait fields.
func (a AgentSnapshot) MarshalJSON() ([]byte, error) {
	alias := struct {
		ID      uint32         `json:"id"`
		Region  int32          `json:"region"`
		Lang    uint8          `json:"lang"`
		Beliefs [4]json.Number `json:"beliefs"`
		Alive   bool           `json:"alive"`
		Age     json.Number    `json:"age"`
		Female  bool           `json:"female"`

		Openness      *json.Number `json:"openness,omitempty"`
		Conformity    *json.Number `json:"conformity,omitempty"`
		Assertiveness *json.Number `json:"assertiveness,omitempty"`
		Sociality     *json.Number `json:"sociality,omitempty"`
	}{
		ID:     a.ID,
		Region: a.Region,
		Lang:   a.Lang,
		Beliefs: [4]json.Number{
			jsonFloat(a.Beliefs[0]), jsonFloat(a.Beliefs[1]),
			jsonFloat(a.Beliefs[2]), jsonFloat(a.Beliefs[3]),
		},
		Alive:  a.Alive,
		Age:    jsonFloat(a.Age),
		Female: a.Female,
	}
	if a.Openness != nil {
		v := jsonFloat(float64(*a.Openness))
		alias.Openness = &v
	}
	if a.Conformity != nil {
		v := jsonFloat(float64(*a.Conformity))
		alias.Conformity = &v
	}
	if a.Assertiveness != nil {
		v := jsonFloat(float64(*a.Assertiveness))
		alias.Assertiveness = &v
	}
	if a.Sociality != nil {
		v := jsonFloat(float64(*a.Sociality))
		alias.Sociality = &v
	}
	return json.Marshal(alias)
}

// Snapshot is the top-level JSON document for the `state` and `step` verbs.
type Snapshot struct {
	Generation uint64          `json:"generation"`
	Metrics    Metrics         `json:"metrics"`
	Agents     []AgentSnapshot `json:"agents"`
}

// StateJSON builds a full snapshot, including personality traits when
// includeTraits is true (the `traits` argument to the `state` verb).
func (k *Kernel) StateJSON(includeTraits bool) Snapshot {
	snap := Snapshot{
		Generation: k.Tick,
		Metrics:    k.Metrics(),
		Agents:     make([]AgentSnapshot, 0, k.Table.LivePopulation()),
	}
	for row := 0; row < k.Table.Len(); row++ {
		if !k.Table.Alive[row] {
			continue
		}
		a := AgentSnapshot{
			ID:      k.Table.ID[row],
			Region:  k.Table.Region[row],
			Lang:    k.Table.PrimaryLang[row],
			Beliefs: [4]float64{k.Table.B0[row], k.Table.B1[row], k.Table.B2[row], k.Table.B3[row]},
			Alive:   k.Table.Alive[row],
			Age:     k.Table.Age[row],
			Female:  k.Table.Female[row],
		}
		if includeTraits {
			a.Openness = &k.Table.Openness[row]
			a.Conformity = &k.Table.Conformity[row]
			a.Assertiveness = &k.Table.Assertiveness[row]
			a.Sociality = &k.Table.Sociality[row]
		}
		snap.Agents = append(snap.Agents, a)
	}
	return snap
}

// WriteStateJSON marshals the current snapshot to w with >= 4 decimal
// digits of float precision.
func (k *Kernel) WriteStateJSON(w io.Writer, includeTraits bool) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(k.StateJSON(includeTraits))
}

// RunCSV advances the kernel T ticks, writing a CSV row every L ticks to w.
// The header row is written once, before the first tick.
func RunCSV(k *Kernel, w io.Writer, totalTicks, logEvery int) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	if logEvery <= 0 {
		logEvery = 1
	}
	for i := 1; i <= totalTicks; i++ {
		if err := k.Step(); err != nil {
			return err
		}
		if i%logEvery != 0 {
			continue
		}
		if err := cw.Write(metricsRow(k.Metrics())); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func metricsRow(m Metrics) []string {
	return []string{
		fmt.Sprintf("%d", m.Generation),
		fmt.Sprintf("%.4f", m.PolarizationMean),
		fmt.Sprintf("%.4f", m.PolarizationStd),
		fmt.Sprintf("%.4f", m.AvgOpenness),
		fmt.Sprintf("%.4f", m.AvgConformity),
		fmt.Sprintf("%.4f", m.Welfare),
		fmt.Sprintf("%.4f", m.Inequality),
		fmt.Sprintf("%.4f", m.Hardship),
		fmt.Sprintf("%.4f", m.TradeVolume),
		fmt.Sprintf("%d", m.Population),
		fmt.Sprintf("%d", m.NumericWarnings),
	}
}
