package costs

import "strings"

// Rates are the statutory on-cost rates applied to the annual gross salary (RAL).
type Rates struct {
	INPS  float64 `json:"inps"`
	INAIL float64 `json:"inail"`
	TFR   float64 `json:"tfr"`
	Other float64 `json:"other"`
}

// DefaultRates returns the rates used when no sector or custom override applies.
func DefaultRates() Rates {
	return Rates{INPS: 0.3309, INAIL: 0.01, TFR: 0.0741, Other: 0.02}
}

// Multiplier is 1 plus the sum of all rates.
func (r Rates) Multiplier() float64 {
	return 1 + r.INPS + r.INAIL + r.TFR + r.Other
}

type sectorOverride struct {
	inps  *float64
	inail *float64
}

func ptr(v float64) *float64 { return &v }

var sectorOverrides = map[string]sectorOverride{
	"edilizia":    {inail: ptr(0.04)},
	"commercio":   {},
	"industria":   {},
	"servizi":     {},
	"informatica": {},
	"consulenza":  {},
}

// SectorRates applies the sector table on top of base. Only INPS and INAIL can be
// overridden by a sector; unknown sectors leave base untouched.
func SectorRates(sector string, base Rates) Rates {
	o, ok := sectorOverrides[strings.ToLower(strings.TrimSpace(sector))]
	if !ok {
		return base
	}
	if o.inps != nil {
		base.INPS = *o.inps
	}
	if o.inail != nil {
		base.INAIL = *o.inail
	}
	return base
}

// Flat multipliers used by the quick estimator, per sector.
var sectorMultipliers = map[string]float64{
	"commercio":   1.38,
	"industria":   1.42,
	"edilizia":    1.45,
	"servizi":     1.40,
	"informatica": 1.41,
	"consulenza":  1.39,
}

const defaultMultiplier = 1.42

// SectorMultiplier returns the flat RAL multiplier for a sector, 1.42 when unknown.
func SectorMultiplier(sector string) float64 {
	if m, ok := sectorMultipliers[strings.ToLower(strings.TrimSpace(sector))]; ok {
		return m
	}
	return defaultMultiplier
}

// Sectors lists the known sector keys.
func Sectors() []string {
	return []string{"commercio", "consulenza", "edilizia", "industria", "informatica", "servizi"}
}
