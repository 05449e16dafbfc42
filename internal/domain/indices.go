package domain

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Default band roles for Himawari-8/9 AHI.
const (
	BandShortwaveIR = "B07" // 3.9 µm
	BandWaterVapor  = "B08" // 6.2 µm
	BandLongwaveIR  = "B13" // 10.4 µm, reference for rapid cooling
	BandSplitWindow = "B15" // 12.4 µm
)

// Composite ladder labels, strongest first.
const (
	LabelStrongSignal          = "strong signal"
	LabelLocalStrongConvection = "local strong convection"
	LabelOrdinaryConvection    = "ordinary convection"
	LabelInsufficientData      = "insufficient data"
)

// Cooling-only ladder labels.
const (
	CoolingExtreme = "extreme"
	CoolingStrong  = "strong"
	CoolingFast    = "fast cooling"
	CoolingNormal  = "normal"
)

// Cloud-top ladder labels.
const (
	CloudTopVeryTallCb     = "very tall cumulonimbus"
	CloudTopHighConvective = "high convective cloud"
	CloudTopNone           = "no significant convective cloud"
)

// Classification thresholds in °C and °C per step.
const (
	updraftThreshold      = -5.0
	coolingTierThreshold  = -3.0
	dryIntrusionThreshold = 1.5

	coolingExtreme = -15.0
	coolingStrong  = -10.0
	coolingFast    = -5.0

	cloudTopVeryTall = -60.0
	cloudTopHigh     = -50.0

	cipiCoolingScale = 15.0
	cipiTempOffset   = 80.0
	cipiTempScale    = 80.0
)

// IndexConfig assigns bands to the roles used by the derived indices.
type IndexConfig struct {
	Reference   string
	Shortwave   string
	WaterVapor  string
	TurbulenceA string
	TurbulenceB string
}

// DefaultIndexConfig returns the Himawari band roles.
func DefaultIndexConfig() IndexConfig {
	return IndexConfig{
		Reference:   BandLongwaveIR,
		Shortwave:   BandShortwaveIR,
		WaterVapor:  BandWaterVapor,
		TurbulenceA: BandLongwaveIR,
		TurbulenceB: BandSplitWindow,
	}
}

// Validate requires a reference band.
func (c IndexConfig) Validate() error {
	if c.Reference == "" {
		return fmt.Errorf("reference band is required")
	}
	if (c.TurbulenceA == "") != (c.TurbulenceB == "") {
		return fmt.Errorf("turbulence needs two bands, got %q and %q", c.TurbulenceA, c.TurbulenceB)
	}
	return nil
}

// Bands lists every band named by the config, reference first, without duplicates.
func (c IndexConfig) Bands() []string {
	seen := map[string]bool{}
	var out []string
	for _, b := range []string{c.Reference, c.Shortwave, c.WaterVapor, c.TurbulenceA, c.TurbulenceB} {
		if b != "" && !seen[b] {
			seen[b] = true
			out = append(out, b)
		}
	}
	return out
}

// CompositeRecord is one aligned row of band values and derived indices.
type CompositeRecord struct {
	Timestamp     time.Time           `json:"timestamp"`
	Bands         map[string]*float64 `json:"bands"`
	RapidCooling  map[string]*float64 `json:"rapid_cooling"`
	Updraft       *float64            `json:"updraft"`
	DryIntrusion  *float64            `json:"dry_intrusion"`
	Turbulence    *float64            `json:"turbulence"`
	CIPI          *float64            `json:"cipi"`
	Composite     string              `json:"composite"`
	CoolingClass  string              `json:"cooling_class"`
	CloudTopClass string              `json:"cloud_top_class"`
}

// Compute aligns the series on the reference band's timestamps and derives
// the indices for each row. Bands absent from the map still get a column.
func (c IndexConfig) Compute(series map[string]BandSeries) []CompositeRecord {
	bands := c.Bands()
	extra := make([]string, 0, len(series))
	for b := range series {
		if !contains(bands, b) {
			extra = append(extra, b)
		}
	}
	sort.Strings(extra)
	bands = append(bands, extra...)

	stamps := c.timeline(series)
	records := make([]CompositeRecord, len(stamps))
	for i, ts := range stamps {
		rec := CompositeRecord{
			Timestamp:    ts,
			Bands:        make(map[string]*float64, len(bands)),
			RapidCooling: make(map[string]*float64, len(bands)),
		}
		for _, b := range bands {
			rec.Bands[b] = valueAt(series, b, ts)
			rec.RapidCooling[b] = nil
			if i > 0 {
				rec.RapidCooling[b] = diff(rec.Bands[b], records[i-1].Bands[b])
			}
		}
		if c.Shortwave != "" {
			rec.Updraft = diff(rec.Bands[c.Shortwave], rec.Bands[c.Reference])
		}
		if c.WaterVapor != "" {
			rec.DryIntrusion = rec.RapidCooling[c.WaterVapor]
		}
		if c.TurbulenceA != "" {
			if d := diff(rec.Bands[c.TurbulenceA], rec.Bands[c.TurbulenceB]); d != nil {
				rec.Turbulence = ptr(math.Abs(*d))
			}
		}
		cooling := rec.RapidCooling[c.Reference]
		if cooling != nil && rec.Bands[c.Reference] != nil {
			rec.CIPI = ptr(CIPI(*cooling, *rec.Bands[c.Reference]))
		}

		rec.Composite = ClassifyComposite(rec.Updraft, cooling, rec.DryIntrusion)
		if rec.Updraft == nil && rec.DryIntrusion == nil && rec.Turbulence == nil &&
			rec.CIPI == nil && allNil(rec.RapidCooling) {
			rec.Composite = LabelInsufficientData
		}
		rec.CoolingClass = ClassifyCooling(cooling)
		rec.CloudTopClass = ClassifyCloudTop(rec.Bands[c.Reference])
		records[i] = rec
	}
	return records
}

// timeline returns the reference band's timestamps, or the union of all
// bands' timestamps when the reference band has no series.
func (c IndexConfig) timeline(series map[string]BandSeries) []time.Time {
	if ref, ok := series[c.Reference]; ok && len(ref.Points) > 0 {
		out := make([]time.Time, len(ref.Points))
		for i, p := range ref.Points {
			out[i] = p.Timestamp
		}
		return out
	}
	seen := map[int64]time.Time{}
	for _, s := range series {
		for _, p := range s.Points {
			seen[p.Timestamp.UnixNano()] = p.Timestamp
		}
	}
	out := make([]time.Time, 0, len(seen))
	for _, ts := range seen {
		out = append(out, ts)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// CIPI is the composite severity index in [0,1]: the mean of the clipped
// cooling magnitude over 15 °C and the clipped cloud-top coldness over 80 °C.
func CIPI(cooling, tbb float64) float64 {
	coolTerm := -clip(cooling, -cipiCoolingScale, 0) / cipiCoolingScale
	tempTerm := 1 - clip(tbb+cipiTempOffset, 0, cipiTempScale)/cipiTempScale
	return clip(0.5*coolTerm+0.5*tempTerm, 0, 1)
}

// ClassifyComposite evaluates the tiers strongest first. Nil operands make
// their condition false.
func ClassifyComposite(updraft, cooling, dryIntrusion *float64) string {
	strongUpdraft := updraft != nil && *updraft <= updraftThreshold
	switch {
	case strongUpdraft && (le(cooling, coolingTierThreshold) || ge(dryIntrusion, dryIntrusionThreshold)):
		return LabelStrongSignal
	case strongUpdraft:
		return LabelLocalStrongConvection
	default:
		return LabelOrdinaryConvection
	}
}

// ClassifyCooling grades a rapid-cooling value on its own ladder.
func ClassifyCooling(cooling *float64) string {
	switch {
	case cooling == nil:
		return LabelInsufficientData
	case *cooling <= coolingExtreme:
		return CoolingExtreme
	case *cooling <= coolingStrong:
		return CoolingStrong
	case *cooling <= coolingFast:
		return CoolingFast
	default:
		return CoolingNormal
	}
}

// ClassifyCloudTop interprets a single mean TBB value.
func ClassifyCloudTop(tbb *float64) string {
	switch {
	case tbb == nil:
		return LabelInsufficientData
	case *tbb <= cloudTopVeryTall:
		return CloudTopVeryTallCb
	case *tbb <= cloudTopHigh:
		return CloudTopHighConvective
	default:
		return CloudTopNone
	}
}

// CompositeRank orders composite labels; higher is more severe.
func CompositeRank(label string) int {
	switch label {
	case LabelStrongSignal:
		return 3
	case LabelLocalStrongConvection:
		return 2
	case LabelOrdinaryConvection:
		return 1
	default:
		return 0
	}
}

func valueAt(series map[string]BandSeries, band string, ts time.Time) *float64 {
	s, ok := series[band]
	if !ok {
		return nil
	}
	p, ok := s.At(ts)
	if !ok || p.Value == nil {
		return nil
	}
	return ptr(*p.Value)
}

func diff(a, b *float64) *float64 {
	if a == nil || b == nil {
		return nil
	}
	return ptr(*a - *b)
}

func le(v *float64, t float64) bool { return v != nil && *v <= t }
func ge(v *float64, t float64) bool { return v != nil && *v >= t }

func clip(v, lo, hi float64) float64 { return math.Max(lo, math.Min(hi, v)) }

func ptr(v float64) *float64 { return &v }

func allNil(m map[string]*float64) bool {
	for _, v := range m {
		if v != nil {
			return false
		}
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
