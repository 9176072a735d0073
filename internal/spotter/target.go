package spotter

// TargetRing is one scoring band. Scale is the ring's outer boundary
// diameter relative to the mirror diameter; Value is the score for a
// hit inside that boundary (refined by any smaller ring that also
// contains it).
type TargetRing struct {
	Value int     `json:"value"`
	Scale float64 `json:"scale"`
}

// TargetDefinition describes one target face: its ring geometry
// relative to the mirror and the real mirror diameter used to scale
// munition overlays. Definitions are read-only presets; selection
// happens through the target setting.
type TargetDefinition struct {
	Name     string       `json:"name"`
	MirrorMM float64      `json:"mirror_mm"` // physical mirror diameter
	Rings    []TargetRing `json:"rings"`     // ordered outermost first
	// MaxCountedRing caps the per-mark ring value that enters the ring
	// sum; marks scoring above it are tallied separately.
	MaxCountedRing int `json:"max_counted_ring"`
}

// DefaultTargetName selects the preset used when no target setting has
// been applied.
const DefaultTargetName = "rifle-50m"

// targetPresets is the read-only registry of known target faces. The
// rifle face carries elevens: an inner ring beyond the ten that is
// displayed but counted as ten in the sum.
var targetPresets = []TargetDefinition{
	{
		Name:           "rifle-50m",
		MirrorMM:       60,
		MaxCountedRing: 10,
		Rings: []TargetRing{
			{Value: 1, Scale: 2.5},
			{Value: 2, Scale: 2.25},
			{Value: 3, Scale: 2.0},
			{Value: 4, Scale: 1.75},
			{Value: 5, Scale: 1.5},
			{Value: 6, Scale: 1.25},
			{Value: 7, Scale: 1.0},
			{Value: 8, Scale: 0.75},
			{Value: 9, Scale: 0.5},
			{Value: 10, Scale: 0.25},
			{Value: 11, Scale: 0.125},
		},
	},
	{
		Name:           "pistol-25m",
		MirrorMM:       200,
		MaxCountedRing: 10,
		Rings: []TargetRing{
			{Value: 5, Scale: 2.5},
			{Value: 6, Scale: 2.0},
			{Value: 7, Scale: 1.5},
			{Value: 8, Scale: 1.0},
			{Value: 9, Scale: 0.6},
			{Value: 10, Scale: 0.25},
		},
	},
}

// Targets returns the list of named target definitions. Callers must
// not mutate the returned slice contents.
func Targets() []TargetDefinition {
	out := make([]TargetDefinition, len(targetPresets))
	copy(out, targetPresets)
	return out
}

// TargetByName looks up a preset. Unknown names fall back to the
// default target so a stale selector value never breaks scoring.
func TargetByName(name string) TargetDefinition {
	for _, t := range targetPresets {
		if t.Name == name {
			return t
		}
	}
	for _, t := range targetPresets {
		if t.Name == DefaultTargetName {
			return t
		}
	}
	return targetPresets[0]
}
