// Package capability holds the static registry of device capability
// descriptors: value domains, labels and defaults.
package capability

type (
	// Kind enumerates the value domains a capability can have.
	Kind string

	// Descriptor describes a single capability: its human label, value
	// domain and default value.
	Descriptor struct {
		Name    string
		Label   string
		Kind    Kind
		Min     int
		Max     int
		Step    int
		Options []string
		Default interface{}
	}
)

// Value kinds.
const (
	Bool   Kind = "bool"
	Range  Kind = "range"
	Enum   Kind = "enum"
	String Kind = "string"
	Color  Kind = "color"
)

// registry is loaded once and immutable for the process lifetime.
var registry = map[string]Descriptor{
	"on_off": {
		Name:    "on_off",
		Label:   "Power",
		Kind:    Bool,
		Default: false,
	},
	"brightness": {
		Name:    "brightness",
		Label:   "Brightness",
		Kind:    Range,
		Min:     0,
		Max:     100,
		Step:    1,
		Default: 0,
	},
	"position": {
		Name:    "position",
		Label:   "Position",
		Kind:    Range,
		Min:     0,
		Max:     100,
		Step:    1,
		Default: 0,
	},
	"cycle_selection": {
		Name:    "cycle_selection",
		Label:   "Wash cycle",
		Kind:    Enum,
		Options: []string{"Eco", "Rapide", "Intensif", "Coton", "Synthetique", "Delicat"},
		Default: "Eco",
	},
	"spin_speed_control": {
		Name:    "spin_speed_control",
		Label:   "Spin speed",
		Kind:    Range,
		Min:     400,
		Max:     1600,
		Step:    100,
		Default: 800,
	},
	"channel": {
		Name:    "channel",
		Label:   "Channel",
		Kind:    Range,
		Min:     1,
		Max:     999,
		Step:    1,
		Default: 1,
	},
	"volume": {
		Name:    "volume",
		Label:   "Volume",
		Kind:    Range,
		Min:     0,
		Max:     100,
		Step:    1,
		Default: 50,
	},
	"color": {
		Name:    "color",
		Label:   "Color",
		Kind:    Color,
		Default: "#ffffff",
	},
	"temperature": {
		Name:    "temperature",
		Label:   "Temperature",
		Kind:    Range,
		Min:     5,
		Max:     30,
		Step:    1,
		Default: 20,
	},
	"heat": {
		Name:    "heat",
		Label:   "Heating",
		Kind:    Bool,
		Default: false,
	},
	"mode": {
		Name:    "mode",
		Label:   "Mode",
		Kind:    Enum,
		Options: []string{"auto", "manual", "eco", "night"},
		Default: "auto",
	},
	"trackIndex": {
		Name:    "trackIndex",
		Label:   "Track",
		Kind:    Range,
		Min:     0,
		Max:     999,
		Step:    1,
		Default: 0,
	},
}

// Describe returns the descriptor for the given capability name. An unknown
// capability is not an error: the caller renders no control for it.
func Describe(name string) (Descriptor, bool) {
	d, ok := registry[name]
	return d, ok
}

// Clamp fits the given value into the capability's domain. Range values are
// clamped to [Min, Max], enum values outside the option list fall back to the
// default, booleans and strings pass through.
func (d Descriptor) Clamp(v interface{}) interface{} {
	switch d.Kind {
	case Range:
		n, ok := asInt(v)
		if !ok {
			return d.Default
		}
		if n < d.Min {
			return d.Min
		}
		if n > d.Max {
			return d.Max
		}
		return n
	case Enum:
		s, ok := v.(string)
		if !ok {
			return d.Default
		}
		for _, opt := range d.Options {
			if opt == s {
				return s
			}
		}
		return d.Default
	case Bool:
		if b, ok := v.(bool); ok {
			return b
		}
		return d.Default
	default:
		if s, ok := v.(string); ok {
			return s
		}
		return d.Default
	}
}

// asInt coerces the numeric types a decoded JSON value may arrive as.
func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case float32:
		return int(n), true
	default:
		return 0, false
	}
}
