package spotter

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidSetting rejects an out-of-domain settings value. The prior
// value is retained.
var ErrInvalidSetting = errors.New("spotter: invalid setting")

// Settings defaults.
const (
	DefaultAverage     = 5
	DefaultSensitivity = 8
	DefaultContrast    = 0    // -100..100, camera-style percent
	DefaultBrightness  = 0    // -100..100 luminance offset percent
	DefaultMunitionMM  = 4.5  // air rifle diabolo
)

// Mode setting values accepted from the command surface.
const (
	ModePreview = "preview"
	ModeStart   = "start"
)

// Settings is the flat process-wide parameter set. Every field may be
// updated independently at runtime and takes effect on the next
// pipeline cycle. Fields are plain values; the engine guards the single
// instance with its own lock.
type Settings struct {
	Contrast       int            `json:"contrast"`   // -100..100
	Brightness     int            `json:"brightness"` // -100..100
	Sensitivity    int            `json:"sensitivity"`
	Average        int            `json:"average"`
	ShowDifference bool           `json:"show_difference"`
	Target         string         `json:"target"`
	MunitionMM     float64        `json:"munition_mm"`
	RingCorrection RingCorrection `json:"ring_correction"`
	Mode           string         `json:"mode"`
}

// DefaultSettings returns the engine's startup parameters.
func DefaultSettings() Settings {
	return Settings{
		Contrast:    DefaultContrast,
		Brightness:  DefaultBrightness,
		Sensitivity: DefaultSensitivity,
		Average:     DefaultAverage,
		Target:      DefaultTargetName,
		MunitionMM:  DefaultMunitionMM,
		Mode:        ModePreview,
	}
}

// Apply sets one named parameter from a transport-decoded value
// (string, bool or float64 from JSON). Unknown parameters and
// out-of-domain values return ErrInvalidSetting and leave the settings
// untouched. Repeated updates to the same parameter are last-write-wins.
func (s *Settings) Apply(param string, value any) error {
	switch strings.ToLower(param) {
	case "contrast":
		v, err := settingInt(value)
		if err != nil || v < -100 || v > 100 {
			return fmt.Errorf("%w: contrast %v", ErrInvalidSetting, value)
		}
		s.Contrast = v
	case "brightness":
		v, err := settingInt(value)
		if err != nil || v < -100 || v > 100 {
			return fmt.Errorf("%w: brightness %v", ErrInvalidSetting, value)
		}
		s.Brightness = v
	case "sensitivity", "threshold":
		v, err := settingInt(value)
		if err != nil || v < MinSensitivity || v > MaxSensitivity {
			return fmt.Errorf("%w: sensitivity %v", ErrInvalidSetting, value)
		}
		s.Sensitivity = v
	case "average":
		v, err := settingInt(value)
		if err != nil || v < 1 || v > 100 {
			return fmt.Errorf("%w: average %v", ErrInvalidSetting, value)
		}
		s.Average = v
	case "showdifference", "show_difference":
		v, err := settingBool(value)
		if err != nil {
			return fmt.Errorf("%w: show_difference %v", ErrInvalidSetting, value)
		}
		s.ShowDifference = v
	case "target":
		name, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: target %v", ErrInvalidSetting, value)
		}
		found := false
		for _, t := range Targets() {
			if t.Name == name {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: unknown target %q", ErrInvalidSetting, name)
		}
		s.Target = name
	case "munition", "munition_mm", "caliber":
		v, err := settingFloat(value)
		if err != nil || v <= 0 || v > 30 {
			return fmt.Errorf("%w: munition %v", ErrInvalidSetting, value)
		}
		s.MunitionMM = v
	case "ringwidth", "ring_width":
		return s.applyCorrection(&s.RingCorrection.Width, value)
	case "ringheight", "ring_height":
		return s.applyCorrection(&s.RingCorrection.Height, value)
	case "ringleft", "ring_left":
		return s.applyCorrection(&s.RingCorrection.Left, value)
	case "ringtop", "ring_top":
		return s.applyCorrection(&s.RingCorrection.Top, value)
	case "mode":
		mode, ok := value.(string)
		if !ok || (mode != ModePreview && mode != ModeStart) {
			return fmt.Errorf("%w: mode %v", ErrInvalidSetting, value)
		}
		s.Mode = mode
	default:
		return fmt.Errorf("%w: unknown parameter %q", ErrInvalidSetting, param)
	}
	return nil
}

func (s *Settings) applyCorrection(field *float64, value any) error {
	v, err := settingFloat(value)
	if err != nil || v < -50 || v > 50 {
		return fmt.Errorf("%w: ring correction %v", ErrInvalidSetting, value)
	}
	*field = v
	return nil
}

func settingFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(v, 64)
	}
	return 0, fmt.Errorf("not a number: %v", value)
}

func settingInt(value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("not an integer: %v", v)
		}
		return int(v), nil
	case string:
		return strconv.Atoi(v)
	}
	return 0, fmt.Errorf("not an integer: %v", value)
}

func settingBool(value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		return strconv.ParseBool(v)
	case float64:
		return v != 0, nil
	}
	return false, fmt.Errorf("not a bool: %v", value)
}
