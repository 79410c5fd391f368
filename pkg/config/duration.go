package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultInterval = time.Minute

// Duration is a time.Duration that reads either Go duration syntax
// ("90s", "5m") or a clock form "HH:MM:SS"
type Duration time.Duration

// ParseInterval parses "HH:MM:SS" (hours may exceed 24) or a Go duration
func ParseInterval(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty interval")
	}

	if strings.Contains(s, ":") {
		parts := strings.Split(s, ":")
		if len(parts) != 3 {
			return 0, fmt.Errorf("invalid interval %q: expected HH:MM:SS", s)
		}

		var values [3]int
		for i, p := range parts {
			v, err := strconv.Atoi(p)
			if err != nil || v < 0 {
				return 0, fmt.Errorf("invalid interval %q: expected HH:MM:SS", s)
			}
			values[i] = v
		}
		if values[1] > 59 || values[2] > 59 {
			return 0, fmt.Errorf("invalid interval %q: minutes and seconds must be below 60", s)
		}

		return time.Duration(values[0])*time.Hour +
			time.Duration(values[1])*time.Minute +
			time.Duration(values[2])*time.Second, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q: %w", s, err)
	}
	return d, nil
}

// Duration returns the value as a time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if s == "0" {
		*d = 0
		return nil
	}

	parsed, err := ParseInterval(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}
