package jmon

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"gopkg.in/yaml.v3"
)

// Beats is a time or duration in beats. Besides plain numbers, documents may
// use transport notation "bars:beats:sixteenths" (in 4/4) and note values
// like "4n" (a quarter note), "8n." (dotted eighth) or "8t" (eighth
// triplet).
type Beats float64

const beatsPerWholeNote = 4

func (b Beats) MarshalJSON() ([]byte, error) { return json.Marshal(float64(b)) }

func (b *Beats) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := ParseBeats(s)
		if err != nil {
			return err
		}
		*b = v
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fault.Wrap(err, fmsg.With("time must be a number or a string"))
	}
	*b = Beats(f)
	return nil
}

func (b Beats) MarshalYAML() (any, error) { return float64(b), nil }

func (b *Beats) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fault.New("time must be a scalar")
	}
	switch value.ShortTag() {
	case "!!int", "!!float":
		f, err := strconv.ParseFloat(value.Value, 64)
		if err != nil {
			return fault.Wrap(err, fmsg.With("invalid time"))
		}
		*b = Beats(f)
		return nil
	}
	v, err := ParseBeats(value.Value)
	if err != nil {
		return err
	}
	*b = v
	return nil
}

// ParseBeats parses a number of beats, "bars:beats:sixteenths" or a note
// value.
func ParseBeats(s string) (Beats, error) {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Beats(f), nil
	}
	if strings.Contains(s, ":") {
		parts := strings.Split(s, ":")
		if len(parts) > 3 {
			return 0, invalidTime(s)
		}
		units := []float64{beatsPerWholeNote, 1, 0.25}
		total := 0.0
		for i, p := range parts {
			f, err := strconv.ParseFloat(p, 64)
			if err != nil {
				return 0, invalidTime(s)
			}
			total += f * units[i]
		}
		return Beats(total), nil
	}
	body, mult := s, 1.0
	switch {
	case strings.HasSuffix(body, "n."):
		body, mult = strings.TrimSuffix(body, "n."), 1.5
	case strings.HasSuffix(body, "n"):
		body = strings.TrimSuffix(body, "n")
	case strings.HasSuffix(body, "t"):
		body, mult = strings.TrimSuffix(body, "t"), 2.0/3
	default:
		return 0, invalidTime(s)
	}
	div, err := strconv.Atoi(body)
	if err != nil || div <= 0 {
		return 0, invalidTime(s)
	}
	return Beats(beatsPerWholeNote / float64(div) * mult), nil
}

func invalidTime(s string) error {
	return fault.New(fmt.Sprintf("invalid time %q", s), fmsg.WithDesc("invalid time", fmt.Sprintf("%q is not a valid time", s)))
}
