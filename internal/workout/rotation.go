package workout

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	_ "embed"
)

//go:embed splits.yaml
var splitsDefinition []byte

const (
	minFrequency     = 1
	maxFrequency     = 5
	defaultFrequency = 3
)

// catalogue is the muscle group configuration the rotation works from.
type catalogue struct {
	Standard     []string              `yaml:"standard"`
	Pro          map[string][][]string `yaml:"pro"`
	Splits       map[int][]string      `yaml:"splits"`
	Descriptions map[int]string        `yaml:"descriptions"`
}

func (c catalogue) validate() error {
	if len(c.Standard) == 0 {
		return errors.New("standard rotation is empty")
	}
	for _, gender := range []string{"male", "female"} {
		if len(c.Pro[gender]) == 0 {
			return fmt.Errorf("pro rotation for %s is empty", gender)
		}
	}
	for f := minFrequency; f <= maxFrequency; f++ {
		if len(c.Splits[f]) == 0 {
			return fmt.Errorf("split for frequency %d is empty", f)
		}
	}
	return nil
}

// Rotator picks muscle groups from the catalogue. It is stateless; the position in the rotation is the last
// trained group stored in the profile.
type Rotator struct {
	catalogue catalogue
}

// NewRotator loads the embedded catalogue.
func NewRotator() (*Rotator, error) {
	var c catalogue
	if err := yaml.Unmarshal(splitsDefinition, &c); err != nil {
		return nil, fmt.Errorf("parse splits: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("validate splits: %w", err)
	}
	return &Rotator{catalogue: c}, nil
}

// Next returns the group to train after p.LastMuscleGroup. An unknown or empty last group restarts the rotation.
func (r *Rotator) Next(p Profile) string {
	if p.IsPro {
		return r.nextPro(p.Gender, p.LastMuscleGroup)
	}
	i := slices.Index(r.catalogue.Standard, p.LastMuscleGroup)
	return r.catalogue.Standard[(i+1)%len(r.catalogue.Standard)]
}

func (r *Rotator) nextPro(gender, last string) string {
	sets := r.catalogue.Pro[proGender(gender)]
	i := slices.IndexFunc(sets, func(set []string) bool { return joinGroups(set) == last })
	if i < 0 {
		i = slices.IndexFunc(sets, func(set []string) bool { return slices.Contains(set, last) })
	}
	// An unmatched last group yields index 0 as well.
	return joinGroups(sets[(i+1)%len(sets)])
}

func proGender(gender string) string {
	switch strings.ToLower(strings.TrimSpace(gender)) {
	case "female", "женский", "женщина", "ж":
		return "female"
	}
	return "male"
}

// Split returns the weekly split for frequency, falling back to the default frequency outside the known range.
func (r *Rotator) Split(frequency int) []string {
	if split, ok := r.catalogue.Splits[frequency]; ok {
		return slices.Clone(split)
	}
	return slices.Clone(r.catalogue.Splits[defaultFrequency])
}

// Description describes the weekly split for frequency.
func (r *Rotator) Description(frequency int) string {
	if d, ok := r.catalogue.Descriptions[frequency]; ok {
		return d
	}
	return r.catalogue.Descriptions[defaultFrequency]
}

func joinGroups(groups []string) string {
	return strings.Join(groups, ", ")
}
