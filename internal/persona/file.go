package persona

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileProfile is the on-disk character sheet. Missing traits keep the base
// value (MBTI-derived when mbti is set, otherwise the defaults).
type fileProfile struct {
	MBTI   string `yaml:"mbti"`
	Traits struct {
		Affection  *float64 `yaml:"affection"`
		Observance *float64 `yaml:"observance"`
		Irony      *float64 `yaml:"irony"`
		Reserve    *float64 `yaml:"reserve"`
		Curiosity  *float64 `yaml:"curiosity"`
	} `yaml:"traits"`
}

func LoadFile(path string) (Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read personality file: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (Profile, error) {
	var f fileProfile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return Profile{}, fmt.Errorf("parse personality file: %w", err)
	}

	p := DefaultProfile()
	if f.MBTI != "" {
		derived, err := FromMBTI(f.MBTI)
		if err != nil {
			return Profile{}, err
		}
		p = derived
	}
	fields := []struct {
		name string
		src  *float64
		dst  *float64
	}{
		{"affection", f.Traits.Affection, &p.Affection},
		{"observance", f.Traits.Observance, &p.Observance},
		{"irony", f.Traits.Irony, &p.Irony},
		{"reserve", f.Traits.Reserve, &p.Reserve},
		{"curiosity", f.Traits.Curiosity, &p.Curiosity},
	}
	for _, fl := range fields {
		if fl.src == nil {
			continue
		}
		if *fl.src < 0 || *fl.src > 1 {
			return Profile{}, fmt.Errorf("%w: %s=%v out of range [0,1]", ErrInvalidTrait, fl.name, *fl.src)
		}
		*fl.dst = *fl.src
	}
	return p, nil
}
