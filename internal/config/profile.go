package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/couchcryptid/storm-data-tbb/internal/domain"
)

// ProfileEnvPrefix prefixes environment overrides of the analysis profile.
// Nested keys use a double underscore: TBB_BANDS__REFERENCE=B14.
const ProfileEnvPrefix = "TBB_"

// Profile is the analysis profile: which variable to read, how to sample,
// and which bands play which role.
type Profile struct {
	Variable     string    `koanf:"variable"`
	DefaultUnit  string    `koanf:"default_unit"`
	ResolutionKM float64   `koanf:"resolution_km"`
	DistanceMode string    `koanf:"distance_mode"`
	RadiusMode   string    `koanf:"radius_mode"`
	Bands        BandRoles `koanf:"bands"`
}

// BandRoles assigns AHI bands to index roles. Empty roles disable their index.
type BandRoles struct {
	Reference   string `koanf:"reference"`
	Shortwave   string `koanf:"shortwave"`
	WaterVapor  string `koanf:"water_vapor"`
	TurbulenceA string `koanf:"turbulence_a"`
	TurbulenceB string `koanf:"turbulence_b"`
}

// DefaultProfile returns the Himawari defaults.
func DefaultProfile() Profile {
	sampler := domain.DefaultSamplerConfig()
	idx := domain.DefaultIndexConfig()
	return Profile{
		Variable:     "tbb",
		DefaultUnit:  string(domain.Kelvin),
		ResolutionKM: sampler.ResolutionKM,
		DistanceMode: string(sampler.DistanceMode),
		RadiusMode:   string(sampler.RadiusMode),
		Bands: BandRoles{
			Reference:   idx.Reference,
			Shortwave:   idx.Shortwave,
			WaterVapor:  idx.WaterVapor,
			TurbulenceA: idx.TurbulenceA,
			TurbulenceB: idx.TurbulenceB,
		},
	}
}

// LoadProfile layers defaults, the YAML file at path (if non-empty), and
// TBB_-prefixed environment variables, then validates the result.
func LoadProfile(path string) (*Profile, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load profile %s: %w", path, err)
		}
	}

	// TBB_RADIUS_MODE -> radius_mode, TBB_BANDS__WATER_VAPOR -> bands.water_vapor
	envProvider := env.Provider(ProfileEnvPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, ProfileEnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load profile env: %w", err)
	}

	p := DefaultProfile()
	if err := k.UnmarshalWithConf("", &p, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadProfileFromEnv loads the profile named by TBB_PROFILE, if any.
func LoadProfileFromEnv() (*Profile, error) {
	return LoadProfile(os.Getenv("TBB_PROFILE"))
}

// Validate checks every field that the domain configs depend on.
func (p Profile) Validate() error {
	if _, err := p.Unit(); err != nil {
		return err
	}
	if _, err := p.SamplerConfig(); err != nil {
		return err
	}
	if _, err := p.IndexConfig(); err != nil {
		return err
	}
	return nil
}

// Unit returns the unit assumed for variables without a units attribute.
func (p Profile) Unit() (domain.Unit, error) {
	u, ok := domain.ParseUnit(p.DefaultUnit)
	if !ok {
		return "", fmt.Errorf("profile: unknown default_unit %q", p.DefaultUnit)
	}
	return u, nil
}

// SamplerConfig builds the sampler policy.
func (p Profile) SamplerConfig() (domain.SamplerConfig, error) {
	dm, err := domain.ParseDistanceMode(p.DistanceMode)
	if err != nil {
		return domain.SamplerConfig{}, fmt.Errorf("profile: %w", err)
	}
	rm, err := domain.ParseRadiusMode(p.RadiusMode)
	if err != nil {
		return domain.SamplerConfig{}, fmt.Errorf("profile: %w", err)
	}
	cfg := domain.SamplerConfig{DistanceMode: dm, RadiusMode: rm, ResolutionKM: p.ResolutionKM}
	if err := cfg.Validate(); err != nil {
		return domain.SamplerConfig{}, fmt.Errorf("profile: %w", err)
	}
	return cfg, nil
}

// IndexConfig builds the band role assignment.
func (p Profile) IndexConfig() (domain.IndexConfig, error) {
	cfg := domain.IndexConfig{
		Reference:   strings.ToUpper(p.Bands.Reference),
		Shortwave:   strings.ToUpper(p.Bands.Shortwave),
		WaterVapor:  strings.ToUpper(p.Bands.WaterVapor),
		TurbulenceA: strings.ToUpper(p.Bands.TurbulenceA),
		TurbulenceB: strings.ToUpper(p.Bands.TurbulenceB),
	}
	if err := cfg.Validate(); err != nil {
		return domain.IndexConfig{}, errors.Join(errors.New("profile: invalid bands"), err)
	}
	return cfg, nil
}
