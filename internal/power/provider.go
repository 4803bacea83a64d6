// Package power resolves wallet addresses to governance voting power.
// The tier-to-power table is policy, loaded from a YAML file and injected;
// where an address's tier comes from (NFT ownership, partner data) is an
// external concern behind the TierSource interface.
package power

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"
)

// TierSource reports the tier held by an address. An empty tier means the
// address holds none.
type TierSource interface {
	GetTier(ctx context.Context, address string) (string, error)
}

// TierConfig maps one tier name to its voting power.
type TierConfig struct {
	Name  string `yaml:"name"`
	Power int64  `yaml:"power"`
}

// TiersConfig is the YAML policy file layout. Holders is the out-of-band
// address-to-tier assignment used by the static source; deployments with a
// live tier indexer leave it empty.
type TiersConfig struct {
	Tiers   []TierConfig      `yaml:"tiers"`
	Holders map[string]string `yaml:"holders"`
}

// LoadTiersConfig reads the tier policy file from a YAML file.
func LoadTiersConfig(tiersFile string) (*TiersConfig, error) {
	var tiersPath string
	if filepath.IsAbs(tiersFile) {
		tiersPath = tiersFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		tiersPath = filepath.Join(wd, tiersFile)
	}

	data, err := os.ReadFile(tiersPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", tiersFile, err)
	}

	var config TiersConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", tiersFile, err)
	}

	for i, tier := range config.Tiers {
		if tier.Name == "" {
			return nil, fmt.Errorf("tier at index %d missing name", i)
		}
		if tier.Power <= 0 {
			return nil, fmt.Errorf("tier %q must have positive power", tier.Name)
		}
	}

	return &config, nil
}

// Powers returns the tier-to-power lookup table, keys lowercased.
func (c *TiersConfig) Powers() map[string]int64 {
	powers := make(map[string]int64, len(c.Tiers))
	for _, tier := range c.Tiers {
		powers[strings.ToLower(tier.Name)] = tier.Power
	}
	return powers
}

// TierProvider maps a tier reported by the source through the policy table.
// Addresses with no tier or an unknown tier have zero power.
type TierProvider struct {
	source TierSource
	powers map[string]int64
}

func NewTierProvider(source TierSource, powers map[string]int64) *TierProvider {
	return &TierProvider{source: source, powers: powers}
}

func (p *TierProvider) GetVotingPower(ctx context.Context, address string) (int64, error) {
	tier, err := p.source.GetTier(ctx, address)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve tier for %s: %w", address, err)
	}
	if tier == "" {
		return 0, nil
	}
	return p.powers[strings.ToLower(tier)], nil
}

// StaticTierSource serves tiers from a fixed map. Useful for tests and for
// deployments that sync tier ownership out of band.
type StaticTierSource struct {
	tiers map[string]string
}

func NewStaticTierSource(tiers map[string]string) *StaticTierSource {
	if tiers == nil {
		tiers = make(map[string]string)
	}
	return &StaticTierSource{tiers: tiers}
}

func (s *StaticTierSource) GetTier(_ context.Context, address string) (string, error) {
	return s.tiers[address], nil
}
