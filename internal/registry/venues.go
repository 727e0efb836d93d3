package registry

import (
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"gopkg.in/yaml.v3"

	"github.com/solarb/arbengine/internal/types"
)

// venueListFile is the on-disk shape of ENGINE_CONFIG.VenueListPath: a flat
// list of pool addresses and the program that owns each one, so the registry
// knows which Adapter to route a freshly fetched account to (§4.3: "a
// configured venue list plus a dynamic discovery step"). The static list
// loaded here is merged each cycle with whatever discoverVenues (see
// discovery.go) finds via PDA derivation over DISCOVERY_TOKEN_MINTS.
type venueListFile struct {
	Venues []struct {
		Address string `yaml:"address"`
		Program string `yaml:"program"`
	} `yaml:"venues"`
}

// LoadVenueList reads and parses a YAML venue list from path. An empty path
// returns an empty list rather than an error, so the engine can still run
// (with nothing to refresh) against a fresh checkout with no venues
// configured yet.
func LoadVenueList(path string) ([]VenueEntry, error) {
	if path == "" {
		return nil, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read venue list %q: %w", path, err)
	}

	var parsed venueListFile
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse venue list %q: %w", path, err)
	}

	entries := make([]VenueEntry, 0, len(parsed.Venues))
	for _, v := range parsed.Venues {
		pk, err := solana.PublicKeyFromBase58(v.Address)
		if err != nil {
			return nil, fmt.Errorf("venue list %q: invalid address %q: %w", path, v.Address, err)
		}
		var addr types.Address
		copy(addr[:], pk[:])
		entries = append(entries, VenueEntry{Address: addr, Program: types.VenueProgram(v.Program)})
	}
	return entries, nil
}
