// Package seed loads reference data shipped with a deployment.
package seed

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/safetrade/marketplace/backend/internal/geo"
	"github.com/safetrade/marketplace/backend/internal/models"
	"gopkg.in/yaml.v3"
)

type safeZoneFile struct {
	SafeZones []safeZoneEntry `yaml:"safe_zones"`
}

type safeZoneEntry struct {
	models.SafeZone `yaml:",inline"`
	Active          *bool `yaml:"active"`
}

// LoadSafeZones reads a YAML file of the form
//
//	safe_zones:
//	  - name: Central Precinct
//	    kind: police_station
//	    city: Portland
//	    ...
//
// Entries are active unless they say otherwise.
func LoadSafeZones(path string) ([]models.SafeZone, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading safe zone seed: %w", err)
	}
	return ParseSafeZones(raw)
}

func ParseSafeZones(raw []byte) ([]models.SafeZone, error) {
	var file safeZoneFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parsing safe zone seed: %w", err)
	}

	zones := make([]models.SafeZone, 0, len(file.SafeZones))
	seen := make(map[string]bool, len(file.SafeZones))
	for i, e := range file.SafeZones {
		z := e.SafeZone
		z.Active = e.Active == nil || *e.Active
		if err := validateSeedZone(z); err != nil {
			return nil, fmt.Errorf("safe zone #%d (%q): %w", i+1, z.Name, err)
		}
		key := strings.ToLower(z.Name + "|" + z.City)
		if seen[key] {
			return nil, fmt.Errorf("safe zone #%d: duplicate %q in %s", i+1, z.Name, z.City)
		}
		seen[key] = true
		zones = append(zones, z)
	}
	return zones, nil
}

func validateSeedZone(z models.SafeZone) error {
	if z.Name == "" || z.City == "" || z.Address == "" {
		return fmt.Errorf("name, city and address are required")
	}
	known := false
	for _, k := range models.SafeZoneKinds {
		if z.Kind == k {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown kind %q", z.Kind)
	}
	if !(geo.Point{Lat: z.Latitude, Lng: z.Longitude}).Valid() {
		return fmt.Errorf("coordinates out of range")
	}
	return nil
}
