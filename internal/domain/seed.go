package domain

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StationSeed is the YAML description of a station known before it connects.
type StationSeed struct {
	ID              string     `yaml:"id"`
	Vendor          string     `yaml:"vendor"`
	Model           string     `yaml:"model"`
	SerialNumber    string     `yaml:"serial_number"`
	FirmwareVersion string     `yaml:"firmware_version"`
	AdminStatus     string     `yaml:"admin_status"`
	Description     string     `yaml:"description"`
	NetworkingNode  string     `yaml:"networking_node"`
	EVSEs           []EVSESpec `yaml:"evses"`
	Tariffs         []Tariff   `yaml:"tariffs"`
}

type seedFile struct {
	Stations []StationSeed `yaml:"stations"`
}

// ParseStations decodes a YAML seed document into stations.
func ParseStations(data []byte) ([]*ChargingStation, error) {
	var doc seedFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode station seed: %w", err)
	}

	stations := make([]*ChargingStation, 0, len(doc.Stations))
	for i, seed := range doc.Stations {
		b := &ChargingStationBuilder{
			ID:              StationID(seed.ID),
			Vendor:          seed.Vendor,
			Model:           seed.Model,
			SerialNumber:    seed.SerialNumber,
			FirmwareVersion: seed.FirmwareVersion,
			AdminStatus:     AdminStatus(seed.AdminStatus),
			Description:     seed.Description,
			NetworkingNode:  seed.NetworkingNode,
			EVSEs:           seed.EVSEs,
			Tariffs:         seed.Tariffs,
		}
		cs, err := b.Build()
		if err != nil {
			return nil, fmt.Errorf("station %d (%q): %w", i, seed.ID, err)
		}
		stations = append(stations, cs)
	}

	return stations, nil
}

// LoadStations reads a YAML seed file.
func LoadStations(path string) ([]*ChargingStation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read station seed: %w", err)
	}
	return ParseStations(data)
}
