package ledlink

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// ProfileFile is the content of a profile file: additional transmitter profiles
// and receiver presets, keyed by device name
type ProfileFile struct {
	Transmitters ProfileTable `yaml:"transmitters"`
	Receivers    PresetTable  `yaml:"receivers"`
}

// LoadProfiles reads and validates a profile file
func LoadProfiles(filename string) (*ProfileFile, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read profile file: %w", err)
	}
	f, err := ParseProfiles(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	log.Debugf("Loaded %d transmitter profiles and %d receiver presets from %s",
		len(f.Transmitters), len(f.Receivers), filename)
	return f, nil
}

// ParseProfiles decodes and validates profile file content
func ParseProfiles(data []byte) (*ProfileFile, error) {
	var f ProfileFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("unmarshal profiles: %w", err)
	}
	for name, p := range f.Transmitters {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("transmitter %q: %w", name, err)
		}
	}
	for name, p := range f.Receivers {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("receiver %q: %w", name, err)
		}
	}
	return &f, nil
}

// Merge returns a copy of t extended with the entries of other, which take precedence
func (t ProfileTable) Merge(other ProfileTable) ProfileTable {
	out := make(ProfileTable, len(t)+len(other))
	for k, v := range t {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Merge returns a copy of t extended with the entries of other, which take precedence
func (t PresetTable) Merge(other PresetTable) PresetTable {
	out := make(PresetTable, len(t)+len(other))
	for k, v := range t {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}
