package stage

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"panelcast/internal/config"
	"panelcast/internal/services"
)

// Manifest is the YAML form of a stage list override.
type Manifest struct {
	Stages   []Definition `yaml:"stages"`
	Reencode *Definition  `yaml:"reencode,omitempty"`
}

// LoadManifest reads and validates a stage manifest.
func LoadManifest(path string) (Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return Manifest{}, services.Wrap(services.ErrConfiguration, "stages", "open manifest", path, err)
	}
	defer f.Close()

	var manifest Manifest
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&manifest); err != nil {
		return Manifest{}, services.Wrap(services.ErrConfiguration, "stages", "parse manifest", path, err)
	}
	if err := manifest.Validate(); err != nil {
		return Manifest{}, services.Wrap(services.ErrConfiguration, "stages", "validate manifest", path, err)
	}
	return manifest, nil
}

// Validate checks names, commands, placeholders, flags, and drivers.
func (m Manifest) Validate() error {
	if len(m.Stages) == 0 && m.Reencode == nil {
		return errors.New("manifest defines no stages")
	}
	var errs []error
	seen := map[string]struct{}{}
	for i, def := range m.Stages {
		if err := ValidateDefinition(def); err != nil {
			errs = append(errs, fmt.Errorf("stages[%d]: %w", i, err))
			continue
		}
		if _, dup := seen[def.Name]; dup {
			errs = append(errs, fmt.Errorf("stages[%d]: duplicate stage name %q", i, def.Name))
		}
		seen[def.Name] = struct{}{}
	}
	if m.Reencode != nil {
		if err := ValidateDefinition(*m.Reencode); err != nil {
			errs = append(errs, fmt.Errorf("reencode: %w", err))
		} else if m.Reencode.Optional {
			errs = append(errs, errors.New("reencode: must not be optional"))
		}
	}
	return errors.Join(errs...)
}

// ValidateDefinition checks a single definition.
func ValidateDefinition(def Definition) error {
	if strings.TrimSpace(def.Name) == "" {
		return errors.New("name is required")
	}
	if strings.TrimSpace(def.Command) == "" && def.DriverName() == DriverCommand {
		return fmt.Errorf("%s: command is required", def.Name)
	}
	switch def.DriverName() {
	case DriverCommand, DriverDrapto:
	default:
		return fmt.Errorf("%s: unknown driver %q", def.Name, def.Driver)
	}
	if def.EnabledBy != "" {
		if !knownFlag(def.EnabledBy) {
			return fmt.Errorf("%s: unknown enabling flag %q", def.Name, def.EnabledBy)
		}
		if !def.Optional {
			return fmt.Errorf("%s: enabled_by requires optional: true", def.Name)
		}
	}
	for flag := range def.FlagArgs {
		if !knownFlag(flag) {
			return fmt.Errorf("%s: unknown flag %q in flag_args", def.Name, flag)
		}
	}
	for _, name := range def.references() {
		if !slices.Contains(Placeholders, name) {
			return fmt.Errorf("%s: unknown placeholder {%s}", def.Name, name)
		}
	}
	return nil
}

// Load returns the stage list and re-encode definition for cfg, applying the
// configured manifest over the built-in definitions.
func Load(cfg *config.Config) ([]Definition, Definition, error) {
	stages, reencode := DefaultDefinitions(cfg)
	if strings.TrimSpace(cfg.Stages.Manifest) == "" {
		return stages, reencode, nil
	}
	manifest, err := LoadManifest(cfg.Stages.Manifest)
	if err != nil {
		return nil, Definition{}, err
	}
	if len(manifest.Stages) > 0 {
		stages = manifest.Stages
	}
	if manifest.Reencode != nil {
		reencode = *manifest.Reencode
	}
	return stages, reencode, nil
}

func knownFlag(name string) bool {
	return name == FlagColorize || name == FlagPanelView
}
