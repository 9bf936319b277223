package stage

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Flag names a job flag a stage can key off.
const (
	FlagColorize  = "colorize"
	FlagPanelView = "panel_view"
)

// Driver names.
const (
	DriverCommand = "command"
	DriverDrapto  = "drapto"
)

// Placeholders lists every {name} a definition may reference.
var Placeholders = []string{
	"raw",
	"character",
	"voice_bank",
	"renamed",
	"colorized",
	"json",
	"transcript",
	"transcript_file",
	"audio",
	"final",
	"artifact",
	"reencoded",
	"assembly_input",
	"root",
}

var placeholderPattern = regexp.MustCompile(`\{([a-z_]+)\}`)

// Flags are the per-job toggles.
type Flags struct {
	Colorize  bool `json:"colorize"`
	PanelView bool `json:"panel_view"`
}

// Enabled reports whether the named flag is set. Unknown names are false.
func (f Flags) Enabled(name string) bool {
	switch name {
	case FlagColorize:
		return f.Colorize
	case FlagPanelView:
		return f.PanelView
	default:
		return false
	}
}

// Definition describes one unit of external work. Definitions are built once
// at startup and never mutated.
type Definition struct {
	Name      string              `yaml:"name"`
	Command   string              `yaml:"command"`
	Args      []string            `yaml:"args"`
	WorkDir   string              `yaml:"work_dir,omitempty"`
	Inputs    []string            `yaml:"inputs,omitempty"`
	Produces  string              `yaml:"produces,omitempty"`
	Optional  bool                `yaml:"optional,omitempty"`
	EnabledBy string              `yaml:"enabled_by,omitempty"`
	FlagArgs  map[string][]string `yaml:"flag_args,omitempty"`
	Driver    string              `yaml:"driver,omitempty"`
}

// DriverName returns the driver, defaulting to the command driver.
func (d Definition) DriverName() string {
	if name := strings.TrimSpace(d.Driver); name != "" {
		return name
	}
	return DriverCommand
}

// Active reports whether the stage should run for the given flags.
func (d Definition) Active(flags Flags) bool {
	if !d.Optional || d.EnabledBy == "" {
		return true
	}
	return flags.Enabled(d.EnabledBy)
}

// Invocation is a definition with every placeholder substituted.
type Invocation struct {
	Stage    string
	Command  string
	Args     []string
	WorkDir  string
	Inputs   []string
	Produces string
}

// Argv returns the command followed by its arguments.
func (inv Invocation) Argv() []string {
	return append([]string{inv.Command}, inv.Args...)
}

// Expand substitutes placeholders from vars and appends flag_args for set
// flags in sorted flag order. Expansion is deterministic for equal inputs.
func Expand(def Definition, vars map[string]string, flags Flags) (Invocation, error) {
	inv := Invocation{Stage: def.Name}
	var err error
	if inv.Command, err = substitute(def.Command, vars); err != nil {
		return Invocation{}, err
	}
	if inv.WorkDir, err = substitute(def.WorkDir, vars); err != nil {
		return Invocation{}, err
	}
	if inv.Produces, err = substitute(def.Produces, vars); err != nil {
		return Invocation{}, err
	}
	for _, arg := range def.Args {
		value, err := substitute(arg, vars)
		if err != nil {
			return Invocation{}, err
		}
		inv.Args = append(inv.Args, value)
	}
	for _, flag := range sortedKeys(def.FlagArgs) {
		if !flags.Enabled(flag) {
			continue
		}
		for _, arg := range def.FlagArgs[flag] {
			value, err := substitute(arg, vars)
			if err != nil {
				return Invocation{}, err
			}
			inv.Args = append(inv.Args, value)
		}
	}
	for _, input := range def.Inputs {
		value, err := substitute(input, vars)
		if err != nil {
			return Invocation{}, err
		}
		inv.Inputs = append(inv.Inputs, value)
	}
	return inv, nil
}

func substitute(template string, vars map[string]string) (string, error) {
	var missing string
	out := placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		key := match[1 : len(match)-1]
		value, ok := vars[key]
		if !ok && missing == "" {
			missing = key
		}
		return value
	})
	if missing != "" {
		return "", fmt.Errorf("unknown placeholder {%s} in %q", missing, template)
	}
	return out, nil
}

// references returns every placeholder name used anywhere in the definition.
func (d Definition) references() []string {
	fields := append([]string{d.Command, d.WorkDir, d.Produces}, d.Args...)
	fields = append(fields, d.Inputs...)
	for _, args := range d.FlagArgs {
		fields = append(fields, args...)
	}
	var names []string
	for _, field := range fields {
		for _, match := range placeholderPattern.FindAllStringSubmatch(field, -1) {
			names = append(names, match[1])
		}
	}
	return names
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
