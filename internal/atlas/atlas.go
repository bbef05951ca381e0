// Package atlas holds the static world layout: region settlements, the
// overlays drawn on each map square, and the item rules for loadouts.
package atlas

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed atlas.yaml
var defaultLayout []byte

//go:embed atlas.schema.json
var schemaJSON string

type Atlas struct {
	Regions map[string]Region `yaml:"regions"`
	Items   ItemRules         `yaml:"items"`
	Squares map[string]Square `yaml:"squares"`
}

type Region struct {
	Settlement string `yaml:"settlement"`
}

type ItemRules struct {
	RawMaterialExceptions []string `yaml:"rawMaterialExceptions"`
	Bundles               []Bundle `yaml:"bundles"`
}

// Bundle is an inventory unit that expands into Quantity units of Material
// when refunded.
type Bundle struct {
	Name     string `yaml:"name"`
	Material string `yaml:"material"`
	Quantity int    `yaml:"quantity"`
}

type Square struct {
	Region      string   `yaml:"region"`
	Hazard      bool     `yaml:"hazard"`
	Paths       []string `yaml:"paths"`
	Settlements []string `yaml:"settlements"`
}

// Default returns the layout compiled into the binary.
func Default() *Atlas {
	a, err := Parse(defaultLayout)
	if err != nil {
		panic(fmt.Sprintf("atlas: embedded layout: %v", err))
	}
	return a
}

// Load reads a layout file from disk.
func Load(path string) (*Atlas, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	a, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}

// Parse validates raw YAML against the layout schema and decodes it.
func Parse(raw []byte) (*Atlas, error) {
	if err := validate(raw); err != nil {
		return nil, err
	}
	var a Atlas
	if err := yaml.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("decoding layout: %w", err)
	}
	return &a, nil
}

func validate(raw []byte) error {
	schema, err := jsonschema.CompileString("atlas.schema.json", schemaJSON)
	if err != nil {
		return fmt.Errorf("compiling layout schema: %w", err)
	}

	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decoding layout: %w", err)
	}
	// Round-trip through JSON so the validator sees json.Number and
	// map[string]any rather than YAML-native types.
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("re-encoding layout: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("re-decoding layout: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("invalid layout: %w", err)
	}
	return nil
}

// SettlementFor returns the settlement whose residents may explore region.
func (a *Atlas) SettlementFor(region string) (string, bool) {
	r, ok := a.Regions[region]
	if !ok {
		return "", false
	}
	return r.Settlement, true
}

// Square returns the layout of id. Squares absent from the layout have no
// overlays.
func (a *Atlas) Square(id string) Square {
	return a.Squares[id]
}

// RegionNames returns the known regions in sorted order.
func (a *Atlas) RegionNames() []string {
	names := make([]string, 0, len(a.Regions))
	for name := range a.Regions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
