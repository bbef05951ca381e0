package atlas_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/playperu/expedition/internal/atlas"
)

func TestDefault(t *testing.T) {
	a := atlas.Default()

	if s, ok := a.SettlementFor("eldin"); !ok || s != "rudania" {
		t.Errorf("eldin settlement = %q, %v", s, ok)
	}
	if _, ok := a.SettlementFor("hebra"); ok {
		t.Error("unknown region resolved")
	}

	h8 := a.Square("H8")
	if h8.Region != "eldin" || len(h8.Settlements) != 1 || h8.Settlements[0] != "rudania" {
		t.Errorf("H8 = %+v", h8)
	}
	if sq := a.Square("A1"); sq.Hazard || len(sq.Paths) != 0 {
		t.Errorf("unlisted square has overlays: %+v", sq)
	}

	var wood *atlas.Bundle
	for i := range a.Items.Bundles {
		if a.Items.Bundles[i].Name == "Wood Bundle" {
			wood = &a.Items.Bundles[i]
		}
	}
	if wood == nil || wood.Material != "Wood" || wood.Quantity != 5 {
		t.Errorf("wood bundle = %+v", wood)
	}
}

func TestParseRejectsInvalidLayout(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing settlement", "regions: {eldin: {}}\nitems: {}\nsquares: {}\n"},
		{"bad square id", "regions: {eldin: {settlement: rudania}}\nitems: {}\nsquares: {Z99: {region: eldin}}\n"},
		{"zero bundle", "regions: {eldin: {settlement: rudania}}\nitems: {bundles: [{name: A, material: B, quantity: 0}]}\nsquares: {}\n"},
		{"unknown key", "regions: {eldin: {settlement: rudania}}\nitems: {}\nsquares: {}\nweather: sunny\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := atlas.Parse([]byte(tt.yaml)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "atlas.yaml")
	raw := "regions:\n  hebra:\n    settlement: tarrey\nitems: {}\nsquares:\n  B2:\n    region: hebra\n    hazard: true\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	a, err := atlas.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !a.Square("B2").Hazard {
		t.Error("B2 should be hazardous")
	}
	if got := strings.Join(a.RegionNames(), ","); got != "hebra" {
		t.Errorf("regions = %s", got)
	}
}
