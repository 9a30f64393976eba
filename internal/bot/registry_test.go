package bot

import (
	"testing"

	"github.com/parjafrica/good/internal/models"
)

func TestSeedTargets(t *testing.T) {
	targets, err := SeedTargets()
	if err != nil {
		t.Fatal(err)
	}
	if len(targets) == 0 {
		t.Fatal("embedded registry is empty")
	}

	byName := make(map[string]models.SearchTarget, len(targets))
	for _, tgt := range targets {
		if tgt.Name == "" || tgt.URL == "" || tgt.Country == "" {
			t.Errorf("incomplete target: %+v", tgt)
		}
		switch tgt.Type {
		case models.TargetAPI, models.TargetScraping, models.TargetBrowser:
		default:
			t.Errorf("target %s has unknown type %q", tgt.Name, tgt.Type)
		}
		byName[tgt.Name] = tgt
	}

	un, ok := byName["UN Jobs - South Sudan"]
	if !ok {
		t.Fatal("UN Jobs - South Sudan missing from registry")
	}
	if un.Type != models.TargetBrowser {
		t.Errorf("UN Jobs should use the browser backend, got %q", un.Type)
	}
	if waitSelectorFor(un) == "" {
		t.Error("UN Jobs should have a wait selector")
	}

	// Seeded names must line up with the extractor registry keys, or a
	// seeded target falls back to the generic extractor.
	reg := NewExtractorRegistry()
	for _, name := range []string{"UN Jobs - South Sudan", "FundsforNGOs - South Sudan"} {
		if _, ok := byName[name]; !ok {
			t.Errorf("%s missing from seed registry", name)
		}
		if _, ok := reg.byName[name]; !ok {
			t.Errorf("%s has no named extractor", name)
		}
	}
}
