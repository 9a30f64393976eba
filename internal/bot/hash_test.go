package bot

import "testing"

func TestContentHash(t *testing.T) {
	h1 := ContentHash("Education Grant", "UN Jobs South Sudan", "Funding for schools")
	h2 := ContentHash("Education Grant", "UN Jobs South Sudan", "Funding for schools")
	if h1 != h2 {
		t.Fatalf("hash not deterministic: %s vs %s", h1, h2)
	}
	if len(h1) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(h1))
	}

	cases := []struct {
		name                       string
		title, source, description string
	}{
		{"different title", "Health Grant", "UN Jobs South Sudan", "Funding for schools"},
		{"different source", "Education Grant", "FundsforNGOs South Sudan", "Funding for schools"},
		{"different description", "Education Grant", "UN Jobs South Sudan", "Funding for clinics"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ContentHash(tc.title, tc.source, tc.description); got == h1 {
				t.Errorf("expected distinct hash for %q", tc.name)
			}
		})
	}
}
