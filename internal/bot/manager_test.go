package bot

import (
	"context"
	"testing"
)

func cand(title string) Candidate {
	return Candidate{
		Title:       title,
		Description: "desc",
		SourceName:  "src",
		ContentHash: ContentHash(title, "src", "desc"),
	}
}

func TestDedupeCandidates(t *testing.T) {
	a, b, c := cand("a"), cand("b"), cand("c")

	t.Run("drops persisted hashes", func(t *testing.T) {
		existing := map[string]struct{}{a.ContentHash: {}}
		got := dedupeCandidates(existing, []Candidate{a, b, c})
		if len(got) != 2 || got[0].Title != "b" || got[1].Title != "c" {
			t.Fatalf("got %v", got)
		}
	})

	t.Run("drops repeats within batch", func(t *testing.T) {
		got := dedupeCandidates(nil, []Candidate{a, b, a, a, c, b})
		if len(got) != 3 {
			t.Fatalf("got %d candidates, want 3", len(got))
		}
		if got[0].Title != "a" || got[1].Title != "b" || got[2].Title != "c" {
			t.Fatalf("order not preserved: %v", got)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		first := dedupeCandidates(nil, []Candidate{a, b, c})
		existing := make(map[string]struct{})
		for _, x := range first {
			existing[x.ContentHash] = struct{}{}
		}
		second := dedupeCandidates(existing, []Candidate{a, b, c})
		if len(second) != 0 {
			t.Fatalf("re-running the same batch should add nothing, got %d", len(second))
		}
	})

	t.Run("empty input", func(t *testing.T) {
		if got := dedupeCandidates(nil, nil); len(got) != 0 {
			t.Fatalf("got %v", got)
		}
	})
}

func TestCandidateToOpportunity(t *testing.T) {
	c := cand("Education Grant Opportunity")
	c.Country = "South Sudan"
	c.Currency = "USD"

	opp := candidateToOpportunity(c)
	if opp.ID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("opportunity should get a fresh id")
	}
	if opp.ContentHash != c.ContentHash {
		t.Error("content hash must carry over")
	}
	if !opp.IsActive {
		t.Error("new opportunities start active")
	}
	if opp.IsVerified || opp.VerificationScore != 0 {
		t.Error("new opportunities start unverified")
	}
	if opp.ScrapedAt.IsZero() {
		t.Error("scraped_at must be set")
	}
}

func TestRunCycleSkipsUnlessActive(t *testing.T) {
	// The nil pool and store guarantee a cycle that actually runs would
	// blow up; a skipped cycle never touches them.
	for _, status := range []Status{StatusPaused, StatusMaintenance, StatusError} {
		t.Run(string(status), func(t *testing.T) {
			b, err := New(context.Background(), Config{BrowserEnabled: false})
			if err != nil {
				t.Fatal(err)
			}
			t.Cleanup(b.Close)
			b.SetStatus(status)

			m := NewManager(b, nil, nil)
			added, err := m.RunCycle(context.Background())
			if err != nil {
				t.Fatalf("non-active cycle should skip cleanly: %v", err)
			}
			if added != 0 {
				t.Errorf("skipped cycle reported %d additions", added)
			}
		})
	}
}

func TestErrorRing(t *testing.T) {
	r := newErrorRing()
	for i := 0; i < errorRingSize+10; i++ {
		r.Record("error %d", i)
	}
	if r.Total() != errorRingSize+10 {
		t.Errorf("total = %d, want %d", r.Total(), errorRingSize+10)
	}
	recent := r.Recent()
	if len(recent) != errorRingSize {
		t.Fatalf("retained %d, want %d", len(recent), errorRingSize)
	}
	if recent[0].Message != "error 10" {
		t.Errorf("oldest retained = %q, want %q", recent[0].Message, "error 10")
	}
	if recent[len(recent)-1].Message != "error 59" {
		t.Errorf("newest retained = %q, want %q", recent[len(recent)-1].Message, "error 59")
	}
}
