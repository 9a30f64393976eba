package verify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/parjafrica/good/internal/db"
	"github.com/parjafrica/good/internal/models"
)

const (
	verifiedBy        = "verification_engine"
	verifiedThreshold = 0.7
	relevanceBodyCap  = 1 << 20
)

// Store is the persistence surface the verifier needs.
type Store interface {
	UnverifiedOpportunities(ctx context.Context, limit int) ([]models.DonorOpportunity, error)
	AppendVerification(ctx context.Context, v models.OpportunityVerification) error
	UpdateVerificationResult(ctx context.Context, id uuid.UUID, score float64, verified bool, at time.Time) error
	CountExactTitleMatches(ctx context.Context, title, sourceName string, excludeID uuid.UUID) (int, error)
	TitlesBySource(ctx context.Context, sourceName string, excludeID uuid.UUID) ([]db.TitleRef, error)
}

// Verifier scores persisted opportunities on four independent checks and
// marks those whose mean clears the threshold as verified. It is the only
// writer of verification_score and is_verified.
type Verifier struct {
	store  Store
	client *http.Client
	now    func() time.Time
}

func NewVerifier(store Store) *Verifier {
	return &Verifier{
		store: store,
		client: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
			},
			// Redirect statuses are a scoring signal, not something to follow.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		now: time.Now,
	}
}

type checkResult struct {
	checkType string
	status    string
	score     float64
	details   map[string]interface{}
}

// VerifyOpportunity runs all four checks, records each in the audit trail,
// and writes the composite score back. The composite is the plain mean.
func (v *Verifier) VerifyOpportunity(ctx context.Context, opp models.DonorOpportunity) (float64, bool, error) {
	results := []checkResult{
		v.checkURL(ctx, opp.SourceURL, opp.Title),
		v.analyzeContent(opp),
		v.validateDeadline(opp),
	}
	dup, err := v.checkDuplicates(ctx, opp)
	if err != nil {
		return 0, false, fmt.Errorf("verify %s: %w", opp.ID, err)
	}
	results = append(results, dup)

	now := v.now()
	total := 0.0
	for _, r := range results {
		total += r.score
		rec := models.OpportunityVerification{
			OpportunityID:    opp.ID,
			VerificationType: r.checkType,
			Status:           r.status,
			Score:            r.score,
			Details:          r.details,
			VerifiedAt:       now,
			VerifiedBy:       verifiedBy,
		}
		if err := v.store.AppendVerification(ctx, rec); err != nil {
			return 0, false, fmt.Errorf("verify %s: %w", opp.ID, err)
		}
	}

	final := total / float64(len(results))
	verified := final >= verifiedThreshold
	if err := v.store.UpdateVerificationResult(ctx, opp.ID, final, verified, now); err != nil {
		return 0, false, fmt.Errorf("verify %s: %w", opp.ID, err)
	}
	return final, verified, nil
}

// checkURL probes the source URL without following redirects. A live page
// scores by its relevance to funding content; redirects score fixed; dead or
// unreachable pages score low.
func (v *Verifier) checkURL(ctx context.Context, sourceURL, title string) checkResult {
	res := checkResult{checkType: "url_check", details: map[string]interface{}{"url": sourceURL}}

	parsed, err := url.Parse(sourceURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		res.status = "failed"
		res.score = 0.0
		res.details["error"] = "malformed url"
		return res
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		res.status = "failed"
		res.score = 0.0
		res.details["error"] = err.Error()
		return res
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; OpportunityVerifier/1.0)")

	resp, err := v.client.Do(req)
	if err != nil {
		var netErr net.Error
		res.status = "failed"
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			res.score = 0.1
			res.details["error"] = "timeout"
		} else {
			// No HTTP response at all. Only actual error statuses earn 0.2.
			res.score = 0.0
			res.details["error"] = err.Error()
		}
		return res
	}
	defer resp.Body.Close()

	res.details["status_code"] = resp.StatusCode
	switch {
	case resp.StatusCode == http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, relevanceBodyCap))
		rel := contentRelevance(string(body), title)
		res.status = "verified"
		res.score = 0.7 + 0.3*rel
		res.details["relevance"] = rel
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		res.status = "warning"
		res.score = 0.8
		res.details["redirect"] = resp.Header.Get("Location")
	default:
		res.status = "failed"
		res.score = 0.2
	}
	return res
}

var fundingKeywords = []string{
	"grant", "funding", "opportunity", "application", "proposal",
	"award", "fellowship", "scholarship", "call", "tender",
}

// contentRelevance is the mean of two ratios: how much of the funding
// vocabulary the page uses, and how much of the title survives on the page.
func contentRelevance(body, title string) float64 {
	lower := strings.ToLower(body)

	found := 0
	for _, kw := range fundingKeywords {
		if strings.Contains(lower, kw) {
			found++
		}
	}
	keywordScore := float64(found) / float64(len(fundingKeywords))

	titleWords := significantWords(title)
	titleScore := 0.0
	if len(titleWords) > 0 {
		present := 0
		for _, w := range titleWords {
			if strings.Contains(lower, w) {
				present++
			}
		}
		titleScore = float64(present) / float64(len(titleWords))
	}

	return (keywordScore + titleScore) / 2
}

func significantWords(s string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(s)) {
		if len(w) > 3 {
			out = append(out, w)
		}
	}
	return out
}

// analyzeContent scores completeness of the record itself: a real title, a
// substantive description, a plausible amount range, a future deadline.
func (v *Verifier) analyzeContent(opp models.DonorOpportunity) checkResult {
	res := checkResult{checkType: "content_analysis", details: map[string]interface{}{}}

	score := 0.0
	if len(opp.Title) >= 20 {
		score += 0.2
	}
	switch {
	case len(opp.Description) >= 100:
		score += 0.3
	case len(opp.Description) >= 50:
		score += 0.15
	}
	if opp.AmountMin > 0 || opp.AmountMax > 0 {
		score += 0.2
		if opp.AmountMin > 0 && opp.AmountMax > 0 && opp.AmountMin <= opp.AmountMax {
			score += 0.1
		}
	}
	if opp.Deadline != nil && opp.Deadline.After(v.now()) {
		score += 0.2
	}

	res.score = score
	res.details["title_length"] = len(opp.Title)
	res.details["description_length"] = len(opp.Description)
	switch {
	case score >= 0.7:
		res.status = "verified"
	case score >= 0.4:
		res.status = "warning"
	default:
		res.status = "failed"
	}
	return res
}

// validateDeadline scores how actionable the deadline is. Missing or past
// deadlines fail outright; far-future ones are suspect.
func (v *Verifier) validateDeadline(opp models.DonorOpportunity) checkResult {
	res := checkResult{checkType: "deadline_validation", details: map[string]interface{}{}}

	if opp.Deadline == nil {
		res.status = "failed"
		res.score = 0.0
		res.details["reason"] = "no deadline"
		return res
	}

	now := v.now()
	if !opp.Deadline.After(now) {
		res.status = "failed"
		res.score = 0.0
		res.details["reason"] = "deadline passed"
		return res
	}

	days := int(opp.Deadline.Sub(now).Hours() / 24)
	res.details["days_remaining"] = days
	switch {
	case days > 730:
		res.status = "warning"
		res.score = 0.3
	case days > 365:
		res.status = "warning"
		res.score = 0.7
	default:
		res.status = "verified"
		res.score = 1.0
	}
	return res
}

// checkDuplicates looks for same-source records with the same or a very
// similar title. Exact matches fail; near matches warn.
func (v *Verifier) checkDuplicates(ctx context.Context, opp models.DonorOpportunity) (checkResult, error) {
	res := checkResult{checkType: "duplicate_check", details: map[string]interface{}{}}

	exact, err := v.store.CountExactTitleMatches(ctx, opp.Title, opp.SourceName, opp.ID)
	if err != nil {
		return res, err
	}
	if exact > 0 {
		res.status = "failed"
		res.score = 0.0
		res.details["exact_matches"] = exact
		return res, nil
	}

	refs, err := v.store.TitlesBySource(ctx, opp.SourceName, opp.ID)
	if err != nil {
		return res, err
	}
	for _, ref := range refs {
		if sim := titleSimilarity(opp.Title, ref.Title); sim > 0.8 {
			res.status = "warning"
			res.score = 0.2
			res.details["similar_to"] = ref.ID.String()
			res.details["similarity"] = sim
			return res, nil
		}
	}

	res.status = "verified"
	res.score = 1.0
	return res, nil
}

var titleStopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "in": {}, "on": {},
	"of": {}, "to": {}, "a": {}, "an": {},
}

// titleSimilarity is token overlap over the longer token set, with common
// stopwords removed.
func titleSimilarity(a, b string) float64 {
	ta := titleTokens(a)
	tb := titleTokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	set := make(map[string]struct{}, len(ta))
	for _, w := range ta {
		set[w] = struct{}{}
	}
	matches := 0
	for _, w := range tb {
		if _, ok := set[w]; ok {
			matches++
		}
	}

	longer := len(ta)
	if len(tb) > longer {
		longer = len(tb)
	}
	return float64(matches) / float64(longer)
}

// titleTokens lowercases, drops stopwords, and deduplicates.
func titleTokens(s string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, w := range strings.Fields(strings.ToLower(s)) {
		if _, stop := titleStopwords[w]; stop {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}
