package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/parjafrica/good/internal/models"
)

// Querier is the subset of pgx satisfied by both *pgxpool.Pool and pgx.Tx,
// so the same Store methods run standalone or inside a cycle transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	q Querier
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{q: pool}
}

// WithTx returns a Store bound to the given transaction.
func (s *Store) WithTx(tx pgx.Tx) *Store {
	return &Store{q: tx}
}

// ActiveTargets lists active search targets for a country, highest priority first.
func (s *Store) ActiveTargets(ctx context.Context, country string) ([]models.SearchTarget, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, name, url, country, type, selectors, headers,
		       rate_limit, priority, is_active, success_rate, last_successful_run
		FROM search_targets
		WHERE country = $1 AND is_active = TRUE
		ORDER BY priority DESC
	`, country)
	if err != nil {
		return nil, fmt.Errorf("target query failed: %w", err)
	}
	defer rows.Close()

	var targets []models.SearchTarget
	for rows.Next() {
		var t models.SearchTarget
		var selectorsRaw, headersRaw []byte
		if err := rows.Scan(
			&t.ID, &t.Name, &t.URL, &t.Country, &t.Type, &selectorsRaw, &headersRaw,
			&t.RateLimit, &t.Priority, &t.IsActive, &t.SuccessRate, &t.LastSuccessfulRun,
		); err != nil {
			return nil, fmt.Errorf("target scan failed: %w", err)
		}
		if len(selectorsRaw) > 0 {
			_ = json.Unmarshal(selectorsRaw, &t.Selectors)
		}
		if len(headersRaw) > 0 {
			_ = json.Unmarshal(headersRaw, &t.Headers)
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

// UpsertTarget inserts or updates a search target by name (used by the seed tool).
func (s *Store) UpsertTarget(ctx context.Context, t models.SearchTarget) error {
	selectorsJSON, _ := json.Marshal(t.Selectors)
	headersJSON, _ := json.Marshal(t.Headers)

	_, err := s.q.Exec(ctx, `
		INSERT INTO search_targets (name, url, country, type, selectors, headers, rate_limit, priority, is_active)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6::jsonb, $7, $8, $9)
		ON CONFLICT (name) DO UPDATE SET
			url = EXCLUDED.url,
			country = EXCLUDED.country,
			type = EXCLUDED.type,
			selectors = EXCLUDED.selectors,
			headers = EXCLUDED.headers,
			rate_limit = EXCLUDED.rate_limit,
			priority = EXCLUDED.priority,
			is_active = EXCLUDED.is_active,
			updated_at = NOW()
	`, t.Name, t.URL, t.Country, t.Type, string(selectorsJSON), string(headersJSON), t.RateLimit, t.Priority, t.IsActive)
	if err != nil {
		return fmt.Errorf("target upsert failed: %w", err)
	}
	return nil
}

// VisitedURLs returns every URL already logged for a domain.
func (s *Store) VisitedURLs(ctx context.Context, domain string) ([]string, error) {
	rows, err := s.q.Query(ctx, "SELECT url FROM crawl_logs WHERE domain = $1", domain)
	if err != nil {
		return nil, fmt.Errorf("crawl log query failed: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("crawl log scan failed: %w", err)
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// LogCrawl appends a crawl log entry. Entries are write-once; the crawler
// pre-seeds its visited set so it never re-inserts the same URL.
func (s *Store) LogCrawl(ctx context.Context, url, domain, targetName string) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO crawl_logs (url, domain, origin_target_name, visited_at)
		VALUES ($1, $2, $3, NOW())
	`, url, domain, targetName)
	if err != nil {
		return fmt.Errorf("crawl log insert failed: %w", err)
	}
	return nil
}

// ExistingHashes returns which of the given content hashes are already persisted.
func (s *Store) ExistingHashes(ctx context.Context, hashes []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	if len(hashes) == 0 {
		return existing, nil
	}

	rows, err := s.q.Query(ctx, "SELECT content_hash FROM donor_opportunities WHERE content_hash = ANY($1)", hashes)
	if err != nil {
		return nil, fmt.Errorf("hash query failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("hash scan failed: %w", err)
		}
		existing[h] = struct{}{}
	}
	return existing, rows.Err()
}

// InsertOpportunity persists a new opportunity. Returns false when a unique
// constraint (source_url, content_hash) swallowed the insert.
func (s *Store) InsertOpportunity(ctx context.Context, opp models.DonorOpportunity) (bool, error) {
	keywordsJSON, _ := json.Marshal(opp.Keywords)
	focusJSON, _ := json.Marshal(opp.FocusAreas)

	tag, err := s.q.Exec(ctx, `
		INSERT INTO donor_opportunities (
			id, title, description, deadline, amount_min, amount_max, currency,
			source_url, source_name, country, sector, eligibility_criteria,
			application_process, contact_email, contact_phone, keywords, focus_areas,
			content_hash, scraped_at, is_verified, is_active, verification_score, screenshot_path
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12,
			$13, $14, $15, $16::jsonb, $17::jsonb,
			$18, $19, $20, $21, $22, $23
		)
		ON CONFLICT DO NOTHING
	`,
		opp.ID, opp.Title, opp.Description, opp.Deadline, opp.AmountMin, opp.AmountMax, opp.Currency,
		opp.SourceURL, opp.SourceName, opp.Country, nilIfEmpty(opp.Sector), nilIfEmpty(opp.EligibilityCriteria),
		nilIfEmpty(opp.ApplicationProcess), nilIfEmpty(opp.ContactEmail), nilIfEmpty(opp.ContactPhone),
		string(keywordsJSON), string(focusJSON),
		opp.ContentHash, opp.ScrapedAt, opp.IsVerified, opp.IsActive, opp.VerificationScore, nilIfEmpty(opp.ScreenshotPath),
	)
	if err != nil {
		return false, fmt.Errorf("opportunity insert failed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

const opportunityCols = `id, title, COALESCE(description, ''), deadline, amount_min, amount_max, currency,
	source_url, source_name, country, COALESCE(sector, ''), COALESCE(eligibility_criteria, ''),
	COALESCE(application_process, ''), COALESCE(contact_email, ''), COALESCE(contact_phone, ''),
	keywords, focus_areas, content_hash, scraped_at,
	last_verified, is_verified, is_active, verification_score, COALESCE(screenshot_path, ''),
	created_at, updated_at`

func scanOpportunity(scan func(dest ...any) error) (models.DonorOpportunity, error) {
	var o models.DonorOpportunity
	var keywordsRaw, focusRaw []byte

	err := scan(
		&o.ID, &o.Title, &o.Description, &o.Deadline, &o.AmountMin, &o.AmountMax, &o.Currency,
		&o.SourceURL, &o.SourceName, &o.Country, &o.Sector, &o.EligibilityCriteria,
		&o.ApplicationProcess, &o.ContactEmail, &o.ContactPhone, &keywordsRaw, &focusRaw, &o.ContentHash, &o.ScrapedAt,
		&o.LastVerified, &o.IsVerified, &o.IsActive, &o.VerificationScore, &o.ScreenshotPath,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return o, err
	}

	if len(keywordsRaw) > 0 {
		_ = json.Unmarshal(keywordsRaw, &o.Keywords)
	}
	if len(focusRaw) > 0 {
		_ = json.Unmarshal(focusRaw, &o.FocusAreas)
	}
	return o, nil
}

// UnverifiedOpportunities selects opportunities the verifier has not touched yet.
func (s *Store) UnverifiedOpportunities(ctx context.Context, limit int) ([]models.DonorOpportunity, error) {
	rows, err := s.q.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM donor_opportunities
		WHERE is_verified = FALSE AND verification_score = 0.0
		LIMIT $1
	`, opportunityCols), limit)
	if err != nil {
		return nil, fmt.Errorf("unverified query failed: %w", err)
	}
	defer rows.Close()

	var opps []models.DonorOpportunity
	for rows.Next() {
		o, err := scanOpportunity(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("unverified scan failed: %w", err)
		}
		opps = append(opps, o)
	}
	return opps, rows.Err()
}

// RecentOpportunities lists the newest persisted opportunities (operator tooling).
func (s *Store) RecentOpportunities(ctx context.Context, limit int) ([]models.DonorOpportunity, error) {
	rows, err := s.q.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM donor_opportunities
		ORDER BY created_at DESC
		LIMIT $1
	`, opportunityCols), limit)
	if err != nil {
		return nil, fmt.Errorf("recent query failed: %w", err)
	}
	defer rows.Close()

	var opps []models.DonorOpportunity
	for rows.Next() {
		o, err := scanOpportunity(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("recent scan failed: %w", err)
		}
		opps = append(opps, o)
	}
	return opps, rows.Err()
}

// CountExactTitleMatches counts same-source opportunities with an identical
// title, excluding the opportunity itself.
func (s *Store) CountExactTitleMatches(ctx context.Context, title, sourceName string, excludeID uuid.UUID) (int, error) {
	var count int
	err := s.q.QueryRow(ctx, `
		SELECT COUNT(*) FROM donor_opportunities
		WHERE title = $1 AND source_name = $2 AND id != $3
	`, title, sourceName, excludeID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("exact duplicate count failed: %w", err)
	}
	return count, nil
}

// TitleRef is a minimal (id, title) pair for similarity comparison.
type TitleRef struct {
	ID    uuid.UUID
	Title string
}

// TitlesBySource returns titles of same-source opportunities, excluding the
// opportunity itself.
func (s *Store) TitlesBySource(ctx context.Context, sourceName string, excludeID uuid.UUID) ([]TitleRef, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, title FROM donor_opportunities
		WHERE source_name = $1 AND id != $2
	`, sourceName, excludeID)
	if err != nil {
		return nil, fmt.Errorf("similar title query failed: %w", err)
	}
	defer rows.Close()

	var refs []TitleRef
	for rows.Next() {
		var r TitleRef
		if err := rows.Scan(&r.ID, &r.Title); err != nil {
			return nil, fmt.Errorf("similar title scan failed: %w", err)
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

// AppendVerification records one check result in the audit trail.
func (s *Store) AppendVerification(ctx context.Context, v models.OpportunityVerification) error {
	detailsJSON, _ := json.Marshal(v.Details)
	_, err := s.q.Exec(ctx, `
		INSERT INTO opportunity_verifications (opportunity_id, verification_type, status, score, details, verified_at, verified_by)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7)
	`, v.OpportunityID, v.VerificationType, v.Status, v.Score, string(detailsJSON), v.VerifiedAt, v.VerifiedBy)
	if err != nil {
		return fmt.Errorf("verification insert failed: %w", err)
	}
	return nil
}

// UpdateVerificationResult writes the composite score back to the opportunity.
// The verification engine is the only caller allowed to mutate these fields.
func (s *Store) UpdateVerificationResult(ctx context.Context, id uuid.UUID, score float64, verified bool, at time.Time) error {
	_, err := s.q.Exec(ctx, `
		UPDATE donor_opportunities
		SET verification_score = $1, is_verified = $2, last_verified = $3, updated_at = NOW()
		WHERE id = $4
	`, score, verified, at, id)
	if err != nil {
		return fmt.Errorf("verification update failed: %w", err)
	}
	return nil
}

// UpsertBotState mirrors the bot's in-memory state to the search_bots table.
func (s *Store) UpsertBotState(ctx context.Context, state models.BotState) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO search_bots (bot_id, name, country, status, last_run, total_opportunities_found, error_count, success_rate)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (bot_id) DO UPDATE SET
			status = EXCLUDED.status,
			last_run = EXCLUDED.last_run,
			total_opportunities_found = EXCLUDED.total_opportunities_found,
			error_count = EXCLUDED.error_count,
			success_rate = EXCLUDED.success_rate,
			updated_at = NOW()
	`, state.BotID, state.Name, state.Country, state.Status, state.LastRun,
		state.TotalOpportunitiesFound, state.ErrorCount, state.SuccessRate)
	if err != nil {
		return fmt.Errorf("bot state upsert failed: %w", err)
	}
	return nil
}

// MarkTargetRun records a successful run timestamp and success rate for a target.
func (s *Store) MarkTargetRun(ctx context.Context, targetID uuid.UUID, successRate float64) error {
	_, err := s.q.Exec(ctx, `
		UPDATE search_targets
		SET last_successful_run = NOW(), success_rate = $1, updated_at = NOW()
		WHERE id = $2
	`, successRate, targetID)
	if err != nil {
		return fmt.Errorf("target run update failed: %w", err)
	}
	return nil
}

// nilIfEmpty returns nil for empty strings so NULL is stored in DB.
func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
