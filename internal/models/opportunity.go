package models

import (
	"time"

	"github.com/google/uuid"
)

// TargetType selects the fetch backend used for a search target.
type TargetType string

const (
	TargetAPI      TargetType = "api"
	TargetScraping TargetType = "scraping"
	TargetBrowser  TargetType = "browser"
)

// SearchTarget is a configured source site the crawler visits.
// Owned by configuration/admin; the crawler only reads it.
type SearchTarget struct {
	ID                uuid.UUID         `json:"id"`
	Name              string            `json:"name"`
	URL               string            `json:"url"`
	Country           string            `json:"country"`
	Type              TargetType        `json:"type"`
	Selectors         map[string]string `json:"selectors"`
	Headers           map[string]string `json:"headers"`
	RateLimit         int               `json:"rate_limit"`
	Priority          int               `json:"priority"`
	IsActive          bool              `json:"is_active"`
	SuccessRate       float64           `json:"success_rate"`
	LastSuccessfulRun *time.Time        `json:"last_successful_run"`
}

type DonorOpportunity struct {
	ID                  uuid.UUID  `json:"id"`
	Title               string     `json:"title"`
	Description         string     `json:"description"`
	Deadline            *time.Time `json:"deadline"`
	AmountMin           float64    `json:"amount_min"`
	AmountMax           float64    `json:"amount_max"`
	Currency            string     `json:"currency"`
	SourceURL           string     `json:"source_url"`
	SourceName          string     `json:"source_name"`
	Country             string     `json:"country"`
	Sector              string     `json:"sector"`
	EligibilityCriteria string     `json:"eligibility_criteria"`
	ApplicationProcess  string     `json:"application_process"`
	ContactEmail        string     `json:"contact_email"`
	ContactPhone        string     `json:"contact_phone"`
	Keywords            []string   `json:"keywords"`
	FocusAreas          []string   `json:"focus_areas"`
	ContentHash         string     `json:"content_hash"`
	ScrapedAt           time.Time  `json:"scraped_at"`
	LastVerified        *time.Time `json:"last_verified"`
	IsVerified          bool       `json:"is_verified"`
	IsActive            bool       `json:"is_active"`
	VerificationScore   float64    `json:"verification_score"`
	ScreenshotPath      string     `json:"screenshot_path"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// OpportunityVerification is one row of the append-only verification audit
// trail: one row per check type per verification pass.
type OpportunityVerification struct {
	ID               uuid.UUID              `json:"id"`
	OpportunityID    uuid.UUID              `json:"opportunity_id"`
	VerificationType string                 `json:"verification_type"` // url_check, content_analysis, deadline_validation, duplicate_check
	Status           string                 `json:"status"`            // verified, failed, warning
	Score            float64                `json:"score"`
	Details          map[string]interface{} `json:"details"`
	VerifiedAt       time.Time              `json:"verified_at"`
	VerifiedBy       string                 `json:"verified_by"`
}

// CrawlLogEntry records a URL the crawler has successfully fetched.
// Append-only; used as a set-membership test keyed by domain.
type CrawlLogEntry struct {
	URL              string    `json:"url"`
	Domain           string    `json:"domain"`
	OriginTargetName string    `json:"origin_target_name"`
	VisitedAt        time.Time `json:"visited_at"`
}

// BotState is the operator-visible record of a crawler bot, mirrored to the
// search_bots table after each cycle.
type BotState struct {
	BotID                   string     `json:"bot_id"`
	Name                    string     `json:"name"`
	Country                 string     `json:"country"`
	Status                  string     `json:"status"`
	LastRun                 *time.Time `json:"last_run"`
	TotalOpportunitiesFound int        `json:"total_opportunities_found"`
	ErrorCount              int        `json:"error_count"`
	SuccessRate             float64    `json:"success_rate"`
}
