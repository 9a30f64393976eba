package bot

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/parjafrica/good/internal/db"
	"github.com/parjafrica/good/internal/models"
)

const (
	defaultCycleInterval = time.Hour
	defaultCycleBackoff  = time.Minute
)

// Manager runs the bot on a fixed cycle. Each cycle crawls every active
// target for the bot's country inside one transaction, so a cycle either
// lands completely or not at all.
type Manager struct {
	bot   *Bot
	pool  *pgxpool.Pool
	store *db.Store

	cycleInterval time.Duration
	cycleBackoff  time.Duration

	runNow chan struct{}
}

func NewManager(b *Bot, pool *pgxpool.Pool, store *db.Store) *Manager {
	return &Manager{
		bot:           b,
		pool:          pool,
		store:         store,
		cycleInterval: defaultCycleInterval,
		cycleBackoff:  defaultCycleBackoff,
		runNow:        make(chan struct{}, 1),
	}
}

// Run executes cycles until the context is cancelled. A failed cycle retries
// after a short backoff instead of waiting out the full interval.
func (m *Manager) Run(ctx context.Context) {
	log.Printf("bot %s: manager started", m.bot.Config().BotID)
	for {
		wait := m.cycleInterval
		if _, err := m.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("bot %s: cycle failed: %v", m.bot.Config().BotID, err)
			wait = m.cycleBackoff
		}

		select {
		case <-ctx.Done():
			return
		case <-m.runNow:
		case <-time.After(wait):
		}
	}
}

// TriggerRun requests an immediate cycle. A pending request is enough; extra
// triggers while one is queued are dropped.
func (m *Manager) TriggerRun() {
	select {
	case m.runNow <- struct{}{}:
	default:
	}
}

func (m *Manager) Pause()  { m.bot.SetStatus(StatusPaused) }
func (m *Manager) Resume() { m.bot.SetStatus(StatusActive) }

func (m *Manager) Snapshot() Snapshot { return m.bot.Snapshot() }

// RunCycle crawls all active targets once and persists the new opportunities.
// Returns the number of opportunities added.
func (m *Manager) RunCycle(ctx context.Context) (int, error) {
	if status := m.bot.Status(); status != StatusActive {
		log.Printf("bot %s: status %s, skipping cycle", m.bot.Config().BotID, status)
		return 0, nil
	}

	cfg := m.bot.Config()
	targets, err := m.store.ActiveTargets(ctx, cfg.Country)
	if err != nil {
		return 0, fmt.Errorf("cycle: %w", err)
	}
	if len(targets) == 0 {
		log.Printf("bot %s: no active targets for %s", cfg.BotID, cfg.Country)
		return 0, nil
	}

	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("cycle begin: %w", err)
	}
	defer tx.Rollback(ctx)

	txStore := m.store.WithTx(tx)

	var all []Candidate
	targetsOK := 0
	for i, target := range targets {
		cands, err := m.bot.CrawlTarget(ctx, txStore, target)
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			log.Printf("bot %s: target %s failed: %v", cfg.BotID, target.Name, err)
		} else {
			targetsOK++
			if err := txStore.MarkTargetRun(ctx, target.ID, 1.0); err != nil {
				m.bot.RecordError("mark target %s: %v", target.Name, err)
			}
		}
		all = append(all, cands...)

		if i < len(targets)-1 {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(cfg.TargetDelay):
			}
		}
	}

	added, err := m.saveCandidates(ctx, txStore, all)
	if err != nil {
		return 0, fmt.Errorf("cycle save: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("cycle commit: %w", err)
	}

	m.bot.NoteCycle(added, targetsOK, len(targets))
	if err := m.store.UpsertBotState(ctx, m.bot.State()); err != nil {
		log.Printf("bot %s: state upsert failed: %v", cfg.BotID, err)
	}

	log.Printf("bot %s: cycle done, %d/%d targets ok, %d new opportunities",
		cfg.BotID, targetsOK, len(targets), added)
	return added, nil
}

// saveCandidates deduplicates a batch against the database and itself, then
// inserts the survivors, screenshotting each when enabled.
func (m *Manager) saveCandidates(ctx context.Context, store *db.Store, cands []Candidate) (int, error) {
	if len(cands) == 0 {
		return 0, nil
	}

	hashes := make([]string, 0, len(cands))
	for _, c := range cands {
		hashes = append(hashes, c.ContentHash)
	}
	existing, err := store.ExistingHashes(ctx, hashes)
	if err != nil {
		return 0, err
	}

	fresh := dedupeCandidates(existing, cands)
	cfg := m.bot.Config()

	added := 0
	for _, c := range fresh {
		opp := candidateToOpportunity(c)

		if cfg.ScreenshotsEnabled && m.bot.Browser() != nil {
			path, err := m.bot.Browser().CaptureScreenshot(ctx, opp.SourceURL, cfg.ScreenshotDir)
			if err != nil {
				m.bot.RecordError("screenshot %s: %v", opp.SourceURL, err)
			} else {
				opp.ScreenshotPath = path
			}
		}

		inserted, err := store.InsertOpportunity(ctx, opp)
		if err != nil {
			return added, err
		}
		if inserted {
			added++
		}
	}
	return added, nil
}

// dedupeCandidates drops candidates whose content hash is already persisted
// or already appeared earlier in the same batch, preserving order.
func dedupeCandidates(existing map[string]struct{}, cands []Candidate) []Candidate {
	seen := make(map[string]struct{}, len(existing))
	for h := range existing {
		seen[h] = struct{}{}
	}

	var fresh []Candidate
	for _, c := range cands {
		if _, dup := seen[c.ContentHash]; dup {
			continue
		}
		seen[c.ContentHash] = struct{}{}
		fresh = append(fresh, c)
	}
	return fresh
}

func candidateToOpportunity(c Candidate) models.DonorOpportunity {
	return models.DonorOpportunity{
		ID:          uuid.New(),
		Title:       c.Title,
		Description: c.Description,
		Deadline:    c.Deadline,
		AmountMin:   c.AmountMin,
		AmountMax:   c.AmountMax,
		Currency:    c.Currency,
		SourceURL:   c.SourceURL,
		SourceName:  c.SourceName,
		Country:     c.Country,
		Sector:      c.Sector,
		Keywords:    c.Keywords,
		ContentHash: c.ContentHash,
		ScrapedAt:   time.Now(),
		IsActive:    true,
	}
}
