// Package sweep runs the matching engine over a window of inbound documents.
package sweep

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/palletledger/backend/internal/application/matching"
	domain "github.com/palletledger/backend/internal/domain/matching"
	"github.com/palletledger/backend/internal/domain/shared"
	"github.com/palletledger/backend/internal/infrastructure/logger"
	"github.com/palletledger/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// LockKey is the run lock held while a sweep is in progress
const LockKey = "reconciliation:sweep"

// CandidateFeed supplies inbound candidates emitted within [from, to]
type CandidateFeed interface {
	Fetch(ctx context.Context, from, to time.Time) ([]domain.InboundCandidate, error)
}

// Matcher links one candidate; matching.Engine implements it
type Matcher interface {
	Match(ctx context.Context, cand domain.InboundCandidate, opts matching.MatchOptions) (*matching.MatchResult, error)
}

// RunLock keeps two sweeps from running at the same time
type RunLock interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// ReportArchive stores finished reports and returns where they were written
type ReportArchive interface {
	Store(ctx context.Context, report *Report) (string, error)
}

// Metrics observes finished runs
type Metrics interface {
	ObserveRun(report *Report)
}

// Config holds the sweep limits
type Config struct {
	TimeBudget      time.Duration
	MaxErrorSamples int
	LockTTL         time.Duration
}

// DefaultConfig returns the default sweep limits
func DefaultConfig() Config {
	return Config{
		TimeBudget:      5 * time.Minute,
		MaxErrorSamples: 50,
		LockTTL:         10 * time.Minute,
	}
}

// Option configures a Sweeper
type Option func(*Sweeper)

// WithRunLock serialises sweeps through lock
func WithRunLock(lock RunLock) Option {
	return func(s *Sweeper) {
		s.lock = lock
	}
}

// WithArchive stores every finished report in archive
func WithArchive(archive ReportArchive) Option {
	return func(s *Sweeper) {
		s.archive = archive
	}
}

// WithMetrics reports finished runs to m
func WithMetrics(m Metrics) Option {
	return func(s *Sweeper) {
		s.metrics = m
	}
}

// WithIntercompanyFilter drops candidates issued by the company's own entities
func WithIntercompanyFilter(f *domain.IntercompanyFilter) Option {
	return func(s *Sweeper) {
		s.intercompany = f
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) {
		s.now = now
	}
}

// Sweeper reconciles every inbound candidate of a date window
type Sweeper struct {
	feed         CandidateFeed
	matcher      Matcher
	intercompany *domain.IntercompanyFilter
	lock         RunLock
	archive      ReportArchive
	metrics      Metrics
	cfg          Config
	logger       *zap.Logger
	now          func() time.Time
}

// NewSweeper creates a new Sweeper
func NewSweeper(feed CandidateFeed, matcher Matcher, cfg Config, logger *zap.Logger, opts ...Option) *Sweeper {
	def := DefaultConfig()
	if cfg.TimeBudget <= 0 {
		cfg.TimeBudget = def.TimeBudget
	}
	if cfg.MaxErrorSamples <= 0 {
		cfg.MaxErrorSamples = def.MaxErrorSamples
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = max(def.LockTTL, cfg.TimeBudget*2)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Sweeper{
		feed:    feed,
		matcher: matcher,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run fetches the candidates emitted in [dateFrom, dateTo] and matches each one.
// Every candidate is matched in its own transactions, so a run cut short by the
// time budget keeps what it linked and returns a Partial report. Running the same
// window twice links nothing new.
func (s *Sweeper) Run(ctx context.Context, dateFrom, dateTo time.Time, autoSuggest bool) (*Report, error) {
	if dateFrom.IsZero() || dateTo.IsZero() {
		return nil, shared.Validation("sweep window requires both dates")
	}
	if dateTo.Before(dateFrom) {
		return nil, shared.Validation("sweep window ends (%s) before it starts (%s)",
			dateTo.Format(time.DateOnly), dateFrom.Format(time.DateOnly))
	}

	if s.lock != nil {
		ok, err := s.lock.TryLock(ctx, LockKey, s.cfg.LockTTL)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, shared.InvalidState("a reconciliation sweep is already running")
		}
		defer func() {
			if err := s.lock.Unlock(context.WithoutCancel(ctx), LockKey); err != nil {
				s.logger.Warn("failed to release sweep lock", zap.Error(err))
			}
		}()
	}

	report := &Report{
		RunID:       uuid.New(),
		DateFrom:    dateFrom,
		DateTo:      dateTo,
		AutoSuggest: autoSuggest,
		StartedAt:   s.now(),
		Details:     []Detail{},
		ErrorSample: []ErrorSample{},
	}

	ctx, log := logger.WithSweepRun(ctx, logger.For(ctx, s.logger), report.RunID)
	ctx, span := telemetry.StartServiceSpan(ctx, "sweep", "run",
		telemetry.WithAttribute(telemetry.SpanAttrRunID, report.RunID.String()),
		telemetry.WithAttribute("auto_suggest", autoSuggest),
	)
	defer span.End()

	budget, cancel := context.WithTimeout(ctx, s.cfg.TimeBudget)
	defer cancel()

	cands, err := s.feed.Fetch(budget, dateFrom, dateTo)
	if err != nil {
		if budget.Err() != nil && ctx.Err() == nil {
			report.Partial = true
			return s.finish(ctx, report), nil
		}
		telemetry.RecordError(span, err)
		return nil, err
	}
	report.Fetched = len(cands)

	external, internal := s.intercompany.Split(cands)
	for _, c := range internal {
		report.Counters.SkippedIntercompany++
		report.Details = append(report.Details, Detail{
			InboundNumber: c.SettlementDocNumber,
			IssuerCNPJ:    c.IssuerCNPJ,
			Quantity:      c.Quantity,
			Status:        DetailIntercompany,
			Unallocated:   c.Quantity,
		})
	}
	sortCandidates(external)

	opts := matching.MatchOptions{AutoSuggest: autoSuggest}
	for _, cand := range external {
		if budget.Err() != nil {
			report.Partial = true
			break
		}

		res, err := s.matcher.Match(budget, cand, opts)
		if err != nil {
			if budget.Err() != nil && errors.Is(err, budget.Err()) {
				report.Partial = true
				break
			}
			report.Counters.Processed++
			report.addError(cand, err, s.cfg.MaxErrorSamples)
			log.Warn("inbound document not reconciled",
				zap.String("inbound_number", cand.SettlementDocNumber),
				zap.String("issuer", cand.IssuerCNPJ),
				zap.Error(err),
			)
			continue
		}
		report.Counters.Processed++
		report.addResult(res, s.cfg.MaxErrorSamples)
		if len(res.Failures) > 0 {
			log.Warn("settlements refused for inbound document",
				zap.String("inbound_number", cand.SettlementDocNumber),
				zap.String("issuer", cand.IssuerCNPJ),
				zap.String("outcome", string(res.Outcome)),
				zap.Int("failures", len(res.Failures)),
			)
		}
	}

	if report.Partial {
		log.Warn("sweep stopped at time budget",
			zap.Duration("budget", s.cfg.TimeBudget),
			zap.Int("processed", report.Counters.Processed),
			zap.Int("remaining", len(external)-report.Counters.Processed),
		)
		if ctx.Err() != nil {
			return s.finish(ctx, report), ctx.Err()
		}
	}

	telemetry.SetAttribute(span, "processed", report.Counters.Processed)
	return s.finish(ctx, report), nil
}

func (s *Sweeper) finish(ctx context.Context, report *Report) *Report {
	report.FinishedAt = s.now()
	log := logger.FromContext(ctx)

	if s.archive != nil {
		location, err := s.archive.Store(context.WithoutCancel(ctx), report)
		if err != nil {
			log.Error("failed to archive sweep report", zap.Error(err))
		} else {
			report.ArchiveLocation = location
		}
	}
	if s.metrics != nil {
		s.metrics.ObserveRun(report)
	}

	log.Info("sweep finished",
		zap.Time("from", report.DateFrom),
		zap.Time("to", report.DateTo),
		zap.Int("fetched", report.Fetched),
		zap.Int("processed", report.Counters.Processed),
		zap.Int("auto_linked", report.Counters.AutoLinked),
		zap.Int("suggestions_created", report.Counters.SuggestionsCreated),
		zap.Int("no_match", report.Counters.NoMatch),
		zap.Int("errors", report.Counters.Errors),
		zap.Bool("partial", report.Partial),
		zap.Duration("duration", report.Duration()),
	)
	return report
}

// sortCandidates orders candidates by emission date so older returns allocate first
func sortCandidates(cands []domain.InboundCandidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		if !cands[i].EmissionDate.Equal(cands[j].EmissionDate) {
			return cands[i].EmissionDate.Before(cands[j].EmissionDate)
		}
		return cands[i].Key() < cands[j].Key()
	})
}
