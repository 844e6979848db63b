// Package service wires storage, the round assembler and the price-action
// analyzer into the journal's use cases.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/trogers1052/trade-journal/internal/cache"
	"github.com/trogers1052/trade-journal/internal/database"
	"github.com/trogers1052/trade-journal/internal/journal"
	"github.com/trogers1052/trade-journal/internal/models"
	"github.com/trogers1052/trade-journal/internal/priceaction"
)

var (
	// ErrNotFound is returned when an account has no such round
	ErrNotFound = database.ErrNotFound
	// ErrInvalidFill is returned for fills missing a symbol or a valid side
	ErrInvalidFill = errors.New("invalid fill")
	// ErrInsufficientData is returned when no candles cover a round
	ErrInsufficientData = errors.New("insufficient candle data")
)

// FillStore persists fills
type FillStore interface {
	CreateFill(f *models.Fill) error
	FillExists(account, fillID, symbol string, side models.Side, executedAt time.Time) (bool, error)
	GetFillsByAccount(account string) ([]models.Fill, error)
}

// RoundStore persists assembled rounds
type RoundStore interface {
	ReplaceAllRounds(account string, rounds []models.Round) error
	GetRoundsByAccount(account string) ([]models.Round, error)
	GetRound(account, symbol, roundID string) (*models.Round, error)
}

// CandleSource supplies OHLCV bars for an inclusive time range
type CandleSource interface {
	GetCandlesRange(symbol, timeframe string, start, end time.Time) ([]models.Candle, error)
}

// MetricsCache caches analysis results
type MetricsCache interface {
	Get(ctx context.Context, key cache.Key) (*models.PriceActionMetrics, error)
	Set(ctx context.Context, key cache.Key, m *models.PriceActionMetrics) error
	InvalidateAccount(ctx context.Context, account string) error
}

// EventPublisher announces journal changes
type EventPublisher interface {
	PublishRoundsRecomputed(ctx context.Context, account string, rounds []models.Round) error
	PublishRoundAnalyzed(ctx context.Context, account string, round *models.Round, m *models.PriceActionMetrics) error
}

// Options tune the service
type Options struct {
	Timeframe   string
	DefaultRisk float64
	Workers     int
}

// Journal implements the trade journal use cases
type Journal struct {
	fills     FillStore
	rounds    RoundStore
	candles   CandleSource
	cache     MetricsCache
	publisher EventPublisher
	analyzer  *priceaction.Analyzer
	opts      Options
	log       zerolog.Logger
}

// Option configures optional collaborators
type Option func(*Journal)

// WithCache enables metrics caching
func WithCache(c MetricsCache) Option {
	return func(j *Journal) { j.cache = c }
}

// WithPublisher enables event publishing
func WithPublisher(p EventPublisher) Option {
	return func(j *Journal) { j.publisher = p }
}

// NewJournal creates the journal service
func NewJournal(fills FillStore, rounds RoundStore, candles CandleSource, analyzer *priceaction.Analyzer,
	opts Options, log zerolog.Logger, options ...Option) *Journal {
	if opts.Timeframe == "" {
		opts.Timeframe = "5m"
	}
	j := &Journal{
		fills:    fills,
		rounds:   rounds,
		candles:  candles,
		analyzer: analyzer,
		opts:     opts,
		log:      log.With().Str("component", "journal").Logger(),
	}
	for _, o := range options {
		o(j)
	}
	return j
}

// IngestFill validates and stores a fill. It reports false when the fill was
// already stored.
func (j *Journal) IngestFill(ctx context.Context, f *models.Fill) (bool, error) {
	if f.Symbol == "" {
		return false, fmt.Errorf("%w: missing symbol", ErrInvalidFill)
	}
	if f.Side.Sign() == 0 {
		return false, fmt.Errorf("%w: invalid side %q", ErrInvalidFill, f.Side)
	}
	if f.Amount.IsNegative() {
		return false, fmt.Errorf("%w: negative amount", ErrInvalidFill)
	}

	exists, err := j.fills.FillExists(f.Account, f.FillID, f.Symbol, f.Side, f.ExecutedAt)
	if err != nil {
		return false, fmt.Errorf("failed to check for duplicate fill: %w", err)
	}
	if exists {
		j.log.Debug().Str("account", f.Account).Str("fill_id", f.FillID).Msg("Fill already stored, skipping")
		return false, nil
	}

	if err := j.fills.CreateFill(f); err != nil {
		return false, fmt.Errorf("failed to save fill: %w", err)
	}

	j.log.Info().
		Str("account", f.Account).
		Str("symbol", f.Symbol).
		Str("side", string(f.Side)).
		Str("amount", f.Amount.String()).
		Str("fill_id", f.FillID).
		Msg("Saved fill")
	return true, nil
}

// Recompute rebuilds every round of an account from its stored fills.
func (j *Journal) Recompute(ctx context.Context, account string) ([]models.Round, error) {
	fills, err := j.fills.GetFillsByAccount(account)
	if err != nil {
		return nil, fmt.Errorf("failed to load fills: %w", err)
	}

	rounds, err := journal.AssembleParallel(ctx, fills, j.opts.Workers)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble rounds: %w", err)
	}

	if err := j.rounds.ReplaceAllRounds(account, rounds); err != nil {
		return nil, fmt.Errorf("failed to store rounds: %w", err)
	}

	j.log.Info().Str("account", account).Int("fills", len(fills)).Int("rounds", len(rounds)).Msg("Recomputed rounds")

	if j.cache != nil {
		if err := j.cache.InvalidateAccount(ctx, account); err != nil {
			j.log.Warn().Err(err).Str("account", account).Msg("Failed to invalidate metrics cache")
		}
	}
	if j.publisher != nil {
		if err := j.publisher.PublishRoundsRecomputed(ctx, account, rounds); err != nil {
			j.log.Warn().Err(err).Str("account", account).Msg("Failed to publish rounds event")
		}
	}
	return rounds, nil
}

// Rounds returns the stored rounds of an account, most recent first.
func (j *Journal) Rounds(ctx context.Context, account string) ([]models.Round, error) {
	rounds, err := j.rounds.GetRoundsByAccount(account)
	if err != nil {
		return nil, fmt.Errorf("failed to load rounds: %w", err)
	}
	return rounds, nil
}

// OpenPositions returns the unflattened tails of an account.
func (j *Journal) OpenPositions(ctx context.Context, account string) ([]models.Position, error) {
	fills, err := j.fills.GetFillsByAccount(account)
	if err != nil {
		return nil, fmt.Errorf("failed to load fills: %w", err)
	}
	return journal.OpenPositions(fills), nil
}

// Stats summarizes the stored rounds of an account.
func (j *Journal) Stats(ctx context.Context, account string) (journal.Stats, error) {
	rounds, err := j.Rounds(ctx, account)
	if err != nil {
		return journal.Stats{}, err
	}
	return journal.Summarize(rounds), nil
}

// AnalyzeOptions select the risk and timeframe used for one analysis.
// Zero values fall back to the service defaults.
type AnalyzeOptions struct {
	Risk      float64
	Timeframe string
}

func (j *Journal) resolve(opts AnalyzeOptions) (AnalyzeOptions, models.Timeframe, error) {
	if opts.Risk <= 0 {
		opts.Risk = j.opts.DefaultRisk
	}
	if opts.Timeframe == "" {
		opts.Timeframe = j.opts.Timeframe
	}
	tf, err := models.ParseTimeframe(opts.Timeframe)
	if err != nil {
		return opts, tf, err
	}
	opts.Timeframe = tf.Key
	return opts, tf, nil
}

// RoundAnalysis pairs a round with its metrics
type RoundAnalysis struct {
	Round   models.Round               `json:"round"`
	Metrics *models.PriceActionMetrics `json:"metrics"`
}

// AnalyzeRound computes price-action metrics for one stored round. Round ids
// are opening fill ids and only unique within a symbol.
func (j *Journal) AnalyzeRound(ctx context.Context, account, symbol, roundID string, opts AnalyzeOptions) (*models.Round, *models.PriceActionMetrics, error) {
	opts, tf, err := j.resolve(opts)
	if err != nil {
		return nil, nil, err
	}

	round, err := j.rounds.GetRound(account, symbol, roundID)
	if err != nil {
		return nil, nil, err
	}

	m, err := j.analyze(ctx, round, opts, tf)
	if err != nil {
		return round, nil, err
	}
	return round, m, nil
}

// AnalyzeAll analyzes every stored round of an account concurrently. Results
// keep the stored round order; rounds without candle coverage are left out.
func (j *Journal) AnalyzeAll(ctx context.Context, account string, opts AnalyzeOptions) ([]RoundAnalysis, error) {
	opts, tf, err := j.resolve(opts)
	if err != nil {
		return nil, err
	}

	rounds, err := j.Rounds(ctx, account)
	if err != nil {
		return nil, err
	}

	results := make([]*models.PriceActionMetrics, len(rounds))
	g, gctx := errgroup.WithContext(ctx)
	if j.opts.Workers > 0 {
		g.SetLimit(j.opts.Workers)
	}
	for i := range rounds {
		i := i
		g.Go(func() error {
			m, err := j.analyze(gctx, &rounds[i], opts, tf)
			if errors.Is(err, ErrInsufficientData) {
				return nil
			}
			if err != nil {
				return err
			}
			results[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]RoundAnalysis, 0, len(rounds))
	for i, m := range results {
		if m != nil {
			out = append(out, RoundAnalysis{Round: rounds[i], Metrics: m})
		}
	}
	return out, nil
}

func (j *Journal) analyze(ctx context.Context, round *models.Round, opts AnalyzeOptions, tf models.Timeframe) (*models.PriceActionMetrics, error) {
	key := cache.KeyForRound(round, opts.Timeframe, opts.Risk)
	if j.cache != nil {
		cached, err := j.cache.Get(ctx, key)
		if err != nil {
			j.log.Warn().Err(err).Str("round_id", round.RoundID).Msg("Metrics cache read failed")
		}
		if cached != nil {
			return cached, nil
		}
	}

	start, end := j.candleRange(round, tf)
	candles, err := j.candles.GetCandlesRange(round.Symbol, tf.Key, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load candles: %w", err)
	}

	m := j.analyzer.Analyze(priceaction.RequestForRound(round, opts.Risk), candles)
	if m == nil {
		return nil, ErrInsufficientData
	}

	log := j.log.With().Str("account", round.Account).Str("round_id", round.RoundID).Str("symbol", round.Symbol).Logger()
	if len(m.Degradations) > 0 {
		log.Debug().Int("degradations", len(m.Degradations)).Msg("Analysis completed with defaults")
	}

	if j.cache != nil {
		if err := j.cache.Set(ctx, key, m); err != nil {
			log.Warn().Err(err).Msg("Metrics cache write failed")
		}
	}
	if j.publisher != nil {
		if err := j.publisher.PublishRoundAnalyzed(ctx, round.Account, round, m); err != nil {
			log.Warn().Err(err).Msg("Failed to publish analysis event")
		}
	}
	return m, nil
}

// candleRange covers the lookback window plus enough history to seed the
// volatility baseline.
func (j *Journal) candleRange(round *models.Round, tf models.Timeframe) (time.Time, time.Time) {
	cfg := j.analyzer.Config()
	warmup := cfg.LookbackBars + max(cfg.ATRPeriod, cfg.VolumePeriod) + 1
	start := round.OpenTime.Add(-time.Duration(warmup) * tf.Duration)
	end := round.CloseTime.Add(cfg.ExitBuffer).Add(tf.Duration)
	return start, end
}
