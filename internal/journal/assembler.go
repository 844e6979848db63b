// Package journal rebuilds flat-to-flat position round-trips from a stream
// of individual fills.
package journal

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/trogers1052/trade-journal/internal/models"
)

// FlatEpsilon is the tolerance under which a running position counts as flat.
var FlatEpsilon = decimal.New(1, -7)

// IsFlat reports whether qty is within FlatEpsilon of zero.
func IsFlat(qty decimal.Decimal) bool {
	return qty.Abs().LessThan(FlatEpsilon)
}

// positionState is the per-symbol accumulator threaded through the fold.
type positionState struct {
	open       bool
	qty        decimal.Decimal
	maxQty     decimal.Decimal
	openFillID string
	account    string
	symbol     string
	direction  models.Direction
	openTime   time.Time
	pnl        decimal.Decimal
	fee        decimal.Decimal
	fillCount  int
	review     models.Review

	entryNotional decimal.Decimal
	entryAmount   decimal.Decimal
	exitNotional  decimal.Decimal
	exitAmount    decimal.Decimal
}

// step folds one fill into the state. It returns the next state and, when the
// fill brings the position back to flat, the round it closed.
func (s positionState) step(f models.Fill) (positionState, *models.Round) {
	delta := f.SignedAmount()

	if !s.open {
		// A fill that cannot move the position never opens a round.
		if delta.IsZero() {
			return s, nil
		}
		s = positionState{
			open:       true,
			qty:        decimal.Zero,
			maxQty:     decimal.Zero,
			openFillID: f.FillID,
			account:    f.Account,
			symbol:     f.Symbol,
			direction:  models.DirectionForSide(f.Side),
			openTime:   f.ExecutedAt,
			pnl:        f.PnL,
			fee:        f.Fee,
			fillCount:  1,
			review:     f.Review(),
		}
	} else {
		s.pnl = s.pnl.Add(f.PnL)
		s.fee = s.fee.Add(f.Fee)
		s.fillCount++
	}

	s.trackPrice(f, delta)
	s.qty = s.qty.Add(delta)
	if abs := s.qty.Abs(); abs.GreaterThan(s.maxQty) {
		s.maxQty = abs
	}

	if !IsFlat(s.qty) {
		return s, nil
	}

	r := s.close(f.ExecutedAt)
	return positionState{}, &r
}

func (s *positionState) trackPrice(f models.Fill, delta decimal.Decimal) {
	if delta.IsZero() {
		return
	}
	notional := f.Price.Mul(f.Amount)
	entrySide := (s.direction == models.DirectionLong) == delta.IsPositive()
	if entrySide {
		s.entryNotional = s.entryNotional.Add(notional)
		s.entryAmount = s.entryAmount.Add(f.Amount)
		return
	}
	s.exitNotional = s.exitNotional.Add(notional)
	s.exitAmount = s.exitAmount.Add(f.Amount)
}

func (s positionState) close(at time.Time) models.Round {
	return models.Round{
		RoundID:       s.openFillID,
		Account:       s.account,
		Symbol:        s.symbol,
		Direction:     s.direction,
		OpenTime:      s.openTime,
		CloseTime:     at,
		Duration:      at.Sub(s.openTime),
		TotalPnL:      s.pnl,
		TotalFee:      s.fee,
		NetPnL:        s.pnl.Sub(s.fee),
		FillCount:     s.fillCount,
		Status:        models.RoundStatusClosed,
		AvgEntryPrice: weightedPrice(s.entryNotional, s.entryAmount),
		AvgExitPrice:  weightedPrice(s.exitNotional, s.exitAmount),
		MaxQuantity:   s.maxQty,
		Review:        s.review,
	}
}

func (s positionState) position() models.Position {
	return models.Position{
		Account:    s.account,
		Symbol:     s.symbol,
		Direction:  s.direction,
		Quantity:   s.qty,
		OpenFillID: s.openFillID,
		OpenTime:   s.openTime,
		FillCount:  s.fillCount,
		PnL:        s.pnl,
		Fee:        s.fee,
	}
}

func weightedPrice(notional, amount decimal.Decimal) decimal.Decimal {
	if amount.IsZero() {
		return decimal.Zero
	}
	return notional.Div(amount)
}

type symbolFills struct {
	symbol string
	fills  []models.Fill
}

// partition groups fills by symbol, keeping input order inside a group and
// then stable-sorting each group by execution time.
func partition(fills []models.Fill) []symbolFills {
	index := make(map[string]int)
	var parts []symbolFills
	for _, f := range fills {
		i, ok := index[f.Symbol]
		if !ok {
			i = len(parts)
			index[f.Symbol] = i
			parts = append(parts, symbolFills{symbol: f.Symbol})
		}
		parts[i].fills = append(parts[i].fills, f)
	}
	for i := range parts {
		group := parts[i].fills
		sort.SliceStable(group, func(a, b int) bool {
			return group[a].ExecutedAt.Before(group[b].ExecutedAt)
		})
	}
	sort.Slice(parts, func(a, b int) bool { return parts[a].symbol < parts[b].symbol })
	return parts
}

func foldSymbol(fills []models.Fill) ([]models.Round, positionState) {
	var (
		state  positionState
		rounds []models.Round
	)
	for _, f := range fills {
		var closed *models.Round
		state, closed = state.step(f)
		if closed != nil {
			rounds = append(rounds, *closed)
		}
	}
	return rounds, state
}

// Assemble converts fills into closed round-trips, most recently closed first.
// Fills of a symbol whose position never returns to flat produce no round.
func Assemble(fills []models.Fill) []models.Round {
	var rounds []models.Round
	for _, part := range partition(fills) {
		closed, _ := foldSymbol(part.fills)
		rounds = append(rounds, closed...)
	}
	SortRounds(rounds)
	return rounds
}

// AssembleParallel is Assemble with each symbol folded on its own goroutine.
// workers <= 0 means no limit.
func AssembleParallel(ctx context.Context, fills []models.Fill, workers int) ([]models.Round, error) {
	parts := partition(fills)
	results := make([][]models.Round, len(parts))

	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, part := range parts {
		i, part := i, part
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i], _ = foldSymbol(part.fills)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var rounds []models.Round
	for _, r := range results {
		rounds = append(rounds, r...)
	}
	SortRounds(rounds)
	return rounds, nil
}

// OpenPositions returns the trailing tail of every symbol that does not end flat.
func OpenPositions(fills []models.Fill) []models.Position {
	var positions []models.Position
	for _, part := range partition(fills) {
		_, state := foldSymbol(part.fills)
		if state.open && !IsFlat(state.qty) {
			positions = append(positions, state.position())
		}
	}
	return positions
}

// SortRounds orders rounds by close time descending. Ties fall back to symbol
// and round id so repeated runs produce identical output.
func SortRounds(rounds []models.Round) {
	sort.SliceStable(rounds, func(i, j int) bool {
		a, b := rounds[i], rounds[j]
		if !a.CloseTime.Equal(b.CloseTime) {
			return a.CloseTime.After(b.CloseTime)
		}
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		return a.RoundID < b.RoundID
	})
}
