package priceaction

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/trogers1052/trade-journal/internal/models"
)

// stage is the outcome of one analytic sub-step: either the computed value
// or a default paired with the reason it was substituted.
type stage[T any] struct {
	value  T
	reason string
}

func ok[T any](v T) stage[T] {
	return stage[T]{value: v}
}

func degraded[T any](def T, reason string) stage[T] {
	return stage[T]{value: def, reason: reason}
}

func (s stage[T]) degraded() bool { return s.reason != "" }

// run executes fn and turns a panic into a degraded result carrying def.
func run[T any](def T, fn func() stage[T]) (s stage[T]) {
	defer func() {
		if r := recover(); r != nil {
			s = degraded(def, fmt.Sprintf("panic: %v", r))
		}
	}()
	return fn()
}

// report collects degradations for a single Analyze call.
type report struct {
	log          zerolog.Logger
	degradations []models.Degradation
}

// unwrap records s under name when it degraded and returns its value.
func unwrap[T any](r *report, name string, s stage[T]) T {
	if s.degraded() {
		r.degradations = append(r.degradations, models.Degradation{Stage: name, Reason: s.reason})
		r.log.Debug().Str("stage", name).Str("reason", s.reason).Msg("Analysis stage degraded")
	}
	return s.value
}
