package krunner

import (
	"context"
	"errors"
)

// ErrNotFound reports a Run call for a match or action the runner does not
// know. The adapter answers the host with an empty success reply.
var ErrNotFound = errors.New("not found")

// ErrConnectionLost is returned by Serve when the bus connection drops.
var ErrConnectionLost = errors.New("bus connection lost")

// Runner is implemented by plugins.
type Runner interface {
	// Match returns the matches for q in display order. It may be called
	// concurrently when the adapter runs in ModeAsync.
	Match(ctx context.Context, q Query) ([]Match, error)

	// Run performs the operation for a match ID handed out by an earlier
	// Match call. action is nil for the default action. Return ErrNotFound
	// for unknown IDs.
	Run(ctx context.Context, matchID string, action *Action) error
}

// Filterer is an optional Runner capability applied after the Config checks.
type Filterer interface {
	Filter(q Query) bool
}

// TearDowner is an optional Runner capability called when the host closes
// its session.
type TearDowner interface {
	Teardown(ctx context.Context) error
}

// RunnerFuncs adapts plain functions to Runner and Filterer.
type RunnerFuncs struct {
	MatchFunc  func(ctx context.Context, q Query) ([]Match, error)
	RunFunc    func(ctx context.Context, matchID string, action *Action) error
	FilterFunc func(q Query) bool
}

func (f RunnerFuncs) Match(ctx context.Context, q Query) ([]Match, error) {
	if f.MatchFunc == nil {
		return nil, nil
	}
	return f.MatchFunc(ctx, q)
}

func (f RunnerFuncs) Run(ctx context.Context, matchID string, action *Action) error {
	if f.RunFunc == nil {
		return ErrNotFound
	}
	return f.RunFunc(ctx, matchID, action)
}

func (f RunnerFuncs) Filter(q Query) bool {
	if f.FilterFunc == nil {
		return true
	}
	return f.FilterFunc(q)
}
