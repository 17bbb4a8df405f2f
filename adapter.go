package krunner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nikicat/krunner/internal/logging"
)

// AdapterOptions configures an Adapter.
type AdapterOptions struct {
	Config Config
	Mode   Mode
	// Workers bounds concurrent match tasks in ModeAsync. Zero means
	// DefaultWorkers.
	Workers int
	// Timeout bounds a single match task in ModeAsync. Zero means no limit.
	Timeout time.Duration
	Logger  *slog.Logger
}

// DefaultWorkers is the async pool size when AdapterOptions.Workers is zero.
// Match tasks mostly wait on I/O, so it does not follow the CPU count.
const DefaultWorkers = 16

// recalled is what Run needs to know about a match from the last reply.
type recalled struct {
	run     RunFunc
	actions []Action
}

// Adapter turns host requests into Runner calls. User errors and panics are
// absorbed here so they never reach the bus.
type Adapter struct {
	runner Runner
	cfg    Config
	gate   *gate
	exec   executor
	log    *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc

	seq       atomic.Uint64
	mu        sync.RWMutex
	recallSeq uint64
	recall    map[string]recalled
}

// NewAdapter builds an Adapter for r. It fails only on an invalid Config.
func NewAdapter(r Runner, opts AdapterOptions) (*Adapter, error) {
	if r == nil {
		return nil, errors.New("nil runner")
	}

	var extra Filter
	if f, ok := r.(Filterer); ok {
		extra = f.Filter
	}
	g, err := newGate(opts.Config, extra)
	if err != nil {
		return nil, err
	}

	var exec executor
	switch opts.Mode {
	case ModeSync:
		exec = newSyncExecutor()
	case ModeAsync:
		workers := opts.Workers
		if workers <= 0 {
			workers = DefaultWorkers
		}
		exec = newAsyncExecutor(workers, opts.Timeout)
	default:
		return nil, fmt.Errorf("unknown mode %d", opts.Mode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Adapter{
		runner: r,
		cfg:    opts.Config,
		gate:   g,
		exec:   exec,
		log:    logging.New(opts.Logger, opts.Config.Name),
		ctx:    ctx,
		cancel: cancel,
		recall: make(map[string]recalled),
	}, nil
}

// Close abandons in-flight match tasks. Later calls reply with empty results.
func (a *Adapter) Close() {
	a.cancel()
}

// Matches answers q. Rejected queries, runner errors and abandoned tasks all
// yield no matches; runner errors are logged once.
func (a *Adapter) Matches(ctx context.Context, q Query) []Match {
	seq := a.seq.Add(1)
	if q.ID == "" {
		q.ID = uuid.NewString()
	}

	q, ok := a.gate.admit(q)
	if !ok {
		a.log.LogMatch(ctx, q.ID, q.Text, 0, logging.ResultRejected, nil)
		return nil
	}

	matches, err := a.exec.execute(ctx, func(ctx context.Context) ([]Match, error) {
		return a.callMatch(ctx, q)
	})
	if err != nil {
		result := logging.ResultError
		if errors.Is(err, context.Canceled) {
			result = logging.ResultAbandoned
		}
		a.log.LogMatch(ctx, q.ID, q.Text, 0, result, err)
		return nil
	}

	if a.cfg.SortByScore {
		SortMatches(matches)
	}
	a.remember(seq, matches)

	a.log.LogMatch(ctx, q.ID, q.Text, len(matches), logging.ResultOK, nil)
	return matches
}

func (a *Adapter) callMatch(ctx context.Context, q Query) (matches []Match, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("match panicked: %v", p)
		}
	}()
	matches, err = a.runner.Match(ctx, q)
	return slices.Clone(matches), err
}

// remember replaces the recalled match set unless a later query already did.
func (a *Adapter) remember(seq uint64, matches []Match) {
	set := make(map[string]recalled, len(matches))
	for _, m := range matches {
		set[m.ID] = recalled{run: m.Run, actions: m.Actions}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if seq < a.recallSeq {
		return
	}
	a.recallSeq = seq
	a.recall = set
}

func (a *Adapter) lookup(matchID string) (recalled, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	rec, ok := a.recall[matchID]
	return rec, ok
}

// Run performs matchID with actionID, or the default action when actionID
// is empty. Unknown matches and actions yield an error wrapping ErrNotFound.
func (a *Adapter) Run(ctx context.Context, matchID, actionID string) error {
	err := a.run(ctx, matchID, actionID)
	switch {
	case err == nil:
		a.log.LogRun(ctx, matchID, actionID, logging.ResultOK, nil)
	case errors.Is(err, ErrNotFound):
		a.log.LogRun(ctx, matchID, actionID, logging.ResultNotFound, err)
	default:
		a.log.LogRun(ctx, matchID, actionID, logging.ResultError, err)
	}
	return err
}

func (a *Adapter) run(ctx context.Context, matchID, actionID string) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("run panicked: %v", p)
		}
	}()

	rec, known := a.lookup(matchID)

	var action *Action
	if actionID != "" {
		act, ok := a.findAction(actionID, rec.actions)
		if !ok {
			return fmt.Errorf("action %q: %w", actionID, ErrNotFound)
		}
		action = &act
	}

	if known && rec.run != nil {
		return rec.run(ctx, action)
	}
	if err := a.runner.Run(ctx, matchID, action); err != nil {
		return fmt.Errorf("match %q: %w", matchID, err)
	}
	return nil
}

func (a *Adapter) findAction(id string, matchActions []Action) (Action, bool) {
	for _, set := range [][]Action{matchActions, a.cfg.Actions} {
		for _, act := range set {
			if act.ID == id {
				return act, true
			}
		}
	}
	return Action{}, false
}

// Actions returns the runner-wide actions.
func (a *Adapter) Actions() []Action {
	return slices.Clone(a.cfg.Actions)
}

// Teardown forwards to the runner and forgets the recalled match set.
func (a *Adapter) Teardown(ctx context.Context) error {
	a.mu.Lock()
	a.recall = make(map[string]recalled)
	a.mu.Unlock()

	td, ok := a.runner.(TearDowner)
	if !ok {
		a.log.LogTeardown(ctx, logging.ResultOK, nil)
		return nil
	}
	if err := td.Teardown(ctx); err != nil {
		a.log.LogTeardown(ctx, logging.ResultError, err)
		return err
	}
	a.log.LogTeardown(ctx, logging.ResultOK, nil)
	return nil
}
