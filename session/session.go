// Package session drives one multichain action from intent to per-chain outcome: build
// every chain's operation, sign their aggregate root once, then submit and track every
// chain independently.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/celer-network/go-multichain/aggregator"
	"github.com/celer-network/go-multichain/credential"
	"github.com/celer-network/go-multichain/expander"
	"github.com/celer-network/go-multichain/log"
	"github.com/celer-network/go-multichain/submitter"
	"github.com/celer-network/go-multichain/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// OperationBuilder builds one chain's unsigned operation.
type OperationBuilder interface {
	Build(ctx context.Context, desc types.ChainDescriptor, account common.Address, signer types.PublicKey, intent types.Intent) (*types.PendingOperation, error)
}

// Submitter submits signed operations and reports each chain's progress.
type Submitter interface {
	SubmitAll(ctx context.Context, ops []*types.PendingOperation, update submitter.Update) []types.ChainResult
}

// ReportStore persists settled sessions.
type ReportStore interface {
	SaveReport(report *types.SessionReport) error
}

type Config struct {
	Chains    []types.ChainDescriptor
	Account   common.Address
	Signer    types.PublicKey
	Builder   OperationBuilder
	Provider  credential.Provider
	Submitter Submitter
	// Store is optional.
	Store ReportStore
}

// View is a consistent copy of the controller's state.
type View struct {
	SessionID   string
	State       State
	Intent      *types.Intent
	Root        common.Hash
	Results     []types.ChainResult
	AbortReason string
}

type Controller struct {
	cfg    Config
	logger *log.Logger

	lock        sync.Mutex
	state       State
	id          string
	intent      *types.Intent
	root        common.Hash
	results     []types.ChainResult
	abortReason string
	startedAt   time.Time
	updates     chan types.ChainResult
}

func New(cfg Config) (*Controller, error) {
	if len(cfg.Chains) < 2 {
		return nil, fmt.Errorf("session needs at least 2 chains, got %d: %w", len(cfg.Chains), types.ErrConfig)
	}
	if cfg.Builder == nil || cfg.Provider == nil || cfg.Submitter == nil {
		return nil, fmt.Errorf("session: builder, credential provider and submitter are required: %w", types.ErrConfig)
	}
	if cfg.Signer.IsZero() {
		return nil, fmt.Errorf("session: no signer public key: %w", types.ErrConfig)
	}
	return &Controller{
		cfg:     cfg,
		logger:  log.NewLogger("session"),
		state:   StateIdle,
		updates: make(chan types.ChainResult, 4*len(cfg.Chains)),
	}, nil
}

// Updates delivers every per-chain result change as it happens. Updates are dropped when
// nobody keeps up with the channel, and unread ones are discarded when the next session
// starts. Snapshot always has the latest table.
func (c *Controller) Updates() <-chan types.ChainResult {
	return c.updates
}

func (c *Controller) Snapshot() View {
	c.lock.Lock()
	defer c.lock.Unlock()
	view := View{
		SessionID:   c.id,
		State:       c.state,
		Root:        c.root,
		Results:     append([]types.ChainResult(nil), c.results...),
		AbortReason: c.abortReason,
	}
	if c.intent != nil {
		intent := *c.intent
		view.Intent = &intent
	}
	return view
}

// Dismiss returns a settled session to Idle.
func (c *Controller) Dismiss() error {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.state.Busy() {
		return types.ErrSessionBusy
	}
	c.reset()
	return nil
}

func (c *Controller) reset() {
	c.state = StateIdle
	c.id = ""
	c.intent = nil
	c.root = common.Hash{}
	c.results = nil
	c.abortReason = ""
}

func (c *Controller) setState(next State) {
	if !canTransition(c.state, next) {
		// programming error, the table is closed
		panic(fmt.Sprintf("session: invalid transition %s -> %s", c.state, next))
	}
	c.logger.Debug().Str("sessionId", c.id).Str("from", string(c.state)).Str("to", string(next)).Msg("session state")
	c.state = next
}

func (c *Controller) transition(next State) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.setState(next)
}

func (c *Controller) start(intent types.Intent) (string, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.state.Busy() {
		return "", types.ErrSessionBusy
	}
	if c.state == StateSettled {
		c.reset()
	}
	// updates nobody read belong to the previous session
drain:
	for {
		select {
		case <-c.updates:
		default:
			break drain
		}
	}
	c.id = uuid.NewString()
	c.intent = &intent
	c.abortReason = ""
	c.root = common.Hash{}
	c.startedAt = time.Now()
	c.results = make([]types.ChainResult, len(c.cfg.Chains))
	for i, desc := range c.cfg.Chains {
		c.results[i] = types.ChainResult{ChainID: desc.ChainID, Status: types.ChainStatusUnset}
	}
	c.setState(StatePreparing)
	return c.id, nil
}

// abort ends a session that failed before anything was submitted. No chain is touched.
func (c *Controller) abort(err error) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.logger.Warn().Str("sessionId", c.id).Str("state", string(c.state)).Err(err).Msg("session aborted")
	c.abortReason = err.Error()
	c.setState(StateIdle)
	return err
}

func (c *Controller) publish(i int, result types.ChainResult) {
	c.lock.Lock()
	if !c.results[i].CanTransition(result.Status) {
		c.lock.Unlock()
		return
	}
	c.results[i] = result
	c.lock.Unlock()

	select {
	case c.updates <- result:
	default:
		c.logger.Debug().Uint64("chainId", result.ChainID).Msg("update dropped, no reader")
	}
}

// Run performs intent on every configured chain. It returns an error only when the action
// was aborted before submission, in which case nothing was sent to any chain. Once
// submitted, per-chain failures are reported in the returned report.
func (c *Controller) Run(ctx context.Context, intent types.Intent) (*types.SessionReport, error) {
	id, err := c.start(intent)
	if err != nil {
		return nil, err
	}
	logger := c.logger
	logger.Info().Str("sessionId", id).Str("intent", intent.String()).Int("chains", len(c.cfg.Chains)).Msg("session started")

	if err := intent.Validate(); err != nil {
		return nil, c.abort(err)
	}

	ops, err := c.buildAll(ctx, intent)
	if err != nil {
		return nil, c.abort(err)
	}
	hashes, err := aggregator.HashAll(ops)
	if err != nil {
		return nil, c.abort(err)
	}
	agg, err := aggregator.Aggregate(hashes)
	if err != nil {
		return nil, c.abort(err)
	}

	c.lock.Lock()
	c.root = agg.Root
	c.setState(StateSigning)
	c.lock.Unlock()

	sig, meta, err := c.cfg.Provider.Sign(ctx, agg.Root)
	if err != nil {
		return nil, c.abort(err)
	}
	blobs, err := expander.ExpandAll(ctx, sig, meta, c.cfg.Signer, agg, ops)
	if err != nil {
		return nil, c.abort(err)
	}
	for i, op := range ops {
		if err := op.SetSignature(blobs[i]); err != nil {
			return nil, c.abort(err)
		}
	}

	c.transition(StatePending)
	results := c.cfg.Submitter.SubmitAll(ctx, ops, c.publish)

	c.lock.Lock()
	c.results = append([]types.ChainResult(nil), results...)
	c.setState(StateSettled)
	report := &types.SessionReport{
		SessionID: id,
		Account:   c.cfg.Account,
		Intent:    intent,
		Root:      agg.Root,
		Results:   append([]types.ChainResult(nil), results...),
		StartedAt: c.startedAt,
		SettledAt: time.Now(),
	}
	c.lock.Unlock()

	logger.Info().Str("sessionId", id).Int("confirmed", report.Confirmed()).Int("chains", len(results)).Msg("session settled")
	if c.cfg.Store != nil {
		if err := c.cfg.Store.SaveReport(report); err != nil {
			logger.Error().Err(err).Str("sessionId", id).Msg("failed to save session report")
		}
	}
	return report, nil
}

// buildAll builds every chain's operation in parallel. The first failure cancels the
// remaining builds.
func (c *Controller) buildAll(ctx context.Context, intent types.Intent) ([]*types.PendingOperation, error) {
	ops := make([]*types.PendingOperation, len(c.cfg.Chains))
	g, gctx := errgroup.WithContext(ctx)
	for i, desc := range c.cfg.Chains {
		i, desc := i, desc
		g.Go(func() error {
			op, err := c.cfg.Builder.Build(gctx, desc, c.cfg.Account, c.cfg.Signer, intent)
			if err != nil {
				return types.NewChainError(desc.ChainID, err)
			}
			ops[i] = op
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ops, nil
}
