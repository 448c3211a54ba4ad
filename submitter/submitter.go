// Package submitter sends signed operations to their chains' bundlers and tracks each
// inclusion independently.
package submitter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/celer-network/go-multichain/bundler"
	"github.com/celer-network/go-multichain/log"
	"github.com/celer-network/go-multichain/types"
	"github.com/ethereum/go-ethereum/common"
)

const (
	DefaultPollInterval     = 2 * time.Second
	DefaultSendTimeout      = 30 * time.Second
	DefaultInclusionTimeout = 3 * time.Minute
)

type Config struct {
	PollInterval time.Duration
	// SendTimeout bounds eth_sendUserOperation.
	SendTimeout      time.Duration
	InclusionTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{PollInterval: DefaultPollInterval, SendTimeout: DefaultSendTimeout, InclusionTimeout: DefaultInclusionTimeout}
}

type Submitter struct {
	cfg      Config
	bundlers map[uint64]bundler.Client
	logger   *log.Logger
}

func New(cfg Config, bundlers map[uint64]bundler.Client) *Submitter {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultSendTimeout
	}
	if cfg.InclusionTimeout <= 0 {
		cfg.InclusionTimeout = DefaultInclusionTimeout
	}
	return &Submitter{cfg: cfg, bundlers: bundlers, logger: log.NewLogger("submitter")}
}

// OperationHandle tracks one accepted operation.
type OperationHandle struct {
	ChainID uint64
	OpHash  common.Hash

	client bundler.Client
	cfg    Config
	logger *log.Logger
}

// Submit hands a signed operation to its chain's bundler. The call is bounded by the
// send timeout.
func (s *Submitter) Submit(ctx context.Context, op *types.PendingOperation) (*OperationHandle, error) {
	client, ok := s.bundlers[op.ChainID]
	if !ok {
		return nil, fmt.Errorf("chain %d: no bundler: %w", op.ChainID, types.ErrConfig)
	}
	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
	defer cancel()
	opHash, err := client.SendUserOperation(sendCtx, op)
	if err != nil {
		if sendCtx.Err() != nil && ctx.Err() == nil {
			err = fmt.Errorf("no answer from bundler after %s: %v: %w", s.cfg.SendTimeout, err, types.ErrNetwork)
		}
		return nil, types.NewChainError(op.ChainID, err)
	}
	return &OperationHandle{
		ChainID: op.ChainID,
		OpHash:  opHash,
		client:  client,
		cfg:     s.cfg,
		logger:  s.logger.WithChain(op.ChainID),
	}, nil
}

// AwaitInclusion polls for the receipt until the inclusion timeout. An included operation
// whose execution failed is returned with ErrExecutionReverted; it is not retried.
func (h *OperationHandle) AwaitInclusion(ctx context.Context) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, h.cfg.InclusionTimeout)
	defer cancel()
	queryTicker := time.NewTicker(h.cfg.PollInterval)
	defer queryTicker.Stop()

	for {
		receipt, err := h.client.GetUserOperationReceipt(ctx, h.OpHash)
		switch {
		case err != nil:
			h.logger.Warn().Err(err).Str("opHash", h.OpHash.Hex()).Msg("receipt query failed")
		case receipt != nil && receipt.Success:
			return receipt, nil
		case receipt != nil:
			return receipt, types.NewChainError(h.ChainID, fmt.Errorf("%s: %w", receipt.FailureReason, types.ErrExecutionReverted))
		}

		select {
		case <-ctx.Done():
			return nil, types.NewChainError(h.ChainID, fmt.Errorf("operation %s after %s: %w", h.OpHash.Hex(), h.cfg.InclusionTimeout, types.ErrInclusionTimeout))
		case <-queryTicker.C:
		}
	}
}

// Update reports a chain result change at index i of a SubmitAll call.
type Update func(i int, result types.ChainResult)

// SubmitAll submits every operation and awaits every inclusion independently. A failure
// on one chain never affects another. The caller's cancellation does not stop operations
// already signed; each chain ends after its send timeout plus inclusion timeout at the latest.
func (s *Submitter) SubmitAll(ctx context.Context, ops []*types.PendingOperation, update Update) []types.ChainResult {
	ctx = context.WithoutCancel(ctx)
	results := make([]types.ChainResult, len(ops))
	var wg sync.WaitGroup
	for i, op := range ops {
		results[i] = types.ChainResult{ChainID: op.ChainID, Status: types.ChainStatusUnset}
		wg.Add(1)
		go func(i int, op *types.PendingOperation) {
			defer wg.Done()
			set := func(r types.ChainResult) {
				if !results[i].CanTransition(r.Status) {
					s.logger.Error().Uint64("chainId", op.ChainID).Str("from", string(results[i].Status)).
						Str("to", string(r.Status)).Msg("invalid chain status transition")
					return
				}
				results[i] = r
				if update != nil {
					update(i, r)
				}
			}
			s.run(ctx, op, results[i], set)
		}(i, op)
	}
	wg.Wait()
	return results
}

func (s *Submitter) run(ctx context.Context, op *types.PendingOperation, result types.ChainResult, set func(types.ChainResult)) {
	logger := s.logger.WithChain(op.ChainID)
	handle, err := s.Submit(ctx, op)
	if err != nil {
		set(failed(result, err))
		logger.Warn().Err(err).Msg("submission failed")
		return
	}
	opHash := handle.OpHash
	result.Status = types.ChainStatusPending
	result.OperationHash = &opHash
	set(result)

	receipt, err := handle.AwaitInclusion(ctx)
	if receipt != nil {
		txHash := receipt.TransactionHash
		result.TransactionHash = &txHash
	}
	if err != nil {
		set(failed(result, err))
		logger.Warn().Err(err).Str("opHash", opHash.Hex()).Msg("operation failed")
		return
	}
	result.Status = types.ChainStatusConfirmed
	set(result)
	logger.Info().Str("opHash", opHash.Hex()).Str("txHash", receipt.TransactionHash.Hex()).Msg("operation confirmed")
}

func failed(result types.ChainResult, err error) types.ChainResult {
	result.Status = types.ChainStatusFailed
	result.ErrorKind = types.KindOf(err)
	result.Reason = err.Error()
	var chainErr *types.ChainError
	if errors.As(err, &chainErr) {
		result.ErrorKind = chainErr.Kind
		result.Reason = chainErr.Err.Error()
	}
	return result
}
