package test

import (
	"encoding/json"
	"errors"
	"math/big"
	"sync"

	"github.com/celer-network/go-multichain/bundler"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Outcome is what a fake bundler does with an accepted operation.
type Outcome int

const (
	OutcomeInclude Outcome = iota
	OutcomeRevert
	OutcomeNeverInclude
	OutcomeReject
)

// BundlerService is served in process under the "eth" namespace.
type BundlerService struct {
	ChainID uint64
	Outcome Outcome
	// PendingPolls is how many receipt queries report nothing before the receipt appears.
	PendingPolls int
	// RejectReason is the JSON-RPC error message for OutcomeReject.
	RejectReason string
	// RevertReason is the hex revert data for OutcomeRevert.
	RevertReason string

	lock      sync.Mutex
	sent      []bundler.UserOperation
	polls     map[common.Hash]int
	estimates int
}

func NewBundlerService(chainID uint64) *BundlerService {
	return &BundlerService{ChainID: chainID, polls: make(map[common.Hash]int)}
}

// Sent returns the operations accepted so far.
func (s *BundlerService) Sent() []bundler.UserOperation {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]bundler.UserOperation(nil), s.sent...)
}

func (s *BundlerService) Estimates() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.estimates
}

func (s *BundlerService) SendUserOperation(op bundler.UserOperation, entryPoint common.Address) (common.Hash, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.Outcome == OutcomeReject {
		reason := s.RejectReason
		if reason == "" {
			reason = "AA25 invalid account nonce"
		}
		return common.Hash{}, errors.New(reason)
	}
	raw, err := json.Marshal(op)
	if err != nil {
		return common.Hash{}, err
	}
	opHash := crypto.Keccak256Hash(raw, new(big.Int).SetUint64(s.ChainID).Bytes())
	s.sent = append(s.sent, op)
	s.polls[opHash] = 0
	return opHash, nil
}

func (s *BundlerService) GetUserOperationReceipt(opHash common.Hash) (*bundler.UserOperationReceipt, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	polls, ok := s.polls[opHash]
	if !ok || s.Outcome == OutcomeNeverInclude {
		return nil, nil
	}
	s.polls[opHash] = polls + 1
	if polls < s.PendingPolls {
		return nil, nil
	}
	receipt := &bundler.UserOperationReceipt{
		UserOpHash:    opHash,
		Success:       s.Outcome == OutcomeInclude,
		ActualGasCost: (*hexutil.Big)(big.NewInt(21000)),
		ActualGasUsed: (*hexutil.Big)(big.NewInt(21000)),
	}
	if !receipt.Success {
		receipt.Reason = s.RevertReason
	}
	receipt.Receipt.TransactionHash = TxHashFor(opHash)
	receipt.Receipt.BlockNumber = (*hexutil.Big)(big.NewInt(100))
	return receipt, nil
}

func (s *BundlerService) EstimateUserOperationGas(op bundler.UserOperation, entryPoint common.Address) (*bundler.GasEstimate, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.estimates++
	return &bundler.GasEstimate{
		PreVerificationGas:   (*hexutil.Big)(big.NewInt(50000)),
		VerificationGasLimit: (*hexutil.Big)(big.NewInt(400000)),
		CallGasLimit:         (*hexutil.Big)(big.NewInt(150000)),
	}, nil
}

// TxHashFor is the transaction hash a fake bundler reports for opHash.
func TxHashFor(opHash common.Hash) common.Hash {
	return crypto.Keccak256Hash([]byte("tx"), opHash.Bytes())
}
