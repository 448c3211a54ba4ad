package builder

import (
	"context"
	"fmt"

	"github.com/celer-network/go-multichain/chain"
	"github.com/celer-network/go-multichain/types"
	"github.com/ethereum/go-ethereum/common"
)

// ModuleDecision reports whether enableModule(module) has to be prepended, reading the
// current state first so that an enabled module is never enabled twice.
func ModuleDecision(ctx context.Context, reader chain.Reader, account, module common.Address) (bool, error) {
	enabled, err := reader.IsModuleEnabled(ctx, account, module)
	if err != nil {
		return false, err
	}
	return !enabled, nil
}

// previous returns the entry pointing at target in a Safe linked list.
func previous(list []common.Address, target common.Address) (common.Address, bool) {
	for i, a := range list {
		if a == target {
			if i == 0 {
				return types.SentinelOwner, true
			}
			return list[i-1], true
		}
	}
	return common.Address{}, false
}

func contains(list []common.Address, target common.Address) bool {
	_, ok := previous(list, target)
	return ok
}

// calls translates intent into the account's ordered calls on one chain.
func (b *Builder) calls(ctx context.Context, reader chain.Reader, account common.Address, deployed bool, intent types.Intent) ([]types.Call, error) {
	s := b.serializer
	threshold := intent.ThresholdOrDefault()
	self := func(payload []byte, err error) ([]types.Call, error) {
		if err != nil {
			return nil, err
		}
		return []types.Call{{Target: account, Payload: payload}}, nil
	}

	switch intent.Kind {
	case types.IntentTransferValue:
		if intent.Token == nil {
			return []types.Call{{Target: intent.To, Value: intent.Amount}}, nil
		}
		balance, err := reader.TokenBalance(ctx, *intent.Token, account)
		if err != nil {
			return nil, err
		}
		if balance.Cmp(intent.Amount) < 0 {
			return nil, fmt.Errorf("transfer of %s exceeds token balance %s: %w", intent.Amount, balance, types.ErrIntent)
		}
		payload, err := s.ERC20Transfer(intent.To, intent.Amount)
		if err != nil {
			return nil, err
		}
		return []types.Call{{Target: *intent.Token, Payload: payload}}, nil

	case types.IntentAddOwner:
		if deployed {
			owners, err := reader.Owners(ctx, account)
			if err != nil {
				return nil, err
			}
			if contains(owners, intent.Subject) {
				return nil, fmt.Errorf("%s is already an owner: %w", intent.Subject.Hex(), types.ErrIntent)
			}
		}
		return self(s.AddOwnerWithThreshold(intent.Subject, threshold))

	case types.IntentRemoveOwner:
		if !deployed {
			return nil, fmt.Errorf("remove-owner on an undeployed account: %w", types.ErrIntent)
		}
		owners, err := reader.Owners(ctx, account)
		if err != nil {
			return nil, err
		}
		prev, ok := previous(owners, intent.Subject)
		if !ok {
			return nil, fmt.Errorf("%s is not an owner: %w", intent.Subject.Hex(), types.ErrIntent)
		}
		if threshold.Uint64() > uint64(len(owners)-1) {
			return nil, fmt.Errorf("threshold %s exceeds remaining %d owners: %w", threshold, len(owners)-1, types.ErrIntent)
		}
		return self(s.RemoveOwner(prev, intent.Subject, threshold))

	case types.IntentAddGuardian, types.IntentRemoveGuardian:
		return b.guardianCalls(ctx, reader, account, intent)

	case types.IntentEnableModule:
		prepend, err := ModuleDecision(ctx, reader, account, intent.Subject)
		if err != nil {
			return nil, err
		}
		if !prepend {
			return nil, fmt.Errorf("module %s already enabled, nothing to do: %w", intent.Subject.Hex(), types.ErrIntent)
		}
		return self(s.EnableModule(intent.Subject))
	}
	return nil, fmt.Errorf("unknown intent kind %q: %w", intent.Kind, types.ErrIntent)
}

func (b *Builder) guardianCalls(ctx context.Context, reader chain.Reader, account common.Address, intent types.Intent) ([]types.Call, error) {
	module := b.cfg.RecoveryModule
	if module == (common.Address{}) {
		return nil, fmt.Errorf("%s: recovery module not configured: %w", intent.Kind, types.ErrConfig)
	}
	prepend, err := ModuleDecision(ctx, reader, account, module)
	if err != nil {
		return nil, err
	}
	var guardians []common.Address
	if !prepend {
		if guardians, err = reader.Guardians(ctx, module, account); err != nil {
			return nil, err
		}
	}

	var calls []types.Call
	if prepend {
		payload, err := b.serializer.EnableModule(module)
		if err != nil {
			return nil, err
		}
		calls = append(calls, types.Call{Target: account, Payload: payload})
	}

	threshold := intent.ThresholdOrDefault()
	var payload []byte
	if intent.Kind == types.IntentAddGuardian {
		if contains(guardians, intent.Subject) {
			return nil, fmt.Errorf("%s is already a guardian: %w", intent.Subject.Hex(), types.ErrIntent)
		}
		payload, err = b.serializer.AddGuardianWithThreshold(intent.Subject, threshold)
	} else {
		prev, ok := previous(guardians, intent.Subject)
		if !ok {
			return nil, fmt.Errorf("%s is not a guardian: %w", intent.Subject.Hex(), types.ErrIntent)
		}
		if threshold.Uint64() > uint64(len(guardians)-1) {
			return nil, fmt.Errorf("threshold %s exceeds remaining %d guardians: %w", threshold, len(guardians)-1, types.ErrIntent)
		}
		payload, err = b.serializer.RevokeGuardianWithThreshold(prev, intent.Subject, threshold)
	}
	if err != nil {
		return nil, err
	}
	return append(calls, types.Call{Target: module, Payload: payload}), nil
}
