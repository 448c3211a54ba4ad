// Package builder builds one unsigned pending operation per chain from a chain-independent
// intent.
package builder

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/celer-network/go-multichain/bundler"
	"github.com/celer-network/go-multichain/chain"
	"github.com/celer-network/go-multichain/expander"
	"github.com/celer-network/go-multichain/log"
	"github.com/celer-network/go-multichain/paymaster"
	"github.com/celer-network/go-multichain/smt"
	"github.com/celer-network/go-multichain/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Builder never signs or submits.
type Builder struct {
	cfg        Config
	readers    map[uint64]chain.Reader
	bundlers   map[uint64]bundler.Client
	sponsor    paymaster.Client
	serializer *types.Serializer
	now        func() time.Time
	logger     *log.Logger
}

// New builds with cfg. bundlers is only used for gas estimation and may be nil. A nil
// sponsor disables sponsorship.
func New(cfg Config, readers map[uint64]chain.Reader, bundlers map[uint64]bundler.Client, sponsor paymaster.Client) (*Builder, error) {
	if cfg.EntryPoint == (common.Address{}) || cfg.SafeModule == (common.Address{}) {
		return nil, fmt.Errorf("builder: entry point and safe module are required: %w", types.ErrConfig)
	}
	if sponsor == nil {
		sponsor = paymaster.Disabled{}
	}
	serializer, err := types.NewSerializer()
	if err != nil {
		return nil, err
	}
	return &Builder{
		cfg:        cfg,
		readers:    readers,
		bundlers:   bundlers,
		sponsor:    sponsor,
		serializer: serializer,
		now:        time.Now,
		logger:     log.NewLogger("builder"),
	}, nil
}

// Build assembles the operation for one chain: nonce, deployment, calls, gas and
// sponsorship. Any error aborts the whole multichain action.
func (b *Builder) Build(ctx context.Context, desc types.ChainDescriptor, account common.Address, signer types.PublicKey, intent types.Intent) (*types.PendingOperation, error) {
	if err := intent.Validate(); err != nil {
		return nil, err
	}
	reader, ok := b.readers[desc.ChainID]
	if !ok {
		return nil, fmt.Errorf("chain %d: no rpc client: %w", desc.ChainID, types.ErrConfig)
	}
	logger := b.logger.WithChain(desc.ChainID)

	nonce, err := reader.Nonce(ctx, b.cfg.EntryPoint, account, new(big.Int))
	if err != nil {
		return nil, err
	}
	deployed, err := reader.IsDeployed(ctx, account)
	if err != nil {
		return nil, err
	}

	op := &types.PendingOperation{
		ChainID:              desc.ChainID,
		Sender:               account,
		Nonce:                nonce,
		CallGasLimit:         copyOrZero(b.cfg.CallGasLimit),
		VerificationGasLimit: copyOrZero(b.cfg.VerificationGasLimit),
		PreVerificationGas:   copyOrZero(b.cfg.PreVerificationGas),
		EntryPoint:           b.cfg.EntryPoint,
		SafeModule:           b.cfg.SafeModule,
	}
	if !deployed {
		if b.cfg.Factory == nil {
			return nil, fmt.Errorf("chain %d: account %s is not deployed and no factory is configured: %w", desc.ChainID, account.Hex(), types.ErrConfig)
		}
		factory := *b.cfg.Factory
		op.Factory = &factory
		op.FactoryData = common.CopyBytes(b.cfg.FactoryData)
	}
	if b.cfg.ValidFor > 0 {
		op.ValidUntil = uint64(b.now().Add(b.cfg.ValidFor).Unix())
	}

	if op.Calls, err = b.calls(ctx, reader, account, deployed, intent); err != nil {
		return nil, fmt.Errorf("chain %d: %w", desc.ChainID, err)
	}
	if op.CallData, err = b.serializer.EncodeCallData(op.Calls, b.cfg.MultiSend); err != nil {
		return nil, fmt.Errorf("chain %d: %w", desc.ChainID, err)
	}
	if err = b.fees(ctx, reader, op); err != nil {
		return nil, err
	}

	placeholder, err := expander.DummySignature(signer, uint8(smt.DepthFor(b.chainCount())), expander.WindowOf(op))
	if err != nil {
		return nil, err
	}
	if err = b.estimate(ctx, op, placeholder); err != nil {
		return nil, err
	}
	op.PreVerificationGas = applyMultiplier(op.PreVerificationGas, b.cfg.PreVerificationGasMultiplier)
	op.VerificationGasLimit = applyMultiplier(op.VerificationGasLimit, b.cfg.VerificationGasLimitMultiplier)

	sponsorship, err := b.sponsor.Sponsor(ctx, desc.ChainID, op, placeholder)
	if err != nil {
		return nil, err
	}
	if sponsorship != nil {
		sponsorship.Apply(op)
	}

	logger.Debug().Str("nonce", nonce.String()).Bool("deployed", deployed).Int("calls", len(op.Calls)).
		Str("sponsor", op.SponsorName).Msg("operation built")
	return op, nil
}

func (b *Builder) chainCount() int {
	if b.cfg.ChainCount < 2 {
		return 2
	}
	return b.cfg.ChainCount
}

func (b *Builder) fees(ctx context.Context, reader chain.Reader, op *types.PendingOperation) error {
	if b.cfg.MaxFeePerGas != nil && b.cfg.MaxPriorityFeePerGas != nil {
		op.MaxFeePerGas = new(big.Int).Set(b.cfg.MaxFeePerGas)
		op.MaxPriorityFeePerGas = new(big.Int).Set(b.cfg.MaxPriorityFeePerGas)
		return nil
	}
	fees, err := reader.FeeData(ctx)
	if err != nil {
		return err
	}
	op.MaxFeePerGas = fees.MaxFeePerGas
	op.MaxPriorityFeePerGas = fees.MaxPriorityFeePerGas
	return nil
}

func (b *Builder) estimate(ctx context.Context, op *types.PendingOperation, placeholder []byte) error {
	if !b.cfg.EstimateGas {
		return nil
	}
	client, ok := b.bundlers[op.ChainID]
	if !ok {
		return fmt.Errorf("chain %d: no bundler for gas estimation: %w", op.ChainID, types.ErrConfig)
	}
	estimate, err := client.EstimateUserOperationGas(ctx, op, placeholder)
	if err != nil {
		return fmt.Errorf("chain %d: %w", op.ChainID, err)
	}
	op.CallGasLimit = estimate.CallGasLimit.ToInt()
	op.VerificationGasLimit = estimate.VerificationGasLimit.ToInt()
	op.PreVerificationGas = estimate.PreVerificationGas.ToInt()
	return nil
}

// applyMultiplier returns v * percent / 100. A zero percent leaves v unchanged.
func applyMultiplier(v *big.Int, percent uint64) *big.Int {
	if v == nil || percent == 0 {
		return v
	}
	x, overflow := uint256.FromBig(v)
	if overflow {
		return v
	}
	x.Mul(x, uint256.NewInt(percent))
	x.Div(x, uint256.NewInt(100))
	return x.ToBig()
}

func copyOrZero(v *big.Int) *big.Int {
	return new(big.Int).Set(types.OrZero(v))
}
