// Package paymaster obtains gas sponsorship for pending operations.
package paymaster

import (
	"context"
	"fmt"
	"sync"

	"github.com/celer-network/go-multichain/bundler"
	"github.com/celer-network/go-multichain/log"
	"github.com/celer-network/go-multichain/types"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// SponsorMetadata describes who pays for the operation.
type SponsorMetadata struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Icons       []string `json:"icons"`
}

// Sponsorship is the sponsor's answer for one operation: paymaster fields and any gas
// values the paymaster adjusted.
type Sponsorship struct {
	bundler.UserOperation
	SponsorMetadata *SponsorMetadata `json:"sponsorMetadata,omitempty"`
}

// Apply attaches the sponsorship to op. It must run before op is hashed.
func (s *Sponsorship) Apply(op *types.PendingOperation) {
	s.UserOperation.ApplySponsorship(op)
	if s.SponsorMetadata != nil {
		op.SponsorName = s.SponsorMetadata.Name
	}
}

// Client decides how gas is paid on a chain.
type Client interface {
	// Sponsor returns nil without error when the chain has no sponsor.
	Sponsor(ctx context.Context, chainID uint64, op *types.PendingOperation, placeholderSignature []byte) (*Sponsorship, error)
}

var _ Client = (*RPCClient)(nil)

// RPCClient calls pm_sponsorUserOperation on each chain's paymaster endpoint.
type RPCClient struct {
	endpoints map[uint64]string
	context   map[string]interface{}
	dial      func(ctx context.Context, endpoint string) (*rpc.Client, error)

	lock    sync.Mutex
	clients map[uint64]*rpc.Client
	logger  *log.Logger
}

// NewRPCClient builds a client for the chains' paymaster endpoints, falling back to
// fallback for chains without one. Chains with neither are not sponsored.
func NewRPCClient(chains []types.ChainDescriptor, fallback string, sponsorContext map[string]interface{}) *RPCClient {
	endpoints := make(map[uint64]string)
	for _, c := range chains {
		switch {
		case c.PaymasterEndpoint != "":
			endpoints[c.ChainID] = c.PaymasterEndpoint
		case fallback != "":
			endpoints[c.ChainID] = fallback
		}
	}
	return &RPCClient{
		endpoints: endpoints,
		context:   sponsorContext,
		dial:      rpc.DialContext,
		clients:   make(map[uint64]*rpc.Client),
		logger:    log.NewLogger("paymaster"),
	}
}

// WithClient uses c for chainID instead of dialing.
func (p *RPCClient) WithClient(chainID uint64, c *rpc.Client) *RPCClient {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.clients[chainID] = c
	if _, ok := p.endpoints[chainID]; !ok {
		p.endpoints[chainID] = "inproc"
	}
	return p
}

func (p *RPCClient) client(ctx context.Context, chainID uint64) (*rpc.Client, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if c, ok := p.clients[chainID]; ok {
		return c, nil
	}
	c, err := p.dial(ctx, p.endpoints[chainID])
	if err != nil {
		return nil, err
	}
	p.clients[chainID] = c
	return c, nil
}

func (p *RPCClient) Sponsor(ctx context.Context, chainID uint64, op *types.PendingOperation, placeholderSignature []byte) (*Sponsorship, error) {
	if _, ok := p.endpoints[chainID]; !ok {
		return nil, nil
	}
	c, err := p.client(ctx, chainID)
	if err != nil {
		return nil, fmt.Errorf("chain %d paymaster: %v: %w", chainID, err, types.ErrSponsorship)
	}

	params := []interface{}{bundler.FromOperation(op, placeholderSignature), op.EntryPoint}
	if p.context != nil {
		params = append(params, p.context)
	}
	var result Sponsorship
	if err := c.CallContext(ctx, &result, "pm_sponsorUserOperation", params...); err != nil {
		p.logger.Warn().Uint64("chainId", chainID).Err(err).Msg("sponsorship refused")
		return nil, fmt.Errorf("chain %d pm_sponsorUserOperation: %v: %w", chainID, err, types.ErrSponsorship)
	}
	if result.Paymaster == nil {
		return nil, fmt.Errorf("chain %d pm_sponsorUserOperation: no paymaster in response: %w", chainID, types.ErrSponsorship)
	}
	if result.PaymasterData == nil {
		result.PaymasterData = hexutil.Bytes{}
	}
	ev := p.logger.Debug().Uint64("chainId", chainID).Str("paymaster", result.Paymaster.Hex())
	if result.SponsorMetadata != nil {
		ev = ev.Str("sponsor", result.SponsorMetadata.Name)
	}
	ev.Msg("operation sponsored")
	return &result, nil
}

// Close closes every dialed endpoint.
func (p *RPCClient) Close() {
	p.lock.Lock()
	defer p.lock.Unlock()
	for id, c := range p.clients {
		c.Close()
		delete(p.clients, id)
	}
}

// Disabled never sponsors; the account pays its own gas.
type Disabled struct{}

func (Disabled) Sponsor(context.Context, uint64, *types.PendingOperation, []byte) (*Sponsorship, error) {
	return nil, nil
}
