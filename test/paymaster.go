package test

import (
	"errors"
	"sync"

	"github.com/celer-network/go-multichain/bundler"
	"github.com/celer-network/go-multichain/paymaster"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// PaymasterService is served in process under the "pm" namespace.
type PaymasterService struct {
	Paymaster common.Address
	Sponsor   string
	// Refuse makes every sponsorship request fail.
	Refuse bool

	lock     sync.Mutex
	requests int
	contexts []map[string]interface{}
}

func NewPaymasterService() *PaymasterService {
	return &PaymasterService{
		Paymaster: common.HexToAddress("0x8b1f6cb5d062aa2ce8d581942bbb960420d875ba"),
		Sponsor:   "Test Sponsor",
	}
}

func (s *PaymasterService) Requests() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.requests
}

func (s *PaymasterService) Contexts() []map[string]interface{} {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]map[string]interface{}(nil), s.contexts...)
}

func (s *PaymasterService) SponsorUserOperation(op bundler.UserOperation, entryPoint common.Address, sponsorContext *map[string]interface{}) (*paymaster.Sponsorship, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.requests++
	if sponsorContext != nil {
		s.contexts = append(s.contexts, *sponsorContext)
	}
	if s.Refuse {
		return nil, errors.New("sponsorship policy exhausted")
	}
	pm := s.Paymaster
	result := &paymaster.Sponsorship{
		SponsorMetadata: &paymaster.SponsorMetadata{
			Name:        s.Sponsor,
			Description: "gas sponsored for tests",
			URL:         "https://sponsor.example",
		},
	}
	result.Paymaster = &pm
	result.PaymasterVerificationGasLimit = (*hexutil.Big)(common.Big256)
	result.PaymasterPostOpGasLimit = (*hexutil.Big)(common.Big32)
	result.PaymasterData = hexutil.Bytes{0xca, 0xfe}
	return result, nil
}
