// Package test provides in-process fakes of every chain-facing service: chain readers,
// bundlers and a paymaster served over go-ethereum's in-process JSON-RPC transport.
package test

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/celer-network/go-multichain/bundler"
	"github.com/celer-network/go-multichain/chain"
	"github.com/celer-network/go-multichain/paymaster"
	"github.com/celer-network/go-multichain/types"
	"github.com/ethereum/go-ethereum/common"
	ethrpc "github.com/ethereum/go-ethereum/rpc"
	"gopkg.in/yaml.v2"
)

const (
	entryPointAddressStr     = "0x0000000071727De22E5E9d8BAf0edAc6f37da032"
	safeModuleAddressStr     = "0x75cf11467937ce3F2f357CE24ffc3DBF8fD5c226"
	multiSendAddressStr      = "0x38869bf66a61cF6bDB996A6aE40D5853Fd43B526"
	recoveryModuleAddressStr = "0x38275826E1933303E508433dD5f289315Da2541c"
	factoryAddressStr        = "0x4e1DCf7AD4e460CfD30791CCC4F9c8a4f820ec67"
	accountAddressStr        = "0x1f3e6f7E4b6b0C2Ff03bB8C3E9d3D5F1a2b3c4d5"
)

var (
	EntryPoint     = common.HexToAddress(entryPointAddressStr)
	SafeModule     = common.HexToAddress(safeModuleAddressStr)
	MultiSend      = common.HexToAddress(multiSendAddressStr)
	RecoveryModule = common.HexToAddress(recoveryModuleAddressStr)
	Factory        = common.HexToAddress(factoryAddressStr)
	Account        = common.HexToAddress(accountAddressStr)
)

// Network is a set of fake chains sharing one paymaster.
type Network struct {
	Chains []types.ChainDescriptor

	Readers  map[uint64]*FakeReader
	Bundlers map[uint64]*BundlerService
	Sponsor  *PaymasterService

	servers []*ethrpc.Server
	clients []*ethrpc.Client
}

// NewNetwork starts fake services for chainIDs.
func NewNetwork(chainIDs ...uint64) (*Network, error) {
	n := &Network{
		Readers:  make(map[uint64]*FakeReader),
		Bundlers: make(map[uint64]*BundlerService),
		Sponsor:  NewPaymasterService(),
	}
	for _, id := range chainIDs {
		if _, dup := n.Readers[id]; dup {
			return nil, fmt.Errorf("duplicate chain %d", id)
		}
		n.Chains = append(n.Chains, types.ChainDescriptor{
			ChainID:         id,
			RPCEndpoint:     fmt.Sprintf("http://rpc.chain-%d.test", id),
			BundlerEndpoint: fmt.Sprintf("http://bundler.chain-%d.test", id),
			DisplayName:     fmt.Sprintf("Chain %d", id),
			ExplorerBaseURL: fmt.Sprintf("https://explorer.chain-%d.test", id),
		})
		n.Readers[id] = NewFakeReader(id)
		n.Bundlers[id] = NewBundlerService(id)
	}
	return n, nil
}

func (n *Network) serve(namespace string, service interface{}) *ethrpc.Client {
	server := ethrpc.NewServer()
	if err := server.RegisterName(namespace, service); err != nil {
		panic(err)
	}
	client := ethrpc.DialInProc(server)
	n.servers = append(n.servers, server)
	n.clients = append(n.clients, client)
	return client
}

// ChainReaders returns the readers as chain.Reader.
func (n *Network) ChainReaders() map[uint64]chain.Reader {
	readers := make(map[uint64]chain.Reader, len(n.Readers))
	for id, r := range n.Readers {
		readers[id] = r
	}
	return readers
}

// BundlerClients dials every bundler over in-process JSON-RPC.
func (n *Network) BundlerClients() map[uint64]bundler.Client {
	clients := make(map[uint64]bundler.Client, len(n.Bundlers))
	for id, svc := range n.Bundlers {
		clients[id] = bundler.NewRPCClient(id, n.serve("eth", svc))
	}
	return clients
}

// PaymasterClient sponsors every chain through the shared fake paymaster.
func (n *Network) PaymasterClient(sponsorContext map[string]interface{}) *paymaster.RPCClient {
	client := paymaster.NewRPCClient(nil, "", sponsorContext)
	c := n.serve("pm", n.Sponsor)
	for _, desc := range n.Chains {
		client.WithClient(desc.ChainID, c)
	}
	return client
}

func (n *Network) Close() {
	for _, c := range n.clients {
		c.Close()
	}
	for _, s := range n.servers {
		s.Stop()
	}
}

type chainConfig struct {
	ID       uint64 `yaml:"id"`
	RPC      string `yaml:"rpc"`
	Bundler  string `yaml:"bundler"`
	Name     string `yaml:"name,omitempty"`
	Explorer string `yaml:"explorer,omitempty"`
}

type accountConfig struct {
	Address        string `yaml:"address"`
	EntryPoint     string `yaml:"entryPoint"`
	SafeModule     string `yaml:"safeModule"`
	MultiSend      string `yaml:"multiSend"`
	RecoveryModule string `yaml:"recoveryModule"`
	Factory        string `yaml:"factory"`
}

// SaveConfig writes a config file describing the network to dir and returns its path.
func (n *Network) SaveConfig(dir string) (string, error) {
	cfg := yaml.MapSlice{}
	for i, desc := range n.Chains {
		cfg = append(cfg, yaml.MapItem{
			Key: fmt.Sprintf("chain%d", i+1),
			Value: chainConfig{
				ID:       desc.ChainID,
				RPC:      desc.RPCEndpoint,
				Bundler:  desc.BundlerEndpoint,
				Name:     desc.DisplayName,
				Explorer: desc.ExplorerBaseURL,
			},
		})
	}
	cfg = append(cfg, yaml.MapItem{Key: "account", Value: accountConfig{
		Address:        Account.Hex(),
		EntryPoint:     EntryPoint.Hex(),
		SafeModule:     SafeModule.Hex(),
		MultiSend:      MultiSend.Hex(),
		RecoveryModule: RecoveryModule.Hex(),
		Factory:        Factory.Hex(),
	}})
	bytes, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, "multichain.yaml")
	if err := os.WriteFile(path, bytes, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
