package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/celer-network/go-multichain/test"
	"github.com/celer-network/go-multichain/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "multichain.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadChains(t *testing.T) {
	v, err := New(writeConfig(t, `
chain1:
  id: 1
  rpc: http://rpc1
  bundler: http://bundler1
  name: Ethereum
chain2:
  id: 10
  rpc: http://rpc10
  bundler: http://bundler10
  paymaster: http://pm10
chain4:
  id: 42
  rpc: http://rpc42
  bundler: http://bundler42
`))
	require.NoError(t, err)
	chains, err := Load(v)
	require.NoError(t, err)
	// scanning stops at the missing chain3
	require.Len(t, chains, 2)
	assert.Equal(t, uint64(1), chains[0].ChainID)
	assert.Equal(t, "Ethereum", chains[0].Name())
	assert.Equal(t, "chain-10", chains[1].Name())
	assert.Equal(t, "http://pm10", chains[1].PaymasterEndpoint)
}

func TestLoadChainErrors(t *testing.T) {
	cases := map[string]string{
		"missing bundler": "chain1: {id: 1, rpc: a}\nchain2: {id: 2, rpc: b, bundler: c}\n",
		"missing rpc":     "chain1: {id: 1, rpc: a, bundler: b}\nchain2: {id: 2, bundler: c}\n",
		"duplicate":       "chain1: {id: 1, rpc: a, bundler: b}\nchain2: {id: 1, rpc: c, bundler: d}\n",
		"single chain":    "chain1: {id: 1, rpc: a, bundler: b}\n",
		"bad id":          "chain1: {id: one, rpc: a, bundler: b}\nchain2: {id: 2, rpc: c, bundler: d}\n",
	}
	for name, body := range cases {
		v, err := New(writeConfig(t, body))
		require.NoError(t, err, name)
		_, err = Load(v)
		assert.True(t, errors.Is(err, types.ErrConfig), name)
	}

	v, err := New(writeConfig(t, "chain1: {id: 1, rpc: a}\nchain2: {id: 2, rpc: b, bundler: c}\n"))
	require.NoError(t, err)
	_, err = Load(v)
	assert.Contains(t, err.Error(), "chain1.bundler")
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("MULTICHAIN_CHAIN1_ID", "1")
	t.Setenv("MULTICHAIN_CHAIN1_RPC", "http://rpc1")
	t.Setenv("MULTICHAIN_CHAIN1_BUNDLER", "http://bundler1")
	t.Setenv("MULTICHAIN_CHAIN2_ID", "137")
	t.Setenv("MULTICHAIN_CHAIN2_RPC", "http://rpc137")
	t.Setenv("MULTICHAIN_CHAIN2_BUNDLER", "http://bundler137")
	v, err := New("")
	require.NoError(t, err)
	chains, err := Load(v)
	require.NoError(t, err)
	require.Len(t, chains, 2)
	assert.Equal(t, uint64(137), chains[1].ChainID)
}

func TestLoadNetworkConfig(t *testing.T) {
	net, err := test.NewNetwork(1, 10, 42)
	require.NoError(t, err)
	defer net.Close()
	path, err := net.SaveConfig(t.TempDir())
	require.NoError(t, err)

	v, err := New(path)
	require.NoError(t, err)
	chains, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, net.Chains, chains)

	account, err := Account(v)
	require.NoError(t, err)
	assert.Equal(t, test.Account, account)

	cfg, err := LoadBuilderConfig(v, len(chains))
	require.NoError(t, err)
	assert.Equal(t, test.SafeModule, cfg.SafeModule)
	assert.Equal(t, test.RecoveryModule, cfg.RecoveryModule)
	require.NotNil(t, cfg.Factory)
	assert.Equal(t, test.Factory, *cfg.Factory)
	assert.Equal(t, uint64(120), cfg.PreVerificationGasMultiplier)
	assert.Equal(t, 3, cfg.ChainCount)
	assert.Nil(t, cfg.MaxFeePerGas)

	sub := LoadSubmitterConfig(v)
	assert.Equal(t, 2*time.Second, sub.PollInterval)
	assert.Equal(t, 30*time.Second, sub.SendTimeout)
	assert.Nil(t, PaymasterContext(v))
}

func TestBuilderConfigOverrides(t *testing.T) {
	v, err := New(writeConfig(t, `
account:
  address: "0x5afe000000000000000000000000000000000000"
  factoryData: "0x1688"
  factory: "0x4e1DCf7AD4e460CfD30791CCC4F9c8a4f820ec67"
gas:
  maxFeePerGas: "0x3b9aca00"
  maxPriorityFeePerGas: 1000
  estimate: true
paymaster:
  sponsorshipPolicyId: abc
`))
	require.NoError(t, err)
	cfg, err := LoadBuilderConfig(v, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1000000000), cfg.MaxFeePerGas.Int64())
	assert.Equal(t, int64(1000), cfg.MaxPriorityFeePerGas.Int64())
	assert.True(t, cfg.EstimateGas)
	assert.Equal(t, []byte{0x16, 0x88}, cfg.FactoryData)
	assert.Equal(t, "abc", PaymasterContext(v)["sponsorshipPolicyId"])

	v, err = New(writeConfig(t, "account:\n  safeModule: nope\n"))
	require.NoError(t, err)
	_, err = LoadBuilderConfig(v, 2)
	assert.True(t, errors.Is(err, types.ErrConfig))
}

func TestLoadAccountSetup(t *testing.T) {
	v, err := New("")
	require.NoError(t, err)
	setup, err := LoadAccountSetup(v)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(DefaultFactory), setup.Factory)
	assert.Equal(t, common.HexToAddress(DefaultSingleton), setup.Singleton)
	assert.Equal(t, common.HexToAddress(DefaultSafeModule), setup.FallbackHandler)
	require.Len(t, setup.Modules, 1)
	assert.Equal(t, common.HexToAddress(DefaultSafeModule), setup.Modules[0])
	assert.Zero(t, setup.SaltNonce.Sign())

	v, err = New(writeConfig(t, `
account:
  factory: "0x0000000000000000000000000000000000000f0f"
  saltNonce: 7
`))
	require.NoError(t, err)
	setup, err = LoadAccountSetup(v)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xf0f"), setup.Factory)
	assert.Equal(t, int64(7), setup.SaltNonce.Int64())
}
