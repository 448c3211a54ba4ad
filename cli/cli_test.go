package cli

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/celer-network/go-multichain/config"
	"github.com/celer-network/go-multichain/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAccount = "0x0000000000000000000000000000000000005AFE"

func setupViper(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	require.NoError(t, config.Init(viper.GetViper(), ""))
	dir := t.TempDir()
	viper.Set(config.KeyStorageDir, filepath.Join(dir, "db"))
	viper.Set(config.KeyCredentialKey, filepath.Join(dir, "passkey.pem"))
}

func TestSubjectIntent(t *testing.T) {
	setupViper(t)
	viper.Set(flagOwner, "0x00000000000000000000000000000000000000aa")
	viper.Set(flagThreshold, 2)
	intent, err := subjectIntent(types.IntentAddOwner, flagOwner)()
	require.NoError(t, err)
	assert.Equal(t, types.IntentAddOwner, intent.Kind)
	assert.Equal(t, common.HexToAddress("0xaa"), intent.Subject)
	assert.Equal(t, uint64(2), intent.Threshold)

	viper.Set(flagOwner, "not-an-address")
	_, err = subjectIntent(types.IntentAddOwner, flagOwner)()
	assert.True(t, errors.Is(err, types.ErrIntent))
}

func TestTransferIntent(t *testing.T) {
	setupViper(t)
	cmd := TransferCommand()
	require.NoError(t, cmd.Flags().Parse([]string{"--to", "0x00000000000000000000000000000000000000bb", "--amount", "1000"}))
	require.NoError(t, viper.BindPFlags(cmd.Flags()))
	require.NotNil(t, cmd.Flags().Lookup(flagToken))

	intent, err := transferIntent()
	require.NoError(t, err)
	assert.Equal(t, types.IntentTransferValue, intent.Kind)
	assert.Equal(t, int64(1000), intent.Amount.Int64())
	assert.Nil(t, intent.Token)

	viper.Set(flagToken, "0x00000000000000000000000000000000000000cc")
	intent, err = transferIntent()
	require.NoError(t, err)
	require.NotNil(t, intent.Token)
	assert.Equal(t, common.HexToAddress("0xcc"), *intent.Token)

	viper.Set(flagAmount, "lots")
	_, err = transferIntent()
	assert.True(t, errors.Is(err, types.ErrIntent))
}

func TestInitAccount(t *testing.T) {
	setupViper(t)
	viper.Set(config.KeyAccountAddress, testAccount)
	viper.Set(flagRPID, "wallet.example.org")

	var out bytes.Buffer
	require.NoError(t, initAccount(context.Background(), strings.NewReader(""), &out))
	assert.Contains(t, out.String(), "created credential")
	assert.Contains(t, out.String(), common.HexToAddress(testAccount).Hex())

	// The account and the key survive without the config entry.
	viper.Set(config.KeyAccountAddress, "")
	a, err := initApp(strings.NewReader(""), &out)
	require.NoError(t, err)
	defer a.close()
	assert.Equal(t, common.HexToAddress(testAccount), a.account)
	signer, err := a.signer()
	require.NoError(t, err)
	stored, ok, err := a.store.Credential()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, signer.X.Cmp(stored.PublicKey.X))
}

func TestPrintReport(t *testing.T) {
	tx := common.HexToHash("0x1234")
	chains := []types.ChainDescriptor{
		{ChainID: 1, DisplayName: "Ethereum", ExplorerBaseURL: "https://etherscan.io"},
		{ChainID: 10},
	}
	report := &types.SessionReport{
		SessionID: "s-1",
		StartedAt: time.Now(),
		Results: []types.ChainResult{
			{ChainID: 1, Status: types.ChainStatusConfirmed, TransactionHash: &tx},
			{ChainID: 10, Status: types.ChainStatusFailed, ErrorKind: types.ErrorKindBundlerRejected, Reason: "AA21"},
		},
	}
	var out bytes.Buffer
	printReport(&out, chains, report)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "Ethereum")
	assert.Contains(t, lines[1], "https://etherscan.io/tx/"+tx.Hex())
	assert.Contains(t, lines[2], "chain-10")
	assert.Contains(t, lines[2], "AA21")
}
