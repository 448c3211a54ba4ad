package userregistry

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/celer-network/go-multichain/credential"
	"github.com/celer-network/go-multichain/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRegistry mimics the registry's two routes.
type fakeRegistry struct {
	lock  sync.Mutex
	users map[string]Record
}

func (f *fakeRegistry) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.lock.Lock()
	defer f.lock.Unlock()
	switch {
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/users/by_account/"):
		user, ok := f.users[strings.TrimPrefix(r.URL.Path, "/users/by_account/")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"User not found"}`))
			return
		}
		json.NewEncoder(w).Encode(user)
	case r.Method == http.MethodPost && r.URL.Path == "/users":
		var req createRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if _, dup := f.users[req.User.AccountAddress]; dup {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"errors":["Username has already been taken"]}`))
			return
		}
		record := Record{ID: int64(len(f.users) + 1), Username: req.User.AccountAddress, PubkeyID: req.User.PubkeyID, PubkeyCoordinates: req.User.PubkeyCoordinates}
		f.users[record.Username] = record
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(record)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func TestCreateAndFetch(t *testing.T) {
	server := httptest.NewServer(&fakeRegistry{users: make(map[string]Record)})
	defer server.Close()
	client := NewClient(server.URL + "/")
	account := common.HexToAddress("0x5afe000000000000000000000000000000000001")
	ctx := context.Background()

	exists, err := client.Exists(ctx, account)
	require.NoError(t, err)
	assert.False(t, exists)

	cred := &credential.Credential{ID: "cred-1", PublicKey: types.PublicKey{X: big.NewInt(0xabc), Y: big.NewInt(0xdef)}}
	record, err := client.Create(ctx, account, cred)
	require.NoError(t, err)
	assert.Equal(t, account.Hex(), record.Username)
	assert.Equal(t, "0xabc", record.PubkeyCoordinates.X)

	fetched, err := client.Fetch(ctx, account)
	require.NoError(t, err)
	require.NotNil(t, fetched)
	local, err := fetched.Credential()
	require.NoError(t, err)
	assert.Equal(t, "cred-1", local.ID)
	assert.Equal(t, int64(0xdef), local.PublicKey.Y.Int64())

	_, err = client.Create(ctx, account, cred)
	assert.True(t, errors.Is(err, types.ErrNetwork))
	assert.Contains(t, err.Error(), "already been taken")
}

func TestUnreachableRegistry(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()
	_, err := NewClient(server.URL).Exists(context.Background(), common.Address{})
	assert.True(t, errors.Is(err, types.ErrNetwork))
}
