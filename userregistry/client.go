// Package userregistry talks to the user registry service that maps an account address
// to its credential.
package userregistry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/celer-network/go-multichain/credential"
	"github.com/celer-network/go-multichain/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Coordinates are the credential's public key as 0x-prefixed hex.
type Coordinates struct {
	X string `json:"x"`
	Y string `json:"y"`
}

// Record is a user as stored by the registry. Username is the account address.
type Record struct {
	ID                int64       `json:"id,omitempty"`
	Username          string      `json:"username"`
	PubkeyID          string      `json:"pubkey_id"`
	PubkeyCoordinates Coordinates `json:"pubkey_coordinates"`
	CreatedAt         *time.Time  `json:"created_at,omitempty"`
}

// Credential converts the record to the local credential format.
func (r *Record) Credential() (*credential.Credential, error) {
	x, err := hexutil.DecodeBig(r.PubkeyCoordinates.X)
	if err != nil {
		return nil, fmt.Errorf("pubkey x: %w", err)
	}
	y, err := hexutil.DecodeBig(r.PubkeyCoordinates.Y)
	if err != nil {
		return nil, fmt.Errorf("pubkey y: %w", err)
	}
	return &credential.Credential{ID: r.PubkeyID, PublicKey: types.PublicKey{X: x, Y: y}}, nil
}

type createRequest struct {
	User struct {
		AccountAddress    string      `json:"account_address"`
		Username          string      `json:"username"`
		PubkeyID          string      `json:"pubkey_id"`
		PubkeyCoordinates Coordinates `json:"pubkey_coordinates"`
	} `json:"user"`
}

type Client struct {
	base string
	http *http.Client
}

func NewClient(endpoint string) *Client {
	return &Client{
		base: strings.TrimSuffix(endpoint, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// Fetch returns the record of account, or nil when the registry has none.
func (c *Client) Fetch(ctx context.Context, account common.Address) (*Record, error) {
	endpoint := c.base + "/users/by_account/" + url.PathEscape(account.Hex())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %v: %w", endpoint, err, types.ErrNetwork)
	}
	defer func() { io.Copy(io.Discard, resp.Body); resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d: %w", endpoint, resp.StatusCode, types.ErrNetwork)
	}
	var record Record
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, fmt.Errorf("decode user record: %w", err)
	}
	return &record, nil
}

func (c *Client) Exists(ctx context.Context, account common.Address) (bool, error) {
	record, err := c.Fetch(ctx, account)
	return record != nil, err
}

// Create registers account with its credential.
func (c *Client) Create(ctx context.Context, account common.Address, cred *credential.Credential) (*Record, error) {
	var body createRequest
	body.User.AccountAddress = account.Hex()
	body.User.Username = account.Hex()
	body.User.PubkeyID = cred.ID
	body.User.PubkeyCoordinates = Coordinates{X: hexBig(cred.PublicKey.X), Y: hexBig(cred.PublicKey.Y)}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	endpoint := c.base + "/users"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %v: %w", endpoint, err, types.ErrNetwork)
	}
	defer func() { io.Copy(io.Discard, resp.Body); resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("POST %s: status %d %s: %w", endpoint, resp.StatusCode, strings.TrimSpace(string(msg)), types.ErrNetwork)
	}
	var record Record
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, fmt.Errorf("decode user record: %w", err)
	}
	return &record, nil
}

func hexBig(v *big.Int) string {
	return hexutil.EncodeBig(types.OrZero(v))
}
