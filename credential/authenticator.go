package credential

import (
	"bufio"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"
	"sync"

	"github.com/celer-network/go-multichain/log"
	"github.com/celer-network/go-multichain/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

const (
	DefaultRPID = "localhost"

	pemTypeKey = "EC PRIVATE KEY"
)

var p256HalfOrder = new(big.Int).Rsh(elliptic.P256().Params().N, 1)

// Confirm asks the user to approve signing challenge. It returns false when declined.
type Confirm func(ctx context.Context, challenge common.Hash) (bool, error)

// Authenticator is a P-256 platform authenticator held in process. It produces the same
// assertions a browser passkey would for the configured relying party.
type Authenticator struct {
	rpID    string
	origin  string
	keyFile string
	confirm Confirm

	lock      sync.Mutex
	key       *ecdsa.PrivateKey
	id        string
	signCount uint32
	logger    *log.Logger
}

var _ Provider = (*Authenticator)(nil)

func newAuthenticator(rpID string, confirm Confirm) *Authenticator {
	if rpID == "" {
		rpID = DefaultRPID
	}
	return &Authenticator{
		rpID:    rpID,
		origin:  "https://" + rpID,
		confirm: confirm,
		logger:  log.NewLogger("credential"),
	}
}

// NewSoftwareAuthenticator holds a fresh key in memory and signs without prompting.
func NewSoftwareAuthenticator() (*Authenticator, error) {
	a := newAuthenticator(DefaultRPID, nil)
	if _, err := a.CreateCredential(context.Background(), CreateParams{RPID: DefaultRPID}); err != nil {
		return nil, err
	}
	return a, nil
}

// LoadLocalAuthenticator reads the key from keyFile, if it exists, and confirms every
// signature with the user on in/out. A missing key file is created by CreateCredential.
func LoadLocalAuthenticator(keyFile, rpID string, in io.Reader, out io.Writer) (*Authenticator, error) {
	a := newAuthenticator(rpID, PromptConfirm(in, out))
	a.keyFile = keyFile
	raw, err := os.ReadFile(keyFile)
	if os.IsNotExist(err) {
		return a, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	block, _ := pem.Decode(raw)
	if block == nil || block.Type != pemTypeKey {
		return nil, fmt.Errorf("key file %s: no %s block", keyFile, pemTypeKey)
	}
	key, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("key file %s: %w", keyFile, err)
	}
	if key.Curve != elliptic.P256() {
		return nil, fmt.Errorf("key file %s: not a P-256 key", keyFile)
	}
	a.key = key
	a.id = block.Headers["Credential-Id"]
	return a, nil
}

// PromptConfirm writes the challenge to out and reads a y/N answer from in. One goroutine
// reads in for all prompts, so an answer typed after a cancelled prompt goes to the next one.
func PromptConfirm(in io.Reader, out io.Writer) Confirm {
	var once sync.Once
	lines := make(chan string)
	readLines := func() {
		go func() {
			defer close(lines)
			scanner := bufio.NewScanner(in)
			for scanner.Scan() {
				lines <- strings.ToLower(strings.TrimSpace(scanner.Text()))
			}
		}()
	}
	return func(ctx context.Context, challenge common.Hash) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		once.Do(readLines)
		fmt.Fprintf(out, "Sign challenge %s? [y/N]: ", challenge.Hex())
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case answer, ok := <-lines:
			if !ok {
				return false, nil
			}
			return answer == "y" || answer == "yes", nil
		}
	}
}

// Credential returns the loaded credential, or nil before one was created.
func (a *Authenticator) Credential() *Credential {
	a.lock.Lock()
	defer a.lock.Unlock()
	if a.key == nil {
		return nil
	}
	return &Credential{
		ID:        a.id,
		PublicKey: types.PublicKey{X: new(big.Int).Set(a.key.X), Y: new(big.Int).Set(a.key.Y)},
	}
}

// SignCount is the number of assertions produced so far.
func (a *Authenticator) SignCount() uint32 {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.signCount
}

func (a *Authenticator) CreateCredential(ctx context.Context, params CreateParams) (*Credential, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate P-256 key: %w", err)
	}
	id := uuid.NewString()
	if a.keyFile != "" {
		if err := writeKeyFile(a.keyFile, key, id); err != nil {
			return nil, err
		}
	}
	a.lock.Lock()
	a.key = key
	a.id = id
	a.signCount = 0
	if params.RPID != "" {
		a.rpID = params.RPID
		a.origin = "https://" + params.RPID
	}
	a.lock.Unlock()
	a.logger.Info().Str("credentialId", id).Str("rpId", a.rpID).Msg("credential created")
	return a.Credential(), nil
}

func writeKeyFile(path string, key *ecdsa.PrivateKey, id string) error {
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return fmt.Errorf("marshal key: %w", err)
	}
	block := &pem.Block{Type: pemTypeKey, Headers: map[string]string{"Credential-Id": id}, Bytes: der}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0o600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	return nil
}

func (a *Authenticator) Sign(ctx context.Context, challenge common.Hash) (*Signature, *Metadata, error) {
	if a.confirm != nil {
		ok, err := a.confirm(ctx, challenge)
		if err != nil {
			return nil, nil, fmt.Errorf("confirm: %v: %w", err, types.ErrUserCancelled)
		}
		if !ok {
			return nil, nil, types.ErrUserCancelled
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("%v: %w", err, types.ErrUserCancelled)
	}

	a.lock.Lock()
	defer a.lock.Unlock()
	if a.key == nil {
		return nil, nil, fmt.Errorf("no credential: %w", types.ErrConfig)
	}
	a.signCount++
	meta := &Metadata{
		AuthenticatorData: AuthenticatorData(a.rpID, a.signCount),
		ClientDataJSON:    ClientDataJSON(challenge, fmt.Sprintf(`"origin":%q,"crossOrigin":false`, a.origin)),
	}
	digest := SigningMessage(meta.AuthenticatorData, meta.ClientDataJSON)
	r, s, err := ecdsa.Sign(rand.Reader, a.key, digest[:])
	if err != nil {
		return nil, nil, fmt.Errorf("sign: %w", err)
	}
	// verifiers reject the high-s form
	if s.Cmp(p256HalfOrder) > 0 {
		s = new(big.Int).Sub(a.key.Curve.Params().N, s)
	}
	a.logger.Debug().Str("challenge", challenge.Hex()).Uint32("signCount", a.signCount).Msg("challenge signed")
	return &Signature{R: r, S: s}, meta, nil
}
