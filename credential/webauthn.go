package credential

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"

	"github.com/celer-network/go-multichain/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/minio/sha256-simd"
)

const (
	clientDataPrefix = `{"type":"webauthn.get","challenge":"`

	flagUserPresent  byte = 0x01
	flagUserVerified byte = 0x04
)

var (
	ErrClientData = errors.New("invalid clientDataJSON format: challenge not found")

	clientDataPattern = regexp.MustCompile(`^\{"type":"webauthn.get","challenge":"[A-Za-z0-9\-_]{43}",(.*)\}$`)
)

// EncodeChallenge is the base64url form of challenge used in clientDataJSON.
func EncodeChallenge(challenge common.Hash) string {
	return base64.RawURLEncoding.EncodeToString(challenge.Bytes())
}

// ClientDataJSON rebuilds the clientDataJSON a verifier hashes from the challenge and the
// fields that followed it.
func ClientDataJSON(challenge common.Hash, fields string) string {
	return clientDataPrefix + EncodeChallenge(challenge) + `",` + fields + `}`
}

// ParseClientDataFields returns the fields after the challenge, without the leading comma
// and the closing brace.
func ParseClientDataFields(clientDataJSON string) (string, error) {
	m := clientDataPattern.FindStringSubmatch(clientDataJSON)
	if m == nil {
		return "", ErrClientData
	}
	return m[1], nil
}

// ParseChallenge returns the challenge embedded in clientDataJSON.
func ParseChallenge(clientDataJSON string) (common.Hash, error) {
	if !clientDataPattern.MatchString(clientDataJSON) {
		return common.Hash{}, ErrClientData
	}
	encoded := clientDataJSON[len(clientDataPrefix) : len(clientDataPrefix)+43]
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil || len(raw) != common.HashLength {
		return common.Hash{}, fmt.Errorf("%w: bad challenge encoding", ErrClientData)
	}
	return common.BytesToHash(raw), nil
}

// SigningMessage is the digest an authenticator signs:
// sha256(authenticatorData ‖ sha256(clientDataJSON)).
func SigningMessage(authenticatorData []byte, clientDataJSON string) [32]byte {
	clientDataHash := sha256.Sum256([]byte(clientDataJSON))
	msg := make([]byte, 0, len(authenticatorData)+len(clientDataHash))
	msg = append(msg, authenticatorData...)
	msg = append(msg, clientDataHash[:]...)
	return sha256.Sum256(msg)
}

// AuthenticatorData is rpIdHash ‖ flags ‖ signCount with user presence and verification set.
func AuthenticatorData(rpID string, signCount uint32) []byte {
	rpHash := sha256.Sum256([]byte(rpID))
	data := make([]byte, 0, 37)
	data = append(data, rpHash[:]...)
	data = append(data, flagUserPresent|flagUserVerified)
	data = append(data, byte(signCount>>24), byte(signCount>>16), byte(signCount>>8), byte(signCount))
	return data
}

// Verify checks a WebAuthn assertion against the signer's key.
func Verify(signer types.PublicKey, authenticatorData []byte, clientDataJSON string, sig *Signature) bool {
	if signer.IsZero() || sig == nil || sig.R == nil || sig.S == nil {
		return false
	}
	pub := &ecdsa.PublicKey{Curve: elliptic.P256(), X: signer.X, Y: signer.Y}
	if !pub.Curve.IsOnCurve(pub.X, pub.Y) {
		return false
	}
	digest := SigningMessage(authenticatorData, clientDataJSON)
	return ecdsa.Verify(pub, digest[:], sig.R, sig.S)
}
