// Package signing provides the signature provider used for outbound commands.
package signing

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/resident-x/go-csms/internal/command"
)

// Algorithm is the algorithm name written into signatures.
const Algorithm = "Ed25519"

// ErrUnknownKey is returned when a sign info names a key that is neither supplied nor registered.
var ErrUnknownKey = errors.New("unknown signing key")

// Ed25519Signer signs serialized command payloads. Keys are either passed per call or
// registered up front.
type Ed25519Signer struct {
	mu     sync.RWMutex
	keys   map[string]ed25519.PrivateKey
	logger zerolog.Logger
}

// NewEd25519Signer creates a signer without registered keys.
func NewEd25519Signer() *Ed25519Signer {
	return &Ed25519Signer{
		keys:   make(map[string]ed25519.PrivateKey),
		logger: log.With().Str("component", "signing").Logger(),
	}
}

// Register stores a key under id. Secret may be a 32 byte seed or a 64 byte private key.
func (s *Ed25519Signer) Register(id string, secret []byte) error {
	key, err := privateKey(secret)
	if err != nil {
		return fmt.Errorf("key %s: %w", id, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[id] = key
	return nil
}

// PublicKey returns the public half of a registered key.
func (s *Ed25519Signer) PublicKey(id string) (ed25519.PublicKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.keys[id]
	if !ok {
		return nil, false
	}
	return key.Public().(ed25519.PublicKey), true
}

// Sign signs payload once per sign info, or once per supplied key when no infos are given.
func (s *Ed25519Signer) Sign(ctx context.Context, payload []byte, keys []command.SignKey, infos []command.SignInfo) ([]command.Signature, error) {
	supplied := make(map[string]ed25519.PrivateKey, len(keys))
	for _, k := range keys {
		key, err := privateKey(k.Secret)
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", k.ID, err)
		}
		supplied[k.ID] = key
	}

	if len(infos) == 0 {
		for _, k := range keys {
			infos = append(infos, command.SignInfo{KeyID: k.ID})
		}
	}

	sigs := make([]command.Signature, 0, len(infos))
	for _, info := range infos {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		key, ok := supplied[info.KeyID]
		if !ok {
			key, ok = s.lookup(info.KeyID)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownKey, info.KeyID)
		}

		sigs = append(sigs, command.Signature{
			KeyID:     info.KeyID,
			Algorithm: Algorithm,
			Purpose:   info.Purpose,
			Value:     base64.StdEncoding.EncodeToString(ed25519.Sign(key, payload)),
		})
	}

	s.logger.Debug().Int("signatures", len(sigs)).Msg("Signed payload")
	return sigs, nil
}

// Verify checks a signature produced by Sign against a public key.
func Verify(pub ed25519.PublicKey, payload []byte, sig command.Signature) bool {
	if sig.Algorithm != Algorithm {
		return false
	}
	raw, err := base64.StdEncoding.DecodeString(sig.Value)
	if err != nil {
		return false
	}
	return ed25519.Verify(pub, payload, raw)
}

func (s *Ed25519Signer) lookup(id string) (ed25519.PrivateKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.keys[id]
	return key, ok
}

func privateKey(secret []byte) (ed25519.PrivateKey, error) {
	switch len(secret) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(secret), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(secret), nil
	default:
		return nil, fmt.Errorf("invalid key length %d", len(secret))
	}
}
