package caller

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/bcrypt"
)

const minKeyLength = 16

// ErrInvalidKey is returned when the presented API key does not match.
var ErrInvalidKey = errors.New("invalid api key")

// Service authenticates callers.
type Service struct {
	repo Repository
}

// NewService creates a caller service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// HashKey bcrypt-hashes an API key for registration.
func HashKey(key string, cost int) ([]byte, error) {
	if len(key) < minKeyLength {
		return nil, fmt.Errorf("api key must be at least %d characters", minKeyLength)
	}
	return bcrypt.GenerateFromPassword([]byte(key), cost)
}

// Seed registers pre-hashed credentials, as loaded from configuration.
func (s *Service) Seed(ctx context.Context, hashes map[common.Address]string) error {
	for addr, hash := range hashes {
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return fmt.Errorf("credential for %s: %w", addr.Hex(), err)
		}
		if err := s.repo.Put(ctx, Credential{Address: addr, KeyHash: []byte(hash)}); err != nil {
			return err
		}
	}
	return nil
}

// Register hashes key and stores it for addr.
func (s *Service) Register(ctx context.Context, addr common.Address, key string, cost int) error {
	hash, err := HashKey(key, cost)
	if err != nil {
		return err
	}
	return s.repo.Put(ctx, Credential{Address: addr, KeyHash: hash})
}

// Authenticate checks key against the credential registered for addr.
func (s *Service) Authenticate(ctx context.Context, addr common.Address, key string) error {
	cred, err := s.repo.Get(ctx, addr)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword(cred.KeyHash, []byte(key)); err != nil {
		return ErrInvalidKey
	}
	return nil
}
