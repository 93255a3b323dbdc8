package caller

import (
	"context"
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// ErrUnknownCaller is returned when no credential is registered for an address.
var ErrUnknownCaller = errors.New("unknown caller")

// Repository stores caller credentials.
type Repository interface {
	Put(ctx context.Context, cred Credential) error
	Get(ctx context.Context, addr common.Address) (Credential, error)
}

type memoryRepository struct {
	mu    sync.RWMutex
	creds map[common.Address]Credential
}

// NewMemoryRepository builds an in-memory credential store.
func NewMemoryRepository() Repository {
	return &memoryRepository{creds: make(map[common.Address]Credential)}
}

func (r *memoryRepository) Put(_ context.Context, cred Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creds[cred.Address] = cred
	return nil
}

func (r *memoryRepository) Get(_ context.Context, addr common.Address) (Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cred, ok := r.creds[addr]
	if !ok {
		return Credential{}, ErrUnknownCaller
	}
	return cred, nil
}
