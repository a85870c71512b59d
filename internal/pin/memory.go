package pin

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"sync"
)

// MemoryPinner is a Pinner for tests. CIDs are derived from the content so
// identical uploads pin to identical addresses.
type MemoryPinner struct {
	mu      sync.Mutex
	pinned  map[string][]byte
	failErr error
}

// NewMemoryPinner instantiates an empty MemoryPinner.
func NewMemoryPinner() *MemoryPinner {
	return &MemoryPinner{pinned: make(map[string][]byte)}
}

// WithError makes subsequent Pin calls fail with err.
func (m *MemoryPinner) WithError(err error) *MemoryPinner {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
	return m
}

func (m *MemoryPinner) Pin(_ context.Context, category Category, _ string, content io.Reader, size int64) (Pinned, error) {
	if err := CheckSize(category, size); err != nil {
		return Pinned{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return Pinned{}, m.failErr
	}

	payload, err := io.ReadAll(content)
	if err != nil {
		return Pinned{}, err
	}

	sum := sha256.Sum256(payload)
	cid := "bafy" + hex.EncodeToString(sum[:8])
	m.pinned[cid] = payload

	return Pinned{
		CID:  cid,
		URL:  "memory://" + cid,
		Size: int64(len(payload)),
	}, nil
}

// Stored returns the bytes pinned at the given CID.
func (m *MemoryPinner) Stored(cid string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payload, ok := m.pinned[cid]
	return payload, ok
}
