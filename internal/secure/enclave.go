package secure

import (
	"sync"

	"github.com/awnumar/memguard"
)

// SecureBuffer holds one sealed value. Empty values are kept without an
// enclave because memguard refuses zero-length enclaves.
type SecureBuffer struct {
	mu        sync.RWMutex
	enclave   *memguard.Enclave
	empty     bool
	destroyed bool
}

// NewSecureBuffer seals data. memguard wipes data while sealing it, so the
// caller must not reuse the slice.
func NewSecureBuffer(data []byte) (*SecureBuffer, error) {
	if len(data) == 0 {
		return &SecureBuffer{empty: true}, nil
	}
	return &SecureBuffer{enclave: memguard.NewEnclave(data)}, nil
}

// Open decrypts the value into a locked buffer. The caller must Destroy
// the returned buffer. A destroyed or empty SecureBuffer opens to an empty
// buffer.
func (s *SecureBuffer) Open() (*memguard.LockedBuffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.destroyed || s.empty || s.enclave == nil {
		return memguard.NewBufferFromBytes([]byte{}), nil
	}
	return s.enclave.Open()
}

// Destroy drops the enclave. Further opens return an empty buffer.
// Calling it twice is safe.
func (s *SecureBuffer) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enclave = nil
	s.destroyed = true
}
