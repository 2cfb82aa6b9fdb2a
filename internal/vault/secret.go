package vault

import "sync"

// Secret carries a plaintext credential from the vault to the caller exactly
// once. The caller owns the value and must Release it when done; Release
// zeroes the backing buffer so the plaintext does not outlive its use.
type Secret struct {
	mu       sync.Mutex
	value    []byte
	released bool
}

// NewSecret wraps an already-minted credential so it rides the same
// release discipline as vault-issued keys.
func NewSecret(value string) *Secret {
	return &Secret{value: []byte(value)}
}

// Value returns the plaintext. After Release it returns the empty string.
func (s *Secret) Value() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return ""
	}
	return string(s.value)
}

// Release wipes the plaintext. Safe to call more than once.
func (s *Secret) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}
	for i := range s.value {
		s.value[i] = 0
	}
	s.value = nil
	s.released = true
}
