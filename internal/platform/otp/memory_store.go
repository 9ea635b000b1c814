package otp

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	hash          string
	expiresAt     time.Time
	cooldownUntil time.Time
	attempts      int
}

// MemoryStore is a single-process Store for development without Redis.
type MemoryStore struct {
	mu       sync.Mutex
	cfg      Config
	entries  map[string]*memoryEntry
	verified map[string]time.Time
	now      func() time.Time
}

func NewMemoryStore(cfg Config) *MemoryStore {
	return &MemoryStore{
		cfg:      cfg,
		entries:  make(map[string]*memoryEntry),
		verified: make(map[string]time.Time),
		now:      time.Now,
	}
}

func (s *MemoryStore) Issue(_ context.Context, subject, hash string) (Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, ok := s.entries[subject]; ok && now.Before(e.cooldownUntil) {
		return Pending{}, &CooldownError{Remaining: e.cooldownUntil.Sub(now)}
	}

	e := &memoryEntry{
		hash:          hash,
		expiresAt:     now.Add(s.cfg.TTL),
		cooldownUntil: now.Add(s.cfg.Cooldown),
	}
	s.entries[subject] = e
	delete(s.verified, subject)
	return Pending{ExpiresAt: e.expiresAt, ResendAfter: e.cooldownUntil}, nil
}

func (s *MemoryStore) Release(_ context.Context, subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, subject)
	return nil
}

func (s *MemoryStore) Verify(_ context.Context, subject, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.entries[subject]
	if !ok || e.hash == "" || !now.Before(e.expiresAt) {
		return ErrExpired
	}
	if e.attempts >= s.cfg.MaxAttempts {
		return ErrTooManyAttempts
	}
	if Verify(e.hash, code) != nil {
		e.attempts++
		return ErrMismatch
	}

	// Keep the cooldown, drop the code.
	e.hash = ""
	e.attempts = 0
	s.verified[subject] = now.Add(s.cfg.VerifiedTTL)
	return nil
}

func (s *MemoryStore) ConsumeVerified(_ context.Context, subject string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	until, ok := s.verified[subject]
	delete(s.verified, subject)
	return ok && s.now().Before(until), nil
}

func (s *MemoryStore) RestoreVerified(_ context.Context, subject string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verified[subject] = s.now().Add(s.cfg.VerifiedTTL)
	return nil
}
