package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/BrandonDHaskell/Portunus/unit/internal/portunus/types"
)

type cardKey struct {
	card   string
	reader int
}

type CardStore struct {
	mu    sync.RWMutex
	cards map[cardKey]types.CardRecord
}

func NewCardStore(recs ...types.CardRecord) *CardStore {
	s := &CardStore{cards: make(map[cardKey]types.CardRecord)}
	for _, r := range recs {
		s.cards[keyOf(r.CardID, r.ReaderID)] = r
	}
	return s
}

func keyOf(card string, reader int) cardKey {
	return cardKey{card: strings.TrimSpace(card), reader: reader}
}

func (s *CardStore) CheckAccess(_ context.Context, cardID string, readerID int) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.cards[keyOf(cardID, readerID)]
	return ok && r.Allowed && !r.Deleted, nil
}

func (s *CardStore) CardPlan(_ context.Context, cardID string, readerID int) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.cards[keyOf(cardID, readerID)]
	if !ok || r.Deleted {
		return 0, nil
	}
	return r.PlanID, nil
}

func (s *CardStore) GrantAccess(_ context.Context, rec types.CardRecord) error {
	rec.Allowed = true
	s.mu.Lock()
	s.cards[keyOf(rec.CardID, rec.ReaderID)] = rec
	s.mu.Unlock()
	return nil
}

func (s *CardStore) RemoveAccess(_ context.Context, cardID string, readerID int) error {
	s.mu.Lock()
	delete(s.cards, keyOf(cardID, readerID))
	s.mu.Unlock()
	return nil
}

func (s *CardStore) ReplaceAll(_ context.Context, recs []types.CardRecord) error {
	next := make(map[cardKey]types.CardRecord, len(recs))
	for _, r := range recs {
		next[keyOf(r.CardID, r.ReaderID)] = r
	}
	s.mu.Lock()
	s.cards = next
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored rows. Test-only helper.
func (s *CardStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cards)
}
