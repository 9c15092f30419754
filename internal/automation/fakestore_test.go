package automation

import (
	"context"
	"errors"
	"sync"
	"time"

	"whatsapp-group-automation/internal/models"
)

var errStoreDown = errors.New("store unavailable")

// memStore keeps everything in memory and enforces dedupe keys the way the
// unique index does.
type memStore struct {
	mu        sync.Mutex
	rules     []models.AutomationRule
	collected []models.CollectedData
	logs      []models.AutomationLog
	keys      map[string]bool
	nextID    uint

	rulesErr  error
	insertErr error
	writes    int
}

func newMemStore(rules ...models.AutomationRule) *memStore {
	return &memStore{rules: rules, keys: map[string]bool{}}
}

func (s *memStore) ActiveRules(_ context.Context, companyID string, _ time.Time) ([]models.AutomationRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rulesErr != nil {
		return nil, s.rulesErr
	}
	var out []models.AutomationRule
	for _, r := range s.rules {
		if r.CompanyID == companyID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) InsertCollected(_ context.Context, datum *models.CollectedData) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return false, s.insertErr
	}
	if datum.DedupeKey != nil {
		if s.keys[*datum.DedupeKey] {
			return false, nil
		}
		s.keys[*datum.DedupeKey] = true
	}
	s.nextID++
	datum.ID = s.nextID
	s.collected = append(s.collected, *datum)
	s.writes++
	return true, nil
}

func (s *memStore) FindCollected(_ context.Context, ruleID, participantJID string) (*models.CollectedData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.collected {
		if s.collected[i].RuleID == ruleID && s.collected[i].ParticipantJID == participantJID {
			d := s.collected[i]
			return &d, nil
		}
	}
	return nil, nil
}

func (s *memStore) ListCollected(_ context.Context, ruleID string) ([]models.CollectedData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.CollectedData
	for _, d := range s.collected {
		if d.RuleID == ruleID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *memStore) LogExecution(_ context.Context, entry *models.AutomationLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, *entry)
	s.writes++
	return nil
}

func (s *memStore) collectedFor(ruleID string) []models.CollectedData {
	data, _ := s.ListCollected(context.Background(), ruleID)
	return data
}
