package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Dankishon/prtc-mvp-back/internal/models"
)

// MemoryStore - хранилище инцидентов и компаний в памяти с той же семантикой
// compare-and-swap, что и PostgreSQL. Используется в режиме STORE_DRIVER=memory и в тестах.
type MemoryStore struct {
	mu        sync.RWMutex
	incidents map[string]*models.Incident
	companies map[string]*models.Company
	batches   map[string]int
	now       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		incidents: make(map[string]*models.Incident),
		companies: make(map[string]*models.Company),
		batches:   make(map[string]int),
		now:       time.Now,
	}
}

func (s *MemoryStore) Create(_ context.Context, incident *models.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.incidents[incident.IncidentID]; ok {
		return fmt.Errorf("incident %s: %w", incident.IncidentID, models.ErrAlreadyExists)
	}
	if err := incident.CheckInvariants(); err != nil {
		return fmt.Errorf("incident %s: %w", incident.IncidentID, err)
	}
	now := s.now()
	incident.Version = 1
	incident.CreatedAt = now
	incident.UpdatedAt = now
	s.incidents[incident.IncidentID] = incident.Clone()
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (*models.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	incident, ok := s.incidents[id]
	if !ok {
		return nil, fmt.Errorf("incident with id %s: %w", id, models.ErrNotFound)
	}
	return incident.Clone(), nil
}

func (s *MemoryStore) CompareAndSwap(_ context.Context, expectedVersion int64, next *models.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.incidents[next.IncidentID]
	if !ok {
		return fmt.Errorf("incident with id %s: %w", next.IncidentID, models.ErrNotFound)
	}
	if current.Version != expectedVersion {
		return fmt.Errorf("incident %s at version %d: %w", next.IncidentID, expectedVersion, models.ErrVersionConflict)
	}
	// Те же ограничения, что CHECK в таблице incidents
	if err := next.CheckInvariants(); err != nil {
		return fmt.Errorf("incident %s: %w", next.IncidentID, err)
	}

	stored := next.Clone()
	// Неизменяемые поля берутся из сохраненной записи
	stored.CompanyID = current.CompanyID
	stored.DetectedAt = current.DetectedAt
	stored.Commitment = current.Commitment
	stored.CreatedAt = current.CreatedAt
	stored.Version = current.Version + 1
	stored.UpdatedAt = s.now()
	s.incidents[next.IncidentID] = stored

	next.Version = stored.Version
	next.UpdatedAt = stored.UpdatedAt
	return nil
}

func (s *MemoryStore) ListByCompany(_ context.Context, companyID string, filter models.StatusFilter) ([]*models.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	incidents := make([]*models.Incident, 0)
	for _, incident := range s.incidents {
		if incident.CompanyID == companyID && filter.Matches(incident) {
			incidents = append(incidents, incident.Clone())
		}
	}
	sort.Slice(incidents, func(i, j int) bool {
		return incidents[i].IncidentID < incidents[j].IncidentID
	})
	return incidents, nil
}

func (s *MemoryStore) ListByState(_ context.Context, state models.State, limit int) ([]*models.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	incidents := make([]*models.Incident, 0)
	for _, incident := range s.incidents {
		if incident.State() == state {
			incidents = append(incidents, incident.Clone())
		}
	}
	sort.Slice(incidents, func(i, j int) bool {
		return incidents[i].UpdatedAt.Before(incidents[j].UpdatedAt)
	})
	if limit > 0 && len(incidents) > limit {
		incidents = incidents[:limit]
	}
	return incidents, nil
}

func (s *MemoryStore) CountByStatus(_ context.Context, companyID string) ([]models.StatusCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byState := make(map[models.State]int)
	for _, incident := range s.incidents {
		if incident.CompanyID == companyID {
			byState[incident.State()]++
		}
	}
	counts := make([]models.StatusCount, 0, len(byState))
	for state, n := range byState {
		counts = append(counts, models.StatusCount{ProofStatus: state.Proof, BlockchainStatus: state.Chain, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].ProofStatus != counts[j].ProofStatus {
			return counts[i].ProofStatus < counts[j].ProofStatus
		}
		return counts[i].BlockchainStatus < counts[j].BlockchainStatus
	})
	return counts, nil
}

func (s *MemoryStore) NextIncidentID(_ context.Context, detectedAt time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := detectedAt.UTC().Truncate(24 * time.Hour)
	key := batch.Format("20060102")
	s.batches[key]++
	return FormatIncidentID(batch, s.batches[key]), nil
}

func (s *MemoryStore) CreateCompany(_ context.Context, company *models.Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.companies[company.ID]; ok {
		return fmt.Errorf("company %s: %w", company.ID, models.ErrAlreadyExists)
	}
	company.CreatedAt = s.now()
	c := *company
	s.companies[company.ID] = &c
	return nil
}

func (s *MemoryStore) GetCompany(_ context.Context, id string) (*models.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	company, ok := s.companies[id]
	if !ok {
		return nil, fmt.Errorf("company with id %s: %w", id, models.ErrNotFound)
	}
	c := *company
	return &c, nil
}

func (s *MemoryStore) ListCompanies(_ context.Context) ([]*models.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	companies := make([]*models.Company, 0, len(s.companies))
	for _, company := range s.companies {
		c := *company
		companies = append(companies, &c)
	}
	sort.Slice(companies, func(i, j int) bool {
		return companies[i].ID < companies[j].ID
	})
	return companies, nil
}

func (s *MemoryStore) SetWallet(_ context.Context, id, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	company, ok := s.companies[id]
	if !ok {
		return fmt.Errorf("company with id %s: %w", id, models.ErrNotFound)
	}
	company.WalletAddress = models.StringPtr(address)
	return nil
}
