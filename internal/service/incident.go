package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dankishon/prtc-mvp-back/internal/metrics"
	"github.com/Dankishon/prtc-mvp-back/internal/models"
	"github.com/Dankishon/prtc-mvp-back/internal/validation"
	"github.com/Dankishon/prtc-mvp-back/internal/webhook"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

//go:generate mockgen -source=incident.go -destination=mocks/mock_incident.go -package=mocks

// IncidentService определяет контракт бизнес-логики жизненного цикла инцидентов
type IncidentService interface {
	CreateIncident(ctx context.Context, companyID, commitment string, detectedAt time.Time) (*models.Incident, error)
	GetIncident(ctx context.Context, id string) (*models.Incident, error)
	ListByCompany(ctx context.Context, companyID string, filter models.StatusFilter) ([]*models.Incident, error)
	CompanySummary(ctx context.Context, companyID string) (*models.CompanySummary, error)

	RequestProof(ctx context.Context, id string, override bool) (*models.Incident, models.Outcome, error)
	Resubmit(ctx context.Context, id string) (*models.Incident, models.Outcome, error)

	HandleEvent(ctx context.Context, ev models.Event) (models.Outcome, error)
	Apply(ctx context.Context, ev models.Event) error
	HandleChainObservation(ctx context.Context, obs models.ChainObservation) error

	CreateCompany(ctx context.Context, company *models.Company) error
	GetCompany(ctx context.Context, id string) (*models.Company, error)
	ListCompanies(ctx context.Context) ([]*models.Company, error)
	AssignWallet(ctx context.Context, companyID, address string) (*models.Company, error)
}

const createIDRetries = 5

type incidentService struct {
	incidents  IncidentRepository
	companies  CompanyRepository
	cache      IncidentCache
	validator  ArtifactValidator
	dispatcher ProofDispatcher
	chain      ChainSubmitter
	scheduler  EventScheduler
	publisher  webhook.WebhookPublisher
	metrics    *metrics.Lifecycle
	cfg        LifecycleConfig
	logger     *logrus.Logger
	now        func() time.Time
}

func NewIncidentService(deps Deps, cfg LifecycleConfig, logger *logrus.Logger) IncidentService {
	if cfg.CASMaxRetries < 1 {
		cfg.CASMaxRetries = 1
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.NewLifecycle(prometheus.NewRegistry())
	}
	return &incidentService{
		incidents:  deps.Incidents,
		companies:  deps.Companies,
		cache:      deps.Cache,
		validator:  deps.Validator,
		dispatcher: deps.Dispatcher,
		chain:      deps.Chain,
		scheduler:  deps.Scheduler,
		publisher:  deps.Publisher,
		metrics:    m,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// CreateIncident регистрирует обнаруженный инцидент в состоянии (need_proof, none)
func (s *incidentService) CreateIncident(ctx context.Context, companyID, commitment string, detectedAt time.Time) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":    "incident",
		"method":     "CreateIncident",
		"company_id": companyID,
	})
	log.Info("Attempting to create a new incident")

	if !validation.ValidateCommitment(commitment) {
		return nil, fmt.Errorf("service: commitment must be 0x-prefixed hex: %w", models.ErrInvalidArgument)
	}
	if _, err := s.companies.GetCompany(ctx, companyID); err != nil {
		log.WithError(err).Warn("Incident reported for unknown company")
		return nil, fmt.Errorf("service: could not create incident: %w", err)
	}
	if detectedAt.IsZero() {
		detectedAt = s.now()
	}

	for try := 1; ; try++ {
		id, err := s.incidents.NextIncidentID(ctx, detectedAt)
		if err != nil {
			log.WithError(err).Error("Failed to allocate incident id")
			return nil, fmt.Errorf("service: could not allocate incident id: %w", err)
		}

		incident := &models.Incident{
			IncidentID:       id,
			CompanyID:        companyID,
			DetectedAt:       detectedAt.UTC(),
			Commitment:       commitment,
			ProofStatus:      models.ProofNeedProof,
			BlockchainStatus: models.ChainNone,
		}
		err = s.incidents.Create(ctx, incident)
		if err == nil {
			log.WithField("incident_id", id).Info("Incident created successfully")
			return incident, nil
		}
		if !errors.Is(err, models.ErrAlreadyExists) || try >= createIDRetries {
			log.WithError(err).Error("Failed to create incident in repository")
			return nil, fmt.Errorf("service: could not create incident: %w", err)
		}
	}
}

// GetIncident получает инцидент по ID; сначала из кэша
func (s *incidentService) GetIncident(ctx context.Context, id string) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "GetIncident",
		"incident_id": id,
	})

	if s.cache != nil {
		cached, err := s.cache.GetIncidentFromCache(ctx, id)
		if err != nil {
			log.WithError(err).Warn("Failed to read incident from cache")
		} else if cached != nil {
			log.Debug("Incident fetched from cache")
			return cached, nil
		}
	}

	incident, err := s.incidents.GetByID(ctx, id)
	if err != nil {
		log.WithError(err).Warn("Failed to get incident from repository")
		return nil, fmt.Errorf("service: could not get incident: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.SetIncidentCache(ctx, incident); err != nil {
			log.WithError(err).Warn("Failed to cache incident")
		}
	}
	return incident, nil
}

// ListByCompany возвращает инциденты компании с необязательным фильтром по статусам
func (s *incidentService) ListByCompany(ctx context.Context, companyID string, filter models.StatusFilter) ([]*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":    "incident",
		"method":     "ListByCompany",
		"company_id": companyID,
	})

	if _, err := s.companies.GetCompany(ctx, companyID); err != nil {
		return nil, fmt.Errorf("service: could not list incidents: %w", err)
	}
	incidents, err := s.incidents.ListByCompany(ctx, companyID, filter)
	if err != nil {
		log.WithError(err).Error("Failed to list incidents from repository")
		return nil, fmt.Errorf("service: could not list incidents: %w", err)
	}

	log.WithField("count", len(incidents)).Info("Incidents listed successfully")
	return incidents, nil
}

// CompanySummary считает инциденты компании по парам статусов
func (s *incidentService) CompanySummary(ctx context.Context, companyID string) (*models.CompanySummary, error) {
	if _, err := s.companies.GetCompany(ctx, companyID); err != nil {
		return nil, fmt.Errorf("service: could not build summary: %w", err)
	}
	counts, err := s.incidents.CountByStatus(ctx, companyID)
	if err != nil {
		s.logger.WithError(err).WithField("company_id", companyID).Error("Failed to count incidents")
		return nil, fmt.Errorf("service: could not build summary: %w", err)
	}

	summary := &models.CompanySummary{CompanyID: companyID, ByStatus: counts}
	for _, c := range counts {
		summary.Total += c.Count
	}
	return summary, nil
}

// RequestProof - команда оператора. override разрешает повторный запрос после отказа
// и замену выполняющегося задания.
func (s *incidentService) RequestProof(ctx context.Context, id string, override bool) (*models.Incident, models.Outcome, error) {
	return s.command(ctx, models.Event{
		Kind:       models.EventRequestProof,
		IncidentID: id,
		Operator:   override,
	})
}

// Resubmit отправляет новую транзакцию для (verified, failed)
func (s *incidentService) Resubmit(ctx context.Context, id string) (*models.Incident, models.Outcome, error) {
	return s.command(ctx, models.Event{
		Kind:       models.EventResubmit,
		IncidentID: id,
		Operator:   true,
	})
}

func (s *incidentService) command(ctx context.Context, ev models.Event) (*models.Incident, models.Outcome, error) {
	outcome, err := s.HandleEvent(ctx, ev)
	if err != nil {
		return nil, outcome, err
	}
	incident, err := s.incidents.GetByID(ctx, ev.IncidentID)
	if err != nil {
		return nil, outcome, fmt.Errorf("service: could not read incident after %s: %w", ev.Kind, err)
	}
	return incident, outcome, nil
}
