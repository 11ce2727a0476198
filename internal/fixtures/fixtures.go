// Package fixtures загружает демонстрационные компании и инциденты.
// Машина состояний от него не зависит: данные пишутся напрямую в хранилище.
package fixtures

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dankishon/prtc-mvp-back/internal/models"
	"github.com/Dankishon/prtc-mvp-back/internal/validation"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
)

// Store - операции хранилища, нужные загрузчику
type Store interface {
	Create(ctx context.Context, incident *models.Incident) error
	NextIncidentID(ctx context.Context, detectedAt time.Time) (string, error)
	ListByCompany(ctx context.Context, companyID string, filter models.StatusFilter) ([]*models.Incident, error)
	CreateCompany(ctx context.Context, company *models.Company) error
}

// IncidentRow - строка исходных данных в том виде, в каком ее завела демо-система
type IncidentRow struct {
	CompanyID        string
	Commitment       string
	ProofStatus      models.ProofStatus
	BlockchainStatus models.BlockchainStatus
	TransactionHash  string
	ProofHash        string
	PublicInputs     []string
}

// BatchDate - дата обнаружения всех демо-инцидентов
var BatchDate = time.Date(2025, time.November, 23, 0, 0, 0, 0, time.UTC)

var Companies = []models.Company{
	{ID: "techflow", Name: "TechFlow Analytics"},
	{ID: "cloudsync", Name: "CloudSync Ltd."},
	{ID: "rideshare", Name: "RideShare Mobility"},
	{ID: "contenthub", Name: "ContentHub Media"},
	{ID: "webspace", Name: "WebSpace Hosting"},
}

var demoInputs = []string{"0x01", "0x02"}

var Incidents = []IncidentRow{
	{CompanyID: "techflow", Commitment: "0xabc1230001", ProofStatus: models.ProofNeedProof, BlockchainStatus: models.ChainNone},
	{CompanyID: "techflow", Commitment: "0xabc1230002", ProofStatus: models.ProofGenerating, BlockchainStatus: models.ChainPending},
	{CompanyID: "techflow", Commitment: "0xabc1230003", ProofStatus: models.ProofVerified, BlockchainStatus: models.ChainConfirmed,
		TransactionHash: "0xtxhash0003", ProofHash: "0xproofhash0003", PublicInputs: demoInputs},
	{CompanyID: "techflow", Commitment: "0xabc1230004", ProofStatus: models.ProofNotVerified, BlockchainStatus: models.ChainPending,
		TransactionHash: "0xtxhash0004", ProofHash: "0xproofhash0004", PublicInputs: demoInputs},
	{CompanyID: "cloudsync", Commitment: "0xabc1230010", ProofStatus: models.ProofNeedProof, BlockchainStatus: models.ChainNone},
	{CompanyID: "cloudsync", Commitment: "0xabc1230011", ProofStatus: models.ProofVerified, BlockchainStatus: models.ChainConfirmed,
		TransactionHash: "0xtxhash0011", ProofHash: "0xproofhash0011", PublicInputs: demoInputs},
	{CompanyID: "contenthub", Commitment: "0xabc1230020", ProofStatus: models.ProofNeedProof, BlockchainStatus: models.ChainNone},
	{CompanyID: "contenthub", Commitment: "0xabc1230021", ProofStatus: models.ProofNotVerified, BlockchainStatus: models.ChainPending,
		TransactionHash: "0xtxhash0021", ProofHash: "0xproofhash0021", PublicInputs: demoInputs},
	{CompanyID: "contenthub", Commitment: "0xabc1230022", ProofStatus: models.ProofVerified, BlockchainStatus: models.ChainConfirmed,
		TransactionHash: "0xtxhash0022", ProofHash: "0xproofhash0022", PublicInputs: demoInputs},
	{CompanyID: "webspace", Commitment: "0xabc1230030", ProofStatus: models.ProofNeedProof, BlockchainStatus: models.ChainNone},
}

// Result - итог загрузки
type Result struct {
	Companies int
	Incidents int
	Rejected  int
}

// Normalize приводит строку к виду, допустимому инвариантами. Хэши, не являющиеся
// 32-байтовым hex, заменяются детерминированным keccak256 от исходной строки.
// Неподтвержденное доказательство никогда не отправлялось в сеть.
func Normalize(row IncidentRow) (*models.Incident, error) {
	incident := &models.Incident{
		CompanyID:        row.CompanyID,
		DetectedAt:       BatchDate,
		Commitment:       row.Commitment,
		ProofStatus:      row.ProofStatus,
		BlockchainStatus: row.BlockchainStatus,
	}
	if !validation.ValidateCommitment(row.Commitment) {
		return nil, fmt.Errorf("%w: malformed commitment %q", models.ErrInvalidArgument, row.Commitment)
	}
	if row.ProofHash != "" {
		incident.ProofHash = models.StringPtr(fixedHash(row.ProofHash))
		incident.PublicInputs = append([]string(nil), row.PublicInputs...)
	}
	if row.TransactionHash != "" {
		incident.TransactionHash = models.StringPtr(fixedHash(row.TransactionHash))
	}
	if incident.ProofStatus == models.ProofNotVerified {
		incident.BlockchainStatus = models.ChainNone
		incident.TransactionHash = nil
	}
	if incident.TransactionHash != nil {
		incident.SubmissionAttempts = 1
	}
	if err := incident.CheckInvariants(); err != nil {
		return nil, err
	}
	return incident, nil
}

func fixedHash(s string) string {
	if validation.ValidateTransaction(s) {
		return s
	}
	return crypto.Keccak256Hash([]byte(s)).Hex()
}

// Seed создает отсутствующие компании и инциденты компаний, у которых их еще нет
func Seed(ctx context.Context, store Store, logger *logrus.Logger) (Result, error) {
	var res Result
	for _, c := range Companies {
		company := c
		company.CreatedAt = time.Now().UTC()
		err := store.CreateCompany(ctx, &company)
		switch {
		case err == nil:
			res.Companies++
		case errors.Is(err, models.ErrAlreadyExists):
		default:
			return res, fmt.Errorf("seed company %s: %w", c.ID, err)
		}
	}

	seeded := make(map[string]bool)
	for _, c := range Companies {
		existing, err := store.ListByCompany(ctx, c.ID, models.StatusFilter{})
		if err != nil {
			return res, fmt.Errorf("list incidents of %s: %w", c.ID, err)
		}
		seeded[c.ID] = len(existing) > 0
	}

	for _, row := range Incidents {
		if seeded[row.CompanyID] {
			continue
		}
		incident, err := Normalize(row)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"company_id": row.CompanyID,
				"commitment": row.Commitment,
				"error":      err,
			}).Warn("Fixture incident rejected")
			res.Rejected++
			continue
		}
		id, err := store.NextIncidentID(ctx, incident.DetectedAt)
		if err != nil {
			return res, err
		}
		incident.IncidentID = id
		if err := store.Create(ctx, incident); err != nil {
			return res, fmt.Errorf("seed incident %s: %w", id, err)
		}
		res.Incidents++
	}

	logger.WithFields(logrus.Fields{
		"companies": res.Companies,
		"incidents": res.Incidents,
		"rejected":  res.Rejected,
	}).Info("Fixtures loaded")
	return res, nil
}
