package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Dankishon/prtc-mvp-back/internal/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

func (s *incidentService) CreateCompany(ctx context.Context, company *models.Company) error {
	log := s.logger.WithFields(logrus.Fields{
		"service":    "company",
		"method":     "CreateCompany",
		"company_id": company.ID,
	})

	if strings.TrimSpace(company.ID) == "" || strings.TrimSpace(company.Name) == "" {
		return fmt.Errorf("service: company id and name are required: %w", models.ErrInvalidArgument)
	}
	if company.WalletAddress != nil {
		if !common.IsHexAddress(*company.WalletAddress) {
			return fmt.Errorf("service: wallet is not an EVM address: %w", models.ErrInvalidArgument)
		}
		company.WalletAddress = models.StringPtr(common.HexToAddress(*company.WalletAddress).Hex())
	}
	if company.CreatedAt.IsZero() {
		company.CreatedAt = s.now().UTC()
	}

	if err := s.companies.CreateCompany(ctx, company); err != nil {
		log.WithError(err).Error("Failed to create company in repository")
		return fmt.Errorf("service: could not create company: %w", err)
	}
	log.Info("Company created successfully")
	return nil
}

func (s *incidentService) GetCompany(ctx context.Context, id string) (*models.Company, error) {
	company, err := s.companies.GetCompany(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service: could not get company: %w", err)
	}
	return company, nil
}

func (s *incidentService) ListCompanies(ctx context.Context) ([]*models.Company, error) {
	companies, err := s.companies.ListCompanies(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list companies from repository")
		return nil, fmt.Errorf("service: could not list companies: %w", err)
	}
	return companies, nil
}

// AssignWallet - единственное изменяемое поле компании. Адрес хранится в checksum-форме.
func (s *incidentService) AssignWallet(ctx context.Context, companyID, address string) (*models.Company, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":    "company",
		"method":     "AssignWallet",
		"company_id": companyID,
	})

	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("service: wallet is not an EVM address: %w", models.ErrInvalidArgument)
	}
	checksum := common.HexToAddress(address).Hex()

	if err := s.companies.SetWallet(ctx, companyID, checksum); err != nil {
		log.WithError(err).Warn("Failed to assign wallet")
		return nil, fmt.Errorf("service: could not assign wallet: %w", err)
	}
	log.WithField("wallet", checksum).Info("Wallet assigned")
	return s.GetCompany(ctx, companyID)
}
