package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dankishon/prtc-mvp-back/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CompanyRepository struct {
	db *pgxpool.Pool
}

func NewCompanyRepository(db *pgxpool.Pool) *CompanyRepository {
	return &CompanyRepository{db: db}
}

// CreateCompany создает компанию
func (r *CompanyRepository) CreateCompany(ctx context.Context, company *models.Company) error {
	query := `
		INSERT INTO companies (id, name, wallet_address)
		VALUES ($1, $2, $3) RETURNING created_at;
	`
	err := r.db.QueryRow(ctx, query, company.ID, company.Name, company.WalletAddress).Scan(&company.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return fmt.Errorf("company %s: %w", company.ID, models.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create company: %w", err)
	}
	return nil
}

// GetCompany возвращает компанию по идентификатору
func (r *CompanyRepository) GetCompany(ctx context.Context, id string) (*models.Company, error) {
	company := &models.Company{}
	query := `SELECT id, name, wallet_address, created_at FROM companies WHERE id = $1;`
	err := r.db.QueryRow(ctx, query, id).Scan(&company.ID, &company.Name, &company.WalletAddress, &company.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("company with id %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return company, nil
}

// ListCompanies возвращает все компании
func (r *CompanyRepository) ListCompanies(ctx context.Context) ([]*models.Company, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, wallet_address, created_at FROM companies ORDER BY id;`)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	defer rows.Close()

	companies := make([]*models.Company, 0)
	for rows.Next() {
		company := &models.Company{}
		if err := rows.Scan(&company.ID, &company.Name, &company.WalletAddress, &company.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan company row: %w", err)
		}
		companies = append(companies, company)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error list iteration: %w", err)
	}
	return companies, nil
}

// SetWallet назначает кошелек компании - единственное изменяемое поле
func (r *CompanyRepository) SetWallet(ctx context.Context, id, address string) error {
	cmdTag, err := r.db.Exec(ctx, `UPDATE companies SET wallet_address = $1 WHERE id = $2;`, address, id)
	if err != nil {
		return fmt.Errorf("failed to set company wallet: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("company with id %s: %w", id, models.ErrNotFound)
	}
	return nil
}
