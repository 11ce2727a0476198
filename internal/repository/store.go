package repository

import "github.com/jackc/pgx/v5/pgxpool"

// PostgresStore объединяет репозитории инцидентов и компаний над одним пулом
type PostgresStore struct {
	*IncidentRepository
	*CompanyRepository
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{
		IncidentRepository: NewIncidentRepository(db),
		CompanyRepository:  NewCompanyRepository(db),
	}
}
