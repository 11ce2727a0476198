package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dankishon/prtc-mvp-back/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	uniqueViolationCode = "23505"
	checkViolationCode  = "23514"
)

const incidentColumns = `
	incident_id,
	company_id,
	detected_at,
	commitment,
	proof_status,
	blockchain_status,
	transaction_hash,
	proof_hash,
	public_inputs,
	proof_job_id,
	proof_attempts,
	submission_attempts,
	last_error,
	version,
	created_at,
	updated_at`

// IncidentRepository - хранилище инцидентов в PostgreSQL.
// Каждый переход применяется через compare-and-swap по столбцу version.
type IncidentRepository struct {
	db *pgxpool.Pool
}

func NewIncidentRepository(db *pgxpool.Pool) *IncidentRepository {
	return &IncidentRepository{db: db}
}

// Create создает новую запись об инциденте в бд
func (r *IncidentRepository) Create(ctx context.Context, incident *models.Incident) error {
	query := `
		INSERT INTO incidents (
			incident_id, company_id, detected_at, commitment, proof_status, blockchain_status,
			transaction_hash, proof_hash, public_inputs, proof_job_id, proof_attempts,
			submission_attempts, last_error, version
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 1)
		RETURNING version, created_at, updated_at;
	`
	err := r.db.QueryRow(ctx, query,
		incident.IncidentID,
		incident.CompanyID,
		incident.DetectedAt,
		incident.Commitment,
		incident.ProofStatus,
		incident.BlockchainStatus,
		incident.TransactionHash,
		incident.ProofHash,
		incident.PublicInputs,
		incident.ProofJobID,
		incident.ProofAttempts,
		incident.SubmissionAttempts,
		incident.LastError,
	).Scan(&incident.Version, &incident.CreatedAt, &incident.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return fmt.Errorf("incident %s: %w", incident.IncidentID, models.ErrAlreadyExists)
		}
		if errors.As(err, &pgErr) && pgErr.Code == checkViolationCode {
			return fmt.Errorf("incident %s: %s: %w", incident.IncidentID, pgErr.ConstraintName, models.ErrInvariantViolation)
		}
		return fmt.Errorf("failed to create incident: %w", err)
	}
	return nil
}

// GetByID возвращает инцидент по его идентификатору
func (r *IncidentRepository) GetByID(ctx context.Context, id string) (*models.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE incident_id = $1;`

	incident, err := scanIncident(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("incident with id %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get incident by id: %w", err)
	}
	return incident, nil
}

// CompareAndSwap записывает новое состояние, только если версия в бд равна expectedVersion.
// Неизменяемые поля (company_id, detected_at, commitment) не перезаписываются.
func (r *IncidentRepository) CompareAndSwap(ctx context.Context, expectedVersion int64, next *models.Incident) error {
	query := `
		UPDATE incidents SET
			proof_status = $1,
			blockchain_status = $2,
			transaction_hash = $3,
			proof_hash = $4,
			public_inputs = $5,
			proof_job_id = $6,
			proof_attempts = $7,
			submission_attempts = $8,
			last_error = $9,
			version = version + 1,
			updated_at = NOW()
		WHERE incident_id = $10 AND version = $11
		RETURNING version, updated_at;
	`
	err := r.db.QueryRow(ctx, query,
		next.ProofStatus,
		next.BlockchainStatus,
		next.TransactionHash,
		next.ProofHash,
		next.PublicInputs,
		next.ProofJobID,
		next.ProofAttempts,
		next.SubmissionAttempts,
		next.LastError,
		next.IncidentID,
		expectedVersion,
	).Scan(&next.Version, &next.UpdatedAt)
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == checkViolationCode {
		return fmt.Errorf("incident %s: %s: %w", next.IncidentID, pgErr.ConstraintName, models.ErrInvariantViolation)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("failed to swap incident state: %w", err)
	}

	// Ни одна строка не обновлена: инцидента нет или версия устарела
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM incidents WHERE incident_id = $1);`, next.IncidentID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check incident existence: %w", err)
	}
	if !exists {
		return fmt.Errorf("incident with id %s: %w", next.IncidentID, models.ErrNotFound)
	}
	return fmt.Errorf("incident %s at version %d: %w", next.IncidentID, expectedVersion, models.ErrVersionConflict)
}

// ListByCompany возвращает инциденты компании с необязательным фильтром по статусам
func (r *IncidentRepository) ListByCompany(ctx context.Context, companyID string, filter models.StatusFilter) ([]*models.Incident, error) {
	query := `
		SELECT ` + incidentColumns + `
		FROM incidents
		WHERE company_id = $1
			AND ($2::text IS NULL OR proof_status = $2)
			AND ($3::text IS NULL OR blockchain_status = $3)
		ORDER BY incident_id;
	`
	rows, err := r.db.Query(ctx, query, companyID, filter.ProofStatus, filter.BlockchainStatus)
	if err != nil {
		return nil, fmt.Errorf("failed to list incidents by company: %w", err)
	}
	return collectIncidents(rows)
}

// ListByState возвращает инциденты в заданном состоянии, используется фоновыми воркерами
func (r *IncidentRepository) ListByState(ctx context.Context, state models.State, limit int) ([]*models.Incident, error) {
	query := `
		SELECT ` + incidentColumns + `
		FROM incidents
		WHERE proof_status = $1 AND blockchain_status = $2
		ORDER BY updated_at
		LIMIT $3;
	`
	rows, err := r.db.Query(ctx, query, state.Proof, state.Chain, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list incidents by state: %w", err)
	}
	return collectIncidents(rows)
}

// CountByStatus возвращает распределение инцидентов компании по состояниям
func (r *IncidentRepository) CountByStatus(ctx context.Context, companyID string) ([]models.StatusCount, error) {
	query := `
		SELECT proof_status, blockchain_status, COUNT(*)
		FROM incidents
		WHERE company_id = $1
		GROUP BY proof_status, blockchain_status
		ORDER BY proof_status, blockchain_status;
	`
	rows, err := r.db.Query(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to count incidents: %w", err)
	}
	defer rows.Close()

	counts := make([]models.StatusCount, 0)
	for rows.Next() {
		var c models.StatusCount
		if err := rows.Scan(&c.ProofStatus, &c.BlockchainStatus, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error count iteration: %w", err)
	}
	return counts, nil
}

// NextIncidentID выдает следующий идентификатор в пачке обнаружения (дата в UTC).
// Счетчик только растет, поэтому идентификаторы не переиспользуются.
func (r *IncidentRepository) NextIncidentID(ctx context.Context, detectedAt time.Time) (string, error) {
	batch := detectedAt.UTC().Truncate(24 * time.Hour)
	query := `
		INSERT INTO incident_batches (batch_date, last_seq)
		VALUES ($1, 1)
		ON CONFLICT (batch_date) DO UPDATE SET last_seq = incident_batches.last_seq + 1
		RETURNING last_seq;
	`
	var seq int
	if err := r.db.QueryRow(ctx, query, batch).Scan(&seq); err != nil {
		return "", fmt.Errorf("failed to allocate incident id: %w", err)
	}
	return FormatIncidentID(batch, seq), nil
}

// FormatIncidentID форматирует идентификатор как YYYYMMDD-NNNN
func FormatIncidentID(batch time.Time, seq int) string {
	return fmt.Sprintf("%s-%04d", batch.UTC().Format("20060102"), seq)
}

func scanIncident(row pgx.Row) (*models.Incident, error) {
	incident := &models.Incident{}
	err := row.Scan(
		&incident.IncidentID,
		&incident.CompanyID,
		&incident.DetectedAt,
		&incident.Commitment,
		&incident.ProofStatus,
		&incident.BlockchainStatus,
		&incident.TransactionHash,
		&incident.ProofHash,
		&incident.PublicInputs,
		&incident.ProofJobID,
		&incident.ProofAttempts,
		&incident.SubmissionAttempts,
		&incident.LastError,
		&incident.Version,
		&incident.CreatedAt,
		&incident.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return incident, nil
}

func collectIncidents(rows pgx.Rows) ([]*models.Incident, error) {
	defer rows.Close()

	incidents := make([]*models.Incident, 0)
	for rows.Next() {
		incident, err := scanIncident(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan incident row: %w", err)
		}
		incidents = append(incidents, incident)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error list iteration: %w", err)
	}
	return incidents, nil
}
