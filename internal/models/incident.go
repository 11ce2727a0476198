package models

import (
	"fmt"
	"time"
)

// ProofStatus - стадия off-chain жизненного цикла доказательства
type ProofStatus string

const (
	ProofNeedProof   ProofStatus = "need_proof"
	ProofGenerating  ProofStatus = "generating"
	ProofVerified    ProofStatus = "verified"
	ProofNotVerified ProofStatus = "not_verified"
)

// Valid сообщает, является ли значение допустимым статусом
func (s ProofStatus) Valid() bool {
	switch s {
	case ProofNeedProof, ProofGenerating, ProofVerified, ProofNotVerified:
		return true
	}
	return false
}

// BlockchainStatus - стадия on-chain жизненного цикла транзакции
type BlockchainStatus string

const (
	ChainNone      BlockchainStatus = "none"
	ChainPending   BlockchainStatus = "pending"
	ChainConfirmed BlockchainStatus = "confirmed"
	ChainFailed    BlockchainStatus = "failed"
)

func (s BlockchainStatus) Valid() bool {
	switch s {
	case ChainNone, ChainPending, ChainConfirmed, ChainFailed:
		return true
	}
	return false
}

// State - пара статусов, которой управляет машина состояний
type State struct {
	Proof ProofStatus
	Chain BlockchainStatus
}

func (s State) String() string {
	return fmt.Sprintf("(%s, %s)", s.Proof, s.Chain)
}

// Incident - центральная сущность: инцидент и снимок его машины состояний
type Incident struct {
	IncidentID         string           `json:"incident_id"`
	CompanyID          string           `json:"company_id"`
	DetectedAt         time.Time        `json:"detected_at"`
	Commitment         string           `json:"commitment"`
	ProofStatus        ProofStatus      `json:"proof_status"`
	BlockchainStatus   BlockchainStatus `json:"blockchain_status"`
	TransactionHash    *string          `json:"transaction_hash"`
	ProofHash          *string          `json:"proof_hash"`
	PublicInputs       []string         `json:"public_inputs"`
	ProofJobID         *string          `json:"proof_job_id,omitempty"`
	ProofAttempts      int              `json:"proof_attempts"`
	SubmissionAttempts int              `json:"submission_attempts"`
	LastError          *string          `json:"last_error,omitempty"`
	Version            int64            `json:"version"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// State возвращает текущую пару статусов инцидента
func (i *Incident) State() State {
	return State{Proof: i.ProofStatus, Chain: i.BlockchainStatus}
}

// Clone возвращает глубокую копию инцидента
func (i *Incident) Clone() *Incident {
	c := *i
	c.TransactionHash = cloneString(i.TransactionHash)
	c.ProofHash = cloneString(i.ProofHash)
	c.ProofJobID = cloneString(i.ProofJobID)
	c.LastError = cloneString(i.LastError)
	if i.PublicInputs != nil {
		c.PublicInputs = append([]string(nil), i.PublicInputs...)
	}
	return &c
}

// CheckInvariants проверяет инварианты, которые должны выполняться в любой наблюдаемый момент.
// Ни одно состояние, нарушающее их, не записывается в хранилище.
func (i *Incident) CheckInvariants() error {
	if !i.ProofStatus.Valid() {
		return fmt.Errorf("%w: unknown proof_status %q", ErrInvariantViolation, i.ProofStatus)
	}
	if !i.BlockchainStatus.Valid() {
		return fmt.Errorf("%w: unknown blockchain_status %q", ErrInvariantViolation, i.BlockchainStatus)
	}
	if i.ProofHash != nil && i.ProofStatus != ProofVerified && i.ProofStatus != ProofNotVerified {
		return fmt.Errorf("%w: proof_hash set while proof_status is %s", ErrInvariantViolation, i.ProofStatus)
	}
	if i.ProofStatus == ProofVerified && i.ProofHash == nil {
		return fmt.Errorf("%w: verified without proof_hash", ErrInvariantViolation)
	}
	if (i.TransactionHash != nil) != (i.BlockchainStatus != ChainNone) {
		return fmt.Errorf("%w: transaction_hash presence does not match blockchain_status %s", ErrInvariantViolation, i.BlockchainStatus)
	}
	if i.BlockchainStatus == ChainConfirmed && i.ProofHash == nil {
		return fmt.Errorf("%w: confirmed without proof_hash", ErrInvariantViolation)
	}
	if i.ProofStatus == ProofVerified && i.BlockchainStatus == ChainNone {
		return fmt.Errorf("%w: verified proof was never submitted", ErrInvariantViolation)
	}
	if (i.PublicInputs != nil) != (i.ProofHash != nil) {
		return fmt.Errorf("%w: public_inputs presence does not match proof_hash", ErrInvariantViolation)
	}
	if i.PublicInputs != nil && len(i.PublicInputs) == 0 {
		return fmt.Errorf("%w: public_inputs present but empty", ErrInvariantViolation)
	}
	return nil
}

// StatusFilter - необязательный фильтр по статусам для отчетных выборок
type StatusFilter struct {
	ProofStatus      *ProofStatus
	BlockchainStatus *BlockchainStatus
}

// Matches сообщает, подходит ли инцидент под фильтр
func (f StatusFilter) Matches(i *Incident) bool {
	if f.ProofStatus != nil && *f.ProofStatus != i.ProofStatus {
		return false
	}
	if f.BlockchainStatus != nil && *f.BlockchainStatus != i.BlockchainStatus {
		return false
	}
	return true
}

// StatusCount - количество инцидентов компании в одном состоянии
type StatusCount struct {
	ProofStatus      ProofStatus      `json:"proof_status"`
	BlockchainStatus BlockchainStatus `json:"blockchain_status"`
	Count            int              `json:"count"`
}

// StringPtr - вспомогательная функция для nullable полей
func StringPtr(s string) *string {
	return &s
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
