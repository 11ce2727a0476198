package v1

import (
	"time"
)

// CreateIncidentRequest DTO для регистрации обнаруженного инцидента
// @Description DTO для регистрации обнаруженного инцидента
type CreateIncidentRequest struct {
	CompanyID  string     `json:"company_id" validate:"required,max=64"`
	Commitment string     `json:"commitment" validate:"required,startswith=0x,hexadecimal,max=66"`
	DetectedAt *time.Time `json:"detected_at,omitempty"`
}

// IncidentResponse DTO для ответа с информацией об инциденте
// @Description DTO для ответа с информацией об инциденте
type IncidentResponse struct {
	IncidentID         string    `json:"incident_id"`
	CompanyID          string    `json:"company_id"`
	DetectedAt         time.Time `json:"detected_at"`
	Commitment         string    `json:"commitment"`
	ProofStatus        string    `json:"proof_status"`
	BlockchainStatus   string    `json:"blockchain_status"`
	TransactionHash    *string   `json:"transaction_hash"`
	ProofHash          *string   `json:"proof_hash"`
	PublicInputs       []string  `json:"public_inputs"`
	ProofAttempts      int       `json:"proof_attempts"`
	SubmissionAttempts int       `json:"submission_attempts"`
	LastError          *string   `json:"last_error,omitempty"`
	Version            int64     `json:"version"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// RequestProofRequest DTO команды запроса доказательства
// @Description override разрешает повторный запрос после отказа и замену выполняющегося задания
type RequestProofRequest struct {
	Override bool `json:"override"`
}

// CommandResponse DTO ответа на команду оператора
// @Description DTO ответа на команду оператора
type CommandResponse struct {
	Outcome  string            `json:"outcome"`
	Incident *IncidentResponse `json:"incident,omitempty"`
}

// CompanyResponse DTO компании
// @Description DTO компании
type CompanyResponse struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	WalletAddress *string   `json:"wallet_address"`
	CreatedAt     time.Time `json:"created_at"`
}

// AssignWalletRequest DTO назначения кошелька компании
// @Description DTO назначения кошелька компании
type AssignWalletRequest struct {
	WalletAddress string `json:"wallet_address" validate:"required,eth_addr"`
}

// StatusCountResponse DTO количества инцидентов в одном состоянии
type StatusCountResponse struct {
	ProofStatus      string `json:"proof_status"`
	BlockchainStatus string `json:"blockchain_status"`
	Count            int    `json:"count"`
}

// SummaryResponse DTO сводки по компании
// @Description DTO сводки по компании
type SummaryResponse struct {
	CompanyID string                `json:"company_id"`
	Total     int                   `json:"total"`
	ByStatus  []StatusCountResponse `json:"by_status"`
}

// ProverWebhookRequest DTO результата сервиса генерации доказательств
// @Description Либо артефакт (proof_hash, public_inputs), либо error
type ProverWebhookRequest struct {
	JobID        string   `json:"job_id" validate:"required"`
	IncidentID   string   `json:"incident_id" validate:"required"`
	ProofHash    string   `json:"proof_hash" validate:"required_without=Error"`
	PublicInputs []string `json:"public_inputs" validate:"required_without=Error"`
	Proof        string   `json:"proof,omitempty" validate:"omitempty,startswith=0x,hexadecimal"`
	Error        string   `json:"error,omitempty"`
}

// ChainWebhookRequest DTO наблюдения статуса транзакции
// @Description DTO наблюдения статуса транзакции
type ChainWebhookRequest struct {
	IncidentID      string `json:"incident_id" validate:"required"`
	TransactionHash string `json:"transaction_hash" validate:"required,startswith=0x,len=66,hexadecimal"`
	Status          string `json:"status" validate:"required,oneof=pending confirmed failed"`
}

// WebhookAck DTO подтверждения приема входящего события
type WebhookAck struct {
	Status string `json:"status"`
}
