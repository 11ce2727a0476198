package models

import "time"

// EventKind - тип события, которое двигает машину состояний
type EventKind string

const (
	EventRequestProof          EventKind = "request_proof"
	EventProofReady            EventKind = "proof_ready"
	EventProofGenerationFailed EventKind = "proof_generation_failed"
	EventChainConfirmed        EventKind = "chain_confirmed"
	EventChainFailed           EventKind = "chain_failed"
	EventResubmit              EventKind = "resubmit"
)

// Event - явное идемпотентное событие для одного инцидента
type Event struct {
	Kind            EventKind `json:"kind"`
	IncidentID      string    `json:"incident_id"`
	JobID           string    `json:"job_id,omitempty"`
	ProofHash       string    `json:"proof_hash,omitempty"`
	PublicInputs    []string  `json:"public_inputs,omitempty"`
	TransactionHash string    `json:"transaction_hash,omitempty"`
	Reason          string    `json:"reason,omitempty"`
	// Operator помечает команды, инициированные оператором (override)
	Operator bool `json:"operator,omitempty"`
	// Scheduled - событие повторно доставлено планировщиком, а не пришло извне
	Scheduled bool `json:"scheduled,omitempty"`
	// Attempt - номер повторной доставки события планировщиком
	Attempt int `json:"attempt,omitempty"`
	// ProofRetry - автоматический повтор генерации после ProofGenerationFailed
	ProofRetry bool `json:"proof_retry,omitempty"`
}

// ProofJob - задание для внешнего сервиса генерации доказательств
type ProofJob struct {
	JobID       string    `json:"job_id"`
	IncidentID  string    `json:"incident_id"`
	Commitment  string    `json:"commitment"`
	RequestedAt time.Time `json:"requested_at"`
}

// ProofResult - результат от сервиса генерации: либо артефакт, либо ошибка
type ProofResult struct {
	JobID        string   `json:"job_id"`
	IncidentID   string   `json:"incident_id"`
	ProofHash    string   `json:"proof_hash,omitempty"`
	PublicInputs []string `json:"public_inputs,omitempty"`
	// Proof - сериализованное доказательство (hex), если сервис его передает
	Proof string `json:"proof,omitempty"`
	Error string `json:"error,omitempty"`
}

// Event преобразует результат в событие машины состояний
func (r ProofResult) Event() Event {
	if r.Error != "" {
		return Event{
			Kind:       EventProofGenerationFailed,
			IncidentID: r.IncidentID,
			JobID:      r.JobID,
			Reason:     r.Error,
		}
	}
	return Event{
		Kind:         EventProofReady,
		IncidentID:   r.IncidentID,
		JobID:        r.JobID,
		ProofHash:    r.ProofHash,
		PublicInputs: r.PublicInputs,
	}
}

// ChainObservation - наблюдение статуса транзакции в сети
type ChainObservation struct {
	IncidentID      string           `json:"incident_id"`
	TransactionHash string           `json:"transaction_hash"`
	Status          BlockchainStatus `json:"status"`
	ObservedAt      time.Time        `json:"observed_at"`
}

// Terminal сообщает, является ли наблюдение окончательным
func (o ChainObservation) Terminal() bool {
	return o.Status == ChainConfirmed || o.Status == ChainFailed
}

// Event преобразует терминальное наблюдение в событие машины состояний
func (o ChainObservation) Event() Event {
	kind := EventChainConfirmed
	if o.Status == ChainFailed {
		kind = EventChainFailed
	}
	return Event{
		Kind:            kind,
		IncidentID:      o.IncidentID,
		TransactionHash: o.TransactionHash,
	}
}

// Outcome - результат применения события
type Outcome string

const (
	OutcomeApplied  Outcome = "applied"
	OutcomeNoOp     Outcome = "noop"
	OutcomeDeferred Outcome = "deferred"
	OutcomeIgnored  Outcome = "ignored"
	OutcomeRejected Outcome = "rejected"
)
