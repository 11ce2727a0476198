package service

import (
	"github.com/Dankishon/prtc-mvp-back/internal/models"
)

// action - что нужно сделать с событием в текущем состоянии инцидента
type action int

const (
	actNoOp action = iota
	actIgnore
	actDefer
	actReject
	actDispatch
	actValidate
	actProofFailed
	actConfirm
	actFail
	actResubmit
)

var (
	stateNeedProof   = models.State{Proof: models.ProofNeedProof, Chain: models.ChainNone}
	stateGenerating  = models.State{Proof: models.ProofGenerating, Chain: models.ChainNone}
	stateNotVerified = models.State{Proof: models.ProofNotVerified, Chain: models.ChainNone}
	statePending     = models.State{Proof: models.ProofVerified, Chain: models.ChainPending}
	stateConfirmed   = models.State{Proof: models.ProofVerified, Chain: models.ChainConfirmed}
	stateFailed      = models.State{Proof: models.ProofVerified, Chain: models.ChainFailed}
)

type decision struct {
	action action
	reason string
}

func do(a action) decision {
	return decision{action: a}
}

func because(a action, reason string) decision {
	return decision{action: a, reason: reason}
}

// decide - таблица переходов. Чистая функция: смотрит только на снимок инцидента и событие.
func decide(current *models.Incident, ev models.Event) decision {
	switch ev.Kind {
	case models.EventRequestProof:
		return decideRequestProof(current, ev)
	case models.EventProofReady, models.EventProofGenerationFailed:
		return decideProofResult(current, ev)
	case models.EventChainConfirmed, models.EventChainFailed:
		return decideChain(current, ev)
	case models.EventResubmit:
		return decideResubmit(current)
	}
	return because(actReject, "unknown event kind")
}

func decideRequestProof(current *models.Incident, ev models.Event) decision {
	switch current.State() {
	case stateNeedProof:
		return do(actDispatch)
	case stateGenerating:
		if ev.Operator {
			return because(actDispatch, "superseding running proof job")
		}
		return because(actNoOp, "proof generation already running")
	case stateNotVerified:
		if ev.Operator {
			return because(actDispatch, "operator re-requested proof after rejection")
		}
		return because(actReject, "proof was rejected; operator override required")
	}
	return because(actReject, "proof already verified")
}

func decideProofResult(current *models.Incident, ev models.Event) decision {
	jobMatches := current.ProofJobID != nil && *current.ProofJobID == ev.JobID

	switch current.State() {
	case stateGenerating:
		if !jobMatches {
			return because(actIgnore, "result for superseded proof job")
		}
		if ev.Kind == models.EventProofGenerationFailed {
			return do(actProofFailed)
		}
		return do(actValidate)
	case stateNeedProof:
		if jobMatches {
			if ev.Kind == models.EventProofGenerationFailed {
				return because(actNoOp, "generation failure already recorded")
			}
			return because(actIgnore, "proof job already failed")
		}
		// Задание могло быть отправлено, а фиксация generating еще не видна
		return because(actDefer, "proof job dispatch not committed yet")
	}

	if jobMatches && ev.Kind == models.EventProofReady {
		return because(actNoOp, "proof result already applied")
	}
	return because(actIgnore, "result for superseded proof job")
}

func decideChain(current *models.Incident, ev models.Event) decision {
	if current.TransactionHash == nil {
		if current.ProofStatus == models.ProofNotVerified {
			return because(actIgnore, "incident has no submitted proof")
		}
		// Подтверждение пришло раньше, чем зафиксирована отправка транзакции
		return because(actDefer, "transaction not recorded yet")
	}
	if *current.TransactionHash != ev.TransactionHash {
		return because(actIgnore, "observation for a previous transaction")
	}

	target := models.ChainConfirmed
	if ev.Kind == models.EventChainFailed {
		target = models.ChainFailed
	}

	switch current.BlockchainStatus {
	case models.ChainPending:
		if target == models.ChainConfirmed {
			return do(actConfirm)
		}
		return do(actFail)
	case target:
		return because(actNoOp, "chain status already recorded")
	}
	return because(actIgnore, "conflicting terminal observation")
}

func decideResubmit(current *models.Incident) decision {
	switch current.State() {
	case stateFailed:
		if current.ProofHash == nil {
			return because(actReject, "failed transaction has no proof to resubmit")
		}
		return do(actResubmit)
	case statePending:
		return because(actNoOp, "transaction already pending")
	}
	return because(actReject, "only a failed transaction can be resubmitted")
}
