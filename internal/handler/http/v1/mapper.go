package v1

import (
	"time"

	"github.com/Dankishon/prtc-mvp-back/internal/models"
)

// ModelToIncidentResponse преобразует доменную модель в DTO для ответа
func ModelToIncidentResponse(model *models.Incident) *IncidentResponse {
	return &IncidentResponse{
		IncidentID:         model.IncidentID,
		CompanyID:          model.CompanyID,
		DetectedAt:         model.DetectedAt,
		Commitment:         model.Commitment,
		ProofStatus:        string(model.ProofStatus),
		BlockchainStatus:   string(model.BlockchainStatus),
		TransactionHash:    model.TransactionHash,
		ProofHash:          model.ProofHash,
		PublicInputs:       model.PublicInputs,
		ProofAttempts:      model.ProofAttempts,
		SubmissionAttempts: model.SubmissionAttempts,
		LastError:          model.LastError,
		Version:            model.Version,
		CreatedAt:          model.CreatedAt,
		UpdatedAt:          model.UpdatedAt,
	}
}

// ModelsToIncidentResponses преобразует слайс моделей в слайс DTO
func ModelsToIncidentResponses(incidents []*models.Incident) []*IncidentResponse {
	responses := make([]*IncidentResponse, len(incidents))
	for i, model := range incidents {
		responses[i] = ModelToIncidentResponse(model)
	}
	return responses
}

func ModelToCompanyResponse(model *models.Company) *CompanyResponse {
	return &CompanyResponse{
		ID:            model.ID,
		Name:          model.Name,
		WalletAddress: model.WalletAddress,
		CreatedAt:     model.CreatedAt,
	}
}

func ModelsToCompanyResponses(companies []*models.Company) []*CompanyResponse {
	responses := make([]*CompanyResponse, len(companies))
	for i, model := range companies {
		responses[i] = ModelToCompanyResponse(model)
	}
	return responses
}

func ModelToSummaryResponse(model *models.CompanySummary) *SummaryResponse {
	resp := &SummaryResponse{
		CompanyID: model.CompanyID,
		Total:     model.Total,
		ByStatus:  make([]StatusCountResponse, len(model.ByStatus)),
	}
	for i, c := range model.ByStatus {
		resp.ByStatus[i] = StatusCountResponse{
			ProofStatus:      string(c.ProofStatus),
			BlockchainStatus: string(c.BlockchainStatus),
			Count:            c.Count,
		}
	}
	return resp
}

// DTOToProofResult преобразует входящий вебхук сервиса генерации в результат задания
func DTOToProofResult(dto ProverWebhookRequest) models.ProofResult {
	return models.ProofResult{
		JobID:        dto.JobID,
		IncidentID:   dto.IncidentID,
		ProofHash:    dto.ProofHash,
		PublicInputs: dto.PublicInputs,
		Proof:        dto.Proof,
		Error:        dto.Error,
	}
}

// DTOToObservation преобразует входящий вебхук наблюдателя сети в наблюдение
func DTOToObservation(dto ChainWebhookRequest, observedAt time.Time) models.ChainObservation {
	return models.ChainObservation{
		IncidentID:      dto.IncidentID,
		TransactionHash: dto.TransactionHash,
		Status:          models.BlockchainStatus(dto.Status),
		ObservedAt:      observedAt,
	}
}

// parseStatusFilter разбирает необязательные query-параметры фильтра
func parseStatusFilter(proof, chain string) (models.StatusFilter, bool) {
	var filter models.StatusFilter
	if proof != "" {
		ps := models.ProofStatus(proof)
		if !ps.Valid() {
			return filter, false
		}
		filter.ProofStatus = &ps
	}
	if chain != "" {
		bs := models.BlockchainStatus(chain)
		if !bs.Valid() {
			return filter, false
		}
		filter.BlockchainStatus = &bs
	}
	return filter, true
}
