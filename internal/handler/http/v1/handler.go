package v1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Dankishon/prtc-mvp-back/internal/config"
	"github.com/Dankishon/prtc-mvp-back/internal/models"
	"github.com/Dankishon/prtc-mvp-back/internal/service"
	"github.com/Dankishon/prtc-mvp-back/internal/tracker"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// ResultProcessor применяет результат сервиса генерации (prover.ResultWorker)
type ResultProcessor interface {
	Process(ctx context.Context, res models.ProofResult) error
}

// ObservationDeliverer доставляет терминальные наблюдения не более одного раза (tracker.Tracker)
type ObservationDeliverer interface {
	Deliver(ctx context.Context, obs models.ChainObservation, handler tracker.ObservationHandler) error
}

type Handler struct {
	incidentService service.IncidentService
	results         ResultProcessor
	observations    ObservationDeliverer
	logger          *logrus.Logger
	validate        *validator.Validate
	cfg             *config.Config
}

func NewHandler(incidentService service.IncidentService, results ResultProcessor, observations ObservationDeliverer, logger *logrus.Logger, cfg *config.Config) *Handler {
	return &Handler{
		incidentService: incidentService,
		results:         results,
		observations:    observations,
		logger:          logger,
		validate:        validator.New(),
		cfg:             cfg,
	}
}

// writeError отображает ошибки сервиса на HTTP-статусы
func (h *Handler) writeError(c *gin.Context, log *logrus.Entry, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		log.WithError(err).Warn("Resource not found")
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, models.ErrInvalidArgument):
		log.WithError(err).Warn("Invalid argument")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrInvalidTransition), errors.Is(err, models.ErrAlreadyExists):
		log.WithError(err).Warn("Request conflicts with current state")
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrVersionConflict), models.IsTransient(err):
		log.WithError(err).Warn("Temporarily unable to apply request")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unavailable, retry later"})
	case models.IsPermanentSubmission(err):
		log.WithError(err).Error("Permanent submission error")
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		log.WithError(err).Error("Internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// bindJSON разбирает и валидирует тело запроса; при ошибке ответ уже записан
func (h *Handler) bindJSON(c *gin.Context, log *logrus.Entry, input any) bool {
	if err := c.ShouldBindJSON(input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}
	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

// @Summary Register a detected incident
// @Description Register a new incident for a company. It starts in (need_proof, none). Requires API key.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param incident body CreateIncidentRequest true "Incident creation request"
// @Success 201 {object} IncidentResponse
// @Failure 400 {object} map[string]string "Invalid request body or validation error"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Company not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /incidents [post]
func (h *Handler) createIncident(c *gin.Context) {
	var input CreateIncidentRequest
	log := h.logger.WithField("method", "createIncident")

	if !h.bindJSON(c, log, &input) {
		return
	}

	var detectedAt time.Time
	if input.DetectedAt != nil {
		detectedAt = *input.DetectedAt
	}
	incident, err := h.incidentService.CreateIncident(c.Request.Context(), input.CompanyID, input.Commitment, detectedAt)
	if err != nil {
		h.writeError(c, log, err)
		return
	}
	c.JSON(http.StatusCreated, ModelToIncidentResponse(incident))
}

// @Summary Get incident by ID
// @Description Get a single incident by its ID. Requires API key.
// @Tags Incidents
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Incident ID (YYYYMMDD-NNNN)"
// @Success 200 {object} IncidentResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Incident not found"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /incidents/{id} [get]
func (h *Handler) getIncident(c *gin.Context) {
	id := c.Param("id")
	log := h.logger.WithField("method", "getIncident").WithField("incident_id", id)

	incident, err := h.incidentService.GetIncident(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Request proof generation
// @Description Dispatch a proof job. With override it re-requests after a rejection or supersedes a running job. Requires API key.
// @Tags Incidents
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Incident ID"
// @Param request body RequestProofRequest false "Override flag"
// @Success 200 {object} CommandResponse
// @Success 202 {object} CommandResponse "Deferred, will be retried"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Incident not found"
// @Failure 409 {object} map[string]string "Not allowed in current state"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /incidents/{id}/proof [post]
func (h *Handler) requestProof(c *gin.Context) {
	id := c.Param("id")
	log := h.logger.WithField("method", "requestProof").WithField("incident_id", id)

	var input RequestProofRequest
	if c.Request.ContentLength > 0 && !h.bindJSON(c, log, &input) {
		return
	}

	incident, outcome, err := h.incidentService.RequestProof(c.Request.Context(), id, input.Override)
	h.writeCommand(c, log, incident, outcome, err)
}

// @Summary Resubmit a failed verification transaction
// @Description Submit a new transaction for an incident in (verified, failed). Requires API key.
// @Tags Incidents
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Incident ID"
// @Success 200 {object} CommandResponse
// @Success 202 {object} CommandResponse "Deferred, will be retried"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Incident not found"
// @Failure 409 {object} map[string]string "Not allowed in current state"
// @Failure 422 {object} map[string]string "Permanent submission error"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /incidents/{id}/resubmit [post]
func (h *Handler) resubmit(c *gin.Context) {
	id := c.Param("id")
	log := h.logger.WithField("method", "resubmit").WithField("incident_id", id)

	incident, outcome, err := h.incidentService.Resubmit(c.Request.Context(), id)
	h.writeCommand(c, log, incident, outcome, err)
}

func (h *Handler) writeCommand(c *gin.Context, log *logrus.Entry, incident *models.Incident, outcome models.Outcome, err error) {
	if err != nil {
		h.writeError(c, log, err)
		return
	}
	resp := CommandResponse{Outcome: string(outcome)}
	if incident != nil {
		resp.Incident = ModelToIncidentResponse(incident)
	}
	status := http.StatusOK
	if outcome == models.OutcomeDeferred {
		status = http.StatusAccepted
	}
	log.WithField("outcome", outcome).Info("Command handled")
	c.JSON(status, resp)
}

// @Summary List companies
// @Tags Companies
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {array} CompanyResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /companies [get]
func (h *Handler) listCompanies(c *gin.Context) {
	log := h.logger.WithField("method", "listCompanies")

	companies, err := h.incidentService.ListCompanies(c.Request.Context())
	if err != nil {
		h.writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelsToCompanyResponses(companies))
}

// @Summary Get company by ID
// @Tags Companies
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Company ID"
// @Success 200 {object} CompanyResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Company not found"
// @Router /companies/{id} [get]
func (h *Handler) getCompany(c *gin.Context) {
	id := c.Param("id")
	log := h.logger.WithField("method", "getCompany").WithField("company_id", id)

	company, err := h.incidentService.GetCompany(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToCompanyResponse(company))
}

// @Summary Assign company wallet
// @Description Set the EVM wallet address of a company. The only mutable company field. Requires API key.
// @Tags Companies
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Company ID"
// @Param wallet body AssignWalletRequest true "Wallet address"
// @Success 200 {object} CompanyResponse
// @Failure 400 {object} map[string]string "Invalid address"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Company not found"
// @Router /companies/{id}/wallet [put]
func (h *Handler) assignWallet(c *gin.Context) {
	id := c.Param("id")
	log := h.logger.WithField("method", "assignWallet").WithField("company_id", id)

	var input AssignWalletRequest
	if !h.bindJSON(c, log, &input) {
		return
	}

	company, err := h.incidentService.AssignWallet(c.Request.Context(), id, input.WalletAddress)
	if err != nil {
		h.writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToCompanyResponse(company))
}

// @Summary List incidents of a company
// @Description Optional filters by proof_status and blockchain_status. Requires API key.
// @Tags Companies
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Company ID"
// @Param proof_status query string false "need_proof | generating | verified | not_verified"
// @Param blockchain_status query string false "none | pending | confirmed | failed"
// @Success 200 {array} IncidentResponse
// @Failure 400 {object} map[string]string "Unknown status filter"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Company not found"
// @Router /companies/{id}/incidents [get]
func (h *Handler) listCompanyIncidents(c *gin.Context) {
	id := c.Param("id")
	log := h.logger.WithField("method", "listCompanyIncidents").WithField("company_id", id)

	filter, ok := parseStatusFilter(c.Query("proof_status"), c.Query("blockchain_status"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status filter"})
		return
	}

	incidents, err := h.incidentService.ListByCompany(c.Request.Context(), id, filter)
	if err != nil {
		h.writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelsToIncidentResponses(incidents))
}

// @Summary Company summary
// @Description Count incidents of a company per (proof_status, blockchain_status). Requires API key.
// @Tags Companies
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Company ID"
// @Success 200 {object} SummaryResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Company not found"
// @Router /companies/{id}/summary [get]
func (h *Handler) getCompanySummary(c *gin.Context) {
	id := c.Param("id")
	log := h.logger.WithField("method", "getCompanySummary").WithField("company_id", id)

	summary, err := h.incidentService.CompanySummary(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, log, err)
		return
	}
	c.JSON(http.StatusOK, ModelToSummaryResponse(summary))
}

// decodeWebhook читает подписанное тело и валидирует его
func (h *Handler) decodeWebhook(c *gin.Context, log *logrus.Entry, input any) bool {
	body, err := requestBody(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read request body"})
		return false
	}
	if err := json.Unmarshal(body, input); err != nil {
		log.WithError(err).Warn("Failed to decode webhook")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return false
	}
	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Webhook validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

// @Summary Proof result from the proving service
// @Description At-least-once delivery of a proof job result. Signed with HMAC-SHA256 in X-Webhook-Signature.
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param result body ProverWebhookRequest true "Proof job result"
// @Success 202 {object} WebhookAck
// @Failure 400 {object} map[string]string "Invalid payload"
// @Failure 401 {object} map[string]string "Invalid signature"
// @Failure 404 {object} map[string]string "Incident not found"
// @Failure 503 {object} map[string]string "Temporarily unavailable"
// @Router /webhooks/prover [post]
func (h *Handler) proverWebhook(c *gin.Context) {
	log := h.logger.WithField("method", "proverWebhook")

	var input ProverWebhookRequest
	if !h.decodeWebhook(c, log, &input) {
		return
	}
	log = log.WithFields(logrus.Fields{"incident_id": input.IncidentID, "job_id": input.JobID})

	if err := h.results.Process(c.Request.Context(), DTOToProofResult(input)); err != nil {
		h.writeError(c, log, err)
		return
	}
	c.JSON(http.StatusAccepted, WebhookAck{Status: "accepted"})
}

// @Summary Transaction status from the chain watcher
// @Description At-least-once delivery of a transaction observation. Terminal observations are applied once per (tx, status).
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param observation body ChainWebhookRequest true "Chain observation"
// @Success 202 {object} WebhookAck
// @Failure 400 {object} map[string]string "Invalid payload"
// @Failure 401 {object} map[string]string "Invalid signature"
// @Failure 404 {object} map[string]string "Incident not found"
// @Failure 503 {object} map[string]string "Temporarily unavailable"
// @Router /webhooks/chain [post]
func (h *Handler) chainWebhook(c *gin.Context) {
	log := h.logger.WithField("method", "chainWebhook")

	var input ChainWebhookRequest
	if !h.decodeWebhook(c, log, &input) {
		return
	}
	log = log.WithFields(logrus.Fields{"incident_id": input.IncidentID, "transaction_hash": input.TransactionHash})

	obs := DTOToObservation(input, time.Now().UTC())
	if !obs.Terminal() {
		c.JSON(http.StatusAccepted, WebhookAck{Status: "ignored"})
		return
	}

	var err error
	if h.observations != nil {
		err = h.observations.Deliver(c.Request.Context(), obs, h.incidentService.HandleChainObservation)
	} else {
		err = h.incidentService.HandleChainObservation(c.Request.Context(), obs)
	}
	if err != nil {
		h.writeError(c, log, err)
		return
	}
	c.JSON(http.StatusAccepted, WebhookAck{Status: "accepted"})
}

// @Summary Get application health status
// @Description Get health status of the application
// @Tags System
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string "Status OK"
// @Router /system/health [get]
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
