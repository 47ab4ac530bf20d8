package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/signhub/envelope-engine/internal/domain"
	"github.com/signhub/envelope-engine/internal/observability"
	"github.com/signhub/envelope-engine/internal/repository"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 100
)

type BulkSendService interface {
	Submit(ctx context.Context, batch *domain.BulkSendBatch) (*domain.BulkSendBatch, error)
	GetByID(ctx context.Context, id string) (*domain.BulkSendBatch, error)
	List(ctx context.Context, params repository.ListBatchesParams) ([]domain.BulkSendBatch, int64, error)
}

type BulkSendHandler struct {
	service BulkSendService
}

func NewBulkSendHandler(service BulkSendService) (*BulkSendHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("bulk send service is required")
	}
	return &BulkSendHandler{service: service}, nil
}

func RegisterBulkSendRoutes(router fiber.Router, service BulkSendService) error {
	h, err := NewBulkSendHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/bulk-sends", h.CreateBulkSend)
	v1.Get("/bulk-sends/:id", h.GetBulkSend)
	v1.Get("/bulk-sends", h.ListBulkSends)

	return nil
}

type createBulkSendRequest struct {
	AccountID        string  `json:"accountId"`
	TemplateID       *string `json:"templateId,omitempty"`
	SourceEnvelopeID *string `json:"sourceEnvelopeId,omitempty"`
	ListID           string  `json:"listId"`
	ScheduledAt      *string `json:"scheduledAt,omitempty"`
	MaxAttempts      *int    `json:"maxAttempts,omitempty"`
}

type bulkSendResponse struct {
	ID               string     `json:"id"`
	AccountID        string     `json:"accountId"`
	TemplateID       *string    `json:"templateId,omitempty"`
	SourceEnvelopeID *string    `json:"sourceEnvelopeId,omitempty"`
	ListID           string     `json:"listId"`
	Status           string     `json:"status"`
	SentCount        int        `json:"sentCount"`
	FailedCount      int        `json:"failedCount"`
	FailureReason    *string    `json:"failureReason,omitempty"`
	AttemptCount     int        `json:"attemptCount"`
	MaxAttempts      int        `json:"maxAttempts"`
	ScheduledAt      *time.Time `json:"scheduledAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt,omitempty"`
	UpdatedAt        time.Time  `json:"updatedAt,omitempty"`
}

type listBulkSendsResponse struct {
	Data []bulkSendResponse `json:"data"`
	Meta listMeta           `json:"meta"`
}

type listMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

func (h *BulkSendHandler) CreateBulkSend(c *fiber.Ctx) error {
	var req createBulkSendRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	batch, err := requestToDomainBatch(req)
	if err != nil {
		return toHTTPError(err)
	}

	var ctx context.Context = c.Context()
	if correlationID := requestCorrelationID(c); correlationID != "" {
		ctx = observability.WithCorrelationID(ctx, correlationID)
	}

	created, err := h.service.Submit(ctx, &batch)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(toBulkSendResponse(created))
}

func (h *BulkSendHandler) GetBulkSend(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	batch, err := h.service.GetByID(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toBulkSendResponse(batch))
}

func (h *BulkSendHandler) ListBulkSends(c *fiber.Ctx) error {
	params, err := parseListParams(c)
	if err != nil {
		return toHTTPError(err)
	}

	batches, total, err := h.service.List(c.Context(), params)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(listBulkSendsResponse{
		Data: toBulkSendResponses(batches),
		Meta: listMeta{
			Page:     params.Page,
			PageSize: params.PageSize,
			Total:    total,
		},
	})
}

func parseListParams(c *fiber.Ctx) (repository.ListBatchesParams, error) {
	params := repository.ListBatchesParams{
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
	}

	if params.Page < 1 {
		return repository.ListBatchesParams{}, fmt.Errorf("%w: page must be >= 1", domain.ErrValidation)
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		return repository.ListBatchesParams{}, fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}

	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		status, err := domain.ParseBatchStatusFromString(rawStatus)
		if err != nil {
			return repository.ListBatchesParams{}, err
		}
		params.Status = &status
	}

	if rawAccount := strings.TrimSpace(c.Query("accountId")); rawAccount != "" {
		params.AccountID = &rawAccount
	}

	return params, nil
}

func requestToDomainBatch(req createBulkSendRequest) (domain.BulkSendBatch, error) {
	batch := domain.BulkSendBatch{
		AccountID:        strings.TrimSpace(req.AccountID),
		TemplateID:       trimOptional(req.TemplateID),
		SourceEnvelopeID: trimOptional(req.SourceEnvelopeID),
		ListID:           strings.TrimSpace(req.ListID),
	}

	if req.MaxAttempts != nil {
		batch.MaxAttempts = *req.MaxAttempts
	}

	if req.ScheduledAt != nil && strings.TrimSpace(*req.ScheduledAt) != "" {
		t, err := time.Parse(time.RFC3339, strings.TrimSpace(*req.ScheduledAt))
		if err != nil {
			return domain.BulkSendBatch{}, fmt.Errorf("%w: scheduledAt must be RFC3339", domain.ErrValidation)
		}
		utc := t.UTC()
		batch.ScheduledAt = &utc
	}

	return batch, nil
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func requestCorrelationID(c *fiber.Ctx) string {
	if value := strings.TrimSpace(c.Get(fiber.HeaderXRequestID)); value != "" {
		return value
	}
	if value, ok := c.Locals("requestid").(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func toBulkSendResponses(batches []domain.BulkSendBatch) []bulkSendResponse {
	responses := make([]bulkSendResponse, 0, len(batches))
	for _, batch := range batches {
		b := batch
		responses = append(responses, toBulkSendResponse(&b))
	}
	return responses
}

func toBulkSendResponse(b *domain.BulkSendBatch) bulkSendResponse {
	if b == nil {
		return bulkSendResponse{}
	}

	return bulkSendResponse{
		ID:               b.ID,
		AccountID:        b.AccountID,
		TemplateID:       b.TemplateID,
		SourceEnvelopeID: b.SourceEnvelopeID,
		ListID:           b.ListID,
		Status:           b.Status.String(),
		SentCount:        b.SentCount,
		FailedCount:      b.FailedCount,
		FailureReason:    b.FailureReason,
		AttemptCount:     b.AttemptCount,
		MaxAttempts:      b.MaxAttempts,
		ScheduledAt:      b.ScheduledAt,
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
