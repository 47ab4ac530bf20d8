package service

import (
	"context"
	"sync"
	"time"

	"github.com/signhub/envelope-engine/internal/domain"
	"github.com/signhub/envelope-engine/internal/queue"
	"github.com/signhub/envelope-engine/internal/repository"
	"github.com/signhub/envelope-engine/internal/sender"
)

type fakeBatchRepo struct {
	state *batchState

	createFn              func(ctx context.Context, b *domain.BulkSendBatch) error
	getByIDFn             func(ctx context.Context, id string) (*domain.BulkSendBatch, error)
	listFn                func(ctx context.Context, params repository.ListBatchesParams) ([]domain.BulkSendBatch, int64, error)
	markProcessingFn      func(ctx context.Context, id string) error
	markSentFn            func(ctx context.Context, id string) error
	markFailedFn          func(ctx context.Context, id string, reason string) error
	incrementSentCountFn  func(ctx context.Context, id string) error
	incrementFailedFn     func(ctx context.Context, id string) error
	updateCountsFn        func(ctx context.Context, id string, sent int, failed int) error
	incrementAttemptFn    func(ctx context.Context, id string) (int, error)
	getDueForScheduleFn   func(ctx context.Context, limit int) ([]domain.BulkSendBatch, error)
	clearScheduledAtFn    func(ctx context.Context, id string) error
	getStalledFn          func(ctx context.Context, olderThan time.Time, limit int) ([]domain.BulkSendBatch, error)
}

func newFakeBatchRepo(state *batchState) *fakeBatchRepo {
	return &fakeBatchRepo{state: state}
}

func (f *fakeBatchRepo) Create(ctx context.Context, b *domain.BulkSendBatch) error {
	if f.createFn != nil {
		return f.createFn(ctx, b)
	}
	return nil
}

func (f *fakeBatchRepo) GetByID(ctx context.Context, id string) (*domain.BulkSendBatch, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	if f.state == nil {
		return nil, domain.ErrNotFound
	}
	batch := f.state.get()
	return &batch, nil
}

func (f *fakeBatchRepo) List(ctx context.Context, params repository.ListBatchesParams) ([]domain.BulkSendBatch, int64, error) {
	if f.listFn != nil {
		return f.listFn(ctx, params)
	}
	return nil, 0, nil
}

func (f *fakeBatchRepo) MarkProcessing(ctx context.Context, id string) error {
	if f.markProcessingFn != nil {
		return f.markProcessingFn(ctx, id)
	}
	var err error
	f.state.update(func(b *domain.BulkSendBatch) {
		if b.Status == domain.BatchStatusSent {
			err = domain.ErrConflict
			return
		}
		b.Status = domain.BatchStatusProcessing
	})
	return err
}

func (f *fakeBatchRepo) MarkSent(ctx context.Context, id string) error {
	if f.markSentFn != nil {
		return f.markSentFn(ctx, id)
	}
	var err error
	f.state.update(func(b *domain.BulkSendBatch) {
		if b.Status != domain.BatchStatusProcessing {
			err = domain.ErrConflict
			return
		}
		b.Status = domain.BatchStatusSent
		b.FailureReason = nil
	})
	return err
}

func (f *fakeBatchRepo) MarkFailed(ctx context.Context, id string, reason string) error {
	if f.markFailedFn != nil {
		return f.markFailedFn(ctx, id, reason)
	}
	var err error
	f.state.update(func(b *domain.BulkSendBatch) {
		if b.Status == domain.BatchStatusSent || b.Status == domain.BatchStatusFailed {
			err = domain.ErrConflict
			return
		}
		b.Status = domain.BatchStatusFailed
		b.FailureReason = &reason
	})
	return err
}

func (f *fakeBatchRepo) IncrementSentCount(ctx context.Context, id string) error {
	if f.incrementSentCountFn != nil {
		return f.incrementSentCountFn(ctx, id)
	}
	f.state.update(func(b *domain.BulkSendBatch) { b.SentCount++ })
	return nil
}

func (f *fakeBatchRepo) IncrementFailedCount(ctx context.Context, id string) error {
	if f.incrementFailedFn != nil {
		return f.incrementFailedFn(ctx, id)
	}
	f.state.update(func(b *domain.BulkSendBatch) { b.FailedCount++ })
	return nil
}

func (f *fakeBatchRepo) UpdateCounts(ctx context.Context, id string, sent int, failed int) error {
	if f.updateCountsFn != nil {
		return f.updateCountsFn(ctx, id, sent, failed)
	}
	f.state.update(func(b *domain.BulkSendBatch) {
		b.SentCount = sent
		b.FailedCount = failed
	})
	return nil
}

func (f *fakeBatchRepo) IncrementAttemptCount(ctx context.Context, id string) (int, error) {
	if f.incrementAttemptFn != nil {
		return f.incrementAttemptFn(ctx, id)
	}
	var attempt int
	f.state.update(func(b *domain.BulkSendBatch) {
		b.AttemptCount++
		attempt = b.AttemptCount
	})
	return attempt, nil
}

func (f *fakeBatchRepo) GetDueForSchedule(ctx context.Context, limit int) ([]domain.BulkSendBatch, error) {
	if f.getDueForScheduleFn != nil {
		return f.getDueForScheduleFn(ctx, limit)
	}
	return nil, nil
}

func (f *fakeBatchRepo) ClearScheduledAt(ctx context.Context, id string) error {
	if f.clearScheduledAtFn != nil {
		return f.clearScheduledAtFn(ctx, id)
	}
	return nil
}

func (f *fakeBatchRepo) GetStalled(ctx context.Context, olderThan time.Time, limit int) ([]domain.BulkSendBatch, error) {
	if f.getStalledFn != nil {
		return f.getStalledFn(ctx, olderThan, limit)
	}
	return nil, nil
}

type fakeListRepo struct {
	getByIDFn                func(ctx context.Context, id string) (*domain.BulkSendList, error)
	getWithValidRecipientsFn func(ctx context.Context, id string) (*domain.BulkSendList, error)
}

func (f *fakeListRepo) GetByID(ctx context.Context, id string) (*domain.BulkSendList, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return &domain.BulkSendList{ID: id, AccountID: "acct-1", Name: "test list"}, nil
}

func (f *fakeListRepo) GetWithValidRecipients(ctx context.Context, id string) (*domain.BulkSendList, error) {
	if f.getWithValidRecipientsFn != nil {
		return f.getWithValidRecipientsFn(ctx, id)
	}
	return &domain.BulkSendList{ID: id, AccountID: "acct-1", Name: "test list"}, nil
}

type fakeTemplateRepo struct {
	getByIDFn func(ctx context.Context, id string) (*domain.Template, error)
}

func (f *fakeTemplateRepo) GetByID(ctx context.Context, id string) (*domain.Template, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return &domain.Template{
		ID:          id,
		AccountID:   "acct-1",
		OwnerUserID: "user-1",
		Name:        "Welcome Packet",
	}, nil
}

type fakeEnvelopeRepo struct {
	mu    sync.Mutex
	items map[string]domain.Envelope

	createFn       func(ctx context.Context, e *domain.Envelope) error
	getByIDFn      func(ctx context.Context, id string) (*domain.Envelope, error)
	updateStatusFn func(ctx context.Context, id string, status domain.EnvelopeStatus) error
}

func newFakeEnvelopeRepo() *fakeEnvelopeRepo {
	return &fakeEnvelopeRepo{items: make(map[string]domain.Envelope)}
}

func (f *fakeEnvelopeRepo) Create(ctx context.Context, e *domain.Envelope) error {
	if f.createFn != nil {
		return f.createFn(ctx, e)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[e.ID] = *e
	return nil
}

func (f *fakeEnvelopeRepo) GetByID(ctx context.Context, id string) (*domain.Envelope, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.items[id]; ok {
		return &e, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeEnvelopeRepo) UpdateStatus(ctx context.Context, id string, status domain.EnvelopeStatus) error {
	if f.updateStatusFn != nil {
		return f.updateStatusFn(ctx, id, status)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	e.Status = status
	f.items[id] = e
	return nil
}

func (f *fakeEnvelopeRepo) CountByBatch(ctx context.Context, batchID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, e := range f.items {
		if e.BulkBatchID != nil && *e.BulkBatchID == batchID {
			count++
		}
	}
	return count, nil
}

func (f *fakeEnvelopeRepo) committed() []domain.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	envelopes := make([]domain.Envelope, 0, len(f.items))
	for _, e := range f.items {
		envelopes = append(envelopes, e)
	}
	return envelopes
}

func (f *fakeEnvelopeRepo) merge(other *fakeEnvelopeRepo) {
	other.mu.Lock()
	staged := make(map[string]domain.Envelope, len(other.items))
	for id, e := range other.items {
		staged[id] = e
	}
	other.mu.Unlock()

	f.mu.Lock()
	defer f.mu.Unlock()
	for id, e := range staged {
		f.items[id] = e
	}
}

type fakeResultRepo struct {
	mu    sync.Mutex
	items map[string]domain.RecipientResult

	upsertFn     func(ctx context.Context, r *domain.RecipientResult) error
	getByBatchFn func(ctx context.Context, batchID string) ([]domain.RecipientResult, error)
}

func newFakeResultRepo() *fakeResultRepo {
	return &fakeResultRepo{items: make(map[string]domain.RecipientResult)}
}

func (f *fakeResultRepo) Upsert(ctx context.Context, r *domain.RecipientResult) error {
	if f.upsertFn != nil {
		return f.upsertFn(ctx, r)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[r.BatchID+"|"+r.RecipientEmail] = *r
	return nil
}

func (f *fakeResultRepo) GetByBatch(ctx context.Context, batchID string) ([]domain.RecipientResult, error) {
	if f.getByBatchFn != nil {
		return f.getByBatchFn(ctx, batchID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var results []domain.RecipientResult
	for _, r := range f.items {
		if r.BatchID == batchID {
			results = append(results, r)
		}
	}
	return results, nil
}

func (f *fakeResultRepo) seed(results ...domain.RecipientResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range results {
		f.items[r.BatchID+"|"+r.RecipientEmail] = r
	}
}

func (f *fakeResultRepo) byEmail() map[string]domain.RecipientResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	results := make(map[string]domain.RecipientResult, len(f.items))
	for _, r := range f.items {
		results[r.RecipientEmail] = r
	}
	return results
}

func (f *fakeResultRepo) mergeFrom(other *fakeResultRepo) {
	other.mu.Lock()
	staged := make(map[string]domain.RecipientResult, len(other.items))
	for key, r := range other.items {
		staged[key] = r
	}
	other.mu.Unlock()

	f.mu.Lock()
	defer f.mu.Unlock()
	for key, r := range staged {
		f.items[key] = r
	}
}

// fakeUnitOfWork stages envelope and result writes and only merges them into
// the backing fakes when the closure succeeds, mirroring transaction rollback.
type fakeUnitOfWork struct {
	envelopes *fakeEnvelopeRepo
	results   *fakeResultRepo

	doFn func(ctx context.Context, fn func(repos repository.TxRepos) error) error
}

func (f *fakeUnitOfWork) Do(ctx context.Context, fn func(repos repository.TxRepos) error) error {
	if f.doFn != nil {
		return f.doFn(ctx, fn)
	}

	txEnvelopes := newFakeEnvelopeRepo()
	txResults := newFakeResultRepo()

	if err := fn(repository.TxRepos{Envelopes: txEnvelopes, Results: txResults}); err != nil {
		return err
	}

	f.envelopes.merge(txEnvelopes)
	f.results.mergeFrom(txResults)
	return nil
}

type fakeSender struct {
	sendFn func(ctx context.Context, envelope domain.Envelope) (*sender.DeliveryResponse, error)
}

func (f *fakeSender) Send(ctx context.Context, envelope domain.Envelope) (*sender.DeliveryResponse, error) {
	if f.sendFn != nil {
		return f.sendFn(ctx, envelope)
	}
	return &sender.DeliveryResponse{StatusCode: 200}, nil
}

type fakeRateLimiter struct {
	allowFn func(ctx context.Context, accountID string) (bool, error)
	waitFn  func(ctx context.Context, accountID string) error
}

func (f *fakeRateLimiter) Allow(ctx context.Context, accountID string) (bool, error) {
	if f.allowFn != nil {
		return f.allowFn(ctx, accountID)
	}
	return true, nil
}

func (f *fakeRateLimiter) Wait(ctx context.Context, accountID string) error {
	if f.waitFn != nil {
		return f.waitFn(ctx, accountID)
	}
	return nil
}

type fakePublisher struct {
	publishFn func(ctx context.Context, queueName string, msg queue.BatchMessage) error
	closeFn   func() error
}

func (f *fakePublisher) Publish(ctx context.Context, queueName string, msg queue.BatchMessage) error {
	if f.publishFn != nil {
		return f.publishFn(ctx, queueName, msg)
	}
	return nil
}

func (f *fakePublisher) Close() error {
	if f.closeFn != nil {
		return f.closeFn()
	}
	return nil
}

type fakeConsumer struct {
	consumeFn func(ctx context.Context, queueName string, handler queue.MessageHandler) error
	closeFn   func() error
}

func (f *fakeConsumer) Consume(ctx context.Context, queueName string, handler queue.MessageHandler) error {
	if f.consumeFn != nil {
		return f.consumeFn(ctx, queueName, handler)
	}
	<-ctx.Done()
	return nil
}

func (f *fakeConsumer) Close() error {
	if f.closeFn != nil {
		return f.closeFn()
	}
	return nil
}

type fakeLease struct {
	acquireFn func(ctx context.Context, batchID string) (string, error)
	releaseFn func(ctx context.Context, batchID string, token string) error
}

func (f *fakeLease) Acquire(ctx context.Context, batchID string) (string, error) {
	if f.acquireFn != nil {
		return f.acquireFn(ctx, batchID)
	}
	return "lease-token", nil
}

func (f *fakeLease) Release(ctx context.Context, batchID string, token string) error {
	if f.releaseFn != nil {
		return f.releaseFn(ctx, batchID, token)
	}
	return nil
}

type fakeProcessor struct {
	processBatchFn func(ctx context.Context, batchID string, listID string) error
}

func (f *fakeProcessor) ProcessBatch(ctx context.Context, batchID string, listID string) error {
	if f.processBatchFn != nil {
		return f.processBatchFn(ctx, batchID, listID)
	}
	return nil
}
