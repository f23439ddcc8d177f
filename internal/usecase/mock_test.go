//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"ecocash-activation/internal/domain"
	"ecocash-activation/internal/domain/model"
	"ecocash-activation/internal/domain/ports/adapter"
	"ecocash-activation/internal/domain/ports/repository"
	"ecocash-activation/internal/usecase"
)

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// constReader yields the same byte forever, so every generated code is identical.
type constReader byte

func (c constReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(c)
	}
	return len(p), nil
}

// =============================
// Transactions
// =============================

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with NoTX unless WithTxFunc is set.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// rollbackTxManager discards payment rows written by a failed fn.
func rollbackTxManager(payments *memPaymentRepo) *MockTxManager {
	return &MockTxManager{WithTxFunc: func(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
		snap := payments.snapshot()
		if err := fn(ctx, repository.NoTX); err != nil {
			payments.restore(snap)
			return err
		}
		return nil
	}}
}

// codeRollbackTxManager discards code rows written by a failed fn.
func codeRollbackTxManager(codes *memCodeRepo) *MockTxManager {
	return &MockTxManager{WithTxFunc: func(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
		snap := codes.snapshot()
		if err := fn(ctx, repository.NoTX); err != nil {
			codes.restore(snap)
			return err
		}
		return nil
	}}
}

// =============================
// Repositories
// =============================

// ---- Payments ----

type memPaymentRepo struct {
	mu        sync.Mutex
	byRef     map[string]*model.PaymentEvent
	InsertErr error
}

var _ repository.PaymentRepository = (*memPaymentRepo)(nil)

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{byRef: make(map[string]*model.PaymentEvent)}
}

func (m *memPaymentRepo) Insert(ctx context.Context, tx repository.Tx, p *model.PaymentEvent) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertErr != nil {
		return "", m.InsertErr
	}
	if _, ok := m.byRef[p.TransactionRef]; ok {
		return "", domain.ErrDuplicatePayment
	}
	cp := *p
	cp.ID = uuid.NewString()
	m.byRef[p.TransactionRef] = &cp
	return cp.ID, nil
}

func (m *memPaymentRepo) FindByTransactionRef(ctx context.Context, tx repository.Tx, ref string) (*model.PaymentEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byRef[ref]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPaymentRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byRef)
}

func (m *memPaymentRepo) snapshot() map[string]*model.PaymentEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*model.PaymentEvent, len(m.byRef))
	for k, v := range m.byRef {
		out[k] = v
	}
	return out
}

func (m *memPaymentRepo) restore(s map[string]*model.PaymentEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byRef = s
}

// ---- Codes ----

// memCodeRepo judges expiry with its own clock, like the database does with NOW().
type memCodeRepo struct {
	mu      sync.Mutex
	byValue map[string]*model.Code
	now     func() time.Time

	inserts    int
	lastLimit  int
	ConsumeErr error
	StatsErr   error
}

var _ repository.CodeRepository = (*memCodeRepo)(nil)

func newMemCodeRepo() *memCodeRepo {
	return &memCodeRepo{byValue: make(map[string]*model.Code), now: time.Now}
}

func (m *memCodeRepo) Insert(ctx context.Context, tx repository.Tx, c *model.Code, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	if _, ok := m.byValue[c.Value]; ok {
		return domain.ErrAlreadyExists
	}
	now := m.now()
	c.CreatedAt = now
	c.ExpiresAt = now.Add(ttl)
	cp := *c
	m.byValue[c.Value] = &cp
	return nil
}

func (m *memCodeRepo) Consume(ctx context.Context, tx repository.Tx, value, identity string) (*model.Code, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ConsumeErr != nil {
		return nil, m.ConsumeErr
	}
	c, ok := m.byValue[value]
	now := m.now()
	if !ok || c.Used || !c.ExpiresAt.After(now) {
		return nil, domain.ErrNotFound
	}
	c.Used = true
	c.UsedBy = &identity
	c.UsedAt = &now
	cp := *c
	return &cp, nil
}

func (m *memCodeRepo) FindByValue(ctx context.Context, tx repository.Tx, value string) (*model.Code, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byValue[value]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memCodeRepo) ListRecent(ctx context.Context, tx repository.Tx, status model.CodeStatus, limit int) ([]*model.Code, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLimit = limit
	now := m.now()
	var out []*model.Code
	for _, c := range m.byValue {
		if status != "" && c.Status(now) != status {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memCodeRepo) Stats(ctx context.Context, tx repository.Tx) (*model.CodeStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StatsErr != nil {
		return nil, m.StatsErr
	}
	now := m.now()
	st := &model.CodeStats{Total: len(m.byValue)}
	for _, c := range m.byValue {
		switch c.Status(now) {
		case model.CodeStatusActive:
			st.Active++
		case model.CodeStatusUsed:
			st.Used++
		case model.CodeStatusExpired:
			st.Expired++
		}
	}
	return st, nil
}

func (m *memCodeRepo) seed(value string, expiresAt time.Time, linkedPaymentID *string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byValue[value] = &model.Code{
		ID:              uuid.NewString(),
		Value:           value,
		CreatedAt:       expiresAt.Add(-time.Hour),
		ExpiresAt:       expiresAt,
		LinkedPaymentID: linkedPaymentID,
	}
}

func (m *memCodeRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byValue)
}

func (m *memCodeRepo) snapshot() map[string]*model.Code {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*model.Code, len(m.byValue))
	for k, v := range m.byValue {
		cp := *v
		out[k] = &cp
	}
	return out
}

func (m *memCodeRepo) restore(s map[string]*model.Code) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byValue = s
}

// ---- Subscriptions ----

type memSubscriptionRepo struct {
	mu     sync.Mutex
	byCode map[string]*model.Subscription
}

var _ repository.SubscriptionRepository = (*memSubscriptionRepo)(nil)

func newMemSubscriptionRepo() *memSubscriptionRepo {
	return &memSubscriptionRepo{byCode: make(map[string]*model.Subscription)}
}

func (m *memSubscriptionRepo) Insert(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byCode[s.ActivationCode]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *s
	m.byCode[s.ActivationCode] = &cp
	return nil
}

func (m *memSubscriptionRepo) FindByActivationCode(ctx context.Context, tx repository.Tx, code string) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byCode[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

// =============================
// Adapters
// =============================

type sentMessage struct {
	To   string
	Text string
}

type MockNotifier struct {
	mu   sync.Mutex
	Sent []sentMessage
	Err  error
}

var _ adapter.Notifier = (*MockNotifier)(nil)

func (m *MockNotifier) Send(ctx context.Context, to, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, sentMessage{To: to, Text: text})
	return nil
}

type MockAlerter struct {
	mu     sync.Mutex
	Alerts []string
}

var _ adapter.OperatorAlerter = (*MockAlerter)(nil)

func (m *MockAlerter) Alert(ctx context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Alerts = append(m.Alerts, text)
	return nil
}

// =============================
// Use cases
// =============================

type MockIngestUC struct {
	IngestFunc func(ctx context.Context, body string) (*usecase.IngestResult, error)
	Bodies     []string
}

var _ usecase.IngestUseCase = (*MockIngestUC)(nil)

func (m *MockIngestUC) Ingest(ctx context.Context, body string) (*usecase.IngestResult, error) {
	m.Bodies = append(m.Bodies, body)
	return m.IngestFunc(ctx, body)
}
