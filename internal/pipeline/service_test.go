package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MessaoudiOussama/market-analytics/internal/correlate"
	"github.com/MessaoudiOussama/market-analytics/internal/domain"
	"github.com/MessaoudiOussama/market-analytics/internal/market"
	"github.com/MessaoudiOussama/market-analytics/internal/segment"
	"github.com/MessaoudiOussama/market-analytics/internal/sentiment"
	"github.com/MessaoudiOussama/market-analytics/internal/sentiment/sentimenttest"
)

type mockDocRepo struct {
	mu          sync.Mutex
	upsertFn    func(ctx context.Context, source, speaker, title, url, content string, publishedAt time.Time) (*domain.Document, bool, error)
	getByIDFn   func(ctx context.Context, id uuid.UUID) (*domain.Document, error)
	listFn      func(ctx context.Context, filter domain.DocumentFilter) ([]*domain.Document, error)
	byStateFn   func(ctx context.Context, state domain.DocumentState, limit int) ([]*domain.Document, error)
	stateCalls  []domain.DocumentState
	stateErr    error
}

func (m *mockDocRepo) Upsert(ctx context.Context, source, speaker, title, url, content string, publishedAt time.Time) (*domain.Document, bool, error) {
	return m.upsertFn(ctx, source, speaker, title, url, content, publishedAt)
}

func (m *mockDocRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	return m.getByIDFn(ctx, id)
}

func (m *mockDocRepo) List(ctx context.Context, filter domain.DocumentFilter) ([]*domain.Document, error) {
	return m.listFn(ctx, filter)
}

func (m *mockDocRepo) ListByState(ctx context.Context, state domain.DocumentState, limit int) ([]*domain.Document, error) {
	if m.byStateFn == nil {
		return nil, nil
	}
	return m.byStateFn(ctx, state, limit)
}

func (m *mockDocRepo) SetState(_ context.Context, _ uuid.UUID, state domain.DocumentState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stateCalls = append(m.stateCalls, state)
	return m.stateErr
}

func (m *mockDocRepo) states() []domain.DocumentState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.DocumentState(nil), m.stateCalls...)
}

type mockSentimentRepo struct {
	mu         sync.Mutex
	replaceErr error
	replaced   []domain.DocumentSentiment
	getFn      func(ctx context.Context, docID uuid.UUID) (*domain.DocumentSentiment, error)
}

func (m *mockSentimentRepo) ReplaceScores(_ context.Context, _ uuid.UUID, _ []domain.ChunkSentiment, agg domain.DocumentSentiment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.replaceErr != nil {
		return m.replaceErr
	}
	m.replaced = append(m.replaced, agg)
	return nil
}

func (m *mockSentimentRepo) GetDocumentSentiment(ctx context.Context, docID uuid.UUID) (*domain.DocumentSentiment, error) {
	if m.getFn == nil {
		return nil, domain.ErrDocumentNotFound
	}
	return m.getFn(ctx, docID)
}

func (m *mockSentimentRepo) ListChunkSentiments(context.Context, uuid.UUID) ([]domain.ChunkSentiment, error) {
	return nil, nil
}

type mockMarketRepo struct {
	mu         sync.Mutex
	replaceErr error
	replaced   map[uuid.UUID][]domain.MarketDelta
}

func (m *mockMarketRepo) ReplaceDeltas(_ context.Context, docID uuid.UUID, deltas []domain.MarketDelta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.replaceErr != nil {
		return m.replaceErr
	}
	if m.replaced == nil {
		m.replaced = make(map[uuid.UUID][]domain.MarketDelta)
	}
	m.replaced[docID] = deltas
	return nil
}

func (m *mockMarketRepo) ListDeltas(_ context.Context, docID uuid.UUID) ([]domain.MarketDelta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.replaced[docID], nil
}

type mockCorrelationRepo struct {
	pairs      []domain.ObservationPair
	pairsErr   error
	storedDims []domain.GroupDimension
	stored     []domain.CorrelationResult
}

func (m *mockCorrelationRepo) ReplaceResults(_ context.Context, dims []domain.GroupDimension, results []domain.CorrelationResult) error {
	m.storedDims = dims
	m.stored = results
	return nil
}

func (m *mockCorrelationRepo) ListResults(context.Context, []domain.GroupDimension) ([]domain.CorrelationResult, error) {
	return m.stored, nil
}

func (m *mockCorrelationRepo) ListPairs(context.Context) ([]domain.ObservationPair, error) {
	return m.pairs, m.pairsErr
}

// stubPriceProvider returns a fixed close for every lookup.
type stubPriceProvider struct{ close float64 }

func (s stubPriceProvider) PriceNear(_ context.Context, symbol string, date time.Time, _ int) (domain.Observation, error) {
	return domain.Observation{Symbol: symbol, Date: date, Close: s.close}, nil
}

type serviceFixture struct {
	docs         *mockDocRepo
	sentiments   *mockSentimentRepo
	markets      *mockMarketRepo
	correlations *mockCorrelationRepo
	service      *Service
}

func newFixture(scorer domain.Scorer) *serviceFixture {
	f := &serviceFixture{
		docs:         &mockDocRepo{},
		sentiments:   &mockSentimentRepo{},
		markets:      &mockMarketRepo{},
		correlations: &mockCorrelationRepo{},
	}

	engine := sentiment.NewEngine(segment.New(sentimenttest.WordTokenizer{}, 100), scorer, 2)
	aligner := market.NewAligner(stubPriceProvider{close: 100}, []string{"^GSPC"}, []domain.Horizon{domain.Horizon1D}, 5)

	f.service = NewService(
		f.docs, f.sentiments, f.markets, f.correlations,
		engine, aligner,
		5, correlate.FormulaNet, 2,
		clockwork.NewRealClock(),
	)
	return f
}

func positiveScorer() *sentimenttest.StubScorer {
	return &sentimenttest.StubScorer{Probs: domain.Probabilities{Positive: 0.8, Neutral: 0.1, Negative: 0.1}}
}

func TestIngest_PassesThrough(t *testing.T) {
	f := newFixture(positiveScorer())
	want := &domain.Document{ID: uuid.New(), Source: "ecb", URL: "https://ecb.example/1", State: domain.StateIngested}
	f.docs.upsertFn = func(_ context.Context, source, _, _, url, _ string, _ time.Time) (*domain.Document, bool, error) {
		assert.Equal(t, "ecb", source)
		assert.Equal(t, "https://ecb.example/1", url)
		return want, true, nil
	}

	doc, created, err := f.service.Ingest(context.Background(), "ecb", "lagarde", "t", "https://ecb.example/1", "text", time.Now())
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, want, doc)
}

func TestChunkAndScore_HappyPath(t *testing.T) {
	f := newFixture(positiveScorer())
	docID := uuid.New()
	f.docs.getByIDFn = func(_ context.Context, id uuid.UUID) (*domain.Document, error) {
		return &domain.Document{ID: id, Content: "The outlook improved.", State: domain.StateIngested}, nil
	}

	err := f.service.ChunkAndScore(context.Background(), docID)
	require.NoError(t, err)

	require.Len(t, f.sentiments.replaced, 1)
	assert.Equal(t, domain.LabelPositive, f.sentiments.replaced[0].Label)
	assert.Equal(t, []domain.DocumentState{domain.StateScored}, f.docs.states())
}

func TestChunkAndScore_DocumentNotFound(t *testing.T) {
	f := newFixture(positiveScorer())
	f.docs.getByIDFn = func(context.Context, uuid.UUID) (*domain.Document, error) {
		return nil, domain.ErrDocumentNotFound
	}

	err := f.service.ChunkAndScore(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
	assert.Empty(t, f.sentiments.replaced)
}

func TestChunkAndScore_EmptyDocumentNotPersisted(t *testing.T) {
	f := newFixture(positiveScorer())
	f.docs.getByIDFn = func(_ context.Context, id uuid.UUID) (*domain.Document, error) {
		return &domain.Document{ID: id, Content: "  ", State: domain.StateIngested}, nil
	}

	err := f.service.ChunkAndScore(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrEmptyDocument)
	assert.Empty(t, f.sentiments.replaced)
	assert.Empty(t, f.docs.states())
}

func TestChunkAndScore_RescoreDoesNotRegressState(t *testing.T) {
	f := newFixture(positiveScorer())
	f.docs.getByIDFn = func(_ context.Context, id uuid.UUID) (*domain.Document, error) {
		return &domain.Document{ID: id, Content: "Still positive.", State: domain.StateAligned}, nil
	}

	err := f.service.ChunkAndScore(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Len(t, f.sentiments.replaced, 1)
	assert.Empty(t, f.docs.states(), "state must not move backwards")
}

func TestAlignMarket_HappyPath(t *testing.T) {
	f := newFixture(positiveScorer())
	docID := uuid.New()
	f.docs.getByIDFn = func(_ context.Context, id uuid.UUID) (*domain.Document, error) {
		return &domain.Document{ID: id, State: domain.StateScored, PublishedAt: time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)}, nil
	}

	err := f.service.AlignMarket(context.Background(), docID)
	require.NoError(t, err)

	deltas := f.markets.replaced[docID]
	require.Len(t, deltas, 1)
	assert.Equal(t, "^GSPC", deltas[0].Symbol)
	require.NotNil(t, deltas[0].PctChange)
	assert.Equal(t, []domain.DocumentState{domain.StateAligned}, f.docs.states())
}

func TestAlignMarket_PersistenceFailure(t *testing.T) {
	f := newFixture(positiveScorer())
	f.docs.getByIDFn = func(_ context.Context, id uuid.UUID) (*domain.Document, error) {
		return &domain.Document{ID: id, State: domain.StateScored}, nil
	}
	f.markets.replaceErr = errors.New("connection reset")

	err := f.service.AlignMarket(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Empty(t, f.docs.states())
}

func TestCorrelate_ComputesAndPersists(t *testing.T) {
	f := newFixture(positiveScorer())
	pct := 0.01
	for i := 0; i < 6; i++ {
		f.correlations.pairs = append(f.correlations.pairs, domain.ObservationPair{
			Speaker:   "lagarde",
			Symbol:    "^GSPC",
			Horizon:   domain.Horizon1D,
			Sentiment: domain.Probabilities{Positive: 0.1 * float64(i+1)},
			PctChange: &pct,
		})
	}
	dims := []domain.GroupDimension{domain.GroupBySpeaker}

	results, err := f.service.Correlate(context.Background(), dims)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Sufficient)
	assert.Equal(t, 6, results[0].N)
	assert.Equal(t, dims, f.correlations.storedDims)
	assert.Equal(t, results, f.correlations.stored)
}

func TestCorrelate_ListPairsFailure(t *testing.T) {
	f := newFixture(positiveScorer())
	f.correlations.pairsErr = errors.New("snapshot failed")

	_, err := f.service.Correlate(context.Background(), []domain.GroupDimension{domain.GroupBySpeaker})
	require.Error(t, err)
	assert.Nil(t, f.correlations.stored)
}

func TestProcessPending_RunsBothStages(t *testing.T) {
	f := newFixture(positiveScorer())

	ingested := &domain.Document{ID: uuid.New(), Content: "Good news.", State: domain.StateIngested}
	empty := &domain.Document{ID: uuid.New(), Content: "", State: domain.StateIngested}
	scored := &domain.Document{ID: uuid.New(), Content: "Good news.", State: domain.StateScored, PublishedAt: time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)}

	byID := map[uuid.UUID]*domain.Document{ingested.ID: ingested, empty.ID: empty, scored.ID: scored}
	f.docs.getByIDFn = func(_ context.Context, id uuid.UUID) (*domain.Document, error) {
		doc, ok := byID[id]
		if !ok {
			return nil, domain.ErrDocumentNotFound
		}
		return doc, nil
	}
	f.docs.byStateFn = func(_ context.Context, state domain.DocumentState, _ int) ([]*domain.Document, error) {
		switch state {
		case domain.StateIngested:
			return []*domain.Document{ingested, empty}, nil
		case domain.StateScored:
			return []*domain.Document{scored}, nil
		default:
			return nil, nil
		}
	}

	summary, err := f.service.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Scored)
	assert.Equal(t, 1, summary.Aligned)
	assert.Equal(t, 1, summary.PermanentFailures)
	assert.Equal(t, 0, summary.TransientFailures)

	assert.Contains(t, f.docs.states(), domain.StateFailed)
	assert.Contains(t, f.docs.states(), domain.StateScored)
	assert.Contains(t, f.docs.states(), domain.StateAligned)
}

func TestProcessPending_TransientFailureLeavesStateAlone(t *testing.T) {
	f := newFixture(positiveScorer())

	doc := &domain.Document{ID: uuid.New(), Content: "Good news.", State: domain.StateIngested}
	f.docs.getByIDFn = func(context.Context, uuid.UUID) (*domain.Document, error) { return doc, nil }
	f.docs.byStateFn = func(_ context.Context, state domain.DocumentState, _ int) ([]*domain.Document, error) {
		if state == domain.StateIngested {
			return []*domain.Document{doc}, nil
		}
		return nil, nil
	}
	f.sentiments.replaceErr = errors.New("connection reset")

	summary, err := f.service.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Scored)
	assert.Equal(t, 1, summary.TransientFailures)
	assert.Equal(t, 0, summary.PermanentFailures)
	assert.Empty(t, f.docs.states())
}

func TestProcessPending_WorklistReadFailure(t *testing.T) {
	f := newFixture(positiveScorer())
	f.docs.byStateFn = func(context.Context, domain.DocumentState, int) ([]*domain.Document, error) {
		return nil, errors.New("db down")
	}

	_, err := f.service.ProcessPending(context.Background())
	require.Error(t, err)
}
