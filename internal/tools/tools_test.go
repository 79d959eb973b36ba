package tools

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sbu-europe/fintalk/internal/domain"
	"github.com/sbu-europe/fintalk/internal/repository"
)

// ---------------------------------------------------------------------------
// search_documents
// ---------------------------------------------------------------------------

type fakeEmbedder struct {
	vec  []float32
	err  error
	text string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.text = text
	return f.vec, f.err
}

type fakeSearcher struct {
	hits  []domain.SearchHit
	err   error
	limit int
}

func (f *fakeSearcher) Search(_ context.Context, _ []float32, limit int) ([]domain.SearchHit, error) {
	f.limit = limit
	return f.hits, f.err
}

func TestSearchDocuments_FormatsResults(t *testing.T) {
	emb := &fakeEmbedder{vec: []float32{0.1}}
	store := &fakeSearcher{hits: []domain.SearchHit{
		{Chunk: domain.DocumentChunk{Content: "Personal loans start at 6.9% APR.", Filename: "loans.pdf"}, Distance: 0.25},
		{Chunk: domain.DocumentChunk{Content: "Mortgages"}, Distance: 1},
	}}
	tool, err := NewSearchDocuments(emb, store, 0, nil)
	require.NoError(t, err)

	out, err := tool.Call(context.Background(), map[string]any{"query": " loan rates "})
	require.NoError(t, err)
	require.Equal(t, "loan rates", emb.text)
	require.Equal(t, DefaultTopK, store.limit)
	require.Equal(t,
		"[Result 1]\nContent: Personal loans start at 6.9% APR.\nSource: loans.pdf\nSimilarity: 0.800\n"+
			"\n"+
			"[Result 2]\nContent: Mortgages\nSource: Unknown\nSimilarity: 0.500\n",
		out)
}

func TestSearchDocuments_NoResults(t *testing.T) {
	tool, err := NewSearchDocuments(&fakeEmbedder{vec: []float32{1}}, &fakeSearcher{}, 3, nil)
	require.NoError(t, err)
	out, err := tool.Call(context.Background(), map[string]any{"query": "anything"})
	require.NoError(t, err)
	require.Equal(t, "No relevant documents found for your query.", out)
}

func TestSearchDocuments_Errors(t *testing.T) {
	cases := []struct {
		name    string
		emb     *fakeEmbedder
		store   *fakeSearcher
		input   map[string]any
		wantErr string
	}{
		{"missing query", &fakeEmbedder{}, &fakeSearcher{}, map[string]any{}, "missing required argument"},
		{"non-string query", &fakeEmbedder{}, &fakeSearcher{}, map[string]any{"query": 3}, "must be a string"},
		{"blank query", &fakeEmbedder{}, &fakeSearcher{}, map[string]any{"query": "  "}, "must not be empty"},
		{"embed failure", &fakeEmbedder{err: errors.New("throttled")}, &fakeSearcher{}, map[string]any{"query": "x"}, "throttled"},
		{"search failure", &fakeEmbedder{}, &fakeSearcher{err: errors.New("relation missing")}, map[string]any{"query": "x"}, "relation missing"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tool, err := NewSearchDocuments(tc.emb, tc.store, 5, nil)
			require.NoError(t, err)
			_, err = tool.Call(context.Background(), tc.input)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestSearchDocuments_Spec(t *testing.T) {
	tool, err := NewSearchDocuments(&fakeEmbedder{}, &fakeSearcher{}, 5, nil)
	require.NoError(t, err)
	spec := tool.Spec()
	require.Equal(t, "search_documents", spec.Name)
	require.Equal(t, []string{"query"}, spec.Schema["required"])

	_, err = NewSearchDocuments(nil, &fakeSearcher{}, 5, nil)
	require.Error(t, err)
}

// ---------------------------------------------------------------------------
// block_credit_card / enable_credit_card
// ---------------------------------------------------------------------------

type fakeCards struct {
	holder  domain.Cardholder
	changed bool
	err     error
	phone   string
	status  domain.CardStatus
}

func (f *fakeCards) SetCardStatus(_ context.Context, phone string, status domain.CardStatus) (domain.Cardholder, bool, error) {
	f.phone, f.status = phone, status
	if f.err != nil {
		return domain.Cardholder{}, false, f.err
	}
	h := f.holder
	if f.changed {
		h.CardStatus = status
	}
	return h, f.changed, nil
}

type fakeRecorder struct {
	events []domain.CardEvent
	err    error
}

func (f *fakeRecorder) Record(_ context.Context, evt domain.CardEvent) error {
	f.events = append(f.events, evt)
	return f.err
}

var changedAt = time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

func john(status domain.CardStatus) domain.Cardholder {
	return domain.Cardholder{
		ID: 1, Username: "john_doe", PhoneNumber: "+1234567891",
		CreditCardNumber: "4532-1234-5678-9012", CardStatus: status, UpdatedAt: changedAt,
	}
}

func TestBlockCreditCard_Transition(t *testing.T) {
	store := &fakeCards{holder: john(domain.CardStatusActive), changed: true}
	events := &fakeRecorder{}
	tool, err := NewBlockCreditCard(store, WithEventRecorder(events))
	require.NoError(t, err)

	out, err := tool.Call(context.Background(), map[string]any{"phone_number": "1234567891"})
	require.NoError(t, err)
	require.Equal(t, "+1234567891", store.phone)
	require.Equal(t, domain.CardStatusBlocked, store.status)
	require.Equal(t,
		"Successfully blocked credit card for phone number +1234567891.\n"+
			"Card ending in: 9012\n"+
			"Username: john_doe\n"+
			"Blocked at: 2026-03-01T12:30:00Z",
		out)

	require.Len(t, events.events, 1)
	require.Equal(t, "block", events.events[0].Action)
	require.Equal(t, domain.CardStatusBlocked, events.events[0].Status)
	require.Equal(t, "+1234567891", events.events[0].PhoneNumber)
}

func TestEnableCreditCard_Transition(t *testing.T) {
	store := &fakeCards{holder: john(domain.CardStatusBlocked), changed: true}
	tool, err := NewEnableCreditCard(store)
	require.NoError(t, err)

	out, err := tool.Call(context.Background(), map[string]any{"phone_number": "+1234567891"})
	require.NoError(t, err)
	require.Equal(t, domain.CardStatusActive, store.status)
	require.Contains(t, out, "Successfully enabled credit card for phone number +1234567891.")
	require.Contains(t, out, "Enabled at: 2026-03-01T12:30:00Z")
}

func TestCardTools_AlreadyInState(t *testing.T) {
	events := &fakeRecorder{}
	block, err := NewBlockCreditCard(&fakeCards{holder: john(domain.CardStatusBlocked)}, WithEventRecorder(events))
	require.NoError(t, err)
	out, err := block.Call(context.Background(), map[string]any{"phone_number": "+1234567891"})
	require.NoError(t, err)
	require.Equal(t, "Credit card for phone number +1234567891 is already blocked.\nCard ending in: 9012\nUsername: john_doe", out)
	require.Empty(t, events.events)

	enable, err := NewEnableCreditCard(&fakeCards{holder: john(domain.CardStatusActive)})
	require.NoError(t, err)
	out, err = enable.Call(context.Background(), map[string]any{"phone_number": "+1234567891"})
	require.NoError(t, err)
	require.Contains(t, out, "is already active.")
}

func TestCardTools_NotFound(t *testing.T) {
	tool, err := NewBlockCreditCard(&fakeCards{err: repository.ErrCardholderNotFound})
	require.NoError(t, err)
	out, err := tool.Call(context.Background(), map[string]any{"phone_number": "5550000"})
	require.NoError(t, err)
	require.Equal(t, "No cardholder found with phone number: +5550000", out)
}

func TestCardTools_StoreError(t *testing.T) {
	tool, err := NewEnableCreditCard(&fakeCards{err: errors.New("connection refused")})
	require.NoError(t, err)
	_, err = tool.Call(context.Background(), map[string]any{"phone_number": "+1"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "enable credit card")
}

func TestCardTools_RecorderFailureIsIgnored(t *testing.T) {
	store := &fakeCards{holder: john(domain.CardStatusActive), changed: true}
	tool, err := NewBlockCreditCard(store, WithEventRecorder(&fakeRecorder{err: errors.New("table missing")}))
	require.NoError(t, err)
	out, err := tool.Call(context.Background(), map[string]any{"phone_number": "+1234567891"})
	require.NoError(t, err)
	require.Contains(t, out, "Successfully blocked")
}

func TestCardTools_MissingPhone(t *testing.T) {
	tool, err := NewBlockCreditCard(&fakeCards{})
	require.NoError(t, err)
	_, err = tool.Call(context.Background(), map[string]any{})
	require.Error(t, err)

	_, err = NewEnableCreditCard(nil)
	require.Error(t, err)
}

func TestNormalizePhone(t *testing.T) {
	require.Equal(t, "+1234", NormalizePhone(" 1234 "))
	require.Equal(t, "+1234", NormalizePhone("+1234"))
	require.Equal(t, "", NormalizePhone(""))
}
