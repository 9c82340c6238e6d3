package categorize

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

type fakeStore struct {
	cats      []domain.Category
	samples   []domain.TrainingSample
	merchants []domain.Merchant
}

func (f *fakeStore) ListCategories(context.Context, int64) ([]domain.Category, error) {
	return f.cats, nil
}

func (f *fakeStore) ListTrainingSamples(context.Context, int64, int) ([]domain.TrainingSample, error) {
	return f.samples, nil
}

func (f *fakeStore) GetMerchant(_ context.Context, _ int64, id int64) (domain.Merchant, error) {
	for _, m := range f.merchants {
		if m.ID == id {
			return m, nil
		}
	}
	return domain.Merchant{}, domain.ErrNotFound
}

func (f *fakeStore) FindMerchantByName(_ context.Context, _ int64, name string) (domain.Merchant, error) {
	for _, m := range f.merchants {
		if m.Name == name {
			return m, nil
		}
	}
	return domain.Merchant{}, domain.ErrNotFound
}

type fakeLLM struct {
	answer string
	err    error
	calls  int
}

func (l *fakeLLM) ChooseCategory(context.Context, string, string, []string) (string, error) {
	l.calls++
	return l.answer, l.err
}

func cat(id int64, name string, keywords string, owner *int64) domain.Category {
	return domain.Category{ID: id, Name: name, Type: domain.CategoryExpense, Keywords: keywords, UserID: owner, IsActive: true}
}

func ptr(v int64) *int64 { return &v }

func TestKeywordStage(t *testing.T) {
	store := &fakeStore{cats: []domain.Category{
		cat(1, "Groceries", "keells,cargills,supermarket", nil),
		cat(2, "Transport", "uber,pickme,fuel", nil),
	}}
	svc := NewService(store, nil, zerolog.Nop())

	got, err := svc.Suggest(context.Background(), Input{UserID: 1, Description: "KEELLS supermarket Nugegoda"})
	if err != nil {
		t.Fatal(err)
	}
	if got.CategoryID == nil || *got.CategoryID != 1 || got.Source != SourceKeyword || got.Confidence != 0.7 {
		t.Fatalf("got %+v", got)
	}

	got, _ = svc.Suggest(context.Background(), Input{UserID: 1, Description: "fuelling station"})
	if got.CategoryID != nil {
		t.Errorf("partial word matched: %+v", got)
	}
}

func TestKeywordConfidenceCap(t *testing.T) {
	store := &fakeStore{cats: []domain.Category{cat(1, "Food", "a,b,c,d,e,f,g", nil)}}
	svc := NewService(store, nil, zerolog.Nop())
	got, _ := svc.Suggest(context.Background(), Input{UserID: 1, Description: "a b c d e f g"})
	if got.Confidence != 0.95 {
		t.Errorf("confidence = %v, want 0.95", got.Confidence)
	}
}

func TestKeywordTiePrefersLongerThenOwn(t *testing.T) {
	store := &fakeStore{cats: []domain.Category{
		cat(1, "Dining", "pizza", nil),
		cat(2, "Fast food", "pizza hut", nil),
		cat(3, "My takeaway", "pizza hut", ptr(9)),
	}}
	svc := NewService(store, nil, zerolog.Nop())
	got, _ := svc.Suggest(context.Background(), Input{UserID: 9, Description: "Pizza Hut Colombo"})
	if got.CategoryID == nil || *got.CategoryID != 3 {
		t.Fatalf("got %+v", got)
	}
}

func TestHistoryStage(t *testing.T) {
	store := &fakeStore{
		cats: []domain.Category{cat(1, "Coffee", "", nil), cat(2, "Books", "", nil)},
		samples: []domain.TrainingSample{
			{CategoryID: 1, Description: "java lounge latte"},
			{CategoryID: 1, Description: "java lounge cappuccino"},
			{CategoryID: 1, Description: "barista latte"},
			{CategoryID: 2, Description: "sarasavi bookshop novel"},
		},
	}
	svc := NewService(store, nil, zerolog.Nop())
	got, err := svc.Suggest(context.Background(), Input{UserID: 1, Description: "Java Lounge"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Source != SourceHistory || got.CategoryID == nil || *got.CategoryID != 1 {
		t.Fatalf("got %+v", got)
	}
	if got.Confidence <= 0.5 || got.Confidence > 1 {
		t.Errorf("confidence = %v", got.Confidence)
	}
}

func TestHistoryNeedsSamples(t *testing.T) {
	store := &fakeStore{
		cats:    []domain.Category{cat(1, "Coffee", "", nil)},
		samples: []domain.TrainingSample{{CategoryID: 1, Description: "latte"}, {CategoryID: 1, Description: "latte"}},
	}
	svc := NewService(store, nil, zerolog.Nop())
	got, _ := svc.Suggest(context.Background(), Input{UserID: 1, Description: "latte"})
	if got.Source != SourceNone {
		t.Errorf("two samples must not be enough: %+v", got)
	}
}

func TestMerchantDefault(t *testing.T) {
	store := &fakeStore{
		cats:      []domain.Category{cat(1, "Groceries", "supermarket", nil), cat(2, "Utilities", "", nil)},
		merchants: []domain.Merchant{{ID: 4, Name: "CEB", CategoryID: ptr(2)}},
	}
	svc := NewService(store, nil, zerolog.Nop())
	got, _ := svc.Suggest(context.Background(), Input{UserID: 1, Description: "monthly bill", MerchantName: "CEB"})
	if got.Source != SourceMerchant || got.Confidence != 0.85 || *got.CategoryID != 2 {
		t.Fatalf("got %+v", got)
	}
}

func TestLLMFallback(t *testing.T) {
	store := &fakeStore{cats: []domain.Category{cat(1, "Health", "", nil), cat(2, "Shopping", "", nil)}}
	llm := &fakeLLM{answer: "health"}
	svc := NewService(store, llm, zerolog.Nop())

	got, _ := svc.Suggest(context.Background(), Input{UserID: 1, Description: "Osu Sala pharmacy"})
	if got.Source != SourceLLM || got.Confidence != 0.7 || *got.CategoryID != 1 {
		t.Fatalf("got %+v", got)
	}

	llm.answer = "Casino"
	got, _ = svc.Suggest(context.Background(), Input{UserID: 1, Description: "x"})
	if got.CategoryID != nil {
		t.Errorf("unknown llm answer used: %+v", got)
	}

	llm.answer, llm.err = "", errors.New("quota")
	if _, err := svc.Suggest(context.Background(), Input{UserID: 1, Description: "x"}); err != nil {
		t.Errorf("llm failure must not fail the suggestion: %v", err)
	}
}

func TestLLMSkippedWhenConfident(t *testing.T) {
	store := &fakeStore{cats: []domain.Category{cat(1, "Transport", "uber,ride,trip", nil)}}
	llm := &fakeLLM{answer: "Transport"}
	svc := NewService(store, llm, zerolog.Nop())
	got, _ := svc.Suggest(context.Background(), Input{UserID: 1, Description: "uber ride trip"})
	if got.Source != SourceKeyword || llm.calls != 0 {
		t.Fatalf("llm called although keyword stage reached the threshold: %+v calls=%d", got, llm.calls)
	}
}

func TestParseAnswer(t *testing.T) {
	got, err := parseAnswer("```json\n{\"category\": \" Groceries \"}\n```")
	if err != nil || got != "Groceries" {
		t.Fatalf("got %q %v", got, err)
	}
	if _, err := parseAnswer("Groceries"); err == nil {
		t.Error("plain text accepted")
	}
}
