// Package categorize suggests a category for a transaction from category
// keywords, the user's own corrections and, optionally, an LLM.
package categorize

import (
	"context"
	"errors"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iuliailies/moneytrack-backend/internal/domain"
)

type Source string

const (
	SourceKeyword  Source = "keyword"
	SourceHistory  Source = "history"
	SourceMerchant Source = "merchant"
	SourceLLM      Source = "llm"
	SourceNone     Source = "none"
)

const (
	DefaultThreshold   = 0.8
	merchantConfidence = 0.85
	llmConfidence      = 0.7
	minSamples         = 3
	sampleWindow       = 500
)

type Input struct {
	UserID       int64
	Description  string
	MerchantName string
	MerchantID   *int64
	Amount       decimal.Decimal
	Type         domain.TransactionType
	// Threshold below which the slower stages run. Zero means DefaultThreshold.
	Threshold float64
}

type Suggestion struct {
	CategoryID   *int64  `json:"suggested_category_id"`
	CategoryName string  `json:"suggested_category_name"`
	Confidence   float64 `json:"confidence"`
	Source       Source  `json:"source"`
}

type Store interface {
	ListCategories(ctx context.Context, userID int64) ([]domain.Category, error)
	ListTrainingSamples(ctx context.Context, userID int64, limit int) ([]domain.TrainingSample, error)
	GetMerchant(ctx context.Context, userID, id int64) (domain.Merchant, error)
	FindMerchantByName(ctx context.Context, userID int64, name string) (domain.Merchant, error)
}

// LLM picks one of the offered category names for a transaction.
type LLM interface {
	ChooseCategory(ctx context.Context, description, merchant string, categories []string) (string, error)
}

type Service struct {
	store Store
	llm   LLM
	log   zerolog.Logger
}

// NewService builds the categoriser. llm may be nil.
func NewService(store Store, llm LLM, log zerolog.Logger) *Service {
	return &Service{store: store, llm: llm, log: log}
}

// Suggest runs the stages in order and returns the most confident answer.
func (s *Service) Suggest(ctx context.Context, in Input) (Suggestion, error) {
	threshold := in.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	cats, err := s.store.ListCategories(ctx, in.UserID)
	if err != nil {
		return Suggestion{}, err
	}
	cats = usable(cats, in.Type)
	byID := make(map[int64]domain.Category, len(cats))
	for _, c := range cats {
		byID[c.ID] = c
	}

	best := Suggestion{Source: SourceNone}
	text := in.Description + " " + in.MerchantName

	if kw := matchKeywords(text, in.UserID, cats); kw.Confidence > best.Confidence {
		best = kw
	}

	if best.Confidence < threshold {
		samples, err := s.store.ListTrainingSamples(ctx, in.UserID, sampleWindow)
		if err != nil {
			return Suggestion{}, err
		}
		if h := classify(text, samples, byID); h.Confidence > best.Confidence {
			best = h
		}
	}

	if best.Confidence < threshold {
		if m, ok := s.merchantDefault(ctx, in, byID); ok && m.Confidence > best.Confidence {
			best = m
		}
	}

	if best.Confidence < threshold && s.llm != nil && len(cats) > 0 {
		if l, ok := s.askLLM(ctx, in, cats); ok && l.Confidence > best.Confidence {
			best = l
		}
	}
	return best, nil
}

func (s *Service) merchantDefault(ctx context.Context, in Input, byID map[int64]domain.Category) (Suggestion, bool) {
	var (
		m   domain.Merchant
		err error
	)
	switch {
	case in.MerchantID != nil:
		m, err = s.store.GetMerchant(ctx, in.UserID, *in.MerchantID)
	case strings.TrimSpace(in.MerchantName) != "":
		m, err = s.store.FindMerchantByName(ctx, in.UserID, strings.TrimSpace(in.MerchantName))
	default:
		return Suggestion{}, false
	}
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.log.Warn().Err(err).Msg("merchant lookup failed")
		}
		return Suggestion{}, false
	}
	if m.CategoryID == nil {
		return Suggestion{}, false
	}
	c, ok := byID[*m.CategoryID]
	if !ok {
		return Suggestion{}, false
	}
	return suggestion(c, merchantConfidence, SourceMerchant), true
}

func (s *Service) askLLM(ctx context.Context, in Input, cats []domain.Category) (Suggestion, bool) {
	names := make([]string, 0, len(cats))
	byName := make(map[string]domain.Category, len(cats))
	for _, c := range cats {
		key := strings.ToLower(c.Name)
		if _, dup := byName[key]; dup {
			continue
		}
		byName[key] = c
		names = append(names, c.Name)
	}
	answer, err := s.llm.ChooseCategory(ctx, in.Description, in.MerchantName, names)
	if err != nil {
		s.log.Warn().Err(err).Msg("llm categorisation failed")
		return Suggestion{}, false
	}
	c, ok := byName[strings.ToLower(strings.TrimSpace(answer))]
	if !ok {
		return Suggestion{}, false
	}
	return suggestion(c, llmConfidence, SourceLLM), true
}

func suggestion(c domain.Category, confidence float64, src Source) Suggestion {
	id := c.ID
	return Suggestion{CategoryID: &id, CategoryName: c.Name, Confidence: confidence, Source: src}
}

// usable keeps active categories whose type fits the transaction type.
func usable(cats []domain.Category, t domain.TransactionType) []domain.Category {
	out := cats[:0:0]
	for _, c := range cats {
		if !c.IsActive {
			continue
		}
		if t != "" && string(c.Type) != string(t) {
			continue
		}
		out = append(out, c)
	}
	return out
}

var tokenRE = regexp.MustCompile(`[a-z0-9]+`)

// Tokens lower-cases text and splits it into alphanumeric words.
func Tokens(text string) []string {
	return tokenRE.FindAllString(strings.ToLower(text), -1)
}

// matchKeywords scores every category by the distinct keywords found as
// whole words in text.
func matchKeywords(text string, userID int64, cats []domain.Category) Suggestion {
	padded := " " + strings.Join(Tokens(text), " ") + " "

	type score struct {
		cat     domain.Category
		hits    int
		longest int
	}
	var scores []score
	for _, c := range cats {
		sc := score{cat: c}
		for _, kw := range c.KeywordList() {
			norm := strings.Join(Tokens(kw), " ")
			if norm == "" || !strings.Contains(padded, " "+norm+" ") {
				continue
			}
			sc.hits++
			if len(norm) > sc.longest {
				sc.longest = len(norm)
			}
		}
		if sc.hits > 0 {
			scores = append(scores, sc)
		}
	}
	if len(scores) == 0 {
		return Suggestion{Source: SourceNone}
	}

	sort.SliceStable(scores, func(i, j int) bool {
		a, b := scores[i], scores[j]
		if a.hits != b.hits {
			return a.hits > b.hits
		}
		if a.longest != b.longest {
			return a.longest > b.longest
		}
		return a.cat.OwnedBy(userID) && !b.cat.OwnedBy(userID)
	})
	top := scores[0]
	conf := math.Round(math.Min(0.5+0.1*float64(top.hits), 0.95)*100) / 100
	return suggestion(top.cat, conf, SourceKeyword)
}

// classify runs multinomial naive Bayes with Laplace smoothing over the
// user's samples. The confidence is the posterior of the winning class.
func classify(text string, samples []domain.TrainingSample, byID map[int64]domain.Category) Suggestion {
	none := Suggestion{Source: SourceNone}
	if len(samples) < minSamples {
		return none
	}

	docs := map[int64]int{}
	words := map[int64]map[string]int{}
	totals := map[int64]int{}
	vocab := map[string]bool{}
	for _, s := range samples {
		if _, ok := byID[s.CategoryID]; !ok {
			continue
		}
		feats := s.Features
		if len(feats) == 0 {
			feats = Tokens(s.Description + " " + s.MerchantName)
		}
		docs[s.CategoryID]++
		if words[s.CategoryID] == nil {
			words[s.CategoryID] = map[string]int{}
		}
		for _, f := range feats {
			words[s.CategoryID][f]++
			totals[s.CategoryID]++
			vocab[f] = true
		}
	}
	n := 0
	for _, c := range docs {
		n += c
	}
	if n < minSamples {
		return none
	}

	tokens := Tokens(text)
	known := 0
	for _, t := range tokens {
		if vocab[t] {
			known++
		}
	}
	if known == 0 {
		return none
	}

	ids := make([]int64, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	v := float64(len(vocab))
	logp := make([]float64, len(ids))
	maxLog := math.Inf(-1)
	for i, id := range ids {
		lp := math.Log(float64(docs[id]) / float64(n))
		for _, t := range tokens {
			lp += math.Log((float64(words[id][t]) + 1) / (float64(totals[id]) + v))
		}
		logp[i] = lp
		if lp > maxLog {
			maxLog = lp
		}
	}

	var sum float64
	best := 0
	for i := range logp {
		sum += math.Exp(logp[i] - maxLog)
		if logp[i] > logp[best] {
			best = i
		}
	}
	posterior := math.Exp(logp[best]-maxLog) / sum
	return suggestion(byID[ids[best]], math.Round(posterior*1000)/1000, SourceHistory)
}
