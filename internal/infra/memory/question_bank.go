package memory

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"trivia-session-service/internal/domain"
)

// QuestionLoader fetches the full question bank from a backing store.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context) ([]domain.Question, error)
}

// QuestionBank caches the validated bank with a TTL to avoid repeated store hits.
type QuestionBank struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	logger zerolog.Logger

	mu        sync.RWMutex
	rnd       *rand.Rand
	questions []domain.Question
	expiresAt time.Time
	loaded    bool
}

func NewQuestionBank(loader QuestionLoader, ttl time.Duration, logger zerolog.Logger) *QuestionBank {
	return &QuestionBank{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		logger: logger.With().Str("component", "question_bank").Logger(),
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// List returns the cached bank, reloading it once the TTL has passed. A ttl <= 0 caches forever.
func (b *QuestionBank) List(ctx context.Context) ([]domain.Question, error) {
	if qs, ok := b.cached(); ok {
		return qs, nil
	}

	result, err, _ := b.sf.Do("bank", func() (interface{}, error) {
		if qs, ok := b.cached(); ok {
			return qs, nil
		}
		raw, err := b.loader.LoadQuestions(ctx)
		if err != nil {
			return nil, err
		}
		qs := b.validate(raw)

		b.mu.Lock()
		b.questions = qs
		b.loaded = true
		b.expiresAt = b.clock().Add(b.ttlWithJitter())
		b.mu.Unlock()
		b.logger.Info().Int("questions", len(qs)).Msg("question bank loaded")
		return qs, nil
	})
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	return result.([]domain.Question), nil
}

func (b *QuestionBank) cached() ([]domain.Question, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.loaded {
		return nil, false
	}
	if b.ttl > 0 && !b.expiresAt.After(b.clock()) {
		return nil, false
	}
	return b.questions, true
}

// validate drops malformed questions and repeated ids. Duplicate option text is allowed
// but logged, since the answer key is tracked by position.
func (b *QuestionBank) validate(raw []domain.Question) []domain.Question {
	out := make([]domain.Question, 0, len(raw))
	seen := make(map[int]struct{}, len(raw))
	for _, q := range raw {
		if err := q.Validate(); err != nil {
			b.logger.Warn().Int("question_id", q.ID).Int("options", len(q.Options)).Msg("skipping invalid question")
			continue
		}
		if _, dup := seen[q.ID]; dup {
			b.logger.Warn().Int("question_id", q.ID).Msg("skipping repeated question id")
			continue
		}
		if q.HasDuplicateOptions() {
			b.logger.Warn().Int("question_id", q.ID).Msg("question has duplicate option text")
		}
		seen[q.ID] = struct{}{}
		out = append(out, q)
	}
	return out
}

func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	// up to 10% jitter so replicas do not reload together
	jitterMax := int64(b.ttl) / 10
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}

// StaticQuestionLoader serves a fixed slice (tests and demos).
type StaticQuestionLoader struct {
	questions []domain.Question
}

func NewStaticQuestionLoader(questions []domain.Question) *StaticQuestionLoader {
	return &StaticQuestionLoader{questions: questions}
}

func (l *StaticQuestionLoader) LoadQuestions(context.Context) ([]domain.Question, error) {
	if len(l.questions) == 0 {
		return nil, domain.ErrEmptyQuestionBank
	}
	out := make([]domain.Question, len(l.questions))
	copy(out, l.questions)
	return out, nil
}

// FileQuestionLoader reads a YAML question file on every load.
type FileQuestionLoader struct {
	path string
}

func NewFileQuestionLoader(path string) *FileQuestionLoader {
	return &FileQuestionLoader{path: path}
}

func (l *FileQuestionLoader) LoadQuestions(context.Context) ([]domain.Question, error) {
	return ReadQuestionFile(l.path)
}

type questionFile struct {
	Questions []domain.Question `yaml:"questions"`
}

// ReadQuestionFile parses a YAML document with a top-level `questions` list.
func ReadQuestionFile(path string) ([]domain.Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read question file: %w", err)
	}
	var doc questionFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse question file %s: %w", path, err)
	}
	if len(doc.Questions) == 0 {
		return nil, domain.ErrEmptyQuestionBank
	}
	return doc.Questions, nil
}
