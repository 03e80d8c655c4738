package predictions

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidPrediction = errors.New("question id and choice are required")
	ErrQuestionResolved  = errors.New("question already resolved")
)

// Prediction is one user's answer to a question.
type Prediction struct {
	ID          string    `json:"id"`
	QuestionID  string    `json:"questionId"`
	UserID      string    `json:"userId"`
	Choice      string    `json:"choice"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Consensus is the distribution of answers to one question.
type Consensus struct {
	QuestionID  string             `json:"questionId"`
	Total       int                `json:"total"`
	Counts      map[string]int     `json:"counts"`
	Percentages map[string]float64 `json:"percentages"`
}

// Resolution is the outcome of a resolved question.
type Resolution struct {
	QuestionID string    `json:"questionId"`
	Outcome    string    `json:"outcome"`
	ResolvedAt time.Time `json:"resolvedAt"`
	Winners    []string  `json:"winners"`
	Total      int       `json:"total"`
}

type question struct {
	byUser     map[string]Prediction
	resolution *Resolution
}

// Book keeps predictions in memory, one per user per question.
type Book struct {
	mu        sync.RWMutex
	questions map[string]*question
}

func NewBook() *Book {
	return &Book{questions: make(map[string]*question)}
}

// Submit records or replaces userID's answer to questionID.
func (b *Book) Submit(questionID, userID, choice string, now time.Time) (Prediction, Consensus, error) {
	questionID = strings.TrimSpace(questionID)
	choice = strings.TrimSpace(choice)
	if questionID == "" || choice == "" || userID == "" {
		return Prediction{}, Consensus{}, ErrInvalidPrediction
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	q := b.question(questionID)
	if q.resolution != nil {
		return Prediction{}, Consensus{}, fmt.Errorf("%w: %s", ErrQuestionResolved, questionID)
	}
	p := Prediction{
		ID:          uuid.New().String(),
		QuestionID:  questionID,
		UserID:      userID,
		Choice:      choice,
		SubmittedAt: now,
	}
	q.byUser[userID] = p
	return p, consensus(questionID, q), nil
}

// Resolve closes questionID with outcome and returns the users who got it right.
func (b *Book) Resolve(questionID, outcome string, at time.Time) (Resolution, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	q := b.question(questionID)
	if q.resolution != nil {
		return *q.resolution, fmt.Errorf("%w: %s", ErrQuestionResolved, questionID)
	}
	winners := make([]string, 0)
	for userID, p := range q.byUser {
		if strings.EqualFold(p.Choice, outcome) {
			winners = append(winners, userID)
		}
	}
	sort.Strings(winners)

	res := Resolution{
		QuestionID: questionID,
		Outcome:    outcome,
		ResolvedAt: at,
		Winners:    winners,
		Total:      len(q.byUser),
	}
	q.resolution = &res
	return res, nil
}

// Consensus returns the current distribution for questionID.
func (b *Book) Consensus(questionID string) Consensus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	q, ok := b.questions[questionID]
	if !ok {
		return Consensus{QuestionID: questionID, Counts: map[string]int{}, Percentages: map[string]float64{}}
	}
	return consensus(questionID, q)
}

// ForUser lists userID's predictions ordered by submission time.
func (b *Book) ForUser(userID string) []Prediction {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Prediction, 0)
	for _, q := range b.questions {
		if p, ok := q.byUser[userID]; ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	return out
}

// must hold b.mu for writing
func (b *Book) question(id string) *question {
	q, ok := b.questions[id]
	if !ok {
		q = &question{byUser: make(map[string]Prediction)}
		b.questions[id] = q
	}
	return q
}

func consensus(questionID string, q *question) Consensus {
	c := Consensus{
		QuestionID:  questionID,
		Total:       len(q.byUser),
		Counts:      make(map[string]int),
		Percentages: make(map[string]float64),
	}
	for _, p := range q.byUser {
		c.Counts[p.Choice]++
	}
	if c.Total == 0 {
		return c
	}
	for choice, n := range c.Counts {
		c.Percentages[choice] = float64(n) * 100 / float64(c.Total)
	}
	return c
}
