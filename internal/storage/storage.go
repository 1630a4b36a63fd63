package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/keshon/datastore"
)

const (
	thoughtLogLimit = 500
	expenseLogLimit = 2000

	saveInterval = 10 * time.Second

	keyState    = "state"
	keyThoughts = "thoughts"
	keyExpenses = "expenses"
)

// Storage persists persona state, the thought log, and the expense ledger
// in a single JSON-backed datastore file.
type Storage struct {
	ds *datastore.DataStore
}

// PersonaState is the single long-lived state row for the persona.
type PersonaState struct {
	Mood          string    `json:"mood"`
	DaysAlive     int       `json:"days_alive"`
	TotalThoughts int       `json:"total_thoughts"`
	TotalRevenue  float64   `json:"total_revenue"`
	CreatedAt     time.Time `json:"created_at"`
}

// Thought is one produced text with its trigger context.
type Thought struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	Mood        string    `json:"mood"`
	Trigger     string    `json:"trigger"`
	PublishedID string    `json:"published_id,omitempty"`
	At          time.Time `json:"at"`
}

// Expense is one ledger entry for a paid operation.
type Expense struct {
	Amount float64   `json:"amount"`
	Label  string    `json:"label"`
	At     time.Time `json:"at"`
}

// New opens the store at filePath. ctx bounds the datastore's background
// save goroutine; a final write happens on Close.
func New(ctx context.Context, filePath string) (*Storage, error) {
	ds, err := datastore.New(ctx, filePath, datastore.WithSaveInterval(saveInterval))
	if err != nil {
		return nil, err
	}
	return &Storage{ds: ds}, nil
}

// Close flushes the store to disk and rejects further writes.
func (s *Storage) Close() error {
	return s.ds.Close()
}

// State returns the persona state row, creating a fresh one if missing.
func (s *Storage) State() (*PersonaState, error) {
	var st PersonaState
	ok, err := s.ds.Get(keyState, &st)
	if err != nil {
		return nil, err
	}
	if !ok {
		st = PersonaState{Mood: "neutral", CreatedAt: time.Now().UTC()}
		if err := s.ds.Set(keyState, &st); err != nil {
			return nil, err
		}
	}
	return &st, nil
}

func (s *Storage) SaveState(st *PersonaState) error {
	if st == nil {
		return nil
	}
	return s.ds.Set(keyState, st)
}

func (s *Storage) thoughts() ([]Thought, error) {
	var list []Thought
	if _, err := s.ds.Get(keyThoughts, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// AppendThought stores a thought and bumps the total counter. The log is
// capped; old entries fall off the front.
func (s *Storage) AppendThought(t Thought) error {
	list, err := s.thoughts()
	if err != nil {
		return err
	}
	list = append(list, t)
	if len(list) > thoughtLogLimit {
		list = list[len(list)-thoughtLogLimit:]
	}
	if err := s.ds.Set(keyThoughts, list); err != nil {
		return err
	}

	st, err := s.State()
	if err != nil {
		return err
	}
	st.TotalThoughts++
	return s.SaveState(st)
}

// RecentThoughts returns up to n thoughts, most recent first.
func (s *Storage) RecentThoughts(n int) ([]Thought, error) {
	list, err := s.thoughts()
	if err != nil {
		return nil, err
	}
	out := make([]Thought, 0, n)
	for i := len(list) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, list[i])
	}
	return out, nil
}

// MarkPublished records the external id for an already-stored thought.
func (s *Storage) MarkPublished(thoughtID, externalID string) error {
	list, err := s.thoughts()
	if err != nil {
		return err
	}
	for i := range list {
		if list[i].ID == thoughtID {
			list[i].PublishedID = externalID
			return s.ds.Set(keyThoughts, list)
		}
	}
	return fmt.Errorf("thought %s not found", thoughtID)
}

// AppendExpense adds one entry to the expense ledger.
func (s *Storage) AppendExpense(amount float64, label string, at time.Time) error {
	var list []Expense
	if _, err := s.ds.Get(keyExpenses, &list); err != nil {
		return err
	}
	list = append(list, Expense{Amount: amount, Label: label, At: at})
	if len(list) > expenseLogLimit {
		list = list[len(list)-expenseLogLimit:]
	}
	return s.ds.Set(keyExpenses, list)
}

// ExpensesSince sums expense amounts recorded at or after t.
func (s *Storage) ExpensesSince(t time.Time) (float64, error) {
	var list []Expense
	if _, err := s.ds.Get(keyExpenses, &list); err != nil {
		return 0, err
	}
	var sum float64
	for _, e := range list {
		if !e.At.Before(t) {
			sum += e.Amount
		}
	}
	return sum, nil
}
