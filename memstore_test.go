package main

import (
	"sort"
	"sync"
	"time"
)

// memStore is an in-memory Store used by the handler tests. It mirrors the
// semantics of PostgresStore: sentinel errors, newest-first listing and
// store-owned timestamps.
type memStore struct {
	mu            sync.Mutex
	users         map[int64]User
	tokens        map[string]int64
	expenses      map[int64]Expense
	nextUserID    int64
	nextExpenseID int64
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[int64]User{},
		tokens:   map[string]int64{},
		expenses: map[int64]Expense{},
	}
}

func (m *memStore) CreateUser(name, email, passwordHash string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == email {
			return User{}, ErrDuplicateEmail
		}
	}

	m.nextUserID++
	now := time.Now()
	u := User{
		ID:           m.nextUserID,
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *memStore) GetUserByEmail(email string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (m *memStore) GetUserByID(id int64) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *memStore) CreateToken(t Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tokens[t.Token] = t.UserID
	return nil
}

func (m *memStore) GetUserByToken(token string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	userID, ok := m.tokens[token]
	if !ok {
		return User{}, ErrNotFound
	}
	u, ok := m.users[userID]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *memStore) DeleteUserTokens(userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for token, id := range m.tokens {
		if id == userID {
			delete(m.tokens, token)
		}
	}
	return nil
}

func (m *memStore) CreateExpense(e Expense) (Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextExpenseID++
	now := time.Now()
	e.ID = m.nextExpenseID
	e.CreatedAt = now
	e.UpdatedAt = now
	m.expenses[e.ID] = e
	return e, nil
}

func (m *memStore) GetExpense(id int64) (Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.expenses[id]
	if !ok {
		return Expense{}, ErrNotFound
	}
	return e, nil
}

func (m *memStore) ListExpenses(userID int64, limit, offset int) ([]Expense, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	owned := []Expense{}
	for _, e := range m.expenses {
		if e.UserID == userID {
			owned = append(owned, e)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		if !owned[i].CreatedAt.Equal(owned[j].CreatedAt) {
			return owned[i].CreatedAt.After(owned[j].CreatedAt)
		}
		return owned[i].ID > owned[j].ID
	})

	total := len(owned)
	if offset >= total {
		return []Expense{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return owned[offset:end], total, nil
}

func (m *memStore) UpdateExpense(e Expense) (Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.expenses[e.ID]
	if !ok {
		return Expense{}, ErrNotFound
	}
	stored.Description = e.Description
	stored.Date = e.Date
	stored.Value = e.Value
	stored.UpdatedAt = time.Now()
	m.expenses[e.ID] = stored
	return stored, nil
}

func (m *memStore) DeleteExpense(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.expenses[id]; !ok {
		return ErrNotFound
	}
	delete(m.expenses, id)
	return nil
}

// recordingPublisher captures notifications for assertions and can be told
// to fail every publish.
type recordingPublisher struct {
	mu            sync.Mutex
	notifications []Notification
	err           error
}

func (p *recordingPublisher) Publish(notification Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return p.err
	}
	p.notifications = append(p.notifications, notification)
	return nil
}

func (p *recordingPublisher) published() []Notification {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Notification, len(p.notifications))
	copy(out, p.notifications)
	return out
}
