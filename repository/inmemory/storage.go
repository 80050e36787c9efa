package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"taskapi/internal/domain/errors"
	"taskapi/internal/domain/models"

	"github.com/google/uuid"
)

// Storage is the map-backed fallback used when postgres is unreachable, and
// by tests. Same contract as the db storage, minus durability.
type Storage struct {
	mu    sync.RWMutex
	users map[string]models.User
	tasks map[string]models.Task
}

func NewStorage() *Storage {
	return &Storage{
		users: make(map[string]models.User),
		tasks: make(map[string]models.Task),
	}
}

func (s *Storage) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return errors.ErrUserExists
		}
	}
	user.ID = uuid.New().String()
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = *user
	return nil
}

func (s *Storage) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, errors.ErrUserNotFound
}

func (s *Storage) GetUserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, exists := s.users[id]
	if !exists {
		return nil, errors.ErrUserNotFound
	}
	return &user, nil
}

func (s *Storage) CreateTask(_ context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task.ID = uuid.New().String()
	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now
	s.tasks[task.ID] = *task
	return nil
}

func (s *Storage) GetTaskByID(_ context.Context, id string) (*models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, exists := s.tasks[id]
	if !exists {
		return nil, errors.ErrTaskNotFound
	}
	return &task, nil
}

func (s *Storage) GetTasks(_ context.Context, userID string, completed *bool) ([]models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tasks := []models.Task{}
	for _, t := range s.tasks {
		if t.UserID != userID {
			continue
		}
		if completed != nil && t.Completed != *completed {
			continue
		}
		tasks = append(tasks, t)
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	return tasks, nil
}

func (s *Storage) UpdateTask(_ context.Context, id string, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prior, exists := s.tasks[id]
	if !exists {
		return errors.ErrTaskNotFound
	}
	task.ID = id
	task.UserID = prior.UserID
	task.CreatedAt = prior.CreatedAt
	task.UpdatedAt = time.Now().UTC()
	s.tasks[id] = *task
	return nil
}

func (s *Storage) DeleteTask(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[id]; !exists {
		return errors.ErrTaskNotFound
	}
	delete(s.tasks, id)
	return nil
}
