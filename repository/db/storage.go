package db

import (
	"context"
	"log"
	"time"

	"taskapi/internal/domain/errors"
	"taskapi/internal/domain/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const opTimeout = 15 * time.Second

// Storage keeps one pgx connection and named prepared statements for every
// query it runs. Task deletion is a soft-delete flag; flagged rows are
// invisible to all reads and flushed for real once the delete queue fills.
type Storage struct {
	conn                 *pgx.Conn
	prepCreateUser       string
	prepGetUserByEmail   string
	prepGetUserByID      string
	prepCreateTask       string
	prepGetTaskByID      string
	prepGetTasks         string
	prepGetTasksByStatus string
	prepUpdateTask       string
	prepDeleteTask       string
	deleteQueue          chan struct{}
}

func NewStorage(connStr string) (*Storage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		log.Println("[ERROR] Failed to connect to the database:", err)
		return nil, err
	}

	s := &Storage{
		conn:                 conn,
		prepCreateUser:       `INSERT INTO users (id, email, password, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		prepGetUserByEmail:   `SELECT id, email, password, created_at, updated_at FROM users WHERE email = $1`,
		prepGetUserByID:      `SELECT id, email, password, created_at, updated_at FROM users WHERE id = $1`,
		prepCreateTask:       `INSERT INTO tasks (id, title, description, completed, user_id, deleted, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, false, $6, $7)`,
		prepGetTaskByID:      `SELECT id, title, description, completed, user_id, created_at, updated_at FROM tasks WHERE id = $1 AND deleted = false`,
		prepGetTasks:         `SELECT id, title, description, completed, user_id, created_at, updated_at FROM tasks WHERE user_id = $1 AND deleted = false ORDER BY created_at DESC`,
		prepGetTasksByStatus: `SELECT id, title, description, completed, user_id, created_at, updated_at FROM tasks WHERE user_id = $1 AND completed = $2 AND deleted = false ORDER BY created_at DESC`,
		prepUpdateTask:       `UPDATE tasks SET title = $1, description = $2, completed = $3, updated_at = $4 WHERE id = $5 AND deleted = false`,
		prepDeleteTask:       `UPDATE tasks SET deleted = true, updated_at = $2 WHERE id = $1 AND deleted = false`,
		deleteQueue:          make(chan struct{}, 10),
	}
	log.Println("[SUCCESS] Database connection established")
	return s, nil
}

func (s *Storage) Close(ctx context.Context) error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close(ctx)
}

func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	user.ID = uuid.New().String()
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	stmt, err := s.conn.Prepare(ctx, "create_user", s.prepCreateUser)
	if err != nil {
		log.Println("[ERROR] Failed to prepare the create user statement:", err)
		return err
	}
	_, err = s.conn.Exec(ctx, stmt.Name, user.ID, user.Email, user.Password, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		// The unique index on email is the only constraint that can
		// reject this insert.
		log.Println("[WARN] Failed to create user:", err)
		return errors.ErrUserExists
	}
	log.Println("[SUCCESS] User created:", user.ID)
	return nil
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	stmt, err := s.conn.Prepare(ctx, "get_user_by_email", s.prepGetUserByEmail)
	if err != nil {
		log.Println("[ERROR] Failed to prepare the get user by email statement:", err)
		return nil, err
	}
	row := s.conn.QueryRow(ctx, stmt.Name, email)
	user := &models.User{}
	if err := row.Scan(&user.ID, &user.Email, &user.Password, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.ErrUserNotFound
		}
		log.Println("[ERROR] Failed to read user:", err)
		return nil, err
	}
	return user, nil
}

func (s *Storage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	stmt, err := s.conn.Prepare(ctx, "get_user_by_id", s.prepGetUserByID)
	if err != nil {
		log.Println("[ERROR] Failed to prepare the get user by id statement:", err)
		return nil, err
	}
	row := s.conn.QueryRow(ctx, stmt.Name, id)
	user := &models.User{}
	if err := row.Scan(&user.ID, &user.Email, &user.Password, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.ErrUserNotFound
		}
		log.Println("[ERROR] Failed to read user:", err)
		return nil, err
	}
	return user, nil
}

func (s *Storage) CreateTask(ctx context.Context, task *models.Task) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	task.ID = uuid.New().String()
	task.Deleted = false
	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now
	stmt, err := s.conn.Prepare(ctx, "create_task", s.prepCreateTask)
	if err != nil {
		log.Println("[ERROR] Failed to prepare the create task statement:", err)
		return err
	}
	_, err = s.conn.Exec(ctx, stmt.Name, task.ID, task.Title, task.Description, task.Completed, task.UserID, task.CreatedAt, task.UpdatedAt)
	if err != nil {
		log.Println("[ERROR] Failed to create task:", err)
		return err
	}
	log.Println("[SUCCESS] Task created:", task.ID)
	return nil
}

func (s *Storage) GetTaskByID(ctx context.Context, id string) (*models.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	stmt, err := s.conn.Prepare(ctx, "get_task_by_id", s.prepGetTaskByID)
	if err != nil {
		log.Println("[ERROR] Failed to prepare the get task by id statement:", err)
		return nil, err
	}
	row := s.conn.QueryRow(ctx, stmt.Name, id)
	task := &models.Task{}
	if err := row.Scan(&task.ID, &task.Title, &task.Description, &task.Completed, &task.UserID, &task.CreatedAt, &task.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.ErrTaskNotFound
		}
		log.Println("[ERROR] Failed to read task:", err)
		return nil, err
	}
	return task, nil
}

// GetTasks lists the owner's live tasks, newest first. A non-nil completed
// narrows the listing to that state.
func (s *Storage) GetTasks(ctx context.Context, userID string, completed *bool) ([]models.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var rows pgx.Rows
	if completed == nil {
		stmt, err := s.conn.Prepare(ctx, "get_tasks", s.prepGetTasks)
		if err != nil {
			log.Println("[ERROR] Failed to prepare the get tasks statement:", err)
			return nil, err
		}
		rows, err = s.conn.Query(ctx, stmt.Name, userID)
		if err != nil {
			log.Println("[ERROR] Failed to list tasks:", err)
			return nil, err
		}
	} else {
		stmt, err := s.conn.Prepare(ctx, "get_tasks_by_status", s.prepGetTasksByStatus)
		if err != nil {
			log.Println("[ERROR] Failed to prepare the get tasks by status statement:", err)
			return nil, err
		}
		rows, err = s.conn.Query(ctx, stmt.Name, userID, *completed)
		if err != nil {
			log.Println("[ERROR] Failed to list tasks:", err)
			return nil, err
		}
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		task := models.Task{}
		if err := rows.Scan(&task.ID, &task.Title, &task.Description, &task.Completed, &task.UserID, &task.CreatedAt, &task.UpdatedAt); err != nil {
			log.Println("[ERROR] Failed to scan task row:", err)
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func (s *Storage) UpdateTask(ctx context.Context, id string, task *models.Task) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	task.UpdatedAt = time.Now().UTC()
	stmt, err := s.conn.Prepare(ctx, "update_task", s.prepUpdateTask)
	if err != nil {
		log.Println("[ERROR] Failed to prepare the update task statement:", err)
		return err
	}
	ct, err := s.conn.Exec(ctx, stmt.Name, task.Title, task.Description, task.Completed, task.UpdatedAt, id)
	if err != nil {
		log.Println("[ERROR] Failed to update task:", err)
		return err
	}
	if ct.RowsAffected() == 0 {
		return errors.ErrTaskNotFound
	}
	log.Println("[SUCCESS] Task updated:", id)
	return nil
}

func (s *Storage) DeleteTask(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	stmt, err := s.conn.Prepare(ctx, "delete_task_soft", s.prepDeleteTask)
	if err != nil {
		log.Println("[ERROR] Failed to prepare the delete task statement:", err)
		return err
	}
	ct, err := s.conn.Exec(ctx, stmt.Name, id, time.Now().UTC())
	if err != nil {
		log.Println("[ERROR] Failed to flag task as deleted:", err)
		return err
	}
	if ct.RowsAffected() == 0 {
		return errors.ErrTaskNotFound
	}
	log.Println("[SUCCESS] Task flagged as deleted:", id)
	s.tryEnqueueOrFlush()
	return nil
}

func (s *Storage) tryEnqueueOrFlush() {
	if s.deleteQueue == nil {
		return
	}
	select {
	case s.deleteQueue <- struct{}{}:
	default:
		s.drainDeleteQueue()
		if affected, err := s.hardDeleteAllFlagged(context.Background()); err != nil {
			log.Println("[ERROR] Failed to flush deleted tasks:", err)
		} else if affected > 0 {
			log.Println("[SUCCESS] Hard-deleted tasks:", affected)
		}
	}
}

func (s *Storage) drainDeleteQueue() {
	if s.deleteQueue == nil {
		return
	}
	for {
		select {
		case <-s.deleteQueue:
		default:
			return
		}
	}
}

func (s *Storage) hardDeleteAllFlagged(ctx context.Context) (int64, error) {
	c, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	tx, err := s.conn.Begin(c)
	if err != nil {
		return 0, err
	}
	ct, err := tx.Exec(c, `DELETE FROM tasks WHERE deleted = true`)
	if err != nil {
		_ = tx.Rollback(c)
		return 0, err
	}
	if err := tx.Commit(c); err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}
