package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Session represents one acquisition run.
type Session struct {
	ID              string    `json:"id"`
	Camera          string    `json:"camera"`
	CalibrationPath string    `json:"calibration_path"`
	FramesDelivered int64     `json:"frames_delivered"`
	Error           string    `json:"error,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	StoppedAt       time.Time `json:"stopped_at,omitempty"`
}

// SessionRepository provides CRUD operations for sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Create inserts a new session row at acquisition start and returns it
// with a fresh ID.
func (r *SessionRepository) Create(camera, calibrationPath string) (*Session, error) {
	session := &Session{
		ID:              uuid.NewString(),
		Camera:          camera,
		CalibrationPath: calibrationPath,
		StartedAt:       time.Now(),
	}

	_, err := r.db.Exec(
		`INSERT INTO sessions (id, camera, calibration_path, started_at)
		 VALUES (?, ?, ?, ?)`,
		session.ID, session.Camera, session.CalibrationPath, session.StartedAt,
	)
	if err != nil {
		return nil, err
	}

	return session, nil
}

// Finish records the final counters of a run. errText is empty for a
// clean stop.
func (r *SessionRepository) Finish(id string, framesDelivered int64, errText string) error {
	res, err := r.db.Exec(
		`UPDATE sessions SET frames_delivered = ?, error = ?, stopped_at = ?
		 WHERE id = ?`,
		framesDelivered, errText, time.Now(), id,
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	session := &Session{}
	var stopped sql.NullTime

	err := r.db.QueryRow(
		`SELECT id, camera, calibration_path, frames_delivered, error, started_at, stopped_at
		 FROM sessions WHERE id = ?`,
		id,
	).Scan(&session.ID, &session.Camera, &session.CalibrationPath,
		&session.FramesDelivered, &session.Error, &session.StartedAt, &stopped)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if stopped.Valid {
		session.StoppedAt = stopped.Time
	}
	return session, nil
}

// List retrieves all sessions, most recent first.
func (r *SessionRepository) List() ([]*Session, error) {
	rows, err := r.db.Query(
		`SELECT id, camera, calibration_path, frames_delivered, error, started_at, stopped_at
		 FROM sessions ORDER BY started_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		session := &Session{}
		var stopped sql.NullTime
		if err := rows.Scan(&session.ID, &session.Camera, &session.CalibrationPath,
			&session.FramesDelivered, &session.Error, &session.StartedAt, &stopped); err != nil {
			return nil, err
		}
		if stopped.Valid {
			session.StoppedAt = stopped.Time
		}
		sessions = append(sessions, session)
	}

	return sessions, rows.Err()
}
