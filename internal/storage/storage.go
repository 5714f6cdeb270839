package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"telegram-support-bot/internal/models"
)

//go:embed schema.sql
var ddl embed.FS

// ErrNotFound is returned for a user that was never upserted.
var ErrNotFound = errors.New("storage: user not found")

// EngagedAfter is the number of user messages that promotes a user from
// onboarding to engaged.
const EngagedAfter = 5

// Criteria selects users for outreach.
type Criteria func(u models.User) bool

// PatternSlot selects which half of a MoodPattern a sample goes to.
type PatternSlot string

const (
	SlotMorning PatternSlot = "morning"
	SlotEvening PatternSlot = "evening"
)

// DB is the user state store. Every write for one user runs inside a single
// transaction while holding that user's lock, so writes for the same user are
// applied one at a time in the order they acquire the lock.
type DB struct {
	*sql.DB
	locks *userLocks
	now   func() time.Time
}

// New opens (or creates) the sqlite database at path and applies the schema.
func New(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("storage: mkdir: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("storage: open: %w", err)
	}
	// one writer is plenty for a chat bot and keeps sqlite free of SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: ping: %w", err)
	}
	if err = migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: migrate: %w", err)
	}
	return &DB{DB: db, locks: newUserLocks(), now: time.Now}, nil
}

func migrate(db *sql.DB) error {
	b, err := ddl.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = db.Exec(string(b))
	return err
}

// SetClock replaces the time source. Tests only.
func (d *DB) SetClock(now func() time.Time) { d.now = now }

func (d *DB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// ---------- users -----------------------------------------------------------

const userCols = `id, display_name, stage, mood_score, created_at, last_interaction_at, settings`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(r rowScanner) (*models.User, error) {
	var (
		u                 models.User
		stage, settings   string
		created, lastSeen int64
	)
	if err := r.Scan(&u.ID, &u.DisplayName, &stage, &u.MoodScore, &created, &lastSeen, &settings); err != nil {
		return nil, err
	}
	u.Stage = models.Stage(stage)
	u.CreatedAt = time.UnixMilli(created)
	u.LastInteractionAt = time.UnixMilli(lastSeen)
	u.Settings = map[string]string{}
	if settings != "" {
		if err := json.Unmarshal([]byte(settings), &u.Settings); err != nil {
			return nil, fmt.Errorf("settings of %d: %w", u.ID, err)
		}
	}
	return &u, nil
}

// UpsertUser creates the user or, when it exists, updates the display name
// only. Stage, mood and history are preserved.
func (d *DB) UpsertUser(ctx context.Context, id int64, displayName string) (*models.User, error) {
	defer d.locks.lock(id)()

	now := d.now().UnixMilli()
	var u *models.User
	err := d.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
            INSERT INTO users (id, display_name, stage, mood_score, created_at, last_interaction_at)
            VALUES (?,?,?,?,?,?)
            ON CONFLICT(id) DO UPDATE SET display_name=excluded.display_name
        `, id, displayName, models.StageOnboarding, models.NeutralMood, now, now); err != nil {
			return err
		}
		var err error
		u, err = scanUser(tx.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id=?`, id))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("storage: upsert user %d: %w", id, err)
	}
	return u, nil
}

// EnsureUser creates the user when missing and leaves an existing row as is.
func (d *DB) EnsureUser(ctx context.Context, id int64, displayName string) error {
	defer d.locks.lock(id)()

	now := d.now().UnixMilli()
	_, err := d.ExecContext(ctx, `
        INSERT INTO users (id, display_name, stage, mood_score, created_at, last_interaction_at)
        VALUES (?,?,?,?,?,?)
        ON CONFLICT(id) DO NOTHING
    `, id, displayName, models.StageOnboarding, models.NeutralMood, now, now)
	if err != nil {
		return fmt.Errorf("storage: ensure user %d: %w", id, err)
	}
	return nil
}

// GetUser returns ErrNotFound for unknown ids.
func (d *DB) GetUser(ctx context.Context, id int64) (*models.User, error) {
	u, err := scanUser(d.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get user %d: %w", id, err)
	}
	return u, nil
}

// ListUsersForOutreach returns users accepted by c, ordered by id.
func (d *DB) ListUsersForOutreach(ctx context.Context, c Criteria) ([]models.User, error) {
	rows, err := d.QueryContext(ctx, `SELECT `+userCols+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("storage: list users: %w", err)
	}
	defer rows.Close()

	var res []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: list users: %w", err)
		}
		if c == nil || c(*u) {
			res = append(res, *u)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: list users: %w", err)
	}
	return res, nil
}

// SetMood stores an explicit mood check-in. It does not append a message.
func (d *DB) SetMood(ctx context.Context, userID int64, mood int) error {
	defer d.locks.lock(userID)()

	res, err := d.ExecContext(ctx, `UPDATE users SET mood_score=? WHERE id=?`, models.ClampMood(mood), userID)
	if err != nil {
		return fmt.Errorf("storage: set mood %d: %w", userID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateSettings applies fn to the user's settings map and stores the result.
func (d *DB) UpdateSettings(ctx context.Context, userID int64, fn func(settings map[string]string)) (map[string]string, error) {
	defer d.locks.lock(userID)()

	var out map[string]string
	err := d.inTx(ctx, func(tx *sql.Tx) error {
		u, err := scanUser(tx.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id=?`, userID))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		fn(u.Settings)
		b, err := json.Marshal(u.Settings)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE users SET settings=? WHERE id=?`, string(b), userID); err != nil {
			return err
		}
		out = u.Settings
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("storage: update settings %d: %w", userID, err)
	}
	return out, nil
}

// ---------- messages --------------------------------------------------------

// RecordMessage appends m and, for user messages, sets the user's mood and
// last interaction time in the same transaction. A message older than an
// already stored user message is still logged but does not rewind the user row.
func (d *DB) RecordMessage(ctx context.Context, m models.Message) error {
	defer d.locks.lock(m.UserID)()

	if m.CreatedAt.IsZero() {
		m.CreatedAt = d.now()
	}
	if m.Type == "" {
		m.Type = models.MessageUser
	}
	at := m.CreatedAt.UnixMilli()
	mood := models.ClampMood(m.MoodScore)

	err := d.inTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id=?`, m.UserID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
            INSERT INTO messages (user_id, text, mood_score, created_at, type, tags)
            VALUES (?,?,?,?,?,?)
        `, m.UserID, m.Text, mood, at, m.Type, strings.Join(m.Tags, ",")); err != nil {
			return err
		}
		if m.Type != models.MessageUser {
			return nil
		}

		// compare against stored messages, not the row: the upsert stamp may be
		// ahead of transport time
		if _, err := tx.ExecContext(ctx, `
            UPDATE users SET mood_score=?, last_interaction_at=?
            WHERE id=? AND NOT EXISTS (
                SELECT 1 FROM messages WHERE user_id=? AND type=? AND created_at > ?
            )
        `, mood, at, m.UserID, m.UserID, models.MessageUser, at); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
            UPDATE users SET stage=?
            WHERE id=? AND stage=?
              AND (SELECT COUNT(*) FROM messages WHERE user_id=? AND type=?) >= ?
        `, models.StageEngaged, m.UserID, models.StageOnboarding, m.UserID, models.MessageUser, EngagedAfter)
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return err
	}
	if err != nil {
		return fmt.Errorf("storage: record message %d: %w", m.UserID, err)
	}
	return nil
}

// GetContextWindow returns up to limit most recent messages, newest first.
// Unknown users get an empty slice.
func (d *DB) GetContextWindow(ctx context.Context, userID int64, limit int) ([]models.Message, error) {
	if limit <= 0 {
		return []models.Message{}, nil
	}
	rows, err := d.QueryContext(ctx, `
        SELECT id, user_id, text, mood_score, created_at, type, tags
        FROM messages WHERE user_id=?
        ORDER BY created_at DESC, id DESC
        LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: context window %d: %w", userID, err)
	}
	defer rows.Close()

	res := []models.Message{}
	for rows.Next() {
		var (
			m        models.Message
			at       int64
			typ, tag string
		)
		if err := rows.Scan(&m.ID, &m.UserID, &m.Text, &m.MoodScore, &at, &typ, &tag); err != nil {
			return nil, fmt.Errorf("storage: context window %d: %w", userID, err)
		}
		m.CreatedAt = time.UnixMilli(at)
		m.Type = models.MessageType(typ)
		if tag != "" {
			m.Tags = strings.Split(tag, ",")
		}
		res = append(res, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: context window %d: %w", userID, err)
	}
	return res, nil
}

// ---------- achievements ----------------------------------------------------

// RecordAchievement appends an achievement. Repeated calls produce repeated rows.
func (d *DB) RecordAchievement(ctx context.Context, userID int64, title, description string) error {
	_, err := d.ExecContext(ctx, `
        INSERT INTO achievements (user_id, title, description, created_at) VALUES (?,?,?,?)
    `, userID, title, description, d.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("storage: record achievement %d: %w", userID, err)
	}
	return nil
}

// ListAchievements returns up to limit achievements, newest first.
func (d *DB) ListAchievements(ctx context.Context, userID int64, limit int) ([]models.Achievement, error) {
	rows, err := d.QueryContext(ctx, `
        SELECT id, user_id, title, description, created_at
        FROM achievements WHERE user_id=?
        ORDER BY created_at DESC, id DESC
        LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: list achievements %d: %w", userID, err)
	}
	defer rows.Close()

	var res []models.Achievement
	for rows.Next() {
		var (
			a  models.Achievement
			at int64
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.Title, &a.Description, &at); err != nil {
			return nil, fmt.Errorf("storage: list achievements %d: %w", userID, err)
		}
		a.CreatedAt = time.UnixMilli(at)
		res = append(res, a)
	}
	return res, rows.Err()
}

// ---------- mood patterns ---------------------------------------------------

// UpsertMoodPattern writes one half of the (user, day) pattern.
func (d *DB) UpsertMoodPattern(ctx context.Context, userID int64, day string, slot PatternSlot, mood int) error {
	var q string
	switch slot {
	case SlotMorning:
		q = `INSERT INTO mood_patterns (user_id, day, morning_mood) VALUES (?,?,?)
             ON CONFLICT(user_id, day) DO UPDATE SET morning_mood=excluded.morning_mood`
	case SlotEvening:
		q = `INSERT INTO mood_patterns (user_id, day, evening_mood) VALUES (?,?,?)
             ON CONFLICT(user_id, day) DO UPDATE SET evening_mood=excluded.evening_mood`
	default:
		return fmt.Errorf("storage: unknown pattern slot %q", slot)
	}
	if _, err := d.ExecContext(ctx, q, userID, day, models.ClampMood(mood)); err != nil {
		return fmt.Errorf("storage: upsert mood pattern %d %s: %w", userID, day, err)
	}
	return nil
}

// GetMoodPattern returns nil, nil when the day has no record.
func (d *DB) GetMoodPattern(ctx context.Context, userID int64, day string) (*models.MoodPattern, error) {
	var (
		p                models.MoodPattern
		morning, evening sql.NullInt64
	)
	err := d.QueryRowContext(ctx, `
        SELECT id, user_id, day, morning_mood, evening_mood, notes
        FROM mood_patterns WHERE user_id=? AND day=?`, userID, day,
	).Scan(&p.ID, &p.UserID, &p.Day, &morning, &evening, &p.Notes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get mood pattern %d %s: %w", userID, day, err)
	}
	if morning.Valid {
		v := int(morning.Int64)
		p.MorningMood = &v
	}
	if evening.Valid {
		v := int(evening.Int64)
		p.EveningMood = &v
	}
	return &p, nil
}

// WeeklySummary aggregates messages, patterns and achievements since the
// given instant; sinceDay bounds mood patterns by calendar day.
func (d *DB) WeeklySummary(ctx context.Context, userID int64, since time.Time, sinceDay string) (models.WeeklySummary, error) {
	var (
		s                       models.WeeklySummary
		avgMsg, avgMorn, avgEve sql.NullFloat64
	)
	from := since.UnixMilli()
	err := d.QueryRowContext(ctx, `
        SELECT
            (SELECT COUNT(*)        FROM messages WHERE user_id=? AND type='user' AND created_at>=?),
            (SELECT AVG(mood_score) FROM messages WHERE user_id=? AND type='user' AND created_at>=?),
            (SELECT AVG(morning_mood) FROM mood_patterns WHERE user_id=? AND day>=?),
            (SELECT AVG(evening_mood) FROM mood_patterns WHERE user_id=? AND day>=?),
            (SELECT COUNT(*)        FROM achievements WHERE user_id=? AND created_at>=?)
    `, userID, from, userID, from, userID, sinceDay, userID, sinceDay, userID, from,
	).Scan(&s.Messages, &avgMsg, &avgMorn, &avgEve, &s.Achievements)
	if err != nil {
		return s, fmt.Errorf("storage: weekly summary %d: %w", userID, err)
	}
	s.AvgMessageMood = avgMsg.Float64
	s.AvgMorningMood = avgMorn.Float64
	s.AvgEveningMood = avgEve.Float64
	return s, nil
}
