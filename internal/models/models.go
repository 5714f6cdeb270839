package models

import "time"

// User is the durable per-user record. Messages, achievements and mood
// patterns point at it by UserID only; there is no foreign key and no cascade,
// users are never deleted by the bot.
type User struct {
	ID                int64             `db:"id"                  json:"id"`
	DisplayName       string            `db:"display_name"        json:"display_name"`
	Stage             Stage             `db:"stage"               json:"stage"`
	MoodScore         int               `db:"mood_score"          json:"mood_score"` // 1..10
	CreatedAt         time.Time         `db:"created_at"          json:"created_at"`
	LastInteractionAt time.Time         `db:"last_interaction_at" json:"last_interaction_at"`
	Settings          map[string]string `db:"settings"            json:"settings"`
}

// Setting returns the value of a settings key or "" when unset.
func (u *User) Setting(key string) string {
	if u == nil || u.Settings == nil {
		return ""
	}
	return u.Settings[key]
}

// Message is an immutable log entry.
type Message struct {
	ID        int64       `db:"id"         json:"-"`
	UserID    int64       `db:"user_id"    json:"-"`
	Text      string      `db:"text"       json:"message"`
	MoodScore int         `db:"mood_score" json:"mood_score"`
	CreatedAt time.Time   `db:"created_at" json:"timestamp"`
	Type      MessageType `db:"type"       json:"type"`
	Tags      []string    `db:"tags"       json:"tags,omitempty"`
}

// Achievement is an immutable milestone entry.
type Achievement struct {
	ID          int64     `db:"id"`
	UserID      int64     `db:"user_id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

// MoodPattern is the optional per-day mood sample.
type MoodPattern struct {
	ID          int64  `db:"id"`
	UserID      int64  `db:"user_id"`
	Day         string `db:"day"`                    // YYYY-MM-DD
	MorningMood *int   `db:"morning_mood,omitempty"` // nil -> not sampled
	EveningMood *int   `db:"evening_mood,omitempty"` // nil -> not sampled
	Notes       string `db:"notes"`
}

// WeeklySummary aggregates one user's last days for the weekly analysis and /stats.
type WeeklySummary struct {
	Messages       int
	AvgMessageMood float64 // 0 when there are no messages
	AvgMorningMood float64
	AvgEveningMood float64
	Achievements   int
}

// Option is one interactive button.
type Option struct {
	Label string
	Value string
}

// Outbound is a command for the transport.
type Outbound struct {
	UserID int64
	Text   string
	// Options are grouped into rows; nil means a plain text message.
	Options [][]Option
	// EditMessageID, when non-zero, asks the transport to replace the text of
	// an earlier message instead of sending a new one.
	EditMessageID int
	// Markdown enables Telegram's legacy markdown for this text.
	Markdown bool
}
