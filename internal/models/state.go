package models

// Stage is the conversational stage of a user.
type Stage string

const (
	StageOnboarding Stage = "onboarding"
	StageEngaged    Stage = "engaged"
)

// MessageType tells who authored a Message.
type MessageType string

const (
	MessageUser MessageType = "user"
	MessageBot  MessageType = "bot"
)

// TickKind names a scheduled trigger.
type TickKind string

const (
	TickMorningCheckin    TickKind = "morningCheckin"
	TickEveningReflection TickKind = "eveningReflection"
	TickWeeklyAnalysis    TickKind = "weeklyAnalysis"
)

// TickKinds lists every tick in firing order of a day.
var TickKinds = []TickKind{TickMorningCheckin, TickEveningReflection, TickWeeklyAnalysis}

// ParseTickKind validates a tick name.
func ParseTickKind(s string) (TickKind, bool) {
	for _, k := range TickKinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// Command is an explicit user command.
type Command string

const (
	CommandStart        Command = "start"
	CommandMoodCheck    Command = "moodCheck"
	CommandSOS          Command = "sos"
	CommandAchievements Command = "achievements"
	CommandStats        Command = "stats"
	CommandSettings     Command = "settings"
)

// Settings keys.
const (
	SettingSupportMode = "support_mode"
	SettingOutreachOff = "outreach_off"
)

const (
	MinMood     = 1
	MaxMood     = 10
	NeutralMood = 5
)

// ClampMood bounds a score to [MinMood, MaxMood].
func ClampMood(score int) int {
	return max(MinMood, min(MaxMood, score))
}
