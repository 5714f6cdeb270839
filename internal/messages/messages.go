// Package messages holds every user-facing text and keyboard.
package messages

import (
	"fmt"
	"strconv"
	"strings"

	"telegram-support-bot/internal/models"
)

// Callback data values.
const (
	CbMoodPrefix       = "mood_"
	CbTalkSOS          = "talk_sos"
	CbShowAchievements = "show_achievements"
	CbSupportMode      = "support_mode"
	CbShareDay         = "share_day"
	CbRateMood         = "rate_mood"
	CbToggleOutreach   = "toggle_outreach"
)

const DefaultName = "Друже"

// Fallback replies, one per mood band.
const (
	FallbackSupportive  = "Розумію, що зараз важко. Я тут і готовий підтримати тебе. Хочеш поговорити про це детальніше? 💙"
	FallbackCelebratory = "Чудово чути такі позитивні новини! Продовжуй в тому ж дусі! 🌟"
	FallbackNeutral     = "Дякую за те, що поділився. Я завжди готовий вислухати і підтримати 🤗"
)

// Mood-check acknowledgement suffixes.
const (
	MoodAckSupportive  = "Хочеш поговорити про те, що турбує? Я тут для тебе 💙"
	MoodAckCelebratory = "Відмінно! Радію разом з тобою! 🎉"
)

const (
	Apology          = "Ой, щось пішло не так 😔 Спробуй, будь ласка, ще раз трохи згодом."
	MoodPrompt       = "Як твій настрій зараз? (1-10)"
	TalkPrompt       = "Я слухаю 💙 Розкажи, що зараз відбувається, і не поспішай."
	ShareDayPrompt   = "Розкажи, як пройшов твій день 🌙 Що було найважливішим?"
	SupportModeOn    = "Режим підтримки увімкнено 💙 Я буду уважніше ставитися до твого стану."
	NoAchievements   = "Поки що досягнень немає, але все попереду! Розкажи мені, коли щось вдасться 🌱"
	UnknownCommand   = "Не знаю такої команди 🤔 Спробуй /mood, /sos, /achievements, /stats або /settings."
	EveningQuestion  = "Як пройшов день? 🌙 Готовий підвести підсумки?"
	ReplyInstruction = `Ти емоційний помічник українською мовою.

Відповідай тепло, підтримуюче, пам'ятай попередні розмови. Якщо настрій низький (1-4) - надавай більше підтримки. Якщо високий (8-10) - святкуй разом.

Відповідь має бути 2-3 речення, щира та персоналізована.`
)

// MorningVariants are the morning check-in openers.
var MorningVariants = []string{
	"Доброго ранку! ☀️ Як плани на сьогодні?",
	"Привіт! 🌅 Що хорошого сподіваєшся сьогодні?",
	"Ранок! ☕ Як настрій на початок дня?",
}

// EveningVariants are the evening reflection openers.
var EveningVariants = []string{EveningQuestion}

// WeeklyVariants open the weekly analysis.
var WeeklyVariants = []string{
	"Ось і минув ще один тиждень 📅 Давай озирнемося назад.",
	"Неділя — час підбити підсумки тижня 🗓",
	"Тиждень позаду! 🌿 Подивимось, як він пройшов.",
}

// Welcome greets a user on /start.
func Welcome(name string) string {
	return fmt.Sprintf(`Привіт, %s! 👋

Я твій персональний бот-помічник для емоційної підтримки. Я буду:

🔹 Щодня цікавитися як твої справи
🔹 Запам'ятовувати все наше спілкування
🔹 Відстежувати твій настрій та прогрес
🔹 Надавати підтримку коли потрібно
🔹 Святкувати твої досягнення

Доступні команди:
/mood - перевірити настрій
/sos - екстрена підтримка
/achievements - твої досягнення
/stats - статистика настрою
/settings - налаштування

Розкажи мені про себе - що зараз відбувається в твоєму житті?`, name)
}

const SOS = `🆘 Розумію, що зараз дуже важко. Ти не один.

Техніки швидкої допомоги:

🫁 **Дихання 4-7-8**
Вдихни на 4, затримай на 7, видихни на 8

🧊 **5-4-3-2-1 техніка**
5 речей які бачиш
4 речі які чуєш
3 речі які відчуваєш
2 речі які нюхаєш
1 річ яку куштуєш

💙 **Пам'ятай**: ці почуття тимчасові, ти справляєшся краще ніж думаєш.

Хочеш поговорити про те, що зараз відбувається?`

// SOSKeyboard follows the crisis script.
var SOSKeyboard = [][]models.Option{
	{{Label: "Так, давай поговоримо", Value: CbTalkSOS}},
	{{Label: "Покажи мої досягнення", Value: CbShowAchievements}},
	{{Label: "Включи режим підтримки", Value: CbSupportMode}},
}

// EveningKeyboard follows the evening reflection question.
var EveningKeyboard = [][]models.Option{
	{{Label: "Поділитись днем", Value: CbShareDay}},
	{{Label: "Оцінити настрій", Value: CbRateMood}},
}

var moodEmoji = [...]string{"😭", "😢", "😔", "😐", "🙂", "😊", "😄", "😁", "🤩", "🚀"}

// MoodKeyboard is the 1..10 picker in rows of 3, 3 and 4.
func MoodKeyboard() [][]models.Option {
	rows := [][]models.Option{{}, {}, {}}
	for i := models.MinMood; i <= models.MaxMood; i++ {
		row := min((i-1)/3, 2)
		rows[row] = append(rows[row], models.Option{
			Label: moodEmoji[i-1] + " " + strconv.Itoa(i),
			Value: MoodCallback(i),
		})
	}
	return rows
}

// MoodCallback is the callback value for a mood selection.
func MoodCallback(mood int) string {
	return CbMoodPrefix + strconv.Itoa(mood)
}

// ParseMoodCallback extracts N from "mood_N"; ok is false for anything else.
func ParseMoodCallback(data string) (int, bool) {
	if !strings.HasPrefix(data, CbMoodPrefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(data, CbMoodPrefix))
	if err != nil || n < models.MinMood || n > models.MaxMood {
		return 0, false
	}
	return n, true
}

// MoodAck acknowledges a picked mood.
func MoodAck(mood int) string {
	s := fmt.Sprintf("Записав твій настрій: %d/10", mood)
	switch {
	case mood <= 3:
		s += "\n\n" + MoodAckSupportive
	case mood >= 8:
		s += "\n\n" + MoodAckCelebratory
	}
	return s
}

// AchievementAnnouncement announces a freshly detected achievement.
func AchievementAnnouncement(title, description string) string {
	return fmt.Sprintf("🏆 Нове досягнення: \"%s\"!\n%s", title, description)
}

// AchievementList renders the achievement log, newest first.
func AchievementList(list []models.Achievement) string {
	if len(list) == 0 {
		return NoAchievements
	}
	var b strings.Builder
	b.WriteString("🏆 Твої досягнення:\n")
	for _, a := range list {
		fmt.Fprintf(&b, "\n• %s — %s (%s)", a.Title, a.Description, a.CreatedAt.Format("02.01.2006"))
	}
	return b.String()
}

// Stats renders the 7-day summary.
func Stats(s models.WeeklySummary) string {
	var b strings.Builder
	b.WriteString("📊 Твій тиждень:\n")
	fmt.Fprintf(&b, "\nПовідомлень: %d", s.Messages)
	if s.Messages > 0 {
		fmt.Fprintf(&b, "\nСередній настрій у повідомленнях: %.1f/10", s.AvgMessageMood)
	}
	if s.AvgMorningMood > 0 {
		fmt.Fprintf(&b, "\nНастрій зранку: %.1f/10", s.AvgMorningMood)
	}
	if s.AvgEveningMood > 0 {
		fmt.Fprintf(&b, "\nНастрій увечері: %.1f/10", s.AvgEveningMood)
	}
	fmt.Fprintf(&b, "\nНових досягнень: %d", s.Achievements)
	return b.String()
}

// Settings renders the settings screen.
func Settings(u *models.User) (string, [][]models.Option) {
	support := "вимкнено"
	if u.Setting(models.SettingSupportMode) == "true" {
		support = "увімкнено"
	}
	outreach, toggle := "увімкнені", "Вимкнути нагадування"
	if u.Setting(models.SettingOutreachOff) == "true" {
		outreach, toggle = "вимкнені", "Увімкнути нагадування"
	}
	text := fmt.Sprintf("⚙️ Налаштування\n\nРежим підтримки: %s\nЩоденні нагадування: %s", support, outreach)
	kb := [][]models.Option{
		{{Label: "Включи режим підтримки", Value: CbSupportMode}},
		{{Label: toggle, Value: CbToggleOutreach}},
	}
	return text, kb
}

// OutreachToggled confirms the new outreach setting.
func OutreachToggled(off bool) string {
	if off {
		return "Добре, я не буду писати першим. Повернути нагадування можна в /settings."
	}
	return "Нагадування знову увімкнені ☀️"
}
