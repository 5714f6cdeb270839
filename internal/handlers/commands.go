package handlers

import "telegram-support-bot/internal/models"

// commandFor maps a Telegram command name to its event. Unknown names are
// passed through for the help reply.
func commandFor(name string) models.Command {
	switch name {
	case "start":
		return models.CommandStart
	case "mood":
		return models.CommandMoodCheck
	case "sos":
		return models.CommandSOS
	case "achievements":
		return models.CommandAchievements
	case "stats":
		return models.CommandStats
	case "settings":
		return models.CommandSettings
	}
	return models.Command(name)
}

// BotCommands is the menu registered with Telegram on startup.
var BotCommands = []struct{ Name, Description string }{
	{"start", "Почати спілкування"},
	{"mood", "Перевірити настрій"},
	{"sos", "Екстрена підтримка"},
	{"achievements", "Мої досягнення"},
	{"stats", "Статистика настрою"},
	{"settings", "Налаштування"},
}
