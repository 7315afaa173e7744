package telegram

import (
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ykvlv/timetable-bot/internal/domain"
)

// UI texts in English
const (
	startText = "👋 Hi! I show your university timetable.\n\n" +
		"Pick a view below to see your classes.\n\n" +
		"To update the data, send me a new `.csv` export or tap «Update schedule» and paste the portal link."
	askURLText       = "Paste the link to your schedule on the university portal:"
	loadingText      = "Loading schedule..."
	syncingText      = "⏳ Downloading and processing your schedule, this may take a minute..."
	syncedText       = "✅ Schedule updated!"
	syncFailedFmt    = "❌ Failed to load schedule:\n%s"
	noSavedURLText   = "No saved link yet. Tap «Update schedule» and paste one."
	uploadedText     = "✅ Your schedule file has been updated!"
	uploadFailedFmt  = "❌ Could not save the file. Error: %s"
	notCSVText       = "❗️ Please send the file in `.csv` format."
	tooLargeText     = "❗️ The file is too large."
	badTimeframeText = "⚠️ Unknown view. Use today, tomorrow, week, month or next month."
	notifOnText      = "Reminders enabled ✅"
	notifOffText     = "Reminders disabled ✅"
	filterSetFmt     = "Filter set: %s"
)

// maxMessageRunes keeps replies under Telegram's 4096-character limit.
const maxMessageRunes = 4000

// clip shortens text that would not fit in one message.
func clip(text string) string {
	r := []rune(text)
	if len(r) <= maxMessageRunes {
		return text
	}
	return string(r[:maxMessageRunes-1]) + "…"
}

// groupText names a group filter value.
func groupText(group int) string {
	if group <= 0 {
		return "All groups"
	}
	return "Group " + strconv.Itoa(group)
}

// mainMenuKeyboard builds the main inline menu. Toggle buttons reflect the
// chat's current preferences; resync is offered only with a saved link.
func mainMenuKeyboard(p domain.Preferences, hasSavedURL bool) tgbotapi.InlineKeyboardMarkup {
	notif := "🔕 Reminders OFF"
	if p.Notifications {
		notif = "🔔 Reminders ON"
	}
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗓️ Today", "show_today"),
			tgbotapi.NewInlineKeyboardButtonData("🗓️ Tomorrow", "show_tomorrow"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📆 Next 7 days", "show_week"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📅 This month", "show_month"),
			tgbotapi.NewInlineKeyboardButtonData("📅 Next month", "show_next_month"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👥 "+groupText(p.Group), "toggle_group"),
			tgbotapi.NewInlineKeyboardButtonData(notif, "toggle_notifications"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔄 Update schedule", "update_schedule"),
		),
	}
	if hasSavedURL {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("♻️ Re-download saved link", "resync_saved"),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func backKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "main_menu"),
		),
	)
}

// dayNavigationKeyboard offers previous/next day buttons while staying
// within [first, last], plus a way back to the menu.
func dayNavigationKeyboard(current, first, last time.Time) tgbotapi.InlineKeyboardMarkup {
	var nav []tgbotapi.InlineKeyboardButton
	if current.After(first) {
		prev := current.AddDate(0, 0, -1)
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", dayPrefix+prev.Format(dayLayout)))
	}
	if current.Before(last) {
		next := current.AddDate(0, 0, 1)
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("Forward ➡️", dayPrefix+next.Format(dayLayout)))
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Menu", "main_menu"),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
