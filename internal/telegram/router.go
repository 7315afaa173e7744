package telegram

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ykvlv/timetable-bot/internal/timetable"
)

// Pending state keys used in conversational flows.
const (
	pendingURL = "await_schedule_url"
)

// Callback data prefixes and the date layout carried by day buttons.
const (
	showPrefix = "show_"
	dayPrefix  = "day_"
	dayLayout  = "2006-01-02"
)

// Router wires Telegram updates to handlers and holds minimal in-memory state.
type Router struct {
	bot   *tgbotapi.BotAPI
	log   *zap.Logger
	svc   *timetable.Service
	loc   *time.Location
	http  *http.Client
	state map[int64]string // chatID -> pending state
	mu    sync.RWMutex
}

// NewRouter creates a new Telegram router. Dates are resolved in loc.
func NewRouter(bot *tgbotapi.BotAPI, log *zap.Logger, svc *timetable.Service, loc *time.Location) *Router {
	if loc == nil {
		loc = time.Local
	}
	return &Router{
		bot:   bot,
		log:   log,
		svc:   svc,
		loc:   loc,
		http:  &http.Client{Timeout: 30 * time.Second},
		state: make(map[int64]string),
	}
}

// setPending sets a pending state for a chat (non-persistent, in-memory).
func (r *Router) setPending(chatID int64, s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state[chatID] = s
}

// getPending returns current pending state for a chat.
func (r *Router) getPending(chatID int64) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state[chatID]
}

// clearPending clears a pending state for a chat.
func (r *Router) clearPending(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.state, chatID)
}

// HandleUpdate routes a single update to appropriate handler.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil {
		msg := upd.Message
		chatID := msg.Chat.ID

		if msg.Document != nil {
			r.handleDocument(ctx, msg)
			return
		}

		text := strings.TrimSpace(msg.Text)
		switch {
		case strings.HasPrefix(text, "/start"):
			r.clearPending(chatID)
			r.handleStart(ctx, chatID)
		case strings.HasPrefix(text, "/today"):
			r.sendView(ctx, chatID, "today")
		case strings.HasPrefix(text, "/week"):
			r.sendView(ctx, chatID, "week")
		default:
			r.handleFreeForm(ctx, chatID, text)
		}
		return
	}

	if upd.CallbackQuery != nil {
		cb := upd.CallbackQuery
		if cb.Message == nil {
			_ = r.answerCallback(cb.ID, "")
			return
		}
		data := cb.Data
		chatID := cb.Message.Chat.ID
		msgID := cb.Message.MessageID

		switch {
		case strings.HasPrefix(data, showPrefix):
			r.handleShow(ctx, chatID, msgID, strings.TrimPrefix(data, showPrefix), cb.ID)
		case strings.HasPrefix(data, dayPrefix):
			r.handleDay(ctx, chatID, msgID, strings.TrimPrefix(data, dayPrefix), cb.ID)
		case data == "main_menu":
			r.handleMainMenu(ctx, chatID, msgID, cb.ID)
		case data == "update_schedule":
			r.askURL(chatID, msgID, cb.ID)
		case data == "resync_saved":
			r.handleResyncSaved(ctx, chatID, cb.ID)
		case data == "toggle_group":
			r.handleToggleGroup(ctx, chatID, msgID, cb.ID)
		case data == "toggle_notifications":
			r.handleToggleNotifications(ctx, chatID, msgID, cb.ID)
		default:
			_ = r.answerCallback(cb.ID, "")
		}
	}
}

// SendMessage sends a plain text message to the given chat.
// This makes Router satisfy scheduler.Sender.
func (r *Router) SendMessage(chatID int64, text string) error {
	_, err := r.bot.Send(tgbotapi.NewMessage(chatID, clip(text)))
	return err
}
