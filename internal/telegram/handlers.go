package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ykvlv/timetable-bot/internal/domain"
	"github.com/ykvlv/timetable-bot/internal/timetable"
)

// maxUploadBytes caps CSV uploads.
const maxUploadBytes = 5 << 20

// --- Generic helpers ---

func (r *Router) sendText(chatID int64, text string) {
	_, _ = r.bot.Send(tgbotapi.NewMessage(chatID, clip(text)))
}

func (r *Router) answerCallback(id, text string) error {
	_, err := r.bot.Request(tgbotapi.NewCallback(id, text))
	return err
}

func (r *Router) editText(chatID int64, msgID int, text string, kb tgbotapi.InlineKeyboardMarkup) {
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, msgID, clip(text), kb)
	if _, err := r.bot.Send(edit); err != nil {
		// Telegram rejects edits that change nothing; that is harmless.
		r.log.Debug("edit message failed", zap.Int64("chatID", chatID), zap.Error(err))
	}
}

func (r *Router) today() time.Time {
	return domain.DateOf(time.Now().In(r.loc))
}

func (r *Router) menu(ctx context.Context, chatID int64) tgbotapi.InlineKeyboardMarkup {
	_, saved := r.svc.SavedURL(chatID)
	return mainMenuKeyboard(r.svc.Preferences(ctx, chatID), saved)
}

// --- Core commands ---

func (r *Router) handleStart(ctx context.Context, chatID int64) {
	msg := tgbotapi.NewMessage(chatID, startText)
	msg.ReplyMarkup = r.menu(ctx, chatID)
	_, _ = r.bot.Send(msg)
}

func (r *Router) handleMainMenu(ctx context.Context, chatID int64, msgID int, cbID string) {
	_ = r.answerCallback(cbID, "")
	r.clearPending(chatID)
	r.editText(chatID, msgID, startText, r.menu(ctx, chatID))
}

// --- Schedule views ---

// view is a resolved timeframe: a single day with navigation bounds, or a
// multi-day range.
type view struct {
	day, first, last time.Time
	multiDay         bool
}

// resolveView maps a timeframe name onto dates relative to today.
func resolveView(timeframe string, today time.Time) (view, bool) {
	switch timeframe {
	case "today":
		first, last := domain.MonthBounds(today)
		return view{day: today, first: first, last: last}, true
	case "tomorrow":
		d := today.AddDate(0, 0, 1)
		first, last := domain.MonthBounds(d)
		return view{day: d, first: first, last: last}, true
	case "week":
		return view{first: today, last: today.AddDate(0, 0, 6), multiDay: true}, true
	case "month":
		first, last := domain.MonthBounds(today)
		return view{day: first, first: first, last: last}, true
	case "next_month":
		first, _ := domain.MonthBounds(today)
		first, last := domain.MonthBounds(first.AddDate(0, 1, 0))
		return view{day: first, first: first, last: last}, true
	default:
		return view{}, false
	}
}

func (r *Router) render(ctx context.Context, chatID int64, v view) (string, tgbotapi.InlineKeyboardMarkup) {
	if v.multiDay {
		return r.svc.RangeText(ctx, v.first, v.last, chatID), backKeyboard()
	}
	return r.svc.DayText(ctx, v.day, chatID), dayNavigationKeyboard(v.day, v.first, v.last)
}

func (r *Router) handleShow(ctx context.Context, chatID int64, msgID int, timeframe, cbID string) {
	_ = r.answerCallback(cbID, loadingText)
	v, ok := resolveView(timeframe, r.today())
	if !ok {
		r.editText(chatID, msgID, badTimeframeText, backKeyboard())
		return
	}
	text, kb := r.render(ctx, chatID, v)
	r.editText(chatID, msgID, text, kb)
}

// sendView answers slash commands with a fresh message instead of an edit.
func (r *Router) sendView(ctx context.Context, chatID int64, timeframe string) {
	v, _ := resolveView(timeframe, r.today())
	text, kb := r.render(ctx, chatID, v)
	msg := tgbotapi.NewMessage(chatID, clip(text))
	msg.ReplyMarkup = kb
	_, _ = r.bot.Send(msg)
}

func (r *Router) handleDay(ctx context.Context, chatID int64, msgID int, value, cbID string) {
	_ = r.answerCallback(cbID, "")
	d, err := time.Parse(dayLayout, value)
	if err != nil {
		r.log.Warn("bad day callback", zap.String("data", value), zap.Error(err))
		r.editText(chatID, msgID, badTimeframeText, backKeyboard())
		return
	}
	first, last := domain.MonthBounds(d)
	text, kb := r.render(ctx, chatID, view{day: d, first: first, last: last})
	r.editText(chatID, msgID, text, kb)
}

// --- Preferences ---

func (r *Router) handleToggleGroup(ctx context.Context, chatID int64, msgID int, cbID string) {
	group, err := r.svc.ToggleGroup(ctx, chatID)
	if err != nil {
		r.log.Error("toggle group failed", zap.Int64("chatID", chatID), zap.Error(err))
		_ = r.answerCallback(cbID, "Could not change the filter.")
		return
	}
	_, _ = r.bot.Send(tgbotapi.NewEditMessageReplyMarkup(chatID, msgID, r.menu(ctx, chatID)))
	_ = r.answerCallback(cbID, fmt.Sprintf(filterSetFmt, groupText(group)))
}

func (r *Router) handleToggleNotifications(ctx context.Context, chatID int64, msgID int, cbID string) {
	on, err := r.svc.ToggleNotifications(ctx, chatID)
	if err != nil {
		r.log.Error("toggle notifications failed", zap.Int64("chatID", chatID), zap.Error(err))
		_ = r.answerCallback(cbID, "Could not change reminders.")
		return
	}
	_, _ = r.bot.Send(tgbotapi.NewEditMessageReplyMarkup(chatID, msgID, r.menu(ctx, chatID)))
	text := notifOffText
	if on {
		text = notifOnText
	}
	_ = r.answerCallback(cbID, text)
}

// --- Upload flow ---

func (r *Router) handleDocument(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	doc := msg.Document
	if !strings.HasSuffix(strings.ToLower(doc.FileName), ".csv") {
		r.sendText(chatID, notCSVText)
		return
	}
	if doc.FileSize > maxUploadBytes {
		r.sendText(chatID, tooLargeText)
		return
	}

	raw, err := r.download(ctx, doc.FileID)
	if err == nil {
		err = r.svc.Upload(chatID, raw)
	}
	if errors.Is(err, errTooLarge) {
		r.sendText(chatID, tooLargeText)
		return
	}
	if err != nil {
		r.log.Error("save upload failed", zap.Int64("chatID", chatID), zap.Error(err))
		r.sendText(chatID, fmt.Sprintf(uploadFailedFmt, err))
		return
	}
	r.sendText(chatID, uploadedText)
	r.handleStart(ctx, chatID)
}

func (r *Router) download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := r.bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: %s", resp.Status)
	}
	return readLimited(resp.Body, maxUploadBytes)
}

// errTooLarge is returned for downloads above maxUploadBytes.
var errTooLarge = errors.New("file too large")

// readLimited reads at most limit bytes and fails instead of truncating when
// body holds more.
func readLimited(body io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errTooLarge
	}
	return data, nil
}

// --- Resync flow ---

func (r *Router) askURL(chatID int64, msgID int, cbID string) {
	_ = r.answerCallback(cbID, "")
	r.editText(chatID, msgID, askURLText, backKeyboard())
	r.setPending(chatID, pendingURL)
}

func (r *Router) handleResyncSaved(ctx context.Context, chatID int64, cbID string) {
	_ = r.answerCallback(cbID, "")
	r.resync(ctx, chatID, func(ctx context.Context) error {
		return r.svc.ResyncSaved(ctx, chatID)
	})
}

// resync shows a progress message and replaces it with the outcome.
func (r *Router) resync(ctx context.Context, chatID int64, run func(context.Context) error) {
	status, err := r.bot.Send(tgbotapi.NewMessage(chatID, syncingText))
	if err != nil {
		r.log.Error("send status failed", zap.Int64("chatID", chatID), zap.Error(err))
		return
	}

	if err := run(ctx); err != nil {
		r.log.Error("resync failed", zap.Int64("chatID", chatID), zap.Error(err))
		text := fmt.Sprintf(syncFailedFmt, err)
		if errors.Is(err, timetable.ErrNoSavedURL) {
			text = noSavedURLText
		}
		r.editText(chatID, status.MessageID, text, backKeyboard())
		return
	}
	r.editText(chatID, status.MessageID, syncedText, r.menu(ctx, chatID))
}

// --- Free-form dispatcher ---

func (r *Router) handleFreeForm(ctx context.Context, chatID int64, text string) {
	switch r.getPending(chatID) {
	case pendingURL:
		r.clearPending(chatID)
		r.resync(ctx, chatID, func(ctx context.Context) error {
			return r.svc.ResyncURL(ctx, chatID, text)
		})
	default:
		// No pending flow: ignore free-form message
	}
}
