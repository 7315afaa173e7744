package telegram

import (
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ykvlv/timetable-bot/internal/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestResolveView(t *testing.T) {
	today := day(2024, 1, 31)
	cases := []struct {
		name        string
		want        view
		wantUnknown bool
	}{
		{name: "today", want: view{day: today, first: day(2024, 1, 1), last: today}},
		{name: "tomorrow", want: view{day: day(2024, 2, 1), first: day(2024, 2, 1), last: day(2024, 2, 29)}},
		{name: "week", want: view{first: today, last: day(2024, 2, 6), multiDay: true}},
		{name: "month", want: view{day: day(2024, 1, 1), first: day(2024, 1, 1), last: today}},
		{name: "next_month", want: view{day: day(2024, 2, 1), first: day(2024, 2, 1), last: day(2024, 2, 29)}},
		{name: "yesterday", wantUnknown: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := resolveView(tc.name, today)
			if ok == tc.wantUnknown {
				t.Fatalf("ok = %v", ok)
			}
			if tc.wantUnknown {
				return
			}
			if !got.day.Equal(tc.want.day) || !got.first.Equal(tc.want.first) ||
				!got.last.Equal(tc.want.last) || got.multiDay != tc.want.multiDay {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func callbacks(kb tgbotapi.InlineKeyboardMarkup) []string {
	var out []string
	for _, row := range kb.InlineKeyboard {
		for _, b := range row {
			if b.CallbackData != nil {
				out = append(out, *b.CallbackData)
			}
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestDayNavigationKeyboard_Bounds(t *testing.T) {
	first, last := day(2024, 3, 1), day(2024, 3, 31)

	mid := callbacks(dayNavigationKeyboard(day(2024, 3, 15), first, last))
	for _, want := range []string{"day_2024-03-14", "day_2024-03-16", "main_menu"} {
		if !contains(mid, want) {
			t.Fatalf("mid-month keyboard %v lacks %s", mid, want)
		}
	}

	start := callbacks(dayNavigationKeyboard(first, first, last))
	if contains(start, "day_2024-02-29") || !contains(start, "day_2024-03-02") {
		t.Fatalf("first-day keyboard must only go forward: %v", start)
	}

	end := callbacks(dayNavigationKeyboard(last, first, last))
	if contains(end, "day_2024-04-01") || !contains(end, "day_2024-03-30") {
		t.Fatalf("last-day keyboard must only go back: %v", end)
	}
}

func TestMainMenuKeyboard(t *testing.T) {
	kb := mainMenuKeyboard(domain.Preferences{Group: 2, Notifications: true}, false)
	data := callbacks(kb)
	if contains(data, "resync_saved") {
		t.Fatal("resync offered without a saved link")
	}
	for _, want := range []string{"show_today", "show_week", "show_next_month", "toggle_group", "update_schedule"} {
		if !contains(data, want) {
			t.Fatalf("menu lacks %s: %v", want, data)
		}
	}

	var labels []string
	for _, row := range kb.InlineKeyboard {
		for _, b := range row {
			labels = append(labels, b.Text)
		}
	}
	joined := strings.Join(labels, "|")
	if !strings.Contains(joined, "Group 2") || !strings.Contains(joined, "Reminders ON") {
		t.Fatalf("toggle labels do not reflect preferences: %s", joined)
	}

	if !contains(callbacks(mainMenuKeyboard(domain.Preferences{}, true)), "resync_saved") {
		t.Fatal("resync missing with a saved link")
	}
}

func TestGroupText(t *testing.T) {
	if got := groupText(0); got != "All groups" {
		t.Fatalf("groupText(0) = %q", got)
	}
	if got := groupText(3); got != "Group 3" {
		t.Fatalf("groupText(3) = %q", got)
	}
}

func TestClip(t *testing.T) {
	short := "📅 short"
	if clip(short) != short {
		t.Fatal("short text must be unchanged")
	}
	long := strings.Repeat("ż", maxMessageRunes+50)
	got := clip(long)
	if n := utf8.RuneCountInString(got); n != maxMessageRunes {
		t.Fatalf("clipped to %d runes, want %d", n, maxMessageRunes)
	}
	if !strings.HasSuffix(got, "…") {
		t.Fatal("clipped text must end with an ellipsis")
	}
}

func TestReadLimited(t *testing.T) {
	got, err := readLimited(strings.NewReader("abcd"), 4)
	if err != nil || string(got) != "abcd" {
		t.Fatalf("want body at the limit, got %q (%v)", got, err)
	}
	if _, err := readLimited(strings.NewReader("abcde"), 4); !errors.Is(err, errTooLarge) {
		t.Fatalf("want errTooLarge for an oversized body, got %v", err)
	}
}
