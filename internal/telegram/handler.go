package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tb "gopkg.in/telebot.v3"

	"github.com/Roma7-7-7/price-notifier/internal/service"
)

//go:generate mockgen -package mocks -destination mocks/telebot.go -mock_names Context=MockTelebotContext gopkg.in/telebot.v3/ Context

//go:generate mockgen -package mocks -destination mocks/subscriptions.go . Subscriptions,Reports

const (
	genericErrorMsg = "مشکلی پیش آمد. لطفاً کمی بعد دوباره تلاش کنید."
	unknownChatMsg  = "شناسه گفتگو مشخص نیست."

	defaultRequestTimeout = 30 * time.Second
)

type Subscriptions interface {
	Subscribe(ctx context.Context, chatID int64) (bool, error)
	Unsubscribe(ctx context.Context, chatID int64) (bool, error)
	IsSubscribed(ctx context.Context, chatID int64) (bool, error)
}

type Reports interface {
	Report(ctx context.Context) service.Report
}

type Handler struct {
	subscriptions Subscriptions
	reports       Reports

	hours   string
	timeout time.Duration

	log *slog.Logger
}

// NewHandler builds the command handlers. hours are the broadcast hour marks shown to users.
func NewHandler(subscriptions Subscriptions, reports Reports, hours []int, timeout time.Duration, log *slog.Logger) *Handler {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Handler{
		subscriptions: subscriptions,
		reports:       reports,
		hours:         formatHours(hours),
		timeout:       timeout,
		log:           log.With("component", "handler"),
	}
}

func (h *Handler) Start(c tb.Context) error {
	chatID, ok := chatIDOf(c)
	if !ok {
		return c.Send(unknownChatMsg)
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	added, err := h.subscriptions.Subscribe(ctx, chatID)
	if err != nil {
		h.log.Error("failed to subscribe", "error", err, "chatID", chatID)
		return c.Send(genericErrorMsg)
	}

	h.log.Debug("start handler called", "chatID", chatID, "added", added)
	return c.Send(h.welcomeMessage())
}

func (h *Handler) Unsubscribe(c tb.Context) error {
	chatID, ok := chatIDOf(c)
	if !ok {
		return c.Send(unknownChatMsg)
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	removed, err := h.subscriptions.Unsubscribe(ctx, chatID)
	if err != nil {
		h.log.Error("failed to unsubscribe", "error", err, "chatID", chatID)
		return c.Send(genericErrorMsg)
	}

	if !removed {
		return c.Send("اشتراک فعالی ندارید. برای عضویت: /start")
	}
	return c.Send("اشتراک شما لغو شد. برای فعال‌سازی دوباره: /start")
}

// Now replies with a freshly composed report. It never touches the subscriber list.
func (h *Handler) Now(c tb.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	report := h.reports.Report(ctx)
	if report.HasErrors() {
		h.log.Warn("on-demand report is degraded", "annotation", report.Annotation)
	}
	return c.Send(report.Text())
}

func (h *Handler) Status(c tb.Context) error {
	chatID, ok := chatIDOf(c)
	if !ok {
		return c.Send(unknownChatMsg)
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	subscribed, err := h.subscriptions.IsSubscribed(ctx, chatID)
	if err != nil {
		h.log.Error("failed to check if user is subscribed", "error", err, "chatID", chatID)
		return c.Send(genericErrorMsg)
	}

	if subscribed {
		return c.Send(fmt.Sprintf("✅ اشتراک شما فعال است.\nساعات ارسال: %s به وقت تهران\nبرای لغو: /stop", h.hours))
	}
	return c.Send("❌ اشتراک فعالی ندارید. برای عضویت: /start")
}

func (h *Handler) Help(c tb.Context) error {
	return c.Send("دستورات:\n" +
		"/start - عضویت در ارسال خودکار قیمت‌ها\n" +
		"/stop - لغو عضویت\n" +
		"/now - دریافت فوری قیمت‌ها\n" +
		"/status - وضعیت عضویت")
}

func (h *Handler) welcomeMessage() string {
	return fmt.Sprintf("سلام 👋\nاز این پس در ساعات %s به وقت تهران قیمت‌ها برات میاد.\n"+
		"برای لغو: /stop\n"+
		"برای دریافت فوری: /now", h.hours)
}

// chatIDOf prefers the chat the update came from and falls back to the sender for private updates.
func chatIDOf(c tb.Context) (int64, bool) {
	if chat := c.Chat(); chat != nil {
		return chat.ID, true
	}
	if sender := c.Sender(); sender != nil {
		return sender.ID, true
	}
	return 0, false
}

var persianDigits = strings.NewReplacer(
	"0", "۰", "1", "۱", "2", "۲", "3", "۳", "4", "۴",
	"5", "۵", "6", "۶", "7", "۷", "8", "۸", "9", "۹",
)

// formatHours renders hour marks the way they are read in Persian: "۱۱، ۱۳، ۱۵ و ۱۷".
func formatHours(hours []int) string {
	parts := make([]string, 0, len(hours))
	for _, hour := range hours {
		parts = append(parts, persianDigits.Replace(strconv.Itoa(hour)))
	}

	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	default:
		return strings.Join(parts[:len(parts)-1], "، ") + " و " + parts[len(parts)-1]
	}
}
