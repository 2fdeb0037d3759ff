// Package notify sends weekly consumption digests to a Telegram chat.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"checkin-platform/internal/models"
	"checkin-platform/pkg/logging"
	"checkin-platform/pkg/metrics"
)

// messageSender is the part of *tgbotapi.BotAPI the notifier uses
type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts the most recent weeks of a report
type TelegramNotifier struct {
	bot            messageSender
	chatID         int64
	weeks          int
	maxRetries     int
	retryDelayBase time.Duration
	logger         *logging.StructuredLogger
	metrics        *metrics.Collector
}

// NewTelegramNotifier creates a notifier for one chat. weeks is how many of
// the latest weeks each digest shows.
func NewTelegramNotifier(botToken string, chatID int64, weeks, maxRetries int, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	return newNotifier(bot, chatID, weeks, maxRetries, time.Second, logger, metricsCollector), nil
}

func newNotifier(bot messageSender, chatID int64, weeks, maxRetries int, retryDelayBase time.Duration, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *TelegramNotifier {
	if weeks <= 0 {
		weeks = 4
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &TelegramNotifier{
		bot:            bot,
		chatID:         chatID,
		weeks:          weeks,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
		logger:         logger,
		metrics:        metricsCollector,
	}
}

// SendDigest sends the latest weeks of report. weeks must be in week order.
func (n *TelegramNotifier) SendDigest(ctx context.Context, report *models.Report, weeks []models.WeeklySummary) error {
	if len(weeks) > n.weeks {
		weeks = weeks[len(weeks)-n.weeks:]
	}

	msg := tgbotapi.NewMessage(n.chatID, formatDigest(report, weeks))
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	var lastErr error
	for i := 0; i < n.maxRetries; i++ {
		_, err := n.bot.Send(msg)
		if err == nil {
			n.metrics.RecordNotification("sent")
			n.logger.Info(ctx, "[NOTIFY_SENT] Weekly digest sent", logging.Fields{
				"report_id": report.ID,
				"weeks":     len(weeks),
				"attempt":   i + 1,
			})
			return nil
		}
		lastErr = err
		n.logger.Warn(ctx, "[NOTIFY_RETRY] Telegram send failed", logging.Fields{
			"attempt": i + 1,
			"error":   err.Error(),
		})
		if i == n.maxRetries-1 {
			break
		}

		select {
		case <-ctx.Done():
			n.metrics.RecordNotification("failed")
			return ctx.Err()
		case <-time.After(n.retryDelayBase * time.Duration(i+1)):
		}
	}

	n.metrics.RecordNotification("failed")
	return fmt.Errorf("failed to send message after %d retries: %w", n.maxRetries, lastErr)
}

// formatDigest renders weeks as a MarkdownV2 message
func formatDigest(report *models.Report, weeks []models.WeeklySummary) string {
	var b strings.Builder

	b.WriteString("🍺 *Weekly drinking summary*\n")
	b.WriteString(escapeMarkdownV2(fmt.Sprintf("%s to %s, %d checkins", report.FirstDate, report.LastDate, report.Checkins)))
	b.WriteString("\n\n")

	flagged := false
	for _, w := range weeks {
		line := fmt.Sprintf("%s: %d drinks, %.1f units, %d dry days", w.Commencing, w.Drinks, w.Units, w.DryDays)
		if avg := w.AverageScore(); avg != nil {
			line += fmt.Sprintf(", avg %.2f", *avg)
		}
		if flag := w.Estimated.String(); flag != "" {
			line += " " + flag
			flagged = true
		}
		fmt.Fprintf(&b, "`%s` %s\n", w.Week, escapeMarkdownV2(line))
	}

	if flagged {
		b.WriteString("\n")
		b.WriteString(escapeMarkdownV2("* = some measures guessed from serving, ** = some drinks had no measure"))
		b.WriteString("\n")
	}

	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
