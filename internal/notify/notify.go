package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"nocalert/internal/config"
	"nocalert/internal/domain"
	"nocalert/internal/permanent"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
)

// Channel name keys recognized by the dispatcher.
const (
	ChannelTelegram = "telegram"
	ChannelWebhook  = "webhook"
	ChannelVoice    = "voice"
)

// SendResult returns channel-specific metadata after successful delivery.
// Params: sender-specific metadata fields.
// Returns: optional message identifiers.
type SendResult struct {
	MessageID   int
	ExternalRef string
}

// ChannelSender sends one outbound notification to one channel.
// Params: context and notification payload.
// Returns: channel send metadata and transport error when send fails.
type ChannelSender interface {
	Channel() string
	Send(ctx context.Context, notification domain.Notification) (SendResult, error)
}

// Dispatcher delivers notifications with configured retries/backoff.
// Params: sender list and retry policy.
// Returns: send helper for manager layer.
type Dispatcher struct {
	senders  map[string]ChannelSender
	channels []string
	retries  map[string]config.NotifyRetry
	logger   *slog.Logger
}

// NewDispatcher builds notification dispatcher from enabled channels.
// Params: global notify config and optional logger.
// Returns: configured dispatcher with available senders.
func NewDispatcher(cfg config.NotifyConfig, logger *slog.Logger) *Dispatcher {
	senders := make(map[string]ChannelSender)
	retries := make(map[string]config.NotifyRetry)

	if cfg.Telegram.Enabled {
		senders[ChannelTelegram] = NewTelegramSender(cfg.Telegram)
		retries[ChannelTelegram] = cfg.Telegram.Retry
	}
	if cfg.Webhook.Enabled {
		senders[ChannelWebhook] = NewWebhookSender(cfg.Webhook)
		retries[ChannelWebhook] = cfg.Webhook.Retry
	}
	if cfg.Voice.Enabled {
		senders[ChannelVoice] = NewVoiceSender(cfg.Voice)
		retries[ChannelVoice] = cfg.Voice.Retry
	}

	channels := make([]string, 0, len(senders))
	for channel := range senders {
		channels = append(channels, channel)
	}
	sort.Strings(channels)

	return &Dispatcher{
		senders:  senders,
		channels: channels,
		retries:  retries,
		logger:   logger,
	}
}

// Send sends one notification to a channel with retry policy.
// Params: destination channel and rendered notification payload.
// Returns: channel metadata and final error after retries.
func (d *Dispatcher) Send(ctx context.Context, channel string, notification domain.Notification) (SendResult, error) {
	sender, ok := d.senders[channel]
	if !ok {
		return SendResult{}, fmt.Errorf("notify channel %q is not configured", channel)
	}
	notification.Channel = channel
	return d.sendWithRetry(ctx, sender, notification, d.retries[channel])
}

// HasChannel reports whether a channel sender is configured.
// Params: channel key.
// Returns: true when the sender exists.
func (d *Dispatcher) HasChannel(channel string) bool {
	_, ok := d.senders[channel]
	return ok
}

// Channels returns configured channel list.
// Params: none.
// Returns: deterministic sender keys.
func (d *Dispatcher) Channels() []string {
	return d.channels
}

// sendWithRetry sends one notification with channel-specific retry policy.
// Params: sender, payload, and retry policy for the sender channel.
// Returns: channel metadata and final error after retries.
func (d *Dispatcher) sendWithRetry(ctx context.Context, sender ChannelSender, notification domain.Notification, retry config.NotifyRetry) (SendResult, error) {
	if !retry.Enabled {
		return sender.Send(ctx, notification)
	}

	attempt := 0
	backoff := time.Duration(retry.InitialMS) * time.Millisecond
	maxBackoff := time.Duration(retry.MaxMS) * time.Millisecond
	var timer *time.Timer

	for {
		attempt++
		result, err := sender.Send(ctx, notification)
		if err == nil {
			drainTimer(timer)
			if retry.LogEachAttempt && attempt > 1 && d.logger != nil {
				d.logger.Info("notify send recovered after retries", "channel", sender.Channel(), "attempt", attempt)
			}
			return result, nil
		}
		if retry.LogEachAttempt && d.logger != nil {
			d.logger.Warn("notify send attempt failed", "channel", sender.Channel(), "attempt", attempt, "error", err.Error())
		}

		if permanent.Is(err) {
			drainTimer(timer)
			return SendResult{}, fmt.Errorf("channel %s rejected notification: %w", sender.Channel(), err)
		}
		if retry.MaxAttempts > 0 && attempt >= retry.MaxAttempts {
			drainTimer(timer)
			return SendResult{}, fmt.Errorf("channel %s failed after %d attempts: %w", sender.Channel(), attempt, err)
		}

		if timer == nil {
			timer = time.NewTimer(backoff)
		} else {
			drainTimer(timer)
			timer.Reset(backoff)
		}
		select {
		case <-ctx.Done():
			drainTimer(timer)
			return SendResult{}, ctx.Err()
		case <-timer.C:
		}

		if strings.EqualFold(retry.Backoff, "exponential") {
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
}

// drainTimer stops the timer and clears a pending tick.
// Params: timer pointer, may be nil.
// Returns: nothing.
func drainTimer(timer *time.Timer) {
	if timer == nil {
		return
	}
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
}

// TelegramSender sends notifications to Telegram Bot API.
// Params: bot token, chat id, and base URL.
// Returns: Telegram channel sender.
type TelegramSender struct {
	client  *tgbot.Bot
	chatID  any
	initErr error
}

// NewTelegramSender creates Telegram sender with HTTP client.
// Params: Telegram notifier config.
// Returns: initialized sender.
func NewTelegramSender(cfg config.TelegramNotifier) *TelegramSender {
	sender := &TelegramSender{
		chatID: normalizeChatID(cfg.ChatID),
	}

	if strings.TrimSpace(cfg.BotToken) == "" {
		sender.initErr = permanent.Mark(errors.New("telegram bot token is required"))
		return sender
	}
	if strings.TrimSpace(cfg.ChatID) == "" {
		sender.initErr = permanent.Mark(errors.New("telegram chat_id is required"))
		return sender
	}

	options := []tgbot.Option{
		tgbot.WithSkipGetMe(),
	}
	if strings.TrimSpace(cfg.APIBase) != "" {
		options = append(options, tgbot.WithServerURL(strings.TrimRight(cfg.APIBase, "/")))
	}
	botClient, err := tgbot.New(cfg.BotToken, options...)
	if err != nil {
		sender.initErr = permanent.Mark(fmt.Errorf("init telegram bot: %w", err))
		return sender
	}
	sender.client = botClient
	return sender
}

// Channel returns sender channel name.
// Params: none.
// Returns: static channel key.
func (s *TelegramSender) Channel() string {
	return ChannelTelegram
}

// Send posts one notification message to Telegram chat.
// Params: context and notification payload.
// Returns: transport or HTTP error.
func (s *TelegramSender) Send(ctx context.Context, notification domain.Notification) (SendResult, error) {
	if s.initErr != nil {
		return SendResult{}, s.initErr
	}
	if s.client == nil {
		return SendResult{}, permanent.Mark(errors.New("telegram client is not initialized"))
	}

	text := notification.Message
	if strings.TrimSpace(notification.Subject) != "" {
		text = "<b>" + notification.Subject + "</b>\n" + text
	}
	request := &tgbot.SendMessageParams{
		ChatID:    s.chatID,
		Text:      text,
		ParseMode: tgmodels.ParseModeHTML,
	}

	sent, err := s.client.SendMessage(ctx, request)
	if err != nil {
		return SendResult{}, fmt.Errorf("telegram send: %w", err)
	}
	if sent == nil || sent.ID <= 0 {
		return SendResult{}, errors.New("telegram send returned empty message id")
	}
	return SendResult{MessageID: sent.ID}, nil
}

// normalizeChatID converts numeric chat IDs to int64 and keeps non-numeric IDs as string.
// Params: configured chat ID value from TOML.
// Returns: Telegram API chat id union value.
func normalizeChatID(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if numeric, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return numeric
	}
	return trimmed
}

// WebhookSender posts notification payload to configured HTTP endpoint.
// Params: endpoint URL, method, timeout, and headers.
// Returns: generic HTTP sender.
type WebhookSender struct {
	cfg    config.WebhookNotifier
	client *http.Client
}

// NewWebhookSender creates generic HTTP sender.
// Params: webhook notifier config.
// Returns: initialized sender.
func NewWebhookSender(cfg config.WebhookNotifier) *WebhookSender {
	timeoutSec := cfg.TimeoutSec
	if timeoutSec <= 0 {
		timeoutSec = 10
	}
	return &WebhookSender{
		cfg: cfg,
		client: &http.Client{
			Timeout: time.Duration(timeoutSec) * time.Second,
		},
	}
}

// Channel returns sender channel name.
// Params: none.
// Returns: static channel key.
func (s *WebhookSender) Channel() string {
	return ChannelWebhook
}

// Send delivers JSON payload to configured HTTP endpoint.
// Params: context and notification payload.
// Returns: transport or HTTP error.
func (s *WebhookSender) Send(ctx context.Context, notification domain.Notification) (SendResult, error) {
	body, err := json.Marshal(notification)
	if err != nil {
		return SendResult{}, permanent.Mark(fmt.Errorf("encode webhook payload: %w", err))
	}

	method := strings.ToUpper(strings.TrimSpace(s.cfg.Method))
	if method == "" {
		method = http.MethodPost
	}
	request, err := http.NewRequestWithContext(ctx, method, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return SendResult{}, permanent.Mark(fmt.Errorf("build webhook request: %w", err))
	}
	request.Header.Set("Content-Type", "application/json")
	for key, value := range s.cfg.Headers {
		request.Header.Set(key, value)
	}

	response, err := s.client.Do(request)
	if err != nil {
		return SendResult{}, fmt.Errorf("webhook send: %w", err)
	}
	defer response.Body.Close()
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return SendResult{}, unexpectedHTTPStatusError("webhook", response)
	}
	return SendResult{}, nil
}

// VoiceSender drives a call gateway that dials listed recipients.
// Params: gateway URL and request timeout.
// Returns: voice channel sender.
type VoiceSender struct {
	cfg    config.VoiceNotifier
	client *http.Client
}

// NewVoiceSender creates voice gateway sender.
// Params: voice notifier config.
// Returns: initialized sender.
func NewVoiceSender(cfg config.VoiceNotifier) *VoiceSender {
	timeoutSec := cfg.TimeoutSec
	if timeoutSec <= 0 {
		timeoutSec = 10
	}
	return &VoiceSender{
		cfg: cfg,
		client: &http.Client{
			Timeout: time.Duration(timeoutSec) * time.Second,
		},
	}
}

// Channel returns sender channel name.
// Params: none.
// Returns: static channel key.
func (s *VoiceSender) Channel() string {
	return ChannelVoice
}

// Send requests one call batch from the voice gateway.
// Params: context and notification payload with recipient numbers.
// Returns: transport or HTTP error.
func (s *VoiceSender) Send(ctx context.Context, notification domain.Notification) (SendResult, error) {
	if len(notification.Recipients) == 0 {
		return SendResult{}, permanent.Mark(errors.New("voice notification requires recipients"))
	}

	payload := struct {
		AlertID    string   `json:"alert_id"`
		Severity   string   `json:"severity"`
		Message    string   `json:"message"`
		Recipients []string `json:"recipients"`
	}{
		AlertID:    notification.AlertID,
		Severity:   string(notification.Severity),
		Message:    notification.Message,
		Recipients: notification.Recipients,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return SendResult{}, permanent.Mark(fmt.Errorf("encode voice payload: %w", err))
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return SendResult{}, permanent.Mark(fmt.Errorf("build voice request: %w", err))
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := s.client.Do(request)
	if err != nil {
		return SendResult{}, fmt.Errorf("voice send: %w", err)
	}
	defer response.Body.Close()
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return SendResult{}, unexpectedHTTPStatusError("voice", response)
	}
	return SendResult{}, nil
}

// unexpectedHTTPStatusError formats non-2xx HTTP response with optional body.
// Params: sender prefix label and HTTP response pointer.
// Returns: status-only or status+body error.
func unexpectedHTTPStatusError(prefix string, response *http.Response) error {
	if response == nil {
		return fmt.Errorf("%s status=0", prefix)
	}
	rawBody, readErr := io.ReadAll(response.Body)
	if readErr != nil {
		return fmt.Errorf("%s status=%d (read body error: %w)", prefix, response.StatusCode, readErr)
	}
	trimmedBody := strings.TrimSpace(string(rawBody))
	if trimmedBody == "" {
		return fmt.Errorf("%s status=%d", prefix, response.StatusCode)
	}
	err := fmt.Errorf("%s status=%d body=%s", prefix, response.StatusCode, trimmedBody)
	if response.StatusCode >= 400 && response.StatusCode < 500 && response.StatusCode != http.StatusTooManyRequests {
		return permanent.Mark(err)
	}
	return err
}
