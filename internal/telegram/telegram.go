// Package telegram connects the command service and the scheduler to a
// Telegram bot. A user is identified by the chat ID of their private chat.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// MaxMessageLength is the Telegram limit for one text message.
const MaxMessageLength = 4096

// Handler answers an incoming message.
type Handler interface {
	Handle(ctx context.Context, userID, text string) string
}

// API is the subset of tgbotapi.BotAPI in use.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot is the Telegram transport.
type Bot struct {
	api     API
	timeout int
}

// New logs in with token. timeout is the long polling timeout in seconds.
func New(token string, timeout int) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	slog.Info("Authorized on telegram", "account", api.Self.UserName)
	return NewWithAPI(api, timeout), nil
}

// NewWithAPI wraps an existing API client.
func NewWithAPI(api API, timeout int) *Bot {
	if timeout <= 0 {
		timeout = 60
	}
	return &Bot{api: api, timeout: timeout}
}

// chatQueueSize bounds the updates buffered for one chat.
const chatQueueSize = 16

// Run receives updates and answers them with handler until ctx is done.
// Each chat is served by its own worker, so messages of one chat are
// answered in order while a slow command never delays another chat.
func (b *Bot) Run(ctx context.Context, handler Handler) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.timeout
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	d := newDispatcher(func(update tgbotapi.Update) {
		b.handleUpdate(ctx, handler, update)
	})
	defer d.wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.Chat == nil {
				continue
			}
			d.dispatch(update.Message.Chat.ID, update)
		}
	}
}

// dispatcher runs one worker per chat with pending updates. A worker exits
// once its queue is empty and is started again by the next update.
type dispatcher struct {
	handle func(tgbotapi.Update)

	mu     sync.Mutex
	queues map[int64]chan tgbotapi.Update
	wg     sync.WaitGroup
}

func newDispatcher(handle func(tgbotapi.Update)) *dispatcher {
	return &dispatcher{handle: handle, queues: make(map[int64]chan tgbotapi.Update)}
}

// dispatch queues update for chatID. It blocks only when that chat's queue
// is full.
func (d *dispatcher) dispatch(chatID int64, update tgbotapi.Update) {
	d.mu.Lock()
	defer d.mu.Unlock()

	q, ok := d.queues[chatID]
	if !ok {
		q = make(chan tgbotapi.Update, chatQueueSize)
		d.queues[chatID] = q
		d.wg.Add(1)
		go d.work(chatID, q)
	}
	// sent under mu so the worker cannot retire between lookup and send
	q <- update
}

func (d *dispatcher) work(chatID int64, q chan tgbotapi.Update) {
	defer d.wg.Done()
	for {
		select {
		case update := <-q:
			d.handle(update)
		default:
			d.mu.Lock()
			if len(q) == 0 {
				delete(d.queues, chatID)
				d.mu.Unlock()
				return
			}
			d.mu.Unlock()
		}
	}
}

// wait blocks until every queued update has been handled.
func (d *dispatcher) wait() {
	d.wg.Wait()
}

func (b *Bot) handleUpdate(ctx context.Context, handler Handler, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return
	}

	userID := strconv.FormatInt(msg.Chat.ID, 10)
	reply := handler.Handle(ctx, userID, msg.Text)
	if reply == "" {
		return
	}

	if err := b.send(msg.Chat.ID, reply); err != nil {
		slog.Error("Failed to send reply", "user", userID, "error", err)
	}
}

// SendNotification delivers text to the chat identified by userID.
func (b *Bot) SendNotification(_ context.Context, userID, text string) error {
	chatID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", userID, err)
	}
	return b.send(chatID, text)
}

func (b *Bot) send(chatID int64, text string) error {
	for _, part := range splitMessage(text, MaxMessageLength) {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
		if _, err := b.api.Send(msg); err != nil {
			return fmt.Errorf("failed to send message to %d: %w", chatID, err)
		}
	}
	return nil
}

// splitMessage cuts text at line boundaries into parts of at most limit
// bytes. A single line longer than limit is cut at a rune boundary.
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	var parts []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			parts = append(parts, cur.String())
			cur.Reset()
		}
	}

	for _, line := range strings.Split(text, "\n") {
		for len(line) > limit {
			flush()
			cut := limit
			for cut > 0 && !utf8RuneStart(line[cut]) {
				cut--
			}
			parts = append(parts, line[:cut])
			line = line[cut:]
		}
		if cur.Len() > 0 && cur.Len()+1+len(line) > limit {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteByte('\n')
		}
		cur.WriteString(line)
	}
	flush()
	return parts
}

func utf8RuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
