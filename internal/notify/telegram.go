package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"reminder-agent/internal/logger"
)

const telegramAPI = "https://api.telegram.org"

// Telegram delivers notifications as chat messages with inline buttons.
// Button presses arrive as callback queries, see Poll.
type Telegram struct {
	botToken    string
	chatID      string
	baseURL     string
	pollTimeout int
	client      *http.Client

	mu           sync.Mutex
	messages     map[string]int64
	lastUpdateID int64
}

// NewTelegram creates a notifier for the given bot and chat. pollTimeout
// is the long-polling timeout in seconds used by Poll.
func NewTelegram(botToken, chatID string, pollTimeout int) *Telegram {
	if pollTimeout < 1 {
		pollTimeout = 1
	}
	if pollTimeout > 50 {
		pollTimeout = 50 // Telegram max
	}
	return &Telegram{
		botToken:    botToken,
		chatID:      chatID,
		baseURL:     telegramAPI,
		pollTimeout: pollTimeout,
		client:      &http.Client{Timeout: time.Duration(pollTimeout+10) * time.Second},
		messages:    make(map[string]int64),
	}
}

type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type telegramResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description,omitempty"`
	Result      json.RawMessage `json:"result"`
}

type telegramUpdate struct {
	UpdateID      int64 `json:"update_id"`
	CallbackQuery *struct {
		ID   string `json:"id"`
		Data string `json:"data"`
	} `json:"callback_query"`
}

func (t *Telegram) Show(ctx context.Context, id string, n Notification) error {
	// Replace semantics: a message already shown for id goes away first.
	if err := t.Dismiss(ctx, id); err != nil {
		logger.Debug(ctx, "Telegram replace: delete old message failed", "id", id, "error", err)
	}

	text := "<b>" + html.EscapeString(n.Title) + "</b>\n" + html.EscapeString(n.Body)
	row := make([]inlineButton, 0, len(n.Actions))
	for i, label := range n.Actions {
		row = append(row, inlineButton{Text: label, CallbackData: encodeCallback(id, i)})
	}
	payload := map[string]interface{}{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	if len(row) > 0 {
		payload["reply_markup"] = map[string]interface{}{
			"inline_keyboard": [][]inlineButton{row},
		}
	}

	result, err := t.call(ctx, "sendMessage", payload)
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	var msg struct {
		MessageID int64 `json:"message_id"`
	}
	if err := json.Unmarshal(result, &msg); err != nil {
		return fmt.Errorf("failed to parse telegram message: %w", err)
	}

	t.mu.Lock()
	t.messages[id] = msg.MessageID
	t.mu.Unlock()
	return nil
}

func (t *Telegram) Dismiss(ctx context.Context, id string) error {
	t.mu.Lock()
	messageID, ok := t.messages[id]
	delete(t.messages, id)
	t.mu.Unlock()
	if !ok {
		return nil
	}

	_, err := t.call(ctx, "deleteMessage", map[string]interface{}{
		"chat_id":    t.chatID,
		"message_id": messageID,
	})
	if err != nil {
		return fmt.Errorf("failed to delete telegram message: %w", err)
	}
	return nil
}

// Poll long-polls for button presses and passes each one to handle. It
// blocks until ctx is done.
func (t *Telegram) Poll(ctx context.Context, handle func(Interaction)) error {
	logger.Info(ctx, "Telegram poller started", "timeout", t.pollTimeout)
	for {
		if ctx.Err() != nil {
			return nil
		}
		updates, err := t.getUpdates(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn(ctx, "Telegram getUpdates failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(5 * time.Second):
			}
			continue
		}
		for _, u := range updates {
			if u.CallbackQuery == nil {
				continue
			}
			if _, err := t.call(ctx, "answerCallbackQuery", map[string]interface{}{
				"callback_query_id": u.CallbackQuery.ID,
			}); err != nil {
				logger.Debug(ctx, "Telegram answerCallbackQuery failed", "error", err)
			}
			in, ok := decodeCallback(u.CallbackQuery.Data)
			if !ok {
				logger.Debug(ctx, "Ignoring unknown telegram callback", "data", u.CallbackQuery.Data)
				continue
			}
			handle(in)
		}
	}
}

func (t *Telegram) getUpdates(ctx context.Context) ([]telegramUpdate, error) {
	t.mu.Lock()
	offset := t.lastUpdateID
	t.mu.Unlock()

	payload := map[string]interface{}{
		"timeout":         t.pollTimeout,
		"allowed_updates": []string{"callback_query"},
	}
	if offset > 0 {
		payload["offset"] = offset + 1
	}

	result, err := t.call(ctx, "getUpdates", payload)
	if err != nil {
		return nil, err
	}
	var updates []telegramUpdate
	if err := json.Unmarshal(result, &updates); err != nil {
		return nil, fmt.Errorf("failed to parse updates: %w", err)
	}

	if len(updates) > 0 {
		t.mu.Lock()
		t.lastUpdateID = updates[len(updates)-1].UpdateID
		t.mu.Unlock()
	}
	return updates, nil
}

// call makes a request to the Telegram Bot API and returns the result field.
func (t *Telegram) call(ctx context.Context, method string, payload map[string]interface{}) (json.RawMessage, error) {
	url := fmt.Sprintf("%s/bot%s/%s", t.baseURL, t.botToken, method)

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(jsonData)))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var tgResp telegramResponse
	if err := json.Unmarshal(body, &tgResp); err != nil {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}
	if !tgResp.OK {
		return nil, fmt.Errorf("telegram API error: %s", tgResp.Description)
	}
	return tgResp.Result, nil
}

// Callback data is "<notification id>#<button index>", well under
// Telegram's 64 byte limit for uuid based ids.
func encodeCallback(id string, button int) string {
	return id + "#" + strconv.Itoa(button)
}

func decodeCallback(data string) (Interaction, bool) {
	i := strings.LastIndex(data, "#")
	if i <= 0 {
		return Interaction{}, false
	}
	button, err := strconv.Atoi(data[i+1:])
	if err != nil {
		return Interaction{}, false
	}
	return Interaction{NotificationID: data[:i], Button: button}, true
}
