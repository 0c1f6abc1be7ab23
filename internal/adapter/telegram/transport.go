// Package telegram implements the transport port over the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rulescribe/rulescribe/internal/config"
	"github.com/rulescribe/rulescribe/internal/port/transport"
)

// maxMessageLen is the Bot API limit for a single message.
const maxMessageLen = 4096

// Transport sends, edits and deletes messages via the Bot API. A MessageRef
// encodes "chatID:messageID" since both are needed for edits and deletes.
type Transport struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a Telegram transport from config.
func New(cfg config.Telegram) *Transport {
	return &Transport{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type inlineKeyboard struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

type sendMessageRequest struct {
	ChatID      string          `json:"chat_id"`
	Text        string          `json:"text"`
	ReplyMarkup *inlineKeyboard `json:"reply_markup,omitempty"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// Send implements transport.Transport. Options render as one inline button
// per row, the way the selection UI expects them.
func (t *Transport) Send(ctx context.Context, userID, text string, options []transport.Option) (transport.MessageRef, error) {
	if len(text) > maxMessageLen {
		text = text[:maxMessageLen-1] + "…"
	}

	req := sendMessageRequest{ChatID: userID, Text: text}
	if len(options) > 0 {
		kb := &inlineKeyboard{}
		for _, opt := range options {
			kb.InlineKeyboard = append(kb.InlineKeyboard, []inlineButton{
				{Text: opt.Label, CallbackData: opt.Value},
			})
		}
		req.ReplyMarkup = kb
	}

	raw, err := t.call(ctx, "sendMessage", req)
	if err != nil {
		return "", err
	}

	var result struct {
		MessageID int64 `json:"message_id"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("telegram decode sendMessage result: %w", err)
	}

	return transport.MessageRef(userID + ":" + strconv.FormatInt(result.MessageID, 10)), nil
}

// Edit implements transport.Transport.
func (t *Transport) Edit(ctx context.Context, ref transport.MessageRef, text string) error {
	chatID, messageID, err := splitRef(ref)
	if err != nil {
		return err
	}
	if len(text) > maxMessageLen {
		text = text[:maxMessageLen-1] + "…"
	}

	_, err = t.call(ctx, "editMessageText", map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
	})
	return err
}

// Delete implements transport.Transport.
func (t *Transport) Delete(ctx context.Context, ref transport.MessageRef) error {
	chatID, messageID, err := splitRef(ref)
	if err != nil {
		return err
	}

	_, err = t.call(ctx, "deleteMessage", map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
	})
	return err
}

// SendTyping implements transport.Transport.
func (t *Transport) SendTyping(ctx context.Context, userID string) error {
	_, err := t.call(ctx, "sendChatAction", map[string]any{
		"chat_id": userID,
		"action":  "typing",
	})
	return err
}

func (t *Transport) call(ctx context.Context, method string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("telegram marshal %s: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", t.baseURL, t.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("telegram request %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram %s: %w", method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("telegram read %s response: %w", method, err)
	}

	var api apiResponse
	if err := json.Unmarshal(data, &api); err != nil {
		return nil, fmt.Errorf("telegram decode %s response: %w", method, err)
	}
	if !api.OK {
		// Editing or deleting a vanished message is a 400 with a
		// "message ... not found" description.
		if strings.Contains(strings.ToLower(api.Description), "not found") {
			return nil, transport.ErrNotFound
		}
		return nil, fmt.Errorf("telegram API %s: %s", method, api.Description)
	}

	return api.Result, nil
}

func splitRef(ref transport.MessageRef) (chatID string, messageID int64, err error) {
	chatID, idStr, ok := strings.Cut(string(ref), ":")
	if !ok {
		return "", 0, fmt.Errorf("telegram: malformed message ref %q", ref)
	}
	messageID, err = strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("telegram: malformed message ref %q", ref)
	}
	return chatID, messageID, nil
}
