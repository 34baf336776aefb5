package lark

import (
	"context"
	"encoding/json"
	"fmt"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"
)

const (
	msgTypeText         = "text"
	msgTypePost         = "post"
	receiveIDTypeOpenID = "open_id"
)

// Config holds Lark app credentials
type Config struct {
	AppID     string
	AppSecret string
	// BaseURL overrides the open platform endpoint (tests, Feishu China)
	BaseURL string
}

// IsConfigured reports whether app credentials are present
func (c Config) IsConfigured() bool {
	return c.AppID != "" && c.AppSecret != ""
}

// Messenger sends direct messages to users by open_id
type Messenger struct {
	client *lark.Client
	logger *zap.Logger
}

// NewMessenger creates a messenger with a token-caching SDK client
func NewMessenger(cfg Config, logger *zap.Logger) *Messenger {
	opts := []lark.ClientOptionFunc{
		lark.WithLogLevel(larkcore.LogLevelWarn),
		lark.WithEnableTokenCache(true),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, lark.WithOpenBaseUrl(cfg.BaseURL))
	}
	return &Messenger{
		client: lark.NewClient(cfg.AppID, cfg.AppSecret, opts...),
		logger: logger,
	}
}

// PostLink is a hyperlink line at the end of a post message
type PostLink struct {
	Text string
	Href string
}

type postElement struct {
	Tag  string `json:"tag"`
	Text string `json:"text"`
	Href string `json:"href,omitempty"`
}

type postBody struct {
	Title   string          `json:"title"`
	Content [][]postElement `json:"content"`
}

// SendText sends a plain text message and returns the Lark message ID
func (m *Messenger) SendText(ctx context.Context, openID, text string) (string, error) {
	if text == "" {
		return "", fmt.Errorf("content cannot be empty")
	}
	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return "", fmt.Errorf("marshal text content: %w", err)
	}
	return m.send(ctx, openID, msgTypeText, string(content))
}

// SendPost sends a rich-text message with a title, one paragraph per line
// and an optional trailing link
func (m *Messenger) SendPost(ctx context.Context, openID, title string, lines []string, link *PostLink) (string, error) {
	if title == "" && len(lines) == 0 {
		return "", fmt.Errorf("content cannot be empty")
	}

	body := postBody{Title: title}
	for _, line := range lines {
		body.Content = append(body.Content, []postElement{{Tag: "text", Text: line}})
	}
	if link != nil && link.Href != "" {
		body.Content = append(body.Content, []postElement{{Tag: "a", Text: link.Text, Href: link.Href}})
	}

	content, err := json.Marshal(map[string]postBody{"en_us": body})
	if err != nil {
		return "", fmt.Errorf("marshal post content: %w", err)
	}
	return m.send(ctx, openID, msgTypePost, string(content))
}

func (m *Messenger) send(ctx context.Context, openID, msgType, content string) (string, error) {
	if openID == "" {
		return "", fmt.Errorf("openID cannot be empty")
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(receiveIDTypeOpenID).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(openID).
			MsgType(msgType).
			Content(content).
			Build()).
		Build()

	resp, err := m.client.Im.Message.Create(ctx, req)
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	if !resp.Success() {
		m.logger.Warn("Lark rejected message",
			zap.String("receive_id", openID),
			zap.String("msg_type", msgType),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return "", fmt.Errorf("lark API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	var messageID string
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}
	m.logger.Debug("Lark message sent",
		zap.String("message_id", messageID),
		zap.String("receive_id", openID))
	return messageID, nil
}
