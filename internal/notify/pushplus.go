package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const pushPlusURL = "http://www.pushplus.plus/send"

// PushPlus delivers to WeChat through the pushplus.plus relay.
type PushPlus struct {
	token    string
	endpoint string
	client   *http.Client
	log      zerolog.Logger
}

func NewPushPlus(token string, log zerolog.Logger) *PushPlus {
	return &PushPlus{
		token:    token,
		endpoint: pushPlusURL,
		client:   &http.Client{Timeout: 10 * time.Second},
		log:      log,
	}
}

type pushPlusRequest struct {
	Token    string `json:"token"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Template string `json:"template"`
}

type pushPlusResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (p *PushPlus) Send(ctx context.Context, title, body string) bool {
	if p.token == "" {
		p.log.Warn().Msg("PushPlus token not configured")
		return false
	}
	if err := p.send(ctx, title, body); err != nil {
		p.log.Warn().Err(err).Str("title", title).Msg("PushPlus send failed")
		return false
	}
	return true
}

func (p *PushPlus) send(ctx context.Context, title, body string) error {
	payload, err := json.Marshal(pushPlusRequest{Token: p.token, Title: title, Content: body, Template: "html"})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var result pushPlusResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if result.Code != 200 {
		return fmt.Errorf("pushplus error %d: %s", result.Code, result.Msg)
	}
	return nil
}
