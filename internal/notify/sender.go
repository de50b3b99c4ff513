// Package notify renders customer notifications and delivers them by email.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Sender delivers one rendered message. Callers treat delivery as
// fire-and-forget: errors are logged, never propagated to the order flow.
type Sender interface {
	Send(ctx context.Context, to, subject, html string) error
}

const ResendURL = "https://api.resend.com/emails"

// Resend 通过 Resend HTTP API 发送邮件。
type Resend struct {
	apiKey string
	from   string
	url    string
	hc     *http.Client
}

func NewResend(apiKey, from string) *Resend {
	return &Resend{apiKey: apiKey, from: from, url: ResendURL, hc: &http.Client{Timeout: 10 * time.Second}}
}

func (r *Resend) Send(ctx context.Context, to, subject, html string) error {
	body, err := json.Marshal(map[string]any{
		"from":    r.from,
		"to":      []string{to},
		"subject": subject,
		"html":    html,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("resend: status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}

// Discard 未配置邮件服务时使用：只记录日志。
type Discard struct {
	Logger *slog.Logger
}

func (d Discard) Send(_ context.Context, to, subject, _ string) error {
	d.Logger.Warn("email sender not configured, skipping email", "to", to, "subject", subject)
	return nil
}

// Async 在后台 goroutine 中投递，调用方不等待结果。
// 关闭时调用 Wait 等待在途邮件发送完成。
type Async struct {
	next    Sender
	logger  *slog.Logger
	timeout time.Duration

	wg sync.WaitGroup
}

func NewAsync(next Sender, logger *slog.Logger, timeout time.Duration) *Async {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Async{next: next, logger: logger, timeout: timeout}
}

func (a *Async) Send(_ context.Context, to, subject, html string) error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		if err := a.next.Send(ctx, to, subject, html); err != nil {
			a.logger.Error("send email failed", "to", to, "subject", subject, "err", err)
			return
		}
		a.logger.Info("email sent", "to", to, "subject", subject)
	}()
	return nil
}

// Wait 阻塞直到在途邮件全部结束（每封最多 timeout）。
func (a *Async) Wait() { a.wg.Wait() }
