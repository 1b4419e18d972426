package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// httpDoer 便于在测试中替换 HTTP 客户端。
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type resendEmailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type resendEmailResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// ResendClient 通过 Resend HTTP API 投递邮件，实现 Mailer。
type ResendClient struct {
	http    httpDoer
	baseURL string
	apiKey  string
	from    string
}

// NewResendClient creates a ResendClient with sane timeouts.
func NewResendClient(apiKey, from string) *ResendClient {
	return &ResendClient{
		http:    &http.Client{Timeout: 15 * time.Second},
		baseURL: "https://api.resend.com",
		apiKey:  strings.TrimSpace(apiKey),
		from:    strings.TrimSpace(from),
	}
}

// SetHTTPClient 覆盖底层 HTTP 客户端，传 nil 恢复默认。
func (c *ResendClient) SetHTTPClient(client httpDoer) {
	if client == nil {
		c.http = &http.Client{Timeout: 15 * time.Second}
		return
	}
	c.http = client
}

// SetBaseURL 覆盖接口地址，测试时指向 httptest 服务。
func (c *ResendClient) SetBaseURL(base string) {
	c.baseURL = strings.TrimRight(strings.TrimSpace(base), "/")
}

// Send 发送一封 HTML 邮件。
func (c *ResendClient) Send(ctx context.Context, to, subject, htmlBody string) error {
	if c.apiKey == "" {
		return fmt.Errorf("resend api key is not configured")
	}

	payload := resendEmailRequest{
		From:    c.from,
		To:      []string{to},
		Subject: subject,
		HTML:    htmlBody,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("构造请求失败: %w", err)
	}

	endpoint := strings.TrimRight(c.baseURL, "/") + "/emails"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("创建 Resend 请求失败: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("请求 Resend 接口失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("读取 Resend 响应失败: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var parsed resendEmailResponse
		errMsg := ""
		if json.Unmarshal(respBody, &parsed) == nil {
			errMsg = strings.TrimSpace(parsed.Message)
		}
		if errMsg == "" {
			errMsg = strings.TrimSpace(string(respBody))
		}
		if errMsg == "" {
			errMsg = resp.Status
		}
		return fmt.Errorf("Resend 接口返回错误：%s", errMsg)
	}

	return nil
}
