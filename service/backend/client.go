package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"CProject/logger"
)

const (
	defaultSubmitTimeout  = 10 * time.Second
	defaultAccountTimeout = 5 * time.Second
	maxErrorBodyBytes     = 4096
)

// SubmitResult 提交结果 Accepted=false 时 Err 必填
// Code 是后端给的结构化错误码（可能为空 老版本后端只回文本）
// Transport=true 表示网络层失败 交易可能落地也可能没落地
type SubmitResult struct {
	Accepted  bool
	Err       string
	Code      string
	Transport bool
}

// AccountState 链上账户状态
type AccountState struct {
	Nonce   uint64 `json:"nonce"`
	Balance int64  `json:"balance"`
}

// errorBody 后端拒绝时的 JSON 回执 都是可选字段
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Client 到结算后端的无状态 HTTP 客户端。
// 不做任何重试 重试策略在编排层（那里才分得清换不换 nonce）。
type Client struct {
	baseURL        string
	httpc          *http.Client
	submitTimeout  time.Duration
	accountTimeout time.Duration
}

type Option func(*Client)

func WithSubmitTimeout(d time.Duration) Option {
	return func(c *Client) { c.submitTimeout = d }
}

func WithAccountTimeout(d time.Duration) Option {
	return func(c *Client) { c.accountTimeout = d }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpc = h }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		httpc:          &http.Client{},
		submitTimeout:  defaultSubmitTimeout,
		accountTimeout: defaultAccountTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Submit POST 已签名交易 任意 2xx 即接受。
// 网络层失败返回本地错误文本（"Request timeout" 或底层消息）——
// 这是系统里唯一允许产生"不知道落没落地"歧义的地方，调用方用 nonce
// 重同步来处理，不要盲目重发。
func (c *Client) Submit(ctx context.Context, txBytes []byte) SubmitResult {
	ctx, cancel := context.WithTimeout(ctx, c.submitTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/submit", bytes.NewReader(txBytes))
	if err != nil {
		return SubmitResult{Err: err.Error(), Transport: true}
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpc.Do(req)
	if err != nil {
		if isTimeout(err) {
			return SubmitResult{Err: "Request timeout", Transport: true}
		}
		return SubmitResult{Err: err.Error(), Transport: true}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return SubmitResult{Accepted: true}
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if len(body) == 0 {
		return SubmitResult{Err: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}

	// 新版后端回 JSON {error, code} 老版本回纯文本
	var eb errorBody
	if jerr := json.Unmarshal(body, &eb); jerr == nil && eb.Error != "" {
		return SubmitResult{Err: eb.Error, Code: eb.Code}
	}
	return SubmitResult{Err: string(body)}
}

// GetAccount 查询账户 nonce/余额 任何失败都返回 nil（状态未知 不是余额为零）
func (c *Client) GetAccount(ctx context.Context, publicKeyHex string) *AccountState {
	ctx, cancel := context.WithTimeout(ctx, c.accountTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/account/"+publicKeyHex, nil)
	if err != nil {
		return nil
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		logger.Debug("account fetch failed: " + err.Error())
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil
	}

	var st AccountState
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil
	}
	return &st
}

// HealthCheck 活性探测 所有错误都吞成 false
func (c *Client) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.accountTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return false
}
