// Package stripe 支付处理器的 REST 客户端实现
package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wyfcoding/ecommerce/internal/payment/domain"
)

const (
	defaultBaseURL = "https://api.stripe.com/v1"
	requestTimeout = 15 * time.Second

	// webhook 时间戳容忍窗口，防重放
	signatureTolerance = 5 * time.Minute
)

// Client Stripe API 客户端
type Client struct {
	baseURL       string
	secretKey     string
	webhookSecret string
	httpClient    *http.Client
	now           func() time.Time
}

// Option 客户端可选配置
type Option func(*Client)

// WithBaseURL 覆盖 API 地址，用于测试
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithHTTPClient 覆盖 HTTP 客户端
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithClock 覆盖时钟，用于测试签名时间窗口
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient 创建 Stripe 客户端
func NewClient(secretKey, webhookSecret string, opts ...Option) *Client {
	c := &Client{
		baseURL:       defaultBaseURL,
		secretKey:     secretKey,
		webhookSecret: webhookSecret,
		httpClient:    &http.Client{Timeout: requestTimeout},
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type intentResponse struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
}

type refundResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount int64  `json:"amount"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// CreateIntent 创建支付意图
func (c *Client) CreateIntent(ctx context.Context, amount int64, currency string, methodTypes []string, metadata map[string]string) (*domain.Intent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amount, 10))
	form.Set("currency", currency)
	for _, mt := range methodTypes {
		form.Add("payment_method_types[]", mt)
	}
	for k, v := range metadata {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
	}

	var resp intentResponse
	if err := c.post(ctx, "/payment_intents", form, &resp); err != nil {
		return nil, err
	}
	return &domain.Intent{ID: resp.ID, ClientSecret: resp.ClientSecret, Status: resp.Status}, nil
}

// ConfirmIntent 确认支付意图
func (c *Client) ConfirmIntent(ctx context.Context, intentID, methodID string) (*domain.ConfirmResult, error) {
	form := url.Values{}
	if methodID != "" {
		form.Set("payment_method", methodID)
	}

	var resp intentResponse
	if err := c.post(ctx, "/payment_intents/"+url.PathEscape(intentID)+"/confirm", form, &resp); err != nil {
		return nil, err
	}

	received := int64(0)
	if resp.Status == domain.IntentSucceeded {
		received = resp.Amount
	}
	return &domain.ConfirmResult{Status: resp.Status, AmountReceived: received}, nil
}

// CreateRefund 创建退款，amount 为 nil 时全额退款
func (c *Client) CreateRefund(ctx context.Context, intentID string, amount *int64, reason string) (*domain.Refund, error) {
	form := url.Values{}
	form.Set("payment_intent", intentID)
	if amount != nil {
		form.Set("amount", strconv.FormatInt(*amount, 10))
	}
	if reason != "" {
		form.Set("reason", reason)
	}

	var resp refundResponse
	if err := c.post(ctx, "/refunds", form, &resp); err != nil {
		return nil, err
	}
	return &domain.Refund{ID: resp.ID, Status: resp.Status, Amount: resp.Amount}, nil
}

func (c *Client) post(ctx context.Context, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrGateway, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrGateway, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrGateway, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr errorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("%w: %s (%s)", domain.ErrGateway, apiErr.Error.Message, apiErr.Error.Code)
		}
		return fmt.Errorf("%w: unexpected status %d", domain.ErrGateway, resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: malformed response: %v", domain.ErrGateway, err)
	}
	return nil
}

type webhookEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID string `json:"id"`
		} `json:"object"`
	} `json:"data"`
}

// VerifyWebhook 校验 webhook 签名并解析事件
// 签名头格式 t=<unix>,v1=<hex hmac>，签名串为 "<t>.<payload>"
func (c *Client) VerifyWebhook(payload []byte, signature string) (*domain.WebhookEvent, error) {
	timestamp, candidates, err := parseSignatureHeader(signature)
	if err != nil {
		return nil, err
	}

	age := c.now().Sub(time.Unix(timestamp, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return nil, fmt.Errorf("%w: timestamp outside tolerance", domain.ErrInvalidSignature)
	}

	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	valid := false
	for _, candidate := range candidates {
		decoded, err := hex.DecodeString(candidate)
		if err != nil {
			continue
		}
		if hmac.Equal(expected, decoded) {
			valid = true
			break
		}
	}
	if !valid {
		return nil, domain.ErrInvalidSignature
	}

	var envelope webhookEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	if envelope.Type == "" {
		return nil, fmt.Errorf("%w: missing event type", domain.ErrInvalidPayload)
	}

	return &domain.WebhookEvent{
		ID:       envelope.ID,
		Type:     envelope.Type,
		IntentID: envelope.Data.Object.ID,
	}, nil
}

func parseSignatureHeader(signature string) (int64, []string, error) {
	var (
		timestamp  int64
		candidates []string
	)
	for _, part := range strings.Split(signature, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("%w: bad timestamp", domain.ErrInvalidSignature)
			}
			timestamp = ts
		case "v1":
			candidates = append(candidates, kv[1])
		}
	}
	if timestamp == 0 || len(candidates) == 0 {
		return 0, nil, fmt.Errorf("%w: malformed signature header", domain.ErrInvalidSignature)
	}
	return timestamp, candidates, nil
}
