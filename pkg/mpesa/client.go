package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/smes-pos/smes-backend/pkg/config"
	pkgerrors "github.com/smes-pos/smes-backend/pkg/errors"
	"github.com/smes-pos/smes-backend/pkg/metrics"
)

const (
	defaultBaseURL              = "https://sandbox.safaricom.co.ke"
	oauthPath                   = "/oauth/v1/generate?grant_type=client_credentials"
	stkPushPath                 = "/mpesa/stkpush/v1/processrequest"
	timestampLayout             = "20060102150405"
	defaultExpiryBuffer         = 300 * time.Second
	responseBodyReadLimit int64 = 1024
)

var (
	errCredentialsRequired = errors.New("mpesa consumer key and secret are required")
	errShortCodeRequired   = errors.New("mpesa shortcode is required")
)

// Client talks to the Daraja OAuth and STK push endpoints.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	cfg          config.MpesaConfig
	expiryBuffer time.Duration
	tokens       TokenCache
	metrics      *metrics.PaymentMetrics
	now          func() time.Time

	// serializes remote token fetches so concurrent callers share one request
	fetchMu sync.Mutex
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the Daraja base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = strings.TrimRight(trimmed, "/")
		}
	}
}

// WithTokenCache replaces the in-process token cache (e.g. with a Redis one).
func WithTokenCache(cache TokenCache) Option {
	return func(c *Client) {
		if cache != nil {
			c.tokens = cache
		}
	}
}

// WithMetrics records token and STK push counters.
func WithMetrics(m *metrics.PaymentMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithClock overrides time.Now, used for token expiry and timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient builds a Daraja client from configuration.
func NewClient(cfg config.MpesaConfig, opts ...Option) (*Client, error) {
	if !cfg.Enabled() {
		return nil, errCredentialsRequired
	}
	if strings.TrimSpace(cfg.ShortCode) == "" {
		return nil, errShortCodeRequired
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	buffer := cfg.TokenExpiryBuffer
	if buffer <= 0 {
		buffer = defaultExpiryBuffer
	}

	client := &Client{
		httpClient:   &http.Client{Timeout: timeout},
		baseURL:      defaultBaseURL,
		cfg:          cfg,
		expiryBuffer: buffer,
		tokens:       NewMemoryTokenCache(),
		now:          time.Now,
	}
	WithBaseURL(cfg.BaseURL)(client)

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// ShortCode returns the business shortcode payments are credited to.
func (c *Client) ShortCode() string {
	return c.cfg.ShortCode
}

// AccessToken returns a cached OAuth token, fetching a new one when the cached
// token is missing or inside the expiry buffer.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	if c == nil {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "mpesa client not configured")
	}
	if token, ok := c.tokens.Get(ctx, c.now()); ok {
		c.metrics.TokenLookup("cache")
		return token, nil
	}

	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()

	if token, ok := c.tokens.Get(ctx, c.now()); ok {
		c.metrics.TokenLookup("cache")
		return token, nil
	}

	token, expiresIn, err := c.fetchToken(ctx)
	if err != nil {
		c.metrics.TokenLookup("error")
		return "", err
	}
	c.metrics.TokenLookup("remote")

	validUntil := c.now().Add(expiresIn - c.expiryBuffer)
	c.tokens.Set(ctx, token, validUntil)
	return token, nil
}

func (c *Client) fetchToken(ctx context.Context) (string, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+oauthPath, nil)
	if err != nil {
		return "", 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build mpesa token request")
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute mpesa token request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return "", 0, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "mpesa token request failed")
	}

	var body struct {
		AccessToken string      `json:"access_token"`
		ExpiresIn   json.Number `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode mpesa token response")
	}
	if body.AccessToken == "" {
		return "", 0, pkgerrors.New(pkgerrors.CodeDependency, "mpesa token response missing access_token")
	}
	seconds, err := strconv.ParseInt(body.ExpiresIn.String(), 10, 64)
	if err != nil {
		return "", 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "parse mpesa token expiry")
	}
	return body.AccessToken, time.Duration(seconds) * time.Second, nil
}

// STKPushRequest is the caller-facing input for a Lipa na M-Pesa prompt.
type STKPushRequest struct {
	Amount           decimal.Decimal
	PhoneNumber      string
	AccountReference string
	TransactionDesc  string
}

// STKPushResponse mirrors the synchronous Daraja acknowledgement.
type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// Accepted reports whether Daraja queued the prompt.
func (r STKPushResponse) Accepted() bool {
	return r.ResponseCode == "0"
}

type stkPushBody struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

// STKPush asks Daraja to prompt the customer's phone for payment.
func (c *Client) STKPush(ctx context.Context, in STKPushRequest) (*STKPushResponse, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "mpesa client not configured")
	}
	phone, err := NormalizePhone(in.PhoneNumber)
	if err != nil {
		return nil, err
	}
	amount := in.Amount.Ceil()
	if amount.LessThan(decimal.NewFromInt(1)) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be at least 1")
	}

	token, err := c.AccessToken(ctx)
	if err != nil {
		c.metrics.STKPush("token_error")
		return nil, err
	}

	timestamp := Timestamp(c.now())
	body := stkPushBody{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          Password(c.cfg.ShortCode, c.cfg.Passkey, timestamp),
		Timestamp:         timestamp,
		TransactionType:   c.cfg.TransactionType,
		Amount:            amount.IntPart(),
		PartyA:            phone,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       phone,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  in.AccountReference,
		TransactionDesc:   in.TransactionDesc,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal stk push request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+stkPushPath, bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build stk push request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.STKPush("transport_error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute stk push request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		c.metrics.STKPush("rejected")
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		if resp.StatusCode == http.StatusUnauthorized {
			c.tokens.Invalidate(ctx)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "stk push request failed").
			WithDetails(map[string]any{"status": resp.StatusCode})
	}

	var out STKPushResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode stk push response")
	}
	c.metrics.STKPush("accepted")
	return &out, nil
}

// Timestamp formats t the way Daraja expects (yyyyMMddHHmmss).
func Timestamp(t time.Time) string {
	return t.Format(timestampLayout)
}

// Password builds base64(shortcode + passkey + timestamp).
func Password(shortCode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passkey + timestamp))
}

// NormalizePhone converts local Kenyan formats (07.., 01.., +254..) to 2547../2541...
func NormalizePhone(raw string) (string, error) {
	phone := strings.TrimSpace(raw)
	phone = strings.TrimPrefix(phone, "+")
	phone = strings.ReplaceAll(phone, " ", "")
	if strings.HasPrefix(phone, "0") && len(phone) == 10 {
		phone = "254" + phone[1:]
	}
	if len(phone) != 12 || !strings.HasPrefix(phone, "254") {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "phone number must be a Kenyan mobile number")
	}
	for _, r := range phone {
		if r < '0' || r > '9' {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "phone number must be numeric")
		}
	}
	return phone, nil
}
