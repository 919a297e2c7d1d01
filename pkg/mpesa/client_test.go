package mpesa

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smes-pos/smes-backend/pkg/config"
	pkgerrors "github.com/smes-pos/smes-backend/pkg/errors"
)

type darajaStub struct {
	tokenCalls atomic.Int32
	expiresIn  string
	lastPush   stkPushBody
	lastAuth   string
	pushStatus int
	mu         sync.Mutex
}

func (d *darajaStub) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		d.tokenCalls.Add(1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "client_credentials", r.URL.Query().Get("grant_type"))
		_, _ = w.Write([]byte(`{"access_token":"tok-1","expires_in":"` + d.expiresIn + `"}`))
	})
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.lastAuth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&d.lastPush))
		if d.pushStatus != 0 {
			w.WriteHeader(d.pushStatus)
			_, _ = w.Write([]byte(`{"errorMessage":"bad request"}`))
			return
		}
		_, _ = w.Write([]byte(`{"MerchantRequestID":"m-1","CheckoutRequestID":"ws_CO_1","ResponseCode":"0","ResponseDescription":"Success. Request accepted for processing","CustomerMessage":"Success"}`))
	})
	return mux
}

func newTestClient(t *testing.T, stub *darajaStub, now func() time.Time) *Client {
	t.Helper()
	srv := httptest.NewServer(stub.handler(t))
	t.Cleanup(srv.Close)

	client, err := NewClient(config.MpesaConfig{
		BaseURL:         srv.URL,
		ConsumerKey:     "key",
		ConsumerSecret:  "secret",
		ShortCode:       "174379",
		Passkey:         "pk",
		CallbackURL:     "https://example.test/callback",
		TransactionType: "CustomerPayBillOnline",
	}, WithClock(now))
	require.NoError(t, err)
	return client
}

func TestAccessTokenCachedUntilBuffer(t *testing.T) {
	stub := &darajaStub{expiresIn: "3599"}
	current := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	client := newTestClient(t, stub, func() time.Time { return current })

	token, err := client.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)

	current = current.Add(3599*time.Second - 301*time.Second)
	_, err = client.AccessToken(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, stub.tokenCalls.Load())

	current = current.Add(2 * time.Second)
	_, err = client.AccessToken(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, stub.tokenCalls.Load())
}

func TestAccessTokenConcurrentCallersShareFetch(t *testing.T) {
	stub := &darajaStub{expiresIn: "3599"}
	client := newTestClient(t, stub, time.Now)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.AccessToken(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, stub.tokenCalls.Load())
}

func TestSTKPushSendsSignedRequest(t *testing.T) {
	stub := &darajaStub{expiresIn: "3599"}
	now := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	client := newTestClient(t, stub, func() time.Time { return now })

	resp, err := client.STKPush(context.Background(), STKPushRequest{
		Amount:           decimal.RequireFromString("99.40"),
		PhoneNumber:      "0712345678",
		AccountReference: "RCPT-abc",
		TransactionDesc:  "Sale payment",
	})
	require.NoError(t, err)
	assert.True(t, resp.Accepted())
	assert.Equal(t, "ws_CO_1", resp.CheckoutRequestID)

	assert.Equal(t, "Bearer tok-1", stub.lastAuth)
	assert.Equal(t, "20260203040506", stub.lastPush.Timestamp)
	assert.Equal(t, "254712345678", stub.lastPush.PartyA)
	assert.Equal(t, "174379", stub.lastPush.PartyB)
	assert.EqualValues(t, 100, stub.lastPush.Amount)
	decoded, err := base64.StdEncoding.DecodeString(stub.lastPush.Password)
	require.NoError(t, err)
	assert.Equal(t, "174379pk20260203040506", string(decoded))
}

func TestSTKPushRejectedIsDependencyError(t *testing.T) {
	stub := &darajaStub{expiresIn: "3599", pushStatus: http.StatusBadRequest}
	client := newTestClient(t, stub, time.Now)

	_, err := client.STKPush(context.Background(), STKPushRequest{
		Amount:      decimal.NewFromInt(10),
		PhoneNumber: "254712345678",
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))
}

func TestSTKPushValidatesInput(t *testing.T) {
	stub := &darajaStub{expiresIn: "3599"}
	client := newTestClient(t, stub, time.Now)

	_, err := client.STKPush(context.Background(), STKPushRequest{Amount: decimal.NewFromInt(10), PhoneNumber: "12345"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	_, err = client.STKPush(context.Background(), STKPushRequest{Amount: decimal.Zero, PhoneNumber: "0712345678"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
	assert.EqualValues(t, 0, stub.tokenCalls.Load())
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient(config.MpesaConfig{ShortCode: "174379"})
	assert.ErrorIs(t, err, errCredentialsRequired)
}

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"0712345678":    "254712345678",
		"+254712345678": "254712345678",
		"0112 345 678":  "254112345678",
		"254712345678":  "254712345678",
	}
	for in, want := range cases {
		got, err := NormalizePhone(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := NormalizePhone("07123abc78")
	assert.Error(t, err)
}
