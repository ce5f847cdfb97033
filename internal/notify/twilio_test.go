package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTwilio(t *testing.T, handler http.HandlerFunc) *TwilioSender {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	sender := NewTwilioSender(TwilioConfig{AccountSID: "AC123", AuthToken: "secret", FromNumber: "+15125550000"}, nil)
	require.NotNil(t, sender)
	sender.baseURL = srv.URL
	sender.httpClient = srv.Client()
	sender.retryDelay = func() time.Duration { return time.Millisecond }
	return sender
}

func TestTwilioSenderSuccess(t *testing.T) {
	var calls int32
	sender := newTestTwilio(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/Accounts/AC123/Messages.json", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "secret", pass)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "+15125550100", r.PostForm.Get("To"))
		assert.Equal(t, "+15125550000", r.PostForm.Get("From"))
		assert.Equal(t, "hello", r.PostForm.Get("Body"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM1","status":"queued"}`))
	})

	require.NoError(t, sender.SendSMS(context.Background(), "5125550100", "hello"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTwilioSenderRetriesServerErrors(t *testing.T) {
	var calls int32
	sender := newTestTwilio(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	})

	require.NoError(t, sender.SendSMS(context.Background(), "+15125550100", "hello"))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestTwilioSenderDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	sender := newTestTwilio(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"Invalid 'To' Phone Number"}`))
	})

	err := sender.SendSMS(context.Background(), "+15125550100", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400 code 21211: Invalid 'To' Phone Number")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTwilioSenderRetriesRateLimit(t *testing.T) {
	var calls int32
	sender := newTestTwilio(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	err := sender.SendSMS(context.Background(), "+15125550100", "hello")
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestTwilioSenderValidation(t *testing.T) {
	assert.Nil(t, NewTwilioSender(TwilioConfig{AccountSID: "AC"}, nil))

	sender := NewTwilioSender(TwilioConfig{AccountSID: "AC", AuthToken: "x"}, nil)
	assert.Error(t, sender.SendSMS(context.Background(), "+15125550100", "hi"), "missing from")

	sender.from = "+15125550000"
	assert.Error(t, sender.SendSMS(context.Background(), "", "hi"))
	assert.Error(t, sender.SendSMS(context.Background(), "+15125550100", "  "))
}

func TestToE164(t *testing.T) {
	assert.Equal(t, "+15125550100", toE164("5125550100"))
	assert.Equal(t, "+15125550100", toE164("15125550100"))
	assert.Equal(t, "+447700900123", toE164("+447700900123"))
	assert.Equal(t, "", toE164(" "))
}

func TestFormatTwilioError(t *testing.T) {
	assert.Equal(t, "status 500", formatTwilioError(500, nil))
	assert.Equal(t, "status 400: bad", formatTwilioError(400, []byte(`{"message":"bad"}`)))
	assert.Equal(t, "status 502: upstream", formatTwilioError(502, []byte("upstream")))
}
