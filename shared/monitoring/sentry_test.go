package monitoring

import (
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
)

func TestRemoveSensitiveQueryParams(t *testing.T) {
	raw := "http://127.0.0.1:5173/auth/callback?state=abc&id_token=eyJ.secret.sig#id_token=eyJ.frag.sig"

	cleaned := RemoveSensitiveQueryParams(raw)

	assert.NotContains(t, cleaned, "eyJ")
	assert.NotContains(t, cleaned, "#")
	assert.Contains(t, cleaned, "state=abc")
}

func TestFilterSensitiveData(t *testing.T) {
	event := &sentry.Event{
		Request: &sentry.Request{
			Headers: map[string]string{"Authorization": "Bearer x", "Accept": "application/json"},
			Data:    `{"signature":"AAAA"}`,
		},
		Extra: map[string]interface{}{"salt": "00ff", "digest": "abc"},
		Contexts: map[string]sentry.Context{
			"session": {"ephemeralPrivateKey": "secret", "address": "0x1"},
		},
	}

	FilterSensitiveData(event)

	assert.Equal(t, "[FILTERED]", event.Request.Headers["Authorization"])
	assert.Equal(t, "application/json", event.Request.Headers["Accept"])
	assert.Empty(t, event.Request.Data)
	assert.Equal(t, "[FILTERED]", event.Extra["salt"])
	assert.Equal(t, "abc", event.Extra["digest"])
	assert.Equal(t, "[FILTERED]", event.Contexts["session"]["ephemeralPrivateKey"])
	assert.Equal(t, "0x1", event.Contexts["session"]["address"])
}

func TestInitSentry_NoDSN(t *testing.T) {
	t.Setenv("SENTRY_DSN", "")
	enabled, err := InitSentry(&SentryConfig{ServiceName: "test"})
	assert.NoError(t, err)
	assert.False(t, enabled)
}
