package monitoring

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
)

const filtered = "[FILTERED]"

// sensitiveKeys are matched as lowercase substrings of header, context and extra keys
var sensitiveKeys = []string{
	"password", "secret", "token", "jwt",
	"authorization", "cookie",
	"api_key", "apikey",
	"private_key", "privatekey", "ephemeral",
	"salt", "signature", "randomness",
}

// SentryConfig holds Sentry configuration options
type SentryConfig struct {
	DSN              string
	Environment      string
	Release          string
	Debug            bool
	SampleRate       float64
	TracesSampleRate float64
	ServiceName      string
	ServerName       string
}

// InitSentry initializes Sentry with the provided configuration.
// It returns false without error when no DSN is configured.
func InitSentry(config *SentryConfig) (bool, error) {
	dsn := config.DSN
	if dsn == "" {
		dsn = os.Getenv("SENTRY_DSN")
	}
	if dsn == "" {
		return false, nil
	}

	environment := config.Environment
	if environment == "" {
		environment = os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}
	}

	release := config.Release
	if release == "" {
		release = os.Getenv("RELEASE_VERSION")
		if release == "" {
			release = "unknown"
		}
	}

	sampleRate := config.SampleRate
	if sampleRate == 0 {
		if environment == "production" {
			sampleRate = 1.0
		} else {
			sampleRate = 0.25
		}
	}

	tracesSampleRate := config.TracesSampleRate
	if tracesSampleRate == 0 {
		if environment == "production" {
			tracesSampleRate = 0.1
		} else {
			tracesSampleRate = 0.05
		}
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          release,
		Debug:            config.Debug,
		SampleRate:       sampleRate,
		TracesSampleRate: tracesSampleRate,
		ServerName:       config.ServerName,
		AttachStacktrace: true,
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			if config.ServiceName != "" {
				if event.Tags == nil {
					event.Tags = map[string]string{}
				}
				event.Tags["service"] = config.ServiceName
			}
			FilterSensitiveData(event)
			return event
		},
		BeforeBreadcrumb: func(breadcrumb *sentry.Breadcrumb, hint *sentry.BreadcrumbHint) *sentry.Breadcrumb {
			if breadcrumb.Type == "http" {
				FilterHTTPBreadcrumb(breadcrumb)
			}
			return breadcrumb
		},
	})
	if err != nil {
		return false, fmt.Errorf("failed to initialize Sentry: %w", err)
	}

	return true, nil
}

// FilterSensitiveData removes sensitive information from events
func FilterSensitiveData(event *sentry.Event) {
	if event.Request != nil {
		for key := range event.Request.Headers {
			if containsSensitiveKey(key) {
				event.Request.Headers[key] = filtered
			}
		}
		if event.Request.Cookies != "" {
			event.Request.Cookies = filtered
		}
		if event.Request.QueryString != "" {
			event.Request.QueryString = filterQuery(event.Request.QueryString)
		}
		if event.Request.URL != "" {
			event.Request.URL = RemoveSensitiveQueryParams(event.Request.URL)
		}
		// Bodies carry transaction bytes and signatures
		event.Request.Data = ""
	}

	for _, contextValue := range event.Contexts {
		for key := range contextValue {
			if containsSensitiveKey(key) {
				contextValue[key] = filtered
			}
		}
	}

	for key := range event.Extra {
		if containsSensitiveKey(key) {
			event.Extra[key] = filtered
		}
	}
}

// FilterHTTPBreadcrumb filters sensitive data from HTTP breadcrumbs
func FilterHTTPBreadcrumb(breadcrumb *sentry.Breadcrumb) {
	if data, ok := breadcrumb.Data["url"].(string); ok {
		breadcrumb.Data["url"] = RemoveSensitiveQueryParams(data)
	}

	if headers, ok := breadcrumb.Data["headers"].(map[string]interface{}); ok {
		for key := range headers {
			if containsSensitiveKey(key) {
				headers[key] = filtered
			}
		}
	}
}

// RemoveSensitiveQueryParams masks sensitive query parameters and drops the fragment,
// which is where implicit-flow identity tokens arrive.
func RemoveSensitiveQueryParams(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return filtered
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.RawQuery = filterQuery(u.RawQuery)
	return u.String()
}

func filterQuery(rawQuery string) string {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return filtered
	}
	for key := range values {
		if containsSensitiveKey(key) {
			values.Set(key, filtered)
		}
	}
	return values.Encode()
}

func containsSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)
	for _, sensitive := range sensitiveKeys {
		if strings.Contains(lowerKey, sensitive) {
			return true
		}
	}
	return false
}

// FlushSentry flushes buffered events
func FlushSentry(timeout time.Duration) {
	sentry.Flush(timeout)
}

// CaptureError captures an error and sends it to Sentry
func CaptureError(err error, tags map[string]string, extra map[string]interface{}) {
	hub := sentry.CurrentHub()
	hub.WithScope(func(scope *sentry.Scope) {
		for key, value := range tags {
			scope.SetTag(key, value)
		}
		for key, value := range extra {
			scope.SetExtra(key, value)
		}
		hub.CaptureException(err)
	})
}
