package callback

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/quangdang46/talent-passport/services/auth-client/internal/domain"
	"github.com/quangdang46/talent-passport/shared/logging"
)

type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) CaptureToken(ctx context.Context, rawToken string) error {
	return m.Called(ctx, rawToken).Error(0)
}

func (m *MockCompleter) HandleCallback(ctx context.Context, callbackURL string) (*domain.LoginResult, error) {
	args := m.Called(ctx, callbackURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LoginResult), args.Error(1)
}

func startServer(t *testing.T, completer Completer) *Server {
	t.Helper()
	server := NewServer("127.0.0.1:0", completer, logging.NewNop())
	require.NoError(t, server.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	})
	return server
}

func get(t *testing.T, rawURL string) (int, string) {
	t.Helper()
	resp, err := http.Get(rawURL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestCallback_FragmentServesForwardPage(t *testing.T) {
	completer := new(MockCompleter)
	server := startServer(t, completer)

	status, body := get(t, "http://"+server.Addr()+CallbackPath)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "window.location.hash")
	completer.AssertNotCalled(t, "HandleCallback", mock.Anything, mock.Anything)
}

func TestCallback_CaptureCompletesLogin(t *testing.T) {
	completer := new(MockCompleter)
	account := &domain.Account{Address: "0xabc"}
	completer.On("CaptureToken", mock.Anything, "tok").Return(nil)
	completer.On("HandleCallback", mock.Anything, mock.MatchedBy(func(raw string) bool {
		u, err := url.Parse(raw)
		return err == nil && u.Path == CallbackPath && u.Query().Get("id_token") == "tok"
	})).Return(&domain.LoginResult{State: domain.StateAuthenticated, Account: account}, nil)

	server := startServer(t, completer)
	status, body := get(t, "http://"+server.Addr()+CapturePath+"?id_token=tok")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Signed in")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	result, err := server.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StateAuthenticated, result.State)
	assert.Equal(t, "0xabc", result.Account.Address)
	completer.AssertExpectations(t)
}

func TestCallback_ProviderErrorInQuery(t *testing.T) {
	completer := new(MockCompleter)
	denied := &domain.ProviderDeniedError{Code: "access_denied"}
	completer.On("HandleCallback", mock.Anything, mock.Anything).
		Return(&domain.LoginResult{State: domain.StateFailedDenied}, denied)

	server := startServer(t, completer)
	status, _ := get(t, "http://"+server.Addr()+CallbackPath+"?error=access_denied")
	assert.Equal(t, http.StatusForbidden, status)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	result, err := server.Wait(ctx)
	assert.ErrorIs(t, err, domain.ErrProviderDenied)
	assert.Equal(t, domain.StateFailedDenied, result.State)
	completer.AssertNotCalled(t, "CaptureToken", mock.Anything, mock.Anything)
}

func TestCallback_MissingTokenKeepsWaiting(t *testing.T) {
	completer := new(MockCompleter)
	completer.On("HandleCallback", mock.Anything, mock.Anything).
		Return(&domain.LoginResult{State: domain.StateIdle}, domain.ErrTokenNotFound)

	server := startServer(t, completer)
	status, _ := get(t, "http://"+server.Addr()+CapturePath)
	assert.Equal(t, http.StatusBadRequest, status)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := server.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCallback_FailurePageHidesErrorDetail(t *testing.T) {
	completer := new(MockCompleter)
	completer.On("CaptureToken", mock.Anything, "tok").Return(nil)
	completer.On("HandleCallback", mock.Anything, mock.Anything).
		Return(&domain.LoginResult{State: domain.StateIdle}, errors.New("salt service said: internal stack trace at db.go:42"))

	server := startServer(t, completer)
	status, body := get(t, "http://"+server.Addr()+CapturePath+"?id_token=tok")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Contains(t, body, "Sign-in not completed")
	assert.Contains(t, body, "Check the terminal for details")
	assert.NotContains(t, body, "db.go")
}

func TestCallback_NonceMismatchPage(t *testing.T) {
	completer := new(MockCompleter)
	completer.On("CaptureToken", mock.Anything, "tok").Return(nil)
	completer.On("HandleCallback", mock.Anything, mock.Anything).
		Return(&domain.LoginResult{State: domain.StateFailedNonce}, domain.ErrNonceMismatch)

	server := startServer(t, completer)
	status, body := get(t, "http://"+server.Addr()+CapturePath+"?id_token=tok")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, body, "Sign-in failed")
	assert.Contains(t, body, "current login attempt")
}
