package service

import (
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/quangdang46/talent-passport/services/auth-client/internal/config"
	"github.com/quangdang46/talent-passport/services/auth-client/internal/domain"
)

var providerEndpoints = map[string]oauth2.Endpoint{
	"google": google.Endpoint,
}

// NonceBinder builds the provider authorization URL carrying the nonce
type NonceBinder struct {
	provider config.ProviderConfig
}

func NewNonceBinder(provider config.ProviderConfig) *NonceBinder {
	return &NonceBinder{provider: provider}
}

// Configured fails fast when the provider cannot be reached
func (b *NonceBinder) Configured() error {
	if b.provider.ClientID == "" {
		return domain.ConfigError("ZKLOGIN_CLIENT_ID")
	}
	if b.provider.RedirectURL == "" {
		return domain.ConfigError("ZKLOGIN_REDIRECT_URL")
	}
	if _, ok := providerEndpoints[b.provider.Name]; !ok {
		return fmt.Errorf("%w: unsupported provider %q", domain.ErrConfiguration, b.provider.Name)
	}
	return nil
}

// AuthURL asks for an implicit id_token bound to nonce
func (b *NonceBinder) AuthURL(state, nonce string) (string, error) {
	if err := b.Configured(); err != nil {
		return "", err
	}

	conf := &oauth2.Config{
		ClientID:    b.provider.ClientID,
		RedirectURL: b.provider.RedirectURL,
		Scopes:      b.provider.Scopes,
		Endpoint:    providerEndpoints[b.provider.Name],
	}

	return conf.AuthCodeURL(state,
		oauth2.SetAuthURLParam("response_type", "id_token"),
		oauth2.SetAuthURLParam("nonce", nonce),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	), nil
}

// ClientID is the expected token audience
func (b *NonceBinder) ClientID() string {
	return b.provider.ClientID
}
