package kube

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"k8s.io/client-go/rest"
)

// DefaultTokenFile is where kubernetes mounts the service account token
const DefaultTokenFile = "/var/run/secrets/kubernetes.io/serviceaccount/token"

// Credentials holds the resolved authentication material. Exactly one of
// basic credentials or TokenFile is set.
type Credentials struct {
	Username  string
	Password  string
	TokenFile string
}

// IsBasic reports whether basic authentication was selected
func (c Credentials) IsBasic() bool {
	return c.Username != "" && c.Password != ""
}

// ResolveAuth picks basic authentication when both username and password
// are set and falls back to a readable, non-empty bearer token file.
func ResolveAuth(username, password, tokenFile string) (Credentials, error) {
	if username != "" && password != "" {
		return Credentials{Username: username, Password: password}, nil
	}
	if tokenFile == "" {
		return Credentials{}, ErrNoCredentials
	}
	token, err := os.ReadFile(tokenFile)
	if err != nil {
		if os.IsNotExist(err) {
			return Credentials{}, ErrNoCredentials
		}
		return Credentials{}, errors.Wrapf(err, "failed to read token file %s", tokenFile)
	}
	if strings.TrimSpace(string(token)) == "" {
		return Credentials{}, errors.Errorf("token file %s is empty", tokenFile)
	}
	return Credentials{TokenFile: tokenFile}, nil
}

// apply sets the credentials on a rest config
func (c Credentials) apply(cfg *rest.Config) {
	if c.IsBasic() {
		cfg.Username = c.Username
		cfg.Password = c.Password
		return
	}
	cfg.BearerTokenFile = c.TokenFile
}
