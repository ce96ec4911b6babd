package session

import (
	"errors"
	"fmt"
	"net/http"

	httpclient "github.com/natserract/sfmc-contentblock/pkg/http"
	"go.uber.org/zap"
)

// ErrReauthenticationRequired reports that the backend rejected the session.
var ErrReauthenticationRequired = errors.New("re-authentication required")

// ReauthenticationError carries the login endpoint the user must visit.
type ReauthenticationError struct {
	LoginURL string
}

func (e *ReauthenticationError) Error() string {
	return fmt.Sprintf("%s: visit %s", ErrReauthenticationRequired.Error(), e.LoginURL)
}

func (e *ReauthenticationError) Unwrap() error {
	return ErrReauthenticationRequired
}

// LoginRedirect handles 401 responses by sending the user to LoginURL.
type LoginRedirect struct {
	LoginURL string
	// Navigate is called with LoginURL. Optional.
	Navigate func(loginURL string)
	Logger   *zap.Logger
}

var _ httpclient.AuthFailureHandler = (*LoginRedirect)(nil)

func (l *LoginRedirect) HandleAuthFailure(req *http.Request, _ *httpclient.Response) error {
	if l.Logger != nil {
		l.Logger.Warn("Request unauthorized, redirecting to login",
			zap.String("url", req.URL.String()),
			zap.String("login_url", l.LoginURL))
	}
	if l.Navigate != nil {
		l.Navigate(l.LoginURL)
	}
	return &ReauthenticationError{LoginURL: l.LoginURL}
}
