package session

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"golang.org/x/net/publicsuffix"
)

// CookieSource reads cookie values visible to the client.
type CookieSource interface {
	Cookie(name string) (value string, ok bool)
}

// JarCookies exposes the cookies a jar holds for one origin.
type JarCookies struct {
	Jar    http.CookieJar
	Origin *url.URL
}

func (j JarCookies) Cookie(name string) (string, bool) {
	if j.Jar == nil || j.Origin == nil {
		return "", false
	}
	for _, c := range j.Jar.Cookies(j.Origin) {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

// NewCookieJar returns a jar that honors the public suffix list.
func NewCookieJar() (http.CookieJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return jar, nil
}
