package backend

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ValentinKolb/evercookie/lib/cookiejar"
)

type cookieBackend struct {
	jar    *cookiejar.Jar
	path   string
	maxAge int
}

// NewCookie creates the cookie backend. Records are written as "key=value; Path=<path>;
// Max-Age=<maxAge>" and read back by parsing the jar's cookie header.
func NewCookie(jar *cookiejar.Jar, path string, maxAgeSeconds int) IBackend {
	return &cookieBackend{
		jar:    jar,
		path:   path,
		maxAge: maxAgeSeconds,
	}
}

func (c *cookieBackend) Kind() Kind { return Cookie }

func (c *cookieBackend) Write(_ context.Context, key, value string) error {
	if !validCookieValue(value) {
		return fmt.Errorf("%w: value %q cannot be stored in a cookie", ErrInvalidRecord, value)
	}

	// String() returns "" for an invalid name
	line := (&http.Cookie{Name: key, Value: value, Path: c.path, MaxAge: c.maxAge}).String()
	if line == "" {
		return fmt.Errorf("%w: key %q is not a valid cookie name", ErrInvalidRecord, key)
	}
	return c.jar.SetCookie(line)
}

func (c *cookieBackend) Read(_ context.Context, key string) (string, bool, error) {
	header := c.jar.Cookie()
	if header == "" {
		return "", false, nil
	}

	cookies, err := http.ParseCookie(header)
	if err != nil {
		return "", false, fmt.Errorf("failed to parse cookie header: %w", err)
	}
	for _, ck := range cookies {
		if ck.Name == key {
			return ck.Value, true, nil
		}
	}
	return "", false, nil
}

func (c *cookieBackend) Clear(context.Context) error {
	return c.jar.Clear()
}

// validCookieValue reports whether net/http would keep every byte of v
func validCookieValue(v string) bool {
	for i := 0; i < len(v); i++ {
		b := v[i]
		if b < 0x20 || b >= 0x7f || b == '"' || b == ';' || b == '\\' {
			return false
		}
	}
	// surrounding spaces are trimmed when the header is parsed
	return len(v) == 0 || (v[0] != ' ' && v[len(v)-1] != ' ')
}
