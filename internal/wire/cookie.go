package wire

import (
	"strings"
	"time"
)

// HttpOnlyFlag is rendered without a value.
const HttpOnlyFlag = "HttpOnly"

// CookieTimeFormat is the expiry format used in issued cookies.
const CookieTimeFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

const cookieSep = "; "

// Cookie is an ordered key/value set plus the HttpOnly flag.
type Cookie struct {
	keys     []string
	values   map[string]string
	HttpOnly bool
}

// NewCookie builds the cookie handed out by the token endpoint.
// Empty fields are left out; HttpOnly is always set.
func NewCookie(token string, expires time.Time, path string) *Cookie {
	c := &Cookie{values: map[string]string{}, HttpOnly: true}
	if token != "" {
		c.Set("token", token)
	}
	if !expires.IsZero() {
		c.Set("expires", expires.UTC().Format(CookieTimeFormat))
	}
	if path != "" {
		c.Set("path", path)
	}
	return c
}

// ParseCookie parses a Cookie header value such as "token=abc; path=/".
func ParseCookie(s string) (*Cookie, error) {
	c := &Cookie{values: map[string]string{}}
	for _, seg := range strings.Split(s, cookieSep) {
		if seg == HttpOnlyFlag {
			c.HttpOnly = true
			continue
		}
		k, v, ok := strings.Cut(seg, "=")
		if !ok {
			return nil, Errorf(KindMalformed, "bad cookie segment %q", seg)
		}
		c.Set(k, v)
	}
	return c, nil
}

// Get returns the value stored under key.
func (c *Cookie) Get(key string) (string, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Set stores value under key, keeping the position of an existing key.
func (c *Cookie) Set(key, value string) {
	if c.values == nil {
		c.values = map[string]string{}
	}
	if _, ok := c.values[key]; !ok {
		c.keys = append(c.keys, key)
	}
	c.values[key] = value
}

// String renders the cookie in wire form.
func (c *Cookie) String() string {
	parts := make([]string, 0, len(c.keys)+1)
	for _, k := range c.keys {
		parts = append(parts, k+"="+c.values[k])
	}
	if c.HttpOnly {
		parts = append(parts, HttpOnlyFlag)
	}
	return strings.Join(parts, cookieSep)
}
