package cookiejar

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
)

// jarVersion is the version of the on-disk jar format
const jarVersion = 1

// Options configures a Jar.
type Options struct {
	// DocumentPath is the path of the "document" reading the jar (default "/").
	// Only cookies whose path matches it are visible through Cookie().
	DocumentPath string
	// Now returns the current time (default time.Now).
	Now func() time.Time
}

// entry is a stored cookie
type entry struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Path    string    `json:"path"`
	Expires time.Time `json:"expires"` // zero = session cookie
	Created time.Time `json:"created"`
}

func (e *entry) persistent() bool {
	return !e.Expires.IsZero()
}

func (e *entry) expired(now time.Time) bool {
	return e.persistent() && !now.Before(e.Expires)
}

type jarFile struct {
	Version int     `json:"version"`
	Cookies []entry `json:"cookies"`
}

// Jar holds the cookies of a single origin and exposes them the way a page sees them: a
// setter that takes one Set-Cookie style line and a getter that returns the serialized
// cookie header.
//
// Persistent cookies (with Max-Age or Expires) are written to the jar file, session cookies
// only live in memory.
type Jar struct {
	mu      sync.Mutex
	path    string
	docPath string
	now     func() time.Time
	cookies []entry // creation order
}

// Open opens the jar stored at path. An empty path creates a memory-only jar, a missing file
// an empty jar.
func Open(path string, opts *Options) (*Jar, error) {
	j := &Jar{
		path:    path,
		docPath: "/",
		now:     time.Now,
	}
	if opts != nil {
		if opts.DocumentPath != "" {
			j.docPath = opts.DocumentPath
		}
		if opts.Now != nil {
			j.now = opts.Now
		}
	}

	if path == "" {
		return j, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return j, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cookie jar: %w", err)
	}

	var f jarFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse cookie jar %s: %w", path, err)
	}
	if f.Version != jarVersion {
		return nil, fmt.Errorf("unsupported cookie jar version: %d (expected %d)", f.Version, jarVersion)
	}

	now := j.now()
	for _, c := range f.Cookies {
		if !c.expired(now) {
			j.cookies = append(j.cookies, c)
		}
	}
	return j, nil
}

// --------------------------------------------------------------------------
// Document API
// --------------------------------------------------------------------------

// SetCookie stores one cookie given in Set-Cookie syntax (e.g. "id=abc; Path=/; Max-Age=60").
// A cookie with the same name and path is replaced. Max-Age <= 0 or an Expires date in the
// past removes the cookie.
func (j *Jar) SetCookie(line string) error {
	c, err := http.ParseSetCookie(line)
	if err != nil {
		return fmt.Errorf("invalid cookie %q: %w", line, err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	e := entry{
		Name:    c.Name,
		Value:   c.Value,
		Path:    c.Path,
		Created: now,
	}
	if e.Path == "" || !strings.HasPrefix(e.Path, "/") {
		e.Path = defaultPath(j.docPath)
	}

	remove := false
	switch {
	case c.MaxAge < 0:
		remove = true
	case c.MaxAge > 0:
		e.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
	case !c.Expires.IsZero():
		e.Expires = c.Expires
		remove = !now.Before(c.Expires)
	}

	prev := slices.Clone(j.cookies)
	idx := j.indexOf(e.Name, e.Path)
	switch {
	case remove && idx >= 0:
		j.cookies = append(j.cookies[:idx], j.cookies[idx+1:]...)
	case remove:
		return nil
	case idx >= 0:
		// a replaced cookie keeps its creation time (and therefore its position)
		e.Created = j.cookies[idx].Created
		j.cookies[idx] = e
	default:
		j.cookies = append(j.cookies, e)
	}

	if err := j.save(); err != nil {
		j.cookies = prev
		return err
	}
	return nil
}

// Cookie returns the serialized cookie header visible to the document
// ("name=value; name2=value2"), ordered by creation time. Expired cookies are omitted.
func (j *Jar) Cookie() string {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	var parts []string
	for _, c := range j.cookies {
		if c.expired(now) || !pathMatch(j.docPath, c.Path) {
			continue
		}
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}

// Clear removes all cookies, as a user clearing the browser's cookies would.
func (j *Jar) Clear() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	prev := j.cookies
	j.cookies = nil
	if err := j.save(); err != nil {
		j.cookies = prev
		return err
	}
	return nil
}

// Len returns the number of stored (not expired) cookies.
func (j *Jar) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	n := 0
	for _, c := range j.cookies {
		if !c.expired(now) {
			n++
		}
	}
	return n
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func (j *Jar) indexOf(name, path string) int {
	for i, c := range j.cookies {
		if c.Name == name && c.Path == path {
			return i
		}
	}
	return -1
}

// save writes the persistent, not expired cookies to the jar file (caller holds mu). Callers
// restore the previous cookies when it fails.
func (j *Jar) save() error {
	if j.path == "" {
		return nil
	}

	now := j.now()
	f := jarFile{Version: jarVersion, Cookies: []entry{}}
	for _, c := range j.cookies {
		if c.persistent() && !c.expired(now) {
			f.Cookies = append(f.Cookies, c)
		}
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cookie jar: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
		return fmt.Errorf("failed to create cookie jar directory: %w", err)
	}
	tmp := j.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write cookie jar: %w", err)
	}
	if err := os.Rename(tmp, j.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace cookie jar: %w", err)
	}
	return nil
}

// defaultPath computes the default cookie path of a document path (RFC 6265, 5.1.4)
func defaultPath(docPath string) string {
	if docPath == "" || docPath[0] != '/' {
		return "/"
	}
	i := strings.LastIndex(docPath, "/")
	if i == 0 {
		return "/"
	}
	return docPath[:i]
}

// pathMatch reports whether requestPath path-matches cookiePath (RFC 6265, 5.1.4)
func pathMatch(requestPath, cookiePath string) bool {
	if requestPath == cookiePath {
		return true
	}
	if !strings.HasPrefix(requestPath, cookiePath) {
		return false
	}
	return strings.HasSuffix(cookiePath, "/") || requestPath[len(cookiePath)] == '/'
}
