// Package cookiejar models the cookie substrate of a single origin as a page sees it: cookies
// are written one Set-Cookie line at a time (SetCookie) and read back as one serialized header
// (Cookie). Parsing is done by net/http; expiry follows Max-Age and Expires relative to an
// injectable clock. Persistent cookies are kept in a JSON file so they survive restarts.
package cookiejar
