// Package offlinecache keeps the application usable without network.
//
// Worker is a caching reverse proxy in front of the server. Install seeds the
// current cache generation with the shell routes, Activate drops every other
// generation, and ServeHTTP answers GET requests cache-first. When the
// server cannot be reached, API requests receive a fixed 503 JSON body that
// callers can tell apart from a server error, and everything else falls back
// to the cached root document.
package offlinecache
