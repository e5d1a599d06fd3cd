// Package apitest runs a fake engagement API for end-to-end tests: a
// client-credentials token endpoint and a totals endpoint that answers
// from configured counts, with scripted failures per call.
package apitest

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
)

// Paths served by Server
const (
	TokenPath  = "/oauth2/token"
	TotalsPath = "/insights/engagement/totals"
)

// Totals are the counts reported for one identifier
type Totals struct {
	Favorites int64
	Retweets  int64
	Replies   int64
}

// Server simulates the engagement API
type Server struct {
	server *httptest.Server
	key    string
	secret string
	token  string

	tokenCalls    atomic.Int32
	submitCalls   atomic.Int32
	rateLimitHits atomic.Int32

	mu         sync.RWMutex
	totals     map[string]Totals
	callStatus map[int]int
	callAbort  map[int]bool
	callRaw    map[int]string
	batches    [][]string
	gzip       bool
}

// NewServer starts a server that issues a token for key and secret only
func NewServer(key, secret string) *Server {
	s := &Server{
		key:        key,
		secret:     secret,
		token:      "test-bearer-token",
		totals:     make(map[string]Totals),
		callStatus: make(map[int]int),
		callAbort:  make(map[int]bool),
		callRaw:    make(map[int]string),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(TokenPath, s.handleToken)
	mux.HandleFunc(TotalsPath, s.handleTotals)

	s.server = httptest.NewServer(mux)
	return s
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	s.tokenCalls.Add(1)

	if r.Method != http.MethodPost {
		s.sendError(w, http.StatusMethodNotAllowed, "token requests must be POST")
		return
	}
	key, secret, ok := r.BasicAuth()
	if !ok || key != s.key || secret != s.secret {
		s.sendError(w, http.StatusForbidden, "Unable to verify your credentials")
		return
	}
	if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "client_credentials" {
		s.sendError(w, http.StatusBadRequest, "grant_type must be client_credentials")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"token_type":   "bearer",
		"access_token": s.token,
	})
}

func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	call := int(s.submitCalls.Add(1))

	if r.Header.Get("Authorization") != "Bearer "+s.token {
		s.sendError(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	s.mu.RLock()
	abort := s.callAbort[call]
	status := s.callStatus[call]
	raw, hasRaw := s.callRaw[call]
	s.mu.RUnlock()

	if abort {
		panic(http.ErrAbortHandler)
	}
	if status != 0 {
		if status == http.StatusTooManyRequests {
			s.rateLimitHits.Add(1)
			w.Header().Set("Retry-After", "60")
		}
		s.sendError(w, status, http.StatusText(status))
		return
	}

	var req struct {
		TweetIDs []string `json:"tweet_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "request body is not valid JSON")
		return
	}
	if len(req.TweetIDs) > 250 {
		s.sendError(w, http.StatusBadRequest, "at most 250 tweet_ids per request")
		return
	}

	s.mu.Lock()
	s.batches = append(s.batches, req.TweetIDs)
	s.mu.Unlock()

	body := []byte(raw)
	if !hasRaw {
		body = s.renderTotals(req.TweetIDs)
	}
	s.write(w, body)
}

// renderTotals writes user_groups in request order with string counts, the
// way the API does. Unknown identifiers are left out.
func (s *Server) renderTotals(ids []string) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var buf bytes.Buffer
	buf.WriteString(`{"user_groups":{`)
	first := true
	for _, id := range ids {
		t, ok := s.totals[id]
		if !ok {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		key, _ := json.Marshal(id)
		fmt.Fprintf(&buf, `%s:{"favorites":%q,"retweets":%q,"replies":%q}`, key,
			strconv.FormatInt(t.Favorites, 10),
			strconv.FormatInt(t.Retweets, 10),
			strconv.FormatInt(t.Replies, 10))
	}
	buf.WriteString(`}}`)
	return buf.Bytes()
}

func (s *Server) write(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json")

	s.mu.RLock()
	compress := s.gzip
	s.mu.RUnlock()

	if !compress {
		w.Write(body)
		return
	}
	w.Header().Set("Content-Encoding", "gzip")
	gz := gzip.NewWriter(w)
	gz.Write(body)
	gz.Close()
}

// sendError answers with the API's {"errors": [...]} shape
func (s *Server) sendError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"errors": []map[string]interface{}{
			{"code": code, "message": message},
		},
	})
}

// SetTotals configures the counts reported for id
func (s *Server) SetTotals(id string, t Totals) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totals[id] = t
}

// FailCall makes the n-th totals request (1-based) answer with status
func (s *Server) FailCall(n, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callStatus[n] = status
}

// AbortCall drops the connection of the n-th totals request
func (s *Server) AbortCall(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callAbort[n] = true
}

// RespondRaw makes the n-th totals request answer 200 with body
func (s *Server) RespondRaw(n int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callRaw[n] = body
}

// SetGzip turns gzip response bodies on or off
func (s *Server) SetGzip(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gzip = on
}

// URL returns the base URL of the server
func (s *Server) URL() string { return s.server.URL }

// TokenURL returns the token endpoint
func (s *Server) TokenURL() string { return s.server.URL + TokenPath }

// TotalsURL returns the totals endpoint
func (s *Server) TotalsURL() string { return s.server.URL + TotalsPath }

// Client returns an HTTP client that talks to the server
func (s *Server) Client() *http.Client { return s.server.Client() }

// TokenCalls returns the number of token requests
func (s *Server) TokenCalls() int { return int(s.tokenCalls.Load()) }

// SubmitCalls returns the number of totals requests
func (s *Server) SubmitCalls() int { return int(s.submitCalls.Load()) }

// RateLimitHits returns the number of 429 responses sent
func (s *Server) RateLimitHits() int { return int(s.rateLimitHits.Load()) }

// Batches returns the identifier lists of the accepted totals requests
func (s *Server) Batches() [][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([][]string, len(s.batches))
	copy(out, s.batches)
	return out
}

// Close shuts down the server
func (s *Server) Close() {
	s.server.Close()
}
