// Package erptest provides an in-process fake of the instance customization API.
package erptest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/oshokin/customization-deployer/internal/erp"
)

const (
	// SessionCookie is the cookie the fake sets on login.
	SessionCookie = "ASP.NET_SessionId"

	sessionValue = "fake-session"
)

// Server is a scripted fake instance. Configure the exported fields before the
// first request; they are read under the server lock.
type Server struct {
	*httptest.Server

	// Username and Password are the accepted credentials.
	Username string
	Password string
	// LogoutStatus overrides the logout response code when non-zero.
	LogoutStatus int
	// ImportStatus maps project names to the response code their import gets.
	ImportStatus map[string]int
	// PublishStatus overrides the publishBegin response code when non-zero.
	PublishStatus int
	// Statuses are returned by successive publishEnd calls; the last one repeats.
	Statuses []erp.PublishStatus
	// StatusFailures makes the first publishEnd calls answer 503.
	StatusFailures int

	mu        sync.Mutex
	calls     []string
	imports   []erp.ImportRequest
	publishes []erp.PublishRequest
	queries   int
	logouts   int
}

// New starts a fake accepting admin/secret and registers its shutdown with t.
func New(t *testing.T) *Server {
	t.Helper()

	s := &Server{
		Username:     "admin",
		Password:     "secret",
		ImportStatus: make(map[string]int),
		Statuses: []erp.PublishStatus{
			{IsCompleted: true},
		},
	}

	router := chi.NewRouter()
	router.Post("/entity/auth/login", s.login)
	router.Post("/entity/auth/logout", s.logout)
	router.Route("/CustomizationApi", func(r chi.Router) {
		r.Use(s.requireSession)
		r.Post("/Import", s.importProject)
		r.Post("/publishBegin", s.publishBegin)
		r.Post("/publishEnd", s.publishEnd)
	})

	s.Server = httptest.NewServer(router)
	t.Cleanup(s.Close)

	return s
}

// Calls returns the API calls received so far, e.g. "login" or "import RW.Base".
func (s *Server) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.calls)
}

// Imports returns the import requests received so far.
func (s *Server) Imports() []erp.ImportRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.imports)
}

// Publishes returns the publish requests received so far.
func (s *Server) Publishes() []erp.PublishRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.publishes)
}

// StatusQueries returns the number of publishEnd calls received.
func (s *Server) StatusQueries() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.queries
}

// Logouts returns the number of logout calls received.
func (s *Server) Logouts() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.logouts
}

func (s *Server) record(call string) {
	s.calls = append(s.calls, call)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.record("login")

	var request erp.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "malformed login", http.StatusBadRequest)
		return
	}

	if request.Name != s.Username || request.Password != s.Password {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	//nolint:exhaustruct // Defaults are fine for a test cookie.
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: sessionValue, Path: "/"})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) logout(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.record("logout")
	s.logouts++

	if s.LogoutStatus != 0 {
		http.Error(w, "logout refused", s.LogoutStatus)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookie)
		if err != nil || cookie.Value != sessionValue {
			http.Error(w, "not logged in", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) importProject(w http.ResponseWriter, r *http.Request) {
	var request erp.ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "malformed import", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.record("import " + request.ProjectName)

	if code, ok := s.ImportStatus[request.ProjectName]; ok {
		http.Error(w, "import rejected", code)
		return
	}

	s.imports = append(s.imports, request)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) publishBegin(w http.ResponseWriter, r *http.Request) {
	var request erp.PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "malformed publish", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.record("publish")

	if s.PublishStatus != 0 {
		http.Error(w, "publication already running", s.PublishStatus)
		return
	}

	s.publishes = append(s.publishes, request)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) publishEnd(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.record("status")
	s.queries++

	if s.queries <= s.StatusFailures {
		http.Error(w, "busy", http.StatusServiceUnavailable)
		return
	}

	index := min(s.queries-s.StatusFailures, len(s.Statuses)) - 1
	status := erp.PublishStatus{}

	if index >= 0 {
		status = s.Statuses[index]
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(status)
}
