package restapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"talkwire/cmd/internal/session"
)

func newTestClient(t *testing.T, r http.Handler, timeout time.Duration) (*Client, *session.Store, *session.Bus) {
	t.Helper()

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)

	bus := session.NewBus()
	store := session.NewStore(bus)
	c, err := New(Options{
		BaseURL: ts.URL + "/api",
		Timeout: timeout,
		Store:   store,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics: NewMetrics(prometheus.NewRegistry()),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, store, bus
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNew_RejectsBadConfig(t *testing.T) {
	t.Parallel()

	store := session.NewStore(nil)
	cases := []Options{
		{BaseURL: "", Store: store},
		{BaseURL: "not a url", Store: store},
		{BaseURL: "http://localhost:8080/api"},
	}
	for _, opts := range cases {
		if _, err := New(opts); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("New(%+v)=%v want ErrInvalidConfig", opts, err)
		}
	}
}

func TestSignIn_StoresSessionAndBroadcastsOnce(t *testing.T) {
	t.Parallel()

	r := chi.NewRouter()
	r.Post("/api/auth/signin", func(w http.ResponseWriter, r *http.Request) {
		var creds Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds.Username != "bob" || creds.Password != "secret1" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad credentials"})
			return
		}
		if r.Header.Get("X-Request-ID") == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "missing request id"})
			return
		}
		http.SetCookie(w, &http.Cookie{Name: TokenCookie, Value: "cookie-token", Path: "/"})
		writeJSON(w, http.StatusOK, map[string]any{
			"data": map[string]any{
				"token": "body-token",
				"user":  map[string]any{"id": 1, "username": "bob", "email": "bob@x.com"},
			},
		})
	})

	c, store, bus := newTestClient(t, r, time.Second)

	res, err := c.SignIn(context.Background(), Credentials{Username: "bob", Password: "secret1"})
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if res.User.ID != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}

	sess, ok := store.Session()
	if !ok || sess.Username != "bob" || sess.Email != "bob@x.com" {
		t.Fatalf("unexpected session: %+v ok=%v", sess, ok)
	}
	if bus.Published() != 1 {
		t.Fatalf("expected exactly one auth-changed signal, got %d", bus.Published())
	}
	if got := c.Token(); got != "cookie-token" {
		t.Fatalf("Token()=%q want cookie-token", got)
	}
}

func TestUnauthorized_ClearsSessionOnce(t *testing.T) {
	t.Parallel()

	r := chi.NewRouter()
	r.Get("/api/secured/chats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "expired"})
	})

	c, store, bus := newTestClient(t, r, time.Second)
	store.Set(session.Session{Username: "bob"})
	store.Put(session.KeySelectedChat, "3")

	_, err := c.ListChats(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized || apiErr.Message != "expired" {
		t.Fatalf("unexpected api error: %#v", apiErr)
	}
	if _, ok := store.Session(); ok {
		t.Fatalf("session must be cleared")
	}
	if _, ok := store.Value(session.KeySelectedChat); ok {
		t.Fatalf("session-scoped values must be cleared")
	}
	if bus.Published() != 1 {
		t.Fatalf("expected one signal per failing response, got %d", bus.Published())
	}
}

func TestCheck(t *testing.T) {
	t.Parallel()

	var authed atomic.Bool
	r := chi.NewRouter()
	r.Get("/api/auth/check", func(w http.ResponseWriter, r *http.Request) {
		if !authed.Load() {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "no session"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"username": "bob", "email": "bob@x.com"})
	})

	c, store, bus := newTestClient(t, r, time.Second)
	store.Set(session.Session{Username: "stale"})

	res, err := c.Check(context.Background())
	if err != nil || res.Authenticated {
		t.Fatalf("expected unauthenticated, got %+v err=%v", res, err)
	}
	if bus.Published() != 0 {
		t.Fatalf("probe 401 must not broadcast")
	}
	if store.Username() != "stale" {
		t.Fatalf("probe 401 must not clear the store itself")
	}

	authed.Store(true)
	res, err = c.Check(context.Background())
	if err != nil || !res.Authenticated || res.Username != "bob" {
		t.Fatalf("expected bob authenticated, got %+v err=%v", res, err)
	}
}

func TestCheck_ExplicitFalse(t *testing.T) {
	t.Parallel()

	r := chi.NewRouter()
	r.Get("/api/auth/check", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
	})
	c, _, _ := newTestClient(t, r, time.Second)

	res, err := c.Check(context.Background())
	if err != nil || res.Authenticated {
		t.Fatalf("expected unauthenticated, got %+v err=%v", res, err)
	}
}

func TestValidationErrors(t *testing.T) {
	t.Parallel()

	r := chi.NewRouter()
	r.Post("/api/auth/signup", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"errors": map[string]string{"username": "Username is taken", "email": ""},
		})
	})
	c, _, bus := newTestClient(t, r, time.Second)

	_, err := c.SignUp(context.Background(), SignUpRequest{Username: "bob", Email: "bob@x.com", Password: "secret1"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Errors["username"] != "Username is taken" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
	if errors.Is(err, ErrUnauthorized) || bus.Published() != 0 {
		t.Fatalf("validation failure must not touch the session")
	}
}

func TestSignUp_ThenSignsIn(t *testing.T) {
	t.Parallel()

	var signins atomic.Int32
	r := chi.NewRouter()
	r.Post("/api/auth/signup", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]any{"data": map[string]any{"id": 9, "username": "bob"}})
	})
	r.Post("/api/auth/signin", func(w http.ResponseWriter, r *http.Request) {
		signins.Add(1)
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{
			"token": "t",
			"user":  map[string]any{"id": 9, "username": "bob", "email": "bob@x.com"},
		}})
	})
	c, store, _ := newTestClient(t, r, time.Second)

	if _, err := c.SignUp(context.Background(), SignUpRequest{Username: "bob", Email: "bob@x.com", Password: "secret1"}); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if signins.Load() != 1 || store.Username() != "bob" {
		t.Fatalf("expected automatic sign-in, signins=%d user=%q", signins.Load(), store.Username())
	}
}

func TestTimeout(t *testing.T) {
	t.Parallel()

	r := chi.NewRouter()
	r.Get("/api/secured/contacts", func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	c, _, _ := newTestClient(t, r, 50*time.Millisecond)

	_, err := c.ListContacts(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestNoResponse(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.NotFoundHandler())
	base := ts.URL
	ts.Close()

	c, err := New(Options{BaseURL: base + "/api", Store: session.NewStore(nil), Timeout: time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = c.ListContacts(context.Background())
	if !errors.Is(err, ErrNoResponse) {
		t.Fatalf("expected ErrNoResponse, got %v", err)
	}
}

func TestDeleteProfile_SendsPasswordAndClears(t *testing.T) {
	t.Parallel()

	var gotPassword atomic.Value
	r := chi.NewRouter()
	r.Delete("/api/secured/users/destroy", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotPassword.Store(body.Password)
		w.WriteHeader(http.StatusNoContent)
	})
	c, store, bus := newTestClient(t, r, time.Second)
	store.Set(session.Session{Username: "bob"})

	if err := c.DeleteProfile(context.Background(), "secret1"); err != nil {
		t.Fatalf("DeleteProfile: %v", err)
	}
	if gotPassword.Load() != "secret1" {
		t.Fatalf("password not sent, got %v", gotPassword.Load())
	}
	if _, ok := store.Session(); ok || bus.Published() != 1 {
		t.Fatalf("expected cleared session and one signal")
	}
}

func TestListEndpoints_UnwrapData(t *testing.T) {
	t.Parallel()

	r := chi.NewRouter()
	r.Route("/api/secured", func(r chi.Router) {
		r.Get("/chats/{chatID}/messages", func(w http.ResponseWriter, r *http.Request) {
			if chi.URLParam(r, "chatID") != "7" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"data": []map[string]any{
				{"id": 1, "chatId": 7, "text": "hi", "username": "bob"},
				{"id": 2, "chatId": 7, "text": "yo", "username": "amy"},
			}})
		})
		r.Get("/user_requests", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, []map[string]any{{"id": 4, "senderUsername": "bob", "recipientUsername": "amy"}})
		})
		r.Get("/users/{userID}/relations", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"hasChat": true, "chatId": 7}})
		})
	})
	c, _, _ := newTestClient(t, r, time.Second)
	ctx := context.Background()

	msgs, err := c.ListMessages(ctx, 7)
	if err != nil || len(msgs) != 2 || msgs[1].Text != "yo" {
		t.Fatalf("ListMessages=%+v err=%v", msgs, err)
	}
	reqs, err := c.ListSentRequests(ctx)
	if err != nil || len(reqs) != 1 || reqs[0].RecipientUsername != "amy" {
		t.Fatalf("ListSentRequests=%+v err=%v", reqs, err)
	}
	rel, err := c.Relations(ctx, 3)
	if err != nil || !rel.HasChat || rel.ChatID != 7 || rel.HasContact {
		t.Fatalf("Relations=%+v err=%v", rel, err)
	}
}

func TestStatusClass(t *testing.T) {
	t.Parallel()

	cases := map[int]string{200: "2xx", 401: "4xx", 503: "5xx", 42: "other"}
	for in, want := range cases {
		if got := statusClass(in); got != want {
			t.Fatalf("statusClass(%d)=%q want=%q", in, got, want)
		}
	}
}
