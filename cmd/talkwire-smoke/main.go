// Package main provides a CI-friendly end-to-end smoke test against a running
// chat backend.
//
// It validates:
//   - REST sign-in and the auth probe
//   - STOMP over WebSocket CONNECT with the session's credentials
//   - a chat created over REST is echoed as CREATE on /topic/chats/{username}
//   - deleting it is echoed as DELETE
//   - sign-out clears the session
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"talkwire/cmd/internal/realtime"
	"talkwire/cmd/internal/restapi"
	"talkwire/cmd/internal/session"
	v1 "talkwire/shared/contracts/realtime/v1"
)

func main() {
	var (
		apiURL   = flag.String("api", "http://127.0.0.1:8080/api", "API root")
		wsURL    = flag.String("url", "ws://127.0.0.1:8080/ws/websocket", "STOMP WebSocket endpoint")
		origin   = flag.String("origin", "", "Origin header to send on the handshake")
		username = flag.String("user", "", "username to sign in with")
		password = flag.String("password", "", "password to sign in with")
		peer     = flag.Int64("peer", 0, "user id to open the smoke chat with")
		timeout  = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose  = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if *username == "" || *password == "" || *peer <= 0 {
		fatalf("-user, -password and -peer are required")
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	store := session.NewStore(session.NewBus())
	api, err := restapi.New(restapi.Options{BaseURL: *apiURL, Timeout: *timeout, Store: store, Logger: log})
	if err != nil {
		fatalf("client: %v", err)
	}

	root := context.Background()
	step := func() (context.Context, context.CancelFunc) { return context.WithTimeout(root, *timeout) }

	ctx, cancel := step()
	if _, err := api.SignIn(ctx, restapi.Credentials{Username: *username, Password: *password}); err != nil {
		fatalf("sign in: %v", err)
	}
	res, err := api.Check(ctx)
	cancel()
	if err != nil || !res.Authenticated {
		fatalf("auth probe after sign-in: authenticated=%v err=%v", res.Authenticated, err)
	}

	hc := *api.HTTPClient()
	hc.Timeout = 0
	m, err := realtime.NewManager(realtime.Options{
		Dialer: &realtime.StompDialer{
			URL:            *wsURL,
			Origin:         *origin,
			HTTPClient:     &hc,
			Token:          api.Token,
			ConnectTimeout: *timeout,
			Heartbeat:      10 * time.Second,
		},
		Logger:  log,
		OnError: func(err error) { fatalf("transport: %v", err) },
	})
	if err != nil {
		fatalf("manager: %v", err)
	}
	defer m.Disconnect()

	topic, err := v1.ChatsTopic.For(*username)
	if err != nil {
		fatalf("topic: %v", err)
	}
	events := make(chan v1.ChatEvent, 16)
	ctx, cancel = step()
	if err := m.Connect(ctx); err != nil {
		fatalf("connect: %v", err)
	}
	cancel()
	err = m.Subscribe(topic, func(body []byte) {
		e, err := v1.Decode[v1.ChatEvent](body)
		if err != nil {
			log.Warn("smoke.frame.invalid", "err", err)
			return
		}
		events <- e
	})
	if err != nil {
		fatalf("subscribe %s: %v", topic, err)
	}

	ctx, cancel = step()
	chat, err := api.CreateChat(ctx, restapi.ChatCreate{UserID: *peer})
	cancel()
	if err != nil {
		fatalf("create chat: %v", err)
	}
	mustReceive(events, v1.ActionCreate, chat.ID, *timeout)

	ctx, cancel = step()
	err = api.DeleteChat(ctx, chat.ID)
	cancel()
	if err != nil {
		fatalf("delete chat %d: %v", chat.ID, err)
	}
	mustReceive(events, v1.ActionDelete, chat.ID, *timeout)

	ctx, cancel = step()
	err = api.SignOut(ctx)
	cancel()
	if err != nil {
		fatalf("sign out: %v", err)
	}
	if _, ok := store.Session(); ok {
		fatalf("session survived sign-out")
	}

	fmt.Printf("OK: user=%s topic=%s chat_id=%d\n", *username, topic, chat.ID)
}

var errTimeout = errors.New("timed out")

// mustReceive waits for action on chatID, skipping unrelated chat events.
func mustReceive(events <-chan v1.ChatEvent, action v1.Action, chatID int64, timeout time.Duration) {
	deadline := time.After(timeout)
	for {
		select {
		case e := <-events:
			if e.Action == action && e.ID == chatID {
				return
			}
		case <-deadline:
			fatalf("%s for chat %d: %v", action, chatID, errTimeout)
		}
	}
}

func fatalf(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
