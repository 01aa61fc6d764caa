// Package views holds the view-models of the client: state holders with a
// mount/unmount lifecycle that seed over REST, follow realtime topics and
// expose the user actions of each screen. Rendering is left to the caller.
package views

import (
	"errors"
	"log/slog"
	"strings"

	"talkwire/cmd/internal/alert"
	"talkwire/cmd/internal/realtime"
	"talkwire/cmd/internal/restapi"
	"talkwire/cmd/internal/session"
)

// ErrNotMounted is returned by actions that need a live subscription.
var ErrNotMounted = errors.New("views: not mounted")

// ManagerFactory opens a fresh ConnectionHandle for one mounted view.
// onError receives asynchronous transport failures.
type ManagerFactory func(onError func(error)) (*realtime.Manager, error)

// ManagerFactoryFor returns a factory building Managers from base, with
// OnError set per view.
func ManagerFactoryFor(base realtime.Options) ManagerFactory {
	return func(onError func(error)) (*realtime.Manager, error) {
		opts := base
		opts.OnError = onError
		return realtime.NewManager(opts)
	}
}

// Deps are shared by every view.
type Deps struct {
	API        *restapi.Client
	Store      *session.Store
	NewManager ManagerFactory
	Logger     *slog.Logger
	// OnLost, when set, is told which view lost its transport.
	OnLost func(view string, err error)
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return d
}

func alertLogger(log *slog.Logger) func(alert.Alert) {
	return func(a alert.Alert) {
		log.Warn("view.alert",
			"kind", string(a.Kind),
			"severity", string(a.Severity),
			"message", a.Message,
		)
	}
}

// usernameScope scopes per-user topics to the signed-in user.
func usernameScope(store *session.Store) func() (string, error) {
	return func() (string, error) {
		name := strings.TrimSpace(store.Username())
		if name == "" {
			return "", session.ErrNoSession
		}
		return name, nil
	}
}
