// Package app wires the talkwire daemon: config, logging, the REST client,
// the session gate, the synchronised sidebar views and the ops listener.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"talkwire/cmd/internal/alert"
	"talkwire/cmd/internal/gate"
	"talkwire/cmd/internal/realtime"
	"talkwire/cmd/internal/restapi"
	"talkwire/cmd/internal/session"
	"talkwire/cmd/internal/views"
)

// Automatic sign-in is retried at most signInBurst times per signInWindow, so
// a backend that keeps rejecting the session cannot spin the daemon.
const (
	signInBurst  = 3
	signInWindow = time.Minute
)

// A reported transport loss remounts at once at most resyncBurst times per
// resyncWindow; past that the periodic resync takes over.
const (
	resyncBurst  = 3
	resyncWindow = time.Minute
)

var (
	errProbePending    = errors.New("session probe pending")
	errUnauthenticated = errors.New("not signed in")
	errNotSynced       = errors.New("views not mounted")
)

// Option customizes New.
type Option func(*options)

type options struct {
	dialer realtime.Dialer
}

// WithDialer replaces the STOMP transport, e.g. with an in-memory broker.
func WithDialer(d realtime.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// App is the talkwire runtime. It owns the session Bus for its lifetime.
type App struct {
	cfg Config
	log Logger
	reg *prometheus.Registry

	bus   *session.Bus
	store *session.Store
	api   *restapi.Client
	gate  *gate.Gate

	sidebar *sidebar
	signIns *realtime.RateLimiter
	resyncs *realtime.RateLimiter
}

// New constructs a fully wired App from config and logger.
func New(cfg Config, log Logger, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = NewLogger(cfg.Log.Level, cfg.Log.Format)
	}
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	bus := session.NewBus()
	store := session.NewStore(bus)

	api, err := restapi.New(restapi.Options{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
		Store:   store,
		Logger:  log,
		Metrics: restapi.NewMetrics(reg),
	})
	if err != nil {
		bus.Close()
		return nil, err
	}

	dialer := o.dialer
	if dialer == nil {
		dialer = newStompDialer(cfg.Realtime, api)
	}
	rt := realtime.Options{
		Dialer:  dialer,
		Logger:  log,
		Metrics: realtime.NewMetrics(reg),
	}
	if cfg.Realtime.PublishRateEvents > 0 {
		rt.Limiter = realtime.NewRateLimiter(cfg.Realtime.PublishRateEvents, cfg.Realtime.PublishRateWindow)
	}

	g, err := gate.New(gate.Options{
		Prober: api,
		Store:  store,
		Logger: log,
		Alerts: alert.NewChannel(func(a alert.Alert) {
			log.Warn("gate.alert", "kind", string(a.Kind), "severity", string(a.Severity), "message", a.Message)
		}),
		ProbeTimeout: cfg.API.Timeout,
	})
	if err != nil {
		bus.Close()
		return nil, err
	}

	deps := views.Deps{
		API:        api,
		Store:      store,
		NewManager: views.ManagerFactoryFor(rt),
		Logger:     log,
	}

	return &App{
		cfg:     cfg,
		log:     log,
		reg:     reg,
		bus:     bus,
		store:   store,
		api:     api,
		gate:    g,
		sidebar: newSidebar(deps, log),
		signIns: realtime.NewRateLimiter(signInBurst, signInWindow),
		resyncs: realtime.NewRateLimiter(resyncBurst, resyncWindow),
	}, nil
}

// newStompDialer shares the REST client's cookie jar with the WebSocket
// handshake and sends its token on CONNECT unless the token has expired.
func newStompDialer(cfg RealtimeConfig, api *restapi.Client) *realtime.StompDialer {
	hc := *api.HTTPClient()
	// The handshake is bounded by its context; coder/websocket rejects client timeouts.
	hc.Timeout = 0
	return &realtime.StompDialer{
		URL:        cfg.URL,
		Origin:     cfg.Origin,
		HTTPClient: &hc,
		Token: func() string {
			tok := api.Token()
			if info, err := session.InspectToken(tok); err == nil && info.Expired(time.Now()) {
				return ""
			}
			return tok
		},
		RequireToken:   cfg.RequireToken,
		Heartbeat:      cfg.Heartbeat,
		ConnectTimeout: cfg.ConnectTimeout,
	}
}

// Run follows the session until ctx ends: it probes, signs in with the
// configured credentials when needed, and keeps the sidebar mounted while
// authenticated. On return every view is unmounted and the Bus is closed.
func (a *App) Run(ctx context.Context) error {
	defer a.bus.Close()
	defer a.sidebar.unmount()

	a.log.Info("talkwire.start",
		"api", a.cfg.API.BaseURL,
		"realtime", a.cfg.Realtime.URL,
		"ops", a.cfg.Ops.Addr,
		"auto_sign_in", a.cfg.Auth.Username != "",
	)

	g, gctx := errgroup.WithContext(ctx)
	if a.cfg.Ops.Addr != "" {
		g.Go(func() error {
			return serveOps(gctx, a.log, a.cfg.Ops, a.opsHandler())
		})
	}
	g.Go(func() error { return a.gate.Run(gctx) })
	g.Go(func() error { return a.follow(gctx) })

	err := g.Wait()
	if err != nil {
		a.log.Error("talkwire.fail", "err", err)
		return err
	}
	a.log.Info("talkwire.stopped")
	return nil
}

// follow applies gate snapshots to the sidebar and remounts views whose
// transport went away.
func (a *App) follow(ctx context.Context) error {
	var tick <-chan time.Time
	if a.cfg.Realtime.Resync > 0 {
		t := time.NewTicker(a.cfg.Realtime.Resync)
		defer t.Stop()
		tick = t.C
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap := <-a.gate.Changes():
			a.onSnapshot(ctx, snap)
		case <-a.sidebar.lost:
			if !a.resyncs.Allow(time.Now()) {
				a.log.Warn("sidebar.resync.throttled")
				continue
			}
			a.sidebar.resync(ctx)
		case <-tick:
			a.sidebar.resync(ctx)
		}
	}
}

func (a *App) onSnapshot(ctx context.Context, snap gate.Snapshot) {
	switch snap.Status {
	case gate.StatusAuthenticated:
		if info, err := session.InspectToken(a.api.Token()); err == nil {
			a.log.Info("session.token", "subject", info.Subject, "expires_at", info.ExpiresAt)
		}
		a.sidebar.mount(ctx, snap.Username)
	case gate.StatusUnauthenticated:
		a.sidebar.unmount()
		a.autoSignIn(ctx)
	}
}

func (a *App) autoSignIn(ctx context.Context) {
	creds := restapi.Credentials{Username: a.cfg.Auth.Username, Password: a.cfg.Auth.Password}
	if creds.Username == "" {
		return
	}
	if !a.signIns.Allow(time.Now()) {
		a.log.Warn("auth.signin.throttled", "username", creds.Username)
		return
	}
	if _, err := a.api.SignIn(ctx, creds); err != nil {
		_, msg := alert.Classify(err)
		a.log.Error("auth.signin.failed", "username", creds.Username, "err", msg)
		return
	}
	a.log.Info("auth.signin.ok", "username", creds.Username)
}

func (a *App) opsHandler() http.Handler {
	return newOpsHandler(a.log, a.reg, a.ready)
}

func (a *App) ready() error {
	switch a.gate.Status() {
	case gate.StatusUnknown:
		return errProbePending
	case gate.StatusUnauthenticated:
		return errUnauthenticated
	}
	if !a.sidebar.synced() {
		return errNotSynced
	}
	return nil
}

// Status reports the gate status and the signed-in user.
func (a *App) Status() (gate.Status, string) {
	return a.gate.Status(), a.store.Username()
}

func (a *App) String() string {
	status, user := a.Status()
	return fmt.Sprintf("talkwire(%s %s)", status, user)
}
