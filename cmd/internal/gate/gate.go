package gate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"talkwire/cmd/internal/alert"
	"talkwire/cmd/internal/restapi"
	"talkwire/cmd/internal/session"
)

var ErrInvalidConfig = errors.New("gate: invalid config")

const defaultProbeTimeout = 5 * time.Second

// Prober asks the backend whether the current credentials are authenticated.
type Prober interface {
	Check(ctx context.Context) (restapi.CheckResult, error)
}

// Options configures a Gate.
type Options struct {
	Prober Prober
	Store  *session.Store
	Logger *slog.Logger
	// Alerts receives probe failures; optional.
	Alerts       *alert.Channel
	ProbeTimeout time.Duration
	// Path is the initial route; defaults to RouteHome.
	Path string
}

// Snapshot is published on Changes whenever the status or identity changes.
type Snapshot struct {
	Status   Status
	Username string
	Decision Decision
}

// Gate tracks the authentication status and the current route.
type Gate struct {
	prober  Prober
	store   *session.Store
	log     *slog.Logger
	alerts  *alert.Channel
	timeout time.Duration

	mu       sync.Mutex
	status   Status
	username string
	path     string

	changes chan Snapshot
}

// New constructs a Gate in StatusUnknown.
func New(opts Options) (*Gate, error) {
	if opts.Prober == nil || opts.Store == nil {
		return nil, ErrInvalidConfig
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	timeout := opts.ProbeTimeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	path := opts.Path
	if path == "" {
		path = RouteHome
	}
	return &Gate{
		prober:  opts.Prober,
		store:   opts.Store,
		log:     log,
		alerts:  opts.Alerts,
		timeout: timeout,
		path:    Normalize(path),
		changes: make(chan Snapshot, 1),
	}, nil
}

// Status returns the latest probe outcome.
func (g *Gate) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

// Path returns the current route.
func (g *Gate) Path() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.path
}

// Changes delivers the latest Snapshot. A slow reader only sees the newest one.
func (g *Gate) Changes() <-chan Snapshot { return g.changes }

// Navigate records path as the current route, applying any redirect.
func (g *Gate) Navigate(path string) Decision {
	g.mu.Lock()
	d := Decide(g.status, path)
	if !d.Loading {
		g.path = d.Target()
	} else {
		g.path = d.Path
	}
	g.mu.Unlock()

	if d.Redirect != "" {
		g.log.Info("gate.redirect", "from", d.Path, "to", d.Redirect)
	}
	return d
}

// Run probes once, then again on every auth-changed signal, until ctx ends or
// the Bus closes.
func (g *Gate) Run(ctx context.Context) error {
	bus := g.store.Bus()
	var signals <-chan struct{}
	if bus != nil {
		ch, cancel := bus.Subscribe()
		defer cancel()
		signals = ch
	}

	g.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-signals:
			if !ok {
				return nil
			}
			g.Probe(ctx)
		}
	}
}

// Probe asks the backend once and applies the outcome.
func (g *Gate) Probe(ctx context.Context) Status {
	pctx, cancel := context.WithTimeout(ctx, g.timeout)
	res, err := g.prober.Check(pctx)
	cancel()

	if ctx.Err() != nil {
		return g.Status()
	}

	next := StatusUnauthenticated
	if err != nil {
		g.log.Warn("gate.probe.failed", "err", err)
		if g.alerts != nil {
			g.alerts.HandleAs(err, alert.SeverityDanger)
		}
	} else if res.Authenticated {
		next = StatusAuthenticated
	}

	username := ""
	if next == StatusAuthenticated {
		sess, _ := g.store.Session()
		if res.Username != "" {
			sess.Username = res.Username
		}
		if res.Email != "" {
			sess.Email = res.Email
		}
		if sess.Valid() {
			g.store.Set(sess)
			username = sess.Username
		} else {
			// Cookies are valid but nothing names the user; only a sign-in can.
			g.log.Warn("gate.check.anonymous")
			next = StatusUnauthenticated
		}
	}
	if next != StatusAuthenticated {
		if _, ok := g.store.Session(); ok {
			g.store.Forget()
		}
	}

	g.apply(next, username)
	return next
}

func (g *Gate) apply(status Status, username string) {
	g.mu.Lock()
	changed := g.status != status || g.username != username
	prev := g.status
	g.status = status
	g.username = username
	d := Decide(status, g.path)
	g.path = d.Target()
	snap := Snapshot{Status: status, Username: username, Decision: d}
	g.mu.Unlock()

	if !changed {
		return
	}
	g.log.Info("gate.status", "from", prev.String(), "to", status.String(), "username", username)
	if d.Redirect != "" {
		g.log.Info("gate.redirect", "from", d.Path, "to", d.Redirect)
	}

	// Replace any unread snapshot with the newest one.
	select {
	case <-g.changes:
	default:
	}
	select {
	case g.changes <- snap:
	default:
	}
}
