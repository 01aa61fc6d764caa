package views

import (
	"context"
	"log/slog"

	"talkwire/cmd/internal/alert"
	"talkwire/cmd/internal/restapi"
	"talkwire/cmd/internal/session"
	"talkwire/cmd/internal/validate"
)

// MsgProfileUpdated is raised on the settings banner after a successful update.
const MsgProfileUpdated = "Profile updated."

// SettingsView edits the signed-in user's profile. Every change is confirmed
// by re-authenticating with the current password first.
type SettingsView struct {
	api    *restapi.Client
	store  *session.Store
	alerts *alert.Channel
	log    *slog.Logger
	form   *validate.Form
}

// NewSettingsView builds the settings form, prefilled from the session.
func NewSettingsView(deps Deps) *SettingsView {
	deps = deps.withDefaults()
	log := deps.Logger.With("view", "settings")
	s := &SettingsView{
		api:    deps.API,
		store:  deps.Store,
		alerts: alert.NewChannel(alertLogger(log)),
		log:    log,
	}
	s.Reset()
	return s
}

// Alerts is the view's banner.
func (s *SettingsView) Alerts() *alert.Channel { return s.alerts }

// Form exposes the fields for editing.
func (s *SettingsView) Form() *validate.Form { return s.form }

// Reset reloads the form from the session.
func (s *SettingsView) Reset() {
	s.form = validate.NewForm(
		validate.FieldUsername,
		validate.FieldEmail,
		validate.FieldNewPassword,
		validate.FieldCurrentPassword,
	)
	if sess, ok := s.store.Session(); ok {
		_ = s.form.Set(validate.FieldUsername, sess.Username)
		_ = s.form.Set(validate.FieldEmail, sess.Email)
	}
}

// Save validates the whole form, confirms the current password and updates
// the profile. An empty new password keeps the current one.
func (s *SettingsView) Save(ctx context.Context) error {
	if err := s.form.Submit(); err != nil {
		return err
	}
	current := s.form.Value(validate.FieldCurrentPassword)
	defer s.clearCurrent()

	if _, err := s.api.ConfirmPassword(ctx, current); err != nil {
		s.alerts.Handle(err)
		return err
	}

	next := s.form.Value(validate.FieldNewPassword)
	if next == "" {
		next = current
	}
	res, err := s.api.UpdateProfile(ctx, restapi.ProfileUpdate{
		Username:        s.form.Value(validate.FieldUsername),
		Email:           s.form.Value(validate.FieldEmail),
		NewPassword:     next,
		CurrentPassword: current,
	})
	if err != nil {
		s.alerts.Handle(err)
		return err
	}
	_ = s.form.Set(validate.FieldNewPassword, "")
	s.log.Info("settings.updated", "username", res.User.Username)
	s.alerts.Notify(alert.SeveritySuccess, MsgProfileUpdated)
	return nil
}

// DeleteAccount confirms the current password and deletes the account.
// The session is cleared on success.
func (s *SettingsView) DeleteAccount(ctx context.Context) error {
	current := s.form.Value(validate.FieldCurrentPassword)
	if err := s.form.Set(validate.FieldCurrentPassword, current); err != nil {
		return validate.ErrFormInvalid
	}
	defer s.clearCurrent()

	if _, err := s.api.ConfirmPassword(ctx, current); err != nil {
		s.alerts.Handle(err)
		return err
	}
	if err := s.api.DeleteProfile(ctx, current); err != nil {
		s.alerts.Handle(err)
		return err
	}
	s.log.Info("settings.deleted")
	return nil
}

// The current password never outlives one submission.
func (s *SettingsView) clearCurrent() {
	_ = s.form.Set(validate.FieldCurrentPassword, "")
}

// AuthMode selects the AuthView flow.
type AuthMode int

const (
	ModeSignIn AuthMode = iota
	ModeSignUp
)

// AuthView drives the sign-in and sign-up forms.
type AuthView struct {
	api    *restapi.Client
	alerts *alert.Channel
	mode   AuthMode
	form   *validate.Form
}

// NewAuthView builds the form for mode.
func NewAuthView(deps Deps, mode AuthMode) *AuthView {
	deps = deps.withDefaults()
	a := &AuthView{
		api:    deps.API,
		alerts: alert.NewChannel(alertLogger(deps.Logger.With("view", "auth"))),
		mode:   mode,
	}
	if mode == ModeSignUp {
		a.form = validate.NewForm(validate.FieldUsername, validate.FieldEmail, validate.FieldPassword)
	} else {
		a.form = validate.NewForm(validate.FieldUsername, validate.FieldPassword)
	}
	return a
}

// Alerts is the view's banner.
func (a *AuthView) Alerts() *alert.Channel { return a.alerts }

// Form exposes the fields for editing.
func (a *AuthView) Form() *validate.Form { return a.form }

// Mode returns the flow.
func (a *AuthView) Mode() AuthMode { return a.mode }

// Submit validates and runs the flow. Sign-up signs in afterwards; either way
// the Session Store broadcasts once on success.
func (a *AuthView) Submit(ctx context.Context) (restapi.AuthResult, error) {
	if err := a.form.Submit(); err != nil {
		return restapi.AuthResult{}, err
	}
	var (
		res restapi.AuthResult
		err error
	)
	switch a.mode {
	case ModeSignUp:
		res, err = a.api.SignUp(ctx, restapi.SignUpRequest{
			Username: a.form.Value(validate.FieldUsername),
			Email:    a.form.Value(validate.FieldEmail),
			Password: a.form.Value(validate.FieldPassword),
		})
	default:
		res, err = a.api.SignIn(ctx, restapi.Credentials{
			Username: a.form.Value(validate.FieldUsername),
			Password: a.form.Value(validate.FieldPassword),
		})
	}
	if err != nil {
		a.alerts.Handle(err)
		return restapi.AuthResult{}, err
	}
	a.alerts.Clear()
	return res, nil
}
