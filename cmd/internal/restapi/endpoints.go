package restapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"talkwire/cmd/internal/session"
)

// ---- Auth ----

// SignIn authenticates and stores the returned user in the Session Store,
// which broadcasts the auth-changed signal once.
func (c *Client) SignIn(ctx context.Context, creds Credentials) (AuthResult, error) {
	res, err := c.authenticate(ctx, creds)
	if err != nil {
		return AuthResult{}, err
	}
	c.store.SignIn(session.Session{
		Username: res.User.Username,
		Email:    res.User.Email,
		Token:    res.Token,
	})
	return res, nil
}

// ConfirmPassword re-authenticates the signed-in user without touching the session.
func (c *Client) ConfirmPassword(ctx context.Context, password string) (AuthResult, error) {
	sess, ok := c.store.Session()
	if !ok {
		return AuthResult{}, session.ErrNoSession
	}
	return c.authenticate(ctx, Credentials{Username: sess.Username, Password: password})
}

func (c *Client) authenticate(ctx context.Context, creds Credentials) (AuthResult, error) {
	var res AuthResult
	if err := c.do(ctx, http.MethodPost, pathSignIn, creds, &res); err != nil {
		return AuthResult{}, err
	}
	if strings.TrimSpace(res.User.Username) == "" {
		return AuthResult{}, fmt.Errorf("%w: sign-in response has no user", ErrInvalidResponse)
	}
	return res, nil
}

// SignUp creates the account and then signs in with the same credentials.
func (c *Client) SignUp(ctx context.Context, req SignUpRequest) (AuthResult, error) {
	var created User
	if err := c.do(ctx, http.MethodPost, pathSignUp, req, &created); err != nil {
		return AuthResult{}, err
	}
	return c.SignIn(ctx, Credentials{Username: req.Username, Password: req.Password})
}

// SignOut ends the session server-side and clears it locally even when the call fails.
func (c *Client) SignOut(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, pathSignOut, nil, nil)
	if errors.Is(err, ErrUnauthorized) {
		// The hook already cleared the session.
		return nil
	}
	c.store.Clear()
	return err
}

// Check probes whether the current cookies are authenticated.
// A 401 reports unauthenticated without firing the global hook.
func (c *Client) Check(ctx context.Context) (CheckResult, error) {
	var res checkResponse
	err := c.do(ctx, http.MethodGet, pathCheck, nil, &res, withoutAuthHook())
	if errors.Is(err, ErrUnauthorized) {
		return CheckResult{}, nil
	}
	if err != nil {
		return CheckResult{}, err
	}
	authenticated := res.Authenticated == nil || *res.Authenticated
	return CheckResult{
		Authenticated: authenticated,
		Username:      res.Username,
		Email:         res.Email,
	}, nil
}

// ---- Chats ----

func (c *Client) ListChats(ctx context.Context) ([]Chat, error) {
	var out []Chat
	err := c.do(ctx, http.MethodGet, pathChats, nil, &out)
	return out, err
}

func (c *Client) GetChat(ctx context.Context, chatID int64) (Chat, error) {
	var out Chat
	err := c.do(ctx, http.MethodGet, chatPath(chatID), nil, &out)
	return out, err
}

func (c *Client) CreateChat(ctx context.Context, in ChatCreate) (Chat, error) {
	var out Chat
	err := c.do(ctx, http.MethodPost, pathChatCreate, in, &out)
	return out, err
}

func (c *Client) DeleteChat(ctx context.Context, chatID int64) error {
	return c.do(ctx, http.MethodDelete, chatDestroyPath(chatID), nil, nil)
}

// ---- Messages ----

func (c *Client) ListMessages(ctx context.Context, chatID int64) ([]Message, error) {
	var out []Message
	err := c.do(ctx, http.MethodGet, messagesPath(chatID), nil, &out)
	return out, err
}

func (c *Client) CreateMessage(ctx context.Context, chatID int64, text string) (Message, error) {
	var out Message
	err := c.do(ctx, http.MethodPost, messageCreatePath(chatID), messageBody{Text: text}, &out)
	return out, err
}

func (c *Client) UpdateMessage(ctx context.Context, chatID, msgID int64, text string) (Message, error) {
	var out Message
	err := c.do(ctx, http.MethodPatch, messageUpdatePath(chatID, msgID), messageBody{Text: text}, &out)
	return out, err
}

func (c *Client) DeleteMessage(ctx context.Context, chatID, msgID int64) error {
	return c.do(ctx, http.MethodDelete, messageDestroyPath(chatID, msgID), nil, nil)
}

// ---- Users ----

// ListUsers returns the users matching filter as the backend filters them.
func (c *Client) ListUsers(ctx context.Context, filter UserFilter) ([]User, error) {
	var out []User
	err := c.do(ctx, http.MethodPost, pathUsers, filter, &out)
	return out, err
}

func (c *Client) GetUser(ctx context.Context, userID int64) (User, error) {
	var out User
	err := c.do(ctx, http.MethodGet, userPath(userID), nil, &out)
	return out, err
}

// UpdateProfile changes the profile and refreshes the stored session from the response.
func (c *Client) UpdateProfile(ctx context.Context, in ProfileUpdate) (AuthResult, error) {
	var out AuthResult
	if err := c.do(ctx, http.MethodPatch, pathUserUpdate, in, &out); err != nil {
		return AuthResult{}, err
	}
	if out.User.Username != "" {
		sess, _ := c.store.Session()
		sess.Username = out.User.Username
		sess.Email = out.User.Email
		if out.Token != "" {
			sess.Token = out.Token
		}
		c.store.Set(sess)
	}
	return out, nil
}

// DeleteProfile deletes the signed-in account and clears the session.
func (c *Client) DeleteProfile(ctx context.Context, password string) error {
	if err := c.do(ctx, http.MethodDelete, pathUserDestroy, passwordConfirm{Password: password}, nil); err != nil {
		return err
	}
	c.store.Clear()
	return nil
}

func (c *Client) Relations(ctx context.Context, userID int64) (Relations, error) {
	var out Relations
	err := c.do(ctx, http.MethodGet, userRelationsPath(userID), nil, &out)
	return out, err
}

// ---- Requests ----

// ListReceivedRequests returns requests addressed to the signed-in user.
func (c *Client) ListReceivedRequests(ctx context.Context) ([]Request, error) {
	var out []Request
	err := c.do(ctx, http.MethodGet, pathRequests, nil, &out)
	return out, err
}

// ListSentRequests returns requests the signed-in user sent.
func (c *Client) ListSentRequests(ctx context.Context) ([]Request, error) {
	var out []Request
	err := c.do(ctx, http.MethodGet, pathUserRequests, nil, &out)
	return out, err
}

func (c *Client) GetRequest(ctx context.Context, reqID int64) (Request, error) {
	var out Request
	err := c.do(ctx, http.MethodGet, requestPath(reqID), nil, &out)
	return out, err
}

func (c *Client) CreateRequest(ctx context.Context, userID int64) (Request, error) {
	var out Request
	err := c.do(ctx, http.MethodPost, requestCreatePath(userID), nil, &out)
	return out, err
}

func (c *Client) ApproveRequest(ctx context.Context, reqID int64) error {
	return c.do(ctx, http.MethodPost, requestApprovePath(reqID), nil, nil)
}

func (c *Client) RejectRequest(ctx context.Context, reqID int64) error {
	return c.do(ctx, http.MethodPost, requestRejectPath(reqID), nil, nil)
}

func (c *Client) DeleteRequest(ctx context.Context, reqID int64) error {
	return c.do(ctx, http.MethodDelete, requestDestroyPath(reqID), nil, nil)
}

// ---- Contacts ----

func (c *Client) ListContacts(ctx context.Context) ([]Contact, error) {
	var out []Contact
	err := c.do(ctx, http.MethodGet, pathContacts, nil, &out)
	return out, err
}

func (c *Client) DeleteContact(ctx context.Context, contactID int64) error {
	return c.do(ctx, http.MethodDelete, contactDestroyPath(contactID), nil, nil)
}
