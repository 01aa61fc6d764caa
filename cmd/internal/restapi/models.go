package restapi

import v1 "talkwire/shared/contracts/realtime/v1"

// Credentials are sent to sign in and to confirm the current password.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SignUpRequest creates an account.
type SignUpRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// User is a public user record.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Key returns the user id.
func (u User) Key() int64 { return u.ID }

// AuthResult is returned by sign-in and profile update.
type AuthResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// CheckResult is the outcome of the authentication probe.
type CheckResult struct {
	Authenticated bool
	Username      string
	Email         string
}

type checkResponse struct {
	Authenticated *bool  `json:"authenticated"`
	Username      string `json:"username"`
	Email         string `json:"email"`
}

// UserFilter narrows a user search. Empty fields match everyone.
type UserFilter struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// ProfileUpdate changes the signed-in user's profile.
type ProfileUpdate struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	NewPassword     string `json:"newPassword"`
	CurrentPassword string `json:"currentPassword"`
}

type passwordConfirm struct {
	Password string `json:"password"`
}

// ChatCreate opens a chat with another user.
type ChatCreate struct {
	Name   string `json:"name,omitempty"`
	UserID int64  `json:"userId"`
}

type messageBody struct {
	Text string `json:"text"`
}

// Relations describes how the signed-in user relates to another user.
// Ids are set when the matching flag is true and the backend reports them.
type Relations struct {
	HasChat            bool `json:"hasChat"`
	HasContact         bool `json:"hasContact"`
	HasOutgoingRequest bool `json:"hasOutgoingRequest"`
	HasIncomingRequest bool `json:"hasIncomingRequest"`

	ChatID            int64 `json:"chatId,omitempty"`
	OutgoingRequestID int64 `json:"outgoingRequestId,omitempty"`
	IncomingRequestID int64 `json:"incomingRequestId,omitempty"`
}

// Entity aliases keep endpoint signatures short.
type (
	Chat    = v1.Chat
	Message = v1.Message
	Contact = v1.Contact
	Request = v1.Request
)
