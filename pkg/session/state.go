package session

import "github.com/gate-remote/gate-go/pkg/command"

// User is the identity stamped onto outbound commands.
type User struct {
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	PhotoURL    string `json:"photoURL,omitempty"`
}

// CommandUser converts u to the user record written with a command.
func (u User) CommandUser() command.User {
	return command.User{Name: u.DisplayName, Email: u.Email, Photo: u.PhotoURL}
}

// State is what the client shows for the current identity.
type State string

const (
	StateLoading   State = "loading"
	StateAuthed    State = "authed"
	StateNotAuthed State = "not-authed"
	StateError     State = "error"
)

// Select picks the state for an identity lookup result. An error wins,
// then a finished lookup without a user, then a user; anything else is
// still loading.
func Select(user *User, loading bool, err error) State {
	switch {
	case err != nil:
		return StateError
	case user == nil && !loading:
		return StateNotAuthed
	case user != nil:
		return StateAuthed
	default:
		return StateLoading
	}
}
