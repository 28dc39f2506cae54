package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gate-remote/gate-go/pkg/command"
)

func TestSelect(t *testing.T) {
	user := &User{DisplayName: "A", Email: "a@x.com"}
	boom := errors.New("boom")

	tests := []struct {
		name    string
		user    *User
		loading bool
		err     error
		want    State
	}{
		{"error wins over user", user, false, boom, StateError},
		{"error wins over loading", nil, true, boom, StateError},
		{"no user after lookup", nil, false, nil, StateNotAuthed},
		{"user", user, false, nil, StateAuthed},
		{"user while loading", user, true, nil, StateAuthed},
		{"loading", nil, true, nil, StateLoading},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Select(tt.user, tt.loading, tt.err))
		})
	}
}

func TestCommandUser(t *testing.T) {
	u := User{DisplayName: "A", Email: "a@x.com", PhotoURL: "u"}
	assert.Equal(t, command.User{Name: "A", Email: "a@x.com", Photo: "u"}, u.CommandUser())
}
