package session

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for an unknown user or a wrong password.
var ErrInvalidCredentials = errors.New("invalid email or password")

// Provider authenticates a user.
type Provider interface {
	Authenticate(ctx context.Context, email, password string) (User, error)
}

// Account is one user known to a LocalProvider.
type Account struct {
	Email        string `yaml:"email"`
	DisplayName  string `yaml:"name"`
	PhotoURL     string `yaml:"photo,omitempty"`
	PasswordHash string `yaml:"password_hash"`
}

// LocalProvider checks passwords against bcrypt hashes.
type LocalProvider struct {
	accounts map[string]Account
	// dummy is compared against for unknown emails.
	dummy []byte
}

// NewLocalProvider returns a provider for accounts. Emails are matched
// case-insensitively. Accounts with an unparseable hash are rejected.
func NewLocalProvider(accounts []Account) (*LocalProvider, error) {
	p := &LocalProvider{accounts: make(map[string]Account, len(accounts))}
	for _, a := range accounts {
		key := normalizeEmail(a.Email)
		if key == "" {
			return nil, errors.New("account without email")
		}
		if _, err := bcrypt.Cost([]byte(a.PasswordHash)); err != nil {
			return nil, errors.New("account " + a.Email + ": invalid password hash")
		}
		if a.DisplayName == "" {
			a.DisplayName = a.Email
		}
		p.accounts[key] = a
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("not-a-password"), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}
	p.dummy = dummy
	return p, nil
}

// Authenticate returns the user for email if password matches.
func (p *LocalProvider) Authenticate(ctx context.Context, email, password string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	a, ok := p.accounts[normalizeEmail(email)]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(p.dummy, []byte(password))
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return User{DisplayName: a.DisplayName, Email: a.Email, PhotoURL: a.PhotoURL}, nil
}

// Accounts returns how many accounts are configured.
func (p *LocalProvider) Accounts() int {
	return len(p.accounts)
}

// HashPassword returns a bcrypt hash for storing in an Account.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Compile-time interface satisfaction check.
var _ Provider = (*LocalProvider)(nil)
