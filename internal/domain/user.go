package domain

import (
	"errors"
	"time"
)

// ErrEmptyTelegramID is returned when a user is created without a chat ID.
var ErrEmptyTelegramID = errors.New("user telegram ID cannot be empty")

// User is a chat user known to the bot. TelegramID is the unique chat
// identifier tasks and reminders are keyed by; the internal ID is a store
// detail.
type User struct {
	ID         int64     `json:"id"`
	TelegramID int64     `json:"telegram_id"`
	Username   string    `json:"username,omitempty"`
	FirstName  string    `json:"first_name,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewUser creates a user record for the given chat identity.
func NewUser(telegramID int64, username, firstName string) (*User, error) {
	user := &User{
		TelegramID: telegramID,
		Username:   username,
		FirstName:  firstName,
		CreatedAt:  time.Now().UTC(),
	}

	if err := user.Validate(); err != nil {
		return nil, err
	}

	return user, nil
}

// Validate checks if the User has valid data.
func (u *User) Validate() error {
	if u.TelegramID == 0 {
		return ErrEmptyTelegramID
	}
	return nil
}
