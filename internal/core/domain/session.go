package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// State is the lifecycle position of a session.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateAuthenticating  State = "authenticating"
	StateAuthenticated   State = "authenticated"
	StateRevalidating    State = "revalidating"
)

// Durability controls how long a persisted credential survives.
type Durability string

const (
	// DurabilitySession lives for the current session only ("remember me" off).
	DurabilitySession Durability = "session"
	// DurabilityPersistent survives restarts ("remember me" on).
	DurabilityPersistent Durability = "persistent"
)

// DurabilityFor maps the "remember me" choice to a durability class.
func DurabilityFor(remember bool) Durability {
	if remember {
		return DurabilityPersistent
	}
	return DurabilitySession
}

// Slot names one of the three persisted credential slots.
type Slot string

const (
	SlotAccessToken  Slot = "access_token"
	SlotRefreshToken Slot = "refresh_token"
	SlotUser         Slot = "user"
)

// Slots lists every persisted slot in a stable order.
var Slots = []Slot{SlotAccessToken, SlotRefreshToken, SlotUser}

// Session is a read-only snapshot of the session state.
type Session struct {
	User            *User  `json:"user,omitempty"`
	AccessToken     string `json:"-"`
	RefreshToken    string `json:"-"`
	IsAuthenticated bool   `json:"isAuthenticated"`
	IsLoading       bool   `json:"isLoading"`
	Error           string `json:"error,omitempty"`
	State           State  `json:"state"`
}

// Credentials are the inputs of a login.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Remember bool   `json:"remember"`
}

var credentialsValidator = validator.New()

// Validate checks the credentials before any network call is made.
func (c Credentials) Validate() error {
	if err := credentialsValidator.Struct(c); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			msgs := make([]string, 0, len(ve))
			for _, fe := range ve {
				field := strings.ToLower(fe.Field())
				switch fe.Tag() {
				case "required":
					msgs = append(msgs, field+" is required")
				case "email":
					msgs = append(msgs, field+" must be a valid email")
				default:
					msgs = append(msgs, fmt.Sprintf("%s failed validation (%s)", field, fe.Tag()))
				}
			}
			return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}
