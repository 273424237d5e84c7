package models

import (
	"database/sql/driver"
	"fmt"

	"github.com/google/uuid"
)

// SessionToken is an opaque guest identity handed out by the caller's session layer
type SessionToken string

// NewSessionToken mints a fresh guest token.
func NewSessionToken() SessionToken {
	return SessionToken(uuid.New().String())
}

// Value implements driver.Valuer.
func (t SessionToken) Value() (driver.Value, error) {
	return string(t), nil
}

// Scan implements sql.Scanner.
func (t *SessionToken) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*t = SessionToken(v)
	case []byte:
		*t = SessionToken(v)
	default:
		return fmt.Errorf("cannot scan %T into SessionToken", src)
	}
	return nil
}

// Owner identifies a cart owner: exactly one of AccountID or SessionToken is set.
type Owner struct {
	AccountID    *int64
	SessionToken SessionToken
}

// AccountOwner returns the identity of an authenticated account.
func AccountOwner(accountID int64) Owner {
	return Owner{AccountID: &accountID}
}

// GuestOwner returns the identity of an anonymous session.
func GuestOwner(token SessionToken) Owner {
	return Owner{SessionToken: token}
}

// Validate fails with ErrInvalidOwner unless exactly one identifier is supplied.
func (o Owner) Validate() error {
	hasAccount := o.AccountID != nil
	hasToken := o.SessionToken != ""
	if hasAccount == hasToken {
		return ErrInvalidOwner
	}
	if hasAccount && *o.AccountID <= 0 {
		return ErrInvalidOwner
	}
	return nil
}

// IsGuest reports whether the owner is an anonymous session.
func (o Owner) IsGuest() bool {
	return o.AccountID == nil
}

// Equal reports whether two owners name the same identity.
func (o Owner) Equal(other Owner) bool {
	if o.AccountID != nil || other.AccountID != nil {
		return o.AccountID != nil && other.AccountID != nil && *o.AccountID == *other.AccountID
	}
	return o.SessionToken == other.SessionToken
}

func (o Owner) String() string {
	if o.AccountID != nil {
		return fmt.Sprintf("account:%d", *o.AccountID)
	}
	return "guest"
}
