package domain

import "time"

// User represents an identity in the user directory.
//
// SecondFactorID is the identifier issued by the second factor provider at
// registration time. It is set exactly once, after a successful registration
// call; if that call fails the identity persists in a credential-only state
// and registration is considered incomplete.
type User struct {
	ID             string    `bson:"_id,omitempty"`
	Username       string    `bson:"username,unique"`
	PasswordHash   string    `bson:"password_hash"`
	SecondFactorID string    `bson:"second_factor_id,omitempty"`
	Email          string    `bson:"email,omitempty"`
	CountryCode    string    `bson:"country_code,omitempty"`
	PhoneNumber    string    `bson:"phone_number,omitempty"`
	CreatedAt      time.Time `bson:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at"`
}

// HasSecondFactor reports whether second factor registration completed.
func (u *User) HasSecondFactor() bool {
	return u.SecondFactorID != ""
}
