package contact

import "time"

// Contact is one address-book entry, always owned by a single user.
type Contact struct {
	ID             string    `json:"id"`
	UserID         string    `json:"-"`
	Name           string    `json:"name"`
	Surname        string    `json:"surname"`
	EmailAddress   string    `json:"email_address"`
	PhoneNumber    string    `json:"phone_number"`
	Birthday       time.Time `json:"birthday"`
	AdditionalData *string   `json:"additional_data,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ContactInput is the create/update payload.
type ContactInput struct {
	Name           string  `json:"name"`
	Surname        string  `json:"surname"`
	EmailAddress   string  `json:"email_address"`
	PhoneNumber    string  `json:"phone_number"`
	Birthday       string  `json:"birthday"`
	AdditionalData *string `json:"additional_data"`
}

// Filter narrows List results; empty fields match everything.
type Filter struct {
	Name         string
	Surname      string
	EmailAddress string
}
