package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile mirrors a Supabase auth user inside the application schema.
type Profile struct {
	ID               uuid.UUID `json:"id"`
	Email            string    `json:"email"`
	FullName         string    `json:"full_name"`
	Locale           string    `json:"locale"`
	StripeCustomerID *string   `json:"-"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
