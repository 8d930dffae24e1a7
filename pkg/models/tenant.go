// Package models defines the domain models shared by the floorflow services.
package models

import (
	"time"
)

// Tenant is a manufacturer account. Users are mapped onto a tenant by the
// domain of their email address.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Domain    string    `json:"domain"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
