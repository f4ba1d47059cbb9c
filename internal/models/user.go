package models

import "gorm.io/gorm"

// User is a platform account. The relay only touches it for the database
// smoke test.
type User struct {
	gorm.Model
	Email string `gorm:"uniqueIndex;not null" json:"email"`
	Name  string `json:"name"`
	Role  string `gorm:"default:user" json:"role"`
}
