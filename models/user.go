package models

import "fmt"

// User represents a person registered with the tool.
// It maps to the `users` table; username and email are unique.
type User struct {
	ID       int64  `db:"id" json:"id" gorm:"primaryKey;autoIncrement"`
	Username string `db:"username" json:"username" gorm:"uniqueIndex;not null"`
	Email    string `db:"email" json:"email" gorm:"uniqueIndex;not null"`
	Password string `db:"password" json:"-" gorm:"not null"`
}

// TableName pins the gorm table name to the migrated schema.
func (User) TableName() string { return "users" }

// String renders the record the way every command prints it.
func (u User) String() string {
	return fmt.Sprintf("id=%d username='%s' email='%s' password='%s'", u.ID, u.Username, u.Email, u.Password)
}
