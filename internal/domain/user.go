// Package domain contains entity without logic, just meta-data
package domain

import "fmt"

type UserID int64

type User struct {
	ID          UserID `json:"id"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
}

// DisplayNameOrFallback returns a printable name even when the user record
// could not be loaded from the store.
func DisplayNameOrFallback(u *User, id UserID) string {
	if u == nil || u.DisplayName == "" {
		return fmt.Sprintf("User %d", id)
	}
	return u.DisplayName
}
