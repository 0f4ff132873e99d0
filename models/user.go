// Package models contains data structures for the Connecto client's domain models.
package models

import "encoding/json"

// User represents a user account as reported by the Connecto API. The client
// only ever holds a read-only, possibly stale copy; the server owns the record.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
	Bio      string `json:"bio,omitempty"`
}

// UnmarshalJSON accepts both id key variants the API emits: auth responses use
// "id" while authors embedded in posts use "_id".
func (u *User) UnmarshalJSON(data []byte) error {
	type alias User
	aux := struct {
		*alias
		MongoID string `json:"_id"`
	}{alias: (*alias)(u)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if u.ID == "" {
		u.ID = aux.MongoID
	}
	return nil
}
