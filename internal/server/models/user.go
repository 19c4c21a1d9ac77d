package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// UserBag is the property bag stored for an identity.
type UserBag struct {
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
}

// User is the public view of an identity. It never carries the password hash.
type User struct {
	ID        string    `json:"uid"`
	GroupID   string    `json:"gid"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DecodeUserBag parses a stored user bag.
func DecodeUserBag(raw []byte) (UserBag, error) {
	var b UserBag
	if err := json.Unmarshal(raw, &b); err != nil {
		return UserBag{}, fmt.Errorf("decode user bag: %w", err)
	}
	return b, nil
}

// EncodeUserBag serializes b for storage.
func EncodeUserBag(b UserBag) (json.RawMessage, error) {
	raw, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("encode user bag: %w", err)
	}
	return raw, nil
}

// UserFromRow builds the public view from a stored row.
func UserFromRow(row *Row) (*User, error) {
	bag, err := DecodeUserBag(row.Bag)
	if err != nil {
		return nil, err
	}
	return &User{
		ID:        row.EntityID,
		GroupID:   row.GroupID,
		Email:     bag.Email,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}
