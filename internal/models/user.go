package models

import (
	"slices"

	"github.com/google/uuid"
)

// User is a parent or family member using the app
type User struct {
	ID          uuid.UUID
	Name        *string
	DeviceToken *string
	Babies      []uuid.UUID
}

// NewUser creates a user with a fresh id and no memberships
func NewUser() *User {
	return &User{ID: uuid.New(), Babies: []uuid.UUID{}}
}

// DisplayName returns the user's name, or "Unknown" if not set
func (u *User) DisplayName() string {
	if u.Name == nil || *u.Name == "" {
		return "Unknown"
	}
	return *u.Name
}

func (u *User) SetName(name string) {
	u.Name = &name
}

func (u *User) SetDeviceToken(token string) {
	u.DeviceToken = &token
}

// AddBaby records membership of a baby. Returns false if already recorded.
func (u *User) AddBaby(babyID uuid.UUID) bool {
	if slices.Contains(u.Babies, babyID) {
		return false
	}
	u.Babies = append(u.Babies, babyID)
	return true
}

func (u *User) RemoveBaby(babyID uuid.UUID) bool {
	i := slices.Index(u.Babies, babyID)
	if i < 0 {
		return false
	}
	u.Babies = slices.Delete(u.Babies, i, i+1)
	return true
}

// Clone returns a deep copy of the user
func (u *User) Clone() *User {
	c := *u
	if u.Name != nil {
		name := *u.Name
		c.Name = &name
	}
	if u.DeviceToken != nil {
		token := *u.DeviceToken
		c.DeviceToken = &token
	}
	c.Babies = slices.Clone(u.Babies)
	if c.Babies == nil {
		c.Babies = []uuid.UUID{}
	}
	return &c
}
