package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestUserDisplayName(t *testing.T) {
	tests := []struct {
		name string
		user User
		want string
	}{
		{name: "no name", user: User{}, want: "Unknown"},
		{name: "empty name", user: User{Name: new(string)}, want: "Unknown"},
		{name: "named", user: func() User { u := User{}; u.SetName("Jordan"); return u }(), want: "Jordan"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.user.DisplayName())
		})
	}
}

func TestUserBabies(t *testing.T) {
	user := NewUser()
	babyID := uuid.New()

	assert.True(t, user.AddBaby(babyID))
	assert.False(t, user.AddBaby(babyID))
	assert.Equal(t, []uuid.UUID{babyID}, user.Babies)

	assert.True(t, user.RemoveBaby(babyID))
	assert.False(t, user.RemoveBaby(babyID))
	assert.Empty(t, user.Babies)
}

func TestUserClone(t *testing.T) {
	user := NewUser()
	user.SetName("Jordan")
	user.AddBaby(uuid.New())

	clone := user.Clone()
	clone.SetName("Riley")
	clone.AddBaby(uuid.New())

	assert.Equal(t, "Jordan", user.DisplayName())
	assert.Len(t, user.Babies, 1)
}
