package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Baby is a profile that broadcasts availability for video calls
type Baby struct {
	ID               uuid.UUID
	Name             string
	CreatedBy        uuid.UUID
	Parents          []uuid.UUID
	Subscribers      []uuid.UUID
	IsAvailable      bool
	LastStatusChange time.Time
}

// NewBaby creates a baby profile with the creator as its only parent
func NewBaby(name string, createdBy uuid.UUID, now time.Time) *Baby {
	return &Baby{
		ID:               uuid.New(),
		Name:             name,
		CreatedBy:        createdBy,
		Parents:          []uuid.UUID{createdBy},
		Subscribers:      []uuid.UUID{},
		LastStatusChange: now,
	}
}

// RestoreBaby rebuilds a baby from stored fields and repairs membership
// lists so the creator is a parent and parents and subscribers stay disjoint.
func RestoreBaby(id uuid.UUID, name string, createdBy uuid.UUID, parents, subscribers []uuid.UUID, isAvailable bool, lastStatusChange time.Time) *Baby {
	b := &Baby{
		ID:               id,
		Name:             name,
		CreatedBy:        createdBy,
		Parents:          []uuid.UUID{createdBy},
		Subscribers:      []uuid.UUID{},
		IsAvailable:      isAvailable,
		LastStatusChange: lastStatusChange,
	}
	for _, p := range parents {
		b.AddParent(p)
	}
	for _, s := range subscribers {
		b.AddSubscriber(s)
	}
	return b
}

// ToggleAvailability flips the availability flag and stamps the change time
func (b *Baby) ToggleAvailability(now time.Time) {
	b.IsAvailable = !b.IsAvailable
	b.stampStatusChange(now)
}

// SetAvailability sets the availability flag; setting the current value is a no-op
func (b *Baby) SetAvailability(available bool, now time.Time) {
	if b.IsAvailable == available {
		return
	}
	b.IsAvailable = available
	b.stampStatusChange(now)
}

// stampStatusChange keeps LastStatusChange strictly increasing even when the
// clock has not moved since the previous change.
func (b *Baby) stampStatusChange(now time.Time) {
	if !now.After(b.LastStatusChange) {
		now = b.LastStatusChange.Add(time.Nanosecond)
	}
	b.LastStatusChange = now
}

// Rename changes the display name of the baby
func (b *Baby) Rename(name string) {
	b.Name = name
}

// AddParent adds a co-parent. Returns false if the user is already a parent.
// A subscriber promoted to parent is removed from the subscriber list.
func (b *Baby) AddParent(userID uuid.UUID) bool {
	if b.IsParent(userID) {
		return false
	}
	b.Parents = append(b.Parents, userID)
	b.RemoveSubscriber(userID)
	return true
}

// RemoveParent removes a co-parent. The creator can never be removed.
func (b *Baby) RemoveParent(userID uuid.UUID) bool {
	if userID == b.CreatedBy {
		return false
	}
	i := slices.Index(b.Parents, userID)
	if i < 0 {
		return false
	}
	b.Parents = slices.Delete(b.Parents, i, i+1)
	return true
}

// AddSubscriber adds a read-only member. Parents cannot be subscribers.
func (b *Baby) AddSubscriber(userID uuid.UUID) bool {
	if b.IsParent(userID) || b.IsSubscriber(userID) {
		return false
	}
	b.Subscribers = append(b.Subscribers, userID)
	return true
}

// RemoveSubscriber removes a subscriber
func (b *Baby) RemoveSubscriber(userID uuid.UUID) bool {
	i := slices.Index(b.Subscribers, userID)
	if i < 0 {
		return false
	}
	b.Subscribers = slices.Delete(b.Subscribers, i, i+1)
	return true
}

func (b *Baby) IsParent(userID uuid.UUID) bool {
	return slices.Contains(b.Parents, userID)
}

func (b *Baby) IsSubscriber(userID uuid.UUID) bool {
	return slices.Contains(b.Subscribers, userID)
}

func (b *Baby) IsCreator(userID uuid.UUID) bool {
	return b.CreatedBy == userID
}

// IsMember reports whether the user is a parent or a subscriber
func (b *Baby) IsMember(userID uuid.UUID) bool {
	return b.IsParent(userID) || b.IsSubscriber(userID)
}

// CoParentCount returns the number of parents excluding the creator
func (b *Baby) CoParentCount() int {
	return len(b.Parents) - 1
}

func (b *Baby) SubscriberCount() int {
	return len(b.Subscribers)
}

// Clone returns a deep copy that shares no slices with b
func (b *Baby) Clone() *Baby {
	c := *b
	c.Parents = slices.Clone(b.Parents)
	c.Subscribers = slices.Clone(b.Subscribers)
	if c.Subscribers == nil {
		c.Subscribers = []uuid.UUID{}
	}
	return &c
}
