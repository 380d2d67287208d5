package models

import "github.com/google/uuid"

// BabyEvent is a realtime update for one baby. A nil Baby means the
// document was deleted or could no longer be read.
type BabyEvent struct {
	BabyID uuid.UUID
	Baby   *Baby
}

func (e BabyEvent) Removed() bool {
	return e.Baby == nil
}
