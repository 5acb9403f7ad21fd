package trainerchat

import (
	"time"

	"github.com/myrjola/fitcoach/internal/generation"
	"github.com/myrjola/fitcoach/internal/workout"
)

// Status is the state of a session. Finished and reverted are terminal.
type Status string

const (
	StatusActive   Status = "active"
	StatusFinished Status = "finished"
	StatusReverted Status = "reverted"
)

// Role identifies who wrote a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Session is a conversation about one draft workout. OriginalDetails is the snapshot taken when the session was
// opened and is what Revert restores.
type Session struct {
	ID                  string
	UserID              string
	WorkoutID           string
	Status              Status
	OriginalWorkoutText string
	OriginalDetails     workout.Details
	UpdatedWorkoutText  string
	UpdatedDetails      *generation.StructuredWorkout
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Message is one line of the conversation.
type Message struct {
	ID        int64
	SessionID string
	Role      Role
	Content   string
	CreatedAt time.Time
}
