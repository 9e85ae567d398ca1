package models

import "time"

type Action string

const (
	ActionLike Action = "like"
	ActionPass Action = "pass"
)

func (a Action) Valid() bool {
	return a == ActionLike || a == ActionPass
}

type SwipeDecision struct {
	ActorID   int64     `json:"actorId"`
	TargetID  int64     `json:"targetId"`
	Action    Action    `json:"action"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CandidateFilters narrows candidate selection. Zero values mean "any".
type CandidateFilters struct {
	AgeMin    *int
	AgeMax    *int
	Gender    string
	Playstyle string
}
