package domain

const (
	EventNameScoreSubmitted = "score.submitted"
)

type EventScoreSubmitted struct {
	Game      Game
	Record    ScoreRecord
	Qualified bool
}

func (EventScoreSubmitted) Name() string { return EventNameScoreSubmitted }
