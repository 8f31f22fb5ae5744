package domain

// Game identifies one of the playable games. The set is closed: scores are
// only accepted for games listed in Games.
type Game string

const (
	GameShark       Game = "shark"
	GameTurtle      Game = "turtle"
	GameElephant    Game = "elephant"
	GameRhino       Game = "rhino"
	GameSnowLeopard Game = "snow-leopard"
	GamePangolin    Game = "pangolin"
	GameGorilla     Game = "gorilla"
	GameManta       Game = "manta"
	GameSeastar     Game = "seastar"
	GameTamarin     Game = "tamarin"
	GameArcticSeal  Game = "arctic-seal"
	GameWhale       Game = "whale"
)

// GameInfo holds the static attributes of a game.
type GameInfo struct {
	// LowerIsBetter flips the ranking order: the smallest score wins.
	// Used for games where the score is a completion time.
	LowerIsBetter bool
}

// Games is the single source of truth for the supported games and their
// ranking direction.
var Games = map[Game]GameInfo{
	GameShark:       {},
	GameTurtle:      {},
	GameElephant:    {},
	GameRhino:       {LowerIsBetter: true},
	GameSnowLeopard: {},
	GamePangolin:    {},
	GameGorilla:     {},
	GameManta:       {},
	GameSeastar:     {},
	GameTamarin:     {},
	GameArcticSeal:  {},
	GameWhale:       {},
}

// Valid reports whether g is a supported game.
func (g Game) Valid() bool {
	_, ok := Games[g]
	return ok
}

// ScoreRecord is one submitted score. Records are immutable once stored:
// they are created by a submission and destroyed only by retention cleanup.
type ScoreRecord struct {
	// ID is assigned by the store at insertion.
	ID string
	// PlayerName is the submitted name, whitespace-trimmed.
	PlayerName string
	Score      float64
	// Timestamp is the insertion time in milliseconds since epoch, assigned
	// by the store. Non-decreasing in insertion order, not strictly
	// increasing under concurrent writers.
	Timestamp int64
}

// Leaderboard is the ranked view of one game's scores, best first.
type Leaderboard struct {
	Game    Game
	Entries []ScoreRecord
}
