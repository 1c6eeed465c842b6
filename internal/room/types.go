// Package room implements the per-room state machine and round pipeline:
// deck, hands, stage, roles, votes, scoring, and win conditions. It is the
// locus of every invariant a room must hold at every stable quiescent
// point.
package room

import (
	"sync"
	"time"
)

// Stage is the room's state machine position.
type Stage int

const (
	StageJoining Stage = iota
	StageActiveChooses
	StagePlayersChoose
	StageVoting
	StageResults
	StageEnd
	StagePaused
)

func (s Stage) String() string {
	switch s {
	case StageJoining:
		return "Joining"
	case StageActiveChooses:
		return "ActiveChooses"
	case StagePlayersChoose:
		return "PlayersChoose"
	case StageVoting:
		return "Voting"
	case StageResults:
		return "Results"
	case StageEnd:
		return "End"
	case StagePaused:
		return "Paused"
	default:
		return "Unknown"
	}
}

// isAtomic reports whether new members admitted during this stage must
// become observers with auto_join_on_next_round rather than active
// players immediately (spec §4.D.1's "atomic stage" concept).
func (s Stage) isAtomic() bool {
	switch s {
	case StageJoining, StagePaused:
		return false
	default:
		return true
	}
}

// WinCondition selects how a game decides it is over.
type WinCondition string

const (
	WinPoints      WinCondition = "points"
	WinCycles      WinCondition = "cycles"
	WinCardsFinish WinCondition = "cards_finish"
)

// MemberKind distinguishes an active player from an observer.
type MemberKind int

const (
	KindPlayer MemberKind = iota
	KindObserver
)

func (k MemberKind) String() string {
	if k == KindObserver {
		return "observer"
	}
	return "player"
}

// Member is one participant in a room.
type Member struct {
	Name              string
	Token             string
	Kind              MemberKind
	Connected         bool
	Score             int
	Ready             bool
	AutoJoinNextRound bool
	JoinOrder         int
}

// Config is a room's configurable knobs. A moderator can change
// AllowMidgameJoin, StorytellerLossComplement, VotesPerGuesser,
// CardsPerHand and NominationsPerGuesser via the Set* wire commands (in
// Joining, ActiveChooses or Paused); the rest are fixed at room creation.
type Config struct {
	WinCondition              WinCondition
	VotesPerGuesser           int
	NominationsPerGuesser     int
	CardsPerHand              int
	StorytellerLossComplement int
	TargetPoints              int
	TargetCycles              int
	MaxActivePlayers          int
	AllowMidgameJoin          bool

	BonusDoubleCorrect                      bool
	BonusDecoy                              bool
	BonusDoubleVoteOnThresholdCorrectLoss   bool
	BonusCorrectGuessOnThresholdCorrectLoss bool

	Password string
}

// DefaultConfig returns the baseline configuration for a newly created
// room, following the defaults named in the environment surface and the
// original implementation's constants (component supplement C.6).
func DefaultConfig(winCondition WinCondition, defaultWinPoints int) Config {
	return Config{
		WinCondition:                             winCondition,
		VotesPerGuesser:                          1,
		NominationsPerGuesser:                    1,
		CardsPerHand:                             6,
		StorytellerLossComplement:                0,
		TargetPoints:                             defaultWinPoints,
		TargetCycles:                             3,
		MaxActivePlayers:                         8,
		AllowMidgameJoin:                         true,
		BonusDoubleCorrect:                       true,
		BonusDecoy:                               true,
		BonusDoubleVoteOnThresholdCorrectLoss:    false,
		BonusCorrectGuessOnThresholdCorrectLoss:  false,
	}
}

// deckState tracks card location for the invariant that draw pile, hands,
// table, and discard are pairwise disjoint subsets of the registry.
type deckState struct {
	DrawPile        []string
	Hands           map[string][]string // member name -> held card ids, in deal order
	ClueCard        string
	ClueOwner       string
	Description     string
	Nominations     map[string][]string // member name -> nominated card ids
	NominationOwner map[string]string   // card id -> nominating member name
	Votes           map[string][]string // member name -> voted-for card ids
	Table           []string            // clue card + all nominations, this round
	Discard         []string
	RefillCount     int
}

// Room aggregates all state for one game room and is the unit of
// serialization: every exported method that mutates state takes the
// engine's lock for its full command-to-broadcast-computation, per the
// single-owner design note.
type Room struct {
	Code        string
	CreatorName string
	Config      Config
	Stage       Stage
	PausedReason string
	RoundNumber int

	members    map[string]*Member // by name
	joinOrder  []string           // names in join order, for storyteller rotation
	moderators map[string]bool

	deck deckState

	activeStorytellerName string

	lastModeratorSeen time.Time

	registrar CardSource
	sink      EventSink

	now func() time.Time
	rng randSource

	mu            sync.Mutex
	pendingOutbox []func()
}

// CardSource is the read-only surface the room engine draws card IDs from
// (component C). It is the room-package-local mirror of cards.Registrar so
// this package does not import the cards package directly, keeping the
// dependency direction leaf-ward.
type CardSource interface {
	IDs() []string
}

// EventSink is how the engine emits events without holding pointers to
// sessions, per the arena+IDs design note: the engine only knows member
// names, and hands events to the hub, which resolves sessions by ID.
type EventSink interface {
	Broadcast(roomCode string, msg ServerMessage)
	SendTo(roomCode, memberName string, msg ServerMessage)
	CloseMember(roomCode, memberName string, msg ServerMessage)
}

type randSource interface {
	Intn(n int) int
	Shuffle(n int, swap func(i, j int))
}
