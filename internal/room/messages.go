package room

import (
	"encoding/json"
	"fmt"
)

// This file implements the wire protocol design note: JSON objects tagged
// by exactly one top-level key are represented in Go as a closed sum type
// discriminated by that key, rather than a loosely-typed map. An unknown
// key, or more than one key, is a protocol error the caller must treat as
// fatal to the session (it does not reach the room engine as a valid
// command).

// ClientMessage is the closed set of variants a session may send. Exactly
// one of the pointer fields is non-nil after a successful Unmarshal.
type ClientMessage struct {
	JoinRoom                     *JoinRoomPayload
	Ready                        *struct{}
	StartGame                    *struct{}
	LeaveRoom                    *struct{}
	KickPlayer                   *KickPlayerPayload
	SetModerator                 *SetModeratorPayload
	SetObserver                  *SetObserverPayload
	RequestJoinFromObserver      *struct{}
	SetAllowMidgameJoin          *SetAllowMidgameJoinPayload
	SetStorytellerLossComplement *SetStorytellerLossComplementPayload
	SetVotesPerGuesser           *SetVotesPerGuesserPayload
	SetCardsPerHand              *SetCardsPerHandPayload
	SetNominationsPerGuesser     *SetNominationsPerGuesserPayload
	ResumeGame                   *struct{}
	ActivePlayerChooseCard       *ActivePlayerChooseCardPayload
	PlayerChooseCards            *PlayerChooseCardsPayload
	SubmitVotes                  *SubmitVotesPayload
}

type JoinRoomPayload struct {
	RoomID       string `json:"room_id"`
	Name         string `json:"name"`
	Token        string `json:"token"`
	RoomPassword string `json:"room_password,omitempty"`
}

type KickPlayerPayload struct {
	Player string `json:"player"`
}

type SetModeratorPayload struct {
	Player  string `json:"player"`
	Enabled bool   `json:"enabled"`
}

type SetObserverPayload struct {
	Player  string `json:"player"`
	Enabled bool   `json:"enabled"`
}

type SetAllowMidgameJoinPayload struct {
	Enabled bool `json:"enabled"`
}

type SetStorytellerLossComplementPayload struct {
	Complement int `json:"complement"`
}

type SetVotesPerGuesserPayload struct {
	Votes int `json:"votes"`
}

type SetCardsPerHandPayload struct {
	Cards int `json:"cards"`
}

type SetNominationsPerGuesserPayload struct {
	Cards int `json:"cards"`
}

type ActivePlayerChooseCardPayload struct {
	Card        string `json:"card"`
	Description string `json:"description"`
}

type PlayerChooseCardsPayload struct {
	Cards []string `json:"cards"`
}

type SubmitVotesPayload struct {
	Cards []string `json:"cards"`
}

// UnmarshalJSON decodes a single-top-level-key JSON object into the
// matching variant field, rejecting objects with zero or more than one
// key, or an unrecognized key, as protocol errors.
func (m *ClientMessage) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("malformed message: %w", err)
	}
	if len(raw) != 1 {
		return fmt.Errorf("message must have exactly one top-level key, got %d", len(raw))
	}

	for key, payload := range raw {
		switch key {
		case "JoinRoom":
			var p JoinRoomPayload
			if err := json.Unmarshal(payload, &p); err != nil {
				return fmt.Errorf("JoinRoom: %w", err)
			}
			m.JoinRoom = &p
		case "Ready":
			m.Ready = &struct{}{}
		case "StartGame":
			m.StartGame = &struct{}{}
		case "LeaveRoom":
			m.LeaveRoom = &struct{}{}
		case "KickPlayer":
			var p KickPlayerPayload
			if err := json.Unmarshal(payload, &p); err != nil {
				return fmt.Errorf("KickPlayer: %w", err)
			}
			m.KickPlayer = &p
		case "SetModerator":
			var p SetModeratorPayload
			if err := json.Unmarshal(payload, &p); err != nil {
				return fmt.Errorf("SetModerator: %w", err)
			}
			m.SetModerator = &p
		case "SetObserver":
			var p SetObserverPayload
			if err := json.Unmarshal(payload, &p); err != nil {
				return fmt.Errorf("SetObserver: %w", err)
			}
			m.SetObserver = &p
		case "RequestJoinFromObserver":
			m.RequestJoinFromObserver = &struct{}{}
		case "SetAllowMidgameJoin":
			var p SetAllowMidgameJoinPayload
			if err := json.Unmarshal(payload, &p); err != nil {
				return fmt.Errorf("SetAllowMidgameJoin: %w", err)
			}
			m.SetAllowMidgameJoin = &p
		case "SetStorytellerLossComplement":
			var p SetStorytellerLossComplementPayload
			if err := json.Unmarshal(payload, &p); err != nil {
				return fmt.Errorf("SetStorytellerLossComplement: %w", err)
			}
			m.SetStorytellerLossComplement = &p
		case "SetVotesPerGuesser":
			var p SetVotesPerGuesserPayload
			if err := json.Unmarshal(payload, &p); err != nil {
				return fmt.Errorf("SetVotesPerGuesser: %w", err)
			}
			m.SetVotesPerGuesser = &p
		case "SetCardsPerHand":
			var p SetCardsPerHandPayload
			if err := json.Unmarshal(payload, &p); err != nil {
				return fmt.Errorf("SetCardsPerHand: %w", err)
			}
			m.SetCardsPerHand = &p
		case "SetNominationsPerGuesser":
			var p SetNominationsPerGuesserPayload
			if err := json.Unmarshal(payload, &p); err != nil {
				return fmt.Errorf("SetNominationsPerGuesser: %w", err)
			}
			m.SetNominationsPerGuesser = &p
		case "ResumeGame":
			m.ResumeGame = &struct{}{}
		case "ActivePlayerChooseCard":
			var p ActivePlayerChooseCardPayload
			if err := json.Unmarshal(payload, &p); err != nil {
				return fmt.Errorf("ActivePlayerChooseCard: %w", err)
			}
			m.ActivePlayerChooseCard = &p
		case "PlayerChooseCards":
			var p PlayerChooseCardsPayload
			if err := json.Unmarshal(payload, &p); err != nil {
				return fmt.Errorf("PlayerChooseCards: %w", err)
			}
			m.PlayerChooseCards = &p
		case "SubmitVotes":
			var p SubmitVotesPayload
			if err := json.Unmarshal(payload, &p); err != nil {
				return fmt.Errorf("SubmitVotes: %w", err)
			}
			m.SubmitVotes = &p
		default:
			return fmt.Errorf("unrecognized message key %q", key)
		}
	}
	return nil
}

// ServerMessage is the closed set of variants the server emits. Marshal
// always produces a single-top-level-key object naming the field that is
// set.
type ServerMessage struct {
	RoomState  *RoomStateMsg
	StartRound *StartRoundMsg
	PlayersChoose *PlayersChooseMsg
	BeginVoting   *BeginVotingMsg
	Results       *ResultsMsg
	EndGame       *struct{}
	ErrorMsg      *ErrorMsgPayload
	InvalidRoomId *struct{}
	Kicked        *ReasonPayload
	LeftRoom      *ReasonPayload
	SupersededBySameToken *struct{}
}

type ReasonPayload struct {
	Reason string `json:"reason"`
}

type ErrorMsgPayload struct {
	Reason string `json:"reason"`
}

type MemberView struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Connected bool   `json:"connected"`
	Points    int    `json:"points"`
	Ready     bool   `json:"ready"`
	Moderator bool   `json:"moderator"`
}

type RoomStateMsg struct {
	RoomID          string       `json:"room_id"`
	Stage           string       `json:"stage"`
	PausedReason    string       `json:"paused_reason,omitempty"`
	Creator         string       `json:"creator,omitempty"`
	Members         []MemberView `json:"members"`
	ActivePlayer    string       `json:"active_player,omitempty"`
	RoundNumber     int          `json:"round_number"`
	DeckRefillCount int          `json:"deck_refill_count"`
	Config          ConfigView   `json:"config"`
}

type ConfigView struct {
	WinCondition          string `json:"win_condition"`
	VotesPerGuesser       int    `json:"votes_per_guesser"`
	NominationsPerGuesser int    `json:"nominations_per_guesser"`
	CardsPerHand          int    `json:"cards_per_hand"`
	StorytellerLossComplement int `json:"storyteller_loss_complement"`
	TargetPoints          int    `json:"target_points,omitempty"`
	TargetCycles          int    `json:"target_cycles,omitempty"`
	AllowMidgameJoin      bool   `json:"allow_midgame_join"`
	HasPassword           bool   `json:"has_password"`
}

type StartRoundMsg struct {
	Hand []string `json:"hand"`
}

type PlayersChooseMsg struct {
	Hand        []string `json:"hand"`
	Description string   `json:"description"`
}

type BeginVotingMsg struct {
	CenterCards     []string `json:"center_cards"`
	Description     string   `json:"description"`
	DisabledCards   []string `json:"disabled_cards"`
	VotesPerGuesser int      `json:"votes_per_guesser"`
}

type ResultsMsg struct {
	PlayerToCurrentCards map[string][]string `json:"player_to_current_cards"`
	PlayerToVotes        map[string][]string `json:"player_to_votes"`
	ActiveCard           string              `json:"active_card"`
	PointChange          map[string]int      `json:"point_change"`
}

// MarshalJSON emits the single non-nil variant as a one-key object.
func (m ServerMessage) MarshalJSON() ([]byte, error) {
	type entry struct {
		key   string
		value any
	}
	candidates := []entry{
		{"RoomState", m.RoomState},
		{"StartRound", m.StartRound},
		{"PlayersChoose", m.PlayersChoose},
		{"BeginVoting", m.BeginVoting},
		{"Results", m.Results},
		{"EndGame", m.EndGame},
		{"ErrorMsg", m.ErrorMsg},
		{"InvalidRoomId", m.InvalidRoomId},
		{"Kicked", m.Kicked},
		{"LeftRoom", m.LeftRoom},
		{"SupersededBySameToken", m.SupersededBySameToken},
	}
	for _, c := range candidates {
		switch v := c.value.(type) {
		case *RoomStateMsg:
			if v != nil {
				return json.Marshal(map[string]any{c.key: v})
			}
		case *StartRoundMsg:
			if v != nil {
				return json.Marshal(map[string]any{c.key: v})
			}
		case *PlayersChooseMsg:
			if v != nil {
				return json.Marshal(map[string]any{c.key: v})
			}
		case *BeginVotingMsg:
			if v != nil {
				return json.Marshal(map[string]any{c.key: v})
			}
		case *ResultsMsg:
			if v != nil {
				return json.Marshal(map[string]any{c.key: v})
			}
		case *ErrorMsgPayload:
			if v != nil {
				return json.Marshal(map[string]any{c.key: v})
			}
		case *ReasonPayload:
			if v != nil {
				return json.Marshal(map[string]any{c.key: v})
			}
		case *struct{}:
			if v != nil {
				return json.Marshal(map[string]any{c.key: struct{}{}})
			}
		}
	}
	return nil, fmt.Errorf("no variant set on ServerMessage")
}
