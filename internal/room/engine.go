package room

import (
	"math/rand"
	"sort"
	"time"

	apperrors "github.com/wyattkrebs/talespin-server/internal/errors"
)

const (
	maxNameLength        = 30
	maxDescriptionLength = 500
	moderatorGraceWindow = 5 * time.Minute
)

// mathRand adapts math/rand.Rand to the room package's minimal randSource
// interface, kept narrow so tests can substitute a deterministic fake.
type mathRand struct{ r *rand.Rand }

func (m mathRand) Intn(n int) int                        { return m.r.Intn(n) }
func (m mathRand) Shuffle(n int, swap func(i, j int)) { m.r.Shuffle(n, swap) }

// New constructs a fresh room in the Joining stage. The creator is
// admitted as the first member and moderator.
func New(code, creatorName, creatorToken string, winCondition WinCondition, password string, defaultWinPoints int, registrar CardSource, sink EventSink) *Room {
	r := &Room{
		Code:        code,
		CreatorName: creatorName,
		Config:      DefaultConfig(winCondition, defaultWinPoints),
		Stage:       StageJoining,
		members:     make(map[string]*Member),
		moderators:  make(map[string]bool),
		deck: deckState{
			Hands:           make(map[string][]string),
			Nominations:     make(map[string][]string),
			NominationOwner: make(map[string]string),
			Votes:           make(map[string][]string),
		},
		registrar: registrar,
		sink:      sink,
		now:       time.Now,
		rng:       mathRand{r: rand.New(rand.NewSource(time.Now().UnixNano()))},
	}
	r.Config.Password = password
	r.addMember(creatorName, creatorToken, KindPlayer)
	r.moderators[creatorName] = true
	r.lastModeratorSeen = r.now()
	return r
}

// --- locking / outbox plumbing -------------------------------------------------

// withLock runs fn with the room's state locked, then dispatches every
// broadcast/send queued during fn after the lock is released, per the
// single-owner design note: the whole command-to-broadcast-computation
// sequence is serialized, but network I/O never happens while holding it.
func (r *Room) withLock(fn func()) {
	r.mu.Lock()
	fn()
	pending := r.pendingOutbox
	r.pendingOutbox = nil
	r.mu.Unlock()
	for _, f := range pending {
		f()
	}
}

func (r *Room) emit(fn func()) {
	r.pendingOutbox = append(r.pendingOutbox, fn)
}

func (r *Room) broadcast(msg ServerMessage) {
	r.emit(func() { r.sink.Broadcast(r.Code, msg) })
}

func (r *Room) sendTo(member string, msg ServerMessage) {
	r.emit(func() { r.sink.SendTo(r.Code, member, msg) })
}

func (r *Room) closeMember(member string, msg ServerMessage) {
	r.emit(func() { r.sink.CloseMember(r.Code, member, msg) })
}

// --- membership helpers ---------------------------------------------------

func (r *Room) addMember(name, token string, kind MemberKind) *Member {
	m := &Member{Name: name, Token: token, Kind: kind, Connected: true, JoinOrder: len(r.joinOrder)}
	r.members[name] = m
	r.joinOrder = append(r.joinOrder, name)
	r.deck.Hands[name] = nil
	return m
}

func (r *Room) removeMember(name string) {
	r.deck.discardHand(name)
	delete(r.members, name)
	delete(r.moderators, name)
	for i, n := range r.joinOrder {
		if n == name {
			r.joinOrder = append(r.joinOrder[:i], r.joinOrder[i+1:]...)
			break
		}
	}
	if r.CreatorName == name {
		r.CreatorName = ""
	}
}

// activePlayers returns Kind==KindPlayer members in stable join order.
func (r *Room) activePlayers() []*Member {
	var out []*Member
	for _, name := range r.joinOrder {
		if m := r.members[name]; m != nil && m.Kind == KindPlayer {
			out = append(out, m)
		}
	}
	return out
}

// guessers returns connected, non-storyteller active players — the set
// whose submissions gate a stage transition.
func (r *Room) guessers(storyteller string) []*Member {
	var out []*Member
	for _, m := range r.activePlayers() {
		if m.Name == storyteller || !m.Connected {
			continue
		}
		out = append(out, m)
	}
	return out
}

func (r *Room) isModerator(name string) bool { return r.moderators[name] }

func (r *Room) currentStoryteller() string {
	if r.deck.ClueOwner != "" {
		return r.deck.ClueOwner
	}
	return r.activeStorytellerName
}

// --- pause / capacity invariants ------------------------------------------

func (r *Room) enforceHeadcount() {
	if len(r.activePlayers()) < 3 && r.Stage != StageJoining && r.Stage != StageEnd {
		r.Stage = StagePaused
		r.PausedReason = "Need at least 3 active players."
	}
}

// --- public commands --------------------------------------------------------

// Join admits or reattaches a client per §4.D.1's match rules.
func (r *Room) Join(name, token, password string) *apperrors.Error {
	var result *apperrors.Error
	r.withLock(func() {
		if existing := r.members[name]; existing != nil {
			if existing.Token == token {
				existing.Connected = true
				if msg := r.privateStateFor(name); msg != nil {
					r.sendTo(name, *msg)
				}
				r.emitRoomState()
				return
			}
			result = apperrors.NameAlreadyTaken(name)
			return
		}
		if len(name) == 0 || len(name) > maxNameLength {
			result = apperrors.Validation("name must be between 1 and 30 characters")
			return
		}
		if r.Config.Password != "" && password != r.Config.Password {
			result = apperrors.BadPassword()
			return
		}
		if !r.Config.AllowMidgameJoin && r.Stage != StageJoining {
			result = apperrors.JoinsDisabled()
			return
		}

		kind := KindPlayer
		autoJoin := false
		if r.Stage.isAtomic() {
			kind = KindObserver
			autoJoin = true
		} else if r.Stage == StageJoining && len(r.activePlayers()) >= r.Config.MaxActivePlayers {
			kind = KindObserver
		}

		m := r.addMember(name, token, kind)
		m.AutoJoinNextRound = autoJoin
		r.emitRoomState()
	})
	return result
}

// Leave removes a member at their own request.
func (r *Room) Leave(name string) {
	r.withLock(func() {
		if r.members[name] == nil {
			return
		}
		r.sendTo(name, ServerMessage{LeftRoom: &ReasonPayload{Reason: "left"}})
		r.handleDeparture(name)
	})
}

// RoomStats is a lock-safe snapshot of a room's operational stats, for the
// /stats endpoint's per-room visibility (component G, supplement C.2). It
// is not part of the client wire protocol.
type RoomStats struct {
	Stage             string
	ActivePlayerCount int
	ConnectedCount    int
}

// Stats returns the room's current stage, active player count, and
// connected-session count.
func (r *Room) Stats() RoomStats {
	var stats RoomStats
	r.withLock(func() {
		stats.Stage = r.Stage.String()
		stats.ActivePlayerCount = len(r.activePlayers())
		for _, m := range r.members {
			if m.Connected {
				stats.ConnectedCount++
			}
		}
	})
	return stats
}

// Disconnect marks a member's session as gone without removing them from
// the room: their hand, score, moderator status, and ready state all
// survive, so a later Join with the same token reattaches to the same
// member. Called by the hub on WebSocket teardown, never on an explicit
// LeaveRoom (that goes through Leave, which does remove the member).
func (r *Room) Disconnect(name string) {
	r.withLock(func() {
		m := r.members[name]
		if m == nil {
			return
		}
		m.Connected = false
		r.enforceHeadcount()
		r.emitRoomState()
	})
}

// Kick removes a member at a moderator's request.
func (r *Room) Kick(by, target string) *apperrors.Error {
	var result *apperrors.Error
	r.withLock(func() {
		if !r.isModerator(by) {
			result = apperrors.PermissionDenied("only moderators may kick")
			return
		}
		if r.members[target] == nil {
			result = apperrors.NotFound("no such member")
			return
		}
		r.closeMember(target, ServerMessage{Kicked: &ReasonPayload{Reason: "removed by a moderator"}})
		r.handleDeparture(target)
	})
	return result
}

// handleDeparture is the shared tail of Leave and Kick: discard hand,
// drop moderator/creator status, cancel an in-flight storyteller turn,
// enforce the headcount pause, and broadcast the new state.
func (r *Room) handleDeparture(name string) {
	wasStoryteller := r.currentStoryteller() == name && r.Stage != StageJoining && r.Stage != StageEnd && r.Stage != StagePaused
	r.removeMember(name)

	if wasStoryteller {
		r.deck.discardRound()
		r.activeStorytellerName = ""
		if len(r.activePlayers()) >= 3 {
			r.beginRound()
			return
		}
	}
	r.enforceHeadcount()
	r.emitRoomState()
}

// SetModerator toggles moderator status for target.
func (r *Room) SetModerator(by, target string, enabled bool) *apperrors.Error {
	var result *apperrors.Error
	r.withLock(func() {
		if !r.isModerator(by) {
			result = apperrors.PermissionDenied("only moderators may change moderator status")
			return
		}
		if r.members[target] == nil {
			result = apperrors.NotFound("no such member")
			return
		}
		if enabled {
			r.moderators[target] = true
		} else {
			delete(r.moderators, target)
		}
		r.emitRoomState()
	})
	return result
}

// SetObserver converts a member between player and observer roles, moved
// by a moderator, subject to the storyteller-in-flight exception.
func (r *Room) SetObserver(by, target string, enabled bool) *apperrors.Error {
	var result *apperrors.Error
	r.withLock(func() {
		if !r.isModerator(by) {
			result = apperrors.PermissionDenied("only moderators may change observer status")
			return
		}
		m := r.members[target]
		if m == nil {
			result = apperrors.NotFound("no such member")
			return
		}
		inFlight := r.Stage == StagePlayersChoose || r.Stage == StageVoting || r.Stage == StageResults
		if enabled && inFlight && r.currentStoryteller() == target {
			result = apperrors.PermissionDenied("cannot demote the storyteller mid-round")
			return
		}
		if enabled {
			r.deck.discardHand(target)
			m.Kind = KindObserver
			m.AutoJoinNextRound = false
			r.enforceHeadcount()
		} else {
			if r.Stage.isAtomic() {
				m.AutoJoinNextRound = true
			} else {
				m.Kind = KindPlayer
				m.AutoJoinNextRound = false
			}
		}
		r.emitRoomState()
	})
	return result
}

// RequestJoinFromObserver lets an observer ask to rejoin active play.
func (r *Room) RequestJoinFromObserver(name string) *apperrors.Error {
	var result *apperrors.Error
	r.withLock(func() {
		m := r.members[name]
		if m == nil || m.Kind != KindObserver {
			result = apperrors.Validation("not currently an observer")
			return
		}
		if r.Stage.isAtomic() {
			m.AutoJoinNextRound = true
		} else {
			m.Kind = KindPlayer
		}
		r.emitRoomState()
	})
	return result
}

func (r *Room) requireModeratorAndSafeStage(by string) *apperrors.Error {
	if !r.isModerator(by) {
		return apperrors.PermissionDenied("only moderators may change room settings")
	}
	if r.Stage != StageJoining && r.Stage != StageActiveChooses && r.Stage != StagePaused {
		return apperrors.StageForbidsAction("changing room settings")
	}
	return nil
}

func (r *Room) SetAllowMidgameJoin(by string, enabled bool) *apperrors.Error {
	var result *apperrors.Error
	r.withLock(func() {
		if result = r.requireModeratorAndSafeStage(by); result != nil {
			return
		}
		r.Config.AllowMidgameJoin = enabled
		r.emitRoomState()
	})
	return result
}

func (r *Room) SetStorytellerLossComplement(by string, complement int) *apperrors.Error {
	var result *apperrors.Error
	r.withLock(func() {
		if result = r.requireModeratorAndSafeStage(by); result != nil {
			return
		}
		if complement < 0 {
			result = apperrors.Validation("storyteller loss complement must be >= 0")
			return
		}
		r.Config.StorytellerLossComplement = complement
		r.emitRoomState()
	})
	return result
}

func (r *Room) SetVotesPerGuesser(by string, votes int) *apperrors.Error {
	var result *apperrors.Error
	r.withLock(func() {
		if result = r.requireModeratorAndSafeStage(by); result != nil {
			return
		}
		if votes < 1 {
			result = apperrors.Validation("votes per guesser must be >= 1")
			return
		}
		r.Config.VotesPerGuesser = votes
		r.emitRoomState()
	})
	return result
}

func (r *Room) SetCardsPerHand(by string, cards int) *apperrors.Error {
	var result *apperrors.Error
	r.withLock(func() {
		if result = r.requireModeratorAndSafeStage(by); result != nil {
			return
		}
		if cards < 1 || cards > 12 {
			result = apperrors.Validation("cards per hand must be between 1 and 12")
			return
		}
		r.Config.CardsPerHand = cards
		r.emitRoomState()
	})
	return result
}

func (r *Room) SetNominationsPerGuesser(by string, cards int) *apperrors.Error {
	var result *apperrors.Error
	r.withLock(func() {
		if result = r.requireModeratorAndSafeStage(by); result != nil {
			return
		}
		if cards < 1 {
			result = apperrors.Validation("nominations per guesser must be >= 1")
			return
		}
		r.Config.NominationsPerGuesser = cards
		r.emitRoomState()
	})
	return result
}

// StartGame transitions Joining -> ActiveChooses.
func (r *Room) StartGame(by string) *apperrors.Error {
	var result *apperrors.Error
	r.withLock(func() {
		if !r.isModerator(by) {
			result = apperrors.PermissionDenied("only moderators may start the game")
			return
		}
		if r.Stage != StageJoining {
			result = apperrors.StageForbidsAction("StartGame")
			return
		}
		if len(r.activePlayers()) < 3 {
			result = apperrors.NotEnoughPlayers()
			return
		}
		r.beginRound()
	})
	return result
}

// ResumeGame transitions Paused -> ActiveChooses.
func (r *Room) ResumeGame(by string) *apperrors.Error {
	var result *apperrors.Error
	r.withLock(func() {
		if !r.isModerator(by) {
			result = apperrors.PermissionDenied("only moderators may resume the game")
			return
		}
		if r.Stage != StagePaused {
			result = apperrors.StageForbidsAction("ResumeGame")
			return
		}
		if len(r.activePlayers()) < 3 {
			result = apperrors.NotEnoughPlayers()
			return
		}
		r.PausedReason = ""
		r.beginRound()
	})
	return result
}

// Ready records a post-Results readiness vote; once every connected active
// player is ready, the next round begins.
func (r *Room) Ready(name string) *apperrors.Error {
	var result *apperrors.Error
	r.withLock(func() {
		if r.Stage != StageResults {
			result = apperrors.StageForbidsAction("Ready")
			return
		}
		m := r.members[name]
		if m == nil || m.Kind != KindPlayer {
			result = apperrors.PermissionDenied("only active players may ready up")
			return
		}
		m.Ready = true
		for _, p := range r.activePlayers() {
			if p.Connected && !p.Ready {
				return
			}
		}
		r.beginRound()
	})
	return result
}

// ActivePlayerChooseCard transitions ActiveChooses -> PlayersChoose.
func (r *Room) ActivePlayerChooseCard(name, card, description string) *apperrors.Error {
	var result *apperrors.Error
	r.withLock(func() {
		if r.Stage != StageActiveChooses {
			result = apperrors.StageForbidsAction("ActivePlayerChooseCard")
			return
		}
		if r.currentStoryteller() != name {
			result = apperrors.PermissionDenied("only the storyteller may choose the clue card")
			return
		}
		if description == "" {
			result = apperrors.Validation("description must not be empty")
			return
		}
		if len(description) > maxDescriptionLength {
			description = description[:maxDescriptionLength]
		}
		if !r.deck.removeFromHand(name, card) {
			result = apperrors.CardNotInHand()
			return
		}
		r.deck.ClueCard = card
		r.deck.ClueOwner = name
		r.deck.Description = description
		r.Stage = StagePlayersChoose

		for _, g := range r.guessers(name) {
			r.sendTo(g.Name, ServerMessage{PlayersChoose: &PlayersChooseMsg{
				Hand:        append([]string(nil), r.deck.Hands[g.Name]...),
				Description: description,
			}})
		}
		r.emitRoomState()
	})
	return result
}

// PlayerChooseCards records one guesser's nominations; when every guesser
// has nominated, transitions PlayersChoose -> Voting.
func (r *Room) PlayerChooseCards(name string, cardIDs []string) *apperrors.Error {
	var result *apperrors.Error
	r.withLock(func() {
		if r.Stage != StagePlayersChoose {
			result = apperrors.StageForbidsAction("PlayerChooseCards")
			return
		}
		storyteller := r.currentStoryteller()
		if name == storyteller {
			result = apperrors.PermissionDenied("the storyteller does not nominate")
			return
		}
		m := r.members[name]
		if m == nil || m.Kind != KindPlayer {
			result = apperrors.PermissionDenied("only active players may nominate")
			return
		}
		if _, already := r.deck.Nominations[name]; already {
			result = apperrors.StageForbidsAction("PlayerChooseCards")
			return
		}
		if len(cardIDs) != r.Config.NominationsPerGuesser {
			result = apperrors.WrongVoteCount(r.Config.NominationsPerGuesser, len(cardIDs))
			return
		}
		if hasDuplicates(cardIDs) {
			result = apperrors.DuplicateNomination()
			return
		}
		hand := r.deck.Hands[name]
		for _, c := range cardIDs {
			if !containsString(hand, c) {
				result = apperrors.CardNotInHand()
				return
			}
		}
		for _, c := range cardIDs {
			r.deck.removeFromHand(name, c)
			r.deck.NominationOwner[c] = name
		}
		r.deck.Nominations[name] = cardIDs
		r.deck.Table = append(r.deck.Table, cardIDs...)

		if len(r.deck.Nominations) >= len(r.guessers(storyteller)) {
			r.beginVoting()
			return
		}
		r.emitRoomState()
	})
	return result
}

// SubmitVotes records one guesser's votes; when every guesser has voted,
// transitions Voting -> Results (or End, on a win).
func (r *Room) SubmitVotes(name string, cardIDs []string) *apperrors.Error {
	var result *apperrors.Error
	r.withLock(func() {
		if r.Stage != StageVoting {
			result = apperrors.StageForbidsAction("SubmitVotes")
			return
		}
		storyteller := r.currentStoryteller()
		if name == storyteller {
			result = apperrors.PermissionDenied("the storyteller does not vote")
			return
		}
		m := r.members[name]
		if m == nil || m.Kind != KindPlayer {
			result = apperrors.PermissionDenied("only active players may vote")
			return
		}
		if _, already := r.deck.Votes[name]; already {
			result = apperrors.StageForbidsAction("SubmitVotes")
			return
		}
		if len(cardIDs) != r.Config.VotesPerGuesser {
			result = apperrors.WrongVoteCount(r.Config.VotesPerGuesser, len(cardIDs))
			return
		}
		ownCards := r.deck.Nominations[name]
		for _, c := range cardIDs {
			if !containsString(r.deck.Table, c) {
				result = apperrors.UnknownCardID(c)
				return
			}
			if containsString(ownCards, c) {
				result = apperrors.VoteOnOwnCard()
				return
			}
		}
		r.deck.Votes[name] = cardIDs

		if len(r.deck.Votes) >= len(r.guessers(storyteller)) {
			r.finishRound()
			return
		}
		r.emitRoomState()
	})
	return result
}

// MaintenanceTick runs the periodic per-room checks that must fire
// regardless of client traffic: the moderator-continuity promotion timer.
func (r *Room) MaintenanceTick(now time.Time) {
	r.withLock(func() {
		anyModeratorConnected := false
		for name := range r.moderators {
			if m := r.members[name]; m != nil && m.Connected {
				anyModeratorConnected = true
				break
			}
		}
		if anyModeratorConnected || len(r.members) == 0 {
			r.lastModeratorSeen = now
			return
		}
		if now.Sub(r.lastModeratorSeen) < moderatorGraceWindow {
			return
		}
		var candidates []string
		for _, name := range r.joinOrder {
			if m := r.members[name]; m != nil && m.Connected {
				candidates = append(candidates, name)
			}
		}
		if len(candidates) == 0 {
			return
		}
		chosen := candidates[r.rng.Intn(len(candidates))]
		r.moderators[chosen] = true
		r.lastModeratorSeen = now
		r.emitRoomState()
	})
}

// --- round pipeline internals (caller must hold the lock) ------------------

func (r *Room) beginRound() {
	for _, m := range r.members {
		if m.Kind == KindObserver && m.AutoJoinNextRound {
			m.Kind = KindPlayer
			m.AutoJoinNextRound = false
		}
		m.Ready = false
	}
	r.deck.Votes = make(map[string][]string)
	r.deck.Nominations = make(map[string][]string)
	r.deck.NominationOwner = make(map[string]string)

	if r.Config.WinCondition == WinCardsFinish && r.RoundNumber == 0 && len(r.deck.DrawPile) == 0 {
		r.deck.seedFullDeck(r.registrar.IDs(), r.rng)
	}

	active := r.activePlayers()
	need := 0
	for _, m := range active {
		if have := len(r.deck.Hands[m.Name]); have < r.Config.CardsPerHand {
			need += r.Config.CardsPerHand - have
		}
	}

	if need > len(r.deck.DrawPile) {
		if r.Config.WinCondition == WinCardsFinish {
			// cards_finish never refills; running out ends the game.
			r.Stage = StageEnd
			r.broadcast(ServerMessage{EndGame: &struct{}{}})
			return
		}
		r.deck.refill(r.registrar.IDs(), need)
	}

	for _, m := range active {
		r.deck.deal(m.Name, r.Config.CardsPerHand)
	}

	storyteller := r.pickStoryteller(active)
	r.activeStorytellerName = storyteller
	r.Stage = StageActiveChooses

	r.sendTo(storyteller, ServerMessage{StartRound: &StartRoundMsg{Hand: append([]string(nil), r.deck.Hands[storyteller]...)}})
	r.emitRoomState()
}

func (r *Room) pickStoryteller(active []*Member) string {
	if len(active) == 0 {
		return ""
	}
	idx := r.RoundNumber % len(active)
	for i := 0; i < len(active); i++ {
		candidate := active[(idx+i)%len(active)]
		if candidate.Connected {
			return candidate.Name
		}
	}
	return active[idx].Name
}

func (r *Room) beginVoting() {
	storyteller := r.currentStoryteller()
	tableCopy := append([]string(nil), r.deck.ClueCard)
	tableCopy = append(tableCopy, r.deck.Table...)
	r.rng.Shuffle(len(tableCopy), func(i, j int) { tableCopy[i], tableCopy[j] = tableCopy[j], tableCopy[i] })
	r.deck.Table = tableCopy

	r.Stage = StageVoting
	for _, g := range r.guessers(storyteller) {
		r.sendTo(g.Name, ServerMessage{BeginVoting: &BeginVotingMsg{
			CenterCards:     append([]string(nil), tableCopy...),
			Description:     r.deck.Description,
			DisabledCards:   append([]string(nil), r.deck.Nominations[g.Name]...),
			VotesPerGuesser: r.Config.VotesPerGuesser,
		}})
	}
	r.emitRoomState()
}

func (r *Room) finishRound() {
	storyteller := r.currentStoryteller()
	complement := r.Config.StorytellerLossComplement
	if guesserCount := len(r.deck.Votes); complement > guesserCount {
		complement = guesserCount
	}

	result := computeResults(storyteller, r.deck.ClueCard, r.deck.Nominations, r.deck.Votes, r.Config.VotesPerGuesser, complement, r.Config)

	for name, delta := range result.PointChange {
		if m := r.members[name]; m != nil {
			m.Score += delta
		}
	}

	activeCard := r.deck.ClueCard
	playerToCards := make(map[string][]string, len(r.deck.Nominations))
	for name, cards := range r.deck.Nominations {
		playerToCards[name] = append([]string(nil), cards...)
	}
	playerToVotes := make(map[string][]string, len(r.deck.Votes))
	for name, votes := range r.deck.Votes {
		playerToVotes[name] = append([]string(nil), votes...)
	}

	r.deck.discardRound()
	r.RoundNumber++
	r.activeStorytellerName = ""

	r.Stage = StageResults
	r.broadcast(ServerMessage{Results: &ResultsMsg{
		PlayerToCurrentCards: playerToCards,
		PlayerToVotes:        playerToVotes,
		ActiveCard:           activeCard,
		PointChange:          result.PointChange,
	}})

	if r.checkWinCondition() {
		r.Stage = StageEnd
		r.broadcast(ServerMessage{EndGame: &struct{}{}})
		return
	}
	r.emitRoomState()
}

// checkWinCondition evaluates points/cycles win conditions after payout.
// cards_finish is checked at the next round's start (beginRound), not
// here, per §4.D.2 step 1.
func (r *Room) checkWinCondition() bool {
	switch r.Config.WinCondition {
	case WinPoints:
		for _, m := range r.activePlayers() {
			if m.Score >= r.Config.TargetPoints {
				return true
			}
		}
	case WinCycles:
		// Per SPEC_FULL.md §E.1: active_count is recomputed live at the
		// moment the win check runs, not frozen at game start.
		liveActive := len(r.activePlayers())
		if liveActive > 0 && r.RoundNumber >= r.Config.TargetCycles*liveActive {
			return true
		}
	}
	return false
}

// privateStateFor returns the stage-specific private message a reconnecting
// member needs to recover playable state, mirroring what they would have
// been sent had they never disconnected: their hand as storyteller, their
// hand and the active clue while nominating, or the center cards and their
// own disabled nominations while voting. Returns nil when the current
// stage carries no private state to resend (Joining, Paused, Results, End).
func (r *Room) privateStateFor(name string) *ServerMessage {
	switch r.Stage {
	case StageActiveChooses:
		if r.currentStoryteller() == name {
			return &ServerMessage{StartRound: &StartRoundMsg{Hand: append([]string(nil), r.deck.Hands[name]...)}}
		}
	case StagePlayersChoose:
		if m := r.members[name]; m != nil && m.Kind == KindPlayer && name != r.currentStoryteller() {
			return &ServerMessage{PlayersChoose: &PlayersChooseMsg{
				Hand:        append([]string(nil), r.deck.Hands[name]...),
				Description: r.deck.Description,
			}}
		}
	case StageVoting:
		if m := r.members[name]; m != nil && m.Kind == KindPlayer && name != r.currentStoryteller() {
			return &ServerMessage{BeginVoting: &BeginVotingMsg{
				CenterCards:     append([]string(nil), r.deck.Table...),
				Description:     r.deck.Description,
				DisabledCards:   append([]string(nil), r.deck.Nominations[name]...),
				VotesPerGuesser: r.Config.VotesPerGuesser,
			}}
		}
	}
	return nil
}

func (r *Room) emitRoomState() {
	msg := r.snapshot()
	r.broadcast(ServerMessage{RoomState: &msg})
}

func (r *Room) snapshot() RoomStateMsg {
	members := make([]MemberView, 0, len(r.members))
	names := append([]string(nil), r.joinOrder...)
	sort.Strings(names) // deterministic ordering independent of map iteration
	for _, name := range names {
		m := r.members[name]
		members = append(members, MemberView{
			Name:      m.Name,
			Kind:      m.Kind.String(),
			Connected: m.Connected,
			Points:    m.Score,
			Ready:     m.Ready,
			Moderator: r.moderators[m.Name],
		})
	}
	return RoomStateMsg{
		RoomID:          r.Code,
		Stage:           r.Stage.String(),
		PausedReason:    r.PausedReason,
		Creator:         r.CreatorName,
		Members:         members,
		ActivePlayer:    r.currentStoryteller(),
		RoundNumber:     r.RoundNumber,
		DeckRefillCount: r.deck.RefillCount,
		Config: ConfigView{
			WinCondition:              string(r.Config.WinCondition),
			VotesPerGuesser:           r.Config.VotesPerGuesser,
			NominationsPerGuesser:     r.Config.NominationsPerGuesser,
			CardsPerHand:              r.Config.CardsPerHand,
			StorytellerLossComplement: r.Config.StorytellerLossComplement,
			TargetPoints:              r.Config.TargetPoints,
			TargetCycles:              r.Config.TargetCycles,
			AllowMidgameJoin:          r.Config.AllowMidgameJoin,
			HasPassword:               r.Config.Password != "",
		},
	}
}

func hasDuplicates(ss []string) bool {
	seen := make(map[string]bool, len(ss))
	for _, s := range ss {
		if seen[s] {
			return true
		}
		seen[s] = true
	}
	return false
}

func containsString(ss []string, target string) bool {
	for _, s := range ss {
		if s == target {
			return true
		}
	}
	return false
}
