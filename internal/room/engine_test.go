package room

import (
	"fmt"
	"testing"

	apperrors "github.com/wyattkrebs/talespin-server/internal/errors"
)

type fakeSink struct {
	broadcasts []ServerMessage
	sentTo     map[string][]ServerMessage
	closed     map[string][]ServerMessage
}

func newFakeSink() *fakeSink {
	return &fakeSink{sentTo: map[string][]ServerMessage{}, closed: map[string][]ServerMessage{}}
}

func (f *fakeSink) Broadcast(roomCode string, msg ServerMessage) {
	f.broadcasts = append(f.broadcasts, msg)
}
func (f *fakeSink) SendTo(roomCode, member string, msg ServerMessage) {
	f.sentTo[member] = append(f.sentTo[member], msg)
}
func (f *fakeSink) CloseMember(roomCode, member string, msg ServerMessage) {
	f.closed[member] = append(f.closed[member], msg)
}

func (f *fakeSink) lastResults() *ResultsMsg {
	for i := len(f.broadcasts) - 1; i >= 0; i-- {
		if f.broadcasts[i].Results != nil {
			return f.broadcasts[i].Results
		}
	}
	return nil
}

type fakeRegistrar struct{ ids []string }

func (f fakeRegistrar) IDs() []string { return f.ids }

func cardIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("c%d", i)
	}
	return ids
}

func newTestRoom(t *testing.T, cardCount int) (*Room, *fakeSink) {
	t.Helper()
	sink := newFakeSink()
	r := New("ABCD", "alice", "tok-alice", WinPoints, "", 10, fakeRegistrar{cardIDs(cardCount)}, sink)
	if err := r.Join("bob", "tok-bob", ""); err != nil {
		t.Fatalf("join bob: %v", err)
	}
	if err := r.Join("carol", "tok-carol", ""); err != nil {
		t.Fatalf("join carol: %v", err)
	}
	return r, sink
}

func playRoundToVoting(t *testing.T, r *Room) (storyteller string, guesserOf map[string]string) {
	t.Helper()
	if err := r.StartGame("alice"); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	storyteller = r.currentStoryteller()
	clue := r.deck.Hands[storyteller][0]
	if err := r.ActivePlayerChooseCard(storyteller, clue, "a mysterious clue"); err != nil {
		t.Fatalf("ActivePlayerChooseCard: %v", err)
	}

	guesserOf = map[string]string{}
	for _, m := range r.guessers(storyteller) {
		hand := r.deck.Hands[m.Name]
		card := hand[0]
		guesserOf[m.Name] = card
		if err := r.PlayerChooseCards(m.Name, []string{card}); err != nil {
			t.Fatalf("PlayerChooseCards(%s): %v", m.Name, err)
		}
	}
	if r.Stage != StageVoting {
		t.Fatalf("expected Voting stage after all nominations, got %s", r.Stage)
	}
	return storyteller, guesserOf
}

func TestBasicRoundScoring_AllCorrectCausesStorytellerLoss(t *testing.T) {
	r, sink := newTestRoom(t, 40)
	storyteller, _ := playRoundToVoting(t, r)
	clue := r.deck.ClueCard

	for _, m := range r.guessers(storyteller) {
		if err := r.SubmitVotes(m.Name, []string{clue}); err != nil {
			t.Fatalf("SubmitVotes(%s): %v", m.Name, err)
		}
	}

	res := sink.lastResults()
	if res == nil {
		t.Fatal("expected a Results broadcast")
	}
	if res.PointChange[storyteller] != 0 {
		t.Errorf("storyteller point change = %d, want 0 (loss)", res.PointChange[storyteller])
	}
	for name, delta := range res.PointChange {
		if name == storyteller {
			continue
		}
		if delta != 2 {
			t.Errorf("guesser %s point change = %d, want 2", name, delta)
		}
	}
	if r.Stage != StageResults {
		t.Fatalf("expected Results stage, got %s", r.Stage)
	}
}

func TestBasicRoundScoring_MixedGuessesStorytellerWins(t *testing.T) {
	r, sink := newTestRoom(t, 40)
	storyteller, guesserOf := playRoundToVoting(t, r)
	clue := r.deck.ClueCard

	// bob guesses correctly; carol votes for bob's nomination (guaranteed
	// not to be her own card, so it never trips the vote-on-own-card rule).
	if err := r.SubmitVotes("bob", []string{clue}); err != nil {
		t.Fatalf("SubmitVotes(bob): %v", err)
	}
	if err := r.SubmitVotes("carol", []string{guesserOf["bob"]}); err != nil {
		t.Fatalf("SubmitVotes(carol): %v", err)
	}

	res := sink.lastResults()
	if res == nil {
		t.Fatal("expected a Results broadcast")
	}
	if res.PointChange[storyteller] != 3 {
		t.Errorf("storyteller point change = %d, want 3 (win)", res.PointChange[storyteller])
	}
}

func TestDeckRefillCountIncrementsOncePerTopUp(t *testing.T) {
	// 30 cards: the first deal (18 cards) consumes exactly one refill from
	// the empty starting pile, leaving 12 cards in reserve for a second
	// top-up once round one's discards eat into the hands.
	r, _ := newTestRoom(t, 30)
	if err := r.StartGame("alice"); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	if r.deck.RefillCount != 1 {
		t.Fatalf("RefillCount after the initial deal = %d, want 1", r.deck.RefillCount)
	}

	storyteller := r.currentStoryteller()
	clue := r.deck.Hands[storyteller][0]
	if err := r.ActivePlayerChooseCard(storyteller, clue, "clue"); err != nil {
		t.Fatalf("ActivePlayerChooseCard: %v", err)
	}
	for _, m := range r.guessers(storyteller) {
		if err := r.PlayerChooseCards(m.Name, []string{r.deck.Hands[m.Name][0]}); err != nil {
			t.Fatalf("PlayerChooseCards: %v", err)
		}
	}
	for _, m := range r.guessers(storyteller) {
		if err := r.SubmitVotes(m.Name, []string{r.deck.ClueCard}); err != nil {
			t.Fatalf("SubmitVotes: %v", err)
		}
	}
	if r.Stage != StageResults {
		t.Fatalf("expected Results, got %s", r.Stage)
	}
	for _, m := range r.activePlayers() {
		if err := r.Ready(m.Name); err != nil {
			t.Fatalf("Ready(%s): %v", m.Name, err)
		}
	}
	if r.Stage != StageActiveChooses {
		t.Fatalf("expected next round to start, got %s", r.Stage)
	}
	if r.deck.RefillCount != 2 {
		t.Errorf("RefillCount = %d, want 2 after a second top-up", r.deck.RefillCount)
	}
}

func TestMidgameJoinDuringAtomicPhaseBecomesObserverThenPromotes(t *testing.T) {
	r, _ := newTestRoom(t, 40)
	if err := r.StartGame("alice"); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	if err := r.Join("dave", "tok-dave", ""); err != nil {
		t.Fatalf("Join(dave): %v", err)
	}
	dave := r.members["dave"]
	if dave.Kind != KindObserver || !dave.AutoJoinNextRound {
		t.Fatalf("expected dave to join as an auto-joining observer, got kind=%v auto=%v", dave.Kind, dave.AutoJoinNextRound)
	}

	storyteller := r.currentStoryteller()
	clue := r.deck.Hands[storyteller][0]
	if err := r.ActivePlayerChooseCard(storyteller, clue, "clue"); err != nil {
		t.Fatalf("ActivePlayerChooseCard: %v", err)
	}
	for _, m := range r.guessers(storyteller) {
		if err := r.PlayerChooseCards(m.Name, []string{r.deck.Hands[m.Name][0]}); err != nil {
			t.Fatalf("PlayerChooseCards: %v", err)
		}
	}
	for _, m := range r.guessers(storyteller) {
		if err := r.SubmitVotes(m.Name, []string{r.deck.ClueCard}); err != nil {
			t.Fatalf("SubmitVotes: %v", err)
		}
	}
	for _, m := range r.activePlayers() {
		if err := r.Ready(m.Name); err != nil {
			t.Fatalf("Ready(%s): %v", m.Name, err)
		}
	}

	if dave.Kind != KindPlayer {
		t.Errorf("expected dave to be promoted to player for the new round, got %v", dave.Kind)
	}
	if len(r.deck.Hands["dave"]) != r.Config.CardsPerHand {
		t.Errorf("expected dave to be dealt a full hand, got %d cards", len(r.deck.Hands["dave"]))
	}
}

func TestReconnectWithSameTokenSucceeds(t *testing.T) {
	r, _ := newTestRoom(t, 40)
	r.Disconnect("bob")

	if err := r.Join("bob", "tok-bob", ""); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if !r.members["bob"].Connected {
		t.Error("expected bob to be marked connected again")
	}
}

func TestDisconnectRetainsMembershipHandAndScore(t *testing.T) {
	r, _ := newTestRoom(t, 40)
	r.members["bob"].Score = 5
	handBefore := append([]string(nil), r.deck.Hands["bob"]...)

	r.Disconnect("bob")

	m := r.members["bob"]
	if m == nil {
		t.Fatal("expected bob to remain a member after disconnect")
	}
	if m.Connected {
		t.Error("expected bob to be marked disconnected")
	}
	if m.Score != 5 {
		t.Errorf("expected score to survive disconnect, got %d", m.Score)
	}
	if len(r.activePlayers()) != 3 {
		t.Errorf("expected disconnect to keep active player count unchanged, got %d", len(r.activePlayers()))
	}

	if err := r.Join("bob", "tok-bob", ""); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if got := r.deck.Hands["bob"]; fmt.Sprint(got) != fmt.Sprint(handBefore) {
		t.Errorf("expected hand to survive disconnect+reconnect, got %v want %v", got, handBefore)
	}
}

var testMemberTokens = map[string]string{"alice": "tok-alice", "bob": "tok-bob", "carol": "tok-carol"}

func TestReconnectAsStorytellerDuringActiveChoosesResendsHand(t *testing.T) {
	r, sink := newTestRoom(t, 40)
	if err := r.StartGame("alice"); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	storyteller := r.currentStoryteller()

	r.Disconnect(storyteller)
	before := len(sink.sentTo[storyteller])
	if err := r.Join(storyteller, testMemberTokens[storyteller], ""); err != nil {
		t.Fatalf("reconnect Join(%s): %v", storyteller, err)
	}

	var got *StartRoundMsg
	for _, m := range sink.sentTo[storyteller][before:] {
		if m.StartRound != nil {
			got = m.StartRound
		}
	}
	if got == nil {
		t.Fatalf("expected reconnect to resend StartRound to storyteller %s", storyteller)
	}
	if len(got.Hand) != len(r.deck.Hands[storyteller]) {
		t.Errorf("resent hand length = %d, want %d", len(got.Hand), len(r.deck.Hands[storyteller]))
	}
}

func TestReconnectDuringPlayersChooseResendsHandAndDescription(t *testing.T) {
	r, sink := newTestRoom(t, 40)
	if err := r.StartGame("alice"); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	storyteller := r.currentStoryteller()
	clue := r.deck.Hands[storyteller][0]
	if err := r.ActivePlayerChooseCard(storyteller, clue, "a mysterious clue"); err != nil {
		t.Fatalf("ActivePlayerChooseCard: %v", err)
	}
	guesser := r.guessers(storyteller)[0].Name

	r.Disconnect(guesser)
	before := len(sink.sentTo[guesser])
	if err := r.Join(guesser, testMemberTokens[guesser], ""); err != nil {
		t.Fatalf("reconnect Join(%s): %v", guesser, err)
	}

	var got *PlayersChooseMsg
	for _, m := range sink.sentTo[guesser][before:] {
		if m.PlayersChoose != nil {
			got = m.PlayersChoose
		}
	}
	if got == nil {
		t.Fatalf("expected reconnect to resend PlayersChoose to %s", guesser)
	}
	if got.Description != "a mysterious clue" {
		t.Errorf("resent description = %q, want %q", got.Description, "a mysterious clue")
	}
	if fmt.Sprint(got.Hand) != fmt.Sprint(r.deck.Hands[guesser]) {
		t.Errorf("resent hand = %v, want %v", got.Hand, r.deck.Hands[guesser])
	}
}

func TestReconnectDuringVotingResendsCenterCardsAndDisabledOwnNominations(t *testing.T) {
	r, sink := newTestRoom(t, 40)
	_, guesserOf := playRoundToVoting(t, r)
	var guesser string
	for name := range guesserOf {
		guesser = name
		break
	}

	r.Disconnect(guesser)
	before := len(sink.sentTo[guesser])
	if err := r.Join(guesser, testMemberTokens[guesser], ""); err != nil {
		t.Fatalf("reconnect Join(%s): %v", guesser, err)
	}

	var got *BeginVotingMsg
	for _, m := range sink.sentTo[guesser][before:] {
		if m.BeginVoting != nil {
			got = m.BeginVoting
		}
	}
	if got == nil {
		t.Fatalf("expected reconnect to resend BeginVoting to %s", guesser)
	}
	if len(got.CenterCards) != len(r.deck.Table) {
		t.Errorf("resent center cards = %v, want length %d", got.CenterCards, len(r.deck.Table))
	}
	if len(got.DisabledCards) != 1 || got.DisabledCards[0] != guesserOf[guesser] {
		t.Errorf("resent disabled cards = %v, want [%s]", got.DisabledCards, guesserOf[guesser])
	}
}

func TestReconnectBeforeGameStartsSendsNoPrivateState(t *testing.T) {
	r, sink := newTestRoom(t, 40)
	r.Disconnect("bob")
	before := len(sink.sentTo["bob"])
	if err := r.Join("bob", "tok-bob", ""); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	for _, m := range sink.sentTo["bob"][before:] {
		if m.StartRound != nil || m.PlayersChoose != nil || m.BeginVoting != nil {
			t.Errorf("expected no private stage message before the game starts, got %+v", m)
		}
	}
}

func TestJoinWithSameNameDifferentTokenFails(t *testing.T) {
	r, _ := newTestRoom(t, 40)
	err := r.Join("bob", "wrong-token", "")
	if err == nil || err.Kind != apperrors.ErrNameAlreadyTaken {
		t.Fatalf("expected NameAlreadyTaken, got %v", err)
	}
}

// playFullRound advances a room already in ActiveChooses through a
// complete round: a clue, one nomination per guesser, every guesser voting
// for the actual clue card (always safe, since nobody nominates the clue
// card itself), and every active player readying up for the next round.
func playFullRound(t *testing.T, r *Room) {
	t.Helper()
	storyteller := r.currentStoryteller()
	clue := r.deck.Hands[storyteller][0]
	if err := r.ActivePlayerChooseCard(storyteller, clue, "clue"); err != nil {
		t.Fatalf("ActivePlayerChooseCard: %v", err)
	}
	for _, m := range r.guessers(storyteller) {
		if err := r.PlayerChooseCards(m.Name, []string{r.deck.Hands[m.Name][0]}); err != nil {
			t.Fatalf("PlayerChooseCards(%s): %v", m.Name, err)
		}
	}
	for _, m := range r.guessers(storyteller) {
		if err := r.SubmitVotes(m.Name, []string{r.deck.ClueCard}); err != nil {
			t.Fatalf("SubmitVotes(%s): %v", m.Name, err)
		}
	}
	for _, m := range r.activePlayers() {
		if err := r.Ready(m.Name); err != nil {
			t.Fatalf("Ready(%s): %v", m.Name, err)
		}
	}
}

func TestCardsFinishSeedsFullDeckAndEndsOnlyWhenPileCannotTopHands(t *testing.T) {
	sink := newFakeSink()
	r := New("ABCD", "alice", "tok-alice", WinCardsFinish, "", 10, fakeRegistrar{cardIDs(21)}, sink)
	if err := r.Join("bob", "tok-bob", ""); err != nil {
		t.Fatalf("join bob: %v", err)
	}
	if err := r.Join("carol", "tok-carol", ""); err != nil {
		t.Fatalf("join carol: %v", err)
	}

	if err := r.StartGame("alice"); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	if r.Stage != StageActiveChooses {
		t.Fatalf("expected the first round to deal from the freshly seeded deck, got stage %s", r.Stage)
	}
	// 21 registry cards, 3 players * 6 cards per hand dealt from the seed.
	if len(r.deck.DrawPile) != 21-18 {
		t.Fatalf("DrawPile = %d after initial deal, want %d", len(r.deck.DrawPile), 21-18)
	}

	// Round 1: each player plays exactly one card (their nomination or the
	// clue), so round 2 needs exactly 3 cards to top every hand back up —
	// precisely what remains in the pile.
	playFullRound(t, r)
	if r.Stage != StageActiveChooses {
		t.Fatalf("expected round 2 to begin normally, got stage %s", r.Stage)
	}
	if len(r.deck.DrawPile) != 0 {
		t.Fatalf("DrawPile = %d after round 2's deal, want 0", len(r.deck.DrawPile))
	}

	// Round 2 empties the pile with no reserve left; round 3 cannot deal
	// and the cards_finish condition must end the game here, never sooner.
	playFullRound(t, r)
	if r.Stage != StageEnd {
		t.Fatalf("expected cards_finish to end the game once the pile can't top every hand, got stage %s", r.Stage)
	}
	if sink.lastResults() == nil {
		t.Error("expected round 2's Results to have broadcast before EndGame")
	}
}
