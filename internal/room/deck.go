package room

// inPlay returns the set of card IDs currently held in any hand, on the
// table, or as the clue card — i.e. everything not in the draw pile or
// discard. Refills must draw only from cards outside this set and outside
// the draw pile itself.
func (d *deckState) inPlay() map[string]bool {
	set := make(map[string]bool)
	for _, hand := range d.Hands {
		for _, c := range hand {
			set[c] = true
		}
	}
	if d.ClueCard != "" {
		set[d.ClueCard] = true
	}
	for _, c := range d.Table {
		set[c] = true
	}
	return set
}

// refillPool returns every card ID eligible to (re)join the draw pile:
// the full registry minus whatever is currently in a hand, on the table,
// or already in the pile itself. A discarded card is eligible — refill is
// what recycles the discard pile back into rotation.
func (d *deckState) refillPool(allCardIDs []string) []string {
	taken := d.inPlay()
	for _, c := range d.DrawPile {
		taken[c] = true
	}
	var pool []string
	for _, id := range allCardIDs {
		if !taken[id] {
			pool = append(pool, id)
		}
	}
	return pool
}

// seedFullDeck populates an empty draw pile with every registry card in
// shuffled order. Used once, at a room's very first round, for the
// cards_finish win condition: that condition never refills, so the initial
// full deck is the only reserve the game will ever draw from, and running
// it dry (rather than a lazy top-up) is what ends the game.
func (d *deckState) seedFullDeck(allCardIDs []string, rng randSource) {
	d.DrawPile = append([]string(nil), allCardIDs...)
	rng.Shuffle(len(d.DrawPile), func(i, j int) { d.DrawPile[i], d.DrawPile[j] = d.DrawPile[j], d.DrawPile[i] })
}

// refill tops the draw pile up using registry cards not currently in any
// hand, on the table, or already in the pile — including previously
// discarded cards, which rejoin the pile and are removed from Discard as
// they do, so draw_pile and discard stay disjoint. It increments
// RefillCount exactly once per call that adds any cards, regardless of how
// many, and is a no-op (does not increment) if the pile already has enough.
func (d *deckState) refill(allCardIDs []string, need int) {
	if len(d.DrawPile) >= need {
		return
	}
	pool := d.refillPool(allCardIDs)

	discarded := make(map[string]bool, len(d.Discard))
	for _, c := range d.Discard {
		discarded[c] = true
	}

	var added bool
	for _, id := range pool {
		if len(d.DrawPile) >= need {
			break
		}
		d.DrawPile = append(d.DrawPile, id)
		delete(discarded, id)
		added = true
	}
	if !added {
		return
	}
	if len(discarded) != len(d.Discard) {
		remaining := d.Discard[:0]
		for _, c := range d.Discard {
			if discarded[c] {
				remaining = append(remaining, c)
			}
		}
		d.Discard = remaining
	}
	d.RefillCount++
}

// deal tops up a member's hand to target size by drawing from the pile in
// order, returning the newly dealt cards.
func (d *deckState) deal(member string, target int) []string {
	hand := d.Hands[member]
	var dealt []string
	for len(hand) < target && len(d.DrawPile) > 0 {
		card := d.DrawPile[0]
		d.DrawPile = d.DrawPile[1:]
		hand = append(hand, card)
		dealt = append(dealt, card)
	}
	d.Hands[member] = hand
	return dealt
}

// removeFromHand removes one card from a member's hand, returning whether
// it was present.
func (d *deckState) removeFromHand(member, card string) bool {
	hand := d.Hands[member]
	for i, c := range hand {
		if c == card {
			d.Hands[member] = append(hand[:i], hand[i+1:]...)
			return true
		}
	}
	return false
}

// discardHand moves every card in a member's hand to the discard set,
// used when a member leaves or is kicked.
func (d *deckState) discardHand(member string) {
	d.Discard = append(d.Discard, d.Hands[member]...)
	delete(d.Hands, member)
}

// discardRound moves the clue card, all nominations, and the table to
// discard, and clears round-private state, at the end of a round (either
// after payout or when a round is cancelled). Once voting has begun, Table
// already contains the clue card (see beginVoting), so it is only added
// here separately when a round is cancelled before reaching that point.
func (d *deckState) discardRound() {
	if d.ClueCard != "" && !containsString(d.Table, d.ClueCard) {
		d.Discard = append(d.Discard, d.ClueCard)
	}
	d.Discard = append(d.Discard, d.Table...)
	d.ClueCard = ""
	d.ClueOwner = ""
	d.Description = ""
	d.Nominations = make(map[string][]string)
	d.NominationOwner = make(map[string]string)
	d.Votes = make(map[string][]string)
	d.Table = nil
}
