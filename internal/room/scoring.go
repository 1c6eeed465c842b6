package room

// ScoreResult is the outcome of one round's payout: per-member point
// deltas plus the classification flags a caller needs to log or test
// against (storyteller-loss, threshold-correct-loss).
type ScoreResult struct {
	PointChange          map[string]int
	StorytellerLoss      bool
	ThresholdCorrectLoss bool
	RightGuessers        int
	WrongGuessers        int
}

// computeResults implements §4.D.3's scoring algorithm. nominations maps
// each guesser to the cards they nominated this round; votes maps each
// guesser to the vote tokens they cast (length votesPerGuesser, may
// repeat a card per the vote-stacking open-question decision recorded in
// SPEC_FULL.md §E.2). complement is the storyteller-loss complement C,
// already clamped to [0, len(votes)] by the caller.
func computeResults(storyteller, clueCard string, nominations, votes map[string][]string, votesPerGuesser, complement int, cfg Config) ScoreResult {
	guessers := make([]string, 0, len(votes))
	for g := range votes {
		guessers = append(guessers, g)
	}

	guesserCount := len(guessers)
	threshold := guesserCount - complement

	rightTokens := make(map[string]int, guesserCount)
	for _, g := range guessers {
		right := 0
		for _, v := range votes[g] {
			if v == clueCard {
				right++
			}
		}
		rightTokens[g] = right
	}

	rightGuessers, wrongGuessers := 0, 0
	for _, g := range guessers {
		right := rightTokens[g]
		wrong := votesPerGuesser - right
		if right >= 1 {
			rightGuessers++
		}
		if wrong >= 1 {
			wrongGuessers++
		}
	}

	storytellerLoss := rightGuessers >= threshold || wrongGuessers >= threshold
	thresholdCorrectLoss := storytellerLoss && rightGuessers >= threshold

	change := make(map[string]int, guesserCount+1)

	if storytellerLoss {
		change[storyteller] = 0
	} else {
		change[storyteller] = 3
	}

	for _, g := range guessers {
		right := rightTokens[g]

		var base int
		switch {
		case storytellerLoss && thresholdCorrectLoss && cfg.BonusCorrectGuessOnThresholdCorrectLoss && right >= 1:
			base = 3
		case storytellerLoss:
			base = 2
		case right >= 1:
			base = 3
		default:
			base = 0
		}

		bonus := 0
		if cfg.BonusDoubleCorrect && right >= 2 {
			allowed := true
			if thresholdCorrectLoss && !cfg.BonusDoubleVoteOnThresholdCorrectLoss {
				allowed = false
			}
			if allowed {
				bonus++
			}
		}

		change[g] = base + bonus
	}

	if cfg.BonusDecoy {
		for guesser, nominated := range nominations {
			if _, ok := change[guesser]; !ok {
				// Storyteller's own nominations (there are none) or a
				// non-voting member; decoy bonus only applies to guessers
				// who are part of this round's payout.
				continue
			}
			decoyVotes := 0
			for _, card := range nominated {
				for voter, voterVotes := range votes {
					if voter == guesser {
						continue
					}
					for _, v := range voterVotes {
						if v == card {
							decoyVotes++
						}
					}
				}
			}
			if decoyVotes > 3 {
				decoyVotes = 3
			}
			change[guesser] += decoyVotes
		}
	}

	return ScoreResult{
		PointChange:          change,
		StorytellerLoss:      storytellerLoss,
		ThresholdCorrectLoss: thresholdCorrectLoss,
		RightGuessers:        rightGuessers,
		WrongGuessers:        wrongGuessers,
	}
}
