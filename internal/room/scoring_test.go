package room

import "testing"

func baseScoringConfig() Config {
	return Config{
		BonusDoubleCorrect:                      true,
		BonusDecoy:                              true,
		BonusDoubleVoteOnThresholdCorrectLoss:    false,
		BonusCorrectGuessOnThresholdCorrectLoss:  false,
	}
}

func TestComputeResults_StorytellerWinsOnMixedGuesses(t *testing.T) {
	nominations := map[string][]string{"bob": {"decoyB"}, "carol": {"decoyC"}}
	votes := map[string][]string{
		"bob":   {"clue"},   // correct
		"carol": {"decoyB"}, // wrong
	}
	res := computeResults("alice", "clue", nominations, votes, 1, 0, Config{})

	if res.StorytellerLoss {
		t.Fatal("expected the storyteller to win when guesses are mixed")
	}
	if res.PointChange["alice"] != 3 {
		t.Errorf("storyteller = %d, want 3", res.PointChange["alice"])
	}
	if res.PointChange["bob"] != 3 {
		t.Errorf("correct guesser = %d, want 3", res.PointChange["bob"])
	}
	if res.PointChange["carol"] != 0 {
		t.Errorf("wrong guesser = %d, want 0", res.PointChange["carol"])
	}
}

func TestComputeResults_StorytellerLossWhenEveryoneCorrect(t *testing.T) {
	nominations := map[string][]string{"bob": {"decoyB"}, "carol": {"decoyC"}}
	votes := map[string][]string{
		"bob":   {"clue"},
		"carol": {"clue"},
	}
	res := computeResults("alice", "clue", nominations, votes, 1, 0, Config{})

	if !res.StorytellerLoss {
		t.Fatal("expected storyteller loss when every guesser is correct")
	}
	if res.PointChange["alice"] != 0 {
		t.Errorf("storyteller = %d, want 0", res.PointChange["alice"])
	}
	for _, g := range []string{"bob", "carol"} {
		if res.PointChange[g] != 2 {
			t.Errorf("%s = %d, want 2", g, res.PointChange[g])
		}
	}
}

func TestComputeResults_StorytellerLossWhenNobodyCorrect(t *testing.T) {
	nominations := map[string][]string{"bob": {"decoyB"}, "carol": {"decoyC"}}
	votes := map[string][]string{
		"bob":   {"decoyC"},
		"carol": {"decoyB"},
	}
	res := computeResults("alice", "clue", nominations, votes, 1, 0, baseScoringConfig())

	if !res.StorytellerLoss {
		t.Fatal("expected storyteller loss when nobody finds the clue")
	}
	if res.ThresholdCorrectLoss {
		t.Error("a loss with zero correct guessers is not a threshold-correct loss")
	}
}

func TestComputeResults_DoubleCorrectBonus(t *testing.T) {
	votes := map[string][]string{
		"bob":   {"clue", "clue"},
		"carol": {"decoyC", "decoyC"},
	}
	nominations := map[string][]string{"bob": {"decoyB"}, "carol": {"decoyC"}}
	res := computeResults("alice", "clue", nominations, votes, 2, 0, baseScoringConfig())

	// bob: 2/2 correct votes -> mixed-guess base 3, plus double-correct bonus 1.
	if res.PointChange["bob"] != 4 {
		t.Errorf("bob = %d, want 4 (3 base + 1 double-correct bonus)", res.PointChange["bob"])
	}
}

func TestComputeResults_DecoyBonusCappedAtThreePerGuesser(t *testing.T) {
	nominations := map[string][]string{"bob": {"decoyB"}}
	votes := map[string][]string{
		"bob":   {"clue"},
		"carol": {"decoyB"},
		"dave":  {"decoyB"},
		"erin":  {"decoyB"},
		"frank": {"decoyB"},
	}
	res := computeResults("alice", "clue", nominations, votes, 1, 0, baseScoringConfig())

	// Four other guessers all voted for bob's decoy; the bonus must clamp
	// to 3 rather than paying out 4.
	base := 3 // bob guessed correctly in a storyteller-win round
	want := base + 3
	if res.PointChange["bob"] != want {
		t.Errorf("bob's point change = %d, want %d (base %d + capped decoy bonus 3)", res.PointChange["bob"], want, base)
	}
}
