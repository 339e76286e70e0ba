package game

import (
	"fmt"
	"sort"
	"strings"
)

// VoteRule decides whether the herd identified the chameleon.
type VoteRule string

const (
	// RuleMajority: the herd wins when the chameleon receives strictly more
	// than half of the votes cast. Ties go to the chameleon.
	RuleMajority VoteRule = "majority"
	// RuleUnanimous: the herd wins only when every vote names the chameleon.
	RuleUnanimous VoteRule = "unanimous"
)

// ParseVoteRule accepts "majority" or "unanimous". Empty means majority.
func ParseVoteRule(s string) (VoteRule, error) {
	switch VoteRule(strings.ToLower(strings.TrimSpace(s))) {
	case "", RuleMajority:
		return RuleMajority, nil
	case RuleUnanimous:
		return RuleUnanimous, nil
	}
	return "", fmt.Errorf("game: unknown vote rule %q", s)
}

// Tally counts votes per accused name. Names are matched exactly.
type Tally map[string]int

// Count tallies votes.
func Count(votes []Vote) Tally {
	t := make(Tally, len(votes))
	for _, v := range votes {
		t[v.Accused]++
	}
	return t
}

// Total returns the number of votes cast.
func (t Tally) Total() int {
	n := 0
	for _, c := range t {
		n += c
	}
	return n
}

// String lists counts by descending votes, then name.
func (t Tally) String() string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if t[names[i]] != t[names[j]] {
			return t[names[i]] > t[names[j]]
		}
		return names[i] < names[j]
	})
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%d", name, t[name])
	}
	return strings.Join(parts, ", ")
}

// Decide returns the winner under rule given the chameleon's name.
func Decide(rule VoteRule, t Tally, chameleon string) Winner {
	caught, total := t[chameleon], t.Total()
	if total == 0 {
		return WinnerChameleon
	}
	var herdWins bool
	switch rule {
	case RuleUnanimous:
		herdWins = caught == total
	default:
		herdWins = caught*2 > total
	}
	if herdWins {
		return WinnerHerd
	}
	return WinnerChameleon
}

// guessMatches compares an animal guess case-insensitively.
func guessMatches(guess, animal string) bool {
	return strings.EqualFold(strings.TrimSpace(guess), animal)
}
