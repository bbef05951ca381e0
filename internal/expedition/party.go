package expedition

import (
	"fmt"
	"time"
)

// MemberStats is the authoritative hearts/stamina of a character at the
// moment a run starts.
type MemberStats struct {
	Name    string
	Icon    string
	Hearts  int
	Stamina int
}

func (p *Party) transition(to PartyStatus) error {
	if !p.Status.CanTransition(to) {
		return E(CodeInvalidTransition, fmt.Sprintf("party cannot go from %s to %s", p.Status, to))
	}
	p.Status = to
	return nil
}

func (p *Party) requireOpen() error {
	if p.Status != StatusOpen {
		return E(CodePartyNotOpen, "this expedition has already "+statusVerb(p.Status))
	}
	return nil
}

func (p *Party) requireStarted() error {
	if p.Status != StatusStarted {
		return E(CodePartyNotStarted, "this expedition is not underway")
	}
	return nil
}

func statusVerb(s PartyStatus) string {
	switch s {
	case StatusStarted:
		return "started"
	case StatusCompleted:
		return "ended"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "been cancelled"
	}
	return "changed"
}

// CanAdd reports why userID could not join p right now, or nil.
func (p *Party) CanAdd(userID string) error {
	if err := p.requireOpen(); err != nil {
		return err
	}
	if p.MemberIndex(userID) >= 0 {
		return E(CodeAlreadyJoined, "you already have a character in this expedition")
	}
	if len(p.Characters) >= MaxMembers {
		return E(CodePartyFull, "this expedition is full")
	}
	return nil
}

// AddMember appends m to an open party and adds its stats to the totals.
func (p *Party) AddMember(m PartyMember) error {
	if err := p.CanAdd(m.UserID); err != nil {
		return err
	}
	if len(m.Items) > MaxLoadout {
		return E(CodeTooManyItems, fmt.Sprintf("you can bring at most %d items", MaxLoadout))
	}
	if m.Items == nil {
		m.Items = []LoadoutItem{}
	}
	p.Characters = append(p.Characters, m)
	p.TotalHearts += m.CurrentHearts
	p.TotalStamina += m.CurrentStamina
	if p.LeaderID == "" {
		p.LeaderID = m.UserID
	}
	return nil
}

// ReplaceItems swaps the loadout of userID's member and returns the previous one.
func (p *Party) ReplaceItems(userID string, items []LoadoutItem) ([]LoadoutItem, error) {
	if err := p.requireOpen(); err != nil {
		return nil, err
	}
	if len(items) > MaxLoadout {
		return nil, E(CodeTooManyItems, fmt.Sprintf("you can bring at most %d items", MaxLoadout))
	}
	i := p.MemberIndex(userID)
	if i < 0 {
		return nil, E(CodeNotMember, "you are not in this expedition")
	}
	prev := p.Characters[i].Items
	if items == nil {
		items = []LoadoutItem{}
	}
	p.Characters[i].Items = items
	return prev, nil
}

// RemoveMember drops userID's member from an open party, keeping the totals,
// the turn pointer and leadership consistent. The removed member is returned
// so its loadout can be refunded.
func (p *Party) RemoveMember(userID string) (PartyMember, error) {
	if err := p.requireOpen(); err != nil {
		return PartyMember{}, err
	}
	idx := p.MemberIndex(userID)
	if idx < 0 {
		return PartyMember{}, E(CodeNotMember, "that player is not in this expedition")
	}
	removed := p.Characters[idx]

	p.TotalHearts -= removed.CurrentHearts
	p.TotalStamina -= removed.CurrentStamina
	p.Characters = append(p.Characters[:idx:idx], p.Characters[idx+1:]...)

	n := len(p.Characters)
	switch {
	case idx < p.CurrentTurn:
		p.CurrentTurn--
	case idx == p.CurrentTurn && p.CurrentTurn > n-1:
		p.CurrentTurn = n - 1
	}
	p.CurrentTurn = clampTurn(p.CurrentTurn, n)

	if removed.UserID == p.LeaderID {
		if n == 0 {
			p.LeaderID = ""
		} else {
			// The member that followed the old leader, wrapping to the front.
			p.LeaderID = p.Characters[idx%n].UserID
		}
	}
	return removed, nil
}

func clampTurn(turn, n int) int {
	if n == 0 || turn < 0 {
		return 0
	}
	if turn > n-1 {
		return n - 1
	}
	return turn
}

// Start moves an open party into its turn loop. stats holds the
// authoritative per-character values keyed by character id; members missing
// from stats keep their join-time snapshot.
func (p *Party) Start(callerID string, stats map[string]MemberStats) error {
	if err := p.requireOpen(); err != nil {
		return err
	}
	if callerID != p.LeaderID {
		return E(CodeNotLeader, "only the party leader can start the expedition")
	}
	if len(p.Characters) == 0 {
		return E(CodePartyEmpty, "an expedition needs at least one member")
	}
	if err := p.transition(StatusStarted); err != nil {
		return err
	}
	for i := range p.Characters {
		s, ok := stats[p.Characters[i].CharacterID]
		if !ok {
			continue
		}
		p.Characters[i].CurrentHearts = s.Hearts
		p.Characters[i].CurrentStamina = s.Stamina
		if s.Name != "" {
			p.Characters[i].Name = s.Name
		}
		if s.Icon != "" {
			p.Characters[i].Icon = s.Icon
		}
	}
	p.RecomputeTotals()
	p.CurrentTurn = clampTurn(p.CurrentTurn, len(p.Characters))
	p.MarkVisited(QuadrantRef{Square: p.Square, Quadrant: p.Quadrant})
	return nil
}

// Cancel abandons an open party. Every member is removed and returned for
// refunds.
func (p *Party) Cancel(callerID string, now time.Time) ([]PartyMember, error) {
	if callerID != p.LeaderID {
		return nil, E(CodeNotLeader, "only the party leader can cancel the expedition")
	}
	if err := p.transition(StatusCancelled); err != nil {
		return nil, err
	}
	return p.disband(now), nil
}

// Expire cancels an open party that outlived ttl. It reports false, and
// leaves p untouched, for any other party.
func (p *Party) Expire(now time.Time, ttl time.Duration) ([]PartyMember, bool) {
	if !p.Expired(now, ttl) || p.transition(StatusCancelled) != nil {
		return nil, false
	}
	removed := p.disband(now)
	p.ExpiredAt = p.EndedAt
	return removed, true
}

// disband empties the party and returns the members it had.
func (p *Party) disband(now time.Time) []PartyMember {
	removed := p.Characters
	p.Characters = []PartyMember{}
	p.TotalHearts, p.TotalStamina, p.CurrentTurn = 0, 0, 0
	ended := now.UTC()
	p.EndedAt = &ended
	return removed
}

// Explore moves a started party onto ref and records it as visited and
// explored during this run.
func (p *Party) Explore(userID string, ref QuadrantRef, now time.Time) error {
	if err := p.requireStarted(); err != nil {
		return err
	}
	m, ok := p.Member(userID)
	if !ok {
		return E(CodeNotMember, "you are not in this expedition")
	}
	p.Square = ref.Square
	p.Quadrant = ref.Quadrant
	p.QuadrantState = QuadrantExplored
	p.MarkVisited(ref)
	p.MarkExplored(ref)
	p.Log(TurnEvent{
		At:            now.UTC(),
		CharacterName: m.Name,
		Outcome:       "explored",
		Message:       fmt.Sprintf("%s explored %s %s.", m.Name, ref.Square, ref.Quadrant),
	})
	return nil
}

// Finish closes a started run with the given outcome.
func (p *Party) Finish(callerID string, outcome Outcome, now time.Time) error {
	if callerID != p.LeaderID {
		return E(CodeNotLeader, "only the party leader can end the expedition")
	}
	if err := p.requireStarted(); err != nil {
		return err
	}
	var to PartyStatus
	switch outcome {
	case OutcomeSuccess:
		to = StatusCompleted
	case OutcomeFailed:
		to = StatusFailed
	default:
		return E(CodeOutcomeInvalid, fmt.Sprintf("%q is not an expedition outcome", outcome))
	}
	if err := p.transition(to); err != nil {
		return err
	}
	p.Outcome = outcome
	loc := p.Location()
	p.FinalLocation = &loc
	ended := now.UTC()
	p.EndedAt = &ended

	msg := "The expedition returned home."
	if outcome == OutcomeFailed {
		msg = "The expedition failed."
	}
	p.Log(TurnEvent{At: ended, Outcome: string(outcome), Message: msg})
	return nil
}

// RecomputeTotals resets the aggregate hearts/stamina from the members.
func (p *Party) RecomputeTotals() {
	p.TotalHearts, p.TotalStamina = 0, 0
	for _, m := range p.Characters {
		p.TotalHearts += m.CurrentHearts
		p.TotalStamina += m.CurrentStamina
	}
}

// TotalsConsistent reports whether the aggregates equal the member sums.
func (p *Party) TotalsConsistent() bool {
	h, s := 0, 0
	for _, m := range p.Characters {
		h += m.CurrentHearts
		s += m.CurrentStamina
	}
	return h == p.TotalHearts && s == p.TotalStamina
}
