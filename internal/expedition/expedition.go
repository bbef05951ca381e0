// Package expedition defines the core domain types of a cooperative
// exploration run and the pure state transitions of a party. It performs no
// I/O; storage, inventory and chat collaborators live in other packages.
package expedition

import (
	"time"
)

// MaxMembers is the party size limit while a party is forming.
const MaxMembers = 4

// MaxLoadout is the number of item slots a member may carry into a run.
const MaxLoadout = 3

// DefaultOpenTTL is how long an open party may wait to be started.
const DefaultOpenTTL = 24 * time.Hour

type PartyStatus string

const (
	StatusOpen      PartyStatus = "open"
	StatusStarted   PartyStatus = "started"
	StatusCompleted PartyStatus = "completed"
	StatusFailed    PartyStatus = "failed"
	StatusCancelled PartyStatus = "cancelled"
)

// Terminal reports whether no transition may leave s.
func (s PartyStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// CanTransition reports whether s -> to is an edge of the party lifecycle.
func (s PartyStatus) CanTransition(to PartyStatus) bool {
	switch s {
	case StatusOpen:
		return to == StatusStarted || to == StatusCancelled
	case StatusStarted:
		return to == StatusCompleted || to == StatusFailed
	}
	return false
}

type Outcome string

const (
	OutcomeNone    Outcome = ""
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
)

// LoadoutItem is a copy of a catalog item carried by a party member.
type LoadoutItem struct {
	ItemName         string `json:"itemName"`
	ModifierHearts   int    `json:"modifierHearts"`
	StaminaRecovered int    `json:"staminaRecovered"`
	Emoji            string `json:"emoji,omitempty"`
}

// PartyMember is a snapshot of a character taken when it joined or when the
// run started. It does not follow later changes to the character record.
type PartyMember struct {
	CharacterID    string        `json:"characterId"`
	UserID         string        `json:"userId"`
	Name           string        `json:"name"`
	CurrentHearts  int           `json:"currentHearts"`
	CurrentStamina int           `json:"currentStamina"`
	Icon           string        `json:"icon,omitempty"`
	Items          []LoadoutItem `json:"items"`
}

type Loot struct {
	ItemName string `json:"itemName"`
	Emoji    string `json:"emoji,omitempty"`
}

// TurnEvent is one entry of a party's progress log.
type TurnEvent struct {
	At               time.Time `json:"at"`
	CharacterName    string    `json:"characterName"`
	Outcome          string    `json:"outcome"`
	Message          string    `json:"message"`
	Loot             *Loot     `json:"loot,omitempty"`
	HeartsLost       int       `json:"heartsLost,omitempty"`
	StaminaLost      int       `json:"staminaLost,omitempty"`
	HeartsRecovered  int       `json:"heartsRecovered,omitempty"`
	StaminaRecovered int       `json:"staminaRecovered,omitempty"`
}

// ItemRecord is an item gathered or lost during a run.
type ItemRecord struct {
	CharacterName string `json:"characterName"`
	ItemName      string `json:"itemName"`
	Quantity      int    `json:"quantity"`
	Emoji         string `json:"emoji,omitempty"`
}

// Location is a point on the overworld map.
type Location struct {
	Region   string     `json:"region"`
	Square   string     `json:"square"`
	Quadrant QuadrantID `json:"quadrant"`
}

// Party is one expedition run. Characters holds value copies; the party only
// references external character and inventory records by id.
type Party struct {
	PartyID                  string         `json:"partyId"`
	Status                   PartyStatus    `json:"status"`
	Region                   string         `json:"region"`
	Square                   string         `json:"square"`
	Quadrant                 QuadrantID     `json:"quadrant"`
	QuadrantState            QuadrantStatus `json:"quadrantState"`
	LeaderID                 string         `json:"leaderId"`
	CurrentTurn              int            `json:"currentTurn"`
	TotalHearts              int            `json:"totalHearts"`
	TotalStamina             int            `json:"totalStamina"`
	Characters               []PartyMember  `json:"characters"`
	GatheredItems            []ItemRecord   `json:"gatheredItems"`
	LostItems                []ItemRecord   `json:"lostItems"`
	ProgressLog              []TurnEvent    `json:"progressLog"`
	ExploredQuadrantsThisRun QuadrantSet    `json:"exploredQuadrantsThisRun"`
	VisitedQuadrantsThisRun  QuadrantSet    `json:"visitedQuadrantsThisRun"`
	PathImageUploadedSquares []string       `json:"pathImageUploadedSquares"`
	Outcome                  Outcome        `json:"outcome"`
	FinalLocation            *Location      `json:"finalLocation,omitempty"`
	DiscordThreadID          string         `json:"discordThreadId,omitempty"`
	CreatedAt                time.Time      `json:"createdAt"`
	EndedAt                  *time.Time     `json:"endedAt,omitempty"`
	ExpiredAt                *time.Time     `json:"expiredAt,omitempty"`

	Version int64 `json:"-"`
}

// NewParty returns an open party at the given starting location.
func NewParty(id, leaderID string, loc Location, now time.Time) *Party {
	return &Party{
		PartyID:                  id,
		Status:                   StatusOpen,
		Region:                   loc.Region,
		Square:                   loc.Square,
		Quadrant:                 loc.Quadrant,
		QuadrantState:            QuadrantUnexplored,
		LeaderID:                 leaderID,
		Characters:               []PartyMember{},
		GatheredItems:            []ItemRecord{},
		LostItems:                []ItemRecord{},
		ProgressLog:              []TurnEvent{},
		ExploredQuadrantsThisRun: QuadrantSet{},
		VisitedQuadrantsThisRun:  QuadrantSet{},
		PathImageUploadedSquares: []string{},
		CreatedAt:                now.UTC(),
	}
}

// Location returns the party's current position.
func (p *Party) Location() Location {
	return Location{Region: p.Region, Square: p.Square, Quadrant: p.Quadrant}
}

// Expired reports whether an open party has outlived ttl.
func (p *Party) Expired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = DefaultOpenTTL
	}
	return p.Status == StatusOpen && now.Sub(p.CreatedAt) > ttl
}

// MemberIndex returns the index of the member owned by userID, or -1.
func (p *Party) MemberIndex(userID string) int {
	for i, m := range p.Characters {
		if m.UserID == userID {
			return i
		}
	}
	return -1
}

// Member returns the member owned by userID.
func (p *Party) Member(userID string) (PartyMember, bool) {
	i := p.MemberIndex(userID)
	if i < 0 {
		return PartyMember{}, false
	}
	return p.Characters[i], true
}

// ResolvedOutcome derives the outcome shown in read views. Legacy completed
// runs carry no stored outcome, so the last log entry decides.
func (p *Party) ResolvedOutcome() Outcome {
	switch p.Status {
	case StatusFailed:
		return OutcomeFailed
	case StatusCompleted:
		if p.Outcome != OutcomeNone {
			return p.Outcome
		}
		if n := len(p.ProgressLog); n > 0 && isFailureMarker(p.ProgressLog[n-1].Outcome) {
			return OutcomeFailed
		}
		return OutcomeSuccess
	}
	return p.Outcome
}

func isFailureMarker(outcome string) bool {
	switch outcome {
	case "ko", "failed", "failure", "defeat":
		return true
	}
	return false
}

// MarkVisited records ref in the visited set.
func (p *Party) MarkVisited(ref QuadrantRef) {
	if p.VisitedQuadrantsThisRun == nil {
		p.VisitedQuadrantsThisRun = QuadrantSet{}
	}
	p.VisitedQuadrantsThisRun.Add(ref)
}

// MarkExplored records ref in the explored set.
func (p *Party) MarkExplored(ref QuadrantRef) {
	if p.ExploredQuadrantsThisRun == nil {
		p.ExploredQuadrantsThisRun = QuadrantSet{}
	}
	p.ExploredQuadrantsThisRun.Add(ref)
}

// ExploredThisRun reports whether the party explored ref during this run.
func (p *Party) ExploredThisRun(ref QuadrantRef) bool {
	return p.ExploredQuadrantsThisRun.Has(ref)
}

// MarkPathImageUploaded records that a path was drawn on square.
func (p *Party) MarkPathImageUploaded(square string) {
	for _, s := range p.PathImageUploadedSquares {
		if s == square {
			return
		}
	}
	p.PathImageUploadedSquares = append(p.PathImageUploadedSquares, square)
}

// Log appends an event to the progress log.
func (p *Party) Log(ev TurnEvent) {
	p.ProgressLog = append(p.ProgressLog, ev)
}
