package party

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/playperu/expedition/internal/chat"
	"github.com/playperu/expedition/internal/expedition"
	"github.com/playperu/expedition/internal/mapsync"
)

// maxWriteAttempts bounds the optimistic retry loop of modify.
const maxWriteAttempts = 5

var partyIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

type Service struct {
	Deps
	logger *slog.Logger
	ttl    time.Duration
	now    func() time.Time
}

func NewService(deps Deps, ttl time.Duration, logger *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = expedition.DefaultOpenTTL
	}
	return &Service{Deps: deps, logger: logger, ttl: ttl, now: time.Now}
}

// load fetches a live party. Cancelled and expired parties are reported as
// not found with their own codes.
func (s *Service) load(ctx context.Context, id string) (*expedition.Party, error) {
	if !partyIDPattern.MatchString(id) {
		return nil, expedition.E(expedition.CodePartyIDInvalid, "that is not a valid expedition id")
	}
	p, err := s.Repo.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, expedition.Wrap(expedition.CodePartyNotFound, "expedition not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("loading party %s: %w", id, err)
	}
	switch {
	case p.Status == expedition.StatusCancelled && p.ExpiredAt != nil:
		return nil, errExpired
	case p.Status == expedition.StatusCancelled:
		return nil, expedition.E(expedition.CodePartyCancelled, "this expedition was cancelled")
	case p.Expired(s.now(), s.ttl):
		s.expire(ctx, p)
		return nil, errExpired
	}
	return p, nil
}

var errExpired = expedition.E(expedition.CodePartyExpired, "this expedition expired before it started")

// expire cancels an open party past its ttl and refunds its members. Only
// the writer whose version check passes refunds; a failed write leaves the
// party open so the next load tries again.
func (s *Service) expire(ctx context.Context, p *expedition.Party) {
	removed, ok := p.Expire(s.now(), s.ttl)
	if !ok {
		return
	}
	if err := s.Repo.Update(ctx, p); err != nil {
		if !errors.Is(err, ErrVersionConflict) {
			s.logger.Error("expiring party failed", "party_id", p.PartyID, "error", err)
		}
		return
	}
	for _, m := range removed {
		s.refund(ctx, p.PartyID, m)
	}
	s.logger.Info("party expired", "party_id", p.PartyID, "refunded", len(removed))
	s.publish(p, Event{Type: "expired"})
}

// modify applies fn to the latest stored party and writes it back with a
// version check, retrying when another writer got there first. fn may run
// more than once and must only touch p.
func (s *Service) modify(ctx context.Context, id string, fn func(p *expedition.Party) error) (*expedition.Party, error) {
	for attempt := 1; ; attempt++ {
		p, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := fn(p); err != nil {
			return nil, err
		}
		err = s.Repo.Update(ctx, p)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return nil, fmt.Errorf("saving party %s: %w", id, err)
		}
		if attempt == maxWriteAttempts {
			return nil, expedition.Wrap(expedition.CodeWriteConflict,
				"the expedition is busy, please try again", err)
		}
		s.logger.Debug("party write conflict, retrying", "party_id", id, "attempt", attempt)
	}
}

func (s *Service) publish(p *expedition.Party, ev Event) {
	if s.Events == nil {
		return
	}
	ev.PartyID = p.PartyID
	ev.Status = p.Status
	s.Events.Publish(p.PartyID, ev)
}

// CreateInput describes a new party and the caller's first member.
type CreateInput struct {
	Region      string
	Square      string
	Quadrant    string
	CharacterID string
	ItemNames   []string
}

// Create opens a party at a starting quadrant with the caller's character
// as its leader and first member.
func (s *Service) Create(ctx context.Context, callerID string, in CreateInput) (*expedition.Party, error) {
	region := strings.ToLower(strings.TrimSpace(in.Region))
	if _, ok := s.Settlement(region); !ok {
		return nil, expedition.E(expedition.CodeRegionInvalid, fmt.Sprintf("%q is not an explorable region", in.Region))
	}
	square, err := expedition.ParseSquare(in.Square)
	if err != nil {
		return nil, err
	}
	q, err := expedition.ParseQuadrant(in.Quadrant)
	if err != nil {
		return nil, err
	}
	if r := s.RegionOf(square); r != "" && r != region {
		return nil, expedition.E(expedition.CodeRegionInvalid, fmt.Sprintf("%s is in %s, not %s", square, r, region))
	}

	p := expedition.NewParty(uuid.NewString(), callerID,
		expedition.Location{Region: region, Square: square, Quadrant: q}, s.now())
	member, err := s.prepareMember(ctx, p, callerID, in.CharacterID, in.ItemNames)
	if err != nil {
		return nil, err
	}
	if err := p.AddMember(member); err != nil {
		s.release(ctx, member)
		return nil, err
	}
	if err := s.Repo.Create(ctx, p); err != nil {
		s.release(ctx, member)
		return nil, fmt.Errorf("creating party: %w", err)
	}

	s.logger.Info("party created", "party_id", p.PartyID, "leader", callerID, "square", square, "quadrant", q)
	s.publish(p, Event{Type: "created", UserID: callerID, CharacterName: member.Name})
	return p, nil
}

// prepareMember validates the caller's character against p, reserves and
// debits its loadout, and returns the member snapshot.
func (s *Service) prepareMember(ctx context.Context, p *expedition.Party, callerID, characterID string, names []string) (expedition.PartyMember, error) {
	if err := p.CanAdd(callerID); err != nil {
		return expedition.PartyMember{}, err
	}
	if len(names) > expedition.MaxLoadout {
		return expedition.PartyMember{}, expedition.E(expedition.CodeTooManyItems,
			fmt.Sprintf("you can bring at most %d items", expedition.MaxLoadout))
	}

	char, err := s.character(ctx, characterID)
	if err != nil {
		return expedition.PartyMember{}, err
	}
	if char.UserID != callerID {
		return expedition.PartyMember{}, expedition.E(expedition.CodeCharacterNotOwned, "that character is not yours")
	}
	settlement, _ := s.Settlement(p.Region)
	if !strings.EqualFold(char.CurrentVillage, settlement) {
		return expedition.PartyMember{}, expedition.E(expedition.CodeWrongSettlement,
			fmt.Sprintf("%s must be in %s to explore %s", char.Name, settlement, p.Region))
	}

	items, err := s.Inventory.Reserve(ctx, char.ID, names)
	if err != nil {
		return expedition.PartyMember{}, err
	}
	if err := s.Inventory.Earmark(ctx, char.ID, items); err != nil {
		return expedition.PartyMember{}, err
	}
	return expedition.PartyMember{
		CharacterID:    char.ID,
		UserID:         callerID,
		Name:           char.Name,
		CurrentHearts:  char.Hearts(),
		CurrentStamina: char.Stamina(),
		Icon:           char.Icon,
		Items:          items,
	}, nil
}

func (s *Service) character(ctx context.Context, id string) (Character, error) {
	char, err := s.Characters.Character(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Character{}, expedition.Wrap(expedition.CodeCharacterNotFound, "character not found", err)
	}
	if err != nil {
		return Character{}, fmt.Errorf("loading character %s: %w", id, err)
	}
	return char, nil
}

// release undoes an earmark that never reached a stored party.
func (s *Service) release(ctx context.Context, m expedition.PartyMember) {
	if err := s.Inventory.Release(ctx, m.CharacterID, m.Items); err != nil {
		s.logger.Error("releasing loadout failed",
			"character_id", m.CharacterID, "items", len(m.Items), "error", err)
	}
}

func (s *Service) refund(ctx context.Context, partyID string, m expedition.PartyMember) {
	if err := s.Inventory.Refund(ctx, m.CharacterID, m.Items); err != nil {
		s.logger.Error("refunding loadout failed",
			"party_id", partyID, "character_id", m.CharacterID, "items", len(m.Items), "error", err)
	}
}

// Join adds the caller's character to an open party.
func (s *Service) Join(ctx context.Context, partyID, callerID, characterID string, names []string) (*expedition.Party, error) {
	p, err := s.load(ctx, partyID)
	if err != nil {
		return nil, err
	}
	member, err := s.prepareMember(ctx, p, callerID, characterID, names)
	if err != nil {
		return nil, err
	}

	p, err = s.modify(ctx, partyID, func(p *expedition.Party) error {
		return p.AddMember(member)
	})
	if err != nil {
		s.release(ctx, member)
		return nil, err
	}

	s.logger.Info("member joined", "party_id", partyID, "user_id", callerID, "character", member.Name)
	s.publish(p, Event{Type: "joined", UserID: callerID, CharacterName: member.Name})
	return p, nil
}

// UpdateItems replaces the caller's loadout while the party is open.
func (s *Service) UpdateItems(ctx context.Context, partyID, callerID string, names []string) (*expedition.Party, error) {
	p, err := s.load(ctx, partyID)
	if err != nil {
		return nil, err
	}
	if p.Status != expedition.StatusOpen {
		return nil, expedition.E(expedition.CodePartyNotOpen, "items can only be changed before the expedition starts")
	}
	m, ok := p.Member(callerID)
	if !ok {
		return nil, expedition.E(expedition.CodeNotMember, "you are not in this expedition")
	}

	items, err := s.Inventory.ReserveReplacing(ctx, m.CharacterID, names, m.Items)
	if err != nil {
		return nil, err
	}
	if err := s.Inventory.Swap(ctx, m.CharacterID, m.Items, items); err != nil {
		return nil, err
	}

	p, err = s.modify(ctx, partyID, func(p *expedition.Party) error {
		cur, ok := p.Member(callerID)
		if !ok {
			return expedition.E(expedition.CodeNotMember, "you are not in this expedition")
		}
		if !sameItems(cur.Items, m.Items) {
			return expedition.E(expedition.CodeWriteConflict, "your items changed meanwhile, please try again")
		}
		_, err := p.ReplaceItems(callerID, items)
		return err
	})
	if err != nil {
		if serr := s.Inventory.Swap(ctx, m.CharacterID, items, m.Items); serr != nil {
			s.logger.Error("restoring loadout failed", "party_id", partyID, "character_id", m.CharacterID, "error", serr)
		}
		return nil, err
	}

	s.logger.Info("loadout updated", "party_id", partyID, "user_id", callerID, "items", len(items))
	s.publish(p, Event{Type: "items_updated", UserID: callerID, CharacterName: m.Name})
	return p, nil
}

func sameItems(a, b []expedition.LoadoutItem) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ItemName != b[i].ItemName {
			return false
		}
	}
	return true
}

// Leave removes the caller's own member.
func (s *Service) Leave(ctx context.Context, partyID, callerID string) (expedition.PartyMember, error) {
	return s.Remove(ctx, partyID, callerID, callerID)
}

// Remove drops targetUserID's member from an open party and refunds its
// loadout. Any member may remove another.
func (s *Service) Remove(ctx context.Context, partyID, callerID, targetUserID string) (expedition.PartyMember, error) {
	var removed expedition.PartyMember
	p, err := s.modify(ctx, partyID, func(p *expedition.Party) error {
		if p.MemberIndex(callerID) < 0 {
			return expedition.E(expedition.CodeNotMember, "you are not in this expedition")
		}
		m, err := p.RemoveMember(targetUserID)
		removed = m
		return err
	})
	if err != nil {
		return expedition.PartyMember{}, err
	}

	s.refund(ctx, partyID, removed)
	typ := "removed"
	if callerID == targetUserID {
		typ = "left"
	}
	s.logger.Info("member "+typ, "party_id", partyID, "user_id", targetUserID, "by", callerID)
	s.publish(p, Event{Type: typ, UserID: targetUserID, CharacterName: removed.Name})
	return removed, nil
}

// StartResult identifies the chat thread of a started run.
type StartResult struct {
	Party     *expedition.Party
	ThreadID  string
	ThreadURL string
}

// Start begins the run. A started party that already has a thread gets it
// reopened instead of a second one.
func (s *Service) Start(ctx context.Context, partyID, callerID string) (StartResult, error) {
	p, err := s.load(ctx, partyID)
	if err != nil {
		return StartResult{}, err
	}
	if startedWithThread(p) {
		return s.resume(ctx, p, callerID)
	}

	stats := make(map[string]expedition.MemberStats, len(p.Characters))
	for _, m := range p.Characters {
		char, err := s.character(ctx, m.CharacterID)
		if err != nil {
			return StartResult{}, err
		}
		stats[char.ID] = expedition.MemberStats{
			Name: char.Name, Icon: char.Icon, Hearts: char.Hearts(), Stamina: char.Stamina(),
		}
	}

	var (
		thread *chat.Thread
		winner *expedition.Party
	)
	p, err = s.modify(ctx, partyID, func(p *expedition.Party) error {
		if startedWithThread(p) {
			winner = p
			return errStartedConcurrently
		}
		if err := p.Start(callerID, stats); err != nil {
			return err
		}
		if thread == nil {
			th, err := s.Threads.CreateThread(ctx, threadName(p))
			if err != nil {
				return expedition.Wrap(expedition.CodeThreadCreateFailed,
					"could not open the expedition thread", err)
			}
			thread = &th
		}
		p.DiscordThreadID = thread.ID
		return nil
	})
	if err != nil {
		if thread != nil {
			s.logger.Warn("thread created for a start that did not commit", "party_id", partyID, "thread_id", thread.ID)
		}
		if errors.Is(err, errStartedConcurrently) {
			return s.resume(ctx, winner, callerID)
		}
		return StartResult{}, err
	}

	s.announce(ctx, p, thread.ID)
	s.logger.Info("party started", "party_id", partyID, "members", len(p.Characters), "thread_id", thread.ID)
	s.publish(p, Event{Type: "started", UserID: callerID, Square: p.Square, Quadrant: p.Quadrant})
	return StartResult{Party: p, ThreadID: thread.ID, ThreadURL: thread.URL}, nil
}

// errStartedConcurrently stops a Start whose retry finds another Start
// already committed.
var errStartedConcurrently = errors.New("party started concurrently")

func startedWithThread(p *expedition.Party) bool {
	return p.Status == expedition.StatusStarted && p.DiscordThreadID != ""
}

// resume answers a repeated Start by reopening the party's existing thread.
func (s *Service) resume(ctx context.Context, p *expedition.Party, callerID string) (StartResult, error) {
	if callerID != p.LeaderID {
		return StartResult{}, expedition.E(expedition.CodeNotLeader, "only the party leader can start the expedition")
	}
	th, err := s.Threads.UnarchiveThread(ctx, p.DiscordThreadID)
	if err != nil {
		s.logger.Warn("unarchiving thread failed", "party_id", p.PartyID, "thread_id", p.DiscordThreadID, "error", err)
		th = chat.Thread{ID: p.DiscordThreadID}
	}
	return StartResult{Party: p, ThreadID: th.ID, ThreadURL: th.URL}, nil
}

func threadName(p *expedition.Party) string {
	names := make([]string, len(p.Characters))
	for i, m := range p.Characters {
		names[i] = m.Name
	}
	return fmt.Sprintf("Expedition %s %s: %s", p.Square, p.Quadrant, strings.Join(names, ", "))
}

// announce posts the start message. Failures are logged; the run has
// already started.
func (s *Service) announce(ctx context.Context, p *expedition.Party, threadID string) {
	msg := chat.Message{
		Title: fmt.Sprintf("Expedition into %s begins", cases.Title(language.English).String(p.Region)),
		Body:  fmt.Sprintf("Starting at %s %s.", p.Square, p.Quadrant),
		Fields: []chat.Field{
			{Name: "Hearts", Value: fmt.Sprint(p.TotalHearts), Inline: true},
			{Name: "Stamina", Value: fmt.Sprint(p.TotalStamina), Inline: true},
		},
	}
	for _, m := range p.Characters {
		items := make([]string, len(m.Items))
		for i, it := range m.Items {
			items[i] = strings.TrimSpace(it.Emoji + " " + it.ItemName)
		}
		val := "no items"
		if len(items) > 0 {
			val = strings.Join(items, ", ")
		}
		msg.Fields = append(msg.Fields, chat.Field{Name: m.Name, Value: val})
	}
	if s.Images != nil {
		url, err := s.Images.Snapshot(ctx, p)
		if err != nil {
			s.logger.Warn("rendering start image failed", "party_id", p.PartyID, "error", err)
		}
		msg.ImageURL = url
	}
	if err := s.Threads.Post(ctx, threadID, msg); err != nil {
		s.logger.Warn("posting start announcement failed", "party_id", p.PartyID, "thread_id", threadID, "error", err)
	}
}

// Cancel abandons an open party and refunds every member.
func (s *Service) Cancel(ctx context.Context, partyID, callerID string) (*expedition.Party, error) {
	var removed []expedition.PartyMember
	p, err := s.modify(ctx, partyID, func(p *expedition.Party) error {
		var err error
		removed, err = p.Cancel(callerID, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	for _, m := range removed {
		s.refund(ctx, partyID, m)
	}
	s.logger.Info("party cancelled", "party_id", partyID, "refunded", len(removed))
	s.publish(p, Event{Type: "cancelled", UserID: callerID})
	return p, nil
}

// Reveal moves a started party onto a quadrant, records it as explored and
// writes the result into the durable map.
func (s *Service) Reveal(ctx context.Context, partyID, callerID, square, quadrant string) (mapsync.View, error) {
	sq, err := expedition.ParseSquare(square)
	if err != nil {
		return mapsync.View{}, err
	}
	q, err := expedition.ParseQuadrant(quadrant)
	if err != nil {
		return mapsync.View{}, err
	}
	ref := expedition.QuadrantRef{Square: sq, Quadrant: q}

	p, err := s.modify(ctx, partyID, func(p *expedition.Party) error {
		return p.Explore(callerID, ref, s.now())
	})
	if err != nil {
		return mapsync.View{}, err
	}
	v, err := s.Map.Reveal(ctx, p, sq, q)
	if err != nil {
		return mapsync.View{}, err
	}
	s.publish(p, Event{Type: "revealed", UserID: callerID, Square: sq, Quadrant: q})
	return v, nil
}

// End closes a started run with outcome "success" or "failed".
func (s *Service) End(ctx context.Context, partyID, callerID string, outcome expedition.Outcome) (*expedition.Party, error) {
	p, err := s.modify(ctx, partyID, func(p *expedition.Party) error {
		return p.Finish(callerID, outcome, s.now())
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("party ended", "party_id", partyID, "outcome", outcome)
	s.publish(p, Event{Type: "ended", UserID: callerID, Square: p.Square, Quadrant: p.Quadrant})
	return p, nil
}

// DrawPath stores a drawing made by a member on square and makes it the
// square's current path image.
func (s *Service) DrawPath(ctx context.Context, partyID, callerID, square, quadrant string, drawing image.Image) (string, error) {
	p, err := s.load(ctx, partyID)
	if err != nil {
		return "", err
	}
	if p.MemberIndex(callerID) < 0 {
		return "", expedition.E(expedition.CodeNotMember, "you are not in this expedition")
	}
	if p.Status != expedition.StatusStarted {
		return "", expedition.E(expedition.CodePartyNotStarted, "paths can only be drawn during the expedition")
	}
	sq := p.Square
	if square != "" {
		if sq, err = expedition.ParseSquare(square); err != nil {
			return "", err
		}
	}
	var q expedition.QuadrantID
	if quadrant != "" {
		if q, err = expedition.ParseQuadrant(quadrant); err != nil {
			return "", err
		}
	}

	url, err := s.Images.DrawPath(ctx, p, sq, q, drawing)
	if err != nil {
		if expedition.CodeOf(err) != expedition.CodeUnknown {
			return "", err
		}
		return "", expedition.Wrap(expedition.CodeUploadFailed, "could not save the path image", err)
	}
	if err := s.Repo.RecordPathImage(ctx, partyID, sq, url); err != nil {
		return "", fmt.Errorf("recording path image: %w", err)
	}
	p, err = s.modify(ctx, partyID, func(p *expedition.Party) error {
		p.MarkPathImageUploaded(sq)
		return nil
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("path image drawn", "party_id", partyID, "square", sq, "quadrant", q, "url", url)
	s.publish(p, Event{Type: "path_drawn", UserID: callerID, Square: sq, Quadrant: q})
	return url, nil
}
