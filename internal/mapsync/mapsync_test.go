package mapsync_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playperu/expedition/internal/atlas"
	"github.com/playperu/expedition/internal/expedition"
	"github.com/playperu/expedition/internal/mapsync"
)

type memStore struct {
	mu      sync.Mutex
	squares map[string]mapsync.Square
	writes  int
}

func newMemStore() *memStore {
	return &memStore{squares: map[string]mapsync.Square{}}
}

func (m *memStore) seed(id string, statuses map[expedition.QuadrantID]expedition.QuadrantStatus) {
	sq := mapsync.Square{SquareID: id, Region: "eldin", Quadrants: map[expedition.QuadrantID]mapsync.Quadrant{}}
	for q, s := range statuses {
		sq.Quadrants[q] = mapsync.Quadrant{ID: q, Status: s}
	}
	m.squares[id] = sq
}

func (m *memStore) Square(_ context.Context, id string) (mapsync.Square, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sq, ok := m.squares[id]
	if !ok {
		return mapsync.Square{}, mapsync.ErrNotFound
	}
	return sq, nil
}

func (m *memStore) AdvanceQuadrant(_ context.Context, id, region string, q expedition.QuadrantID,
	status expedition.QuadrantStatus, at *time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sq, ok := m.squares[id]
	if !ok {
		sq = mapsync.Square{SquareID: id, Region: region, Quadrants: map[expedition.QuadrantID]mapsync.Quadrant{}}
	}
	cur := sq.Quadrants[q]
	if cur.Status == expedition.QuadrantSecured {
		return false, nil
	}
	cur.ID = q
	cur.Status = status
	if at != nil {
		cur.ExploredAt = at
	}
	sq.Quadrants[q] = cur
	m.squares[id] = sq
	m.writes++
	return true, nil
}

func newSync(store mapsync.Store) *mapsync.Synchronizer {
	return mapsync.New(store, atlas.Default(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func startedParty(square string, q expedition.QuadrantID) *expedition.Party {
	p := expedition.NewParty("P1", "u1", expedition.Location{Region: "eldin", Square: square, Quadrant: q}, time.Now())
	p.Status = expedition.StatusStarted
	return p
}

func TestReadDefaultsMissingToUnexplored(t *testing.T) {
	store := newMemStore()
	store.seed("H8", map[expedition.QuadrantID]expedition.QuadrantStatus{expedition.Q2: expedition.QuadrantExplored})
	s := newSync(store)

	v, err := s.Read(context.Background(), "h8")
	require.NoError(t, err)
	assert.Equal(t, "H8", v.SquareID)
	require.Len(t, v.Quadrants, 4)
	assert.Equal(t, expedition.QuadrantUnexplored, v.Status(expedition.Q1))
	assert.Equal(t, expedition.QuadrantExplored, v.Status(expedition.Q2))

	v, err = s.Read(context.Background(), "A1")
	require.NoError(t, err)
	for _, q := range v.Quadrants {
		assert.Equal(t, expedition.QuadrantUnexplored, q.Status)
	}

	_, err = s.Read(context.Background(), "Z40")
	assert.Equal(t, expedition.CodeSquareInvalid, expedition.CodeOf(err))
}

func TestRevealNeverOverwritesSecured(t *testing.T) {
	store := newMemStore()
	store.seed("H8", map[expedition.QuadrantID]expedition.QuadrantStatus{
		expedition.Q1: expedition.QuadrantUnexplored,
		expedition.Q3: expedition.QuadrantSecured,
	})
	s := newSync(store)

	p := startedParty("H8", expedition.Q1)
	p.MarkExplored(expedition.QuadrantRef{Square: "H8", Quadrant: expedition.Q1})
	p.MarkExplored(expedition.QuadrantRef{Square: "H8", Quadrant: expedition.Q3})

	v, err := s.Reveal(context.Background(), p, "H8", expedition.Q1)
	require.NoError(t, err)
	assert.Equal(t, expedition.QuadrantExplored, v.Status(expedition.Q1))
	assert.Equal(t, expedition.QuadrantSecured, v.Status(expedition.Q3))

	assert.Equal(t, expedition.QuadrantExplored, store.squares["H8"].Quadrants[expedition.Q1].Status)
	assert.Equal(t, expedition.QuadrantSecured, store.squares["H8"].Quadrants[expedition.Q3].Status)
}

func TestRevealStampsCurrentQuadrant(t *testing.T) {
	store := newMemStore()
	s := newSync(store)

	p := startedParty("G7", expedition.Q2)
	p.QuadrantState = expedition.QuadrantExplored
	p.MarkExplored(expedition.QuadrantRef{Square: "G7", Quadrant: expedition.Q4})

	_, err := s.Reveal(context.Background(), p, "G7", expedition.Q2)
	require.NoError(t, err)

	quads := store.squares["G7"].Quadrants
	assert.Equal(t, "eldin", store.squares["G7"].Region)
	require.NotNil(t, quads[expedition.Q2].ExploredAt)
	assert.Equal(t, expedition.QuadrantExplored, quads[expedition.Q4].Status)
	assert.Nil(t, quads[expedition.Q4].ExploredAt)
}

func TestRevealSuppressedOnceRunEnds(t *testing.T) {
	for _, status := range []expedition.PartyStatus{
		expedition.StatusOpen, expedition.StatusCompleted, expedition.StatusFailed, expedition.StatusCancelled,
	} {
		t.Run(string(status), func(t *testing.T) {
			store := newMemStore()
			s := newSync(store)
			p := startedParty("H8", expedition.Q1)
			p.MarkExplored(expedition.QuadrantRef{Square: "H8", Quadrant: expedition.Q1})
			p.Status = status

			v, err := s.Reveal(context.Background(), p, "H8", expedition.Q1)
			require.NoError(t, err)
			assert.Zero(t, store.writes)
			assert.Equal(t, expedition.QuadrantUnexplored, v.Status(expedition.Q1))
		})
	}
}

func TestProjectLeavesSecuredAndIgnoresOtherSquares(t *testing.T) {
	v := mapsync.View{SquareID: "H8", Quadrants: []mapsync.Quadrant{
		{ID: expedition.Q1, Status: expedition.QuadrantUnexplored},
		{ID: expedition.Q2, Status: expedition.QuadrantSecured},
		{ID: expedition.Q3, Status: expedition.QuadrantInaccessible},
		{ID: expedition.Q4, Status: expedition.QuadrantUnexplored},
	}}
	p := startedParty("H8", expedition.Q1)
	p.MarkExplored(expedition.QuadrantRef{Square: "H8", Quadrant: expedition.Q2})
	p.MarkExplored(expedition.QuadrantRef{Square: "H8", Quadrant: expedition.Q3})
	p.MarkExplored(expedition.QuadrantRef{Square: "H9", Quadrant: expedition.Q4})

	out := mapsync.Project(v, p)
	assert.Equal(t, expedition.QuadrantUnexplored, out.Status(expedition.Q1))
	assert.Equal(t, expedition.QuadrantSecured, out.Status(expedition.Q2))
	assert.Equal(t, expedition.QuadrantExplored, out.Status(expedition.Q3))
	assert.Equal(t, expedition.QuadrantUnexplored, out.Status(expedition.Q4))
	assert.Equal(t, expedition.QuadrantInaccessible, v.Status(expedition.Q3), "input view must not change")
}

func TestFogged(t *testing.T) {
	tests := []struct {
		status expedition.QuadrantStatus
		q      expedition.QuadrantID
		want   bool
	}{
		{expedition.QuadrantUnexplored, expedition.Q2, true},
		{expedition.QuadrantInaccessible, expedition.Q3, true},
		{expedition.QuadrantUnexplored, expedition.Q1, false},
		{expedition.QuadrantExplored, expedition.Q2, false},
		{expedition.QuadrantSecured, expedition.Q4, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, mapsync.Fogged(tt.status, tt.q, expedition.Q1), "%s %s", tt.status, tt.q)
	}

	v := mapsync.View{Quadrants: []mapsync.Quadrant{
		{ID: expedition.Q1, Status: expedition.QuadrantUnexplored},
		{ID: expedition.Q2, Status: expedition.QuadrantExplored},
		{ID: expedition.Q3, Status: expedition.QuadrantUnexplored},
		{ID: expedition.Q4, Status: expedition.QuadrantSecured},
	}}
	assert.Equal(t, [4]bool{false, false, true, false}, v.FogMask(expedition.Q1))
}
