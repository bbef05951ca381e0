package expedition

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

type QuadrantID string

const (
	Q1 QuadrantID = "Q1"
	Q2 QuadrantID = "Q2"
	Q3 QuadrantID = "Q3"
	Q4 QuadrantID = "Q4"
)

// Quadrants lists the quadrants of a square in label order.
var Quadrants = [4]QuadrantID{Q1, Q2, Q3, Q4}

// ParseQuadrant normalizes "q3", "Q3" or "3" to Q3.
func ParseQuadrant(s string) (QuadrantID, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if !strings.HasPrefix(s, "Q") {
		s = "Q" + s
	}
	for _, q := range Quadrants {
		if QuadrantID(s) == q {
			return q, nil
		}
	}
	return "", E(CodeQuadrantInvalid, fmt.Sprintf("%q is not a quadrant", s))
}

var squarePattern = regexp.MustCompile(`^[A-J](1[0-2]|[1-9])$`)

// ParseSquare normalizes a grid coordinate such as "h8" to "H8". Columns run
// A-J and rows 1-12.
func ParseSquare(s string) (string, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if !squarePattern.MatchString(s) {
		return "", E(CodeSquareInvalid, fmt.Sprintf("%q is not a map square", s))
	}
	return s, nil
}

type QuadrantStatus string

const (
	QuadrantInaccessible QuadrantStatus = "inaccessible"
	QuadrantUnexplored   QuadrantStatus = "unexplored"
	QuadrantExplored     QuadrantStatus = "explored"
	QuadrantSecured      QuadrantStatus = "secured"
)

// Rank orders statuses along the forward-only progression. Unknown values
// rank as unexplored.
func (s QuadrantStatus) Rank() int {
	switch s {
	case QuadrantExplored:
		return 2
	case QuadrantSecured:
		return 3
	}
	return 1
}

// Hidden reports whether a quadrant with this status is drawn under fog.
func (s QuadrantStatus) Hidden() bool {
	return s == "" || s == QuadrantUnexplored || s == QuadrantInaccessible
}

// QuadrantRef identifies one quadrant of one square.
type QuadrantRef struct {
	Square   string     `json:"squareId"`
	Quadrant QuadrantID `json:"quadrantId"`
}

func (r QuadrantRef) String() string { return r.Square + "-" + string(r.Quadrant) }

// QuadrantSet is a set of quadrants. It serializes as a sorted list.
type QuadrantSet map[QuadrantRef]struct{}

func (s QuadrantSet) Add(r QuadrantRef) { s[r] = struct{}{} }

func (s QuadrantSet) Has(r QuadrantRef) bool {
	_, ok := s[r]
	return ok
}

// Sorted returns the members ordered by square then quadrant.
func (s QuadrantSet) Sorted() []QuadrantRef {
	out := make([]QuadrantRef, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Square != out[j].Square {
			return out[i].Square < out[j].Square
		}
		return out[i].Quadrant < out[j].Quadrant
	})
	return out
}

func (s QuadrantSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *QuadrantSet) UnmarshalJSON(b []byte) error {
	var refs []QuadrantRef
	if err := json.Unmarshal(b, &refs); err != nil {
		return err
	}
	set := make(QuadrantSet, len(refs))
	for _, r := range refs {
		set.Add(r)
	}
	*s = set
	return nil
}
