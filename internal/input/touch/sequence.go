package touch

import (
	"github.com/dshills/waystorm/internal/geom"
)

// Point is one contact within a sequence.
type Point struct {
	// ID is the seat-wide contact id.
	ID int32
	// Pos is the last known position in global screen coordinates.
	Pos geom.Point
	// Local is Pos relative to the origin the sequence was started with,
	// normally the top-left corner of the window under the first contact.
	Local geom.Point
	// Down is false once the contact has been lifted.
	Down bool
}

// Sequence tracks the contacts of one multi-touch gesture.
//
// A sequence starts with the first contact put down while idle and ends
// when the last contact is lifted or when it is canceled. Points are kept
// in first-touch order and remain queryable after the sequence ends until
// the next one starts.
//
// Sequence is not safe for concurrent use; it is owned by the main loop.
type Sequence struct {
	points    []*Point
	origin    geom.Point
	active    int
	stale     map[int32]struct{}
	listeners []Listener
}

// NewSequence creates an idle sequence.
func NewSequence() *Sequence {
	return &Sequence{
		stale: make(map[int32]struct{}),
	}
}

// AddListener registers l for sequence notifications.
// Listeners are notified in registration order.
func (s *Sequence) AddListener(l Listener) {
	if l == nil {
		return
	}
	s.listeners = append(s.listeners, l)
}

// RemoveListener unregisters l. It may be called from a notification;
// the notification in progress still reaches every listener registered
// when it started.
func (s *Sequence) RemoveListener(l Listener) {
	kept := make([]Listener, 0, len(s.listeners))
	for _, existing := range s.listeners {
		if existing != l {
			kept = append(kept, existing)
		}
	}
	s.listeners = kept
}

// SetOrigin sets the reference point for local coordinates.
// Points already in the sequence are updated.
func (s *Sequence) SetOrigin(origin geom.Point) {
	s.origin = origin
	for _, p := range s.points {
		p.Local = p.Pos.Sub(origin)
	}
}

// Origin returns the reference point for local coordinates.
func (s *Sequence) Origin() geom.Point {
	return s.origin
}

// IsActive reports whether any contact is down.
func (s *Sequence) IsActive() bool {
	return s.active > 0
}

// ActiveCount returns the number of contacts currently down.
func (s *Sequence) ActiveCount() int {
	return s.active
}

// Len returns the number of points in the sequence, lifted ones included.
func (s *Sequence) Len() int {
	return len(s.points)
}

// At returns the point at index i in first-touch order.
func (s *Sequence) At(i int) (Point, bool) {
	if i < 0 || i >= len(s.points) {
		return Point{}, false
	}
	return *s.points[i], true
}

// First returns the first point of the sequence.
func (s *Sequence) First() (Point, bool) {
	return s.At(0)
}

// Point returns the point with the given id.
func (s *Sequence) Point(id int32) (Point, bool) {
	if p := s.find(id); p != nil {
		return *p, true
	}
	return Point{}, false
}

// Points returns a copy of all points in first-touch order.
func (s *Sequence) Points() []Point {
	out := make([]Point, len(s.points))
	for i, p := range s.points {
		out[i] = *p
	}
	return out
}

// IsStale reports whether id belonged to a canceled sequence and has not
// been put down again since.
func (s *Sequence) IsStale(id int32) bool {
	_, ok := s.stale[id]
	return ok
}

// Down records a new contact. It returns false if the contact is already
// down, in which case nothing is emitted.
//
// The first contact while idle starts a new sequence and emits
// SequenceStarted; later contacts emit PointAdded.
func (s *Sequence) Down(id int32, pos geom.Point) bool {
	if s.active == 0 {
		s.points = s.points[:0]
		clear(s.stale)
		p := s.newPoint(id, pos)
		s.points = append(s.points, p)
		s.active = 1
		for _, l := range s.listeners {
			l.SequenceStarted(s)
		}
		return true
	}

	if p := s.find(id); p != nil {
		if p.Down {
			return false
		}
		p.Down = true
		p.Pos = pos
		p.Local = pos.Sub(s.origin)
		s.active++
		s.emitAdded(*p)
		return true
	}

	p := s.newPoint(id, pos)
	s.points = append(s.points, p)
	s.active++
	s.emitAdded(*p)
	return true
}

// Motion moves a contact that is down. Unknown, lifted and stale ids are
// ignored and false is returned.
func (s *Sequence) Motion(id int32, pos geom.Point) bool {
	if s.IsStale(id) {
		return false
	}
	p := s.find(id)
	if p == nil || !p.Down {
		return false
	}
	p.Pos = pos
	p.Local = pos.Sub(s.origin)
	for _, l := range s.listeners {
		l.PointMoved(*p)
	}
	return true
}

// Up lifts a contact. The point stays in the sequence with its last
// position. PointRemoved is emitted, followed by SequenceEnded when this
// was the last contact down. Unknown, lifted and stale ids are ignored.
func (s *Sequence) Up(id int32) bool {
	if s.IsStale(id) {
		return false
	}
	p := s.find(id)
	if p == nil || !p.Down {
		return false
	}
	p.Down = false
	s.active--
	for _, l := range s.listeners {
		l.PointRemoved(*p)
	}
	if s.active == 0 {
		for _, l := range s.listeners {
			l.SequenceEnded(s)
		}
	}
	return true
}

// Cancel aborts the active sequence. Only SequenceCanceled is emitted.
// Ids of the canceled points become stale: further motion and up events
// for them are dropped until a new sequence starts.
// Cancel on an idle sequence does nothing and returns false.
func (s *Sequence) Cancel() bool {
	if s.active == 0 {
		return false
	}
	for _, p := range s.points {
		s.stale[p.ID] = struct{}{}
	}
	s.points = s.points[:0]
	s.active = 0
	for _, l := range s.listeners {
		l.SequenceCanceled(s)
	}
	return true
}

func (s *Sequence) newPoint(id int32, pos geom.Point) *Point {
	return &Point{
		ID:    id,
		Pos:   pos,
		Local: pos.Sub(s.origin),
		Down:  true,
	}
}

func (s *Sequence) find(id int32) *Point {
	for _, p := range s.points {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (s *Sequence) emitAdded(p Point) {
	for _, l := range s.listeners {
		l.PointAdded(p)
	}
}
