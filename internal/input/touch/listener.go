package touch

// Listener receives touch sequence notifications.
//
// For a contact that ends a sequence, PointRemoved is always delivered
// before SequenceEnded. A canceled sequence only produces SequenceCanceled.
type Listener interface {
	SequenceStarted(s *Sequence)
	PointAdded(p Point)
	PointMoved(p Point)
	PointRemoved(p Point)
	SequenceEnded(s *Sequence)
	SequenceCanceled(s *Sequence)
}

// NopListener implements Listener with no-ops. Embed it to implement only
// the notifications of interest.
type NopListener struct{}

func (NopListener) SequenceStarted(*Sequence) {}
func (NopListener) PointAdded(Point) {}
func (NopListener) PointMoved(Point) {}
func (NopListener) PointRemoved(Point) {}
func (NopListener) SequenceEnded(*Sequence) {}
func (NopListener) SequenceCanceled(*Sequence) {}
