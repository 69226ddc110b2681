// Package touch implements the multi-touch sequence state machine.
//
// Each contact moves through absent, down, optional motion and up. A
// sequence is idle until its first contact goes down and becomes idle
// again when every contact is up or when it is canceled:
//
//	seq := touch.NewSequence()
//	seq.AddListener(recorder)
//	seq.Down(1, geom.Pt(125, 125))   // SequenceStarted
//	seq.Down(2, geom.Pt(0, 0))       // PointAdded
//	seq.Motion(2, geom.Pt(100, 100)) // PointMoved
//	seq.Up(1)                        // PointRemoved
//	seq.Up(2)                        // PointRemoved, SequenceEnded
//
// After Cancel, motion and up events for the canceled contacts are dropped
// until a fresh down starts the next sequence.
package touch
