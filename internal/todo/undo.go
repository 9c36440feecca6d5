package todo

// Revert undoes side effects recorded alongside a list snapshot (metadata
// rows touched by the same batch) and returns the inverse revert so the
// operation can be redone. A nil Revert marks a pure list snapshot.
type Revert func() (Revert, error)

type snapshot struct {
	list   *List
	revert Revert
}

// UndoStack keeps whole-list snapshots plus the side-effect reverts recorded
// with them. A snapshot is taken immediately before a mutation; one Undo
// restores both the list state and the side effects as of that moment. New
// snapshots invalidate the redo history.
type UndoStack struct {
	undo       []snapshot
	redo       []snapshot
	maxHistory int
}

// NewUndoStack returns a stack bounded at maxHistory snapshots. Zero or
// negative means the default of 100.
func NewUndoStack(maxHistory int) *UndoStack {
	if maxHistory <= 0 {
		maxHistory = 100
	}
	return &UndoStack{maxHistory: maxHistory}
}

// Push records a snapshot of the list as it is now, with no side effects.
func (s *UndoStack) Push(l *List) {
	s.PushState(l.Clone(), nil)
}

// PushState records an already-captured pre-mutation state together with the
// revert for its side effects. Ownership of state passes to the stack.
func (s *UndoStack) PushState(state *List, revert Revert) {
	s.undo = append(s.undo, snapshot{list: state, revert: revert})
	s.redo = nil
	if len(s.undo) > s.maxHistory {
		s.undo = s.undo[1:]
	}
}

// Undo restores the most recent snapshot into l, runs its side-effect
// revert, and moves the pre-undo state to the redo stack. Returns false if
// there is nothing to undo or the revert failed (the snapshot is kept).
func (s *UndoStack) Undo(l *List) bool {
	if len(s.undo) == 0 {
		return false
	}
	snap := s.undo[len(s.undo)-1]

	var inverse Revert
	if snap.revert != nil {
		var err error
		inverse, err = snap.revert()
		if err != nil {
			return false
		}
	}

	s.undo = s.undo[:len(s.undo)-1]
	s.redo = append(s.redo, snapshot{list: l.Clone(), revert: inverse})
	l.Restore(snap.list)
	return true
}

// Redo reverses the most recent Undo. Returns false if there is nothing to
// redo or the revert failed.
func (s *UndoStack) Redo(l *List) bool {
	if len(s.redo) == 0 {
		return false
	}
	snap := s.redo[len(s.redo)-1]

	var inverse Revert
	if snap.revert != nil {
		var err error
		inverse, err = snap.revert()
		if err != nil {
			return false
		}
	}

	s.redo = s.redo[:len(s.redo)-1]
	s.undo = append(s.undo, snapshot{list: l.Clone(), revert: inverse})
	l.Restore(snap.list)
	return true
}

// CanUndo reports whether an undo snapshot exists.
func (s *UndoStack) CanUndo() bool { return len(s.undo) > 0 }

// CanRedo reports whether a redo snapshot exists.
func (s *UndoStack) CanRedo() bool { return len(s.redo) > 0 }

// Depth returns the sizes of the undo and redo stacks.
func (s *UndoStack) Depth() (undoCount, redoCount int) {
	return len(s.undo), len(s.redo)
}
