package models

import "fmt"

// Transition is one row of a status table: applying Action in From moves to To.
type Transition[S comparable, A comparable] struct {
	From   S
	Action A
	To     S
}

type transitionKey[S comparable, A comparable] struct {
	from   S
	action A
}

// TransitionTable is an explicit (status, action) -> status mapping.
// Anything not listed is an illegal transition.
type TransitionTable[S comparable, A comparable] struct {
	rows []Transition[S, A]
	next map[transitionKey[S, A]]S
}

func NewTransitionTable[S comparable, A comparable](rows ...Transition[S, A]) *TransitionTable[S, A] {
	t := &TransitionTable[S, A]{
		rows: rows,
		next: make(map[transitionKey[S, A]]S, len(rows)),
	}
	for _, r := range rows {
		k := transitionKey[S, A]{from: r.From, action: r.Action}
		if _, dup := t.next[k]; dup {
			panic(fmt.Sprintf("duplicate transition %v/%v", r.From, r.Action))
		}
		t.next[k] = r.To
	}
	return t
}

func (t *TransitionTable[S, A]) Next(from S, action A) (S, bool) {
	to, ok := t.next[transitionKey[S, A]{from: from, action: action}]
	return to, ok
}

// Sources lists the statuses from which action is legal, in table order.
func (t *TransitionTable[S, A]) Sources(action A) []S {
	var out []S
	for _, r := range t.rows {
		if r.Action == action {
			out = append(out, r.From)
		}
	}
	return out
}

func (t *TransitionTable[S, A]) Rows() []Transition[S, A] {
	out := make([]Transition[S, A], len(t.rows))
	copy(out, t.rows)
	return out
}
