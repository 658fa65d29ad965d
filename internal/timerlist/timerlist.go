// Package timerlist implements the sorted doubly-linked idle-connection
// timer list described in original_source/timer/lst_timer.cpp: entries
// ordered by absolute expiry, with Add/Adjust/Delete/Tick.
//
// Entry additionally carries a Generation and ConnID so that a Tick
// racing a worker that has already recycled the same fd/slot rejects the
// stale callback instead of touching a reused connection — the
// generation-indexed arena called for in spec §9's redesign notes.
package timerlist

import "time"

// Entry is one node in the sorted timer list.
type Entry struct {
	ExpireAt time.Time
	Callback func(*Entry)

	// ConnID/Generation identify the owning connection slot without an
	// embedded pointer, so callers can check the slot is still theirs
	// before acting on expiry.
	ConnID     uint32
	Generation uint32

	prev, next *Entry
}

// List is a doubly-linked list of *Entry sorted strictly non-decreasing
// by ExpireAt. It is not safe for concurrent use; callers serialize
// every access to the list and to its entries' ExpireAt (the reactor
// does so with a single mutex, since both its own goroutine and the
// worker goroutines touch it).
type List struct {
	head, tail *Entry
}

// New returns an empty timer list.
func New() *List {
	return &List{}
}

// Add inserts entry into the list, maintaining sort order. Empty-list and
// less-than-head are both O(1) fast paths; otherwise insertion is O(N)
// from the head, mirroring the original's add_timer.
func (l *List) Add(e *Entry) {
	if e == nil {
		return
	}
	e.prev, e.next = nil, nil

	if l.head == nil {
		l.head, l.tail = e, e
		return
	}
	if e.ExpireAt.Before(l.head.ExpireAt) {
		e.next = l.head
		l.head.prev = e
		l.head = e
		return
	}
	l.insertAfter(e, l.head)
}

// insertAfter walks from start looking for the first entry whose expiry
// exceeds e's, and splices e in just before it. If none is found, e
// becomes the new tail.
func (l *List) insertAfter(e *Entry, start *Entry) {
	prev := start
	cur := start.next
	for cur != nil {
		if e.ExpireAt.Before(cur.ExpireAt) {
			prev.next = e
			e.prev = prev
			e.next = cur
			cur.prev = e
			return
		}
		prev = cur
		cur = cur.next
	}
	prev.next = e
	e.prev = prev
	e.next = nil
	l.tail = e
}

// Adjust is called when e's expiry has been extended by activity (spec
// §5: "adjust_timer extends expiry to now + 3*T"). Only the increasing
// case is supported, matching the original. If e is already the tail, or
// its new expiry still doesn't exceed its successor's, the list is
// already sorted and Adjust is a no-op.
func (l *List) Adjust(e *Entry) {
	if e == nil || e.next == nil {
		return
	}
	if !e.ExpireAt.After(e.next.ExpireAt) {
		return
	}

	hint := e.next
	l.unlink(e)
	l.insertAfter(e, hint)
	if e.next == nil {
		l.tail = e
	}
}

// Delete removes e from the list.
func (l *List) Delete(e *Entry) {
	if e == nil {
		return
	}
	l.unlink(e)
	e.prev, e.next = nil, nil
}

func (l *List) unlink(e *Entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else if l.head == e {
		l.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else if l.tail == e {
		l.tail = e.prev
	}
}

// Tick expires every entry whose ExpireAt has passed now, invoking each
// one's Callback and unlinking it, stopping at the first entry that has
// not yet expired (the list is sorted, so nothing further down can have
// expired either).
func (l *List) Tick(now time.Time) {
	for l.head != nil && !l.head.ExpireAt.After(now) {
		e := l.head
		l.head = e.next
		if l.head != nil {
			l.head.prev = nil
		} else {
			l.tail = nil
		}
		e.prev, e.next = nil, nil
		if e.Callback != nil {
			e.Callback(e)
		}
	}
}

// Empty reports whether the list has no entries.
func (l *List) Empty() bool {
	return l.head == nil
}

// Front returns the earliest-expiring entry, or nil if the list is
// empty. Useful for computing the next alarm duration.
func (l *List) Front() *Entry {
	return l.head
}
