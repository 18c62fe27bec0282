package upload

import (
	"context"
	"sync"
)

type transferState int

const (
	transferActive transferState = iota
	transferAborted
	transferCommitted
)

type transfer struct {
	cancel context.CancelFunc
	state  transferState
}

// transfers tracks the cancel function of every transfer in flight, keyed
// by upload id. A transfer is either aborted by Cancel or committed by its
// session before persistence starts, never both.
type transfers struct {
	mu     sync.Mutex
	active map[string]*transfer
}

func newTransfers() *transfers {
	return &transfers{active: make(map[string]*transfer)}
}

func (t *transfers) add(uploadID string, cancel context.CancelFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active[uploadID] = &transfer{cancel: cancel}
}

// abort cancels an active transfer. It returns false when there is no such
// transfer, it was already aborted, or its session has moved on to
// persistence.
func (t *transfers) abort(uploadID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	tr, ok := t.active[uploadID]
	if !ok || tr.state != transferActive {
		return false
	}

	tr.state = transferAborted
	tr.cancel()
	return true
}

// commit marks the transfer as past the point of cancellation. It returns
// false if the transfer was aborted first.
func (t *transfers) commit(uploadID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	tr, ok := t.active[uploadID]
	if !ok || tr.state == transferAborted {
		return false
	}

	tr.state = transferCommitted
	return true
}

func (t *transfers) aborted(uploadID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	tr, ok := t.active[uploadID]
	return ok && tr.state == transferAborted
}

func (t *transfers) release(uploadID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.active, uploadID)
}

func (t *transfers) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active)
}
