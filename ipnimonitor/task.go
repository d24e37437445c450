package ipnimonitor

import (
	"sync"

	"github.com/filecoin-project/dealbot/storagemarket/types"
	"github.com/google/uuid"
)

// Task is a handle on a background verification
type Task struct {
	DealID uuid.UUID

	done chan struct{}
	once sync.Once

	lk     sync.Mutex
	result types.Verification
	err    error
}

func newTask(dealID uuid.UUID) *Task {
	return &Task{DealID: dealID, done: make(chan struct{})}
}

// Done is closed when the task has finished
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err returns the error the task finished with. It is nil while the task is
// running, and for tasks that did not end in the FAILED state.
func (t *Task) Err() error {
	t.lk.Lock()
	defer t.lk.Unlock()
	return t.err
}

// Verification returns the final verification state. It is only meaningful
// once Done has been closed.
func (t *Task) Verification() types.Verification {
	t.lk.Lock()
	defer t.lk.Unlock()
	return t.result
}

func (t *Task) finish(v types.Verification, err error) {
	t.once.Do(func() {
		t.lk.Lock()
		t.result = v
		t.err = err
		t.lk.Unlock()
		close(t.done)
	})
}
