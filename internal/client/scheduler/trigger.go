package scheduler

// SyncPassName is the unique name of the sync pass work unit.
const SyncPassName = "sync-pass"

// Trigger is the one way the rest of the client asks for a sync pass.
// Requests made while a pass is queued or running collapse into it.
type Trigger struct {
	sched Scheduler
	pass  Work
}

func NewTrigger(sched Scheduler, pass Work) *Trigger {
	return &Trigger{sched: sched, pass: pass}
}

func (t *Trigger) RequestSyncPass() {
	t.sched.EnqueueUnique(SyncPassName, KeepExisting, t.pass)
}
