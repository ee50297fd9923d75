package runner

// CurrentThreadRunner runs every job inline on the calling goroutine, in
// submission order. Group submissions run as a single range.
//
// With a barrier, a panicking job is recorded in the barrier like on the
// parallel runner. Without one the panic propagates to the caller.
type CurrentThreadRunner struct{}

// Sequential is the shared inline runner.
var Sequential Runner = CurrentThreadRunner{}

func (CurrentThreadRunner) DegreeOfParallelism() int { return 1 }

func (CurrentThreadRunner) Run(action func(), barrier *Barrier) error {
	if barrier == nil {
		action()
		return nil
	}
	barrier.AddParticipants(1)
	invokeJoined(barrier, action)
	return nil
}

func (c CurrentThreadRunner) RunGroup(taskCount int, action GroupAction, barrier *Barrier) error {
	if taskCount <= 0 {
		return nil
	}
	return c.Run(func() { action(Range{From: 0, To: taskCount}) }, barrier)
}
