package ecs

// Command is a mutation applied to one entity. Modify executes it and then
// sends it as an event, so trigger systems can react to specific commands.
type Command interface {
	Execute(w *World, target EntityID)
}

// ParallelCommand marks commands that only touch the target's own component
// values. They may be issued from parallel query slices.
type ParallelCommand interface {
	Command
	ParallelSafe()
}

// Modify executes cmd against target and announces it.
func (w *World) Modify(target EntityID, cmd Command) {
	cmd.Execute(w, target)
	w.dispatcher.Send(target, cmd)
}
