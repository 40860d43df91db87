package sched

// EndpointScheduler exposes a shared Scheduler to one endpoint at a
// fixed priority, so peripheral logic never picks priorities itself.
type EndpointScheduler struct {
	s        *Scheduler
	priority uint8
}

// NewEndpointScheduler binds priority over s.
func NewEndpointScheduler(s *Scheduler, priority uint8) *EndpointScheduler {
	return &EndpointScheduler{s: s, priority: priority}
}

// Priority returns the fixed priority of this endpoint.
func (e *EndpointScheduler) Priority() uint8 {
	return e.priority
}

// Add schedules tx at the endpoint's priority and returns its id.
func (e *EndpointScheduler) Add(tx *Transmission) uint32 {
	tx.Priority = e.priority
	return e.s.Add(tx)
}

// CancelByID forwards to the shared scheduler.
func (e *EndpointScheduler) CancelByID(id uint32) int {
	return e.s.CancelByID(id)
}

// CancelByRecipient forwards to the shared scheduler.
func (e *EndpointScheduler) CancelByRecipient(recipientAddr byte) int {
	return e.s.CancelByRecipient(recipientAddr)
}

// CountRecipients forwards to the shared scheduler.
func (e *EndpointScheduler) CountRecipients(recipientAddr byte) int {
	return e.s.CountRecipients(recipientAddr)
}

// CancelAll forwards to the shared scheduler.
func (e *EndpointScheduler) CancelAll() int {
	return e.s.CancelAll()
}
