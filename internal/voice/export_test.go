package voice

// ForceState publishes s directly. It stands in for the upload pipeline
// that drives the Sending, Sent and SendFailed states.
func (c *Coordinator) ForceState(s State) {
	c.ops.Lock()
	defer c.ops.Unlock()

	c.stopTicker()
	c.publish(s)
}
