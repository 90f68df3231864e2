package voice

// Callbacks are optional hooks for lifecycle events. They are advisory:
// the published State is authoritative. Hooks run on the goroutine of the
// operation that caused them, after the coordinator has released its
// locks, so they may call back into the Coordinator.
type Callbacks struct {
	OnRecordingStarted   func()
	OnRecordingFinished  func(VoiceMessage)
	OnRecordingCancelled func()
	OnPreviewStarted     func(VoiceMessage)
	OnPreviewPaused      func(VoiceMessage)
	OnPreviewCompleted   func(VoiceMessage)
	OnReadyToSend        func(VoiceMessage)
	OnError              func(error)
}

// notice is one pending hook invocation.
type notice func(Callbacks)

func recordingStarted() notice {
	return func(cb Callbacks) {
		if cb.OnRecordingStarted != nil {
			cb.OnRecordingStarted()
		}
	}
}

func recordingFinished(m VoiceMessage) notice {
	return func(cb Callbacks) {
		if cb.OnRecordingFinished != nil {
			cb.OnRecordingFinished(m)
		}
	}
}

func recordingCancelled() notice {
	return func(cb Callbacks) {
		if cb.OnRecordingCancelled != nil {
			cb.OnRecordingCancelled()
		}
	}
}

func previewStarted(m VoiceMessage) notice {
	return func(cb Callbacks) {
		if cb.OnPreviewStarted != nil {
			cb.OnPreviewStarted(m)
		}
	}
}

func previewPaused(m VoiceMessage) notice {
	return func(cb Callbacks) {
		if cb.OnPreviewPaused != nil {
			cb.OnPreviewPaused(m)
		}
	}
}

func previewCompleted(m VoiceMessage) notice {
	return func(cb Callbacks) {
		if cb.OnPreviewCompleted != nil {
			cb.OnPreviewCompleted(m)
		}
	}
}

func readyToSend(m VoiceMessage) notice {
	return func(cb Callbacks) {
		if cb.OnReadyToSend != nil {
			cb.OnReadyToSend(m)
		}
	}
}

func errored(err error) notice {
	return func(cb Callbacks) {
		if cb.OnError != nil {
			cb.OnError(err)
		}
	}
}
