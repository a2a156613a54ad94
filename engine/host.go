package engine

// Host is the message loop Run blocks in when a window is attached. The engine needs only
// these calls, so the core builds without a windowing toolkit.
type Host interface {
	// SetUpdateCallback sets the function called on every message loop iteration.
	SetUpdateCallback(callback func())

	// ProcessMessages runs the message loop until the host closes.
	ProcessMessages()

	// RequestClose asks the message loop to stop. Safe to call from other goroutines.
	RequestClose()
}
