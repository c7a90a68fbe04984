package filesystem

// Observer records retry metrics. The implementation lives in the metrics
// package, which imports this one.
type Observer interface {
	ObserveRetryAttempt(operation string)
	ObserveRetryFailure(operation string)
}

// defaultObserver is nil in tests; recording is skipped then.
var defaultObserver Observer

// SetObserver sets the package-level metrics observer.
// Call this once at startup.
func SetObserver(o Observer) {
	defaultObserver = o
}

func observe() Observer {
	return defaultObserver
}
