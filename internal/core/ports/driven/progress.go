package driven

// ProgressSink receives progress events from a batch run. Implementations
// render them (terminal panel, plain logs) or discard them. Methods must be
// safe for concurrent use: fetches and diffs complete on separate goroutines.
type ProgressSink interface {
	// Logf appends a line to the activity log.
	Logf(format string, args ...any)

	// FetchCompleted records one finished URL fetch.
	FetchCompleted()

	// DiffCompleted records one finished diff (successful or not).
	DiffCompleted()

	// ErrorOccurred records one failed case.
	ErrorOccurred()

	// Done tells the sink no further events will arrive. The sink must
	// release the terminal before Done returns.
	Done()
}

// NopProgress discards all progress events. Used when no UI is attached.
type NopProgress struct{}

// Ensure NopProgress implements the interface.
var _ ProgressSink = NopProgress{}

// Logf implements ProgressSink.
func (NopProgress) Logf(string, ...any) {}

// FetchCompleted implements ProgressSink.
func (NopProgress) FetchCompleted() {}

// DiffCompleted implements ProgressSink.
func (NopProgress) DiffCompleted() {}

// ErrorOccurred implements ProgressSink.
func (NopProgress) ErrorOccurred() {}

// Done implements ProgressSink.
func (NopProgress) Done() {}
