package portal

import "context"

// State is a step of the lookup state machine.
type State string

const (
	StateQuerySubmitted    State = "QUERY_SUBMITTED"
	StateCandidateResolved State = "CANDIDATE_RESOLVED"
	StateDetailFetched     State = "DETAIL_FETCHED"
	StateParsed            State = "PARSED"
	StateOrdersArchived    State = "ORDERS_ARCHIVED"
	StateDone              State = "DONE"
	StateFailed            State = "FAILED"
)

type observerKey struct{}

// WithObserver returns a context whose lookups report state transitions
// to fn.
func WithObserver(ctx context.Context, fn func(State)) context.Context {
	return context.WithValue(ctx, observerKey{}, fn)
}

// Enter reports that the lookup running under ctx reached s.
func Enter(ctx context.Context, s State) {
	if fn, ok := ctx.Value(observerKey{}).(func(State)); ok && fn != nil {
		fn(s)
	}
}

// Gap reports a table or field the portal did not return. Gaps are not
// errors.
type GapFunc func(table string)

type gapKey struct{}

func WithGapReporter(ctx context.Context, fn GapFunc) context.Context {
	return context.WithValue(ctx, gapKey{}, fn)
}

func ReportGap(ctx context.Context, table string) {
	if fn, ok := ctx.Value(gapKey{}).(GapFunc); ok && fn != nil {
		fn(table)
	}
}

type captchaKey struct{}

// WithCaptchaObserver returns a context whose CAPTCHA gates report each
// attempt result (accepted, rejected, unsolved) to fn.
func WithCaptchaObserver(ctx context.Context, fn func(result string)) context.Context {
	return context.WithValue(ctx, captchaKey{}, fn)
}

// CaptchaObserver returns the observer installed on ctx, or nil.
func CaptchaObserver(ctx context.Context) func(result string) {
	fn, _ := ctx.Value(captchaKey{}).(func(string))
	return fn
}
