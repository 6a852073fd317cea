package domain

// ExcludedOrder is an order left out of a run and why.
type ExcludedOrder struct {
	OrderID string
	Reason  string
}

// RouteOutcome is a route that was solved and persisted.
type RouteOutcome struct {
	RouteName string
	Stops     int
	Output    string
}

// RouteFailure is a route whose solve or persist step failed.
type RouteFailure struct {
	RouteName string
	Err       error
}

// Summary is the end-of-run report. A run is only clean when Excluded,
// Unrouted and Failed are all empty.
type Summary struct {
	Excluded []ExcludedOrder
	Unrouted []string
	Solved   []RouteOutcome
	Failed   []RouteFailure
}

func (s *Summary) Clean() bool {
	return len(s.Excluded) == 0 && len(s.Unrouted) == 0 && len(s.Failed) == 0
}
