// Package health reports whether the collaborators a client depends on are
// reachable: the cache backend and the upstream API.
//
// A Checker reports a Result with a Status of Healthy, Degraded or Unhealthy.
// An Aggregator runs several checkers under one deadline and summarizes them
// into a Report:
//
//	agg := health.NewAggregator()
//	agg.Register("cache", health.NewBackendChecker(backend, health.BackendCheckerConfig{}))
//	agg.Register("upstream", health.NewEndpointChecker(health.EndpointCheckerConfig{
//	    URL: "https://api.example.com/status",
//	}))
//	report := agg.Report(ctx)
package health
