package provider

// Middleware wraps a Client to add a cross-cutting concern (retry, circuit breaking,
// rate limiting, timeout, metrics) via the standard chain-of-decorators pattern.
type Middleware func(Client) Client

// Chain applies middlewares in order, so the first middleware listed is outermost (the
// first to see a call and the last to see its result), matching
// llm.Chain(rawClient, validator, metrics, circuit, retry, ...) convention.
func Chain(base Client, mws ...Middleware) Client {
	c := base
	for i := len(mws) - 1; i >= 0; i-- {
		c = mws[i](c)
	}
	return c
}

// delegate implements the parts of Client that nearly every middleware forwards
// unchanged, so concrete middlewares only need to override Chat/ChatStream/HealthCheck.
type delegate struct {
	Client
}
