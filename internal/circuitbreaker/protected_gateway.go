package circuitbreaker

import (
	"context"

	"github.com/remindbot/remindbot/internal/sms"
)

// ProtectedGateway wraps an SMS gateway with a circuit breaker. While the
// circuit is open, sends fail fast with a provider-unavailable result instead
// of waiting on a dead provider; the dispatcher records those as ordinary
// failed deliveries.
type ProtectedGateway struct {
	gateway sms.Gateway
	breaker *CircuitBreaker
}

// Protect wraps a gateway with the given breaker.
func Protect(gateway sms.Gateway, breaker *CircuitBreaker) *ProtectedGateway {
	return &ProtectedGateway{
		gateway: gateway,
		breaker: breaker,
	}
}

// Send forwards to the underlying gateway when the circuit allows it.
func (p *ProtectedGateway) Send(ctx context.Context, phone, text string) sms.Result {
	if !p.breaker.Allow() {
		return sms.Result{Error: "sms provider circuit open"}
	}

	res := p.gateway.Send(ctx, phone, text)
	if res.Success {
		p.breaker.RecordSuccess()
	} else {
		p.breaker.RecordFailure()
	}

	return res
}

// Name identifies the underlying provider.
func (p *ProtectedGateway) Name() string {
	return p.gateway.Name()
}

// Stats exposes the breaker's counters for the provider status endpoint.
func (p *ProtectedGateway) Stats() Stats {
	return p.breaker.Stats()
}
