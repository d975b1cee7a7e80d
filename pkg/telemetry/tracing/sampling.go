package tracing

import (
	"fmt"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Values accepted by tracing.sampler.
const (
	SamplerAlways = "always"
	SamplerNever  = "never"
	SamplerRatio  = "ratio"
)

// newSampler returns the root sampler for strategy wrapped in ParentBased,
// so spans started under an incoming trace keep its decision. "" is
// treated as always.
func newSampler(strategy string, ratio float64) (sdktrace.Sampler, error) {
	root, err := rootSampler(strategy, ratio)
	if err != nil {
		return nil, err
	}
	return sdktrace.ParentBased(root), nil
}

func rootSampler(strategy string, ratio float64) (sdktrace.Sampler, error) {
	if strategy == "" || strategy == SamplerAlways {
		return sdktrace.AlwaysSample(), nil
	}
	if strategy == SamplerNever {
		return sdktrace.NeverSample(), nil
	}
	if strategy != SamplerRatio {
		return nil, fmt.Errorf("tracing: unknown sampler %q", strategy)
	}
	if ratio < 0 || ratio > 1 {
		return nil, fmt.Errorf("tracing: sample ratio %g outside [0, 1]", ratio)
	}
	return sdktrace.TraceIDRatioBased(ratio), nil
}
