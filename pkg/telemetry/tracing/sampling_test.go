package tracing

import "testing"

func TestCreateSampler(t *testing.T) {
	tests := []struct {
		name     string
		strategy string
		ratio    float64
		wantErr  bool
		wantDesc string
	}{
		{name: "always", strategy: SamplerAlways, wantDesc: "ParentBased{root:AlwaysOnSampler"},
		{name: "default", strategy: "", wantDesc: "ParentBased{root:AlwaysOnSampler"},
		{name: "never", strategy: SamplerNever, wantDesc: "ParentBased{root:AlwaysOffSampler"},
		{name: "ratio", strategy: SamplerRatio, ratio: 0.25, wantDesc: "ParentBased{root:TraceIDRatioBased{0.25}"},
		{name: "ratio too high", strategy: SamplerRatio, ratio: 1.5, wantErr: true},
		{name: "ratio negative", strategy: SamplerRatio, ratio: -0.1, wantErr: true},
		{name: "unknown", strategy: "sometimes", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := newSampler(tt.strategy, tt.ratio)
			if (err != nil) != tt.wantErr {
				t.Fatalf("newSampler() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if got := s.Description(); len(got) < len(tt.wantDesc) || got[:len(tt.wantDesc)] != tt.wantDesc {
				t.Errorf("Description() = %q, want prefix %q", got, tt.wantDesc)
			}
		})
	}
}
