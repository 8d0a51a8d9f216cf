package client

import (
	"strings"
	"testing"
	"time"
)

func TestStatusError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *StatusError
		want string
	}{
		{
			name: "with body preview",
			err:  &StatusError{StatusCode: 503, Status: "503 Service Unavailable", BodyPreview: "upstream overloaded"},
			want: "upstream returned 503 Service Unavailable: upstream overloaded",
		},
		{
			name: "without body preview",
			err:  &StatusError{StatusCode: 404, Status: "404 Not Found"},
			want: "upstream returned 404 Not Found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPreviewBody_Truncation(t *testing.T) {
	long := strings.Repeat("x", 1000)
	got := previewBody([]byte(long))
	if len(got) != bodyPreviewLimit {
		t.Errorf("len(preview) = %d, want %d", len(got), bodyPreviewLimit)
	}

	short := "short body"
	if got := previewBody([]byte(short)); got != short {
		t.Errorf("preview = %q, want %q", got, short)
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorClass
	}{
		{status: 429, want: ErrorClassRateLimit},
		{status: 500, want: ErrorClassServer},
		{status: 503, want: ErrorClassServer},
		{status: 400, want: ErrorClassClient},
		{status: 404, want: ErrorClassClient},
	}

	for _, tt := range tests {
		if got := classifyStatus(tt.status); got != tt.want {
			t.Errorf("classifyStatus(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestRetryPolicy_Normalize(t *testing.T) {
	p := RetryPolicy{
		MaxRetries: -1,
		BaseDelay:  10 * time.Second,
		MaxDelay:   1 * time.Second,
	}.normalize()

	if p.MaxRetries != 0 {
		t.Errorf("MaxRetries = %d, want 0", p.MaxRetries)
	}
	if p.MaxDelay != p.BaseDelay {
		t.Errorf("MaxDelay = %v, want clamped to BaseDelay %v", p.MaxDelay, p.BaseDelay)
	}
}

func TestRetryPolicy_BackoffDelay(t *testing.T) {
	policy := RetryPolicy{
		MaxRetries: 5,
		BaseDelay:  1 * time.Second,
		MaxDelay:   8 * time.Second,
	}
	noJitter := func() float64 { return 0.5 }

	tests := []struct {
		name       string
		attempt    int
		retryAfter string
		want       time.Duration
	}{
		{name: "first retry", attempt: 0, want: 1 * time.Second},
		{name: "second retry doubles", attempt: 1, want: 2 * time.Second},
		{name: "capped at max delay", attempt: 10, want: 8 * time.Second},
		{name: "server delay preferred", attempt: 0, retryAfter: "3", want: 3 * time.Second},
		{name: "fractional server delay", attempt: 0, retryAfter: "1.5", want: 1500 * time.Millisecond},
		{name: "invalid server delay ignored", attempt: 1, retryAfter: "soon", want: 2 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := policy.backoffDelay(tt.attempt, tt.retryAfter, noJitter)
			if got != tt.want {
				t.Errorf("backoffDelay(%d, %q) = %v, want %v", tt.attempt, tt.retryAfter, got, tt.want)
			}
		})
	}
}

func TestRetryPolicy_JitterBounds(t *testing.T) {
	policy := RetryPolicy{BaseDelay: 4 * time.Second, MaxDelay: 4 * time.Second}

	low := policy.backoffDelay(0, "", func() float64 { return 0 })
	high := policy.backoffDelay(0, "", func() float64 { return 0.999999 })

	if low != 3*time.Second {
		t.Errorf("low jitter delay = %v, want 3s (-25%%)", low)
	}
	if high < 4*time.Second || high >= 5*time.Second {
		t.Errorf("high jitter delay = %v, want in [4s, 5s)", high)
	}
}
