package failure

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"propertysanta/engine/internal/llm"
)

func TestClassifyService(t *testing.T) {
	cases := []struct {
		err  error
		want Service
	}{
		{fmt.Errorf("wrapped: %w", llm.ErrRateLimited), ServiceQuotaExceeded},
		{llm.ErrUnauthorized, ServiceAuthFailure},
		{llm.ErrNotConfigured, ServiceAuthFailure},
		{context.DeadlineExceeded, ServiceNetworkError},
		{llm.ErrEgressBlocked, ServiceNetworkError},
		{llm.ErrUnavailable, ServiceServerError},
		{errors.New("something odd"), ServiceServerError},
	}
	for _, tc := range cases {
		if got := ClassifyService(tc.err); got != tc.want {
			t.Fatalf("ClassifyService(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}

func TestErrorIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("compare: %w", Wrap(KindParse, errors.New("eof"), "no json object"))
	if !errors.Is(err, &Error{Kind: KindParse}) {
		t.Fatalf("expected parse kind to match")
	}
	if errors.Is(err, &Error{Kind: KindComparisonMismatch}) {
		t.Fatalf("did not expect mismatch kind to match")
	}
	if KindOf(err) != KindParse {
		t.Fatalf("expected KindOf parse, got %q", KindOf(err))
	}
	if KindOf(errors.New("plain")) != "" {
		t.Fatalf("expected empty kind for plain error")
	}
}

func TestExternalServiceUnwrapsCause(t *testing.T) {
	err := External(llm.ErrRateLimited)
	if !errors.Is(err, llm.ErrRateLimited) {
		t.Fatalf("expected cause to unwrap")
	}
	if !errors.Is(err, &Error{Kind: KindExternalService, Service: ServiceQuotaExceeded}) {
		t.Fatalf("expected service to match")
	}
	if errors.Is(err, &Error{Kind: KindExternalService, Service: ServiceAuthFailure}) {
		t.Fatalf("did not expect auth service to match")
	}
}

func TestRetryable(t *testing.T) {
	if !External(llm.ErrUnavailable).Retryable() {
		t.Fatalf("server errors should be retryable")
	}
	if External(llm.ErrUnauthorized).Retryable() {
		t.Fatalf("auth failures should not be retryable")
	}
	if New(KindDuplicateSubmission, "kitchen before").Retryable() {
		t.Fatalf("duplicates should not be retryable")
	}
	detail := New(KindParse, "bad json").Detail()
	if detail.Kind != KindParse || !detail.Retryable || detail.Message != "bad json" {
		t.Fatalf("unexpected detail %#v", detail)
	}
}

func TestErrorString(t *testing.T) {
	err := External(llm.ErrRateLimited)
	if got := err.Error(); got != "external_service_error(quota_exceeded): llm rate limited" {
		t.Fatalf("unexpected error string %q", got)
	}
}
