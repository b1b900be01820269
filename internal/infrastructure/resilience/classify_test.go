package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
)

type statusErr int

func (e statusErr) Error() string { return fmt.Sprintf("status %d", int(e)) }

func statusOf(err error) (int, bool) {
	var s statusErr
	if errors.As(err, &s) {
		return int(s), true
	}
	return 0, false
}

func TestTransportClassifier(t *testing.T) {
	classify := TransportClassifier(statusOf)
	tests := []struct {
		name string
		err  error
		want ErrorClassification
	}{
		{"canceled", context.Canceled, ErrorClassification{}},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), ErrorClassification{RecordFailure: true}},
		{"open circuit", gobreaker.ErrOpenState, ErrorClassification{}},
		{"503", statusErr(503), ErrorClassification{Retryable: true, RecordFailure: true}},
		{"400", statusErr(400), ErrorClassification{}},
		{"net", &net.OpError{Op: "dial", Err: errors.New("refused")}, ErrorClassification{Retryable: true, RecordFailure: true}},
		{"other", errors.New("decode"), ErrorClassification{RecordFailure: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.err); got != tt.want {
				t.Fatalf("classify(%v) = %+v, want %+v", tt.err, got, tt.want)
			}
		})
	}
}

func TestWrapUnavailable(t *testing.T) {
	classify := TransportClassifier(statusOf)

	err := WrapUnavailable("generate", statusErr(502), classify)
	if !domain.IsKind(err, domain.ErrGenerationUnavailable) || !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected unavailable+temporary, got %v", err)
	}

	err = WrapUnavailable("generate", statusErr(404), classify)
	if !domain.IsKind(err, domain.ErrGenerationUnavailable) || domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected unavailable only, got %v", err)
	}

	if WrapUnavailable("generate", nil, classify) != nil {
		t.Fatalf("nil error must stay nil")
	}
}
