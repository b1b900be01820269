package usecase

import (
	"context"
	"math"
	"testing"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
	"github.com/kirillkom/campus-assistant/internal/core/textnorm"
)

func newMatcher(t *testing.T, pairs ...domain.InstructionPair) *InstructionMatcher {
	t.Helper()
	m, err := NewInstructionMatcher(context.Background(), pairs, textnorm.NewWithLemmatizer(nil, nil, 1))
	if err != nil {
		t.Fatalf("NewInstructionMatcher() error = %v", err)
	}
	return m
}

func TestInstructionMatchOverlapUsesLargerSet(t *testing.T) {
	m := newMatcher(t, domain.InstructionPair{Instruction: "library opening hours weekend", Output: "9 to 5"})

	res := m.Match("library hours")
	if res.Method != domain.MethodInstructionMatch || res.Answer != "9 to 5" {
		t.Fatalf("unexpected result: %+v", res)
	}
	// 2 shared tokens over max(2, 4).
	if math.Abs(res.Confidence-0.5) > 1e-12 {
		t.Fatalf("expected 0.5, got %v", res.Confidence)
	}
	if res.Instruction != "library opening hours weekend" {
		t.Fatalf("expected instruction text, got %q", res.Instruction)
	}
}

func TestInstructionMatchFirstPairWinsTies(t *testing.T) {
	m := newMatcher(t,
		domain.InstructionPair{Instruction: "hostel fee", Output: "first"},
		domain.InstructionPair{Instruction: "hostel rent", Output: "second"},
	)
	if res := m.Match("hostel"); res.Answer != "first" {
		t.Fatalf("expected first pair on tie, got %+v", res)
	}
}

func TestInstructionMatchNoOverlap(t *testing.T) {
	m := newMatcher(t, domain.InstructionPair{Instruction: "hostel fee", Output: "x"})
	res := m.Match("parking permit")
	if res.Method != domain.MethodNoMatch || res.Confidence != 0 || res.Answer != "" {
		t.Fatalf("expected empty no_match, got %+v", res)
	}
	if res := m.Match("the of and"); res.Method != domain.MethodNoMatch {
		t.Fatalf("stop-word-only query should not match, got %+v", res)
	}
}

func TestInstructionMatchSkipsEmptyInstructions(t *testing.T) {
	m := newMatcher(t,
		domain.InstructionPair{Instruction: "what is it?", Output: "stop words only"},
		domain.InstructionPair{Instruction: "bus schedule", Output: "every hour"},
	)
	if res := m.Match("bus"); res.Answer != "every hour" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestInstructionMatchEmpty(t *testing.T) {
	m := newMatcher(t)
	if res := m.Match("anything"); res.Method != domain.MethodNoInstructionData {
		t.Fatalf("expected no_instruction_data, got %s", res.Method)
	}
}
