package policy

import (
	"context"
	"testing"
)

func TestDefaultPolicyAllowsKnownModels(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, DefaultPolicy)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	for _, model := range []string{"llama3-70b-8192", "llama3-8b-8192", "mixtral-8x7b-32768", "gemma-7b-it"} {
		decision, err := engine.Evaluate(ctx, map[string]interface{}{"model": model})
		if err != nil {
			t.Fatalf("Evaluate failed for %s: %v", model, err)
		}
		if decision != DecisionAllow {
			t.Fatalf("expected allow for %s, got %s", model, decision)
		}
	}
}

func TestDefaultPolicyBlocksUnknownModel(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, DefaultPolicy)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	decision, err := engine.Evaluate(ctx, map[string]interface{}{"model": "gpt-4"})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if decision != DecisionBlock {
		t.Fatalf("expected block, got %s", decision)
	}
}

func TestEngineRejectsInvalidPolicy(t *testing.T) {
	_, err := NewEngine(context.Background(), "package chat_policy\n\ndecision :=")
	if err == nil {
		t.Fatalf("expected error for invalid policy")
	}
}
