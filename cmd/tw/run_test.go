package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRunCmd_SingleWorkflow(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"run",
		"--category", "manufacturing_equipment",
		"--budget", "75000",
		"--seed", "42",
	})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("run command failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Conversation ") {
		t.Errorf("expected a conversation trail, got: %s", out)
	}
	if !strings.Contains(out, "Status: ") {
		t.Errorf("expected a terminal status, got: %s", out)
	}
	// Whatever the market did with this seed, the workflow ends in a
	// disposition, never in flight.
	if !strings.Contains(out, "completed") && !strings.Contains(out, "market_limitations") {
		t.Errorf("expected completed or market_limitations, got: %s", out)
	}
}

func TestRunCmd_RejectsBadUrgency(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"run", "--urgency", "yesterday"})

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected urgency validation error")
	}
}
