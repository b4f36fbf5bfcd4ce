package domain

import "testing"

func TestBlockEntity(t *testing.T) {
	batch := NewImportBatch("idl")
	batch.Entities = []*StructuredEntity{
		NewStructuredEntity(KindNeed, "First"),
		NewStructuredEntity(KindNeed, "Second"),
	}

	batch.BlockEntity(1, ValidationIssue{
		Kind:      IssueBadIdentity,
		EntityRef: "Second",
		Message:   "identity line is malformed",
	})

	if !batch.Blocked[1] {
		t.Error("expected entity 1 to be blocked")
	}
	if batch.Blocked[0] {
		t.Error("entity 0 should not be blocked")
	}
	if len(batch.Issues) != 1 {
		t.Fatalf("expected 1 issue, got %d", len(batch.Issues))
	}
	if batch.Issues[0].Severity != SeverityBlocking {
		t.Errorf("expected blocking severity, got %s", batch.Issues[0].Severity)
	}
	if !batch.HasBlockingIssues() {
		t.Error("expected HasBlockingIssues to be true")
	}
}

func TestHasBlockingIssues(t *testing.T) {
	batch := NewImportBatch("idl")
	if batch.HasBlockingIssues() {
		t.Error("empty batch should have no blocking issues")
	}

	batch.AddIssue(ValidationIssue{Severity: SeverityWarning, Kind: IssueLinkMismatch, Message: "link text disagrees"})
	if batch.HasBlockingIssues() {
		t.Error("warnings should not block")
	}

	batch.AddIssue(ValidationIssue{Severity: SeverityError, Kind: IssueVersionConflict, Message: "stale version"})
	if !batch.HasBlockingIssues() {
		t.Error("errors should block")
	}
}

func TestIssueBlocks(t *testing.T) {
	tests := []struct {
		severity Severity
		blocks   bool
	}{
		{SeverityBlocking, true},
		{SeverityError, true},
		{SeverityWarning, false},
	}

	for _, tt := range tests {
		issue := ValidationIssue{Severity: tt.severity}
		if issue.Blocks() != tt.blocks {
			t.Errorf("Blocks() for %s = %v, want %v", tt.severity, issue.Blocks(), tt.blocks)
		}
	}
}

func TestImportSettingsValidate(t *testing.T) {
	settings := DefaultImportSettings()
	if err := settings.Validate(); err != nil {
		t.Errorf("default settings should validate: %v", err)
	}
	if settings.NoopUpdates != NoopUpdateVersion {
		t.Errorf("expected default noop policy %s, got %s", NoopUpdateVersion, settings.NoopUpdates)
	}
	if settings.UnknownSetupElements != SetupElementReject {
		t.Errorf("expected default setup policy %s, got %s", SetupElementReject, settings.UnknownSetupElements)
	}

	settings.NoopUpdates = "bogus"
	if err := settings.Validate(); err == nil {
		t.Error("expected error for unknown noop policy")
	}

	settings = DefaultImportSettings()
	settings.UnknownSetupElements = "bogus"
	if err := settings.Validate(); err == nil {
		t.Error("expected error for unknown setup-element policy")
	}
}
