package engine

import (
	"errors"
	"testing"

	"github.com/madaldho/designflow-app-sub000/internal/domain"
)

func TestHappyPathEdges(t *testing.T) {
	steps := []struct {
		from domain.Status
		ev   Event
		role domain.Role
		to   domain.Status
	}{
		{domain.StatusDraft, EventStartDesign, domain.RoleRequester, domain.StatusDesigning},
		{domain.StatusDraft, EventStartDesign, domain.RoleAdmin, domain.StatusDesigning},
		{domain.StatusDesigning, EventUploadProof, domain.RoleDesignerInternal, domain.StatusReadyForReview},
		{domain.StatusReadyForReview, EventReviewApprove, domain.RoleReviewer, domain.StatusApproved},
		{domain.StatusApproved, EventApprovalGrant, domain.RoleApprover, domain.StatusApprovedForPrint},
		{domain.StatusApprovedForPrint, EventPrintStart, domain.RoleDesignerExternal, domain.StatusInPrint},
		{domain.StatusInPrint, EventPrintComplete, domain.RoleDesignerExternal, domain.StatusReady},
		{domain.StatusReady, EventPickupConfirm, domain.RoleDesignerExternal, domain.StatusPickedUp},
	}
	for _, s := range steps {
		got, err := Transition(s.from, s.ev, s.role)
		if err != nil {
			t.Fatalf("%s + %s as %s: %v", s.from, s.ev, s.role, err)
		}
		if got != s.to {
			t.Fatalf("%s + %s = %s, want %s", s.from, s.ev, got, s.to)
		}
	}
}

func TestReworkLoop(t *testing.T) {
	got, err := Transition(domain.StatusReadyForReview, EventReviewRequestChanges, domain.RoleReviewer)
	if err != nil || got != domain.StatusChangesRequested {
		t.Fatalf("request changes: %s, %v", got, err)
	}
	got, err = Transition(domain.StatusChangesRequested, EventUploadProof, domain.RoleDesignerExternal)
	if err != nil || got != domain.StatusReadyForReview {
		t.Fatalf("re-upload: %s, %v", got, err)
	}
	got, err = Transition(domain.StatusApproved, EventApprovalReject, domain.RoleApprover)
	if err != nil || got != domain.StatusChangesRequested {
		t.Fatalf("approval reject: %s, %v", got, err)
	}
}

func TestUnknownEdge(t *testing.T) {
	_, err := Transition(domain.StatusDraft, EventReviewApprove, domain.RoleReviewer)
	var te TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransitionError, got %v", err)
	}
	if te.RoleDenied {
		t.Fatalf("missing edge should not report role denial")
	}
}

func TestEdgeRoleDenied(t *testing.T) {
	// the edge exists but the reviewer role may not take it
	_, err := Transition(domain.StatusApproved, EventApprovalGrant, domain.RoleReviewer)
	var te TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransitionError, got %v", err)
	}
	if !te.RoleDenied {
		t.Fatalf("expected role denial on existing edge")
	}
	// internal designers never run the printer
	_, err = Transition(domain.StatusApprovedForPrint, EventPrintStart, domain.RoleDesignerInternal)
	if !errors.As(err, &te) || !te.RoleDenied {
		t.Fatalf("expected role denial for internal designer print: %v", err)
	}
	// only the requester (or admin) kicks off design
	_, err = Transition(domain.StatusDraft, EventStartDesign, domain.RoleReviewer)
	if !errors.As(err, &te) || !te.RoleDenied {
		t.Fatalf("expected role denial for reviewer start_design: %v", err)
	}
}

func TestAdminOverridesEveryEdge(t *testing.T) {
	for from, events := range map[domain.Status][]Event{
		domain.StatusDraft:            {EventStartDesign, EventUploadProof},
		domain.StatusReadyForReview:   {EventReviewApprove, EventReviewRequestChanges},
		domain.StatusApproved:         {EventApprovalGrant, EventApprovalReject},
		domain.StatusApprovedForPrint: {EventPrintStart},
		domain.StatusInPrint:          {EventPrintComplete},
		domain.StatusReady:            {EventPickupConfirm},
	} {
		for _, ev := range events {
			if _, err := Transition(from, ev, domain.RoleAdmin); err != nil {
				t.Fatalf("admin blocked on %s + %s: %v", from, ev, err)
			}
		}
	}
}

func TestArchiveAndCancel(t *testing.T) {
	got, err := Transition(domain.StatusDesigning, EventArchive, domain.RoleAdmin)
	if err != nil || got != domain.StatusArchived {
		t.Fatalf("archive: %s, %v", got, err)
	}
	got, err = Transition(domain.StatusInPrint, EventCancel, domain.RoleAdmin)
	if err != nil || got != domain.StatusCancelled {
		t.Fatalf("cancel: %s, %v", got, err)
	}
	var te TransitionError
	_, err = Transition(domain.StatusDesigning, EventCancel, domain.RoleRequester)
	if !errors.As(err, &te) || !te.RoleDenied {
		t.Fatalf("non-admin cancel should be role-denied: %v", err)
	}
	_, err = Transition(domain.StatusPickedUp, EventArchive, domain.RoleAdmin)
	if err == nil {
		t.Fatalf("terminal status should not archive")
	}
}

func TestTerminalStatusesHaveNoEdges(t *testing.T) {
	for _, status := range []domain.Status{domain.StatusPickedUp, domain.StatusArchived, domain.StatusCancelled} {
		for _, ev := range []Event{EventStartDesign, EventUploadProof, EventReviewApprove, EventApprovalGrant, EventPrintStart, EventPickupConfirm} {
			if _, err := Transition(status, ev, domain.RoleAdmin); err == nil {
				t.Fatalf("expected no edge from %s via %s", status, ev)
			}
		}
	}
}
