package identity

import (
	"testing"
	"time"
)

func TestAccountEnsureStatusDefaultsToPending(t *testing.T) {
	a := &Account{}

	a.EnsureStatus()

	if a.Status != StatusPending {
		t.Fatalf("expected default status %q, got %q", StatusPending, a.Status)
	}
}

func TestAccountStatusHelpers(t *testing.T) {
	cases := []struct {
		name         string
		status       AccountStatus
		check        func(*Account) bool
		expectResult bool
	}{
		{
			name:         "pending",
			status:       StatusPending,
			check:        (*Account).IsPending,
			expectResult: true,
		},
		{
			name:         "approved",
			status:       StatusApproved,
			check:        (*Account).IsApproved,
			expectResult: true,
		},
		{
			name:         "rejected",
			status:       StatusRejected,
			check:        (*Account).IsRejected,
			expectResult: true,
		},
		{
			name:         "approved is not pending",
			status:       StatusApproved,
			check:        (*Account).IsPending,
			expectResult: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			account := &Account{Status: tc.status}
			if got := tc.check(account); got != tc.expectResult {
				t.Fatalf("helper returned %t for status %q, expected %t", got, tc.status, tc.expectResult)
			}
		})
	}
}

func TestAccountCanAuthenticate(t *testing.T) {
	cases := []struct {
		name     string
		status   AccountStatus
		isActive bool
		expect   bool
	}{
		{name: "approved and active", status: StatusApproved, isActive: true, expect: true},
		{name: "approved but inactive", status: StatusApproved, isActive: false, expect: false},
		{name: "pending", status: StatusPending, isActive: true, expect: false},
		{name: "rejected", status: StatusRejected, isActive: true, expect: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			account := &Account{Status: tc.status, IsActive: tc.isActive}
			if got := account.CanAuthenticate(); got != tc.expect {
				t.Fatalf("CanAuthenticate returned %t for %q/active=%t, expected %t", got, tc.status, tc.isActive, tc.expect)
			}
		})
	}
}

func TestAccountIsLocked(t *testing.T) {
	now := time.Now()
	future := now.Add(30 * time.Minute)
	past := now.Add(-30 * time.Minute)

	cases := []struct {
		name        string
		lockedUntil *time.Time
		expect      bool
	}{
		{name: "no lock", lockedUntil: nil, expect: false},
		{name: "lock in effect", lockedUntil: &future, expect: true},
		{name: "lock lapsed", lockedUntil: &past, expect: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			account := &Account{LockedUntil: tc.lockedUntil}
			if got := account.IsLocked(now); got != tc.expect {
				t.Fatalf("IsLocked returned %t, expected %t", got, tc.expect)
			}
		})
	}
}

func TestAccountHasOutstandingReset(t *testing.T) {
	expiry := time.Now().Add(time.Hour)

	a := &Account{}
	if a.HasOutstandingReset() {
		t.Fatal("expected no outstanding reset on empty account")
	}

	a.PasswordResetHash = "abc123"
	if a.HasOutstandingReset() {
		t.Fatal("expected no outstanding reset without an expiry")
	}

	a.PasswordResetExpiry = &expiry
	if !a.HasOutstandingReset() {
		t.Fatal("expected outstanding reset with hash and expiry set")
	}
}

func TestAccountAddAttribute(t *testing.T) {
	a := &Account{}

	a.AddAttribute("roll_number", "CS-2024-117").AddAttribute("department", "physics")

	if a.Attributes["roll_number"] != "CS-2024-117" {
		t.Fatalf("expected roll_number attribute, got %#v", a.Attributes)
	}
	if a.Attributes["department"] != "physics" {
		t.Fatalf("expected department attribute, got %#v", a.Attributes)
	}
}
