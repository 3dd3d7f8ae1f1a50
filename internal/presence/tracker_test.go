package presence

import (
	"testing"
	"time"
)

func newTestTracker(now *time.Time) *Tracker {
	return NewTracker(2*time.Minute, 5*time.Minute).WithClock(func() time.Time { return *now })
}

func TestTracker_MultiTabLifecycle(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	tr := newTestTracker(&now)

	rec := tr.Connect("u1", "tab-a")
	if rec.Status != StatusOnline || rec.OpenConnections != 1 {
		t.Fatalf("unexpected record after first connect: %+v", rec)
	}

	rec = tr.Connect("u1", "tab-b")
	if rec.OpenConnections != 2 {
		t.Fatalf("expected 2 connections, got %d", rec.OpenConnections)
	}

	rec = tr.Disconnect("u1", "tab-a")
	if rec.Status != StatusOnline || rec.OpenConnections != 1 {
		t.Fatalf("closing one tab must not go offline: %+v", rec)
	}

	rec = tr.Disconnect("u1", "tab-b")
	if rec.Status != StatusOffline || rec.OpenConnections != 0 {
		t.Fatalf("closing last tab must go offline: %+v", rec)
	}
}

func TestTracker_UnknownDisconnectIgnored(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	tr := newTestTracker(&now)

	tr.Connect("u1", "tab-a")
	rec := tr.Disconnect("u1", "never-registered")
	if rec.Status != StatusOnline || rec.OpenConnections != 1 {
		t.Fatalf("unknown connection id must not decrement: %+v", rec)
	}
}

func TestTracker_SweepDecay(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	tr := newTestTracker(&now)
	tr.Connect("u1", "tab")

	// At the idle threshold exactly, nothing changes yet.
	if n := tr.Sweep(now.Add(2 * time.Minute)); n != 0 {
		t.Fatalf("expected no transition at threshold, got %d", n)
	}

	if n := tr.Sweep(now.Add(2*time.Minute + time.Second)); n != 1 {
		t.Fatalf("expected idle transition, got %d", n)
	}
	if got := tr.Get("u1").Status; got != StatusIdle {
		t.Fatalf("expected idle, got %s", got)
	}

	if n := tr.Sweep(now.Add(5*time.Minute + time.Second)); n != 1 {
		t.Fatalf("expected away transition, got %d", n)
	}
	if got := tr.Get("u1").Status; got != StatusAway {
		t.Fatalf("expected away, got %s", got)
	}

	// Repeat sweeps are no-ops.
	if n := tr.Sweep(now.Add(6 * time.Minute)); n != 0 {
		t.Fatalf("expected idempotent sweep, got %d transitions", n)
	}
}

func TestTracker_ActivityResetsDecay(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	tr := newTestTracker(&now)
	tr.Connect("u1", "tab")

	tr.Sweep(now.Add(3 * time.Minute))
	if got := tr.Get("u1").Status; got != StatusIdle {
		t.Fatalf("expected idle before activity, got %s", got)
	}

	now = now.Add(3 * time.Minute)
	rec := tr.Activity("u1")
	if rec.Status != StatusOnline {
		t.Fatalf("activity must restore online, got %s", rec.Status)
	}

	// Decay now counts from the new lastActive.
	if n := tr.Sweep(now.Add(time.Minute)); n != 0 {
		t.Fatalf("expected no decay one minute after activity, got %d", n)
	}
}

func TestTracker_SweepSkipsDisconnected(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	tr := newTestTracker(&now)
	tr.Connect("u1", "tab")
	tr.Disconnect("u1", "tab")

	if n := tr.Sweep(now.Add(time.Hour)); n != 0 {
		t.Fatalf("offline records must not decay, got %d transitions", n)
	}
	if got := tr.Get("u1").Status; got != StatusOffline {
		t.Fatalf("expected offline, got %s", got)
	}
}

func TestTracker_ManualOverrideSticks(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	tr := newTestTracker(&now)
	tr.Connect("u1", "tab")

	rec := tr.SetManual("u1", StatusAway)
	if rec.Status != StatusAway || !rec.IsManual {
		t.Fatalf("unexpected record after manual set: %+v", rec)
	}

	// Neither decay, activity, nor full disconnect moves a manual status.
	if n := tr.Sweep(now.Add(time.Hour)); n != 0 {
		t.Fatalf("manual record must not decay, got %d", n)
	}
	if got := tr.Activity("u1").Status; got != StatusAway {
		t.Fatalf("activity must not clear manual status, got %s", got)
	}
	if got := tr.Disconnect("u1", "tab").Status; got != StatusAway {
		t.Fatalf("disconnect must not clear manual status, got %s", got)
	}
}

func TestTracker_ManualOnlineClearsOverride(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	tr := newTestTracker(&now)
	tr.Connect("u1", "tab")
	tr.SetManual("u1", StatusOffline)

	rec := tr.SetManual("u1", StatusOnline)
	if rec.Status != StatusOnline || rec.IsManual {
		t.Fatalf("manual online must clear the override: %+v", rec)
	}

	// Decay applies again.
	if n := tr.Sweep(now.Add(3 * time.Minute)); n != 1 {
		t.Fatalf("expected decay after override cleared, got %d", n)
	}
}

func TestTracker_ClearManualRecomputes(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	tr := newTestTracker(&now)
	tr.Connect("u1", "tab")
	tr.SetManual("u1", StatusAway)

	now = now.Add(10 * time.Minute)
	rec := tr.ClearManual("u1")
	if rec.IsManual {
		t.Fatalf("expected override cleared")
	}
	// lastActive was set by SetManual 10 minutes ago, so the automatic
	// status is away, not online.
	if rec.Status != StatusAway {
		t.Fatalf("expected recomputed away, got %s", rec.Status)
	}
}

func TestTracker_CallPrecedence(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	tr := newTestTracker(&now)
	tr.Connect("u1", "tab")

	rec := tr.CallStarted("u1")
	if rec.Status != StatusOnCall {
		t.Fatalf("expected on_call, got %s", rec.Status)
	}

	// Activity pings and the sweep do not displace on_call.
	if got := tr.Activity("u1").Status; got != StatusOnCall {
		t.Fatalf("activity displaced on_call: %s", got)
	}
	if n := tr.Sweep(now.Add(time.Hour)); n != 0 {
		t.Fatalf("sweep displaced on_call, %d transitions", n)
	}

	rec = tr.CallEnded("u1")
	if rec.Status != StatusOnline {
		t.Fatalf("expected online after call with live connection, got %s", rec.Status)
	}
}

func TestTracker_CallEndRestoresParkedOverride(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	tr := newTestTracker(&now)
	tr.Connect("u1", "tab")
	tr.SetManual("u1", StatusAway)

	tr.CallStarted("u1")
	rec := tr.CallEnded("u1")
	if rec.Status != StatusAway || !rec.IsManual {
		t.Fatalf("pre-call override must be restored: %+v", rec)
	}
}

func TestTracker_ManualChangeDuringCallAppliesAfter(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	tr := newTestTracker(&now)
	tr.Connect("u1", "tab")
	tr.CallStarted("u1")

	rec := tr.SetManual("u1", StatusOffline)
	if rec.Status != StatusOnCall {
		t.Fatalf("manual change must not displace on_call: %+v", rec)
	}

	rec = tr.CallEnded("u1")
	if rec.Status != StatusOffline || !rec.IsManual {
		t.Fatalf("parked manual change must apply at call end: %+v", rec)
	}
}

func TestTracker_CallEndWithNoConnections(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	tr := newTestTracker(&now)
	tr.Connect("u1", "tab")
	tr.CallStarted("u1")
	tr.Disconnect("u1", "tab")

	// Still on_call while the session lives, even with zero sockets.
	if got := tr.Get("u1").Status; got != StatusOnCall {
		t.Fatalf("expected on_call while session is live, got %s", got)
	}

	rec := tr.CallEnded("u1")
	if rec.Status != StatusOffline {
		t.Fatalf("expected offline after call end with no connections, got %s", rec.Status)
	}
}

func TestTracker_OnChangeFiresPerTransition(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	tr := newTestTracker(&now)

	var emitted []Status
	tr.OnChange(func(r Record) { emitted = append(emitted, r.Status) })

	tr.Connect("u1", "a")  // offline -> online
	tr.Connect("u1", "b")  // no change
	tr.Activity("u1")      // no change
	tr.Disconnect("u1", "a")
	tr.Disconnect("u1", "b") // online -> offline

	want := []Status{StatusOnline, StatusOffline}
	if len(emitted) != len(want) {
		t.Fatalf("expected %d emissions, got %d: %v", len(want), len(emitted), emitted)
	}
	for i := range want {
		if emitted[i] != want[i] {
			t.Fatalf("emission %d: expected %s, got %s", i, want[i], emitted[i])
		}
	}
}

func TestTracker_GetUnknownUser(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	tr := newTestTracker(&now)

	rec := tr.Get("ghost")
	if rec.Status != StatusOffline || rec.OpenConnections != 0 {
		t.Fatalf("unknown user must read offline: %+v", rec)
	}
	if rec.ToUpdate().LastActive != 0 {
		t.Fatalf("never-seen user must serialize lastActive 0")
	}
}
