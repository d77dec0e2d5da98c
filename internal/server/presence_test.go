package server

import "testing"

func TestPresencePutAndSnapshot(t *testing.T) {
	reg := newPresenceRegistry()

	reg.Put("c1", "alice", Coords{Lat: 1, Lng: 2})
	reg.Put("c2", "bob", Coords{Lat: 3, Lng: 4})

	if !reg.Has("c1") || !reg.Has("c2") {
		t.Fatal("expected both sessions to be present")
	}
	if reg.Len() != 2 {
		t.Fatalf("expected 2 sessions, got %d", reg.Len())
	}

	snapshot := reg.Snapshot()
	if len(snapshot) != reg.Len() {
		t.Fatalf("snapshot length %d does not match registry size %d", len(snapshot), reg.Len())
	}
	if snapshot[0].ConnectionID != "c1" || snapshot[1].ConnectionID != "c2" {
		t.Errorf("snapshot not in insertion order: %v", snapshot)
	}
	if snapshot[0].Username != "alice" || snapshot[0].Coords.Lat != 1 {
		t.Errorf("unexpected first entry: %+v", snapshot[0])
	}
}

func TestPresenceRepeatedLoginOverwrites(t *testing.T) {
	reg := newPresenceRegistry()

	reg.Put("c1", "alice", Coords{Lat: 1, Lng: 2})
	reg.Put("c1", "alice2", Coords{Lat: 5, Lng: 6})

	if reg.Len() != 1 {
		t.Fatalf("expected 1 session after repeated login, got %d", reg.Len())
	}

	snapshot := reg.Snapshot()
	if snapshot[0].Username != "alice2" {
		t.Errorf("expected overwritten username alice2, got %q", snapshot[0].Username)
	}
	if snapshot[0].Coords.Lat != 5 {
		t.Errorf("expected overwritten coords, got %+v", snapshot[0].Coords)
	}
}

func TestPresenceRemove(t *testing.T) {
	reg := newPresenceRegistry()

	reg.Put("c1", "alice", Coords{})
	reg.Put("c2", "bob", Coords{})
	reg.Remove("c1")

	if reg.Has("c1") {
		t.Error("removed session still present")
	}
	if reg.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", reg.Len())
	}

	snapshot := reg.Snapshot()
	for _, u := range snapshot {
		if u.ConnectionID == "c1" {
			t.Error("snapshot contains removed connection")
		}
	}
}

func TestPresenceRemoveAbsentIsNoop(t *testing.T) {
	reg := newPresenceRegistry()

	reg.Put("c1", "alice", Coords{})
	reg.Remove("missing")
	reg.Remove("missing")

	if reg.Len() != 1 {
		t.Fatalf("expected registry unchanged, got %d sessions", reg.Len())
	}
}
