package models

import "testing"

func TestActiveRideID(t *testing.T) {
	if id, ok := ActiveRideID(GroupContext{GroupID: "g1"}); ok || id != "" {
		t.Fatalf("group context reported a ride: %q %v", id, ok)
	}
	if id, ok := ActiveRideID(ActiveRideContext{RideID: "r1", GroupID: "g1"}); !ok || id != "r1" {
		t.Fatalf("active context: %q %v", id, ok)
	}
	if id, ok := ActiveRideID(nil); ok || id != "" {
		t.Fatalf("nil context: %q %v", id, ok)
	}
}

func TestDisplayNamePreference(t *testing.T) {
	m := MemberPresence{MemberID: "m1", User: User{Name: "Ada", Username: "ada42"}}
	if got := m.DisplayName(); got != "Ada" {
		t.Fatalf("name preferred: %q", got)
	}
	m.User.Name = ""
	if got := m.DisplayName(); got != "ada42" {
		t.Fatalf("username fallback: %q", got)
	}
	m.User.Username = ""
	if got := m.DisplayName(); got != "m1" {
		t.Fatalf("member id fallback: %q", got)
	}
}

func TestHasLocation(t *testing.T) {
	var m MemberPresence
	if m.HasLocation() {
		t.Fatal("no coordinates reported as located")
	}
	lat := 1.0
	m.Lat = &lat
	if m.HasLocation() {
		t.Fatal("lat alone reported as located")
	}
	lon := 2.0
	m.Lon = &lon
	if !m.HasLocation() {
		t.Fatal("full coordinates not reported")
	}
}
