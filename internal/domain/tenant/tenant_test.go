package tenant

import "testing"

func TestNew_ValidatesRequiredFields(t *testing.T) {
	if _, err := New("", "acme", 5, 1000); err == nil {
		t.Fatal("New() with empty name: want error")
	}
	if _, err := New("Acme", "", 5, 1000); err == nil {
		t.Fatal("New() with empty slug: want error")
	}
	if _, err := New("Acme", "acme", 0, 1000); err == nil {
		t.Fatal("New() with zero quota: want error")
	}
}

func TestNew_SetsDefaults(t *testing.T) {
	ten, err := New("Acme", "acme", 5, 1000)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if ten.ID == "" {
		t.Error("ID is empty")
	}
	if !ten.Active {
		t.Error("Active = false, want true")
	}
}

func TestCanStartSession(t *testing.T) {
	ten, _ := New("Acme", "acme", 2, 1000)

	if !ten.CanStartSession(1) {
		t.Error("CanStartSession(1) = false, want true (below quota)")
	}
	if ten.CanStartSession(2) {
		t.Error("CanStartSession(2) = true, want false (at quota)")
	}

	ten.Active = false
	if ten.CanStartSession(0) {
		t.Error("CanStartSession() on inactive tenant = true, want false")
	}
}
