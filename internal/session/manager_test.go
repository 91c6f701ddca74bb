package session

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestManagerLifecycle(t *testing.T) {
	m := NewManager(Config{Logger: zerolog.Nop()})

	a := m.Create()
	b := m.Create()
	if a.ID == b.ID {
		t.Fatal("session ids collide")
	}
	if m.Len() != 2 {
		t.Fatalf("Len = %d, want 2", m.Len())
	}

	got, err := m.Get(a.ID)
	if err != nil || got != a {
		t.Fatalf("Get = %v, %v", got, err)
	}

	m.Delete(a.ID)
	m.Delete(a.ID)
	if _, err := m.Get(a.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
	if ids := m.List(); len(ids) != 1 || ids[0] != b.ID {
		t.Errorf("List = %v", ids)
	}

	m.CloseAll()
	if m.Len() != 0 {
		t.Errorf("Len after CloseAll = %d", m.Len())
	}
}
