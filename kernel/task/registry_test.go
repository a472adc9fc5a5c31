package task

import "testing"

func TestRegistryInsertAndRemove(t *testing.T) {
	r := NewRegistry()
	tk := newTestTask(t, "t0")

	if err := r.Insert(tk); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Len() != 1 {
		t.Fatalf("expected Len()=1, got %d", r.Len())
	}

	r.Remove(tk)
	if r.Len() != 0 {
		t.Fatalf("expected Len()=0 after Remove, got %d", r.Len())
	}
}

func TestRegistryInsertDuplicateFails(t *testing.T) {
	r := NewRegistry()
	tk := newTestTask(t, "t0")

	if err := r.Insert(tk); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Insert(tk); err != ErrAlreadyPresent {
		t.Fatalf("expected ErrAlreadyPresent, got %v", err)
	}
}

func TestRegistryWithWriteLockRemovesAtomically(t *testing.T) {
	r := NewRegistry()
	tk := newTestTask(t, "t0")
	r.Insert(tk)

	r.WithWriteLock(func(reg *Registry) {
		if tk.RefCount() == 0 {
			reg.RemoveLocked(tk)
		}
	})
	if r.Len() != 1 {
		t.Fatalf("expected task to remain registered (ref count nonzero), got Len()=%d", r.Len())
	}

	tk.DecRefCount(nil)
	r.WithWriteLock(func(reg *Registry) {
		if tk.RefCount() == 0 {
			reg.RemoveLocked(tk)
		}
	})
	if r.Len() != 0 {
		t.Fatalf("expected task to be removed once ref count hit 0, got Len()=%d", r.Len())
	}
}
