package viewstate_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/truthinlistings/dashboard/internal/viewstate"
)

func TestMachine_HappyPath(t *testing.T) {
	t.Parallel()
	m := viewstate.New[string]()

	tk, ok := m.Begin()
	if !ok {
		t.Fatal("Begin refused from Idle")
	}
	if m.Snapshot().Phase != viewstate.Loading {
		t.Fatalf("expected loading")
	}
	if !m.Succeed(tk, "report") {
		t.Fatal("Succeed rejected current ticket")
	}
	s := m.Snapshot()
	if s.Phase != viewstate.Success || s.Value != "report" {
		t.Errorf("unexpected snapshot %+v", s)
	}
}

func TestMachine_BeginRefusedWhileLoading(t *testing.T) {
	t.Parallel()
	m := viewstate.New[int]()

	if _, ok := m.Begin(); !ok {
		t.Fatal("first Begin refused")
	}
	if _, ok := m.Begin(); ok {
		t.Fatal("second Begin accepted while loading")
	}
}

func TestMachine_StaleTicketAfterReset(t *testing.T) {
	t.Parallel()
	m := viewstate.New[int]()

	old, _ := m.Begin()
	m.Reset()
	if m.Succeed(old, 1) {
		t.Fatal("stale ticket applied after Reset")
	}
	if m.Snapshot().Phase != viewstate.Idle {
		t.Errorf("expected idle, got %v", m.Snapshot().Phase)
	}

	fresh, _ := m.Begin()
	if m.Fail(old, errors.New("late")) {
		t.Fatal("old ticket applied to new request")
	}
	if !m.Succeed(fresh, 2) {
		t.Fatal("fresh ticket rejected")
	}
}

func TestMachine_CloseMakesEverythingStale(t *testing.T) {
	t.Parallel()
	m := viewstate.New[int]()

	tk, _ := m.Begin()
	m.Close()
	if m.Succeed(tk, 1) || m.Fail(tk, errors.New("x")) {
		t.Fatal("result applied after Close")
	}
	if _, ok := m.Begin(); ok {
		t.Fatal("Begin accepted after Close")
	}
	if m.Snapshot().Active {
		t.Error("expected inactive snapshot")
	}
}

func TestMachine_DismissOnlyFromError(t *testing.T) {
	t.Parallel()
	m := viewstate.New[int]()

	if m.Dismiss() {
		t.Fatal("Dismiss accepted from Idle")
	}
	tk, _ := m.Begin()
	m.Fail(tk, errors.New("boom"))
	if !m.Dismiss() {
		t.Fatal("Dismiss refused from Error")
	}
	if s := m.Snapshot(); s.Phase != viewstate.Idle || s.Err != nil {
		t.Errorf("unexpected snapshot %+v", s)
	}
}

func TestMachine_OnChangeSeesTransitions(t *testing.T) {
	t.Parallel()
	m := viewstate.New[int]()
	var mu sync.Mutex
	var phases []viewstate.Phase
	m.OnChange(func(s viewstate.Snapshot[int]) {
		mu.Lock()
		phases = append(phases, s.Phase)
		mu.Unlock()
	})

	tk, _ := m.Begin()
	m.Succeed(tk, 3)
	m.Reset()

	mu.Lock()
	defer mu.Unlock()
	want := []viewstate.Phase{viewstate.Loading, viewstate.Success, viewstate.Idle}
	if len(phases) != len(want) {
		t.Fatalf("phases = %v, want %v", phases, want)
	}
	for i := range want {
		if phases[i] != want[i] {
			t.Errorf("phase[%d] = %v, want %v", i, phases[i], want[i])
		}
	}
}

func TestMachine_ConcurrentBeginGrantsOne(t *testing.T) {
	t.Parallel()
	m := viewstate.New[int]()

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := m.Begin(); ok {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if granted != 1 {
		t.Errorf("expected exactly one granted Begin, got %d", granted)
	}
}

func TestMachine_AbandonOnlyAffectsCurrentTicket(t *testing.T) {
	t.Parallel()
	m := viewstate.New[int]()

	old, _ := m.Begin()
	m.Reset()
	cur, _ := m.Begin()
	if m.Abandon(old) {
		t.Fatal("Abandon accepted a superseded ticket")
	}
	if m.Snapshot().Phase != viewstate.Loading {
		t.Fatal("superseded Abandon left loading")
	}
	if !m.Abandon(cur) {
		t.Fatal("Abandon rejected the current ticket")
	}
	if m.Snapshot().Phase != viewstate.Idle {
		t.Fatalf("expected idle, got %v", m.Snapshot().Phase)
	}
	if m.Succeed(cur, 1) {
		t.Fatal("abandoned ticket still accepted a result")
	}
	if _, ok := m.Begin(); !ok {
		t.Fatal("Begin refused after Abandon")
	}
}
