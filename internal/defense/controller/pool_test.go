package controller

import (
	"errors"
	"testing"

	"github.com/signalsfoundry/defense-coordinator/model"
)

func TestPoolAllocateAndGiveBack(t *testing.T) {
	p := NewPool("pool-1", "base", model.Vec2{}, 2, 0)

	if !p.Allocate() {
		t.Fatalf("first allocate should succeed")
	}
	if !p.Allocate() {
		t.Fatalf("second allocate should succeed")
	}
	if p.Allocate() {
		t.Fatalf("allocate from empty pool should fail")
	}
	if p.ReadyCount() != 0 || p.EmptySlots() != 2 {
		t.Fatalf("ready=%d empty=%d after draining", p.ReadyCount(), p.EmptySlots())
	}

	if err := p.GiveBack(); err != nil {
		t.Fatalf("GiveBack: %v", err)
	}
	if err := p.GiveBack(); err != nil {
		t.Fatalf("GiveBack: %v", err)
	}
	if err := p.GiveBack(); !errors.Is(err, ErrPoolFull) {
		t.Fatalf("expected ErrPoolFull on over-return, got %v", err)
	}
	if p.ReadyCount() != p.Capacity() {
		t.Fatalf("pool should be full again, ready=%d", p.ReadyCount())
	}
}

func TestPoolNonOperationalRefusesAllocation(t *testing.T) {
	p := NewPool("pool-1", "base", model.Vec2{}, 3, 0)
	p.SetOperational(false)

	if p.Allocate() {
		t.Fatalf("non-operational pool must refuse allocation")
	}
	// In-flight interceptors may still dock.
	p.ready-- // simulate an earlier allocation
	if err := p.GiveBack(); err != nil {
		t.Fatalf("non-operational pool must still accept give-backs: %v", err)
	}
}
