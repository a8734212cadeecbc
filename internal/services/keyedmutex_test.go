package services

import (
	"sync"
	"testing"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	var km keyedMutex
	const turns = 50

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.lock("u1|f1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	if counter != turns {
		t.Fatalf("counter = %d, want %d", counter, turns)
	}
}

func TestKeyedMutex_IndependentKeys(t *testing.T) {
	var km keyedMutex

	unlockA := km.lock("a")
	// A held lock on "a" must not block "b".
	done := make(chan struct{})
	go func() {
		unlockB := km.lock("b")
		unlockB()
		close(done)
	}()
	<-done
	unlockA()
}

func TestKeyedMutex_EntriesReleased(t *testing.T) {
	var km keyedMutex

	unlock := km.lock("k")
	unlock()

	km.mu.Lock()
	defer km.mu.Unlock()
	if len(km.held) != 0 {
		t.Fatalf("entries leak after release: %d held", len(km.held))
	}
}
