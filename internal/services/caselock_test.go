package services

import (
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestCaseLockerSerializesSameCase(t *testing.T) {
	cl := newCaseLocker()
	caseID := uuid.New()

	var mu sync.Mutex
	inSection := 0
	maxInSection := 0

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := cl.Lock(caseID)
			defer unlock()
			mu.Lock()
			inSection++
			if inSection > maxInSection {
				maxInSection = inSection
			}
			mu.Unlock()
			mu.Lock()
			inSection--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if maxInSection != 1 {
		t.Fatalf("exclusive section violated: max concurrent holders = %d", maxInSection)
	}
	cl.mu.Lock()
	remaining := len(cl.entries)
	cl.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("lock entries must be dropped when released, %d remain", remaining)
	}
}

func TestCaseLockerIndependentCases(t *testing.T) {
	cl := newCaseLocker()
	unlockA := cl.Lock(uuid.New())
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := cl.Lock(uuid.New())
		unlockB()
		close(done)
	}()
	<-done
}
