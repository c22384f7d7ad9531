package util

import (
	"sync"
	"testing"
	"time"
)

func TestSafeGoWithName_RunsFunction(t *testing.T) {
	var wg sync.WaitGroup
	ran := make(chan struct{}, 1)

	wg.Add(1)
	SafeGoWithName("worker", func() {
		defer wg.Done()
		ran <- struct{}{}
	})
	wg.Wait()

	select {
	case <-ran:
	default:
		t.Error("function did not run")
	}
}

func TestSafeGoWithName_RecoversPanic(t *testing.T) {
	done := make(chan struct{})

	SafeGoWithName("", func() {
		defer close(done)
		panic("boom")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("panicking goroutine never finished")
	}
}
