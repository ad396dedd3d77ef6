package incident

import (
	"errors"
	"sync"
	"testing"
)

func TestStore_ReplaceAndCurrent(t *testing.T) {
	s := NewStore()
	if _, err := s.Current(); !errors.Is(err, ErrNoBatch) {
		t.Fatalf("expected ErrNoBatch, got %v", err)
	}

	a := &Batch{Source: "a"}
	b := &Batch{Source: "b"}
	if prev := s.Replace(a); prev != nil {
		t.Errorf("first replace returned %v", prev)
	}
	if prev := s.Replace(b); prev != a {
		t.Errorf("expected previous batch a, got %v", prev)
	}
	cur, err := s.Current()
	if err != nil || cur != b {
		t.Errorf("Current = %v, %v", cur, err)
	}
}

func TestStore_ConcurrentReaders(t *testing.T) {
	s := NewStore()
	s.Replace(&Batch{Source: "seed", Records: make([]Record, 1)})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Replace(&Batch{Source: "new", Records: make([]Record, 2)})
		}()
		go func() {
			defer wg.Done()
			b, err := s.Current()
			if err != nil || (b.Len() != 1 && b.Len() != 2) {
				t.Errorf("observed partial batch: %v %v", b, err)
			}
		}()
	}
	wg.Wait()
}
