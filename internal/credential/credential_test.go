package credential

import (
	"errors"
	"sync"
	"testing"
)

func testPool(t *testing.T, n int) *Pool {
	t.Helper()
	creds := make([]Credential, n)
	for i := range creds {
		creds[i] = Credential{Name: string(rune('a' + i)), APIKey: "k"}
	}
	p, err := NewPool(creds)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	return p
}

func TestNewPoolEmpty(t *testing.T) {
	_, err := NewPool(nil)
	if !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("NewPool(nil) error = %v, want ErrNoCredentials", err)
	}
}

func TestAdvanceWraps(t *testing.T) {
	p := testPool(t, 3)
	if p.Cursor() != 0 {
		t.Fatalf("initial cursor = %d, want 0", p.Cursor())
	}
	want := []int{1, 2, 0, 1}
	for i, w := range want {
		if got := p.Advance(); got != w {
			t.Errorf("Advance #%d = %d, want %d", i+1, got, w)
		}
	}
}

func TestCurrentFollowsCursor(t *testing.T) {
	p := testPool(t, 2)
	if got := p.Current().Name; got != "a" {
		t.Fatalf("Current = %q, want a", got)
	}
	p.Advance()
	if got := p.Current().Name; got != "b" {
		t.Fatalf("Current after Advance = %q, want b", got)
	}
}

func TestAdvanceConcurrent(t *testing.T) {
	p := testPool(t, 7)
	const goroutines, each = 8, 100

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < each; j++ {
				p.Advance()
			}
		}()
	}
	wg.Wait()

	if got, want := p.Cursor(), (goroutines*each)%7; got != want {
		t.Errorf("cursor after %d advances = %d, want %d", goroutines*each, got, want)
	}
}

func TestNewPoolCopiesInput(t *testing.T) {
	creds := []Credential{{Name: "a"}, {Name: "b"}}
	p, err := NewPool(creds)
	if err != nil {
		t.Fatal(err)
	}
	creds[0].Name = "mutated"
	if got := p.At(0).Name; got != "a" {
		t.Errorf("pool saw caller mutation: At(0).Name = %q", got)
	}
}
