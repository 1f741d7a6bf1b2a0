package invoker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dostlabs/dost/internal/credential"
)

func testPool(t *testing.T, n int) *credential.Pool {
	t.Helper()
	creds := make([]credential.Credential, n)
	for i := range creds {
		creds[i] = credential.Credential{Name: string(rune('a' + i)), APIKey: "k"}
	}
	p, err := credential.NewPool(creds)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestDoSuccessFirstTry(t *testing.T) {
	iv := New(testPool(t, 3), Options{})

	calls := 0
	out := iv.Do(context.Background(), func(_ context.Context, cred credential.Credential) (string, error) {
		calls++
		return "hello from " + cred.Name, nil
	})

	if !out.Success() {
		t.Fatalf("outcome kind = %v, want success", out.Kind)
	}
	if out.Text != "hello from a" || calls != 1 {
		t.Errorf("got text %q after %d calls", out.Text, calls)
	}
}

func TestDoRotatesOnRateLimit(t *testing.T) {
	pool := testPool(t, 3)
	iv := New(pool, Options{InitialDelay: time.Millisecond})

	var used []string
	out := iv.Do(context.Background(), func(_ context.Context, cred credential.Credential) (string, error) {
		used = append(used, cred.Name)
		if cred.Name == "c" {
			return "third time lucky", nil
		}
		return "", &RateLimitError{Status: 429}
	})

	if !out.Success() || out.Text != "third time lucky" {
		t.Fatalf("outcome = %+v", out)
	}
	if want := []string{"a", "b", "c"}; len(used) != 3 || used[0] != want[0] || used[1] != want[1] || used[2] != want[2] {
		t.Errorf("credential order = %v, want %v", used, want)
	}
}

func TestDoExhaustsPoolExactlyOnce(t *testing.T) {
	pool := testPool(t, 4)
	iv := New(pool, Options{InitialDelay: time.Millisecond})

	calls := 0
	out := iv.Do(context.Background(), func(context.Context, credential.Credential) (string, error) {
		calls++
		return "", &RateLimitError{Status: 429}
	})

	if out.Kind != KindRateLimited {
		t.Fatalf("outcome kind = %v, want rate limited", out.Kind)
	}
	if calls != pool.Size() {
		t.Errorf("op called %d times, want exactly %d (one lap, no extra pass)", calls, pool.Size())
	}
	if out.Notice == "" {
		t.Error("exhausted outcome has no user-visible notice")
	}
}

func TestDoFailureStopsImmediately(t *testing.T) {
	iv := New(testPool(t, 3), Options{})
	boom := errors.New("connection refused")

	calls := 0
	out := iv.Do(context.Background(), func(context.Context, credential.Credential) (string, error) {
		calls++
		return "", boom
	})

	if out.Kind != KindFailure {
		t.Fatalf("outcome kind = %v, want failure", out.Kind)
	}
	if !errors.Is(out.Err, boom) {
		t.Errorf("outcome err = %v, want wrapped %v", out.Err, boom)
	}
	if calls != 1 {
		t.Errorf("op called %d times, want 1", calls)
	}
}

func TestDoRetriesPerCredentialWithBackoff(t *testing.T) {
	iv := New(testPool(t, 1), Options{MaxRetries: 3, InitialDelay: time.Millisecond})

	calls := 0
	out := iv.Do(context.Background(), func(context.Context, credential.Credential) (string, error) {
		calls++
		if calls == 3 {
			return "ok", nil
		}
		return "", &RateLimitError{Status: 429}
	})

	if !out.Success() || calls != 3 {
		t.Fatalf("outcome = %+v after %d calls", out, calls)
	}
}

func TestDoSurfacesRetryHint(t *testing.T) {
	iv := New(testPool(t, 1), Options{InitialDelay: time.Millisecond})

	out := iv.Do(context.Background(), func(context.Context, credential.Credential) (string, error) {
		return "", &RateLimitError{
			Status: 429,
			Body:   `{"error":{"message":"Rate limit reached. Please try again in 7.66s."}}`,
		}
	})

	if out.Kind != KindRateLimited {
		t.Fatalf("outcome kind = %v", out.Kind)
	}
	if out.RetryAfter < 7*time.Second || out.RetryAfter > 8*time.Second {
		t.Errorf("RetryAfter = %v, want ~7.66s", out.RetryAfter)
	}
	if out.Notice == busyNotice {
		t.Error("notice should carry the parsed wait, not the generic busy message")
	}
}

func TestDoContextCancelledDuringBackoff(t *testing.T) {
	iv := New(testPool(t, 1), Options{MaxRetries: 2, InitialDelay: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	out := iv.Do(ctx, func(context.Context, credential.Credential) (string, error) {
		return "", &RateLimitError{Status: 429}
	})
	if out.Kind != KindFailure {
		t.Fatalf("outcome kind = %v, want failure on cancellation", out.Kind)
	}
}

func TestRetryHint(t *testing.T) {
	tests := []struct {
		in    string
		want  time.Duration
		found bool
	}{
		{"Please try again in 2m59.56s.", 2*time.Minute + 59560*time.Millisecond, true},
		{"try again in 7.66s", 7660 * time.Millisecond, true},
		{"try again in 30s", 30 * time.Second, true},
		{"try again later", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, found := RetryHint(tt.in)
		if found != tt.found {
			t.Errorf("RetryHint(%q) found = %v, want %v", tt.in, found, tt.found)
			continue
		}
		if found && got != tt.want {
			t.Errorf("RetryHint(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLooksRateLimited(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"Rate limit reached for model", true},
		{"HTTP 429 Too Many Requests", true},
		{"request was throttled", true},
		{"connection refused", false},
		{"model not found", false},
	}
	for _, tt := range tests {
		if got := LooksRateLimited(errors.New(tt.in)); got != tt.want {
			t.Errorf("LooksRateLimited(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
