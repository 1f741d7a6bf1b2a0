package invoker

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// RateLimitError marks an upstream throttle (HTTP 429 or equivalent).
// Body keeps the provider's raw error text so the retry hint can be
// parsed out of it.
type RateLimitError struct {
	Status int
	Body   string
	Err    error
}

func (e *RateLimitError) Error() string {
	if e.Err != nil {
		return "rate limited: " + e.Err.Error()
	}
	return "rate limited"
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// Detail returns the provider text worth scanning for a retry hint.
func (e *RateLimitError) Detail() string {
	if e.Body != "" {
		return e.Body
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

// AsRateLimit unwraps err to a RateLimitError if there is one.
func AsRateLimit(err error) (*RateLimitError, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}

// throttlePatterns catch providers that report 429 conditions in
// message text only.
var throttlePatterns = []string{
	"rate limit",
	"rate_limit",
	"too many requests",
	"429",
	"throttl",
	"slow down",
}

// LooksRateLimited reports whether an error message reads like a
// throttle even without a typed status code.
func LooksRateLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range throttlePatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// hintRe matches the "try again in 1m5.5s" shape one provider puts in
// its 429 body. Best effort only; the format is not a contract.
var hintRe = regexp.MustCompile(`try again in (?:(\d+)m)?(\d+(?:\.\d+)?)s`)

// RetryHint parses an optional wait duration out of provider error
// text. Returns false when no hint is present or it does not parse.
func RetryHint(text string) (time.Duration, bool) {
	m := hintRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	var total float64
	if m[1] != "" {
		mins, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, false
		}
		total += float64(mins) * 60
	}
	secs, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, false
	}
	total += secs
	if total <= 0 {
		return 0, false
	}
	return time.Duration(total * float64(time.Second)), true
}
