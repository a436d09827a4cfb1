package ratelimit

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestAllow_EnforcesBudgetPerWindow(t *testing.T) {
	l := New(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !l.Allow("10.0.0.1") {
			t.Fatalf("attempt %d should be inside the budget", i+1)
		}
	}
	if l.Allow("10.0.0.1") {
		t.Error("fourth attempt should be rejected")
	}
	if l.Remaining("10.0.0.1") != 0 {
		t.Errorf("expected 0 remaining, got %d", l.Remaining("10.0.0.1"))
	}

	// Another key has its own budget.
	if !l.Allow("10.0.0.2") {
		t.Error("a different client should not share the window")
	}
}

func TestAllow_WindowLapses(t *testing.T) {
	l := New(1, 10*time.Millisecond)

	if !l.Allow("10.0.0.1") {
		t.Fatal("first attempt should pass")
	}
	if l.Allow("10.0.0.1") {
		t.Fatal("second attempt inside the window should be rejected")
	}

	time.Sleep(20 * time.Millisecond)
	if !l.Allow("10.0.0.1") {
		t.Error("a lapsed window should reset the budget")
	}
}

func TestReset_ClearsKey(t *testing.T) {
	l := New(1, time.Minute)
	l.Allow("rita@example.com")
	if l.Allow("rita@example.com") {
		t.Fatal("budget should be exhausted")
	}
	l.Reset("rita@example.com")
	if !l.Allow("rita@example.com") {
		t.Error("reset key should get a fresh window")
	}
}

func TestClientIP(t *testing.T) {
	cases := []struct {
		name   string
		xff    string
		xri    string
		remote string
		want   string
	}{
		{"forwarded chain takes the first hop", "203.0.113.7, 10.0.0.1", "", "10.0.0.2:1234", "203.0.113.7"},
		{"real ip beats remote addr", "", "203.0.113.9", "10.0.0.2:1234", "203.0.113.9"},
		{"remote addr port stripped", "", "", "192.0.2.4:5678", "192.0.2.4"},
		{"remote addr without port", "", "", "192.0.2.4", "192.0.2.4"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/login", nil)
			r.RemoteAddr = tc.remote
			if tc.xff != "" {
				r.Header.Set("X-Forwarded-For", tc.xff)
			}
			if tc.xri != "" {
				r.Header.Set("X-Real-IP", tc.xri)
			}
			if got := ClientIP(r); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}
