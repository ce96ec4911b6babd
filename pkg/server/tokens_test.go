package server

import (
	"errors"
	"testing"
	"time"
)

func TestSignerRoundTrip(t *testing.T) {
	t.Parallel()

	signer := NewSigner("secret-key")
	signed, err := signer.Sign("access-token-value", time.Minute)
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}
	if signed == "access-token-value" {
		t.Fatal("signed value must differ from the value")
	}

	got, err := signer.Verify(signed)
	if err != nil {
		t.Fatalf("failed to verify: %v", err)
	}
	if got != "access-token-value" {
		t.Errorf("expected the original value, got %q", got)
	}
}

func TestSignerRejects(t *testing.T) {
	t.Parallel()

	signer := NewSigner("secret-key")
	signed, err := signer.Sign("value", time.Minute)
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}

	expired := NewSigner("secret-key")
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expiredValue, err := expired.Sign("value", time.Minute)
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}

	testCases := []struct {
		name  string
		value string
	}{
		{name: "tampered", value: signed[:len(signed)-2] + "xx"},
		{name: "other key", value: mustSign(t, NewSigner("other-key"), "value")},
		{name: "expired", value: expiredValue},
		{name: "unsigned", value: "value"},
		{name: "empty", value: ""},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			if _, err := signer.Verify(testCase.value); !errors.Is(err, ErrBadSignature) {
				t.Errorf("expected ErrBadSignature, got %v", err)
			}
		})
	}
}

func mustSign(t *testing.T, signer *Signer, value string) string {
	t.Helper()
	signed, err := signer.Sign(value, time.Minute)
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}
	return signed
}

func TestVerifyState(t *testing.T) {
	t.Parallel()

	issuedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	state, err := NewState("jwt-secret", issuedAt)
	if err != nil {
		t.Fatalf("failed to create state: %v", err)
	}

	testCases := []struct {
		name    string
		state   string
		secret  string
		now     time.Time
		wantErr error
	}{
		{name: "valid", state: state, secret: "jwt-secret", now: issuedAt.Add(5 * time.Minute)},
		{name: "missing", state: "", secret: "jwt-secret", now: issuedAt, wantErr: ErrMissingState},
		{name: "expired", state: state, secret: "jwt-secret", now: issuedAt.Add(11 * time.Minute), wantErr: ErrInvalidState},
		{name: "wrong secret", state: state, secret: "other", now: issuedAt, wantErr: ErrInvalidState},
		{name: "garbage", state: "not-a-jwt", secret: "jwt-secret", now: issuedAt, wantErr: ErrInvalidState},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			err := VerifyState(testCase.state, testCase.secret, testCase.now)
			if !errors.Is(err, testCase.wantErr) {
				t.Errorf("expected %v, got %v", testCase.wantErr, err)
			}
		})
	}
}

func TestTSSDPattern(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		tssd string
		want bool
	}{
		{tssd: "mc563885gzs27c5t9-63k636ttgm", want: true},
		{tssd: "ABC-123", want: true},
		{tssd: "", want: false},
		{tssd: "evil.com/", want: false},
		{tssd: "a b", want: false},
		{tssd: "tenant\n", want: false},
	}

	for _, testCase := range testCases {
		if got := tssdPattern.MatchString(testCase.tssd); got != testCase.want {
			t.Errorf("%q: expected %v, got %v", testCase.tssd, testCase.want, got)
		}
	}
}

func TestRefreshFailureStatus(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		err  error
		want int
	}{
		{name: "invalid request", err: &oauth2Error{Code: "invalid_request"}, want: 401},
		{name: "invalid token", err: &oauth2Error{Code: "invalid_token"}, want: 400},
		{name: "other oauth2 error", err: &oauth2Error{Code: "unsupported_grant_type"}, want: 500},
		{name: "network", err: errors.New("connection refused"), want: 500},
	}

	for _, testCase := range testCases {
		if got := refreshFailureStatus(testCase.err); got != testCase.want {
			t.Errorf("%s: expected %d, got %d", testCase.name, testCase.want, got)
		}
	}
}
