package customer

import (
	"errors"
	"testing"
	"time"

	"github.com/Strob0t/linkshop/internal/domain"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "91234567", want: "91234567"},
		{in: "+852 9123 4567", want: "91234567"},
		{in: "852-6123-4567", want: "61234567"},
		{in: "21234567", want: "21234567"},
		{in: "11234567", wantErr: true},
		{in: "9123456", wantErr: true},
		{in: "+86 91234567", wantErr: true},
		{in: "abcdefgh", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := NormalizePhone(tt.in)
		if tt.wantErr {
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("NormalizePhone(%q) err = %v, want validation error", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("NormalizePhone(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestVerifyOTPRequest_Validate(t *testing.T) {
	r := VerifyOTPRequest{Phone: "+85291234567", Code: "012345"}
	if err := r.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Phone != "91234567" {
		t.Fatalf("phone not normalized: %q", r.Phone)
	}
	for _, code := range []string{"", "12345", "1234567", "12a456"} {
		bad := VerifyOTPRequest{Phone: "91234567", Code: code}
		if err := bad.Validate(); err == nil {
			t.Errorf("code %q accepted", code)
		}
	}
}

func TestOTP_Expired(t *testing.T) {
	now := time.Now()
	o := OTP{ExpiresAt: now}
	if !o.Expired(now) {
		t.Fatal("code should be expired at its expiry instant")
	}
	if o.Expired(now.Add(-time.Second)) {
		t.Fatal("code should be live before expiry")
	}
}
