package product

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestInput_Validate(t *testing.T) {
	tests := []struct {
		name    string
		in      Input
		wantErr string
	}{
		{name: "valid", in: Input{Name: " Mug ", Price: decimal.RequireFromString("58.50"), Stock: 3}},
		{name: "missing name", in: Input{Price: decimal.NewFromInt(1)}, wantErr: "validation: name is required"},
		{name: "negative price", in: Input{Name: "x", Price: decimal.NewFromInt(-1)}, wantErr: "validation: price must not be negative"},
		{name: "sub-cent price", in: Input{Name: "x", Price: decimal.RequireFromString("1.005")}, wantErr: "validation: price has more than 2 decimal places"},
		{name: "negative stock", in: Input{Name: "x", Stock: -1}, wantErr: "validation: stock must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || err.Error() != tt.wantErr {
				t.Fatalf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestInput_IsActiveDefault(t *testing.T) {
	var in Input
	if !in.IsActive() {
		t.Fatal("active should default to true")
	}
	f := false
	in.Active = &f
	if in.IsActive() {
		t.Fatal("explicit false ignored")
	}
}
