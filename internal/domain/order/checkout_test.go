package order

import (
	"errors"
	"testing"

	"github.com/Strob0t/linkshop/internal/domain"
)

func validCheckout() CheckoutRequest {
	return CheckoutRequest{
		Items:    []CheckoutItem{{ProductID: "p1", Quantity: 2}},
		Customer: Contact{Name: "Chan", Phone: "+852 9123 4567"},
	}
}

func TestCheckoutRequest_Validate(t *testing.T) {
	r := validCheckout()
	if err := r.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Customer.Phone != "91234567" {
		t.Fatalf("phone = %q", r.Customer.Phone)
	}
}

func TestCheckoutRequest_MergesDuplicates(t *testing.T) {
	r := validCheckout()
	r.Items = []CheckoutItem{{ProductID: "p1", Quantity: 2}, {ProductID: "p2", Quantity: 1}, {ProductID: "p1", Quantity: 3}}
	if err := r.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r.Items) != 2 || r.Items[0].Quantity != 5 {
		t.Fatalf("items = %+v", r.Items)
	}
	if ids := r.ProductIDs(); len(ids) != 2 || ids[0] != "p1" || ids[1] != "p2" {
		t.Fatalf("product ids = %v", ids)
	}
}

func TestCheckoutRequest_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *CheckoutRequest)
	}{
		{name: "no name", mutate: func(r *CheckoutRequest) { r.Customer.Name = " " }},
		{name: "bad phone", mutate: func(r *CheckoutRequest) { r.Customer.Phone = "123" }},
		{name: "no items", mutate: func(r *CheckoutRequest) { r.Items = nil }},
		{name: "zero qty", mutate: func(r *CheckoutRequest) { r.Items[0].Quantity = 0 }},
		{name: "qty too high", mutate: func(r *CheckoutRequest) { r.Items[0].Quantity = 100 }},
		{name: "merged qty too high", mutate: func(r *CheckoutRequest) {
			r.Items = []CheckoutItem{{ProductID: "p1", Quantity: 60}, {ProductID: "p1", Quantity: 40}}
		}},
		{name: "too many lines", mutate: func(r *CheckoutRequest) {
			r.Items = make([]CheckoutItem, MaxCheckoutLines+1)
		}},
		{name: "missing product", mutate: func(r *CheckoutRequest) { r.Items[0].ProductID = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validCheckout()
			tt.mutate(&r)
			if err := r.Validate(); !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}
