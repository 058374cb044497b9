package messagequeue

import (
	"strings"
	"testing"
)

func TestValidateValidOrderCreated(t *testing.T) {
	data := []byte(`{"tenant_id":"t1","order_id":"o1","order_number":"LS1","status":"PENDING","total":"258.5","at":"2026-03-01T10:00:00Z"}`)
	if err := Validate(SubjectOrderCreated, data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateValidStatusChanged(t *testing.T) {
	data := []byte(`{"tenant_id":"t1","order_id":"o1","from":"PENDING","to":"PAID","by":"admin:a1","at":"2026-03-01T10:00:00Z"}`)
	if err := Validate(SubjectOrderStatusChanged, data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateValidTenantInvalidated(t *testing.T) {
	data := []byte(`{"tenant_id":"t1","keys":["tenant:id:t1","tenant:slug:tea"]}`)
	if err := Validate(SubjectTenantInvalidated, data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateUnknownSubject(t *testing.T) {
	data := []byte(`{"foo":"bar"}`)
	if err := Validate("orders.unknown", data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateInvalidJSON(t *testing.T) {
	err := Validate(SubjectOrderCreated, []byte(`{not valid json`))
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
	if !strings.Contains(err.Error(), "invalid JSON") {
		t.Fatalf("expected 'invalid JSON' in error, got: %v", err)
	}
}

func TestValidateSchemaFailures(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		data    string
		want    string
	}{
		{"wrong shape", SubjectOrderCreated, `"just a string"`, "schema validation failed"},
		{"missing tenant", SubjectOrderCreated, `{"order_id":"o1"}`, "tenant_id is required"},
		{"missing order", SubjectOrderStatusChanged, `{"tenant_id":"t1","to":"PAID"}`, "order_id is required"},
		{"unknown status", SubjectOrderStatusChanged, `{"tenant_id":"t1","order_id":"o1","to":"LOST"}`, "unknown order status"},
		{"bad total", SubjectOrderCreated, `{"tenant_id":"t1","order_id":"o1","total":"abc"}`, "schema validation failed"},
		{"invalidation without tenant", SubjectTenantInvalidated, `{"keys":["k"]}`, "tenant_id is required"},
		{"invalidation without keys", SubjectTenantInvalidated, `{"tenant_id":"t1","keys":[]}`, "keys are required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.subject, []byte(tt.data))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q in error, got: %v", tt.want, err)
			}
		})
	}
}
