package admin

import "testing"

func TestCreateRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     CreateRequest
		wantErr string
	}{
		{name: "valid", req: CreateRequest{TenantID: "t", Email: "A@B.com", Name: "A", Password: "12345678", Role: RoleOwner}},
		{name: "default role", req: CreateRequest{TenantID: "t", Email: "a@b.com", Name: "A", Password: "12345678"}},
		{name: "missing tenant", req: CreateRequest{Email: "a@b.com", Name: "A", Password: "12345678"}, wantErr: "validation: tenant is required"},
		{name: "invalid email", req: CreateRequest{TenantID: "t", Email: "bad", Name: "A", Password: "12345678"}, wantErr: "validation: invalid email format"},
		{name: "short password", req: CreateRequest{TenantID: "t", Email: "a@b.com", Name: "A", Password: "short"}, wantErr: "validation: password must be at least 8 characters"},
		{name: "super not storable", req: CreateRequest{TenantID: "t", Email: "a@b.com", Name: "A", Password: "12345678", Role: RoleSuper}, wantErr: "validation: invalid role: must be owner or staff"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
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

func TestPrincipal_Actor(t *testing.T) {
	p := Principal{AdminID: "a1", Role: RoleOwner}
	if p.Actor() != "admin:a1" {
		t.Fatalf("actor = %q", p.Actor())
	}
	s := Principal{Role: RoleSuper}
	if !s.IsSuper() || s.Actor() != "super-admin" {
		t.Fatalf("super actor = %q", s.Actor())
	}
}
