package cache

import "testing"

func TestKey(t *testing.T) {
	if got := Key("tenant", "slug", "tea"); got != "linkshop:tenant:slug:tea" {
		t.Fatalf("Key = %q", got)
	}
}
