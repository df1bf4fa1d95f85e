package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func TestNewPingsServer(t *testing.T) {
	srv := miniredis.RunT(t)
	client, err := New(context.Background(), srv.Addr())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer client.Close()

	client2, err := New(context.Background(), "redis://"+srv.Addr()+"/0")
	if err != nil {
		t.Fatalf("new from url: %v", err)
	}
	_ = client2.Close()
}

func TestNewRejectsEmptyAddress(t *testing.T) {
	if _, err := New(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty address")
	}
}
