package httpclient

import (
	"context"
	"net"
	"net/http"
	"testing"
)

func TestNewSOCKS5_InvalidAddress(t *testing.T) {
	if _, err := NewSOCKS5("localhost"); err == nil {
		t.Fatal("expected error for address without port")
	}
}

func TestNewSOCKS5_ProxyDown(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	l.Close()

	c, err := NewSOCKS5(addr)
	if err != nil {
		t.Fatalf("NewSOCKS5: %v", err)
	}
	_, err = c.RequestJSON(context.Background(), "http://example.invalid/x", Options{Method: http.MethodGet}, nil)
	if err == nil {
		t.Fatal("expected request through a closed proxy to fail")
	}
}
