package vectorstore

import (
	"testing"

	"github.com/google/uuid"
)

func TestGrpcAddr(t *testing.T) {
	tests := []struct {
		name     string
		urlStr   string
		wantErr  bool
		wantHost string
		wantPort int
	}{
		{
			name:     "standard URL",
			urlStr:   "http://localhost:6333",
			wantHost: "localhost",
			wantPort: 6334, // gRPC port is HTTP port + 1
		},
		{
			name:     "custom port",
			urlStr:   "http://qdrant.internal:9000",
			wantHost: "qdrant.internal",
			wantPort: 9001,
		},
		{
			name:     "no port",
			urlStr:   "http://localhost",
			wantHost: "localhost",
			wantPort: 6334,
		},
		{
			name:     "no hostname",
			urlStr:   "http://:6333",
			wantHost: "localhost",
			wantPort: 6334,
		},
		{
			name:    "invalid URL",
			urlStr:  "://invalid",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, port, err := grpcAddr(tt.urlStr)
			if tt.wantErr {
				if err == nil {
					t.Fatal("grpcAddr() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("grpcAddr() error = %v", err)
			}
			if host != tt.wantHost {
				t.Errorf("host = %q, want %q", host, tt.wantHost)
			}
			if port != tt.wantPort {
				t.Errorf("port = %d, want %d", port, tt.wantPort)
			}
		})
	}
}

func TestNewQdrant_InvalidURL(t *testing.T) {
	_, err := NewQdrant("://invalid", "chunks", 4)
	if err == nil {
		t.Error("NewQdrant() with invalid URL should return error")
	}
}

func TestPointID(t *testing.T) {
	chunkID := "/docs/report.pdf_3f1a"

	first := pointID(chunkID)
	second := pointID(chunkID)
	if first != second {
		t.Errorf("pointID() not deterministic: %q vs %q", first, second)
	}
	if _, err := uuid.Parse(first); err != nil {
		t.Errorf("pointID() = %q is not a valid UUID: %v", first, err)
	}

	other := pointID("/docs/report.pdf_3f1b")
	if other == first {
		t.Error("pointID() collided for distinct chunk ids")
	}
}
