package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectURL(t *testing.T) {
	assert.Equal(t, "https://cdn.example.com/receipts/a.pdf", objectURL("https://cdn.example.com", "/receipts/a.pdf"))
	assert.Equal(t, "receipts/a.pdf", objectURL("", "receipts/a.pdf"))
}

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "minio:9000", want: "https://minio:9000"},
		{raw: "http://localhost:9000/", want: "http://localhost:9000"},
		{raw: "  ", wantErr: true},
	}
	for _, tt := range tests {
		got, err := normalizeEndpoint(tt.raw)
		if tt.wantErr {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestNewObjectStoreValidation(t *testing.T) {
	_, err := NewObjectStore(context.Background(), Config{Bucket: "receipts"})
	assert.Error(t, err)

	_, err = NewObjectStore(context.Background(), Config{Endpoint: "minio:9000"})
	assert.Error(t, err)

	store, err := NewObjectStore(context.Background(), Config{Endpoint: "minio:9000", Bucket: "receipts", StorageClass: "standard_ia"})
	require.NoError(t, err)
	assert.Equal(t, "STANDARD_IA", string(store.storageClass))

	assert.False(t, Config{Endpoint: "minio:9000"}.Enabled())
	assert.True(t, Config{Endpoint: "minio:9000", Bucket: "receipts"}.Enabled())
}
