package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAferoStore_SaveAndGet(t *testing.T) {
	store := NewAferoStore(afero.NewMemMapFs())
	ctx := context.Background()

	n, err := store.Save(ctx, "alice/profile_p1_123.png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, int64(9), n)

	r, err := store.Get(ctx, "alice/profile_p1_123.png")
	require.NoError(t, err)
	defer r.Close()

	content, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(content))

	require.NoError(t, store.Delete(ctx, "alice/profile_p1_123.png"))
	_, err = store.Get(ctx, "alice/profile_p1_123.png")
	assert.Error(t, err)
}

func TestImageService_UploadReturnsPublicURL(t *testing.T) {
	store := NewAferoStore(afero.NewMemMapFs())
	svc := NewImageService(store, "https://links.example.com")

	url, err := svc.Upload(context.Background(), "alice/icon_l1_42.png", strings.NewReader("icon"))
	require.NoError(t, err)
	assert.Equal(t, "https://links.example.com/uploads/alice/icon_l1_42.png", url)

	r, err := svc.Open(context.Background(), "alice/icon_l1_42.png")
	require.NoError(t, err)
	defer r.Close()
	content, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "icon", string(content))
}
