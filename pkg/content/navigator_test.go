package content

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/sheetsite/pkg/storage"
)

// gatedStore blocks reads of one slug until its context ends
type gatedStore struct {
	Store
	slow    string
	entered chan struct{}
}

func (g *gatedStore) PageRows(ctx context.Context, slug string) ([]storage.PageRow, error) {
	if slug == g.slow {
		close(g.entered)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return g.Store.PageRows(ctx, slug)
}

func TestNavigatorSupersedes(t *testing.T) {
	gw, backend := newGatewayForTest(t)
	seedPage(t, backend, remotePage("/areas/bondi", "Bondi"))
	store := &gatedStore{Store: gw, slow: "/services/roof-restoration", entered: make(chan struct{})}
	nav := NewNavigator(NewResolver(store, WithMock(NewMockSet())))

	errCh := make(chan error, 1)
	go func() {
		_, err := nav.Navigate(context.Background(), "/services/roof-restoration", "")
		errCh <- err
	}()
	<-store.entered

	second, err := nav.Navigate(context.Background(), "/areas/bondi", "")
	require.NoError(t, err)
	assert.Equal(t, "Bondi", second.Page.MetaTitle)

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(time.Second):
		t.Fatal("first navigation was not cancelled")
	}

	current := nav.Current()
	require.NotNil(t, current)
	assert.Equal(t, "/areas/bondi", current.Request.Path)
	assert.Equal(t, OriginRemote, current.Source.Origin)
}

func TestNavigatorKeepsLastOnNotFound(t *testing.T) {
	nav := NewNavigator(NewResolver(nil, WithMock(NewMockSet())))

	_, err := nav.Navigate(context.Background(), "/", "")
	require.NoError(t, err)

	_, err = nav.Navigate(context.Background(), "/nowhere", "")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "/", nav.Current().Page.Slug)
}

func TestNavigatorOrderFollowsBegin(t *testing.T) {
	nav := NewNavigator(NewResolver(nil, WithMock(NewMockSet())))

	first := nav.Begin(context.Background(), "/areas/bondi", "")
	second := nav.Begin(context.Background(), "/", "")

	latest, err := second.Wait()
	require.NoError(t, err)
	assert.Equal(t, "/", latest.Source.Slug)

	_, err = first.Wait()
	assert.ErrorIs(t, err, ErrSuperseded)
	assert.Equal(t, "/", nav.Current().Source.Slug)
}
