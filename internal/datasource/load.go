package datasource

import (
	"context"
	"fmt"

	"github.com/vanderheijden86/plmirror/pkg/loader"
	"github.com/vanderheijden86/plmirror/pkg/model"
	"github.com/vanderheijden86/plmirror/pkg/store"
)

// Load discovers, validates and picks the freshest source, then reads it.
func Load(ctx context.Context, opts DiscoveryOptions) ([]model.Item, DataSource, error) {
	opts.ValidateAfterDiscovery = true
	opts.IncludeInvalid = false
	sources, err := DiscoverSources(ctx, opts)
	if err != nil {
		return nil, DataSource{}, err
	}
	best, err := SelectBestSource(sources)
	if err != nil {
		return nil, DataSource{}, err
	}
	items, err := LoadFromSource(ctx, best)
	if err != nil {
		return nil, best, err
	}
	return items, best, nil
}

// LoadFromSource reads a specific DataSource, dispatching on its type.
func LoadFromSource(ctx context.Context, source DataSource) ([]model.Item, error) {
	switch source.Type {
	case SourceTypeSession:
		st, err := store.Open(source.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open session %s: %w", source.Path, err)
		}
		defer st.Close()
		return st.Load(ctx)

	case SourceTypeJSONL, SourceTypeM3U:
		return loader.LoadFile(source.Path)

	default:
		return nil, fmt.Errorf("unknown source type: %s", source.Type)
	}
}
