package loader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/geoscape-io/stacube/internal/assetcache"
	"github.com/geoscape-io/stacube/internal/assetcache/keys"
	"github.com/geoscape-io/stacube/internal/observability"
)

// AssetRef identifies one asset payload to fetch.
type AssetRef struct {
	Collection string
	ItemID     string
	Name       string
	Href       string
}

// Fetcher retrieves asset payloads, in parallel, through the optional
// asset cache. It is shared by the default loaders; parallelism stays
// fully inside a single loader call, invisible to the orchestrator.
type Fetcher struct {
	Client   *http.Client
	Cache    *assetcache.Cache
	Workers  int
	Modality string
	Log      zerolog.Logger
}

// FetchAll returns payloads aligned with refs. The first failure
// cancels outstanding fetches and is returned.
func (f Fetcher) FetchAll(ctx context.Context, refs []AssetRef) ([][]byte, error) {
	if len(refs) == 0 {
		return nil, nil
	}

	workers := f.Workers
	if workers <= 0 {
		workers = 8
	}
	if workers > len(refs) {
		workers = len(refs)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make([][]byte, len(refs))
	errs := make([]error, len(refs))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, ref := range refs {
		select {
		case <-ctx.Done():
		case sem <- struct{}{}:
			wg.Add(1)
			go func(i int, ref AssetRef) {
				defer wg.Done()
				defer func() { <-sem }()
				b, err := f.fetchOne(ctx, ref)
				if err != nil {
					errs[i] = err
					cancel()
					return
				}
				out[i] = b
			}(i, ref)
		}
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("asset %s/%s: %w", refs[i].ItemID, refs[i].Name, err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (f Fetcher) fetchOne(ctx context.Context, ref AssetRef) ([]byte, error) {
	key := keys.Key(ref.Collection, ref.ItemID, ref.Name)
	if b, ok := f.Cache.Get(ctx, key); ok {
		return b, nil
	}

	start := time.Now()
	b, err := f.read(ctx, ref.Href)
	observability.ObserveAssetFetch(f.Modality, err, time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	f.Cache.Put(ctx, key, b)
	f.Log.Debug().Str("item", ref.ItemID).Str("asset", ref.Name).
		Int("bytes", len(b)).Msg("fetched asset")
	return b, nil
}

func (f Fetcher) read(ctx context.Context, href string) ([]byte, error) {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, href, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		client := f.Client
		if client == nil {
			client = http.DefaultClient
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("GET %s: %w", href, err)
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("GET %s: status %d", href, resp.StatusCode)
		}
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", href, err)
		}
		return b, nil
	}

	href = strings.TrimPrefix(href, "file://")
	b, err := os.ReadFile(href)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return b, nil
}
