// stacube loads a STAC collection into a single datacube and writes it
// as JSON. Defaults come from the environment (and an optional .env
// file); flags override.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/geoscape-io/stacube/internal/assetcache"
	"github.com/geoscape-io/stacube/internal/config"
	"github.com/geoscape-io/stacube/internal/httpclient"
	"github.com/geoscape-io/stacube/internal/logger"
	"github.com/geoscape-io/stacube/internal/session"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	endpoint := flag.String("endpoint", cfg.Endpoint, "catalog root URL or local catalog file")
	collection := flag.String("collection", cfg.Collection, "collection identifier")
	bbox := flag.String("bbox", "", "output extent minx,miny,maxx,maxy (defaults to the collection extent)")
	crs := flag.String("crs", cfg.GridCRS, "output grid CRS")
	shape := flag.String("shape", "", "grid cells as WxH or a single square edge")
	assetKey := flag.String("asset-key", cfg.AssetKey, "asset name to classify items by")
	bands := flag.String("bands", strings.Join(cfg.Bands, ","), "raster bands to load, comma separated (empty loads all)")
	groupby := flag.String("groupby", cfg.GroupBy, "raster time slicing: id or time")
	vectorFields := flag.String("vector-fields", strings.Join(cfg.VectorFields, ","), "vector feature properties to load")
	pointFields := flag.String("point-fields", strings.Join(cfg.PointFields, ","), "point record fields to load")
	merge := flag.String("merge", cfg.MergeMethod, "point cell aggregation: mean, sum, min or max")
	interp := flag.String("interp", cfg.InterpMethod, "point gap filling: nearest or none")
	out := flag.String("out", "-", "output path, - for stdout")
	pretty := flag.Bool("pretty", false, "indent the JSON output")
	quiet := flag.Bool("quiet", false, "suppress progress logging")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println(Version)
		return 0
	}

	cfg.Endpoint = *endpoint
	cfg.Collection = *collection
	cfg.GridCRS = *crs
	cfg.AssetKey = *assetKey
	cfg.GroupBy = *groupby
	cfg.MergeMethod = *merge
	cfg.InterpMethod = *interp
	cfg.Bands = splitFlag(*bands)
	cfg.VectorFields = splitFlag(*vectorFields)
	cfg.PointFields = splitFlag(*pointFields)
	if *bbox != "" {
		bb, err := parseBBox(*bbox)
		if err != nil {
			fmt.Fprintln(os.Stderr, "stacube:", err)
			return 2
		}
		cfg.GridBBox = bb
	}
	if *shape != "" {
		w, h, err := parseShape(*shape)
		if err != nil {
			fmt.Fprintln(os.Stderr, "stacube:", err)
			return 2
		}
		cfg.ShapeX, cfg.ShapeY = w, h
	}

	level := cfg.LogLevel
	if *quiet {
		level = "error"
	}
	log := logger.Build(logger.Config{
		Level:     level,
		Console:   true,
		Component: "stacube",
	}, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts, err := session.FromAppConfig(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "stacube:", err)
		return 2
	}
	opts.Logger = log
	opts.HTTPClient = httpclient.NewOutbound()

	if cfg.Cache.Enabled {
		cache, err := assetcache.New(ctx, assetcache.Options{
			RedisAddr: cfg.Cache.RedisAddr,
			LRUSize:   cfg.Cache.LRUSize,
			TTL:       cfg.Cache.TTL,
			OpTimeout: cfg.Cache.OpTimeout,
		})
		if err != nil {
			log.Warn().Err(err).Msg("asset cache unavailable, loading without it")
		} else {
			opts.Cache = cache
			defer func() { _ = cache.Close() }()
		}
	}

	sess, err := session.New(ctx, opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, "stacube:", err)
		if errors.Is(err, session.ErrConfiguration) {
			return 2
		}
		return 1
	}

	ds, err := sess.Load(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "stacube:", err)
		return 1
	}

	var w io.Writer = os.Stdout
	if *out != "-" {
		f, err := os.Create(*out)
		if err != nil {
			fmt.Fprintln(os.Stderr, "stacube:", err)
			return 1
		}
		defer func() { _ = f.Close() }()
		w = f
	}
	enc := json.NewEncoder(w)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(ds); err != nil {
		fmt.Fprintln(os.Stderr, "stacube:", err)
		return 1
	}
	return 0
}

func splitFlag(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBBox(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("bbox %q: want minx,miny,maxx,maxy", s)
	}
	out := make([]float64, 4)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("bbox %q: %w", s, err)
		}
		out[i] = f
	}
	return out, nil
}

func parseShape(s string) (w, h int, err error) {
	if ws, hs, ok := strings.Cut(s, "x"); ok {
		w, err = strconv.Atoi(strings.TrimSpace(ws))
		if err == nil {
			h, err = strconv.Atoi(strings.TrimSpace(hs))
		}
	} else {
		w, err = strconv.Atoi(strings.TrimSpace(s))
		h = w
	}
	if err != nil || w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("shape %q: want WxH or a positive edge length", s)
	}
	return w, h, nil
}
