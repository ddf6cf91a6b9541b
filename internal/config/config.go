// Package config reads the process configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type InvalidationCfg struct {
	Enabled bool
	Topic   string
	Brokers string
	GroupID string
}

type CacheCfg struct {
	Enabled   bool
	RedisAddr string
	LRUSize   int
	TTL       time.Duration
	OpTimeout time.Duration
}

type Config struct {
	Addr     string
	LogLevel string

	Endpoint   string
	Collection string

	// Output grid. When GridCRS/GridBBox are set they define the grid
	// directly; otherwise ShapeX/ShapeY derive one from the collection.
	GridCRS  string
	GridBBox []float64
	ShapeX   int
	ShapeY   int

	AssetKey string
	XCol     string
	YCol     string
	TCol     string

	Bands        []string
	GroupBy      string
	VectorFields []string
	VectorAlias  map[string]string
	PointFields  []string
	MergeMethod  string
	InterpMethod string

	FetchWorkers int

	Cache        CacheCfg
	Invalidation InvalidationCfg

	MetricsEnabled bool
	MetricsAddr    string
	MetricsPath    string
}

func FromEnv() Config {
	return Config{
		Addr:     getenv("ADDR", ":8090"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		Endpoint:   getenv("STAC_ENDPOINT", ""),
		Collection: getenv("STAC_COLLECTION", ""),

		GridCRS:  getenv("GRID_CRS", ""),
		GridBBox: parseFloatList(getenv("GRID_BBOX", "")),
		ShapeX:   getint("GRID_SHAPE_X", 0),
		ShapeY:   getint("GRID_SHAPE_Y", 0),

		AssetKey: getenv("ASSET_KEY", "data"),
		XCol:     getenv("X_COL", "x"),
		YCol:     getenv("Y_COL", "y"),
		TCol:     getenv("T_COL", "time"),

		Bands:        parseList(getenv("RASTER_BANDS", "")),
		GroupBy:      getenv("GROUPBY", "id"),
		VectorFields: parseList(getenv("VECTOR_FIELDS", "")),
		VectorAlias:  parseStringMap(getenv("VECTOR_ALIASES", "")),
		PointFields:  parseList(getenv("POINT_FIELDS", "")),
		MergeMethod:  getenv("POINT_MERGE_METHOD", "mean"),
		InterpMethod: getenv("POINT_INTERP_METHOD", "nearest"),

		FetchWorkers: getint("FETCH_WORKERS", 8),

		Cache: CacheCfg{
			Enabled:   getbool("ASSET_CACHE_ENABLED", false),
			RedisAddr: getenv("REDIS_ADDR", "localhost:6379"),
			LRUSize:   getint("ASSET_CACHE_LRU_SIZE", 512),
			TTL:       getduration("ASSET_CACHE_TTL", 10*time.Minute),
			OpTimeout: getduration("ASSET_CACHE_OP_TIMEOUT", 250*time.Millisecond),
		},
		Invalidation: InvalidationCfg{
			Enabled: getbool("INVALIDATION_ENABLED", false),
			Topic:   getenv("KAFKA_TOPIC", "catalog-updates"),
			Brokers: getenv("KAFKA_BROKERS", "localhost:9092"),
			GroupID: getenv("KAFKA_GROUP_ID", "stacube-invalidator"),
		},

		MetricsEnabled: getbool("METRICS_ENABLED", false),
		MetricsAddr:    getenv("METRICS_ADDR", ":9090"),
		MetricsPath:    getenv("METRICS_PATH", "/metrics"),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// parse "a,b,c" into a slice, empty entries dropped
func parseList(s string) []string {
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

// parse "old=new,old2=new2" into a map
func parseStringMap(s string) map[string]string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	out := map[string]string{}
	for p := range strings.SplitSeq(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		k := strings.TrimSpace(kv[0])
		v := strings.TrimSpace(kv[1])
		if k != "" && v != "" {
			out[k] = v
		}
	}
	return out
}

// parse "-10,-10,10,10" into floats
func parseFloatList(s string) []float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var out []float64
	for p := range strings.SplitSeq(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil
		}
		out = append(out, f)
	}
	return out
}
