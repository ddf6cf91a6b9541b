package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/geoscape-io/stacube/internal/assetcache"
	"github.com/geoscape-io/stacube/internal/config"
	"github.com/geoscape-io/stacube/internal/cube"
	"github.com/geoscape-io/stacube/internal/grid"
	"github.com/geoscape-io/stacube/internal/loader"
	"github.com/geoscape-io/stacube/internal/logger"
	"github.com/geoscape-io/stacube/internal/session"
	"github.com/geoscape-io/stacube/internal/stac"
)

// LoadRequest is the body of POST /v1/load. Every field overrides the
// corresponding process default; endpoint and collection fall back to
// STAC_ENDPOINT and STAC_COLLECTION when omitted.
type LoadRequest struct {
	Endpoint   string `json:"endpoint,omitempty"`
	Collection string `json:"collection,omitempty"`

	BBox  []float64 `json:"bbox,omitempty"`
	CRS   string    `json:"crs,omitempty"`
	Shape []int     `json:"shape,omitempty"`

	AssetKey       string            `json:"asset_key,omitempty"`
	AssetOverrides map[string]string `json:"asset_overrides,omitempty"`

	XCol string `json:"x_col,omitempty"`
	YCol string `json:"y_col,omitempty"`
	TCol string `json:"t_col,omitempty"`

	Bands         []string          `json:"bands,omitempty"`
	GroupBy       string            `json:"groupby,omitempty"`
	VectorFields  []string          `json:"vector_fields,omitempty"`
	VectorAliases map[string]string `json:"vector_aliases,omitempty"`
	PointFields   []string          `json:"point_fields,omitempty"`
	MergeMethod   string            `json:"merge_method,omitempty"`
	InterpMethod  string            `json:"interp_method,omitempty"`
}

type loadResponse struct {
	Collection string        `json:"collection"`
	Grid       string        `json:"grid"`
	Variables  []string      `json:"variables"`
	Cube       *cube.Dataset `json:"cube"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// CubeSource is the slice of a session the handler consumes.
type CubeSource interface {
	Load(ctx context.Context) (*cube.Dataset, error)
	Collection() *stac.Collection
	Grid() grid.Grid
}

// SessionFactory builds a session for one load request. Tests swap in
// a fake; production uses NewSessionFactory.
type SessionFactory func(ctx context.Context, opts session.Options) (CubeSource, error)

// NewSessionFactory injects the process-wide collaborators into every
// request's session.
func NewSessionFactory(httpc *http.Client, cache *assetcache.Cache) SessionFactory {
	return func(ctx context.Context, opts session.Options) (CubeSource, error) {
		opts.HTTPClient = httpc
		opts.Cache = cache
		return session.New(ctx, opts)
	}
}

// mergeRequest lays request overrides over the process defaults.
func mergeRequest(cfg config.Config, req LoadRequest) config.Config {
	if req.Endpoint != "" {
		cfg.Endpoint = req.Endpoint
	}
	if req.Collection != "" {
		cfg.Collection = req.Collection
	}
	if len(req.BBox) > 0 {
		cfg.GridBBox = req.BBox
	}
	if req.CRS != "" {
		cfg.GridCRS = req.CRS
	}
	switch len(req.Shape) {
	case 1:
		cfg.ShapeX, cfg.ShapeY = req.Shape[0], req.Shape[0]
	case 2:
		cfg.ShapeX, cfg.ShapeY = req.Shape[0], req.Shape[1]
	}
	if req.AssetKey != "" {
		cfg.AssetKey = req.AssetKey
	}
	if req.XCol != "" {
		cfg.XCol = req.XCol
	}
	if req.YCol != "" {
		cfg.YCol = req.YCol
	}
	if req.TCol != "" {
		cfg.TCol = req.TCol
	}
	if len(req.Bands) > 0 {
		cfg.Bands = req.Bands
	}
	if req.GroupBy != "" {
		cfg.GroupBy = req.GroupBy
	}
	if len(req.VectorFields) > 0 {
		cfg.VectorFields = req.VectorFields
	}
	if len(req.VectorAliases) > 0 {
		cfg.VectorAlias = req.VectorAliases
	}
	if len(req.PointFields) > 0 {
		cfg.PointFields = req.PointFields
	}
	if req.MergeMethod != "" {
		cfg.MergeMethod = req.MergeMethod
	}
	if req.InterpMethod != "" {
		cfg.InterpMethod = req.InterpMethod
	}
	return cfg
}

// HandleLoad resolves the requested collection, loads every modality
// and responds with the merged cube.
func HandleLoad(l zerolog.Logger, cfg config.Config, factory SessionFactory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}

		ctx := logger.WithCollection(r.Context(), req.Collection)
		log := logger.FromContext(ctx, &l)

		merged := mergeRequest(cfg, req)
		opts, err := session.FromAppConfig(merged)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if len(req.AssetOverrides) > 0 {
			opts.AssetKey.Overrides = req.AssetOverrides
		}
		opts.Logger = *log

		sess, err := factory(ctx, opts)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			log.Error().Err(err).Msg("session setup failed")
			return
		}

		ds, err := sess.Load(ctx)
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			log.Error().Err(err).Msg("cube load failed")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(loadResponse{
			Collection: sess.Collection().ID,
			Grid:       sess.Grid().String(),
			Variables:  ds.VarNames(),
			Cube:       ds,
		})
	}
}

func statusFor(err error) int {
	var le *loader.LoadError
	switch {
	case errors.Is(err, session.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, stac.ErrCollectionNotFound):
		return http.StatusNotFound
	case errors.Is(err, stac.ErrCatalogUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, cube.ErrVariableConflict), errors.Is(err, cube.ErrAxisLayout), errors.Is(err, cube.ErrAxisMismatch):
		return http.StatusUnprocessableEntity
	case errors.As(err, &le):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: msg})
}
