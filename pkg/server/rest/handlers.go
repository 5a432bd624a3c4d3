package rest

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/lintang-b-s/navigatorx-ch/pkg/datastructure"
	"github.com/lintang-b-s/navigatorx-ch/pkg/util"
	"go.uber.org/zap"
)

type RoutingService interface {
	Route(ctx context.Context, startLat, startLon, endLat, endLon float64) (*datastructure.RouteResult, error)
	KShortestRoutes(ctx context.Context, startLat, startLon, endLat, endLon float64, k int) ([]datastructure.RouteResult, error)
}

type NavigationHandler struct {
	svc      RoutingService
	validate *validator.Validate
	trans    ut.Translator
	log      *zap.Logger
}

func NavigatorRouter(r chi.Router, svc RoutingService, log *zap.Logger) {
	english := en.New()
	uni := ut.New(english, english)
	trans, _ := uni.GetTranslator("en")
	validate := validator.New()
	_ = enTranslations.RegisterDefaultTranslations(validate, trans)

	handler := &NavigationHandler{svc: svc, validate: validate, trans: trans, log: log}

	r.Group(func(r chi.Router) {
		r.Route("/api/navigations", func(r chi.Router) {
			r.Post("/shortest-path", handler.ShortestPath)
			r.Post("/alternative-routes", handler.AlternativeRoutes)
		})
	})
}

// ShortestPathRequest model info
//
//	@Description	request body for a point to point route
type ShortestPathRequest struct {
	SrcLat float64 `json:"src_lat" validate:"gte=-90,lte=90"`
	SrcLon float64 `json:"src_lon" validate:"gte=-180,lte=180"`
	DstLat float64 `json:"dst_lat" validate:"gte=-90,lte=90"`
	DstLon float64 `json:"dst_lon" validate:"gte=-180,lte=180"`
}

func (s *ShortestPathRequest) Bind(r *http.Request) error {
	return nil
}

// AlternativeRoutesRequest model info
//
//	@Description	request body for the k fastest loopless routes
type AlternativeRoutesRequest struct {
	ShortestPathRequest
	K int `json:"k" validate:"required,gte=1,lte=10"`
}

func (s *AlternativeRoutesRequest) Bind(r *http.Request) error {
	return nil
}

// RouteResponse model info
//
//	@Description	one route. path is an encoded polyline
type RouteResponse struct {
	Path      string  `json:"path"`
	DistanceM float64 `json:"distance_m"`
	DurationS float64 `json:"duration_s"`
	Cost      float64 `json:"cost"`
	Algorithm string  `json:"algorithm"`
	NodeIDs   []int64 `json:"node_ids"`
	// Partial marks a route computed while the road network was still loading.
	Partial   bool    `json:"partial,omitempty"`
}

func NewRouteResponse(res datastructure.RouteResult) RouteResponse {
	return RouteResponse{
		Path:      res.Geometry,
		DistanceM: util.RoundFloat(res.DistanceM, 2),
		DurationS: util.RoundFloat(res.DurationS, 2),
		Cost:      util.RoundFloat(res.Cost, 2),
		Algorithm: res.Algorithm,
		NodeIDs:   res.NodeIDs,
		Partial:   res.Partial,
	}
}

// AlternativeRoutesResponse model info
//
//	@Description	routes in ascending cost order
type AlternativeRoutesResponse struct {
	Routes []RouteResponse `json:"routes"`
}

func (h *NavigationHandler) validateRequest(w http.ResponseWriter, r *http.Request, data any) bool {
	if err := h.validate.Struct(data); err != nil {
		render.Render(w, r, ErrValidation(err, translateError(err, h.trans)))
		return false
	}
	return true
}

// ShortestPath
//
//	@Summary		fastest route between two coordinates
//	@Description	snaps both coordinates to the nearest road network node and returns the fastest route. Uses contraction hierarchies when available, bidirectional A* otherwise.
//	@Tags			navigations
//	@Param			body	body	ShortestPathRequest	true	"request body shortest path"
//	@Accept			application/json
//	@Produce		application/json
//	@Router			/navigations/shortest-path [post]
//	@Success		200	{object}	RouteResponse
//	@Failure		400	{object}	ErrResponse
//	@Failure		404	{object}	ErrResponse
//	@Failure		504	{object}	ErrResponse
//	@Failure		500	{object}	ErrResponse
func (h *NavigationHandler) ShortestPath(w http.ResponseWriter, r *http.Request) {
	data := &ShortestPathRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if !h.validateRequest(w, r, data) {
		return
	}

	res, err := h.svc.Route(r.Context(), data.SrcLat, data.SrcLon, data.DstLat, data.DstLon)
	if err != nil {
		h.log.Debug("shortest path failed", zap.Error(err))
		render.Render(w, r, ErrRouting(err))
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, NewRouteResponse(*res))
}

// AlternativeRoutes
//
//	@Summary		k fastest loopless routes between two coordinates
//	@Description	Yen's k shortest paths over the road network. Returns fewer than k routes when fewer exist or the search runs out of time.
//	@Tags			navigations
//	@Param			body	body	AlternativeRoutesRequest	true	"request body alternative routes"
//	@Accept			application/json
//	@Produce		application/json
//	@Router			/navigations/alternative-routes [post]
//	@Success		200	{object}	AlternativeRoutesResponse
//	@Failure		400	{object}	ErrResponse
//	@Failure		404	{object}	ErrResponse
//	@Failure		500	{object}	ErrResponse
func (h *NavigationHandler) AlternativeRoutes(w http.ResponseWriter, r *http.Request) {
	data := &AlternativeRoutesRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	if !h.validateRequest(w, r, data) {
		return
	}

	routes, err := h.svc.KShortestRoutes(r.Context(), data.SrcLat, data.SrcLon, data.DstLat, data.DstLon, data.K)
	if err != nil {
		h.log.Debug("alternative routes failed", zap.Error(err))
		render.Render(w, r, ErrRouting(err))
		return
	}

	resp := AlternativeRoutesResponse{Routes: make([]RouteResponse, 0, len(routes))}
	for _, rt := range routes {
		resp.Routes = append(resp.Routes, NewRouteResponse(rt))
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}
