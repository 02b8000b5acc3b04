// d8cart/services/cart_service.go

package services

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/norun9/d8cart/cart"
)

// CartService exposes the cart provided on each request context over HTTP.
type CartService struct {
	log       logrus.FieldLogger
	tracer    trace.Tracer
	mutations metric.Int64Counter
}

// maxProductBody bounds the AddToCart request body.
const maxProductBody = 64 << 10

type cartResponse struct {
	Products      []cart.Entry `json:"products"`
	TotalQuantity int          `json:"total_quantity"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewCartService wires the service to the global tracer and meter providers.
func NewCartService(log logrus.FieldLogger) (*CartService, error) {
	mutations, err := otel.Meter("d8cart").Int64Counter("cart.mutations",
		metric.WithDescription("Cart mutations that reached storage"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create cart.mutations counter")
	}
	return &CartService{
		log:       log,
		tracer:    otel.Tracer("d8cart"),
		mutations: mutations,
	}, nil
}

// Register mounts the cart routes on r.
func (s *CartService) Register(r *mux.Router) {
	r.HandleFunc("/cart", s.getCart).Methods(http.MethodGet)
	r.HandleFunc("/cart", s.clearCart).Methods(http.MethodDelete)
	r.HandleFunc("/cart/items", s.addToCart).Methods(http.MethodPost)
	r.HandleFunc("/cart/items/{id}/increment", s.increment).Methods(http.MethodPost)
	r.HandleFunc("/cart/items/{id}/decrement", s.decrement).Methods(http.MethodPost)
}

func (s *CartService) getCart(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer.Start(r.Context(), "GetCart")
	defer span.End()
	r = r.WithContext(ctx)

	store, ok := s.store(w, r)
	if !ok {
		return
	}
	s.writeCart(w, r, store)
}

func (s *CartService) addToCart(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer.Start(r.Context(), "AddToCart")
	defer span.End()
	r = r.WithContext(ctx)

	store, ok := s.store(w, r)
	if !ok {
		return
	}

	var p cart.Product
	body := http.MaxBytesReader(w, r.Body, maxProductBody)
	if err := json.NewDecoder(body).Decode(&p); err != nil {
		s.writeError(w, r, http.StatusBadRequest, errors.Wrap(err, "invalid product body"))
		return
	}
	if p.ID == "" {
		s.writeError(w, r, http.StatusBadRequest, errors.New("product id is required"))
		return
	}
	span.SetAttributes(attribute.String("app.product_id", p.ID))

	if err := store.AddToCart(ctx, p); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.mutations.Add(ctx, 1, metric.WithAttributes(attribute.String("op", "add")))
	s.writeCart(w, r, store)
}

func (s *CartService) increment(w http.ResponseWriter, r *http.Request) {
	s.changeQuantity(w, r, "Increment", "increment", (*cart.Store).Increment)
}

func (s *CartService) decrement(w http.ResponseWriter, r *http.Request) {
	s.changeQuantity(w, r, "Decrement", "decrement", (*cart.Store).Decrement)
}

func (s *CartService) changeQuantity(w http.ResponseWriter, r *http.Request, spanName, op string,
	apply func(*cart.Store, context.Context, string) error) {
	ctx, span := s.tracer.Start(r.Context(), spanName)
	defer span.End()
	r = r.WithContext(ctx)

	store, ok := s.store(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]
	span.SetAttributes(attribute.String("app.product_id", id))

	if err := apply(store, ctx, id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.mutations.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
	s.writeCart(w, r, store)
}

func (s *CartService) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer.Start(r.Context(), "ClearCart")
	defer span.End()
	r = r.WithContext(ctx)

	store, ok := s.store(w, r)
	if !ok {
		return
	}
	if err := store.Clear(ctx); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.mutations.Add(ctx, 1, metric.WithAttributes(attribute.String("op", "clear")))
	s.writeCart(w, r, store)
}

// store resolves the request's cart. A missing provider is a wiring bug and
// answers 500.
func (s *CartService) store(w http.ResponseWriter, r *http.Request) (*cart.Store, bool) {
	store, err := cart.FromContext(r.Context())
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return nil, false
	}
	return store, true
}

func (s *CartService) writeCart(w http.ResponseWriter, r *http.Request, store *cart.Store) {
	products := store.Products()
	total := 0
	for _, e := range products {
		total += e.Quantity
	}
	s.writeJSON(w, r, http.StatusOK, cartResponse{Products: products, TotalQuantity: total})
}

func (s *CartService) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, cart.ErrNotFound):
		s.writeError(w, r, http.StatusNotFound, err)
	case errors.Is(err, cart.ErrQuantityLimit):
		s.writeError(w, r, http.StatusConflict, err)
	default:
		s.writeError(w, r, http.StatusInternalServerError, err)
	}
}

// writeError logs err, records it on the request's span and answers with it.
func (s *CartService) writeError(w http.ResponseWriter, r *http.Request, code int, err error) {
	span := trace.SpanFromContext(r.Context())
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.Int("http.status_code", code))

	entry := requestLogger(r, s.log).WithError(err).WithField("status", code)
	if code >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Info("request rejected")
	}
	s.writeJSON(w, r, code, errorResponse{Error: err.Error()})
}

func (s *CartService) writeJSON(w http.ResponseWriter, r *http.Request, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		requestLogger(r, s.log).WithError(err).Warn("failed to write response")
	}
}
