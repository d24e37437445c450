package node

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	_ "net/http/pprof"
	"strconv"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/filecoin-project/dealbot/db"
	"github.com/filecoin-project/dealbot/ipnimonitor"
	"github.com/filecoin-project/dealbot/metrics"
	"github.com/filecoin-project/dealbot/node/config"
	"github.com/filecoin-project/dealbot/storagemarket/types/dealstatus"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	logging "github.com/ipfs/go-log/v2"
	"github.com/rs/cors"
	"go.uber.org/fx"
)

var httplog = logging.Logger("http")

const defaultPageSize = 100

// ServeHTTP serves the metrics endpoint and a read-only view of the deals
// database on the configured listen address
func ServeHTTP(lc fx.Lifecycle, cfg *config.Dealbot, store *db.Store, monitor *ipnimonitor.Monitor) error {
	lst, err := net.Listen("tcp", cfg.Metrics.ListenAddress)
	if err != nil {
		return err
	}

	srv := &http.Server{Handler: Handler(store, monitor)}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				err := srv.Serve(lst)
				if !errors.Is(err, http.ErrServerClosed) {
					httplog.Warnf("http server failed: %s", err)
				}
			}()
			httplog.Infow("http server listening", "addr", lst.Addr().String())
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
	return nil
}

// Handler returns the dealbot http handler
func Handler(store *db.Store, monitor *ipnimonitor.Monitor) http.Handler {
	h := &handler{store: store, monitor: monitor}

	m := mux.NewRouter()
	m.HandleFunc("/healthz", h.healthz)

	// debugging
	if exporter, err := metrics.Exporter("dealbot"); err != nil {
		httplog.Warnw("metrics endpoint disabled", "err", err)
	} else {
		m.Handle("/debug/metrics", exporter)
	}
	m.PathPrefix("/debug/pprof").Handler(http.DefaultServeMux)

	// the JSON endpoints are read by dashboards on other origins
	api := m.NewRoute().Subrouter()
	api.Use(cors.AllowAll().Handler, gziphandler.GzipHandler)
	api.HandleFunc("/deals", h.listDeals).Methods(http.MethodGet)
	api.HandleFunc("/deals/{id}", h.getDeal).Methods(http.MethodGet)
	api.HandleFunc("/providers", h.listProviders).Methods(http.MethodGet)
	api.HandleFunc("/status", h.status).Methods(http.MethodGet)
	return m
}

type handler struct {
	store   *db.Store
	monitor *ipnimonitor.Monitor
}

func (h *handler) listDeals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	offset, err := intParam(q.Get("offset"), 0)
	if err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}
	limit, err := intParam(q.Get("limit"), defaultPageSize)
	if err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}
	if limit == 0 {
		limit = defaultPageSize
	}

	deals, err := h.store.Deals.List(r.Context(), offset, limit)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, deals)
}

func (h *handler) getDeal(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}

	deal, err := h.store.Deals.ByID(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		httpError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, deal)
}

func (h *handler) listProviders(w http.ResponseWriter, r *http.Request) {
	provs, err := h.store.Providers.ListAll(r.Context())
	if err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, provs)
}

type statusResponse struct {
	Deals              map[string]int `json:"deals"`
	ActiveVerification int64          `json:"activeVerification"`
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	res := statusResponse{Deals: make(map[string]int)}
	for _, st := range dealstatus.All() {
		st := st
		n, err := h.store.Deals.Count(r.Context(), &st)
		if err != nil {
			httpError(w, http.StatusInternalServerError, err)
			return
		}
		res.Deals[st.String()] = n
	}
	if h.monitor != nil {
		res.ActiveVerification = h.monitor.Active()
	}
	writeJSON(w, res)
}

func intParam(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil || i < 0 {
		return 0, errors.New("expected a non-negative integer: " + v)
	}
	return i, nil
}

type healthzResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// healthz reports whether the deals database can be reached
func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(healthzResponse{Error: err.Error()}) //nolint:errcheck
		return
	}
	writeJSON(w, healthzResponse{OK: true})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		httplog.Warnw("writing response", "err", err)
	}
}

func httpError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()}) //nolint:errcheck
}
