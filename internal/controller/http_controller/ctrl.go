package http_controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/horockey/eureka/internal/controller/http_controller/dto"
	"github.com/horockey/eureka/internal/model"
	"github.com/horockey/eureka/internal/processor"
	"github.com/horockey/go-toolbox/http_helpers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

type HttpController struct {
	serv    *http.Server
	apiKey  string
	proc    *processor.Processor
	logger  zerolog.Logger
	metrics *metrics
}

// New creates controller listening on addr.
// Empty apiKey disables request authentication.
func New(
	addr string,
	apiKey string,
	logger zerolog.Logger,
) *HttpController {
	return &HttpController{
		serv: &http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 5 * time.Second, //nolint: mnd
		},
		apiKey:  apiKey,
		logger:  logger,
		metrics: newMetrics(),
	}
}

func (ctrl *HttpController) Metrics() []prometheus.Collector {
	return ctrl.metrics.list()
}

// Handler binds the controller to pr and returns its router.
func (ctrl *HttpController) Handler(pr *processor.Processor) http.Handler {
	ctrl.proc = pr

	router := mux.NewRouter()
	router.Use(ctrl.metricsMW)

	router.HandleFunc("/health", ctrl.getHealthHandler).Methods(http.MethodGet)

	api := router.NewRoute().Subrouter()
	api.Use(ctrl.authMW)

	api.HandleFunc("/instances", ctrl.postInstanceHandler).Methods(http.MethodPost)
	api.HandleFunc("/instances", ctrl.getInstancesHandler).Methods(http.MethodGet)
	api.HandleFunc("/instances/{service}", ctrl.getServiceInstancesHandler).Methods(http.MethodGet)
	api.HandleFunc("/instances/{service}/{id}", ctrl.getInstanceHandler).Methods(http.MethodGet)
	api.HandleFunc("/instances/{service}/{id}", ctrl.deleteInstanceHandler).Methods(http.MethodDelete)
	api.HandleFunc("/instances/{service}/{id}/renew", ctrl.putRenewHandler).Methods(http.MethodPut)
	api.HandleFunc("/instances/{service}/{id}/status", ctrl.putStatusHandler).Methods(http.MethodPut)
	api.HandleFunc("/peer/events", ctrl.postPeerEventsHandler).Methods(http.MethodPost)

	return router
}

func (ctrl *HttpController) Start(ctx context.Context, pr *processor.Processor) (resErr error) {
	ctrl.serv.Handler = ctrl.Handler(pr)

	var wg sync.WaitGroup
	defer wg.Wait()

	errCh := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := ctrl.serv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		if ctx.Err() != nil && !errors.Is(ctx.Err(), context.Canceled) {
			resErr = errors.Join(resErr, fmt.Errorf("running context: %w", ctx.Err()))
		}

		sdCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		if err := ctrl.serv.Shutdown(sdCtx); err != nil {
			resErr = errors.Join(resErr, fmt.Errorf("shutting down server: %w", err))
		}
		return resErr

	case err := <-errCh:
		return fmt.Errorf("running server: %w", err)
	}
}

func (ctrl *HttpController) authMW(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if ctrl.apiKey != "" && req.Header.Get("X-Api-Key") != ctrl.apiKey {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, req)
	})
}

func (ctrl *HttpController) metricsMW(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func(ts time.Time) {
			ctrl.metrics.handleTimeHist.Observe(float64(time.Since(ts)))
		}(time.Now())

		route := "unknown"
		if cur := mux.CurrentRoute(req); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, req)

		ctrl.metrics.requestsCnt.WithLabelValues(req.Method, route).Inc()
		switch {
		case sw.status < http.StatusBadRequest:
			ctrl.metrics.successProcessCnt.Inc()
		default:
			ctrl.metrics.errProcessCnt.Inc()
		}
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (ctrl *HttpController) getHealthHandler(w http.ResponseWriter, _ *http.Request) {
	_ = http_helpers.RespondOK(w, map[string]string{"status": string(model.StatusUp)})
}

func (ctrl *HttpController) postInstanceHandler(w http.ResponseWriter, req *http.Request) {
	dtoInst := dto.Instance{}
	if err := json.NewDecoder(req.Body).Decode(&dtoInst); err != nil {
		ctrl.badRequest(w, fmt.Errorf("decoding body dto: %w", err))
		return
	}

	inst, err := dto.InstanceToModel(dtoInst)
	if err != nil {
		ctrl.badRequest(w, fmt.Errorf("converting dto to model: %w", err))
		return
	}
	inst.RegistrationTimestamp = time.Time{}
	inst.LastRenewalTimestamp = time.Time{}

	key, err := ctrl.proc.Register(inst)
	if err != nil {
		ctrl.respondProcErr(w, fmt.Errorf("registering instance in proc: %w", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(dto.RegisterResponse{InstanceID: key.InstanceID})
}

func (ctrl *HttpController) getInstancesHandler(w http.ResponseWriter, _ *http.Request) {
	all := ctrl.proc.All()
	_ = http_helpers.RespondOK(w, dto.ServicesResponse{
		Services: lo.MapValues(all, func(instances []model.ServiceInstance, _ string) []dto.Instance {
			return dto.NewInstances(instances)
		}),
	})
}

func (ctrl *HttpController) getServiceInstancesHandler(w http.ResponseWriter, req *http.Request) {
	service := mux.Vars(req)["service"]
	_ = http_helpers.RespondOK(w, dto.NewInstances(ctrl.proc.InstancesByService(service)))
}

func (ctrl *HttpController) getInstanceHandler(w http.ResponseWriter, req *http.Request) {
	inst, err := ctrl.proc.Instance(keyFromVars(req))
	if err != nil {
		ctrl.respondProcErr(w, fmt.Errorf("getting instance from proc: %w", err))
		return
	}

	_ = http_helpers.RespondOK(w, dto.NewInstance(inst))
}

func (ctrl *HttpController) deleteInstanceHandler(w http.ResponseWriter, req *http.Request) {
	if err := ctrl.proc.Deregister(keyFromVars(req)); err != nil {
		ctrl.respondProcErr(w, fmt.Errorf("deregistering instance in proc: %w", err))
		return
	}

	_ = http_helpers.RespondOK(w, nil)
}

func (ctrl *HttpController) putRenewHandler(w http.ResponseWriter, req *http.Request) {
	inst, err := ctrl.proc.Renew(keyFromVars(req))
	if err != nil {
		ctrl.respondProcErr(w, fmt.Errorf("renewing instance in proc: %w", err))
		return
	}

	_ = http_helpers.RespondOK(w, dto.NewInstance(inst))
}

func (ctrl *HttpController) putStatusHandler(w http.ResponseWriter, req *http.Request) {
	body := dto.StatusRequest{}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		ctrl.badRequest(w, fmt.Errorf("decoding body dto: %w", err))
		return
	}
	if body.Status == "" {
		ctrl.badRequest(w, model.ValidationError{Field: "status", Reason: "must not be empty"})
		return
	}

	status, err := model.ParseStatus(body.Status)
	if err != nil {
		ctrl.badRequest(w, fmt.Errorf("parsing status: %w", err))
		return
	}

	inst, err := ctrl.proc.SetStatus(keyFromVars(req), status)
	if err != nil {
		ctrl.respondProcErr(w, fmt.Errorf("setting status in proc: %w", err))
		return
	}

	_ = http_helpers.RespondOK(w, dto.NewInstance(inst))
}

func (ctrl *HttpController) postPeerEventsHandler(w http.ResponseWriter, req *http.Request) {
	body := dto.PeerEventsRequest{}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		ctrl.logger.
			Warn().
			Err(fmt.Errorf("decoding body dto: %w", err)).
			Msg("skipping malformed peer batch")
		_ = http_helpers.RespondOK(w, dto.PeerEventsResponse{Malformed: 1})
		return
	}

	events := make([]model.PeerEvent, 0, len(body.Events))
	malformed := 0
	for _, raw := range body.Events {
		ev, err := dto.PeerEventToModel(raw)
		if err != nil {
			malformed++
			ctrl.logger.
				Warn().
				Err(fmt.Errorf("converting dto to model: %w", err)).
				Msg("skipping malformed peer event")
			continue
		}
		events = append(events, ev)
	}

	res := ctrl.proc.ApplyPeerEvents(events)
	_ = http_helpers.RespondOK(w, dto.PeerEventsResponse{
		Applied:   res.Applied,
		Skipped:   res.Skipped,
		Malformed: res.Malformed + malformed,
	})
}

func (ctrl *HttpController) badRequest(w http.ResponseWriter, err error) {
	ctrl.logger.Debug().Err(err).Msg("rejecting request")
	_ = http_helpers.RespondWithErr(w, http.StatusBadRequest, err)
}

func (ctrl *HttpController) respondProcErr(w http.ResponseWriter, err error) {
	var (
		notFoundErr   model.NotFoundError
		validationErr model.ValidationError
	)

	switch {
	case errors.As(err, &notFoundErr):
		_ = http_helpers.RespondWithErr(w, http.StatusNotFound, notFoundErr)
	case errors.As(err, &validationErr):
		ctrl.logger.Debug().Err(err).Msg("rejecting request")
		_ = http_helpers.RespondWithErr(w, http.StatusBadRequest, validationErr)
	default:
		ctrl.logger.Error().Err(err).Send()
		_ = http_helpers.RespondWithErr(w, http.StatusInternalServerError, nil)
	}
}

func keyFromVars(req *http.Request) model.Key {
	vars := mux.Vars(req)
	return model.Key{ServiceName: vars["service"], InstanceID: vars["id"]}
}
