package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainauth "github.com/fleetworks/fleet-operations-backend/internal/domain/auth"
	"github.com/fleetworks/fleet-operations-backend/internal/domain/errors"
	"github.com/fleetworks/fleet-operations-backend/internal/domain/risk"
	"github.com/fleetworks/fleet-operations-backend/internal/infrastructure/auth"
	"github.com/fleetworks/fleet-operations-backend/internal/infrastructure/cache"
	"github.com/fleetworks/fleet-operations-backend/internal/infrastructure/config"
	"github.com/fleetworks/fleet-operations-backend/internal/infrastructure/database"
	"github.com/fleetworks/fleet-operations-backend/internal/infrastructure/telemetry"
	auditservice "github.com/fleetworks/fleet-operations-backend/internal/service/audit"
	complianceservice "github.com/fleetworks/fleet-operations-backend/internal/service/compliance"
	fleetservice "github.com/fleetworks/fleet-operations-backend/internal/service/fleet"
	riskservice "github.com/fleetworks/fleet-operations-backend/internal/service/risk"
)

// entitySource combines the two scoped repositories into the single
// source the rule engine loads entities through.
type entitySource struct {
	*database.VehicleRepository
	*database.DriverRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("loading configuration: %v", err)
	}

	slogger, err := telemetry.SetupLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("setting up logger: %v", err)
	}

	ctx := context.Background()
	provider, err := telemetry.InitializeOpenTelemetry(ctx, &telemetry.Config{
		ServiceName:    "fleet-operations-api",
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.OTLPEndpoint != "",
		SamplingRate:   cfg.Telemetry.SampleRate,
	})
	if err != nil {
		log.Fatalf("initializing telemetry: %v", err)
	}
	defer func() {
		if err := provider.Shutdown(ctx); err != nil {
			slogger.Error("telemetry shutdown failed", "error", err)
		}
	}()

	zlogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("creating service logger: %v", err)
	}
	defer func() { _ = zlogger.Sync() }()

	pool, err := database.NewConnectionPool(&cfg.Database, zlogger)
	if err != nil {
		log.Fatalf("connecting to database: %v", err)
	}
	defer func() { _ = pool.Close() }()

	var scoreCache cache.Cache
	if cfg.Redis.URL != "" {
		scoreCache, err = cache.NewRedisCache(&cfg.Redis, zlogger)
		if err != nil {
			log.Fatalf("connecting to redis: %v", err)
		}
		defer func() { _ = scoreCache.Close() }()
	}

	vehicles := database.NewVehicleRepository(pool.Pool(), zlogger)
	drivers := database.NewDriverRepository(pool.Pool(), zlogger)
	rules := database.NewComplianceRuleRepository(pool.Pool(), zlogger)
	events := database.NewComplianceEventRepository(pool.Pool(), zlogger)
	auditEntries := database.NewAuditEntryRepository(pool.Pool(), zlogger)
	organizations := database.NewOrganizationRepository(pool.Pool(), zlogger)
	stats := database.NewStatsRepository(pool.Pool(), zlogger)

	scope := domainauth.NewScopeResolver(organizations)
	recorder := auditservice.NewRecorder(zlogger, auditEntries)

	compliance := complianceservice.NewService(zlogger, rules, events,
		entitySource{vehicles, drivers}, scope, recorder)
	fleetSvc := fleetservice.NewService(zlogger, vehicles, drivers, scope, recorder)

	complianceMetrics, err := telemetry.NewComplianceMetrics()
	if err != nil {
		log.Fatalf("creating compliance metrics: %v", err)
	}
	scheduler := complianceservice.NewScheduler(zlogger, compliance, organizations,
		complianceMetrics, cfg.Compliance.Schedule, cfg.Compliance.RunTimeout)
	if err := scheduler.Start(); err != nil {
		log.Fatalf("starting compliance scheduler: %v", err)
	}
	defer scheduler.Stop()

	riskSvc := riskservice.NewService(zlogger, compliance, stats, stats, scoreCache,
		risk.Policy{
			MaintenanceBaseline: cfg.Risk.MaintenanceBaseline,
			IncidentMaxExpected: cfg.Risk.IncidentMaxExpected,
			ComplianceWeight:    cfg.Risk.ComplianceWeight,
			MaintenanceWeight:   cfg.Risk.MaintenanceWeight,
			IncidentWeight:      cfg.Risk.IncidentWeight,
		}, cfg.Risk.CacheTTL)

	verifier := auth.NewVerifier(cfg.Security.JWTSecret, cfg.Security.TokenExpiry)

	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("POST /v1/vehicles", authenticate(verifier,
		InstrumentHTTPHandler("vehicle_create", func(w http.ResponseWriter, r *http.Request) {
			var input fleetservice.VehicleInput
			if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
				writeError(w, errors.NewValidationError("INVALID_BODY", "request body is not valid JSON"))
				return
			}
			vehicle, err := fleetSvc.CreateVehicle(r.Context(), input)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, vehicle)
		})))

	mux.HandleFunc("GET /v1/vehicles", authenticate(verifier,
		InstrumentHTTPHandler("vehicle_list", func(w http.ResponseWriter, r *http.Request) {
			list, err := fleetSvc.ListVehicles(r.Context())
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, list)
		})))

	mux.HandleFunc("GET /v1/vehicles/{id}", authenticate(verifier,
		InstrumentHTTPHandler("vehicle_get", func(w http.ResponseWriter, r *http.Request) {
			id, err := pathID(r)
			if err != nil {
				writeError(w, err)
				return
			}
			vehicle, err := fleetSvc.GetVehicle(r.Context(), id)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, vehicle)
		})))

	mux.HandleFunc("PUT /v1/vehicles/{id}", authenticate(verifier,
		InstrumentHTTPHandler("vehicle_update", func(w http.ResponseWriter, r *http.Request) {
			id, err := pathID(r)
			if err != nil {
				writeError(w, err)
				return
			}
			var input fleetservice.VehicleInput
			if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
				writeError(w, errors.NewValidationError("INVALID_BODY", "request body is not valid JSON"))
				return
			}
			vehicle, err := fleetSvc.UpdateVehicle(r.Context(), id, input)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, vehicle)
		})))

	mux.HandleFunc("DELETE /v1/vehicles/{id}", authenticate(verifier,
		InstrumentHTTPHandler("vehicle_delete", func(w http.ResponseWriter, r *http.Request) {
			id, err := pathID(r)
			if err != nil {
				writeError(w, err)
				return
			}
			if err := fleetSvc.DeleteVehicle(r.Context(), id); err != nil {
				writeError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})))

	mux.HandleFunc("POST /v1/drivers", authenticate(verifier,
		InstrumentHTTPHandler("driver_create", func(w http.ResponseWriter, r *http.Request) {
			var input fleetservice.DriverInput
			if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
				writeError(w, errors.NewValidationError("INVALID_BODY", "request body is not valid JSON"))
				return
			}
			driver, err := fleetSvc.CreateDriver(r.Context(), input)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, driver)
		})))

	mux.HandleFunc("GET /v1/drivers", authenticate(verifier,
		InstrumentHTTPHandler("driver_list", func(w http.ResponseWriter, r *http.Request) {
			list, err := fleetSvc.ListDrivers(r.Context())
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, list)
		})))

	mux.HandleFunc("GET /v1/drivers/{id}", authenticate(verifier,
		InstrumentHTTPHandler("driver_get", func(w http.ResponseWriter, r *http.Request) {
			id, err := pathID(r)
			if err != nil {
				writeError(w, err)
				return
			}
			driver, err := fleetSvc.GetDriver(r.Context(), id)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, driver)
		})))

	mux.HandleFunc("PUT /v1/drivers/{id}", authenticate(verifier,
		InstrumentHTTPHandler("driver_update", func(w http.ResponseWriter, r *http.Request) {
			id, err := pathID(r)
			if err != nil {
				writeError(w, err)
				return
			}
			var input fleetservice.DriverInput
			if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
				writeError(w, errors.NewValidationError("INVALID_BODY", "request body is not valid JSON"))
				return
			}
			driver, err := fleetSvc.UpdateDriver(r.Context(), id, input)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, driver)
		})))

	mux.HandleFunc("DELETE /v1/drivers/{id}", authenticate(verifier,
		InstrumentHTTPHandler("driver_delete", func(w http.ResponseWriter, r *http.Request) {
			id, err := pathID(r)
			if err != nil {
				writeError(w, err)
				return
			}
			if err := fleetSvc.DeleteDriver(r.Context(), id); err != nil {
				writeError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})))

	mux.HandleFunc("POST /v1/compliance/rules", authenticate(verifier,
		InstrumentHTTPHandler("rule_create", func(w http.ResponseWriter, r *http.Request) {
			var input complianceservice.RuleInput
			if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
				writeError(w, errors.NewValidationError("INVALID_BODY", "request body is not valid JSON"))
				return
			}
			rule, err := compliance.CreateRule(r.Context(), input)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, rule)
		})))

	mux.HandleFunc("PUT /v1/compliance/rules/{id}", authenticate(verifier,
		InstrumentHTTPHandler("rule_update", func(w http.ResponseWriter, r *http.Request) {
			id, err := pathID(r)
			if err != nil {
				writeError(w, err)
				return
			}
			var input complianceservice.RuleInput
			if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
				writeError(w, errors.NewValidationError("INVALID_BODY", "request body is not valid JSON"))
				return
			}
			rule, err := compliance.UpdateRule(r.Context(), id, input)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, rule)
		})))

	mux.HandleFunc("DELETE /v1/compliance/rules/{id}", authenticate(verifier,
		InstrumentHTTPHandler("rule_deactivate", func(w http.ResponseWriter, r *http.Request) {
			id, err := pathID(r)
			if err != nil {
				writeError(w, err)
				return
			}
			if err := compliance.DeactivateRule(r.Context(), id); err != nil {
				writeError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		})))

	mux.HandleFunc("POST /v1/compliance/evaluate", authenticate(verifier,
		InstrumentHTTPHandler("compliance_evaluate", func(w http.ResponseWriter, r *http.Request) {
			result, err := compliance.Evaluate(r.Context())
			if err != nil {
				writeError(w, err)
				return
			}
			RecordEvaluationRun("manual")
			writeJSON(w, http.StatusOK, result)
		})))

	mux.HandleFunc("GET /v1/compliance/stats", authenticate(verifier,
		InstrumentHTTPHandler("compliance_stats", func(w http.ResponseWriter, r *http.Request) {
			s, err := compliance.GetStats(r.Context())
			if err != nil {
				writeError(w, err)
				return
			}
			UpdateOpenIssues(s.WarningEvents, s.CriticalEvents, s.OverdueEvents)
			writeJSON(w, http.StatusOK, s)
		})))

	mux.HandleFunc("GET /v1/compliance/events", authenticate(verifier,
		InstrumentHTTPHandler("compliance_events", func(w http.ResponseWriter, r *http.Request) {
			evts, err := compliance.Events(r.Context())
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, evts)
		})))

	mux.HandleFunc("GET /v1/risk/score", authenticate(verifier,
		InstrumentHTTPHandler("risk_score", func(w http.ResponseWriter, r *http.Request) {
			score, err := riskSvc.FleetRiskScore(r.Context())
			if err != nil {
				writeError(w, err)
				return
			}
			if principal, ok := domainauth.PrincipalFromContext(r.Context()); ok && principal.OrganizationID != nil {
				UpdateFleetRiskScore(principal.OrganizationID.String(), score.Score)
			}
			writeJSON(w, http.StatusOK, score)
		})))

	mux.HandleFunc("GET /v1/audit/recent", authenticate(verifier,
		InstrumentHTTPHandler("audit_recent", func(w http.ResponseWriter, r *http.Request) {
			entries, err := recorder.RecentActivity(r.Context(), 50)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, entries)
		})))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		slogger.Info("api server listening", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slogger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slogger.Error("server shutdown failed", "error", err)
	}
	slogger.Info("api server stopped")
}

// authenticate verifies the bearer token and attaches the principal and
// client address to the request context.
func authenticate(verifier *auth.Verifier, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, errors.NewUnauthenticatedError())
			return
		}
		principal, err := verifier.VerifyToken(token)
		if err != nil {
			writeError(w, err)
			return
		}

		ctx := domainauth.ContextWithPrincipal(r.Context(), principal)
		ctx = domainauth.ContextWithClientIP(ctx, clientIP(r))
		next(w, r.WithContext(ctx))
	}
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, errors.NewValidationError("INVALID_ID", "path id is not a valid UUID")
	}
	return id, nil
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := errors.GetStatusCode(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": err.Error(),
	})
}
