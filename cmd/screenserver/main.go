// Command screenserver is a thin net/http wrapper around the core
// compiler (spec §6 "Non-core HTTP surface"). It does no request
// validation beyond malformed-JSON and missing-field checks — schema
// validation is explicitly a collaborator concern the core never
// performs. No web framework is used, matching the teacher's
// zero-web-framework footprint.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/screenql/compiler/internal/compiler"
	"github.com/screenql/compiler/internal/config"
	"github.com/screenql/compiler/internal/errs"
	"github.com/screenql/compiler/internal/model"
)

const requestIDHeader = "X-Request-Id"

type server struct {
	comp *compiler.Compiler
}

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	configPath := flag.String("config", "", "path to a YAML config file (default: built-in market-data config)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadFile(*configPath)
		if err != nil {
			log.Fatalf("screenserver: load config: %v", err)
		}
		cfg = loaded
	}

	s := &server{comp: compiler.New(cfg)}
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/compile", s.handleCompile)

	log.Printf("screenserver: listening on %s", *addr)
	log.Fatal(http.ListenAndServe(*addr, withRequestID(mux)))
}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Timestamp: time.Now()})
}

type compileResponse struct {
	Success bool `json:"success"`
	Query   struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"query"`
	Graph string `json:"graph"`
	SQL   struct {
		Query      string      `json:"query"`
		Parameters interface{} `json:"parameters"`
	} `json:"sql"`
}

type errorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

func (s *server) handleCompile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found", Message: "no such route"})
		return
	}

	var q model.UserQuery
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad_request", Message: err.Error()})
		return
	}

	if details := validationErrors(&q); len(details) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:   "validation_failed",
			Message: "UserQuery failed validation",
			Details: details,
		})
		return
	}

	result, err := s.comp.Compile(&q)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "internal_error",
			Message: classifyError(err),
		})
		return
	}

	resp := compileResponse{Success: true}
	resp.Query.ID = q.ID
	resp.Query.Name = q.Name
	resp.Graph = result.Diagram
	resp.SQL.Query = result.SQL
	resp.SQL.Parameters = result.Parameters
	writeJSON(w, http.StatusOK, resp)
}

// validationErrors performs the minimal "is this even shaped like a
// UserQuery" check the core assumes has already happened (spec §3, §7:
// schema validation is the collaborator's responsibility, but a server
// stub with no validator in front of it would otherwise panic deep
// inside the builder on a blank query).
func validationErrors(q *model.UserQuery) []string {
	var details []string
	if q.ID == "" {
		details = append(details, "id: must not be empty")
	}
	if q.Name == "" {
		details = append(details, "name: must not be empty")
	}
	if q.Filter == nil {
		details = append(details, "filter: is required")
	}
	return details
}

func classifyError(err error) string {
	var unknownMetric *errs.UnknownMetric
	var groupingDim *errs.GroupingDimensionNotFound
	var noCommonPK *errs.NoCommonPrimaryKey
	switch {
	case errors.As(err, &unknownMetric), errors.As(err, &groupingDim), errors.As(err, &noCommonPK):
		return err.Error()
	default:
		return "internal compiler error"
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
