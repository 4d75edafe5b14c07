package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	hpprof "net/http/pprof"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"idlecraft/internal/catalog"
	"idlecraft/internal/production"
	logx "idlecraft/pkg/logx"
)

// Handler builds the router for cfg. Exposed for tests.
func (s *Service) Handler(cfg Config) http.Handler {
	r := mux.NewRouter()
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
	api := r.PathPrefix("/api").Subrouter()
	// Subrouters keep their own handler; without it a method mismatch is a 404.
	api.MethodNotAllowedHandler = r.MethodNotAllowedHandler
	api.Use(withAuth(cfg.Token))

	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/progress", s.handleProgress).Methods("GET")
	api.HandleFunc("/inventory", s.handleInventory).Methods("GET")
	api.HandleFunc("/recipes", s.handleRecipes).Methods("GET")
	api.HandleFunc("/actions/{kind}/{id}", s.limited(s.handleStartAction)).Methods("POST")
	api.HandleFunc("/actions", s.handleCancelAction).Methods("DELETE")
	api.HandleFunc("/afk/{skill}/{resource}", s.limited(s.handleStartAFK)).Methods("POST")
	api.HandleFunc("/afk", s.handleStopAFK).Methods("DELETE")
	api.HandleFunc("/tome/cancel", s.handleCancelTome).Methods("POST")
	api.HandleFunc("/tome/{id}", s.limited(s.handleEquipTome)).Methods("POST")
	api.HandleFunc("/tome", s.handleUnequipTome).Methods("DELETE")
	api.HandleFunc("/tools/{id}", s.handleEquipTool).Methods("POST")
	api.HandleFunc("/save", s.handleSave).Methods("POST")

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}).Methods("GET")

	if cfg.Pprof {
		dbg := r.PathPrefix("/debug/pprof").Subrouter()
		dbg.Use(withAuth(cfg.Token))
		dbg.HandleFunc("/cmdline", hpprof.Cmdline)
		dbg.HandleFunc("/profile", hpprof.Profile)
		dbg.HandleFunc("/symbol", hpprof.Symbol)
		dbg.HandleFunc("/trace", hpprof.Trace)
		dbg.PathPrefix("/").HandlerFunc(hpprof.Index)
	}
	return r
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func withAuth(token string) mux.MiddlewareFunc {
	tok := strings.TrimSpace(token)
	return func(next http.Handler) http.Handler {
		if tok == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.URL.Query().Get("token")
			if got == "" {
				got = strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
			}
			if got != tok {
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Service) limited(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.lim.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limited")
			return
		}
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// statusFor maps engine errors onto HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, production.ErrBusy), errors.Is(err, production.ErrNotEquipped):
		return http.StatusConflict
	case errors.Is(err, production.ErrLevel), errors.Is(err, production.ErrMaterials):
		return http.StatusUnprocessableEntity
	case errors.Is(err, production.ErrUnknown):
		return http.StatusNotFound
	case errors.Is(err, production.ErrNotGathering):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Service) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		s.log.Warn("http request failed", logx.String("path", r.URL.Path), logx.Err(err))
	}
	writeError(w, code, err.Error())
}

func (s *Service) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.prod.Status())
}

func (s *Service) handleProgress(w http.ResponseWriter, r *http.Request) {
	st := s.prod.Status()
	out := map[string]any{"progress": st.Progress}
	if a := st.Action; a != nil {
		out["job_id"] = a.JobID
		out["type"] = a.Type
		out["key"] = a.Key
		out["remaining_ms"] = max(a.EndsAt.Sub(st.Now), 0).Milliseconds()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Service) handleInventory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.prod.Inventory())
}

type recipeView struct {
	Kind     catalog.Kind    `json:"kind"`
	ID       string          `json:"id"`
	Level    int             `json:"level"`
	Base     time.Duration   `json:"base"`
	Inputs   []catalog.Stack `json:"inputs"`
	Outputs  []catalog.Stack `json:"outputs"`
	CanStart bool            `json:"can_start"`
}

func (s *Service) handleRecipes(w http.ResponseWriter, r *http.Request) {
	kinds := catalog.Kinds
	if q := r.URL.Query().Get("kind"); q != "" {
		k, ok := catalog.ParseKind(q)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown kind "+strconv.Quote(q))
			return
		}
		kinds = []catalog.Kind{k}
	}
	cat := s.prod.Catalog()
	out := []recipeView{}
	for _, k := range kinds {
		for _, id := range cat.RecipeIDs(k) {
			rec, _ := cat.Recipe(k, id)
			out = append(out, recipeView{
				Kind: k, ID: id, Level: rec.Level, Base: rec.Base,
				Inputs: rec.Inputs, Outputs: rec.Outputs,
				CanStart: s.prod.CanStart(k, id),
			})
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Service) handleStartAction(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	kind, ok := catalog.ParseKind(vars["kind"])
	if !ok {
		writeError(w, http.StatusNotFound, "unknown kind "+strconv.Quote(vars["kind"]))
		return
	}
	if err := s.prod.TryStart(kind, vars["id"], nil); err != nil {
		s.fail(w, r, err)
		return
	}
	st := s.prod.Status()
	writeJSON(w, http.StatusAccepted, st.Action)
}

func (s *Service) handleCancelAction(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": s.prod.Cancel()})
}

func (s *Service) handleStartAFK(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	skill, ok := catalog.ParseSkill(vars["skill"])
	if !ok {
		writeError(w, http.StatusNotFound, "unknown skill "+strconv.Quote(vars["skill"]))
		return
	}
	if err := s.prod.StartAFK(skill, vars["resource"]); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.prod.Status().AFK)
}

func (s *Service) handleStopAFK(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"stopped": s.prod.StopAFK()})
}

func (s *Service) handleEquipTome(w http.ResponseWriter, r *http.Request) {
	qty := 1
	if q := r.URL.Query().Get("qty"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid qty "+strconv.Quote(q))
			return
		}
		qty = n
	}
	if err := s.prod.EquipTome(mux.Vars(r)["id"], qty); err != nil {
		s.fail(w, r, err)
		return
	}
	st := s.prod.Status()
	writeJSON(w, http.StatusOK, map[string]any{"slot": st.TomeSlot, "run": st.Tome})
}

func (s *Service) handleUnequipTome(w http.ResponseWriter, r *http.Request) {
	if err := s.prod.UnequipTome(); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleCancelTome(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": s.prod.CancelTome()})
}

func (s *Service) handleEquipTool(w http.ResponseWriter, r *http.Request) {
	if err := s.prod.EquipTool(mux.Vars(r)["id"]); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleSave(w http.ResponseWriter, r *http.Request) {
	if s.save == nil {
		writeError(w, http.StatusServiceUnavailable, "storage disabled")
		return
	}
	if err := s.save(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
