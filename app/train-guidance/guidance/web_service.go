package guidance

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/OpenTransitTools/trainguide/business/data/announcement"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
)

const defaultAnnouncementLimit = 50

//defaultHttpHandler simple default http handler for default route
type defaultHttpHandler struct {
}

//ServeHTTP implements defaultHttpHandler http.Handler interface
func (h *defaultHttpHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Add("Application-Status", "OK")
}

//controlHandler answers status requests and applies manual overrides through the session
type controlHandler struct {
	log     *log.Logger
	session *Session
	db      *sqlx.DB
}

//writeJSON marshals v as the response body
func (c *controlHandler) writeJSON(w http.ResponseWriter, v interface{}) {
	jsonData, err := json.Marshal(v)
	if err != nil {
		c.log.Printf("Error marshaling response to json: error:%v\n", err)
		http.Error(w, "Error serving request", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(jsonData); err != nil {
		c.log.Printf("Error writing json response: %s", err)
	}
}

//writeError maps a command error to a status code
func (c *controlHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSessionEnded):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		http.Error(w, err.Error(), http.StatusGatewayTimeout)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}

//command returns a handler that applies fn to the engine and answers with the resulting status
func (c *controlHandler) command(fn func(e *Engine, vars map[string]string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		var status Status
		err := c.session.Do(r.Context(), func(e *Engine) error {
			if err := fn(e, vars); err != nil {
				return err
			}
			status = e.Status()
			return nil
		})
		if err != nil {
			c.log.Printf("command %s %s failed: %v", r.Method, r.URL.Path, err)
			c.writeError(w, err)
			return
		}
		c.log.Printf("applied %s %s", r.Method, r.URL.Path)
		c.writeJSON(w, status)
	}
}

func (c *controlHandler) status(w http.ResponseWriter, r *http.Request) {
	var status Status
	err := c.session.Do(r.Context(), func(e *Engine) error {
		status = e.Status()
		return nil
	})
	if err != nil {
		c.writeError(w, err)
		return
	}
	c.writeJSON(w, status)
}

//announcements lists the recorded announcements of the running session, newest first
func (c *controlHandler) announcements(w http.ResponseWriter, r *http.Request) {
	if c.db == nil {
		http.Error(w, "announcements are not being recorded", http.StatusNotFound)
		return
	}
	limit := defaultAnnouncementLimit
	if s := r.FormValue("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive number", http.StatusBadRequest)
			return
		}
		limit = n
	}
	var sessionId string
	err := c.session.Do(r.Context(), func(e *Engine) error {
		sessionId = e.SessionId()
		return nil
	})
	if err != nil {
		c.writeError(w, err)
		return
	}
	recent, err := announcement.RecentForSession(c.db, sessionId, limit)
	if err != nil {
		c.log.Printf("Error loading announcements for session %s: %v", sessionId, err)
		http.Error(w, "Error serving request", http.StatusInternalServerError)
		return
	}
	if recent == nil {
		recent = []announcement.Announcement{}
	}
	c.writeJSON(w, recent)
}

//makeRouter builds the control surface routes
func makeRouter(log *log.Logger, session *Session, db *sqlx.DB) *mux.Router {
	c := &controlHandler{log: log, session: session, db: db}

	r := mux.NewRouter()
	r.Handle("/", &defaultHttpHandler{})
	r.HandleFunc("/status", c.status).Methods(http.MethodGet)
	r.HandleFunc("/announcements", c.announcements).Methods(http.MethodGet)
	r.Handle("/stops/{station}", c.command(func(e *Engine, vars map[string]string) error {
		return e.AddTemporaryStop(vars["station"])
	})).Methods(http.MethodPost)
	r.Handle("/stops/{station}", c.command(func(e *Engine, vars map[string]string) error {
		return e.RemoveTemporaryStop(vars["station"])
	})).Methods(http.MethodDelete)
	r.Handle("/passes/{station}", c.command(func(e *Engine, vars map[string]string) error {
		return e.AddTemporaryPass(vars["station"])
	})).Methods(http.MethodPost)
	r.Handle("/passes/{station}", c.command(func(e *Engine, vars map[string]string) error {
		return e.RemoveTemporaryPass(vars["station"])
	})).Methods(http.MethodDelete)
	r.Handle("/platforms/{station}/{platform}", c.command(func(e *Engine, vars map[string]string) error {
		return e.SetPlatformOverride(vars["station"], vars["platform"])
	})).Methods(http.MethodPut)
	r.Handle("/platforms/{station}", c.command(func(e *Engine, vars map[string]string) error {
		return e.SetPlatformOverride(vars["station"], "")
	})).Methods(http.MethodDelete)
	r.Handle("/route/{line}", c.command(func(e *Engine, vars map[string]string) error {
		return e.ForceRouteLock(vars["line"])
	})).Methods(http.MethodPut)
	r.Handle("/route", c.command(func(e *Engine, _ map[string]string) error {
		return e.ForceRouteLock("")
	})).Methods(http.MethodDelete)
	r.Handle("/underground/{on}", c.command(func(e *Engine, vars map[string]string) error {
		on, err := strconv.ParseBool(vars["on"])
		if err != nil {
			return err
		}
		e.SetUnderground(on)
		return nil
	})).Methods(http.MethodPut)
	r.Handle("/reset", c.command(func(e *Engine, _ map[string]string) error {
		e.ResetPosition()
		return nil
	})).Methods(http.MethodPost)
	r.Handle("/reassign/{station}/{trainNumber}", c.command(func(e *Engine, vars map[string]string) error {
		return e.ReassignAt(vars["station"], vars["trainNumber"])
	})).Methods(http.MethodPost)
	return r
}

//createServer creates configured http.Server for the control surface
func createServer(log *log.Logger, session *Session, db *sqlx.DB, httpPort int) *http.Server {
	srv := &http.Server{
		Addr:         strings.Join([]string{"0.0.0.0", strconv.Itoa(httpPort)}, ":"),
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
		Handler:      makeRouter(log, session, db),
	}
	return srv
}

//RunWebService starts the control surface, and terminates when ctx is done. The caller adds to wg
func RunWebService(ctx context.Context,
	log *log.Logger,
	wg *sync.WaitGroup,
	session *Session,
	db *sqlx.DB,
	httpPort int) {
	defer wg.Done()
	srv := createServer(log, session, db, httpPort)
	log.Printf("Starting server on port %d", httpPort)
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			log.Printf("server ListenAndServe ended. %s", err)
		}
	}()

	<-ctx.Done()
	log.Printf("ending webservice on shutdown signal")
	shutdownCtx, serverCancelFunc := context.WithTimeout(context.Background(), time.Duration(5)*time.Second)
	defer serverCancelFunc()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("error shutting down webservice, error:%s", err)
	}
}
