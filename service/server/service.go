package server

import (
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"

	"github.com/itiky/synclist/service/realtime"
	"github.com/itiky/synclist/storage"
)

// Service implements the SyncList HTTP API and the realtime channel.
// The Store is persisted to the file periodically if it was modified.
type Service struct {
	// Config
	filePath      string
	persistPeriod time.Duration
	// State
	store   *storage.Store
	tokens  *TokenIssuer
	hub     *Hub
	monitor *Monitor
	dirty   bool
	//
	lock   sync.Mutex
	stopCh chan struct{}
	doneCh chan struct{}
}

// String implements the stringer interface.
func (s *Service) String() string {
	return "SyncListService"
}

// Store returns the underlying Store.
func (s *Service) Store() *storage.Store {
	return s.store
}

// Hub returns the realtime channel.
func (s *Service) Hub() *Hub {
	return s.hub
}

// Monitor returns the Service stats.
func (s *Service) Monitor() *Monitor {
	return s.monitor
}

// Handler builds the HTTP router.
func (s *Service) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m := httpsnoop.CaptureMetrics(handler, w, r)
			s.monitor.RequestServed(m.Code, m.Duration)
			log.Printf("%s: %s %s: %d within %v", s.String(), r.Method, r.URL, m.Code, m.Duration)
		})
	})

	r.Methods(http.MethodGet).Path("/").HandlerFunc(s.health)
	r.Path(realtime.SocketPath).Handler(s.hub)

	r.Methods(http.MethodPost).Path("/api/auth/register").HandlerFunc(s.register)
	r.Methods(http.MethodPost).Path("/api/auth/login").HandlerFunc(s.login)
	r.Methods(http.MethodGet).Path("/api/auth/").HandlerFunc(s.authenticated(s.profile))

	r.Methods(http.MethodGet).Path("/api/list/").HandlerFunc(s.authenticated(s.getLists))
	r.Methods(http.MethodPost).Path("/api/list/").HandlerFunc(s.authenticated(s.createList))
	r.Methods(http.MethodDelete).Path("/api/list/{id}").HandlerFunc(s.authenticated(s.deleteList))
	r.Methods(http.MethodPost).Path("/api/list/{id}/join").HandlerFunc(s.authenticated(s.joinList))

	r.Methods(http.MethodGet).Path("/api/item/{id}").HandlerFunc(s.authenticated(s.getListItems))
	r.Methods(http.MethodPost).Path("/api/item/").HandlerFunc(s.authenticated(s.addItem))
	r.Methods(http.MethodDelete).Path("/api/item/{id}").HandlerFunc(s.authenticated(s.deleteItem))
	r.Methods(http.MethodPut).Path("/api/item/claim/{id}").HandlerFunc(s.authenticated(s.claimItem))

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, "Not found")
	})

	return r
}

// Start starts the service worker.
func (s *Service) Start() {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.stopCh != nil {
		return
	}
	s.stopCh, s.doneCh = make(chan struct{}), make(chan struct{})

	s.monitor.Start(5 * time.Second)
	go s.worker(s.stopCh, s.doneCh)
}

// Stop stops the service worker persisting the pending changes.
func (s *Service) Stop() {
	s.lock.Lock()
	if s.stopCh == nil {
		s.lock.Unlock()
		return
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.stopCh, s.doneCh = nil, nil
	s.lock.Unlock()

	close(stopCh)
	<-doneCh
	s.monitor.Stop()
}

// markDirty schedules the Store persistence.
func (s *Service) markDirty() {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.dirty = true
}

// persist saves the Store if it was modified.
func (s *Service) persist() {
	if s.filePath == "" {
		return
	}

	s.lock.Lock()
	dirty := s.dirty
	s.dirty = false
	s.lock.Unlock()

	if !dirty {
		return
	}

	if err := s.store.SaveToFile(s.filePath); err != nil {
		log.Printf("%s: persist: %v", s.String(), err)
		s.markDirty()
	}
}

// worker does the actual job.
func (s *Service) worker(stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	log.Printf("%s: start", s.String())

	ticker := time.NewTicker(s.persistPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			// Service stop
			s.persist()
			log.Printf("%s: stop", s.String())
			return
		case <-ticker.C:
			s.persist()
		}
	}
}

// NewService creates a new Service object.
// Empty filePath disables the persistence.
func NewService(store *storage.Store, tokens *TokenIssuer, filePath string, persistPeriod time.Duration) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%s: nil", "store")
	}
	if persistPeriod <= 0 {
		return nil, fmt.Errorf("%s: must be GT 0", "persistPeriod")
	}

	hub, err := NewHub(tokens, store)
	if err != nil {
		return nil, fmt.Errorf("hub: %w", err)
	}

	return &Service{
		filePath:      filePath,
		persistPeriod: persistPeriod,
		store:         store,
		tokens:        tokens,
		hub:           hub,
		monitor:       NewMonitor(),
	}, nil
}
