// Package api serves live sessions over HTTP. Each life ticks on its own
// clock; every access to a session goes through that life's mutex.
package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"lifesim/internal/config"
	"lifesim/internal/save"
	"lifesim/internal/sim"
	"lifesim/internal/util"
)

var errNotFound = errors.New("life not found")

// Deps wires a Server.
type Deps struct {
	Catalog *config.Catalog
	Archive *save.Archive
	Logger  *log.Logger
	// NewClock returns the clock for one life. Defaults to sim.TickerClock.
	NewClock     func() sim.Clock
	TickInterval time.Duration
	// Seed, when non-zero, seeds the n-th life with Seed+n.
	Seed int64
}

type Server struct {
	deps  Deps
	mu    sync.RWMutex
	lives map[string]*live
	born  int64
}

type live struct {
	id      string
	mu      sync.Mutex
	session *sim.Session
	hub     *Hub
	stopped bool
	created time.Time
}

// lockedClock serialises ticks with HTTP access to the same life.
type lockedClock struct {
	inner sim.Clock
	l     *live
}

func (c lockedClock) Every(d time.Duration, fn func()) func() {
	return c.inner.Every(d, func() {
		c.l.mu.Lock()
		defer c.l.mu.Unlock()
		if c.l.stopped {
			return
		}
		fn()
	})
}

func NewServer(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = log.New(io.Discard)
	}
	if d.NewClock == nil {
		d.NewClock = func() sim.Clock { return sim.TickerClock{} }
	}
	return &Server{deps: d, lives: map[string]*live{}}
}

// Router builds the gin engine.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		lives := api.Group("/lives")
		{
			lives.POST("", s.createLife)
			lives.GET("", s.listLives)
			lives.GET("/:id", s.getLife)
			lives.POST("/:id/pause", s.pauseLife)
			lives.POST("/:id/resume", s.resumeLife)
			lives.POST("/:id/talents/redraw", s.redrawTalents)
			lives.POST("/:id/allocate", s.allocateLife)
			lives.POST("/:id/start", s.startLife)
			lives.POST("/:id/settle", s.settleLife)
			lives.DELETE("/:id", s.deleteLife)
			lives.GET("/:id/stream", s.streamLife)
		}
		api.GET("/save", s.getSave)
		api.DELETE("/save", s.resetSave)
	}
	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.deps.Logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"took", time.Since(start))
	}
}

// Shutdown stops every life.
func (s *Server) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, l := range s.lives {
		l.stop()
		delete(s.lives, id)
	}
}

func (l *live) stop() {
	l.mu.Lock()
	l.stopped = true
	l.session.Stop()
	l.mu.Unlock()
	l.hub.Close()
}

func (s *Server) find(id string) (*live, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lives[id]
	if !ok {
		return nil, errNotFound
	}
	return l, nil
}

type createRequest struct {
	Gender string `json:"gender"`
	Seed   int64  `json:"seed"`
	// Allocation spends the starting points; empty means random.
	Allocation map[string]int `json:"allocation"`
	// Hold stops after the talent draw so the caller can redraw, allocate
	// and start by hand.
	Hold bool `json:"hold"`
}

func (s *Server) createLife(c *gin.Context) {
	var req createRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, err)
			return
		}
	}

	s.mu.Lock()
	s.born++
	n := s.born
	s.mu.Unlock()

	seed := req.Seed
	if seed == 0 && s.deps.Seed != 0 {
		seed = s.deps.Seed + n
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	id := uuid.NewString()
	l := &live{id: id, hub: NewHub(s.deps.Logger.With("life", id)), created: time.Now()}
	var ledger sim.Ledger
	if s.deps.Archive != nil {
		ledger = s.deps.Archive
	}
	l.session = sim.NewSession(s.deps.Catalog, sim.Options{
		Rng:          util.New(seed),
		Sink:         l.hub,
		Logger:       s.deps.Logger.With("life", id),
		Ledger:       ledger,
		Clock:        lockedClock{inner: s.deps.NewClock(), l: l},
		TickInterval: s.deps.TickInterval,
		Gender:       req.Gender,
	})

	l.mu.Lock()
	err := setup(l.session, req.Allocation, req.Hold)
	view := l.session.View()
	l.mu.Unlock()
	if err != nil {
		l.stop()
		fail(c, http.StatusBadRequest, err)
		return
	}

	s.mu.Lock()
	s.lives[id] = l
	s.mu.Unlock()
	c.JSON(http.StatusCreated, gin.H{"success": true, "id": id, "data": view})
}

func setup(sess *sim.Session, allocation map[string]int, hold bool) error {
	if err := checkAllocation(allocation); err != nil {
		return err
	}
	if _, err := sess.DrawTalents(); err != nil {
		return err
	}
	if hold {
		return nil
	}
	if err := allocate(sess, allocation); err != nil {
		return err
	}
	return sess.Start()
}

func checkAllocation(allocation map[string]int) error {
	for k := range allocation {
		if !config.IsStat(k) {
			return fmt.Errorf("%w: %q", sim.ErrUnknownStat, k)
		}
	}
	return nil
}

// allocate spends allocation in stat order, or every point at random when
// it is empty.
func allocate(sess *sim.Session, allocation map[string]int) error {
	if len(allocation) == 0 {
		if err := sess.AllocateRandom(); err != nil {
			return err
		}
	}
	for _, k := range config.StatKeys {
		if d, ok := allocation[k]; ok {
			if err := sess.Allocate(k, d); err != nil {
				return fmt.Errorf("allocate %s: %w", k, err)
			}
		}
	}
	return nil
}

type lifeSummary struct {
	ID       string    `json:"id"`
	Age      int       `json:"age"`
	Realm    string    `json:"realm"`
	Dead     bool      `json:"dead"`
	Watchers int       `json:"watchers"`
	Created  time.Time `json:"created"`
}

func (s *Server) listLives(c *gin.Context) {
	s.mu.RLock()
	all := make([]*live, 0, len(s.lives))
	for _, l := range s.lives {
		all = append(all, l)
	}
	s.mu.RUnlock()

	out := make([]lifeSummary, 0, len(all))
	for _, l := range all {
		l.mu.Lock()
		v := l.session.View()
		l.mu.Unlock()
		out = append(out, lifeSummary{
			ID: l.id, Age: v.State.Age, Realm: v.Realm, Dead: v.State.IsDead,
			Watchers: l.hub.Subscribers(), Created: l.created,
		})
	}
	ok(c, out)
}

// withLife runs fn under the life's lock and replies with its view.
func (s *Server) withLife(c *gin.Context, fn func(*sim.Session) error) {
	l, err := s.find(c.Param("id"))
	if err != nil {
		fail(c, http.StatusNotFound, err)
		return
	}
	l.mu.Lock()
	if fn != nil {
		err = fn(l.session)
	}
	v := l.session.View()
	l.mu.Unlock()
	if err != nil {
		fail(c, sessionStatus(err), err)
		return
	}
	ok(c, v)
}

// sessionStatus maps a setup error to a status: bad input is 400, a
// request that is out of order for the life's phase is 409.
func sessionStatus(err error) int {
	switch {
	case errors.Is(err, sim.ErrUnknownStat), errors.Is(err, sim.ErrNoPoints),
		errors.Is(err, sim.ErrAtFloor), errors.Is(err, sim.ErrPointsLeft):
		return http.StatusBadRequest
	}
	return http.StatusConflict
}

func (s *Server) getLife(c *gin.Context) { s.withLife(c, nil) }

func (s *Server) pauseLife(c *gin.Context) {
	s.withLife(c, func(sess *sim.Session) error {
		sess.Pause()
		return nil
	})
}

func (s *Server) resumeLife(c *gin.Context) {
	s.withLife(c, func(sess *sim.Session) error {
		sess.Resume()
		return nil
	})
}

func (s *Server) redrawTalents(c *gin.Context) {
	s.withLife(c, func(sess *sim.Session) error {
		_, err := sess.RedrawTalents()
		return err
	})
}

type allocateRequest struct {
	Allocation map[string]int `json:"allocation"`
}

func (s *Server) allocateLife(c *gin.Context) {
	var req allocateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, err)
			return
		}
	}
	if err := checkAllocation(req.Allocation); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	s.withLife(c, func(sess *sim.Session) error { return allocate(sess, req.Allocation) })
}

func (s *Server) startLife(c *gin.Context) {
	s.withLife(c, func(sess *sim.Session) error { return sess.Start() })
}

type settleRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) settleLife(c *gin.Context) {
	var req settleRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, err)
			return
		}
	}
	if req.Reason == "" {
		req.Reason = "You laid down the road of your own accord."
	}
	s.withLife(c, func(sess *sim.Session) error {
		sess.Settle(req.Reason)
		return nil
	})
}

func (s *Server) deleteLife(c *gin.Context) {
	id := c.Param("id")
	s.mu.Lock()
	l, found := s.lives[id]
	delete(s.lives, id)
	s.mu.Unlock()
	if !found {
		fail(c, http.StatusNotFound, errNotFound)
		return
	}
	l.stop()
	c.Status(http.StatusNoContent)
}

func (s *Server) streamLife(c *gin.Context) {
	l, err := s.find(c.Param("id"))
	if err != nil {
		fail(c, http.StatusNotFound, err)
		return
	}
	l.hub.serve(c.Writer, c.Request)
}

type saveView struct {
	save.Data
	UnlockRate int                 `json:"unlockRate"`
	Gallery    []save.GalleryEntry `json:"gallery"`
}

func (s *Server) getSave(c *gin.Context) {
	if s.deps.Archive == nil {
		fail(c, http.StatusServiceUnavailable, errors.New("no save store configured"))
		return
	}
	d := s.deps.Archive.Data()
	ok(c, saveView{
		Data:       d,
		UnlockRate: save.UnlockRate(d, s.deps.Catalog.Titles),
		Gallery:    save.Gallery(d, s.deps.Catalog.Titles),
	})
}

func (s *Server) resetSave(c *gin.Context) {
	if s.deps.Archive == nil {
		fail(c, http.StatusServiceUnavailable, errors.New("no save store configured"))
		return
	}
	if err := s.deps.Archive.Reset(c.Request.Context()); err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	ok(c, s.deps.Archive.Data())
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func fail(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"success": false, "error": err.Error()})
}
