// ABOUTME: Read-only web dashboard with embedded templates served by gin
// ABOUTME: Pages for the funnel, collections, snapshots, and comparisons plus file exports
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/harperreed/crmpulse/diff"
	"github.com/harperreed/crmpulse/export"
	"github.com/harperreed/crmpulse/handlers"
	"github.com/harperreed/crmpulse/logging"
	"github.com/harperreed/crmpulse/models"
	"github.com/harperreed/crmpulse/normalize"
	"github.com/harperreed/crmpulse/snapshot"
	"github.com/harperreed/crmpulse/viz"
)

//go:embed templates/*
var templatesFS embed.FS

var contentTypes = map[export.Format]string{
	export.FormatCSV:  "text/csv; charset=utf-8",
	export.FormatHTML: "text/html; charset=utf-8",
	export.FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

type Server struct {
	source    *handlers.Source
	vocab     *normalize.Vocabulary
	templates *template.Template
	now       func() time.Time
}

func NewServer(source *handlers.Source, vocab *normalize.Vocabulary) (*Server, error) {
	funcMap := template.FuncMap{
		"text":   export.Text,
		"amount": viz.FormatAmount,
		"week": func(startISO string) string {
			if w, err := diff.ParseWeek(startISO); err == nil {
				return w.Label()
			}
			return startISO
		},
	}

	tmpl, err := template.New("").Funcs(funcMap).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	return &Server{source: source, vocab: vocab, templates: tmpl, now: time.Now}, nil
}

// Router builds the gin engine with every route.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	r.SetHTMLTemplate(s.templates)

	r.GET("/", s.handleDashboard)
	r.GET("/deals", s.handleTable(models.KindDeals))
	r.GET("/tasks", s.handleTable(models.KindTasks))
	r.GET("/snapshots", s.handleSnapshots)
	r.GET("/compare", s.handleCompare)
	r.GET("/graph.svg", s.handleGraph)
	r.GET("/export/:kind", s.handleExport)
	r.GET("/api/dashboard", s.handleDashboardJSON)

	return r
}

// Start serves on addr until ctx is canceled.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router(), ReadHeaderTimeout: 10 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	logging.Component("web").Info("web dashboard listening", "url", "http://localhost"+addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func requestLogger() gin.HandlerFunc {
	log := logging.Component("web")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request", "method", c.Request.Method, "path", c.Request.URL.Path,
			"status", c.Writer.Status(), "duration", time.Since(start))
	}
}

func (s *Server) load(c *gin.Context, ref string) (*handlers.Records, bool) {
	recs, err := s.source.Load(c.Request.Context(), ref)
	if err != nil {
		s.fail(c, err)
		return nil, false
	}
	return recs, true
}

func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, snapshot.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	}
	c.String(status, err.Error())
}

var errBadRequest = errors.New("bad request")

func (s *Server) stats(c *gin.Context) (*viz.DashboardStats, bool) {
	staleDays := viz.DefaultStaleDays
	if v := c.Query("stale_days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.fail(c, fmt.Errorf("%w: invalid stale_days %q", errBadRequest, v))
			return nil, false
		}
		staleDays = n
	}

	recs, ok := s.load(c, c.Query("source"))
	if !ok {
		return nil, false
	}
	return viz.GenerateDashboardStats(recs.Deals, recs.Tasks, s.vocab, s.now(), staleDays), true
}

func (s *Server) handleDashboard(c *gin.Context) {
	stats, ok := s.stats(c)
	if !ok {
		return
	}
	c.HTML(http.StatusOK, "layout.html", gin.H{
		"Title":           "Дашборд",
		"ContentTemplate": "dashboard-content",
		"Stats":           stats,
	})
}

func (s *Server) handleDashboardJSON(c *gin.Context) {
	stats, ok := s.stats(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleTable(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		recs, ok := s.load(c, c.Query("source"))
		if !ok {
			return
		}
		table := export.DealTable(recs.Deals)
		if kind == models.KindTasks {
			table = export.TaskTable(recs.Tasks)
		}
		c.HTML(http.StatusOK, "layout.html", gin.H{
			"Title":           table.Title,
			"ContentTemplate": "table-content",
			"Table":           table,
			"Kind":            kind,
			"Source":          recs.Label,
		})
	}
}

func (s *Server) handleSnapshots(c *gin.Context) {
	if s.source.Snapshots == nil {
		s.fail(c, errors.New("no snapshot store configured"))
		return
	}
	list, err := s.source.Snapshots.List(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.HTML(http.StatusOK, "layout.html", gin.H{
		"Title":           "Снимки",
		"ContentTemplate": "snapshots-content",
		"Snapshots":       list,
	})
}

func (s *Server) handleCompare(c *gin.Context) {
	oldRef := c.Query("old")
	if oldRef == "" {
		s.fail(c, fmt.Errorf("%w: old is required", errBadRequest))
		return
	}
	old, ok := s.load(c, oldRef)
	if !ok {
		return
	}
	cur, ok := s.load(c, c.Query("new"))
	if !ok {
		return
	}

	c.HTML(http.StatusOK, "layout.html", gin.H{
		"Title":           "Сравнение",
		"ContentTemplate": "compare-content",
		"Old":             old.Label,
		"New":             cur.Label,
		"NewRef":          c.Query("new"),
		"OldRef":          oldRef,
		"Deals":           viz.RenderDealComparison(diff.CompareDeals(old.Deals, cur.Deals)),
		"Tasks":           viz.RenderTaskComparison(diff.CompareTasks(old.Tasks, cur.Tasks)),
	})
}

func (s *Server) handleGraph(c *gin.Context) {
	old, ok := s.load(c, c.Query("old"))
	if !ok {
		return
	}
	cur, ok := s.load(c, c.Query("new"))
	if !ok {
		return
	}

	svg, err := viz.TransitionGraph(c.Request.Context(), diff.Transitions(old.Deals, cur.Deals), viz.FormatSVG)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "image/svg+xml", svg)
}

func (s *Server) handleExport(c *gin.Context) {
	kind := c.Param("kind")
	if kind != models.KindDeals && kind != models.KindTasks {
		s.fail(c, fmt.Errorf("%w: unknown kind %q", errBadRequest, kind))
		return
	}
	format, err := export.ParseFormat(c.DefaultQuery("format", string(export.FormatCSV)))
	if err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	recs, ok := s.load(c, c.Query("source"))
	if !ok {
		return
	}
	table := export.DealTable(recs.Deals)
	if kind == models.KindTasks {
		table = export.TaskTable(recs.Tasks)
	}

	c.Header("Content-Type", contentTypes[format])
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.%s", kind, format))
	c.Status(http.StatusOK)
	if err := export.Write(c.Writer, format, table); err != nil {
		logging.Component("web").Warn("export failed", "kind", kind, "format", format, "err", err)
	}
}
