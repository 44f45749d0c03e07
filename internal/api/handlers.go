package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/deusflow/pacwatch/internal/app"
	"github.com/deusflow/pacwatch/internal/filter"
	"github.com/deusflow/pacwatch/internal/mgrs"
	"github.com/deusflow/pacwatch/internal/news"
	"github.com/deusflow/pacwatch/internal/rank"
	"github.com/deusflow/pacwatch/internal/relate"
)

type articleResponse struct {
	Title          string             `json:"title"`
	Link           string             `json:"link"`
	Source         string             `json:"source"`
	SourceGroup    string             `json:"source_group,omitempty"`
	Published      time.Time          `json:"published"`
	Summary        string             `json:"summary,omitempty"`
	Excerpt        string             `json:"excerpt,omitempty"`
	ImageURL       string             `json:"image_url,omitempty"`
	Categories     []string           `json:"categories"`
	Country        string             `json:"country,omitempty"`
	Tags           []string           `json:"tags"`
	Score          float64            `json:"score"`
	Stars          int                `json:"stars"`
	Sentiment      map[string]float64 `json:"sentiment,omitempty"`
	GroupID        string             `json:"group_id,omitempty"`
	AlsoReportedBy []string           `json:"also_reported_by,omitempty"`
}

type articlesResponse struct {
	RunID       string            `json:"run_id,omitempty"`
	GeneratedAt *time.Time        `json:"generated_at"`
	Total       int               `json:"total"`
	Articles    []articleResponse `json:"articles"`
}

func toResponse(a *news.Article) articleResponse {
	return articleResponse{
		Title:          a.Text.Title.Plain,
		Link:           a.Link,
		Source:         a.Source,
		SourceGroup:    a.SourceGroup,
		Published:      a.Published,
		Summary:        a.DisplaySummary,
		Excerpt:        a.Excerpt,
		ImageURL:       a.ImageURL,
		Categories:     nonNil(a.Categories),
		Country:        a.Country,
		Tags:           nonNil(a.Tags),
		Score:          a.Score,
		Stars:          a.Stars,
		Sentiment:      a.Sentiment,
		GroupID:        a.GroupID,
		AlsoReportedBy: a.AlsoReportedBy,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// listArticles handles GET /api/v1/articles.
func (s *Server) listArticles(c *gin.Context) {
	q, err := s.parseQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp := articlesResponse{Articles: []articleResponse{}}
	snap := s.snapshots.Snapshot()
	if snap == nil {
		c.JSON(http.StatusOK, resp)
		return
	}

	limit := q.Limit
	q.Limit = 0
	matched := q.Run(snap.Articles)

	resp.RunID = snap.RunID
	resp.GeneratedAt = &snap.GeneratedAt
	resp.Total = len(matched)
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	for _, a := range matched {
		resp.Articles = append(resp.Articles, toResponse(a))
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) parseQuery(c *gin.Context) (filter.Query, error) {
	spec := filter.Spec{
		Sources:    multi(c, "source"),
		Countries:  multi(c, "country"),
		Categories: multi(c, "category"),
		Search:     c.Query("q"),
		Now:        s.now(),
	}

	var err error
	if spec.MinImportance, err = floatParam(c, "min_importance"); err != nil {
		return filter.Query{}, err
	}
	if v := c.Query("since"); v != "" {
		if spec.Since, err = parseSince(v); err != nil {
			return filter.Query{}, err
		}
	}

	actor := strings.TrimSpace(c.Query("actor"))
	minS, err := optionalFloat(c, "sentiment_min")
	if err != nil {
		return filter.Query{}, err
	}
	maxS, err := optionalFloat(c, "sentiment_max")
	if err != nil {
		return filter.Query{}, err
	}
	polarity := filter.Polarity(strings.ToLower(c.Query("polarity")))
	if actor != "" || minS != nil || maxS != nil || polarity != filter.PolarityAny {
		spec.Sentiment = &filter.SentimentFilter{Actor: actor, Min: minS, Max: maxS, Polarity: polarity}
	}
	if err := spec.Validate(); err != nil {
		return filter.Query{}, err
	}

	sortKey, err := rank.ParseSortKey(c.Query("sort"))
	if err != nil {
		return filter.Query{}, err
	}

	limit, err := intParam(c, "limit", s.resultLimit)
	if err != nil {
		return filter.Query{}, err
	}

	return filter.Query{Spec: spec, Sort: sortKey, Limit: limit}, nil
}

// intParam parses a non-negative integer parameter.
func intParam(c *gin.Context, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return n, nil
}

// multi accepts both repeated parameters and comma separated values.
func multi(c *gin.Context, key string) []string {
	var out []string
	for _, v := range c.QueryArray(key) {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func floatParam(c *gin.Context, key string) (float64, error) {
	v, err := optionalFloat(c, key)
	if err != nil || v == nil {
		return 0, err
	}
	return *v, nil
}

func optionalFloat(c *gin.Context, key string) (*float64, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q", key, raw)
	}
	return &f, nil
}

// parseSince accepts Go durations plus a day suffix ("7d").
func parseSince(v string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(v, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid since %q", v)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid since %q", v)
	}
	return d, nil
}

type relationshipsResponse struct {
	RunID       string        `json:"run_id,omitempty"`
	GeneratedAt *time.Time    `json:"generated_at"`
	Nodes       []relate.Node `json:"nodes"`
	Edges       []relate.Edge `json:"edges"`
}

// listRelationships handles GET /api/v1/relationships.
func (s *Server) listRelationships(c *gin.Context) {
	q := relate.Query{Entity: strings.TrimSpace(c.Query("actor"))}
	if v := c.Query("type"); v != "" {
		t, ok := relate.ParseType(v)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown relationship type %q", v)})
			return
		}
		q.Type = t
	}
	var err error
	if q.MinWeight, err = intParam(c, "min_weight", 0); err == nil {
		q.Limit, err = intParam(c, "limit", 0)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp := relationshipsResponse{Nodes: []relate.Node{}, Edges: []relate.Edge{}}
	if snap := s.snapshots.Snapshot(); snap != nil {
		net := snap.Relations.Select(q)
		resp.RunID = snap.RunID
		resp.GeneratedAt = &snap.GeneratedAt
		resp.Nodes, resp.Edges = net.Nodes, net.Edges
	}
	c.JSON(http.StatusOK, resp)
}

// report handles GET /api/v1/report. It takes the article filters of
// listArticles plus type and title, and answers Markdown.
func (s *Server) report(c *gin.Context) {
	kind, err := app.ParseReportKind(c.Query("type"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	q, err := s.parseQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	out, err := app.FormatReport(s.snapshots.Snapshot(), app.ReportOptions{
		Kind:       kind,
		Title:      c.Query("title"),
		Filter:     q.Spec,
		Sections:   s.reference.ReportSections,
		Categories: s.reference.CategoryNames(),
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(out))
}

// listSources handles GET /api/v1/sources.
func (s *Server) listSources(c *gin.Context) {
	type source struct {
		Name     string `json:"name"`
		URL      string `json:"url"`
		Priority int    `json:"priority"`
		Group    string `json:"group,omitempty"`
	}
	sources := make([]source, 0, len(s.reference.Feeds))
	for _, f := range s.reference.Feeds {
		sources = append(sources, source{Name: f.Name, URL: f.URL, Priority: f.Priority, Group: f.Group})
	}
	c.JSON(http.StatusOK, gin.H{
		"sources": sources,
		"groups":  s.reference.SourceGroups(),
	})
}

// taxonomy handles GET /api/v1/taxonomy.
func (s *Server) taxonomy(c *gin.Context) {
	actors := make([]string, 0, len(s.reference.Actors))
	for _, a := range s.reference.Actors {
		actors = append(actors, a.Name)
	}
	c.JSON(http.StatusOK, gin.H{
		"categories": s.reference.CategoryNames(),
		"countries":  s.reference.CountryNames(),
		"actors":     actors,
		"sort_keys":  []rank.SortKey{rank.SortImportance, rank.SortDate, rank.SortRelevance, rank.SortSource},
	})
}

// refresh handles POST /api/v1/refresh.
func (s *Server) refresh(c *gin.Context) {
	s.snapshots.Trigger(s.baseCtx)
	c.JSON(http.StatusAccepted, gin.H{"status": "refresh started"})
}

// convertMGRS handles GET /api/v1/mgrs?coord=.
func (s *Server) convertMGRS(c *gin.Context) {
	pos, ok := mgrs.ToLatLon(c.Query("coord"))
	if !ok {
		c.JSON(http.StatusOK, gin.H{"found": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"found": true, "lat": pos.Lat, "lon": pos.Lon})
}

func (s *Server) health(c *gin.Context) {
	stats := s.metrics.GetStats()
	status, code := "healthy", http.StatusOK
	if healthy, _ := stats["is_healthy"].(bool); !healthy {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	body := gin.H{"status": status, "has_snapshot": s.snapshots.Snapshot() != nil}
	if status != "healthy" {
		body["last_error"] = stats["last_error"]
	}
	c.JSON(code, body)
}

func (s *Server) stats(c *gin.Context) {
	stats := s.metrics.GetStats()
	if s.sentimentStats != nil {
		if extra := s.sentimentStats(); extra != nil {
			stats["sentiment"] = extra
		}
	}
	c.JSON(http.StatusOK, stats)
}
