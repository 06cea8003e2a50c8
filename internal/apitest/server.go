// Package apitest provides an in-memory REST backend for exercising the api client.
package apitest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

// Request records a call made against the backend.
type Request struct {
	Method      string
	Path        string
	ContentType string
	Query       url.Values
	Body        map[string]any
}

// Backend keeps collections of JSON objects keyed by resource and id.
type Backend struct {
	mu       sync.Mutex
	nextID   int64
	data     map[string]map[int64]map[string]any
	requests []Request
	server   *httptest.Server
	failNext int
}

// NewBackend starts a backend on a local httptest server.
// Call Close when done.
func NewBackend() *Backend {
	gin.SetMode(gin.TestMode)

	b := &Backend{
		nextID: 1000,
		data:   make(map[string]map[int64]map[string]any),
	}

	r := gin.New()
	r.Use(gin.Recovery(), b.record)

	api := r.Group("/api")
	api.GET("/:resource", b.list)
	api.POST("/:resource", b.create)
	api.GET("/:resource/:id", b.find)
	api.PUT("/:resource/:id", b.update)
	api.PATCH("/:resource/:id", b.patch)
	api.DELETE("/:resource/:id", b.remove)

	b.server = httptest.NewServer(r)
	return b
}

// URL is the base URL of the backend, without the /api prefix.
func (b *Backend) URL() string {
	return b.server.URL
}

// Close stops the server
func (b *Backend) Close() {
	b.server.Close()
}

// Seed stores a record under the given id, replacing any existing one.
func (b *Backend) Seed(resource string, id int64, rec map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()

	stored := copyObject(rec)
	stored["id"] = id
	b.collection(resource)[id] = stored
	if id >= b.nextID {
		b.nextID = id + 1
	}
}

// Get returns a copy of a stored record.
func (b *Backend) Get(resource string, id int64) (map[string]any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.collection(resource)[id]
	if !ok {
		return nil, false
	}
	return copyObject(rec), true
}

// Requests returns the calls recorded so far.
func (b *Backend) Requests() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Request(nil), b.requests...)
}

// FailNext makes the next n requests answer 500.
func (b *Backend) FailNext(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failNext = n
}

func (b *Backend) collection(resource string) map[int64]map[string]any {
	c, ok := b.data[resource]
	if !ok {
		c = make(map[int64]map[string]any)
		b.data[resource] = c
	}
	return c
}

func (b *Backend) record(c *gin.Context) {
	req := Request{
		Method:      c.Request.Method,
		Path:        c.Request.URL.Path,
		ContentType: c.ContentType(),
		Query:       c.Request.URL.Query(),
	}
	if c.Request.Body != nil {
		raw, _ := c.GetRawData()
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &req.Body)
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(raw))
	}

	b.mu.Lock()
	b.requests = append(b.requests, req)
	fail := b.failNext > 0
	if fail {
		b.failNext--
	}
	b.mu.Unlock()

	if fail {
		problem(c, http.StatusInternalServerError, "Internal Server Error", "injected failure")
		c.Abort()
		return
	}
	c.Next()
}

func (b *Backend) list(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "0"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	if size <= 0 {
		size = 20
	}

	b.mu.Lock()
	coll := b.collection(c.Param("resource"))
	ids := make([]int64, 0, len(coll))
	for id := range coll {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	items := make([]map[string]any, 0, size)
	for i := page * size; i < len(ids) && i < (page+1)*size; i++ {
		items = append(items, copyObject(coll[ids[i]]))
	}
	total := len(ids)
	b.mu.Unlock()

	c.Header("X-Total-Count", strconv.Itoa(total))
	c.JSON(http.StatusOK, items)
}

func (b *Backend) create(c *gin.Context) {
	body, err := decodeBody(c)
	if err != nil {
		problem(c, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if id, ok := body["id"]; ok && id != nil {
		problem(c, http.StatusBadRequest, "Bad Request", "A new entity cannot already have an ID")
		return
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	body["id"] = id
	b.collection(c.Param("resource"))[id] = body
	out := copyObject(body)
	b.mu.Unlock()

	c.JSON(http.StatusCreated, out)
}

func (b *Backend) find(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	b.mu.Lock()
	rec, found := b.collection(c.Param("resource"))[id]
	var out map[string]any
	if found {
		out = copyObject(rec)
	}
	b.mu.Unlock()

	if !found {
		problem(c, http.StatusNotFound, "Not Found", "entity not found")
		return
	}
	c.JSON(http.StatusOK, out)
}

func (b *Backend) update(c *gin.Context) {
	b.write(c, false)
}

func (b *Backend) patch(c *gin.Context) {
	b.write(c, true)
}

func (b *Backend) write(c *gin.Context, merge bool) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	body, err := decodeBody(c)
	if err != nil {
		problem(c, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	b.mu.Lock()
	coll := b.collection(c.Param("resource"))
	existing, found := coll[id]
	if found {
		if merge {
			for k, v := range body {
				if v == nil {
					delete(existing, k)
					continue
				}
				existing[k] = v
			}
		} else {
			existing = body
		}
		existing["id"] = id
		coll[id] = existing
	}
	var out map[string]any
	if found {
		out = copyObject(existing)
	}
	b.mu.Unlock()

	if !found {
		problem(c, http.StatusNotFound, "Not Found", "entity not found")
		return
	}
	c.JSON(http.StatusOK, out)
}

func (b *Backend) remove(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	b.mu.Lock()
	coll := b.collection(c.Param("resource"))
	_, found := coll[id]
	delete(coll, id)
	b.mu.Unlock()

	if !found {
		problem(c, http.StatusNotFound, "Not Found", "entity not found")
		return
	}
	c.Status(http.StatusNoContent)
}

// decodeBody keeps numbers as json.Number so stored amounts keep their scale.
func decodeBody(c *gin.Context) (map[string]any, error) {
	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()

	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return nil, err
	}
	if body == nil {
		body = map[string]any{}
	}
	return body, nil
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil {
		problem(c, http.StatusBadRequest, "Bad Request", "invalid id")
		return 0, false
	}
	return id, true
}

func problem(c *gin.Context, status int, title, detail string) {
	c.Header("Content-Type", "application/problem+json")
	c.JSON(status, gin.H{
		"status": status,
		"title":  title,
		"detail": detail,
	})
}

// copyObject round-trips through JSON so stored values never alias caller maps.
func copyObject(in map[string]any) map[string]any {
	raw, err := json.Marshal(in)
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return map[string]any{}
	}
	return out
}
