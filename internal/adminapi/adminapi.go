// Package adminapi exposes a read-only (plus fault- and content-injection) HTTP
// management plane over one DKG node: a Gin router mounted by the node
// process, distinct from the peer-to-peer binary wire protocol, used by
// operators and test harnesses for introspection and scripted demos.
// None of this is part of the Skip Graph/DKG protocol itself; a node with
// no admin API mounted at all still participates correctly in the
// overlay.
package adminapi

import (
	"context"
	"encoding/hex"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"descan/internal/dkg"
	"descan/internal/ruleengine"
	"descan/internal/skipgraph"
)

// Handler holds the single DKG node (and its rule engine, if this process
// runs one) this admin surface introspects and drives.
type Handler struct {
	node   *dkg.Node
	engine *ruleengine.Engine
}

// NewHandler builds a Handler over node. engine may be nil for a node that
// only stores/serves content it was handed directly (the rule-engine
// content-ingestion endpoint is then unavailable).
func NewHandler(node *dkg.Node, engine *ruleengine.Engine) *Handler {
	return &Handler{node: node, engine: engine}
}

// Register mounts all routes on r.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/skipgraph/:index/routingtable", h.RoutingTable)
	r.GET("/skipgraph/:index/search/:key", h.Search)
	r.GET("/knowledgegraph/stats", h.KnowledgeGraphStats)
	r.GET("/knowledgegraph/:hex", h.TripletsOfNode)
	r.GET("/edges/:hex", h.SearchEdges)
	r.POST("/content", h.EnqueueContent)
	r.POST("/fault", h.SetFault)
}

// Health handles GET /health. Node state is read on the owning actors,
// never directly from the request goroutine.
func (h *Handler) Health(c *gin.Context) {
	sg := h.node.SkipGraphs[0]
	var key uint32
	sg.Do(func() { key = sg.RT.Key })
	var malicious, offline bool
	h.node.Do(func() {
		malicious = h.node.IsMalicious
		offline = h.node.IsOffline
	})
	c.JSON(http.StatusOK, gin.H{
		"key":          key,
		"skip_graphs":  len(h.node.SkipGraphs),
		"is_malicious": malicious,
		"is_offline":   offline,
		"edges":        h.node.KG.NumEdges(),
	})
}

// neighbourView is the JSON shape of one routing-table entry.
type neighbourView struct {
	Key uint32 `json:"key"`
	MV  string `json:"mv"`
}

// RoutingTable handles GET /skipgraph/:index/routingtable: a per-level dump
// of this node's Left/Right neighbor lists on the requested co-resident
// skip graph. The table is snapshotted on the node's actor goroutine,
// since join/leave/repair mutate it concurrently with this request.
func (h *Handler) RoutingTable(c *gin.Context) {
	sg, ok := h.skipGraph(c)
	if !ok {
		return
	}
	type levelView struct {
		Level int             `json:"level"`
		Left  []neighbourView `json:"left"`
		Right []neighbourView `json:"right"`
	}
	var resp gin.H
	sg.Do(func() {
		rt := sg.RT
		levels := make([]levelView, 0, rt.Height()+1)
		for l := 0; l <= rt.Height(); l++ {
			left := rt.Get(l, skipgraph.Left)
			right := rt.Get(l, skipgraph.Right)
			lv := levelView{Level: l}
			if !left.IsEmpty() {
				lv.Left = []neighbourView{{Key: left.Key, MV: left.MV.String()}}
			}
			if !right.IsEmpty() {
				lv.Right = []neighbourView{{Key: right.Key, MV: right.MV.String()}}
			}
			levels = append(levels, lv)
		}
		resp = gin.H{
			"key":    rt.Key,
			"mv":     rt.MV.String(),
			"height": rt.Height(),
			"levels": levels,
		}
	})
	if resp == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "node stopped"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Search handles GET /skipgraph/:index/search/:key: runs a Skip Graph
// search for :key on the requested co-resident graph and returns the node
// it resolved to.
func (h *Handler) Search(c *gin.Context) {
	sg, ok := h.skipGraph(c)
	if !ok {
		return
	}
	key, err := parseUint32(c.Param("key"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 20*time.Second)
	defer cancel()
	result, err := sg.Search(ctx, key)
	if err != nil {
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "resolved_to": result.Key})
}

// KnowledgeGraphStats handles GET /knowledgegraph/stats.
func (h *Handler) KnowledgeGraphStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"edges": h.node.KG.NumEdges()})
}

// TripletsOfNode handles GET /knowledgegraph/:hex: the triplets this node
// stores locally with :hex (a hex-encoded content label) as head or tail.
func (h *Handler) TripletsOfNode(c *gin.Context) {
	content, err := hex.DecodeString(c.Param("hex"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "hex: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"triplets": tripletViews(h.node.KG.GetTripletsOfNode(content))})
}

// SearchEdges handles GET /edges/:hex: triggers a replicated edge search
// for the hex-encoded content hash and returns whatever triplets it
// located.
func (h *Handler) SearchEdges(c *gin.Context) {
	contentHash, err := hex.DecodeString(c.Param("hex"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "hex: " + err.Error()})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 65*time.Second)
	defer cancel()
	triplets, err := h.node.SearchEdges(ctx, contentHash)
	if err != nil {
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"triplets": tripletViews(triplets)})
}

// contentRequest is the body of POST /content.
type contentRequest struct {
	IdentifierHex string `json:"identifier_hex" binding:"required"`
	Data          string `json:"data"`
}

// EnqueueContent handles POST /content: hands a new piece of content to
// this process's rule engine, the admin-surface equivalent of a rule
// discovering new content on its own.
func (h *Handler) EnqueueContent(c *gin.Context) {
	if h.engine == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "this node has no rule engine"})
		return
	}
	var req contentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	identifier, err := hex.DecodeString(req.IdentifierHex)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "identifier_hex: " + err.Error()})
		return
	}
	h.engine.Enqueue(dkg.Content{Identifier: identifier, Data: []byte(req.Data)})
	c.JSON(http.StatusAccepted, gin.H{"enqueued": req.IdentifierHex})
}

// faultRequest is the body of POST /fault.
type faultRequest struct {
	Malicious *bool `json:"malicious"`
	Offline   *bool `json:"offline"`
}

// SetFault handles POST /fault: toggles this node's malicious/offline
// fault-injection flags, across every co-resident skip graph and the DKG
// layer itself. Each flag write runs on its owning actor; the handlers
// reading these flags never race with the request goroutine.
func (h *Handler) SetFault(c *gin.Context) {
	var req faultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for _, sg := range h.node.SkipGraphs {
		sg.Do(func() {
			if req.Malicious != nil {
				sg.IsMalicious = *req.Malicious
			}
			if req.Offline != nil {
				sg.IsOffline = *req.Offline
			}
		})
	}
	var malicious, offline bool
	h.node.Do(func() {
		if req.Malicious != nil {
			h.node.IsMalicious = *req.Malicious
		}
		if req.Offline != nil {
			h.node.IsOffline = *req.Offline
		}
		malicious = h.node.IsMalicious
		offline = h.node.IsOffline
	})
	c.JSON(http.StatusOK, gin.H{"is_malicious": malicious, "is_offline": offline})
}

func (h *Handler) skipGraph(c *gin.Context) (*skipgraph.Node, bool) {
	idx, err := parseIndex(c.Param("index"))
	if err != nil || idx < 0 || idx >= len(h.node.SkipGraphs) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such skip graph index"})
		return nil, false
	}
	return h.node.SkipGraphs[idx], true
}

type tripletView struct {
	Head     string   `json:"head"`
	Relation string   `json:"relation"`
	Tail     string   `json:"tail"`
	Rules    []string `json:"rules"`
}

func tripletViews(triplets []dkg.Triplet) []tripletView {
	out := make([]tripletView, len(triplets))
	for i, t := range triplets {
		out[i] = tripletView{Head: string(t.Head), Relation: string(t.Relation), Tail: string(t.Tail), Rules: t.Rules}
	}
	return out
}

func parseIndex(s string) (int, error) {
	return strconv.Atoi(s)
}

func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}
