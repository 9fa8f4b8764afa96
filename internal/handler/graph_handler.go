package handler

import (
	"net/http"
	"strconv"
	"time"

	"base44/internal/middleware"
	"base44/internal/model"
	"base44/pkg/logger"
	"base44/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GraphHandler serves the tenant relationship graph: nodes, edges, neighbor
// expansion and summary statistics
type GraphHandler struct {
	db *gorm.DB
}

func NewGraphHandler(db *gorm.DB) *GraphHandler {
	return &GraphHandler{db: db}
}

// CreateNode upserts a node by its tenant-unique key
func (h *GraphHandler) CreateNode(c echo.Context) error {
	log := logger.FromContext(c)
	tenantID := middleware.TenantID(c)

	var req struct {
		Key        string         `json:"key"`
		NodeType   string         `json:"node_type"`
		Properties datatypes.JSON `json:"properties,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse node request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Key == "" || req.NodeType == "" {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "key and node_type are required"})
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	// the key is unique within a tenant; re-posting updates in place
	var node model.GraphNode
	result := h.db.Where("tenant_id = ? AND key = ?", tenantID, req.Key).First(&node)
	if result.Error == nil {
		node.NodeType = req.NodeType
		node.Properties = req.Properties
		if err := h.db.Save(&node).Error; err != nil {
			log.Error("Failed to update graph node", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "node update failed"})
		}
		return c.JSON(http.StatusOK, node)
	}

	node = model.GraphNode{
		TenantID:   tenantID,
		Key:        req.Key,
		NodeType:   req.NodeType,
		Properties: req.Properties,
	}
	if err := h.db.Create(&node).Error; err != nil {
		log.Error("Failed to create graph node", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "node creation failed"})
	}

	log.Info("Graph node created",
		zap.Uint("node_id", node.ID),
		zap.String("key", node.Key),
		zap.String("node_type", node.NodeType))

	return c.JSON(http.StatusCreated, node)
}

// ListNodes returns the caller's nodes, optionally filtered by type
func (h *GraphHandler) ListNodes(c echo.Context) error {
	log := logger.FromContext(c)

	query := h.db.Where("tenant_id = ?", middleware.TenantID(c))
	if nodeType := c.QueryParam("node_type"); nodeType != "" {
		query = query.Where("node_type = ?", nodeType)
	}

	var nodes []model.GraphNode
	if result := query.Find(&nodes); result.Error != nil {
		log.Error("Failed to list graph nodes", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve nodes"})
	}

	return c.JSON(http.StatusOK, nodes)
}

// CreateEdge links two of the caller's nodes. Both endpoints must exist in
// the tenant's graph.
func (h *GraphHandler) CreateEdge(c echo.Context) error {
	log := logger.FromContext(c)
	tenantID := middleware.TenantID(c)

	var req struct {
		SourceID   uint           `json:"source_id"`
		TargetID   uint           `json:"target_id"`
		EdgeType   string         `json:"edge_type"`
		Weight     float64        `json:"weight,omitempty"`
		Properties datatypes.JSON `json:"properties,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse edge request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.SourceID == 0 || req.TargetID == 0 || req.EdgeType == "" {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "source_id, target_id and edge_type are required"})
	}

	// both endpoints must be nodes of this tenant
	var count int64
	h.db.Model(&model.GraphNode{}).
		Where("tenant_id = ? AND id IN ?", tenantID, []uint{req.SourceID, req.TargetID}).
		Count(&count)
	expected := int64(2)
	if req.SourceID == req.TargetID {
		expected = 1
	}
	if count < expected {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "node not found"})
	}

	weight := req.Weight
	if weight == 0 {
		weight = 1
	}

	edge := model.GraphEdge{
		TenantID:   tenantID,
		SourceID:   req.SourceID,
		TargetID:   req.TargetID,
		EdgeType:   req.EdgeType,
		Weight:     weight,
		Properties: req.Properties,
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := h.db.Create(&edge); result.Error != nil {
		log.Error("Failed to create graph edge", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "edge creation failed"})
	}

	log.Info("Graph edge created",
		zap.Uint("edge_id", edge.ID),
		zap.Uint("source_id", edge.SourceID),
		zap.Uint("target_id", edge.TargetID),
		zap.String("edge_type", edge.EdgeType))

	return c.JSON(http.StatusCreated, edge)
}

// ListEdges returns the caller's edges, optionally filtered by type
func (h *GraphHandler) ListEdges(c echo.Context) error {
	log := logger.FromContext(c)

	query := h.db.Where("tenant_id = ?", middleware.TenantID(c))
	if edgeType := c.QueryParam("edge_type"); edgeType != "" {
		query = query.Where("edge_type = ?", edgeType)
	}

	var edges []model.GraphEdge
	if result := query.Find(&edges); result.Error != nil {
		log.Error("Failed to list graph edges", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve edges"})
	}

	return c.JSON(http.StatusOK, edges)
}

// Neighbors returns the nodes connected to the given node in either direction
func (h *GraphHandler) Neighbors(c echo.Context) error {
	log := logger.FromContext(c)
	tenantID := middleware.TenantID(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid node ID"})
	}

	var node model.GraphNode
	if result := h.db.Where("tenant_id = ?", tenantID).First(&node, uint(id)); result.Error != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "node not found"})
	}

	var edges []model.GraphEdge
	result := h.db.Where("tenant_id = ? AND (source_id = ? OR target_id = ?)", tenantID, node.ID, node.ID).
		Find(&edges)
	if result.Error != nil {
		log.Error("Failed to load edges", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve neighbors"})
	}

	neighborIDs := make([]uint, 0, len(edges))
	seen := map[uint]bool{node.ID: true}
	for _, e := range edges {
		for _, nid := range []uint{e.SourceID, e.TargetID} {
			if !seen[nid] {
				seen[nid] = true
				neighborIDs = append(neighborIDs, nid)
			}
		}
	}

	var neighbors []model.GraphNode
	if len(neighborIDs) > 0 {
		if result := h.db.Where("tenant_id = ? AND id IN ?", tenantID, neighborIDs).Find(&neighbors); result.Error != nil {
			log.Error("Failed to load neighbor nodes", zap.Error(result.Error))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve neighbors"})
		}
	}

	return c.JSON(http.StatusOK, echo.Map{
		"node":      node,
		"edges":     edges,
		"neighbors": neighbors,
	})
}

// Statistics summarizes the tenant's graph: node and edge counts by type
func (h *GraphHandler) Statistics(c echo.Context) error {
	log := logger.FromContext(c)
	tenantID := middleware.TenantID(c)

	var totalNodes, totalEdges int64
	h.db.Model(&model.GraphNode{}).Where("tenant_id = ?", tenantID).Count(&totalNodes)
	h.db.Model(&model.GraphEdge{}).Where("tenant_id = ?", tenantID).Count(&totalEdges)

	type typeCount struct {
		Type  string `json:"type"`
		Count int64  `json:"count"`
	}

	var nodeTypes []typeCount
	result := h.db.Model(&model.GraphNode{}).
		Select("node_type as type, count(*) as count").
		Where("tenant_id = ?", tenantID).
		Group("node_type").Scan(&nodeTypes)
	if result.Error != nil {
		log.Error("Failed to aggregate node types", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to compute statistics"})
	}

	var edgeTypes []typeCount
	result = h.db.Model(&model.GraphEdge{}).
		Select("edge_type as type, count(*) as count").
		Where("tenant_id = ?", tenantID).
		Group("edge_type").Scan(&edgeTypes)
	if result.Error != nil {
		log.Error("Failed to aggregate edge types", zap.Error(result.Error))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to compute statistics"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"total_nodes": totalNodes,
		"total_edges": totalEdges,
		"node_types":  nodeTypes,
		"edge_types":  edgeTypes,
	})
}
