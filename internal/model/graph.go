package model

import (
	"time"

	"gorm.io/datatypes"
)

// GraphNode is an entity in the tenant's relationship graph. Key is the
// caller-supplied identifier, unique within a tenant.
type GraphNode struct {
	ID         uint           `json:"id" gorm:"primaryKey"`
	TenantID   uint           `json:"tenant_id" gorm:"uniqueIndex:idx_graph_nodes_tenant_key;not null"`
	Key        string         `json:"key" gorm:"type:varchar(255);uniqueIndex:idx_graph_nodes_tenant_key;not null"`
	NodeType   string         `json:"node_type" gorm:"type:varchar(100);not null"`
	Properties datatypes.JSON `json:"properties" gorm:"type:jsonb"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// GraphEdge is a typed, weighted relation between two nodes of one tenant
type GraphEdge struct {
	ID         uint           `json:"id" gorm:"primaryKey"`
	TenantID   uint           `json:"tenant_id" gorm:"index;not null"`
	SourceID   uint           `json:"source_id" gorm:"index;not null"`
	TargetID   uint           `json:"target_id" gorm:"index;not null"`
	EdgeType   string         `json:"edge_type" gorm:"type:varchar(100);not null"`
	Weight     float64        `json:"weight" gorm:"default:1"`
	Properties datatypes.JSON `json:"properties" gorm:"type:jsonb"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`

	Source GraphNode `json:"-" gorm:"foreignKey:SourceID"`
	Target GraphNode `json:"-" gorm:"foreignKey:TargetID"`
}
