// Package registry manages report template and connection metadata in etcd.
package registry

import (
	"context"
	"time"
)

// Manager manages template and connection metadata
type Manager interface {
	// Template operations
	CreateTemplate(ctx context.Context, tpl *Template) error
	GetTemplate(ctx context.Context, id string) (*Template, error)
	ListTemplates(ctx context.Context) ([]*Template, error)
	DeleteTemplate(ctx context.Context, id string) error
	TemplateExists(ctx context.Context, id string) (bool, error)
	ValidateTemplate(ctx context.Context, id string) error

	// Connection operations
	CreateConnection(ctx context.Context, conn *Connection) error
	GetConnection(ctx context.Context, id string) (*Connection, error)
	ListConnections(ctx context.Context) ([]*Connection, error)
	DeleteConnection(ctx context.Context, id string) error

	// Lifecycle
	Close() error
}

// FieldMapping binds one template token to a database column
type FieldMapping struct {
	Token  string `json:"token"`
	Column string `json:"column"`
	Kind   string `json:"kind,omitempty"` // text, number, date, image
}

// Template represents an uploaded report template design
type Template struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Kind      string         `json:"kind,omitempty"` // docx, xlsx, pdf-form
	Fields    []FieldMapping `json:"fields,omitempty"`
	KeyTokens []string       `json:"key_tokens,omitempty"` // named parameters narrowing discovery
	CreatedAt time.Time      `json:"created_at"`
}

// Connection represents a registered database connection. The DSN is stored
// server-side only and never returned through list endpoints.
type Connection struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Driver    string    `json:"driver,omitempty"`
	DSN       string    `json:"dsn,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
