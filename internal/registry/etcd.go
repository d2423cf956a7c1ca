package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/AlfRonDon/neurareport/internal/config"
)

const (
	templatePrefix   = "/neurareport/templates"
	connectionPrefix = "/neurareport/connections"
)

// EtcdManager implements Manager using etcd
type EtcdManager struct {
	client *clientv3.Client
	cache  *kvCache
}

// NewEtcdManager creates a new etcd-based registry manager
func NewEtcdManager(cfg config.RegistryConfig) (*EtcdManager, error) {
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: dialTimeout,
		Username:    cfg.Username,
		Password:    cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	return &EtcdManager{
		client: client,
		cache:  newKVCache(cacheTTL),
	}, nil
}

// ============================================================================
// Template Operations
// ============================================================================

func (m *EtcdManager) CreateTemplate(ctx context.Context, tpl *Template) error {
	if tpl.Name == "" {
		return fmt.Errorf("template name is required")
	}

	if tpl.ID == "" {
		tpl.ID = uuid.New().String()
	}

	exists, err := m.TemplateExists(ctx, tpl.ID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("template %s already exists", tpl.ID)
	}

	if tpl.CreatedAt.IsZero() {
		tpl.CreatedAt = time.Now()
	}

	key := path.Join(templatePrefix, tpl.ID)

	data, err := json.Marshal(tpl)
	if err != nil {
		return fmt.Errorf("failed to marshal template: %w", err)
	}

	if _, err := m.client.Put(ctx, key, string(data)); err != nil {
		return fmt.Errorf("failed to store template in etcd: %w", err)
	}

	m.cache.set(key, string(data))
	return nil
}

func (m *EtcdManager) GetTemplate(ctx context.Context, id string) (*Template, error) {
	key := path.Join(templatePrefix, id)

	// Check cache first
	if cached, ok := m.cache.get(key); ok && cached != "" {
		var tpl Template
		if err := json.Unmarshal([]byte(cached), &tpl); err == nil {
			return &tpl, nil
		}
	}

	resp, err := m.client.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get template from etcd: %w", err)
	}

	if len(resp.Kvs) == 0 {
		return nil, fmt.Errorf("template %s not found", id)
	}

	var tpl Template
	if err := json.Unmarshal(resp.Kvs[0].Value, &tpl); err != nil {
		return nil, fmt.Errorf("failed to unmarshal template: %w", err)
	}

	m.cache.set(key, string(resp.Kvs[0].Value))
	return &tpl, nil
}

func (m *EtcdManager) ListTemplates(ctx context.Context) ([]*Template, error) {
	resp, err := m.client.Get(ctx, templatePrefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to list templates from etcd: %w", err)
	}

	templates := make([]*Template, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var tpl Template
		if err := json.Unmarshal(kv.Value, &tpl); err != nil {
			// Skip unreadable entries
			continue
		}
		templates = append(templates, &tpl)
	}

	return templates, nil
}

func (m *EtcdManager) DeleteTemplate(ctx context.Context, id string) error {
	key := path.Join(templatePrefix, id)

	resp, err := m.client.Delete(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to delete template from etcd: %w", err)
	}
	if resp.Deleted == 0 {
		return fmt.Errorf("template %s not found", id)
	}

	m.cache.delete(key)
	return nil
}

func (m *EtcdManager) TemplateExists(ctx context.Context, id string) (bool, error) {
	key := path.Join(templatePrefix, id)

	if cached, ok := m.cache.get(key); ok && cached != "" {
		return true, nil
	}

	resp, err := m.client.Get(ctx, key, clientv3.WithCountOnly())
	if err != nil {
		return false, fmt.Errorf("failed to check template existence: %w", err)
	}

	return resp.Count > 0, nil
}

func (m *EtcdManager) ValidateTemplate(ctx context.Context, id string) error {
	exists, err := m.TemplateExists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("template %s not found", id)
	}
	return nil
}

// ============================================================================
// Connection Operations
// ============================================================================

func (m *EtcdManager) CreateConnection(ctx context.Context, conn *Connection) error {
	if conn.Name == "" {
		return fmt.Errorf("connection name is required")
	}

	if conn.ID == "" {
		conn.ID = uuid.New().String()
	}

	if conn.CreatedAt.IsZero() {
		conn.CreatedAt = time.Now()
	}

	key := path.Join(connectionPrefix, conn.ID)

	data, err := json.Marshal(conn)
	if err != nil {
		return fmt.Errorf("failed to marshal connection: %w", err)
	}

	if _, err := m.client.Put(ctx, key, string(data)); err != nil {
		return fmt.Errorf("failed to store connection in etcd: %w", err)
	}

	m.cache.set(key, string(data))
	return nil
}

func (m *EtcdManager) GetConnection(ctx context.Context, id string) (*Connection, error) {
	key := path.Join(connectionPrefix, id)

	if cached, ok := m.cache.get(key); ok && cached != "" {
		var conn Connection
		if err := json.Unmarshal([]byte(cached), &conn); err == nil {
			return &conn, nil
		}
	}

	resp, err := m.client.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection from etcd: %w", err)
	}

	if len(resp.Kvs) == 0 {
		return nil, fmt.Errorf("connection %s not found", id)
	}

	var conn Connection
	if err := json.Unmarshal(resp.Kvs[0].Value, &conn); err != nil {
		return nil, fmt.Errorf("failed to unmarshal connection: %w", err)
	}

	m.cache.set(key, string(resp.Kvs[0].Value))
	return &conn, nil
}

func (m *EtcdManager) ListConnections(ctx context.Context) ([]*Connection, error) {
	resp, err := m.client.Get(ctx, connectionPrefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to list connections from etcd: %w", err)
	}

	connections := make([]*Connection, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var conn Connection
		if err := json.Unmarshal(kv.Value, &conn); err != nil {
			continue
		}
		connections = append(connections, &conn)
	}

	return connections, nil
}

func (m *EtcdManager) DeleteConnection(ctx context.Context, id string) error {
	key := path.Join(connectionPrefix, id)

	resp, err := m.client.Delete(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to delete connection from etcd: %w", err)
	}
	if resp.Deleted == 0 {
		return fmt.Errorf("connection %s not found", id)
	}

	m.cache.delete(key)
	return nil
}

// Close stops the cache and closes the etcd client
func (m *EtcdManager) Close() error {
	m.cache.stop()
	return m.client.Close()
}
