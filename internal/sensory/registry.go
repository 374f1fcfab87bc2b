package sensory

import (
	"sort"
	"strings"
	"sync"
	"time"

	"prime/internal/domain"
)

// Node is the last known state of one sensor node.
type Node struct {
	NodeID       string                `json:"node_id"`
	Capabilities []domain.SensoryField `json:"capabilities,omitempty"`
	Online       bool                  `json:"online"`
	LastSeen     time.Time             `json:"last_seen"`
	LastReading  *domain.SensoryUpdate `json:"last_reading,omitempty"`
}

type Registry struct {
	mu   sync.RWMutex
	data map[string]Node
	ttl  time.Duration
	now  func() time.Time
}

func NewRegistry(ttl time.Duration, now func() time.Time) *Registry {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	if now == nil {
		now = time.Now
	}
	return &Registry{
		data: make(map[string]Node),
		ttl:  ttl,
		now:  now,
	}
}

// Heartbeat marks the node online and replaces its capability list when one
// is given.
func (r *Registry) Heartbeat(nodeID string, capabilities []domain.SensoryField) {
	nodeID = strings.TrimSpace(nodeID)
	if nodeID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	node := r.data[nodeID]
	node.NodeID = nodeID
	if len(capabilities) > 0 {
		node.Capabilities = append([]domain.SensoryField{}, capabilities...)
	}
	node.Online = true
	node.LastSeen = r.now()
	r.data[nodeID] = node
}

func (r *Registry) SetOnline(nodeID string, online bool) {
	nodeID = strings.TrimSpace(nodeID)
	if nodeID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	node := r.data[nodeID]
	node.NodeID = nodeID
	node.Online = online
	node.LastSeen = r.now()
	r.data[nodeID] = node
}

// Observe records a reading; a node that reports is alive.
func (r *Registry) Observe(update domain.SensoryUpdate) {
	nodeID := strings.TrimSpace(update.Source)
	if nodeID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	node := r.data[nodeID]
	node.NodeID = nodeID
	node.Online = true
	node.LastSeen = r.now()
	reading := update
	node.LastReading = &reading
	r.data[nodeID] = node
}

func (r *Registry) Get(nodeID string) (Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	node, ok := r.data[nodeID]
	if !ok || r.isExpired(node) {
		return Node{}, false
	}
	return cloneNode(node), true
}

// ListOnline returns live nodes ordered by id.
func (r *Registry) ListOnline() []Node {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Node, 0, len(r.data))
	for _, node := range r.data {
		if !node.Online || r.isExpired(node) {
			continue
		}
		out = append(out, cloneNode(node))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out
}

func (r *Registry) isExpired(node Node) bool {
	return r.now().Sub(node.LastSeen) > r.ttl
}

func cloneNode(node Node) Node {
	out := node
	out.Capabilities = append([]domain.SensoryField{}, node.Capabilities...)
	if node.LastReading != nil {
		reading := *node.LastReading
		out.LastReading = &reading
	}
	return out
}
