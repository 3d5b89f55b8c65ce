package worker

import (
	"sort"
	"sync"
)

// JobClass is one of the recurring job classes the scheduler manages.
type JobClass string

const (
	JobClassFetch    JobClass = "fetch"
	JobClassClassify JobClass = "classify"
	JobClassDigest   JobClass = "digest"
)

// AllJobClasses lists every job class a tenant gets schedules for.
var AllJobClasses = []JobClass{JobClassFetch, JobClassClassify, JobClassDigest}

// TaskType maps a job class to its asynq task type.
func (c JobClass) TaskType() string {
	switch c {
	case JobClassFetch:
		return TaskIngestFetch
	case JobClassClassify:
		return TaskClassifyRun
	default:
		return TaskDigestRun
	}
}

// JobKey uniquely identifies one tenant's recurring schedule for one class.
type JobKey struct {
	Class      JobClass
	TenantKind string
	TenantID   uint
}

// TaskID returns the deterministic task ID scheduled under this key.
func (k JobKey) TaskID() string {
	return TaskKeyID(k.Class.TaskType(), k.TenantKind, k.TenantID)
}

// Registry maps job keys to scheduler entry IDs so lookup and removal are
// O(1) and type-safe rather than substring matching on entry metadata.
type Registry struct {
	mu      sync.RWMutex
	entries map[JobKey]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[JobKey]string)}
}

// Put stores the entry ID for a key, returning any entry ID it replaced.
func (r *Registry) Put(key JobKey, entryID string) (replaced string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	replaced, ok = r.entries[key]
	r.entries[key] = entryID
	return replaced, ok
}

// Get returns the entry ID registered under a key.
func (r *Registry) Get(key JobKey) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entryID, ok := r.entries[key]
	return entryID, ok
}

// Remove deletes a key and returns the entry ID it held.
func (r *Registry) Remove(key JobKey) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entryID, ok := r.entries[key]
	if ok {
		delete(r.entries, key)
	}
	return entryID, ok
}

// ForTenant returns every registered key for one tenant.
func (r *Registry) ForTenant(tenantKind string, tenantID uint) []JobKey {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var keys []JobKey
	for key := range r.entries {
		if key.TenantKind == tenantKind && key.TenantID == tenantID {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Class < keys[j].Class })
	return keys
}

// Keys returns all registered keys.
func (r *Registry) Keys() []JobKey {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]JobKey, 0, len(r.entries))
	for key := range r.entries {
		keys = append(keys, key)
	}
	return keys
}
