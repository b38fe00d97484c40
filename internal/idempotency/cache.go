// Package idempotency implements the request-deduplication cache that
// guards the ticket issuance path.  A client supplies an opaque key with
// its request; the cache remembers a fingerprint of the request body and,
// once issuance succeeds, the response that was produced.  Retries with
// the same key and body replay the stored response instead of issuing
// again, while reuse of a key with a different body is rejected.
package idempotency

import (
    "crypto/sha256"
    "encoding/hex"
    "encoding/json"
    "sync"
    "time"
)

// DefaultTTL bounds how long an entry may be replayed before it is
// evicted.
const DefaultTTL = 60 * time.Minute

// Outcome classifies the result of CheckAndReserve.
type Outcome int

const (
    // OutcomeNew means no entry existed for the key; a reservation was
    // created and the caller must perform the real work, then call
    // AttachResponse (or Forget on failure).
    OutcomeNew Outcome = iota
    // OutcomeReplay means an entry with the same fingerprint holds a
    // completed response; the caller returns it without side effects.
    OutcomeReplay
    // OutcomeInFlight means an entry with the same fingerprint exists
    // but its response has not been attached yet: the first request is
    // still running or failed before attaching.  The caller decides
    // whether to proceed or back off.
    OutcomeInFlight
    // OutcomeConflict means the key was already used with a different
    // request body.  This must surface to the client as a key-reuse
    // error and never be processed silently.
    OutcomeConflict
)

type entry struct {
    fingerprint string
    response    interface{} // nil until the first request completes
    createdAt   time.Time
}

// Cache is a process-wide idempotency map guarded by a single mutex so
// that the check-existing/create-new sequence is one atomic step per
// key: two concurrent first uses of the same key observe exactly one
// OutcomeNew.  Construct it once at startup and inject it into the
// ticket service; there is no package-level instance.
type Cache struct {
    mu      sync.Mutex
    entries map[string]*entry
    ttl     time.Duration
}

// New returns a Cache whose entries expire after ttl.  A non-positive
// ttl falls back to DefaultTTL.
func New(ttl time.Duration) *Cache {
    if ttl <= 0 {
        ttl = DefaultTTL
    }
    return &Cache{entries: make(map[string]*entry), ttl: ttl}
}

// CheckAndReserve computes the fingerprint of body and resolves the key
// against the cache in one critical section.  When the key is unknown a
// reservation with the fingerprint (and no response) is created.  The
// returned response is only non-nil for OutcomeReplay.
func (c *Cache) CheckAndReserve(key string, body interface{}) (Outcome, interface{}, error) {
    fp, err := fingerprint(body)
    if err != nil {
        return 0, nil, err
    }

    c.mu.Lock()
    defer c.mu.Unlock()
    c.evictExpiredLocked()

    if e, ok := c.entries[key]; ok {
        if e.fingerprint != fp {
            return OutcomeConflict, nil, nil
        }
        if e.response == nil {
            return OutcomeInFlight, nil, nil
        }
        return OutcomeReplay, e.response, nil
    }

    c.entries[key] = &entry{fingerprint: fp, createdAt: time.Now().UTC()}
    return OutcomeNew, nil, nil
}

// AttachResponse stores the response produced for the key's request.
// It is idempotent: calling it again overwrites the previous response
// (last write wins) and never alters the fingerprint.  Attaching to an
// unknown key is a no-op; the entry may have expired in between.
func (c *Cache) AttachResponse(key string, response interface{}) {
    c.mu.Lock()
    defer c.mu.Unlock()
    c.evictExpiredLocked()
    if e, ok := c.entries[key]; ok {
        e.response = response
    }
}

// Forget drops the entry for key.  The service calls this when issuance
// fails after a reservation, so a retry with the same key starts fresh
// instead of being mistaken for an in-flight duplicate.
func (c *Cache) Forget(key string) {
    c.mu.Lock()
    defer c.mu.Unlock()
    delete(c.entries, key)
}

// Len reports the number of live entries, for introspection in tests.
func (c *Cache) Len() int {
    c.mu.Lock()
    defer c.mu.Unlock()
    return len(c.entries)
}

// evictExpiredLocked removes entries older than the TTL.  Callers must
// hold c.mu.
func (c *Cache) evictExpiredLocked() {
    cutoff := time.Now().UTC().Add(-c.ttl)
    for k, e := range c.entries {
        if e.createdAt.Before(cutoff) {
            delete(c.entries, k)
        }
    }
}

// fingerprint serializes body into canonical JSON (object keys sorted,
// no incidental whitespace) and hashes it with SHA-256, so two logically
// equal requests always fingerprint equal regardless of formatting or
// field order.
func fingerprint(body interface{}) (string, error) {
    raw, err := json.Marshal(body)
    if err != nil {
        return "", err
    }
    // Round-trip through a generic value: encoding/json writes map keys
    // in sorted order, which normalizes struct field order and spacing.
    var generic interface{}
    if err := json.Unmarshal(raw, &generic); err != nil {
        return "", err
    }
    canonical, err := json.Marshal(generic)
    if err != nil {
        return "", err
    }
    sum := sha256.Sum256(canonical)
    return hex.EncodeToString(sum[:]), nil
}
