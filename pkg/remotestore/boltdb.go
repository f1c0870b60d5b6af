package remotestore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/sentinelgov/auditchain/pkg/types"
)

var (
	// Bucket names
	bucketAnchors   = []byte("anchors")
	bucketGovTenant = []byte("gov_tenants")
	bucketTenants   = []byte("tenants")
	bucketCalls     = []byte("government_calls")
	bucketRotations = []byte("rotations")
)

// DefaultBatchLimit mirrors the common remote-store commit cap; purge
// loops never submit more deletes than this per batch.
const DefaultBatchLimit = 500

// BoltStore implements Store using BoltDB.
type BoltStore struct {
	db *bolt.DB

	// BatchLimit caps the number of anchor deletes per transaction
	// during PurgeAnchors.
	BatchLimit int
}

// NewBoltStore creates a new BoltDB-backed store under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "remote.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketAnchors,
			bucketGovTenant,
			bucketTenants,
			bucketCalls,
			bucketRotations,
		}
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db, BatchLimit: DefaultBatchLimit}, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// anchorTimeFormat is fixed-width so byte order equals time order;
// RFC3339Nano strips trailing zeros and would not sort correctly.
const anchorTimeFormat = "2006-01-02T15:04:05.000000000Z"

// anchorKey keys anchors as <tenant_id>/<anchored_at>/<id> so a prefix
// scan per tenant returns them in anchoring order.
func anchorKey(a *types.Anchor) []byte {
	return []byte(a.TenantID + "/" + a.AnchoredAt.UTC().Format(anchorTimeFormat) + "/" + a.ID)
}

func anchorPrefix(tenantID string) []byte {
	return []byte(tenantID + "/")
}

// PutAnchor stores one witness anchor.
func (s *BoltStore) PutAnchor(anchor *types.Anchor) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAnchors)
		data, err := json.Marshal(anchor)
		if err != nil {
			return fmt.Errorf("failed to marshal anchor: %w", err)
		}
		return b.Put(anchorKey(anchor), data)
	})
}

// LatestAnchor returns the most recent anchor for tenantID, or
// ErrNotFound when the tenant has never been anchored.
func (s *BoltStore) LatestAnchor(tenantID string) (*types.Anchor, error) {
	var latest *types.Anchor
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketAnchors).Cursor()
		prefix := anchorPrefix(tenantID)
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var a types.Anchor
			if err := json.Unmarshal(v, &a); err != nil {
				return fmt.Errorf("failed to unmarshal anchor: %w", err)
			}
			latest = &a
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return latest, nil
}

// ListAnchors returns every anchor for tenantID in anchoring order.
func (s *BoltStore) ListAnchors(tenantID string) ([]*types.Anchor, error) {
	var anchors []*types.Anchor
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketAnchors).Cursor()
		prefix := anchorPrefix(tenantID)
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var a types.Anchor
			if err := json.Unmarshal(v, &a); err != nil {
				return fmt.Errorf("failed to unmarshal anchor: %w", err)
			}
			anchors = append(anchors, &a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return anchors, nil
}

// PurgeAnchors deletes tenantID's anchors in batches of at most
// BatchLimit per transaction, looping until none remain.
func (s *BoltStore) PurgeAnchors(tenantID string) (int, error) {
	limit := s.BatchLimit
	if limit <= 0 {
		limit = DefaultBatchLimit
	}

	total := 0
	for {
		deleted := 0
		err := s.db.Update(func(tx *bolt.Tx) error {
			b := tx.Bucket(bucketAnchors)
			c := b.Cursor()
			prefix := anchorPrefix(tenantID)

			var keys [][]byte
			for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
				keys = append(keys, append([]byte(nil), k...))
				if len(keys) >= limit {
					break
				}
			}
			for _, k := range keys {
				if err := b.Delete(k); err != nil {
					return err
				}
			}
			deleted = len(keys)
			return nil
		})
		if err != nil {
			return total, fmt.Errorf("failed to purge anchors: %w", err)
		}
		total += deleted
		if deleted < limit {
			return total, nil
		}
	}
}

// GetGovTenant fetches the governance-side tenant document.
func (s *BoltStore) GetGovTenant(tenantID string) (*GovTenant, error) {
	var doc *GovTenant
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketGovTenant).Get([]byte(tenantID))
		if data == nil {
			return nil
		}
		doc = &GovTenant{}
		return json.Unmarshal(data, doc)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get gov tenant: %w", err)
	}
	if doc == nil {
		return nil, ErrNotFound
	}
	return doc, nil
}

// PutGovTenant stores the governance-side tenant document.
func (s *BoltStore) PutGovTenant(doc *GovTenant) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to marshal gov tenant: %w", err)
		}
		return tx.Bucket(bucketGovTenant).Put([]byte(doc.TenantID), data)
	})
}

// ApplySuspension commits the govTenants update and the tenants mirror
// in a single transaction: both succeed or both fail.
func (s *BoltStore) ApplySuspension(batch SuspensionBatch) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		govData, err := json.Marshal(&batch.GovTenant)
		if err != nil {
			return fmt.Errorf("failed to marshal gov tenant: %w", err)
		}
		if err := tx.Bucket(bucketGovTenant).Put([]byte(batch.GovTenant.TenantID), govData); err != nil {
			return err
		}

		// A tenant with no resolved owner has no mirror document to
		// update; bolt also rejects empty keys.
		if batch.Tenant.OwnerUID == "" {
			return nil
		}
		tenData, err := json.Marshal(&batch.Tenant)
		if err != nil {
			return fmt.Errorf("failed to marshal tenant mirror: %w", err)
		}
		return tx.Bucket(bucketTenants).Put([]byte(batch.Tenant.OwnerUID), tenData)
	})
}

// MarkDestroyed sets both tenant documents to status destroyed,
// preserving the documents themselves as proof of existence.
func (s *BoltStore) MarkDestroyed(tenantID, ownerUID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		govBucket := tx.Bucket(bucketGovTenant)
		var gov GovTenant
		if data := govBucket.Get([]byte(tenantID)); data != nil {
			if err := json.Unmarshal(data, &gov); err != nil {
				return fmt.Errorf("failed to unmarshal gov tenant: %w", err)
			}
		} else {
			gov = GovTenant{TenantID: tenantID, OwnerUID: ownerUID}
		}
		gov.Status = types.TenantDestroyed
		gov.OperationalMode = "OFFLINE"
		govData, err := json.Marshal(&gov)
		if err != nil {
			return err
		}
		if err := govBucket.Put([]byte(tenantID), govData); err != nil {
			return err
		}

		if ownerUID == "" {
			ownerUID = gov.OwnerUID
		}
		if ownerUID == "" {
			return nil
		}
		mirror := TenantDoc{
			OwnerUID:  ownerUID,
			TenantID:  tenantID,
			Status:    types.TenantDestroyed,
			UpdatedAt: time.Now().UTC(),
		}
		mirrorData, err := json.Marshal(&mirror)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketTenants).Put([]byte(ownerUID), mirrorData)
	})
}

// PutCall stores one government_calls record. The voice-agent webhook
// collaborator owns call creation in production; local operation and
// tests use this.
func (s *BoltStore) PutCall(call *CallRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(call)
		if err != nil {
			return fmt.Errorf("failed to marshal call: %w", err)
		}
		return tx.Bucket(bucketCalls).Put([]byte(call.ID), data)
	})
}

// ListCallsByTenant returns every call record for tenantID.
func (s *BoltStore) ListCallsByTenant(tenantID string) ([]*CallRecord, error) {
	var calls []*CallRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCalls).ForEach(func(k, v []byte) error {
			var c CallRecord
			if err := json.Unmarshal(v, &c); err != nil {
				return fmt.Errorf("failed to unmarshal call: %w", err)
			}
			if c.TenantID == tenantID {
				calls = append(calls, &c)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return calls, nil
}

// TerminateInFlightCalls flips every in-progress call for tenantID to
// terminated_by_admin, stamping the suspend id. Returns how many calls
// were terminated.
func (s *BoltStore) TerminateInFlightCalls(tenantID, suspendID string) (int, error) {
	terminated := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCalls)

		type pending struct {
			key  []byte
			call CallRecord
		}
		var updates []pending
		err := b.ForEach(func(k, v []byte) error {
			var c CallRecord
			if err := json.Unmarshal(v, &c); err != nil {
				return fmt.Errorf("failed to unmarshal call: %w", err)
			}
			if c.TenantID == tenantID && c.Status == CallInProgress {
				updates = append(updates, pending{key: append([]byte(nil), k...), call: c})
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, u := range updates {
			u.call.Status = CallTerminatedByAdmin
			u.call.SuspendID = suspendID
			data, err := json.Marshal(&u.call)
			if err != nil {
				return err
			}
			if err := b.Put(u.key, data); err != nil {
				return err
			}
		}
		terminated = len(updates)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to terminate in-flight calls: %w", err)
	}
	return terminated, nil
}

// RecordRotation stores rotation metadata keyed by tenant and time.
func (s *BoltStore) RecordRotation(rec RotationRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(&rec)
		if err != nil {
			return fmt.Errorf("failed to marshal rotation record: %w", err)
		}
		key := []byte(rec.TenantID + "/" + rec.RotatedAt.UTC().Format(time.RFC3339Nano))
		return tx.Bucket(bucketRotations).Put(key, data)
	})
}
