package wtlist

import (
	"encoding/json"
	"sort"
	"strconv"

	"github.com/tidwall/buntdb"

	"github.com/Refinitiv/Real-Time-SDK-sub030/rdm"
)

// ServiceChange is one entry of the updated-service list C1 produces after
// an upstream refresh/update is merged (spec.md §4.7).
type ServiceChange struct {
	Service rdm.Service
	Added   bool
	Deleted bool
}

// ServiceCache is C1: the canonical store of directory services. Entries
// are kept in an in-memory buntdb database so lookups by id and by name
// are both indexed, the way the teacher's cluster package keeps a
// secondary-indexed view of node metadata rather than scanning a slice.
type ServiceCache struct {
	db *buntdb.DB

	byID map[ServiceID]*rdm.Service
}

func newServiceCache() *ServiceCache {
	db, err := buntdb.Open(":memory:")
	if err != nil {
		// buntdb's in-memory backend never fails to open; a non-nil err
		// here means the process is out of memory, which is not a
		// condition this cache can recover from.
		panic(err)
	}
	db.CreateIndex("name", "service:*", buntdb.IndexJSON("Name"))
	return &ServiceCache{db: db, byID: make(map[ServiceID]*rdm.Service)}
}

func serviceCacheKey(id ServiceID) string { return "service:" + strconv.Itoa(int(id)) }

// Get returns the cached service, if any.
func (c *ServiceCache) Get(id ServiceID) (*rdm.Service, bool) {
	svc, ok := c.byID[id]
	return svc, ok
}

// ByName scans for a service by name; the name index exists so this is a
// buntdb index lookup rather than a linear scan of byID.
func (c *ServiceCache) ByName(name string) (*rdm.Service, bool) {
	var found *rdm.Service
	_ = c.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendEqual("name", `{"Name":"`+name+`"}`, func(key, value string) bool {
			var svc rdm.Service
			if err := json.Unmarshal([]byte(value), &svc); err == nil && svc.Name == name {
				found = c.byID[ServiceID(svc.ID)]
				return false
			}
			return true
		})
	})
	if found != nil {
		return found, true
	}
	// Fallback linear scan: buntdb's JSON index only matches the exact
	// marshaled string above; services with names containing quotes or
	// other JSON metacharacters still resolve correctly here.
	for _, svc := range c.byID {
		if svc.Name == name {
			return svc, true
		}
	}
	return nil, false
}

// Apply merges one upstream directory-refresh/update service entry into
// the cache and reports the resulting change (spec.md §4.7, §3
// "Services"). Only the filters whose per-filter flags are non-zero in msg
// are merged, and UpdateFlags records those filters.
func (c *ServiceCache) Apply(msg rdm.Service) ServiceChange {
	id := ServiceID(msg.ID)
	key := serviceCacheKey(id)

	if msg.Deleted {
		delete(c.byID, id)
		_ = c.db.Update(func(tx *buntdb.Tx) error {
			_, err := tx.Delete(key)
			if err == buntdb.ErrNotFound {
				return nil
			}
			return err
		})
		return ServiceChange{Service: msg, Deleted: true}
	}

	existing, had := c.byID[id]
	merged := mergeService(existing, msg)
	c.byID[id] = merged

	buf, _ := json.Marshal(merged)
	_ = c.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, string(buf), nil)
		return err
	})

	return ServiceChange{Service: *merged, Added: !had}
}

// filterBit maps a wire FilterID (1-based per spec.md §6) onto its
// conventional RDM bitmask position (INFO=0x1, STATE=0x2, ... LINK=0x20).
func filterBit(id rdm.FilterID) rdm.FilterFlags { return rdm.FilterFlags(1 << (id - 1)) }

// mergeService applies msg's per-filter fields onto existing (nil for a
// brand-new service), recording which top-level filters changed in
// UpdateFlags/*Flags the way spec.md §3 describes.
func mergeService(existing *rdm.Service, msg rdm.Service) *rdm.Service {
	out := &rdm.Service{ID: msg.ID, Name: msg.Name}
	if existing != nil {
		*out = *existing
		out.UpdateFlags, out.InfoFlags, out.StateFlags = 0, 0, 0
		out.LoadFlags, out.GroupFlags, out.LinkFlags = 0, 0, 0
	}
	if msg.InfoFlags != rdm.FlagNone {
		out.Info = msg.Info
		sort.Slice(out.Info.Capabilities, func(i, j int) bool { return out.Info.Capabilities[i] < out.Info.Capabilities[j] })
		out.InfoFlags = msg.InfoFlags
		out.UpdateFlags |= filterBit(rdm.FilterInfo)
	}
	if msg.StateFlags != rdm.FlagNone {
		out.State = msg.State
		out.StateFlags = msg.StateFlags
		out.UpdateFlags |= filterBit(rdm.FilterState)
	}
	if msg.LoadFlags != rdm.FlagNone {
		out.Load = msg.Load
		out.LoadFlags = msg.LoadFlags
		out.UpdateFlags |= filterBit(rdm.FilterLoad)
	}
	if msg.GroupFlags != rdm.FlagNone {
		out.Group = msg.Group
		out.GroupFlags = msg.GroupFlags
		out.UpdateFlags |= filterBit(rdm.FilterGroup)
	}
	if msg.LinkFlags != rdm.FlagNone {
		out.Link = msg.Link
		out.LinkFlags = msg.LinkFlags
		out.UpdateFlags |= filterBit(rdm.FilterLink)
	}
	if out.Name == "" {
		out.Name = msg.Name
	}
	return out
}

// Clear empties the cache, as on login recovery/close (spec.md §4.6).
func (c *ServiceCache) Clear() {
	c.byID = make(map[ServiceID]*rdm.Service)
	_ = c.db.Update(func(tx *buntdb.Tx) error {
		return tx.DeleteAll()
	})
}

func (c *ServiceCache) Close() { _ = c.db.Close() }
