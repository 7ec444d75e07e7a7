package wtlist

import (
	"github.com/Refinitiv/Real-Time-SDK-sub030/rdm"

	"github.com/Refinitiv/Real-Time-SDK-sub030/cmn/nlog"
)

// requestedService is the demand-side record of spec.md §3: one entry per
// distinct (name) or (id) asked for by the application, independent of
// whether a matching service currently exists in the cache.
type requestedService struct {
	name      string
	id        ServiceID
	hasID     bool

	directoryRequests []*DirectoryRequest
	recovering        []*ItemRequest
	matched           []*ItemRequest

	service *rdm.Service // nil while unmatched
}

func (rs *requestedService) matchesName(name string) bool { return rs.name != "" && rs.name == name }
func (rs *requestedService) matchesID(id ServiceID) bool   { return rs.hasID && rs.id == id }

// DirectoryEngine is C7: the directory state machine. Single upstream
// stream; the cache (C1) is the source of truth, the stream merely keeps
// it fresh (spec.md §4.7).
type DirectoryEngine struct {
	s *Session

	stream *DirectoryStream

	allServices []*DirectoryRequest
	byName      map[string]*requestedService
	byID        map[ServiceID]*requestedService
}

func newDirectoryEngine(s *Session) *DirectoryEngine {
	return &DirectoryEngine{s: s, byName: make(map[string]*requestedService), byID: make(map[ServiceID]*requestedService)}
}

func (d *DirectoryEngine) requestedByName(name string) *requestedService {
	rs, ok := d.byName[name]
	if !ok {
		rs = &requestedService{name: name}
		d.byName[name] = rs
	}
	return rs
}

func (d *DirectoryEngine) requestedByID(id ServiceID) *requestedService {
	rs, ok := d.byID[id]
	if !ok {
		rs = &requestedService{id: id, hasID: true}
		d.byID[id] = rs
	}
	return rs
}

// Submit handles a DirectoryRequest submission (spec.md §4.7): immediate
// synthetic refresh if the service is already cached, else registration
// and wait.
func (d *DirectoryEngine) Submit(req *DirectoryRequest) {
	switch req.Scope {
	case ScopeAllServices:
		req.State = StateOpen
		d.allServices = append(d.allServices, req)
		if svc, ok := d.s.services.Get(req.ServiceID); ok {
			d.s.emitDirectoryRefresh(req, []rdm.Service{*svc})
		}
	case ScopeByName:
		rs := d.requestedByName(req.ServiceName)
		req.requestedService = rs
		if rs.service != nil {
			req.State = StateOpen
			d.s.emitDirectoryRefresh(req, []rdm.Service{*rs.service})
		} else {
			rs.directoryRequests = append(rs.directoryRequests, req)
		}
	case ScopeByID:
		rs := d.requestedByID(req.ServiceID)
		req.requestedService = rs
		if rs.service != nil {
			req.State = StateOpen
			d.s.emitDirectoryRefresh(req, []rdm.Service{*rs.service})
		} else {
			rs.directoryRequests = append(rs.directoryRequests, req)
		}
	}
	if !req.Streaming && req.State == StateOpen {
		req.State = StateClosed
	}
}

// OnRefresh merges every service entry of an upstream directory
// refresh/update and fans out whatever changed (spec.md §4.7).
func (d *DirectoryEngine) OnRefresh(services []rdm.Service) {
	for _, svc := range services {
		change := d.s.services.Apply(svc)
		d.fanoutChange(change)
	}
}

func (d *DirectoryEngine) fanoutChange(change ServiceChange) {
	id := ServiceID(change.Service.ID)

	if change.Deleted {
		d.detachRequestedService(id, change.Service.Name)
		for _, st := range d.s.streamsForService(id) {
			d.s.closeWithRecover(st, rdm.CodeNone, "Service for this item was lost")
		}
		nlog.Infof("directory: service %d %q deleted", id, change.Service.Name)
		return
	}

	if change.Service.StateFlags != rdm.FlagNone && change.Service.State.HasStatus {
		for _, st := range d.s.streamsForService(id) {
			d.s.fanoutServiceStatus(st, change.Service.State)
		}
	}

	for i := range change.Service.Group {
		g := change.Service.Group[i]
		if len(g.MergedToGroup) > 0 {
			d.s.groups.RenameGroup(id, g.GroupID, g.MergedToGroup)
		}
		if g.HasStatus {
			for _, st := range d.s.groups.GroupStatusFanout(id, g.GroupID) {
				d.s.fanoutGroupStatus(st, g)
			}
		}
	}

	if rs, ok := d.byID[id]; ok {
		d.attach(rs, &change.Service)
	}
	if rs, ok := d.byName[change.Service.Name]; ok {
		d.attach(rs, &change.Service)
	}

	for _, req := range d.allServices {
		d.s.emitDirectoryRefresh(req, []rdm.Service{change.Service})
	}
}

// attach binds rs to svc and attempts to re-find streams for every item
// request on rs's recoveringList (spec.md §4.7).
func (d *DirectoryEngine) attach(rs *requestedService, svc *rdm.Service) {
	rs.service = svc
	for _, req := range rs.directoryRequests {
		if req.State != StateOpen {
			req.State = StateOpen
			d.s.emitDirectoryRefresh(req, []rdm.Service{*svc})
			if !req.Streaming {
				req.State = StateClosed
			}
		}
	}
	pending := rs.recovering
	rs.recovering = nil
	for _, ir := range pending {
		d.s.items.findStream(ir, rs)
	}
}

// detachRequestedService drops the service back-reference from any
// requested-service matching id or name, so future matches re-attach
// cleanly once the service reappears.
func (d *DirectoryEngine) detachRequestedService(id ServiceID, name string) {
	if rs, ok := d.byID[id]; ok {
		rs.service = nil
	}
	if rs, ok := d.byName[name]; ok {
		rs.service = nil
	}
}
