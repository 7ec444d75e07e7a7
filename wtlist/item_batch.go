package wtlist

import (
	jsoniter "github.com/json-iterator/go"
	cuckoo "github.com/seiflotfy/cuckoofilter"

	"github.com/Refinitiv/Real-Time-SDK-sub030/cmn/cos"
	"github.com/Refinitiv/Real-Time-SDK-sub030/rdm"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// batchPayload is the decoded shape of a HAS_BATCH request's element list
// (spec.md §4.8.7). jsoniter decodes it the way the teacher's api/apc
// package decodes actmsg JSON bodies — a third-party decoder standing in
// for whatever reflection-light hot path the real wire codec would use.
type batchPayload struct {
	ItemList []string `json:":ItemList"`
}

// ExpandBatch implements spec.md §4.8.7: allocate N sibling item
// requests, retain the original as a closed-ok acknowledgement stub, and
// roll back everything created so far on any mid-expansion failure.
func (e *ItemEngine) ExpandBatch(stub *ItemRequest, payload []byte, submit func(*ItemRequest) error) ([]*ItemRequest, error) {
	var bp batchPayload
	if err := jsonAPI.Unmarshal(payload, &bp); err != nil {
		return nil, errInvalidData("batch payload: %v", err)
	}
	if len(bp.ItemList) == 0 {
		return nil, errInvalidArgument("batch request carries no :ItemList")
	}
	if stub.Key.HasName {
		return nil, errInvalidArgument("batch request must not carry a name in its message key")
	}

	var errs cos.Errs
	siblings := make([]*ItemRequest, 0, len(bp.ItemList))
	nextID := stub.ID + 1

	for _, name := range bp.ItemList {
		if e.s.itemReqByID[nextID] != nil {
			errs.Add(errInvalidArgument("batch sibling stream id %d collides with an existing request", nextID))
			break
		}
		sib := &ItemRequest{
			RequestBase: RequestBase{ID: nextID, Domain: stub.Domain, UserSpec: stub.UserSpec},
			Key:         stub.Key,
			Qos:         stub.Qos,
			WorstQos:    stub.WorstQos,
			StaticQos:   stub.StaticQos,
			Priority:    stub.Priority,
			Streaming:   stub.Streaming,
			Private:     stub.Private,
			Qualified:   stub.Qualified,
		}
		sib.Key.HasName, sib.Key.Name = true, name
		if err := submit(sib); err != nil {
			errs.Add(err)
			break
		}
		siblings = append(siblings, sib)
		nextID++
	}

	if errs.Cnt() > 0 {
		for _, sib := range siblings {
			e.s.closeAndDestroyRequest(sib)
		}
		return nil, errs.Err()
	}

	stub.Batch, stub.BatchAck = true, true
	return siblings, nil
}

// providerRequestKey hashes (domain, qos, msgKey) for symbol-list
// data-stream dedup (spec.md §4.8.8).
func providerRequestKey(domain rdm.Domain, qos rdm.Qos, key rdm.MsgKey) string {
	return streamAttribKey(domain, key, qos)
}

// SymbolListEngine owns the derived-request dedup filter of spec.md
// §4.8.8: a cuckoo filter stands in for the exact hash set the source
// keeps, trading a small false-positive rate (which only costs a
// suppressed, re-discoverable duplicate add) for O(1) bounded memory
// regardless of symbol-list size.
type SymbolListEngine struct {
	seen *cuckoo.Filter
}

func newSymbolListEngine() *SymbolListEngine {
	return &SymbolListEngine{seen: cuckoo.NewFilter(1 << 16)}
}

// ExpandSymbolList inspects an arriving payload for ADD/UPDATE entries and
// synthesizes provider-driven market-price requests for each undup'd one.
func (sle *SymbolListEngine) ExpandSymbolList(e *ItemEngine, req *SymbolListRequest, svc *rdm.Service, payload map[string]any, submit func(*ItemRequest) error) error {
	if req.Behavior == SymbolListNamesOnly {
		return nil
	}
	for name, raw := range payload {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		action, _ := entry["action"].(string)
		if action == "DELETE" {
			continue
		}

		key := rdm.MsgKey{HasName: true, Name: name, HasServiceID: true, ServiceID: svc.ID}
		best, ok := serviceQos(svc)
		if !ok {
			continue
		}
		dedupKey := providerRequestKey(rdm.DomainMarketPrice, best, key)
		if sle.seen.Lookup([]byte(dedupKey)) {
			continue
		}
		sle.seen.Insert([]byte(dedupKey))

		id := e.providerIDs.Take()
		derived := &ItemRequest{
			RequestBase:    RequestBase{ID: RequestID(id), Domain: rdm.DomainMarketPrice},
			Key:            key,
			Qos:            best,
			Streaming:      req.Behavior == SymbolListDataStreams,
			ProviderDriven: true,
		}
		if err := submit(derived); err != nil {
			return err
		}
	}
	return nil
}

// SetPause applies spec.md §4.8.9: any change in paused-request count
// flags the stream for resend.
func (e *ItemEngine) SetPause(st *ItemStream, req *ItemRequest, paused bool) {
	if req.Paused == paused {
		return
	}
	req.Paused = paused
	if paused {
		st.RequestsPausedCount++
	} else {
		st.RequestsPausedCount--
	}
	e.flagForSend(st)
}

func sameKeyModuloService(a, b rdm.MsgKey) bool {
	return a.HasName == b.HasName && a.Name == b.Name &&
		a.HasNameType == b.HasNameType && a.NameType == b.NameType &&
		a.HasFilter == b.HasFilter && a.Filter == b.Filter &&
		a.HasIdentifier == b.HasIdentifier && a.Identifier == b.Identifier
}

// Reissue validates and applies spec.md §4.8.10's reissue rules.
func (e *ItemEngine) Reissue(req *ItemRequest, upd *ItemRequest) error {
	st := req.stream
	if st == nil {
		return errInvalidArgument("reissue on a request not yet attached to a stream")
	}
	if upd.Domain != req.Domain || upd.Private != req.Private || upd.StaticQos != req.StaticQos {
		return errInvalidArgument("reissue changes immutable request attributes")
	}
	if !upd.Key.HasServiceID {
		if upd.Key.Name != req.Key.Name {
			return errInvalidArgument("reissue by service name must keep the item name")
		}
	} else if !sameKeyModuloService(upd.Key, req.Key) {
		return errInvalidArgument("reissue changes the message key")
	}
	if !upd.Qos.Equal(req.Qos) || !upd.WorstQos.Equal(req.WorstQos) {
		return errInvalidArgument("reissue changes qos/worstQos")
	}
	if upd.View != nil && st.AggregateView != nil && upd.View.Type != st.AggregateView.typ {
		return errInvalidArgument("reissue cannot change view type on a shared stream")
	}
	if req.Streaming && !upd.Streaming {
		return errInvalidArgument("reissue cannot disable streaming")
	}

	req.Streaming = upd.Streaming
	req.Priority = upd.Priority
	if req.Private {
		req.EncodedPayload = upd.EncodedPayload
		req.ExtendedHeader = upd.ExtendedHeader
	}
	if upd.View != nil {
		if st.AggregateView == nil {
			st.AggregateView = newViewAggregator(upd.View.Type)
		}
		st.AggregateView.Remove(*req.View)
		st.AggregateView.Add(*upd.View)
		req.View = upd.View
		st.set(FlagPendingViewChange)
	}

	st.Open = removeItemRequest(st.Open, req)
	st.PendingRefresh = removeItemRequest(st.PendingRefresh, req)
	st.Recovering = removeItemRequest(st.Recovering, req)

	req.State = StateRecovering
	st.Recovering = append(st.Recovering, req)
	e.flagForSend(st)
	return nil
}
