package engine

import (
	"bytes"
	"encoding/json"
	"sort"

	"hiitrack.dev/hash"
	"hiitrack.dev/keys"
	"hiitrack.dev/store"
	"hiitrack.dev/utils/context"
)

// PropertyView is the response of GET property: every recorded value with
// its decoded payload and per-event totals, plus the events this property
// has been seen with.
type PropertyView struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Values Object `json:"values"`
	Events Object `json:"events"`
}

// PropertyValueView is one value of a PropertyView.
type PropertyValueView struct {
	Value any    `json:"value"`
	Total Object `json:"total"`
}

// PropertyTotals answers GET property. An unknown property name yields
// empty collections.
func (e *E) PropertyTotals(c context.T, user, bucket, name string) (
	v PropertyView, err error,
) {
	bucketID := BucketID(user, bucket)
	propertyID := PropertyID(bucketID, name)
	v = PropertyView{
		ID:     hash.Hex(propertyID),
		Name:   name,
		Values: Object{},
		Events: Object{},
	}

	// Decoded payloads from the value catalog.
	start, finish := keys.PrefixRange(keys.ValueEntry(propertyID, nil))
	cols, err := e.Store.Slice(
		c, store.Relation, bucketID, start, finish, 0, e.CL,
	)
	if err != nil {
		return
	}
	payloads := map[string]any{}
	var order []string
	for _, col := range cols {
		if len(col.Name) != 1+2*hash.Size {
			continue
		}
		valueID := hash.Hex(col.Name[1+hash.Size:])
		var decoded any
		if err = json.Unmarshal(col.Value, &decoded); err != nil {
			return
		}
		payloads[valueID] = decoded
		order = append(order, valueID)
	}

	// Per-event totals from the per-property counter row. The property view
	// counts visitors, not submissions, so it reads the unique variant; the
	// plain counts stay on the event?property view.
	ccols, err := e.Store.CounterSlice(
		c, keys.PropertyRow(bucketID, propertyID), nil, nil, 0, e.CL,
	)
	if err != nil {
		return
	}
	totals := map[string]map[string]int64{}
	for _, col := range ccols {
		if len(col.Name) != keys.LenUniqueValue {
			continue
		}
		eventID := hash.Hex(col.Name[:hash.Size])
		valueID := hash.Hex(col.Name[hash.Size : 2*hash.Size])
		nest(totals, valueID, eventID, col.Value)
	}

	sort.Strings(order)
	for _, valueID := range order {
		v.Values = append(v.Values, Entry{
			Key: valueID,
			Value: PropertyValueView{
				Value: payloads[valueID],
				Total: countObject(totals[valueID]),
			},
		})
	}

	v.Events, err = e.propertyEvents(c, bucketID, propertyID)
	return
}

// propertyEvents resolves the events cross-linked to this property into
// event id -> event name, using the event catalog for the names.
func (e *E) propertyEvents(c context.T, bucketID, propertyID []byte) (
	o Object, err error,
) {
	names := map[string]string{}
	start, finish := keys.PrefixRange([]byte{keys.EventCatalog})
	cols, err := e.Store.Slice(
		c, store.Relation, bucketID, start, finish, 0, e.CL,
	)
	if err != nil {
		return
	}
	for _, col := range cols {
		if len(col.Name) != 1+hash.Size {
			continue
		}
		var d Descriptor
		if d, err = decodeDescriptor(col.Value); err != nil {
			return
		}
		names[hash.Hex(col.Name[1:])] = d.Name
	}

	start, finish = keys.PrefixRange([]byte{keys.CrossLink})
	if cols, err = e.Store.Slice(
		c, store.Relation, bucketID, start, finish, 0, e.CL,
	); err != nil {
		return
	}
	o = Object{}
	for _, col := range cols {
		if len(col.Name) != 1+2*hash.Size {
			continue
		}
		if !bytes.Equal(col.Name[1+hash.Size:], propertyID) {
			continue
		}
		eventID := hash.Hex(col.Name[1 : 1+hash.Size])
		o = append(o, Entry{Key: eventID, Value: names[eventID]})
	}
	sort.Slice(o, func(i, j int) bool { return o[i].Key < o[j].Key })
	return
}

