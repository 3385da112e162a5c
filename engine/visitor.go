package engine

import (
	"hiitrack.dev/hash"
	"hiitrack.dev/keys"
	"hiitrack.dev/store"
	"hiitrack.dev/utils/context"
)

// propertyValue is one entry of a visitor's property snapshot.
type propertyValue struct {
	Property []byte
	Value    []byte
}

// visitorState is the scratch row read at the top of the event fan-out:
// the most recent event id (nil before the first event) and the current
// property snapshot.
type visitorState struct {
	PriorEvent []byte
	Snapshot   []propertyValue
}

// readVisitor slices the whole visitor row. A visitor never seen before
// yields a zero state.
func (e *E) readVisitor(c context.T, bucketID, visitorID []byte) (
	st visitorState, err error,
) {
	cols, err := e.Store.Slice(
		c, store.Relation, keys.VisitorRow(bucketID, visitorID),
		nil, nil, 0, e.CL,
	)
	if err != nil {
		return
	}
	for _, col := range cols {
		switch {
		case len(col.Name) == 1 && col.Name[0] == keys.VisitorEvent:
			if len(col.Value) == hash.Size {
				st.PriorEvent = col.Value
			}
		case len(col.Name) == 1+hash.Size &&
			col.Name[0] == keys.VisitorProperty:
			if len(col.Value) == hash.Size {
				st.Snapshot = append(st.Snapshot, propertyValue{
					Property: col.Name[1:],
					Value:    col.Value,
				})
			}
		}
	}
	return
}
