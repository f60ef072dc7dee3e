package models

import "time"

// Wire representations exchanged with the backend sync API. Domain fields
// travel as a flat JSON object; timestamp fields are coerced back to
// time.Time through the table schema on arrival.

// WireRecord is one record on the wire. Foreign-key fields hold CloudIDs in
// this representation; the engine rewrites them before and after transport.
type WireRecord struct {
	LocalID   string         `json:"local_id"`
	CloudID   string         `json:"cloud_id,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt *time.Time     `json:"deleted_at,omitempty"`
	Fields    map[string]any `json:"fields"`
}

// ToWire converts a record to its wire shape. Dirty and SyncError are
// device-local state and never leave the device.
func ToWire(r Record) WireRecord {
	return WireRecord{
		LocalID:   r.Meta.LocalID,
		CloudID:   r.Meta.CloudID,
		CreatedAt: r.Meta.CreatedAt,
		UpdatedAt: r.Meta.UpdatedAt,
		DeletedAt: r.Meta.DeletedAt,
		Fields:    r.Fields,
	}
}

// ToRecord converts a wire record back to the engine envelope, coercing
// timestamp fields (decoded by encoding/json as RFC3339 strings) to
// time.Time per the schema.
func (w WireRecord) ToRecord(schema TableSchema) Record {
	fields := make(map[string]any, len(w.Fields))
	for k, v := range w.Fields {
		fields[k] = v
	}
	for _, col := range schema.Columns {
		if col.Type != ColTimestamp {
			continue
		}
		if s, ok := fields[col.Field].(string); ok {
			if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
				fields[col.Field] = t
			}
		}
	}

	return Record{
		Meta: SyncMeta{
			LocalID:   w.LocalID,
			CloudID:   w.CloudID,
			CreatedAt: w.CreatedAt,
			UpdatedAt: w.UpdatedAt,
			DeletedAt: w.DeletedAt,
		},
		Fields: fields,
	}
}

// ChangesResponse is the backend reply to "list changes since cursor".
type ChangesResponse struct {
	Records    []WireRecord `json:"records"`
	NextCursor string       `json:"next_cursor"`
}

// BatchRequest is a bulk upsert of locally changed records. LocalID acts as
// the idempotency key: re-pushing an already accepted record must not create
// a duplicate remote row.
type BatchRequest struct {
	Records []WireRecord `json:"records"`
	Length  int          `json:"length"`
}

// PushOutcome is the per-row verdict of a batch push.
type PushOutcome string

const (
	PushAccepted PushOutcome = "accepted"
	PushRejected PushOutcome = "rejected"
	PushConflict PushOutcome = "conflict"
)

// BatchRowResult is one row's verdict in a BatchResponse.
type BatchRowResult struct {
	LocalID string      `json:"local_id"`
	Status  PushOutcome `json:"status"`
	CloudID string      `json:"cloud_id,omitempty"`
	Reason  string      `json:"reason,omitempty"`
	Record  *WireRecord `json:"record,omitempty"`
}

// BatchResponse is the backend reply to a batch push.
type BatchResponse struct {
	Results []BatchRowResult `json:"results"`
}

// PullResult is the adapter-level result of one pull call, already converted
// to engine records.
type PullResult struct {
	Records    []Record
	NextCursor string
}

// PushResult is the adapter-level per-record outcome of a push call.
type PushResult struct {
	LocalID string
	Outcome PushOutcome
	CloudID string
	Reason  string
	// Remote carries the backend's current version when Outcome is
	// PushConflict.
	Remote *Record
}
