package firestore

import (
	"fmt"
	"strings"
	"time"

	"github.com/cuongbtq/itinerary-be/internal/itinerary"
)

// Fields maps field names to values. A missing key is an absent field.
type Fields map[string]Value

// document is the REST representation of a Firestore document
type document struct {
	Name       string `json:"name,omitempty"`
	Fields     Fields `json:"fields"`
	UpdateTime string `json:"updateTime,omitempty"`
}

// id returns the last segment of the document name
func (d *document) id() string {
	return d.Name[strings.LastIndex(d.Name, "/")+1:]
}

// encodeRecord returns the fields of a newly created record
func encodeRecord(rec itinerary.Record) Fields {
	fields := Fields{
		itinerary.FieldDestination:  String(rec.Destination),
		itinerary.FieldDurationDays: Integer(int64(rec.DurationDays)),
		itinerary.FieldStatus:       String(string(rec.Status)),
		itinerary.FieldCreatedAt:    Timestamp(rec.CreatedAt),
		itinerary.FieldUpdatedAt:    Timestamp(rec.UpdatedAt),
	}
	if rec.RetryCount > 0 {
		fields[itinerary.FieldRetryCount] = Integer(int64(rec.RetryCount))
	}
	return fields
}

// encodePatch returns the patched fields and the update mask naming
// exactly those fields
func encodePatch(p itinerary.Patch) (Fields, []string) {
	fields := make(Fields, 6)
	if p.Status != nil {
		fields[itinerary.FieldStatus] = String(string(*p.Status))
	}
	if p.RetryCount != nil {
		fields[itinerary.FieldRetryCount] = Integer(int64(*p.RetryCount))
	}
	if p.Result != nil {
		fields[itinerary.FieldResult] = String(*p.Result)
	}
	if p.Error != nil {
		fields[itinerary.FieldError] = String(*p.Error)
	}
	fields[itinerary.FieldUpdatedAt] = Timestamp(p.UpdatedAt)
	if p.CompletedAt != nil {
		fields[itinerary.FieldCompletedAt] = Timestamp(*p.CompletedAt)
	}
	return fields, p.Fields()
}

// decodeRecord builds a record from a stored document. Absent optional
// fields keep their zero value; a present field of the wrong kind is an
// error.
func decodeRecord(doc *document) (*itinerary.Record, error) {
	rec := &itinerary.Record{ID: doc.id()}
	f := doc.Fields

	var err error
	if rec.Destination, err = f.optString(itinerary.FieldDestination); err != nil {
		return nil, err
	}
	status, err := f.optString(itinerary.FieldStatus)
	if err != nil {
		return nil, err
	}
	rec.Status = itinerary.Status(status)
	if rec.Result, err = f.optString(itinerary.FieldResult); err != nil {
		return nil, err
	}
	if rec.Error, err = f.optString(itinerary.FieldError); err != nil {
		return nil, err
	}

	days, err := f.optInteger(itinerary.FieldDurationDays)
	if err != nil {
		return nil, err
	}
	rec.DurationDays = int(days)
	retries, err := f.optInteger(itinerary.FieldRetryCount)
	if err != nil {
		return nil, err
	}
	rec.RetryCount = int(retries)

	if rec.CreatedAt, err = f.optTimestamp(itinerary.FieldCreatedAt); err != nil {
		return nil, err
	}
	if rec.UpdatedAt, err = f.optTimestamp(itinerary.FieldUpdatedAt); err != nil {
		return nil, err
	}
	if v, ok := f[itinerary.FieldCompletedAt]; ok && v.Kind() != KindNull {
		completedAt, err := f.optTimestamp(itinerary.FieldCompletedAt)
		if err != nil {
			return nil, err
		}
		rec.CompletedAt = &completedAt
	}

	return rec, nil
}

func (f Fields) optString(name string) (string, error) {
	v, ok := f[name]
	if !ok || v.Kind() == KindNull {
		return "", nil
	}
	s, ok := v.AsString()
	if !ok {
		return "", fieldKindError(name, KindString, v)
	}
	return s, nil
}

func (f Fields) optInteger(name string) (int64, error) {
	v, ok := f[name]
	if !ok || v.Kind() == KindNull {
		return 0, nil
	}
	n, ok := v.AsInteger()
	if !ok {
		return 0, fieldKindError(name, KindInteger, v)
	}
	return n, nil
}

func (f Fields) optTimestamp(name string) (time.Time, error) {
	v, ok := f[name]
	if !ok || v.Kind() == KindNull {
		return time.Time{}, nil
	}
	t, ok := v.AsTimestamp()
	if !ok {
		return time.Time{}, fieldKindError(name, KindTimestamp, v)
	}
	return t, nil
}

func fieldKindError(name string, want Kind, got Value) error {
	return fmt.Errorf("field %s: want %s value, got %s", name, want, got.Kind())
}
