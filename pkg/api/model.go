package api

import (
	"bytes"
	"encoding/json"
	"time"
)

// listEnvelope is the common shape of the paginated list endpoints:
// a value array plus an optional continuation link.
type listEnvelope struct {
	Value    []json.RawMessage `json:"value"`
	NextLink string            `json:"@odata.nextLink"`
}

// ident is the part of a list item used for deduplication.
type ident struct {
	ID string `json:"id"`
}

type notebookItem struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

type sectionItem struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// pageItem is the wire record for one page.
//
// The service encodes the hierarchy as a nesting level plus an order
// key over the section's page sequence; the parent reference is derived
// from those by the client (see Pages).
type pageItem struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Level      int       `json:"level"`
	Order      *int      `json:"order"`
	ContentURL string    `json:"contentUrl"`
	Created    *DateTime `json:"createdDateTime"`
	Modified   *DateTime `json:"lastModifiedDateTime"`
}

// DateTime wraps time.Time with the timestamp format used by the service.
type DateTime struct {
	time.Time
}

func (d *DateTime) UnmarshalJSON(b []byte) error {
	var s string
	err := json.Unmarshal(b, &s)
	if err != nil {
		return err
	}

	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return err
	}

	*d = DateTime{t}
	return nil
}

func (d DateTime) MarshalJSON() ([]byte, error) {
	s := d.Format(time.RFC3339Nano)
	buf := bytes.NewBufferString(`"`)
	buf.WriteString(s)
	buf.WriteString(`"`)

	return buf.Bytes(), nil
}
