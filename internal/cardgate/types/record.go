package types

import (
	"fmt"
	"strings"
)

// Record is one authorization entry in the access list.  The zero value
// marks an empty slot.
type Record struct {
	ID      string
	Name    string
	Unit    string
	Enabled bool
}

// IsZero reports whether the record is an empty slot.
func (r Record) IsZero() bool {
	return r.ID == ""
}

// Line serializes the record in the persisted on-disk format:
// id|name|unit|enabled, with enabled as "1" or "0".  Fields containing
// the delimiter are never produced here; ValidateFields rejects them
// before a record is constructed.
func (r Record) Line() string {
	flag := "0"
	if r.Enabled {
		flag = "1"
	}
	return r.ID + "|" + r.Name + "|" + r.Unit + "|" + flag
}

// ParseLine parses one persisted line into a Record.  It returns an error
// for lines that do not have exactly four pipe-delimited fields or whose
// id field is empty.  Callers skip malformed lines rather than failing
// the whole load.
func ParseLine(line string) (Record, error) {
	parts := strings.Split(line, "|")
	if len(parts) != 4 {
		return Record{}, fmt.Errorf("parse record: expected 4 fields, got %d", len(parts))
	}
	if strings.TrimSpace(parts[0]) == "" {
		return Record{}, fmt.Errorf("parse record: empty id")
	}
	return Record{
		ID:      parts[0],
		Name:    parts[1],
		Unit:    parts[2],
		Enabled: parts[3] == "1",
	}, nil
}

// ValidateFields checks that id/name/unit are storable: the id is
// non-empty and no field contains the delimiter or a newline.  The file
// format has no escaping, so a stray "|" would corrupt every record
// after it on the next rewrite.
func ValidateFields(id, name, unit string) error {
	if id == "" {
		return fmt.Errorf("record id is required")
	}
	for _, f := range []string{id, name, unit} {
		if strings.ContainsAny(f, "|\r\n") {
			return fmt.Errorf("record fields must not contain '|' or newlines")
		}
	}
	return nil
}
