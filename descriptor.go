package skein

import (
	"encoding/binary"
	"reflect"

	"github.com/cockroachdb/errors"
)

// descriptorTable maps type descriptor ids to fully-qualified type names.
// A write pass fills it in first-use order; a read pass loads it from the
// leading TypeDescriptorMap frame.
type descriptorTable struct {
	names map[uint16]string
	ids   map[string]uint16
	order []uint16
}

func newDescriptorTable() *descriptorTable {
	return &descriptorTable{
		names: make(map[uint16]string),
		ids:   make(map[string]uint16),
	}
}

// addKnownType returns the id for t, adding it if needed.
func (d *descriptorTable) addKnownType(t reflect.Type) (uint16, error) {
	return d.add(TypeName(t))
}

func (d *descriptorTable) add(name string) (uint16, error) {
	if id, ok := d.ids[name]; ok {
		return id, nil
	}
	if len(d.order) >= 0xFFFF {
		return 0, errors.Newf("type descriptor table full at %d entries", len(d.order))
	}
	id := uint16(len(d.order))
	d.set(id, name)
	return id, nil
}

func (d *descriptorTable) set(id uint16, name string) {
	if _, ok := d.names[id]; !ok {
		d.order = append(d.order, id)
	}
	d.names[id] = name
	d.ids[name] = id
}

// resolve returns the name registered under id.
func (d *descriptorTable) resolve(id uint16) (string, bool) {
	name, ok := d.names[id]
	return name, ok
}

func (d *descriptorTable) len() int { return len(d.order) }

// appendFrame writes the table as a TypeDescriptorMap frame.
func (d *descriptorTable) appendFrame(b []byte, s Settings) ([]byte, error) {
	var payload []byte
	for _, id := range d.order {
		name := d.names[id]
		payload = binary.LittleEndian.AppendUint16(payload, id)
		payload = binary.AppendUvarint(payload, uint64(len(name)))
		payload = append(payload, name...)
	}
	if uint64(len(payload)) > s.lengthLimit() {
		return nil, &SizeLimitError{Path: "<types>", Size: len(payload), Limit: s.lengthLimit()}
	}
	b = append(b, byte(TagTypeDescriptorMap))
	b = appendLength(b, s, len(payload))
	return append(b, payload...), nil
}

// parseDescriptors loads table entries from a TypeDescriptorMap payload.
// base is the payload offset used in error reports.
func parseDescriptors(payload []byte, base int) (*descriptorTable, error) {
	d := newDescriptorTable()
	pos := 0
	for pos < len(payload) {
		if len(payload)-pos < 2 {
			return nil, newFormatError("<types>", base+pos, "truncated type descriptor id")
		}
		id := binary.LittleEndian.Uint16(payload[pos:])
		pos += 2
		n, k := binary.Uvarint(payload[pos:])
		if k <= 0 {
			return nil, newFormatError("<types>", base+pos, "malformed type name length")
		}
		pos += k
		if n > uint64(len(payload)-pos) {
			return nil, newFormatError("<types>", base+pos, "type name of %d bytes overruns table", n)
		}
		if _, dup := d.names[id]; dup {
			return nil, newFormatError("<types>", base+pos, "duplicate type descriptor id %d", id)
		}
		d.set(id, string(payload[pos:pos+int(n)]))
		pos += int(n)
	}
	return d, nil
}

// appendLength writes a length field of the width selected by s.
func appendLength(b []byte, s Settings, n int) []byte {
	if s.Has(SettingCompact) {
		return binary.LittleEndian.AppendUint16(b, uint16(n))
	}
	return binary.LittleEndian.AppendUint32(b, uint32(n))
}
