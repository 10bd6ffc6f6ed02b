// Package codec reads and writes time log files.
//
// A time log file is a UTF-8 XML document:
//
//	<?xml version="1.0" encoding="UTF-8"?>
//	<timeLogEntries>
//	  <time id="12" path="/Proj/Design" start="2026-03-02T09:00:00Z" delta="45" interrupt="5" comment="..." flag="M"></time>
//	</timeLogEntries>
//
// The flag attribute is one of " AMDR" and is absent for unchanged entries.
// Batch renames are written as records with no id, the old and new path
// joined by a newline, and flag "R".
package codec

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/Tiliavir/trivial-time-log/internal/entryiter"
	"github.com/Tiliavir/trivial-time-log/internal/model"
)

const (
	rootElement  = "timeLogEntries"
	entryElement = "time"
)

// ErrMalformedRecord marks a single record that could not be decoded.
var ErrMalformedRecord = errors.New("malformed time log record")

// startLayouts are accepted when reading start times, newest format first.
var startLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
}

type xmlRecord struct {
	XMLName   xml.Name `xml:"time"`
	ID        string   `xml:"id,attr,omitempty"`
	Path      string   `xml:"path,attr,omitempty"`
	Start     string   `xml:"start,attr,omitempty"`
	Delta     int64    `xml:"delta,attr,omitempty"`
	Interrupt int64    `xml:"interrupt,attr,omitempty"`
	Comment   *string  `xml:"comment,attr,omitempty"`
	Flag      string   `xml:"flag,attr,omitempty"`
}

// FormatStart renders a start time the way the writer stores it.
func FormatStart(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseStart parses a stored start time. Besides RFC 3339 it accepts the
// legacy "@<unix millis>" form.
func ParseStart(s string) (time.Time, error) {
	if millis, ok := strings.CutPrefix(s, "@"); ok {
		n, err := strconv.ParseInt(millis, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("bad start time %q: %w", s, err)
		}
		return time.UnixMilli(n).UTC(), nil
	}
	for _, layout := range startLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("bad start time %q", s)
}

func toXML(rec model.PendingChange) xmlRecord {
	e := rec.Entry
	x := xmlRecord{
		Path:      e.Path,
		Delta:     e.Elapsed,
		Interrupt: e.Interrupt,
		Comment:   e.Comment,
	}
	if e.ID != 0 {
		x.ID = strconv.FormatUint(e.ID, 10)
	}
	if e.Start != nil {
		x.Start = FormatStart(*e.Start)
	}
	if rec.Flag != model.NoChange {
		x.Flag = string(rec.Flag.Code())
	}
	return x
}

func fromAttrs(attrs []xml.Attr) (model.PendingChange, error) {
	var rec model.PendingChange
	for _, a := range attrs {
		var err error
		switch a.Name.Local {
		case "id":
			rec.Entry.ID, err = strconv.ParseUint(a.Value, 10, 64)
		case "path":
			rec.Entry.Path = a.Value
		case "start":
			var t time.Time
			t, err = ParseStart(a.Value)
			rec.Entry.Start = &t
		case "delta":
			rec.Entry.Elapsed, err = strconv.ParseInt(a.Value, 10, 64)
		case "interrupt":
			rec.Entry.Interrupt, err = strconv.ParseInt(a.Value, 10, 64)
		case "comment":
			rec.Entry.Comment = model.StringPtr(a.Value)
		case "flag":
			flag, ok := model.NoChange, len(a.Value) == 1
			if ok {
				flag, ok = model.FlagFromCode(a.Value[0])
			}
			if !ok {
				err = fmt.Errorf("unknown flag %q", a.Value)
			}
			rec.Flag = flag
		}
		if err != nil {
			return rec, fmt.Errorf("%w: attribute %s: %v", ErrMalformedRecord, a.Name.Local, err)
		}
	}
	if rec.Flag == model.BatchRename {
		if !model.IsRenameEncoding(rec.Entry) {
			return rec, fmt.Errorf("%w: rename record is not a rename", ErrMalformedRecord)
		}
	} else if rec.Entry.ID == 0 {
		return rec, fmt.Errorf("%w: missing id", ErrMalformedRecord)
	}
	return rec, nil
}

// Write encodes records as a complete time log document.
func Write(w io.Writer, records entryiter.Records) error {
	defer records.Close()
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	root := xml.StartElement{Name: xml.Name{Local: rootElement}}
	if err := enc.EncodeToken(root); err != nil {
		return err
	}
	for records.Next() {
		if err := enc.Encode(toXML(records.Entry())); err != nil {
			return fmt.Errorf("encoding time log record: %w", err)
		}
	}
	if err := records.Err(); err != nil {
		return err
	}
	if err := enc.EncodeToken(root.End()); err != nil {
		return err
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// Reader decodes records lazily from a time log document. Malformed records
// are logged and skipped.
type Reader struct {
	dec    *xml.Decoder
	name   string
	log    *slog.Logger
	closer io.Closer
	cur    model.PendingChange
	err    error
	done   bool
}

var _ entryiter.Records = (*Reader)(nil)

// NewReader reads records from r. name identifies the source in log
// messages. A nil logger uses slog.Default().
func NewReader(r io.Reader, name string, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{dec: xml.NewDecoder(r), name: name, log: logger}
}

// Open reads the time log file at path. A missing file reads as empty.
func Open(fs afero.Fs, path string, logger *slog.Logger) (entryiter.Records, error) {
	f, err := fs.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return entryiter.Empty[model.PendingChange](), nil
	}
	if err != nil {
		return nil, err
	}
	r := NewReader(f, path, logger)
	r.closer = f
	return r, nil
}

// Next advances to the next well-formed record.
func (r *Reader) Next() bool {
	for !r.done {
		tok, err := r.dec.Token()
		if err == io.EOF {
			r.done = true
			break
		}
		if err != nil {
			r.err = fmt.Errorf("reading time log %s: %w", r.name, err)
			r.done = true
			break
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != entryElement {
			continue
		}
		line, _ := r.dec.InputPos()
		rec, perr := fromAttrs(start.Attr)
		if err := r.dec.Skip(); err != nil {
			r.err = fmt.Errorf("reading time log %s: %w", r.name, err)
			r.done = true
			break
		}
		if perr != nil {
			r.log.Warn("discarding garbled time log entry",
				"file", r.name, "line", line, "error", perr)
			continue
		}
		r.cur = rec
		return true
	}
	return false
}

// Entry returns the current record.
func (r *Reader) Entry() model.PendingChange { return r.cur }

// Err returns the error that stopped the reader, if any.
func (r *Reader) Err() error { return r.err }

// Close closes the underlying file, if the reader owns one.
func (r *Reader) Close() error {
	r.done = true
	if r.closer == nil {
		return nil
	}
	c := r.closer
	r.closer = nil
	return c.Close()
}
