// Package encoding maps categorical values to the integer codes fit at training time.
//
// The encoder file is a JSON object mapping each category name to the ordered list of its distinct
// values; a value's position in the list is its code.
package encoding

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
)

// FallbackCode is returned for values absent from a table. It is indistinguishable from a value
// legitimately coded 0; use Lookup when the difference matters.
const FallbackCode = 0

// Category table names used by the response-time model
const (
	IncidentGroup         = "IncidentGroup"
	IncidentStationGround = "IncidentStationGround"
	PropertyCategory      = "PropertyCategory"
	BoroughName           = "IncGeo_BoroughName"
	DeployedFromStation   = "DeployedFromStation_Name"
)

// RequiredTables lists the tables every encoder file must provide
var RequiredTables = []string{
	IncidentGroup,
	IncidentStationGround,
	PropertyCategory,
	BoroughName,
	DeployedFromStation,
}

// EncoderLoadError reports a missing or corrupt encoder file
type EncoderLoadError struct {
	Path string
	Err  error
}

func (e *EncoderLoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("loading encoders: %v", e.Err)
	}
	return fmt.Sprintf("loading encoders from %s: %v", e.Path, e.Err)
}

func (e *EncoderLoadError) Unwrap() error { return e.Err }

// Table maps raw category values to codes
type Table map[string]int

// Encoders holds one table per category. It is read-only after loading.
type Encoders struct {
	tables map[string]Table
}

// Load reads encoder tables from a JSON file
func Load(path string) (*Encoders, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &EncoderLoadError{Path: path, Err: err}
	}
	defer file.Close()

	enc, err := Parse(file)
	if err != nil {
		var le *EncoderLoadError
		if errors.As(err, &le) {
			le.Path = path
		}
		return nil, err
	}
	return enc, nil
}

// Parse reads encoder tables from r
func Parse(r io.Reader) (*Encoders, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &EncoderLoadError{Err: fmt.Errorf("reading encoder JSON: %w", err)}
	}

	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &EncoderLoadError{Err: fmt.Errorf("parsing encoder JSON: %w", err)}
	}
	return New(raw)
}

// New builds encoders from category -> ordered distinct values.
// A repeated value keeps its last position.
func New(classes map[string][]string) (*Encoders, error) {
	for _, name := range RequiredTables {
		if _, ok := classes[name]; !ok {
			return nil, &EncoderLoadError{Err: fmt.Errorf("missing table %q", name)}
		}
	}

	tables := make(map[string]Table, len(classes))
	for name, values := range classes {
		table := make(Table, len(values))
		for code, value := range values {
			table[value] = code
		}
		tables[name] = table
	}
	return &Encoders{tables: tables}, nil
}

// Encode returns the code for value in the named table, or FallbackCode when either is unknown
func (e *Encoders) Encode(table, value string) int {
	code, _ := e.Lookup(table, value)
	return code
}

// Lookup is Encode with a flag telling whether value was seen at training time
func (e *Encoders) Lookup(table, value string) (int, bool) {
	t, ok := e.tables[table]
	if !ok {
		return FallbackCode, false
	}
	code, ok := t[value]
	if !ok {
		return FallbackCode, false
	}
	return code, true
}

// Values returns the known values of a table ordered by code
func (e *Encoders) Values(table string) []string {
	t := e.tables[table]
	values := make([]string, 0, len(t))
	for v := range t {
		values = append(values, v)
	}
	sort.Slice(values, func(i, j int) bool { return t[values[i]] < t[values[j]] })
	return values
}

// Tables returns the sorted table names
func (e *Encoders) Tables() []string {
	names := make([]string, 0, len(e.tables))
	for name := range e.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
