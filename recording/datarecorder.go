// Package recording stores observed bus transfers into SQLite databases and
// CSV files for post-simulation checking.
package recording

import (
	"database/sql"
	"fmt"
	"os"
	"reflect"
	"strings"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// DataRecorder is a backend that can record and store data.
type DataRecorder interface {
	// CreateTable creates a new table with columns derived from the fields
	// of the sample entry.
	CreateTable(tableName string, sampleEntry any)

	// InsertData writes a same-type entry into a table that already exists.
	InsertData(tableName string, entry any)

	// ListTables returns the names of all created tables.
	ListTables() []string

	// Flush writes all the buffered entries into the database.
	Flush()

	// Close flushes and closes the database.
	Close()
}

// NewDataRecorder creates a DataRecorder backed by a SQLite database at the
// given path. An empty path picks a unique name.
func NewDataRecorder(path string) DataRecorder {
	w := &sqliteWriter{
		dbName:    path,
		batchSize: 100000,
		tables:    make(map[string]*table),
	}

	w.init()

	atexit.Register(func() { w.Flush() })

	return w
}

// NewDataRecorderWithDB creates a DataRecorder on an already-open database.
func NewDataRecorderWithDB(db *sql.DB) DataRecorder {
	w := &sqliteWriter{
		db:        db,
		batchSize: 100000,
		tables:    make(map[string]*table),
	}

	atexit.Register(func() { w.Flush() })

	return w
}

type table struct {
	structType reflect.Type
	entries    []any
}

// sqliteWriter is the writer that writes data into a SQLite database.
type sqliteWriter struct {
	db *sql.DB

	dbName    string
	tables    map[string]*table
	batchSize int
}

func (w *sqliteWriter) init() {
	if w.dbName == "" {
		w.dbName = "apbvip_recording_" + xid.New().String()
	}

	filename := w.dbName + ".sqlite3"

	_, err := os.Stat(filename)
	if err == nil {
		panic(fmt.Errorf("file %s already exists", filename))
	}

	fmt.Fprintf(os.Stderr, "Database created for recording: %s\n", filename)

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		panic(err)
	}

	w.db = db
}

func isAllowedKind(kind reflect.Kind) bool {
	switch kind {
	case
		reflect.Bool,
		reflect.Int,
		reflect.Int8,
		reflect.Int16,
		reflect.Int32,
		reflect.Int64,
		reflect.Uint,
		reflect.Uint8,
		reflect.Uint16,
		reflect.Uint32,
		reflect.Uint64,
		reflect.Float32,
		reflect.Float64,
		reflect.String:
		return true
	default:
		return false
	}
}

// CreateTable creates a table whose columns mirror the sample entry fields.
func (w *sqliteWriter) CreateTable(tableName string, sampleEntry any) {
	if _, ok := w.tables[tableName]; ok {
		panic(fmt.Errorf("table %s already exists", tableName))
	}

	t := reflect.TypeOf(sampleEntry)
	if t.Kind() != reflect.Struct {
		panic(fmt.Errorf("sample entry must be a struct, got %s", t.Kind()))
	}

	columns := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !isAllowedKind(field.Type.Kind()) {
			panic(fmt.Errorf("field %s has unsupported kind %s",
				field.Name, field.Type.Kind()))
		}

		columns = append(columns,
			strings.ToLower(field.Name)+" "+sqlType(field.Type.Kind()))
	}

	stmt := fmt.Sprintf("CREATE TABLE %s (%s)",
		tableName, strings.Join(columns, ", "))
	_, err := w.db.Exec(stmt)
	if err != nil {
		panic(err)
	}

	w.tables[tableName] = &table{structType: t}
}

func sqlType(kind reflect.Kind) string {
	switch kind {
	case reflect.Float32, reflect.Float64:
		return "REAL"
	case reflect.String:
		return "TEXT"
	default:
		return "INTEGER"
	}
}

// InsertData buffers an entry for insertion into the named table.
func (w *sqliteWriter) InsertData(tableName string, entry any) {
	t, ok := w.tables[tableName]
	if !ok {
		panic(fmt.Errorf("table %s does not exist", tableName))
	}

	if reflect.TypeOf(entry) != t.structType {
		panic(fmt.Errorf("entry type %s does not match table %s",
			reflect.TypeOf(entry), tableName))
	}

	t.entries = append(t.entries, entry)
	if len(t.entries) >= w.batchSize {
		w.Flush()
	}
}

// ListTables returns the names of all created tables.
func (w *sqliteWriter) ListTables() []string {
	names := make([]string, 0, len(w.tables))
	for name := range w.tables {
		names = append(names, name)
	}

	return names
}

// Flush writes all the buffered entries into the database.
func (w *sqliteWriter) Flush() {
	for name, t := range w.tables {
		if len(t.entries) == 0 {
			continue
		}

		w.flushTable(name, t)
	}
}

func (w *sqliteWriter) flushTable(name string, t *table) {
	tx, err := w.db.Begin()
	if err != nil {
		panic(err)
	}

	placeholders := strings.TrimSuffix(
		strings.Repeat("?, ", t.structType.NumField()), ", ")
	stmt, err := tx.Prepare(fmt.Sprintf(
		"INSERT INTO %s VALUES (%s)", name, placeholders))
	if err != nil {
		panic(err)
	}

	for _, entry := range t.entries {
		v := reflect.ValueOf(entry)
		args := make([]any, v.NumField())
		for i := range args {
			args[i] = v.Field(i).Interface()
		}

		_, err = stmt.Exec(args...)
		if err != nil {
			panic(err)
		}
	}

	err = stmt.Close()
	if err != nil {
		panic(err)
	}

	err = tx.Commit()
	if err != nil {
		panic(err)
	}

	t.entries = nil
}

// Close flushes and closes the database.
func (w *sqliteWriter) Close() {
	w.Flush()

	err := w.db.Close()
	if err != nil {
		panic(err)
	}
}
