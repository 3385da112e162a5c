package cassandra

import (
	"bytes"
	"strings"
	"text/template"
)

// The schema is generated from a template so the keyspace and replication
// can be configured, particularly for testing against throwaway keyspaces.
//
// Row keys and column names are raw byte strings assembled by the keys
// package; the store never interprets them.
const schemaTemplate = `CREATE KEYSPACE IF NOT EXISTS {{.Keyspace}}
WITH REPLICATION = { 'class': 'SimpleStrategy', 'replication_factor': {{.ReplicationFactor}} };

-- user holds one row per account: the bcrypt password hash and nothing else.
CREATE TABLE IF NOT EXISTS {{.Keyspace}}."user" (
	key blob,
	column blob,
	value blob,
	PRIMARY KEY (key, column)
) WITH compaction = { 'class': 'LeveledCompactionStrategy' };

-- relation holds catalogs, visitor state, and unique markers.
CREATE TABLE IF NOT EXISTS {{.Keyspace}}.relation (
	key blob,
	column blob,
	value blob,
	PRIMARY KEY (key, column)
) WITH compaction = { 'class': 'LeveledCompactionStrategy' };

-- counter holds every aggregate the write fan-out maintains.
CREATE TABLE IF NOT EXISTS {{.Keyspace}}.counter (
	key blob,
	column blob,
	value counter,
	PRIMARY KEY (key, column)
);`

// SchemaConfig parameterizes the generated schema.
type SchemaConfig struct {
	Keyspace          string
	ReplicationFactor int
}

// Schema renders the CQL statements creating the keyspace and the three
// column families, one statement per slice entry.
func Schema(cfg SchemaConfig) (stmts []string, err error) {
	t, err := template.New("schema").Parse(schemaTemplate)
	if err != nil {
		return
	}
	var buf bytes.Buffer
	if err = t.Execute(&buf, cfg); err != nil {
		return
	}
	for _, stmt := range strings.Split(buf.String(), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		stmts = append(stmts, stmt)
	}
	return
}
