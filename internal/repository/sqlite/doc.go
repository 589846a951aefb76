// Package sqlite implements the user and chat repositories over an
// embedded SQLite database.
//
// The package is layered: the DAO speaks SQL and row structs, the
// repositories decode rows into domain entities, and the Factory wires
// both over one connection and one write coordinator. All writes run in
// their own transaction through the coordinator; generated IDs are read
// with last_insert_rowid() inside the same transaction and written back
// into the entity only after commit.
package sqlite
