// Package database turns the forum's database settings into a database/sql
// connection target and probes it. It supports the MySQL, PostgreSQL and
// SQLite backends an SMF installation can declare.
package database
