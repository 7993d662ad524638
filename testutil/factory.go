// Package testutil provides schema and record factories for keel tests.
package testutil

import (
	"fmt"

	"github.com/keeldb/keel/record"
)

// Field indices of the users test schema.
const (
	UserID = iota
	UserName
	UserEmail
	UserAge
	UserActive
)

// UserSchema builds a fresh five-field schema with an integer primary key.
// Each call returns a distinct descriptor; reuse one instance within a test,
// since records batch together only within one record type.
func UserSchema() *record.Schema {
	return record.MustSchema("app", "users", []record.Field{
		{Name: "id", Type: record.INT, Index: UserID},
		{Name: "name", Type: record.STRING, Index: UserName},
		{Name: "email", Type: record.STRING, Index: UserEmail},
		{Name: "age", Type: record.INT, Index: UserAge},
		{Name: "active", Type: record.BOOLEAN, Index: UserActive},
	}, []int{UserID})
}

// KeylessSchema builds a schema without a primary key, for exercising the
// update/delete fail-fast path.
func KeylessSchema() *record.Schema {
	return record.MustSchema("app", "audit_log", []record.Field{
		{Name: "message", Type: record.STRING, Index: 0},
		{Name: "created", Type: record.DATETIME, Index: 1},
	}, nil)
}

// NewUser builds a user record with id, name and email set.
func NewUser(s *record.Schema, id int64) *record.Record {
	r := record.New(s)
	r.Set(UserID, id)
	r.Set(UserName, fmt.Sprintf("user-%d", id))
	r.Set(UserEmail, fmt.Sprintf("user-%d@example.com", id))
	return r
}

// NewUsers builds n user records with ids 1..n, all sharing one field-set.
func NewUsers(s *record.Schema, n int) []*record.Record {
	recs := make([]*record.Record, n)
	for i := range recs {
		recs[i] = NewUser(s, int64(i+1))
	}
	return recs
}

// FetchedUser builds a user record as the read path would: fetched bits set,
// changed bits empty.
func FetchedUser(s *record.Schema, id int64, name string) *record.Record {
	r, err := record.FromRow(s, []int{UserID, UserName}, []any{id, name})
	if err != nil {
		panic(err)
	}
	return r
}
