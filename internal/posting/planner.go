// Package posting turns a snapshot read inside a transaction into the set of
// documents that transaction must write. Nothing here performs I/O, so every
// function can be re-run from scratch when a commit conflicts.
package posting

import (
	"time"

	"udhaar/backend/internal/xid"
)

type Planner struct {
	Location *time.Location
	NewID    func(prefix string) string
}

func NewPlanner(loc *time.Location) *Planner {
	if loc == nil {
		loc = time.UTC
	}
	return &Planner{Location: loc, NewID: xid.New}
}

func (p *Planner) Day(t time.Time) string {
	return t.In(p.Location).Format("2006-01-02")
}

func (p *Planner) Month(t time.Time) string {
	return t.In(p.Location).Format("2006-01")
}

func (p *Planner) InvoiceDay(t time.Time) string {
	return t.In(p.Location).Format("20060102")
}

func (p *Planner) StartOfDay(t time.Time) time.Time {
	y, m, d := t.In(p.Location).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, p.Location).UTC()
}
