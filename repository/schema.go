package repository

import (
	"context"
	"sort"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Table names
const (
	TableCustomers          = "customers"
	TableTags               = "tags"
	TableCustomerTags       = "customer_tags"
	TableAccounts           = "accounts"
	TableInvoices           = "invoices"
	TableInvoiceItems       = "invoice_items"
	TablePayments           = "payments"
	TableEstimates          = "estimates"
	TableProposals          = "proposals"
	TableContracts          = "contracts"
	TableDeals              = "deals"
	TableProjects           = "projects"
	TableProjectDiscussions = "project_discussions"
	TableInteractions       = "interactions"
	TableLeads              = "leads"
	TableCoachingPrograms   = "coaching_programs"
	TableCalendarEvents     = "calendar_events"
)

// OptionalTables may be missing on a partially migrated schema.
var OptionalTables = []string{
	TableTags,
	TableCustomerTags,
	TableAccounts,
	TableInvoices,
	TableInvoiceItems,
	TablePayments,
	TableEstimates,
	TableProposals,
	TableContracts,
	TableDeals,
	TableProjects,
	TableProjectDiscussions,
	TableInteractions,
	TableLeads,
	TableCoachingPrograms,
	TableCalendarEvents,
}

// Introspector answers whether a table exists. It never fails: a broken
// metadata query is logged and reported as "absent".
type Introspector struct {
	db      *gorm.DB
	dialect Dialect
	logger  *logrus.Logger
}

func NewIntrospector(db *gorm.DB, dialect Dialect, logger *logrus.Logger) *Introspector {
	if logger == nil {
		logger = logrus.New()
	}
	return &Introspector{db: db, dialect: dialect, logger: logger}
}

func (i *Introspector) TableExists(ctx context.Context, name string) bool {
	var query string
	switch i.dialect {
	case Postgres:
		query = "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = CURRENT_SCHEMA() AND table_name = ?"
	case MySQL:
		query = "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?"
	default:
		query = "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?"
	}

	var count int64
	if err := i.db.WithContext(ctx).Raw(query, name).Scan(&count).Error; err != nil {
		i.logger.WithError(err).WithFields(logrus.Fields{
			"table":   name,
			"dialect": i.dialect,
		}).Warn("Table existence check failed, treating table as absent")
		return false
	}
	return count > 0
}

// Capabilities is the set of optional tables known to exist. It is resolved
// once and then shared read-only.
type Capabilities struct {
	tables map[string]bool
}

// NewCapabilities declares the given tables present without asking the store.
func NewCapabilities(tables ...string) Capabilities {
	c := Capabilities{tables: make(map[string]bool, len(tables))}
	for _, t := range tables {
		c.tables[t] = true
	}
	return c
}

// AllCapabilities declares every optional table present.
func AllCapabilities() Capabilities {
	return NewCapabilities(OptionalTables...)
}

// ResolveCapabilities probes each table once. With no tables given it probes
// OptionalTables.
func ResolveCapabilities(ctx context.Context, in *Introspector, tables ...string) Capabilities {
	if len(tables) == 0 {
		tables = OptionalTables
	}
	present := make([]string, 0, len(tables))
	for _, t := range tables {
		if in.TableExists(ctx, t) {
			present = append(present, t)
		}
	}
	return NewCapabilities(present...)
}

// Has reports whether all of the given tables are present.
func (c Capabilities) Has(tables ...string) bool {
	for _, t := range tables {
		if !c.tables[t] {
			return false
		}
	}
	return true
}

// Tags reports whether tag filtering and tag output are available.
func (c Capabilities) Tags() bool {
	return c.Has(TableTags, TableCustomerTags)
}

// Tables lists the present tables in name order.
func (c Capabilities) Tables() []string {
	out := make([]string, 0, len(c.tables))
	for t := range c.tables {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
