package repository

import (
	"context"
	"strings"
	"time"

	"crm-backend/models"
	"crm-backend/utils"

	"gorm.io/gorm"
)

// CustomerFilter holds the optional list predicates. Zero values mean
// "no constraint"; all set predicates must hold.
type CustomerFilter struct {
	Type     string
	Status   string
	Category string
	Search   string

	// TagIDs selects customers holding every listed tag.
	TagIDs         []uint
	CustomerModels []int
	CreatedByID    *uint

	// DateFrom and DateTo bound created_at inclusively, by calendar day.
	DateFrom *time.Time
	DateTo   *time.Time

	JourneyStage string
	CoachID      *uint
}

// CustomerListItem is a customer row with its decoded tags.
type CustomerListItem struct {
	models.Customer
	Tags []TagRecord `json:"tags"`
}

type customerRow struct {
	models.Customer
	TagsEncoded *string `gorm:"column:tags_encoded"`
}

// CustomerQuery builds the customer list query for one dialect and schema.
type CustomerQuery struct {
	db      *gorm.DB
	dialect Dialect
	caps    Capabilities
}

func NewCustomerQuery(db *gorm.DB, dialect Dialect, caps Capabilities) *CustomerQuery {
	return &CustomerQuery{db: db, dialect: dialect, caps: caps}
}

// Build assembles the parameterized query. Tag output and tag filtering are
// applied together or not at all.
func (q *CustomerQuery) Build(ctx context.Context, f CustomerFilter) *gorm.DB {
	tx := q.db.WithContext(ctx).Table(TableCustomers)

	withTags := q.caps.Tags()
	if withTags {
		tx = tx.Select(TableCustomers+".*, "+TagAggregateExpr(q.dialect)+" AS tags_encoded").
			Joins("LEFT JOIN customer_tags ON customer_tags.customer_id = customers.id").
			Joins("LEFT JOIN tags ON tags.id = customer_tags.tag_id").
			Group("customers.id")
	} else {
		tx = tx.Select(TableCustomers + ".*")
	}

	if f.Type != "" {
		tx = tx.Where("customers.type = ?", f.Type)
	}
	if f.Status != "" {
		tx = tx.Where("customers.status = ?", f.Status)
	}
	if f.Category != "" {
		clause, pattern := q.dialect.ContainsPredicate("customers.category", f.Category)
		tx = tx.Where(clause, pattern)
	}
	if f.Search != "" {
		columns := []string{"customers.name", "customers.email", "customers.phone", "customers.company_name"}
		clauses := make([]string, 0, len(columns))
		args := make([]interface{}, 0, len(columns))
		for _, col := range columns {
			clause, pattern := q.dialect.ContainsPredicate(col, f.Search)
			clauses = append(clauses, clause)
			args = append(args, pattern)
		}
		tx = tx.Where("("+strings.Join(clauses, " OR ")+")", args...)
	}
	if len(f.CustomerModels) > 0 {
		tx = tx.Where("customers.customer_model IN ?", f.CustomerModels)
	}
	if f.CreatedByID != nil {
		tx = tx.Where("customers.created_by_id = ?", *f.CreatedByID)
	}
	if f.DateFrom != nil {
		tx = tx.Where("customers.created_at >= ?", utils.BeginningOfDay(*f.DateFrom))
	}
	if f.DateTo != nil {
		tx = tx.Where("customers.created_at < ?", utils.BeginningOfDay(*f.DateTo).AddDate(0, 0, 1))
	}
	if f.JourneyStage != "" {
		tx = tx.Where("customers.journey_stage = ?", f.JourneyStage)
	}
	if f.CoachID != nil {
		tx = tx.Where("customers.coach_id = ?", *f.CoachID)
	}

	if tagIDs := UniqueIDs(f.TagIDs); withTags && len(tagIDs) > 0 {
		tx = tx.Having(
			"COUNT(DISTINCT CASE WHEN customer_tags.tag_id IN ? THEN customer_tags.tag_id END) = ?",
			tagIDs, len(tagIDs),
		)
	}

	return tx.Order("customers.created_at DESC").Order("customers.id DESC")
}

// List runs the query and decodes the aggregated tags of each row.
func (q *CustomerQuery) List(ctx context.Context, f CustomerFilter) ([]CustomerListItem, error) {
	var rows []customerRow
	if err := q.Build(ctx, f).Scan(&rows).Error; err != nil {
		return nil, err
	}

	items := make([]CustomerListItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, CustomerListItem{
			Customer: row.Customer,
			Tags:     DecodeNullableTags(row.TagsEncoded),
		})
	}
	return items, nil
}

// UniqueIDs drops duplicate ids, keeping first occurrence order.
func UniqueIDs(ids []uint) []uint {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
