package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"crm-backend/models"
	"crm-backend/repository"
	"crm-backend/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newSQLiteHarness(t *testing.T) *serviceHarness {
	t.Helper()
	return newHarness(t, testutil.NewSQLite(t), repository.SQLite, repository.AllCapabilities())
}

func seedTags(t *testing.T, db *gorm.DB, names ...string) []models.Tag {
	t.Helper()
	tags := make([]models.Tag, 0, len(names))
	for _, name := range names {
		tag := models.Tag{Name: name, Color: "#123456"}
		require.NoError(t, db.Create(&tag).Error)
		tags = append(tags, tag)
	}
	return tags
}

func tagIDs(records []repository.TagRecord) []uint {
	ids := make([]uint, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestCreateCustomer(t *testing.T) {
	h := newSQLiteHarness(t)
	tags := seedTags(t, h.db, "VIP", "Export")
	ctx := context.Background()

	detail, err := h.svc.CreateCustomer(ctx, CustomerInput{
		Name:          "  Acme Corp ",
		Phone:         "+1 555-0100",
		CompanyName:   "Acme",
		CustomerModel: intPtr(4),
		TagIDs:        []uint{tags[0].ID, tags[1].ID, tags[0].ID},
	}, uintPtr(12))
	require.NoError(t, err)

	assert.NotZero(t, detail.ID)
	assert.Equal(t, "Acme Corp", detail.Name)
	assert.Equal(t, models.CustomerTypeCompany, detail.Type)
	assert.Equal(t, models.CustomerStatusLead, detail.Status)
	assert.Equal(t, "acme corp_+15550100", detail.UniqueKey)
	require.NotNil(t, detail.CreatedByID)
	assert.Equal(t, uint(12), *detail.CreatedByID)
	assert.ElementsMatch(t, []uint{tags[0].ID, tags[1].ID}, tagIDs(detail.Tags))
	assert.NotNil(t, detail.Deals)
	assert.NotNil(t, detail.CoachingPrograms)
	assert.NotNil(t, detail.CalendarEvents)
	assert.Equal(t, 1, h.cache.deletes, "segments are invalidated")
}

func TestCreateCustomerDuplicateKey(t *testing.T) {
	h := newSQLiteHarness(t)
	ctx := context.Background()
	in := CustomerInput{Name: "Globex", Email: "Info@Globex.test"}

	_, err := h.svc.CreateCustomer(ctx, in, nil)
	require.NoError(t, err)

	in.Email = "info@globex.test"
	_, err = h.svc.CreateCustomer(ctx, in, nil)
	_, ok := IsConflictError(err)
	assert.True(t, ok, "got %v", err)
	assert.Equal(t, int64(1), count(t, h.db, &models.Customer{}))
}

func TestCreateCustomerWithoutContactGetsTimestampKey(t *testing.T) {
	h := newSQLiteHarness(t)
	h.svc.now = func() time.Time { return time.Unix(1700000000, 0) }

	detail, err := h.svc.CreateCustomer(context.Background(), CustomerInput{Name: "Walk In"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "walk in_1700000000000000000", detail.UniqueKey)
	assert.Nil(t, detail.CreatedByID)
}

func TestCreateCustomerUnknownTagRollsBack(t *testing.T) {
	h := newSQLiteHarness(t)
	tags := seedTags(t, h.db, "VIP")

	_, err := h.svc.CreateCustomer(context.Background(), CustomerInput{
		Name:   "Initech",
		TagIDs: []uint{tags[0].ID, 999},
	}, nil)
	validationErr, ok := IsValidationError(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, "tagIds", validationErr.Field)

	assert.Zero(t, count(t, h.db, &models.Customer{}))
	assert.Zero(t, count(t, h.db, &models.CustomerTag{}))
}

func TestCreateCustomerValidation(t *testing.T) {
	h := newSQLiteHarness(t)

	tests := []struct {
		name  string
		in    CustomerInput
		field string
	}{
		{"blank name", CustomerInput{Name: "   "}, "name"},
		{"unknown type", CustomerInput{Name: "A", Type: "reseller"}, "type"},
		{"unknown status", CustomerInput{Name: "A", Status: "archived"}, "status"},
		{"bad phone", CustomerInput{Name: "A", Phone: "call me"}, "phone"},
		{"model too low", CustomerInput{Name: "A", CustomerModel: intPtr(0)}, "customerModel"},
		{"model too high", CustomerInput{Name: "A", CustomerModel: intPtr(10)}, "customerModel"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.CreateCustomer(context.Background(), tt.in, nil)
			validationErr, ok := IsValidationError(err)
			require.True(t, ok, "got %v", err)
			assert.Equal(t, tt.field, validationErr.Field)
		})
	}
	assert.Zero(t, count(t, h.db, &models.Customer{}))
}

func TestUpdateCustomer(t *testing.T) {
	h := newSQLiteHarness(t)
	tags := seedTags(t, h.db, "VIP", "Export", "Partner")
	ctx := context.Background()

	created, err := h.svc.CreateCustomer(ctx, CustomerInput{
		Name:   "Acme Corp",
		Email:  "sales@acme.test",
		TagIDs: []uint{tags[0].ID, tags[1].ID},
	}, uintPtr(3))
	require.NoError(t, err)

	updated, err := h.svc.UpdateCustomer(ctx, created.ID, CustomerUpdate{
		Name:          strPtr("Acme Holdings"),
		Status:        strPtr(models.CustomerStatusCustomer),
		CustomerModel: SetTo(9),
		TagIDs:        &[]uint{tags[2].ID},
	})
	require.NoError(t, err)

	assert.Equal(t, "Acme Holdings", updated.Name)
	assert.Equal(t, models.CustomerStatusCustomer, updated.Status)
	assert.Equal(t, "sales@acme.test", updated.Email, "unset fields are kept")
	assert.Equal(t, created.UniqueKey, updated.UniqueKey)
	require.NotNil(t, updated.CreatedByID)
	assert.Equal(t, uint(3), *updated.CreatedByID)
	assert.Equal(t, []uint{tags[2].ID}, tagIDs(updated.Tags))

	cleared, err := h.svc.UpdateCustomer(ctx, created.ID, CustomerUpdate{TagIDs: &[]uint{}})
	require.NoError(t, err)
	assert.Empty(t, cleared.Tags)

	kept, err := h.svc.UpdateCustomer(ctx, created.ID, CustomerUpdate{Notes: strPtr("called twice")})
	require.NoError(t, err)
	assert.Equal(t, "called twice", kept.Notes)
	assert.Empty(t, kept.Tags)
}

func TestUpdateCustomerErrors(t *testing.T) {
	h := newSQLiteHarness(t)
	ctx := context.Background()

	_, err := h.svc.UpdateCustomer(ctx, 42, CustomerUpdate{Name: strPtr("Ghost")})
	_, ok := IsNotFoundError(err)
	assert.True(t, ok, "got %v", err)

	created, err := h.svc.CreateCustomer(ctx, CustomerInput{Name: "Real"}, nil)
	require.NoError(t, err)

	_, err = h.svc.UpdateCustomer(ctx, created.ID, CustomerUpdate{Type: strPtr("alien")})
	_, ok = IsValidationError(err)
	assert.True(t, ok, "got %v", err)

	_, err = h.svc.UpdateCustomer(ctx, created.ID, CustomerUpdate{TagIDs: &[]uint{77}})
	_, ok = IsValidationError(err)
	assert.True(t, ok, "got %v", err)
}

func TestUpdateCustomerScore(t *testing.T) {
	h := newSQLiteHarness(t)
	ctx := context.Background()

	created, err := h.svc.CreateCustomer(ctx, CustomerInput{Name: "Scored", Email: "s@test"}, nil)
	require.NoError(t, err)

	updated, err := h.svc.UpdateCustomerScore(ctx, created.ID, 87)
	require.NoError(t, err)
	assert.Equal(t, 87, updated.Score)
	assert.Equal(t, created.Name, updated.Name)

	_, err = h.svc.UpdateCustomerScore(ctx, created.ID+100, 10)
	_, ok := IsNotFoundError(err)
	assert.True(t, ok, "got %v", err)
}

func TestGetCustomerByIDAssemblesCollections(t *testing.T) {
	h := newSQLiteHarness(t)
	ctx := context.Background()

	c := seedCustomer(t, h.db, models.Customer{Name: "Acme Corp", CompanyName: "Acme"})
	tree := seedAccountTree(t, h.db, "Acme")
	seedAccountTree(t, h.db, "Unrelated")
	require.NoError(t, h.db.Create(&models.CoachingProgram{CustomerID: c.ID, Name: "Growth"}).Error)
	require.NoError(t, h.db.Create(&models.CalendarEvent{CustomerID: c.ID, Title: "Review", StartsAt: time.Now().UTC()}).Error)
	tags := seedTags(t, h.db, "VIP")
	link := models.NewCustomerTag(c.ID, tags[0].ID)
	require.NoError(t, h.db.Create(&link).Error)

	detail, err := h.svc.GetCustomerByID(ctx, c.ID)
	require.NoError(t, err)

	require.Len(t, detail.Deals, 1)
	assert.Equal(t, tree.account.ID, detail.Deals[0].AccountID)
	require.Len(t, detail.CoachingPrograms, 1)
	assert.Equal(t, "Growth", detail.CoachingPrograms[0].Name)
	require.Len(t, detail.CalendarEvents, 1)
	require.Len(t, detail.Tags, 1)
	assert.Equal(t, "VIP", detail.Tags[0].Tag.Name)

	_, err = h.svc.GetCustomerByID(ctx, c.ID+1000)
	_, ok := IsNotFoundError(err)
	assert.True(t, ok, "got %v", err)
}

func TestGetCustomerByIDWithPartialSchema(t *testing.T) {
	db := testutil.NewSQLite(t, &models.Customer{})
	caps := repository.ResolveCapabilities(context.Background(),
		repository.NewIntrospector(db, repository.SQLite, nil))
	h := newHarness(t, db, repository.SQLite, caps)

	c := seedCustomer(t, db, models.Customer{Name: "Lonely"})
	detail, err := h.svc.GetCustomerByID(context.Background(), c.ID)
	require.NoError(t, err)

	assert.Equal(t, "Lonely", detail.Name)
	assert.NotNil(t, detail.Tags)
	assert.Empty(t, detail.Tags)
	assert.NotNil(t, detail.Deals)
	assert.Empty(t, detail.Deals)
	assert.NotNil(t, detail.CoachingPrograms)
	assert.NotNil(t, detail.CalendarEvents)
}

func TestGetCustomerByIDCollectionFailureIsEmpty(t *testing.T) {
	// Capabilities claim every table, but only customers exists.
	db := testutil.NewSQLite(t, &models.Customer{})
	h := newHarness(t, db, repository.SQLite, repository.AllCapabilities())

	c := seedCustomer(t, db, models.Customer{Name: "Fragile"})
	detail, err := h.svc.GetCustomerByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Empty(t, detail.Tags)
	assert.Empty(t, detail.Deals)
	assert.Empty(t, detail.CoachingPrograms)
	assert.Empty(t, detail.CalendarEvents)

	warnings := 0
	for _, entry := range h.logs.AllEntries() {
		if entry.Message == "Failed to load collection, returning empty list" {
			warnings++
		}
	}
	assert.Equal(t, 4, warnings)
}

func newMockPostgresHarness(t *testing.T) (*serviceHarness, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return newHarness(t, db, repository.Postgres, repository.NewCapabilities()), mock
}

func TestListCustomersMissingTableFallsBack(t *testing.T) {
	h, mock := newMockPostgresHarness(t)
	mock.ExpectQuery("FROM \"?customers\"?").
		WillReturnError(&pgconn.PgError{Code: "42P01", Message: `relation "customers" does not exist`})

	items, err := h.svc.ListCustomers(context.Background(), repository.CustomerFilter{})
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
	assert.Equal(t, float64(1), promtestutil.ToFloat64(h.metrics.ListFallbacks))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListCustomersStoreError(t *testing.T) {
	h, mock := newMockPostgresHarness(t)
	mock.ExpectQuery("FROM \"?customers\"?").WillReturnError(errors.New("connection reset by peer"))

	_, err := h.svc.ListCustomers(context.Background(), repository.CustomerFilter{})
	storeErr, ok := IsStoreError(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, "list customers", storeErr.Op)
	assert.Equal(t, float64(0), promtestutil.ToFloat64(h.metrics.ListFallbacks))
}

func TestListCustomersMissingOptionalTableFails(t *testing.T) {
	db := testutil.NewSQLite(t, &models.Customer{}, &models.Tag{})
	h := newHarness(t, db, repository.SQLite, repository.AllCapabilities())
	require.NoError(t, db.Create(&models.Customer{UniqueKey: "acme_1", Name: "Acme"}).Error)

	items, err := h.svc.ListCustomers(context.Background(), repository.CustomerFilter{})
	assert.Nil(t, items)
	storeErr, ok := IsStoreError(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, "list customers", storeErr.Op)
	assert.True(t, repository.IsMissingTable(err))
	assert.Equal(t, float64(0), promtestutil.ToFloat64(h.metrics.ListFallbacks))
}

func TestListCustomers(t *testing.T) {
	h := newSQLiteHarness(t)
	tags := seedTags(t, h.db, "VIP")
	ctx := context.Background()

	_, err := h.svc.CreateCustomer(ctx, CustomerInput{Name: "Tagged", Email: "t@test", TagIDs: []uint{tags[0].ID}}, nil)
	require.NoError(t, err)
	_, err = h.svc.CreateCustomer(ctx, CustomerInput{Name: "Plain", Email: "p@test"}, nil)
	require.NoError(t, err)

	items, err := h.svc.ListCustomers(ctx, repository.CustomerFilter{TagIDs: []uint{tags[0].ID}})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Tagged", items[0].Name)
	assert.Equal(t, []uint{tags[0].ID}, tagIDs(items[0].Tags))
}

func TestDeleteCustomerSideEffects(t *testing.T) {
	h := newSQLiteHarness(t)
	ctx := context.Background()

	c := seedCustomer(t, h.db, models.Customer{Name: "Acme Corp", CompanyName: "Acme"})
	tree := seedAccountTree(t, h.db, "Acme")

	require.NoError(t, h.svc.DeleteCustomer(ctx, c.ID))

	require.Len(t, h.publisher.events, 1)
	event := h.publisher.events[0]
	assert.Equal(t, []uint{c.ID}, event.CustomerIDs)
	assert.Equal(t, []uint{tree.account.ID}, event.AccountIDs)
	assert.Equal(t, int64(1), event.Deleted)

	assert.Equal(t, float64(1), promtestutil.ToFloat64(h.metrics.Deletions.WithLabelValues("single", "success")))
	assert.Equal(t, float64(1), promtestutil.ToFloat64(h.metrics.DeletedRows.WithLabelValues(repository.TableAccounts)))
	assert.Equal(t, 1, h.cache.deletes)

	err := h.svc.DeleteCustomer(ctx, c.ID)
	_, ok := IsNotFoundError(err)
	assert.True(t, ok, "got %v", err)
	assert.Equal(t, float64(1), promtestutil.ToFloat64(h.metrics.Deletions.WithLabelValues("single", "not_found")))
	assert.Len(t, h.publisher.events, 1)
}

func TestBulkDeleteCustomers(t *testing.T) {
	h := newSQLiteHarness(t)
	ctx := context.Background()

	a := seedCustomer(t, h.db, models.Customer{Name: "A", CompanyName: "Shared"})
	b := seedCustomer(t, h.db, models.Customer{Name: "B", CompanyName: "Shared"})
	keep := seedCustomer(t, h.db, models.Customer{Name: "C"})

	deleted, err := h.svc.BulkDeleteCustomers(ctx, []uint{a.ID, b.ID, 5000})
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	var remaining []models.Customer
	require.NoError(t, h.db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, keep.ID, remaining[0].ID)

	_, err = h.svc.BulkDeleteCustomers(ctx, []uint{})
	_, ok := IsValidationError(err)
	assert.True(t, ok, "got %v", err)
	assert.Equal(t, float64(1), promtestutil.ToFloat64(h.metrics.Deletions.WithLabelValues("bulk", "success")))
}

func TestBusinessKey(t *testing.T) {
	now := time.Unix(42, 0)
	assert.Equal(t, "acme_+15550100", businessKey("Acme", "+1 (555) 0100", "a@acme.test", now))
	assert.Equal(t, "acme_a@acme.test", businessKey(" ACME ", "", "A@Acme.test", now))
	assert.Equal(t, "acme_42000000000", businessKey("Acme", " ", "", now))
}

func TestCustomerModelBounds(t *testing.T) {
	h := newSQLiteHarness(t)
	ctx := context.Background()

	for m := models.MinCustomerModel; m <= models.MaxCustomerModel; m++ {
		detail, err := h.svc.CreateCustomer(ctx, CustomerInput{
			Name:          "Model",
			Email:         fmt.Sprintf("model%d@test", m),
			CustomerModel: intPtr(m),
		}, nil)
		require.NoError(t, err, "model %d", m)
		require.NotNil(t, detail.CustomerModel)
		assert.Equal(t, m, *detail.CustomerModel)
	}

	unassigned, err := h.svc.CreateCustomer(ctx, CustomerInput{Name: "No Model", Email: "none@test"}, nil)
	require.NoError(t, err)
	assert.Nil(t, unassigned.CustomerModel)

	_, err = h.svc.UpdateCustomer(ctx, unassigned.ID, CustomerUpdate{CustomerModel: SetTo(10)})
	validationErr, ok := IsValidationError(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, "customerModel: must be between 1 and 9", validationErr.Error())

	assigned, err := h.svc.CreateCustomer(ctx, CustomerInput{
		Name: "Coached", Email: "coached@test", CustomerModel: intPtr(3), CoachID: uintPtr(5),
	}, nil)
	require.NoError(t, err)

	var update CustomerUpdate
	require.NoError(t, json.Unmarshal([]byte(`{"notes":"reset"}`), &update))
	kept, err := h.svc.UpdateCustomer(ctx, assigned.ID, update)
	require.NoError(t, err)
	require.NotNil(t, kept.CustomerModel, "absent keys leave the value")
	assert.Equal(t, 3, *kept.CustomerModel)
	require.NotNil(t, kept.CoachID)
	assert.Equal(t, uint(5), *kept.CoachID)

	update = CustomerUpdate{}
	require.NoError(t, json.Unmarshal([]byte(`{"customerModel":null,"coachId":null}`), &update))
	cleared, err := h.svc.UpdateCustomer(ctx, assigned.ID, update)
	require.NoError(t, err)
	assert.Nil(t, cleared.CustomerModel)
	assert.Nil(t, cleared.CoachID)

	var stored models.Customer
	require.NoError(t, h.db.First(&stored, assigned.ID).Error)
	assert.Nil(t, stored.CustomerModel)
	assert.Nil(t, stored.CoachID)
	assert.Equal(t, "reset", stored.Notes)
}
