package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"crm-backend/cache"
	"crm-backend/events"
	"crm-backend/metrics"
	"crm-backend/models"
	"crm-backend/repository"
	"crm-backend/utils"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CustomerInput is the payload for creating a customer.
type CustomerInput struct {
	Name          string `json:"name" binding:"required"`
	Type          string `json:"type"`
	Status        string `json:"status"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	CompanyName   string `json:"companyName"`
	Address       string `json:"address"`
	Website       string `json:"website"`
	Score         int    `json:"score"`
	Category      string `json:"category"`
	Notes         string `json:"notes"`
	CustomerModel *int   `json:"customerModel"`
	JourneyStage  string `json:"journeyStage"`
	CoachID       *uint  `json:"coachId"`
	TagIDs        []uint `json:"tagIds"`
}

// CustomerUpdate is the payload for updating a customer. Nil fields are left
// unchanged; a non-nil TagIDs replaces the whole tag set. CustomerModel and
// CoachID are cleared by an explicit null.
type CustomerUpdate struct {
	Name          *string        `json:"name"`
	Type          *string        `json:"type"`
	Status        *string        `json:"status"`
	Email         *string        `json:"email"`
	Phone         *string        `json:"phone"`
	CompanyName   *string        `json:"companyName"`
	Address       *string        `json:"address"`
	Website       *string        `json:"website"`
	Score         *int           `json:"score"`
	Category      *string        `json:"category"`
	Notes         *string        `json:"notes"`
	CustomerModel Nullable[int]  `json:"customerModel"`
	JourneyStage  *string        `json:"journeyStage"`
	CoachID       Nullable[uint] `json:"coachId"`
	TagIDs        *[]uint        `json:"tagIds"`
}

// CustomerDetail is the assembled read view of one customer.
type CustomerDetail struct {
	models.Customer
	Tags             []repository.TagRecord   `json:"tags"`
	Deals            []models.Deal            `json:"deals"`
	CoachingPrograms []models.CoachingProgram `json:"coachingPrograms"`
	CalendarEvents   []models.CalendarEvent   `json:"calendarEvents"`
}

type CustomerServiceDeps struct {
	DB           *gorm.DB
	Dialect      repository.Dialect
	Capabilities repository.Capabilities
	Cache        cache.Cache
	Publisher    events.Publisher
	Metrics      *metrics.Metrics
	Logger       *logrus.Logger

	// TransactionalDelete runs each cascade inside one transaction.
	TransactionalDelete bool
	SegmentsTTL         time.Duration
}

// CustomerService is the customer entity management core.
type CustomerService struct {
	db          *gorm.DB
	caps        repository.Capabilities
	query       *repository.CustomerQuery
	deleter     *CascadeDeleter
	cache       cache.Cache
	publisher   events.Publisher
	metrics     *metrics.Metrics
	logger      *logrus.Logger
	segmentsTTL time.Duration
	now         func() time.Time
}

func NewCustomerService(deps CustomerServiceDeps) *CustomerService {
	if deps.Logger == nil {
		deps.Logger = logrus.New()
	}
	if deps.Cache == nil {
		deps.Cache = cache.NewNoOpCache()
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NoopPublisher{}
	}
	if deps.SegmentsTTL <= 0 {
		deps.SegmentsTTL = 5 * time.Minute
	}

	return &CustomerService{
		db:          deps.DB,
		caps:        deps.Capabilities,
		query:       repository.NewCustomerQuery(deps.DB, deps.Dialect, deps.Capabilities),
		deleter:     NewCascadeDeleter(deps.DB, deps.Dialect, deps.Capabilities, deps.TransactionalDelete, deps.Logger),
		cache:       deps.Cache,
		publisher:   deps.Publisher,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		segmentsTTL: deps.SegmentsTTL,
		now:         time.Now,
	}
}

// ListCustomers returns the customers matching f, newest first. A missing
// customers table yields an empty list instead of an error.
func (s *CustomerService) ListCustomers(ctx context.Context, f repository.CustomerFilter) ([]repository.CustomerListItem, error) {
	items, err := s.query.List(ctx, f)
	if err != nil {
		if repository.IsMissingTableNamed(err, repository.TableCustomers) {
			s.logger.WithError(err).Warn("Customer table missing, returning empty list")
			s.metrics.IncListFallback()
			return []repository.CustomerListItem{}, nil
		}
		return nil, newStoreError("list customers", err)
	}
	return items, nil
}

// GetCustomerByID assembles the customer with its related collections. A
// collection that is unavailable or fails to load comes back empty.
func (s *CustomerService) GetCustomerByID(ctx context.Context, id uint) (*CustomerDetail, error) {
	var customer models.Customer
	if err := s.db.WithContext(ctx).First(&customer, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFoundError("customer", id)
		}
		return nil, newStoreError("load customer", err)
	}

	detail := &CustomerDetail{Customer: customer}

	var g errgroup.Group
	g.Go(func() error {
		detail.Tags = s.loadTags(ctx, customer.ID)
		return nil
	})
	g.Go(func() error {
		detail.Deals = s.loadDeals(ctx, &customer)
		return nil
	})
	g.Go(func() error {
		detail.CoachingPrograms = s.loadCoachingPrograms(ctx, customer.ID)
		return nil
	})
	g.Go(func() error {
		detail.CalendarEvents = s.loadCalendarEvents(ctx, customer.ID)
		return nil
	})
	_ = g.Wait()

	return detail, nil
}

func (s *CustomerService) loadTags(ctx context.Context, customerID uint) []repository.TagRecord {
	out := []repository.TagRecord{}
	if !s.caps.Tags() {
		s.collectionSkipped("tags", customerID)
		return out
	}

	var tags []models.Tag
	if err := s.db.WithContext(ctx).
		Joins("JOIN customer_tags ON customer_tags.tag_id = tags.id").
		Where("customer_tags.customer_id = ?", customerID).
		Order("tags.name").
		Find(&tags).Error; err != nil {
		s.collectionFailed("tags", customerID, err)
		return out
	}
	for _, t := range tags {
		out = append(out, repository.NewTagRecord(t))
	}
	return out
}

// loadDeals follows the customer's account key to its accounts' deals.
func (s *CustomerService) loadDeals(ctx context.Context, customer *models.Customer) []models.Deal {
	deals := []models.Deal{}
	if !s.caps.Has(repository.TableAccounts, repository.TableDeals) {
		s.collectionSkipped("deals", customer.ID)
		return deals
	}

	accounts := s.db.WithContext(ctx).Model(&models.Account{}).
		Select("id").
		Where("company_name = ?", customer.AccountKey())
	if err := s.db.WithContext(ctx).
		Where("account_id IN (?)", accounts).
		Order("created_at DESC").
		Find(&deals).Error; err != nil {
		s.collectionFailed("deals", customer.ID, err)
		return []models.Deal{}
	}
	return deals
}

func (s *CustomerService) loadCoachingPrograms(ctx context.Context, customerID uint) []models.CoachingProgram {
	programs := []models.CoachingProgram{}
	if !s.caps.Has(repository.TableCoachingPrograms) {
		s.collectionSkipped("coaching_programs", customerID)
		return programs
	}
	if err := s.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC").
		Find(&programs).Error; err != nil {
		s.collectionFailed("coaching_programs", customerID, err)
		return []models.CoachingProgram{}
	}
	return programs
}

func (s *CustomerService) loadCalendarEvents(ctx context.Context, customerID uint) []models.CalendarEvent {
	calendarEvents := []models.CalendarEvent{}
	if !s.caps.Has(repository.TableCalendarEvents) {
		s.collectionSkipped("calendar_events", customerID)
		return calendarEvents
	}
	if err := s.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("starts_at").
		Find(&calendarEvents).Error; err != nil {
		s.collectionFailed("calendar_events", customerID, err)
		return []models.CalendarEvent{}
	}
	return calendarEvents
}

func (s *CustomerService) collectionSkipped(collection string, customerID uint) {
	s.logger.WithFields(logrus.Fields{
		"collection":  collection,
		"customer_id": customerID,
	}).Debug("Collection unavailable, returning empty list")
}

func (s *CustomerService) collectionFailed(collection string, customerID uint, err error) {
	s.logger.WithError(err).WithFields(logrus.Fields{
		"collection":  collection,
		"customer_id": customerID,
	}).Warn("Failed to load collection, returning empty list")
}

// CreateCustomer validates and inserts a customer with its initial tags.
// createdBy may be nil.
func (s *CustomerService) CreateCustomer(ctx context.Context, in CustomerInput, createdBy *uint) (*CustomerDetail, error) {
	if err := validateCustomerInput(in); err != nil {
		return nil, err
	}

	customer := models.Customer{
		Name:          strings.TrimSpace(in.Name),
		Type:          in.Type,
		Status:        in.Status,
		Email:         strings.TrimSpace(in.Email),
		Phone:         strings.TrimSpace(in.Phone),
		CompanyName:   strings.TrimSpace(in.CompanyName),
		Address:       in.Address,
		Website:       in.Website,
		Score:         in.Score,
		Category:      in.Category,
		Notes:         in.Notes,
		CustomerModel: in.CustomerModel,
		JourneyStage:  in.JourneyStage,
		CoachID:       in.CoachID,
		CreatedByID:   createdBy,
	}
	if customer.Type == "" {
		customer.Type = models.CustomerTypeCompany
	}
	if customer.Status == "" {
		customer.Status = models.CustomerStatusLead
	}
	customer.UniqueKey = businessKey(customer.Name, customer.Phone, customer.Email, s.now())

	tagIDs := repository.UniqueIDs(in.TagIDs)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.Customer{}).
			Where("unique_key = ?", customer.UniqueKey).
			Count(&existing).Error; err != nil {
			return newStoreError("check customer key", err)
		}
		if existing > 0 {
			return NewConflictError("customer", "a customer with this name and contact already exists")
		}

		if err := tx.Create(&customer).Error; err != nil {
			return newStoreError("create customer", err)
		}
		return s.assignTags(tx, customer.ID, tagIDs, false)
	})
	if err != nil {
		return nil, err
	}

	s.invalidateSegments(ctx)
	s.logger.WithFields(logrus.Fields{
		"customer_id": customer.ID,
		"tags":        len(tagIDs),
	}).Info("Customer created")

	return s.GetCustomerByID(ctx, customer.ID)
}

// UpdateCustomer applies the non-nil fields of in. The business key, creator
// and creation time are never rewritten.
func (s *CustomerService) UpdateCustomer(ctx context.Context, id uint, in CustomerUpdate) (*CustomerDetail, error) {
	if err := validateCustomerUpdate(in); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var customer models.Customer
		if err := tx.First(&customer, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NewNotFoundError("customer", id)
			}
			return newStoreError("load customer", err)
		}

		in.applyTo(&customer)

		if err := tx.Omit("unique_key", "created_by_id", "created_at").Save(&customer).Error; err != nil {
			return newStoreError("update customer", err)
		}
		if in.TagIDs != nil {
			return s.assignTags(tx, customer.ID, repository.UniqueIDs(*in.TagIDs), true)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateSegments(ctx)
	return s.GetCustomerByID(ctx, id)
}

// UpdateCustomerScore sets the score only.
func (s *CustomerService) UpdateCustomerScore(ctx context.Context, id uint, score int) (*CustomerDetail, error) {
	db := s.db.WithContext(ctx)

	var customer models.Customer
	if err := db.Select("id").First(&customer, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFoundError("customer", id)
		}
		return nil, newStoreError("load customer", err)
	}
	if err := db.Model(&models.Customer{}).Where("id = ?", id).Update("score", score).Error; err != nil {
		return nil, newStoreError("update customer score", err)
	}
	return s.GetCustomerByID(ctx, id)
}

// DeleteCustomer cascades the delete of one customer.
func (s *CustomerService) DeleteCustomer(ctx context.Context, id uint) error {
	_, err := s.deleteCustomers(ctx, "single", []uint{id})
	return err
}

// BulkDeleteCustomers cascades over ids and returns how many customers were
// removed. Unknown ids are ignored as long as one of them exists.
func (s *CustomerService) BulkDeleteCustomers(ctx context.Context, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, NewValidationError("ids", "at least one customer id is required")
	}
	report, err := s.deleteCustomers(ctx, "bulk", ids)
	if err != nil {
		return 0, err
	}
	return report.Deleted, nil
}

func (s *CustomerService) deleteCustomers(ctx context.Context, mode string, ids []uint) (*DeletionReport, error) {
	report, err := s.deleter.Delete(ctx, ids)
	if err != nil {
		s.metrics.ObserveDeletion(mode, deletionOutcome(err))
		return nil, err
	}

	s.metrics.ObserveDeletion(mode, "success")
	for table, n := range report.Rows {
		s.metrics.AddDeletedRows(table, n)
	}
	s.invalidateSegments(ctx)

	if err := s.publisher.PublishCustomersDeleted(ctx, events.CustomersDeletedEvent{
		CustomerIDs: report.CustomerIDs,
		AccountIDs:  report.AccountIDs,
		Deleted:     report.Deleted,
		Rows:        report.Rows,
		Timestamp:   s.now().UTC(),
	}); err != nil {
		s.logger.WithError(err).Warn("Failed to publish customer deleted event")
	}
	return report, nil
}

func deletionOutcome(err error) string {
	if _, ok := IsNotFoundError(err); ok {
		return "not_found"
	}
	if _, ok := IsValidationError(err); ok {
		return "invalid"
	}
	return "error"
}

// assignTags links tagIDs to the customer. With replace set the existing
// links are dropped first, even when tagIDs is empty.
func (s *CustomerService) assignTags(tx *gorm.DB, customerID uint, tagIDs []uint, replace bool) error {
	if !s.caps.Tags() {
		if replace || len(tagIDs) > 0 {
			s.logger.WithField("customer_id", customerID).Warn("Tag tables unavailable, tag assignment skipped")
		}
		return nil
	}

	if replace {
		if err := tx.Where("customer_id = ?", customerID).Delete(&models.CustomerTag{}).Error; err != nil {
			return newStoreError("clear customer tags", err)
		}
	}
	if len(tagIDs) == 0 {
		return nil
	}

	var found int64
	if err := tx.Model(&models.Tag{}).Where("id IN ?", tagIDs).Count(&found).Error; err != nil {
		return newStoreError("check tags", err)
	}
	if int(found) != len(tagIDs) {
		return NewValidationError("tagIds", "one or more tags do not exist")
	}

	links := make([]models.CustomerTag, 0, len(tagIDs))
	for _, tagID := range tagIDs {
		links = append(links, models.NewCustomerTag(customerID, tagID))
	}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&links).Error; err != nil {
		return newStoreError("assign customer tags", err)
	}
	return nil
}

func (in CustomerUpdate) applyTo(c *models.Customer) {
	if in.Name != nil {
		c.Name = strings.TrimSpace(*in.Name)
	}
	if in.Type != nil {
		c.Type = *in.Type
	}
	if in.Status != nil {
		c.Status = *in.Status
	}
	if in.Email != nil {
		c.Email = strings.TrimSpace(*in.Email)
	}
	if in.Phone != nil {
		c.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.CompanyName != nil {
		c.CompanyName = strings.TrimSpace(*in.CompanyName)
	}
	if in.Address != nil {
		c.Address = *in.Address
	}
	if in.Website != nil {
		c.Website = *in.Website
	}
	if in.Score != nil {
		c.Score = *in.Score
	}
	if in.Category != nil {
		c.Category = *in.Category
	}
	if in.Notes != nil {
		c.Notes = *in.Notes
	}
	if in.CustomerModel.Present {
		c.CustomerModel = in.CustomerModel.Value
	}
	if in.JourneyStage != nil {
		c.JourneyStage = *in.JourneyStage
	}
	if in.CoachID.Present {
		c.CoachID = in.CoachID.Value
	}
}

func validateCustomerInput(in CustomerInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return NewValidationError("name", "is required")
	}
	if in.Type != "" && !models.ValidCustomerType(in.Type) {
		return NewValidationError("type", "must be one of "+strings.Join(models.CustomerTypes, ", "))
	}
	if in.Status != "" && !models.ValidCustomerStatus(in.Status) {
		return NewValidationError("status", "must be one of "+strings.Join(models.CustomerStatuses, ", "))
	}
	if strings.TrimSpace(in.Phone) != "" && !utils.ValidatePhone(in.Phone) {
		return NewValidationError("phone", "invalid phone number format")
	}
	return validateCustomerModel(in.CustomerModel)
}

func validateCustomerUpdate(in CustomerUpdate) error {
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return NewValidationError("name", "cannot be empty")
	}
	if in.Type != nil && !models.ValidCustomerType(*in.Type) {
		return NewValidationError("type", "must be one of "+strings.Join(models.CustomerTypes, ", "))
	}
	if in.Status != nil && !models.ValidCustomerStatus(*in.Status) {
		return NewValidationError("status", "must be one of "+strings.Join(models.CustomerStatuses, ", "))
	}
	if in.Phone != nil && strings.TrimSpace(*in.Phone) != "" && !utils.ValidatePhone(*in.Phone) {
		return NewValidationError("phone", "invalid phone number format")
	}
	return validateCustomerModel(in.CustomerModel.Value)
}

func validateCustomerModel(model *int) error {
	if model == nil {
		return nil
	}
	if *model < models.MinCustomerModel || *model > models.MaxCustomerModel {
		return NewValidationError("customerModel",
			"must be between "+strconv.Itoa(models.MinCustomerModel)+" and "+strconv.Itoa(models.MaxCustomerModel))
	}
	return nil
}

// businessKey is computed once at creation: name with phone, else name with
// email, else name with the creation time.
func businessKey(name, phone, email string, now time.Time) string {
	base := strings.ToLower(strings.TrimSpace(name))
	switch {
	case strings.TrimSpace(phone) != "":
		return base + "_" + utils.NormalizePhone(phone)
	case strings.TrimSpace(email) != "":
		return base + "_" + strings.ToLower(strings.TrimSpace(email))
	default:
		return base + "_" + strconv.FormatInt(now.UnixNano(), 10)
	}
}
