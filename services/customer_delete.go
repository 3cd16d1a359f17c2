package services

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"crm-backend/models"
	"crm-backend/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DeletionReport describes what one cascade removed.
type DeletionReport struct {
	CustomerIDs []uint           `json:"customerIds"`
	AccountIDs  []uint           `json:"accountIds"`
	Deleted     int64            `json:"deleted"`
	Rows        map[string]int64 `json:"rows"`
}

// CascadeDeleter removes customers together with everything that hangs off
// them. The schema declares no cascading constraints, so dependents are
// deleted here, children before parents.
//
// Accounts and leads are not keyed to customers; they are matched by name.
// Two concurrent deletes that resolve to the same account are not
// serialized.
type CascadeDeleter struct {
	db            *gorm.DB
	dialect       repository.Dialect
	caps          repository.Capabilities
	transactional bool
	logger        *logrus.Logger
}

func NewCascadeDeleter(db *gorm.DB, dialect repository.Dialect, caps repository.Capabilities, transactional bool, logger *logrus.Logger) *CascadeDeleter {
	if logger == nil {
		logger = logrus.New()
	}
	return &CascadeDeleter{
		db:            db,
		dialect:       dialect,
		caps:          caps,
		transactional: transactional,
		logger:        logger,
	}
}

// Delete cascades over the given customer ids. It fails with NotFoundError
// only when none of the ids exist.
//
// When the deleter is not transactional a failing step aborts the call but
// the steps before it stay applied.
func (d *CascadeDeleter) Delete(ctx context.Context, ids []uint) (*DeletionReport, error) {
	ids = repository.UniqueIDs(ids)
	if len(ids) == 0 {
		return nil, NewValidationError("ids", "at least one customer id is required")
	}

	report := &DeletionReport{Rows: map[string]int64{}}
	cascade := func(tx *gorm.DB) error {
		return d.cascade(tx, ids, report)
	}

	var err error
	if d.transactional {
		err = d.db.WithContext(ctx).Transaction(cascade)
	} else {
		err = cascade(d.db.WithContext(ctx))
	}
	if err != nil {
		if !d.transactional && len(report.Rows) > 0 {
			d.logger.WithError(err).WithFields(logrus.Fields{
				"customer_ids": ids,
				"rows":         report.Rows,
			}).Warn("Customer cascade aborted after partial deletion")
		}
		return nil, err
	}

	d.logger.WithFields(logrus.Fields{
		"customer_ids": report.CustomerIDs,
		"account_ids":  report.AccountIDs,
		"rows":         report.Rows,
	}).Info("Customer cascade completed")
	return report, nil
}

func (d *CascadeDeleter) cascade(tx *gorm.DB, ids []uint, r *DeletionReport) error {
	var customers []models.Customer
	if err := tx.Where("id IN ?", ids).Order("id").Find(&customers).Error; err != nil {
		return newStoreError("resolve customers", err)
	}
	if len(customers) == 0 {
		return NewNotFoundError("customer", joinIDs(ids))
	}

	customerIDs := make([]uint, 0, len(customers))
	names := stringSet{}
	keys := stringSet{}
	for i := range customers {
		customerIDs = append(customerIDs, customers[i].ID)
		names.add(customers[i].Name)
		keys.add(customers[i].AccountKey())
	}
	r.CustomerIDs = customerIDs

	// Customers sharing a company name share one account subtree; the key
	// set is distinct so that subtree is visited once.
	accountIDs, err := d.resolveAccounts(tx, keys.values())
	if err != nil {
		return err
	}
	r.AccountIDs = accountIDs
	if len(accountIDs) > 0 {
		if err := d.deleteAccounts(tx, accountIDs, r); err != nil {
			return err
		}
	}

	if err := d.remove(tx, r, repository.TableInteractions, &models.Interaction{},
		"customer_id IN ?", customerIDs); err != nil {
		return err
	}

	if leadNames := names.union(keys).values(); len(leadNames) > 0 {
		fullName := "TRIM(" + d.dialect.Concat("first_name", "' '", "last_name") + ")"
		if err := d.remove(tx, r, repository.TableLeads, &models.Lead{},
			fullName+" IN ? OR company_name IN ?", leadNames, leadNames); err != nil {
			return err
		}
	}

	if err := d.remove(tx, r, repository.TableCustomerTags, &models.CustomerTag{},
		"customer_id IN ?", customerIDs); err != nil {
		return err
	}

	result := tx.Where("id IN ?", customerIDs).Delete(&models.Customer{})
	if result.Error != nil {
		return newStoreError("delete customers", result.Error)
	}
	r.Rows[repository.TableCustomers] = result.RowsAffected
	r.Deleted = result.RowsAffected
	return nil
}

func (d *CascadeDeleter) resolveAccounts(tx *gorm.DB, keys []string) ([]uint, error) {
	if !d.caps.Has(repository.TableAccounts) || len(keys) == 0 {
		return nil, nil
	}
	var ids []uint
	if err := tx.Model(&models.Account{}).
		Where("company_name IN ?", keys).
		Order("id").
		Pluck("id", &ids).Error; err != nil {
		return nil, newStoreError("resolve accounts", err)
	}
	return ids, nil
}

// deleteAccounts removes the account subtrees bottom-up: invoice children,
// invoices, estimates, proposals, contracts, deals, project discussions,
// projects and finally the accounts.
func (d *CascadeDeleter) deleteAccounts(tx *gorm.DB, accountIDs []uint, r *DeletionReport) error {
	if d.caps.Has(repository.TableInvoices) {
		var invoiceIDs []uint
		if err := tx.Model(&models.Invoice{}).
			Where("account_id IN ?", accountIDs).
			Pluck("id", &invoiceIDs).Error; err != nil {
			return newStoreError("resolve invoices", err)
		}
		if len(invoiceIDs) > 0 {
			if err := d.remove(tx, r, repository.TableInvoiceItems, &models.InvoiceItem{},
				"invoice_id IN ?", invoiceIDs); err != nil {
				return err
			}
			if err := d.remove(tx, r, repository.TablePayments, &models.Payment{},
				"invoice_id IN ?", invoiceIDs); err != nil {
				return err
			}
		}
		if err := d.remove(tx, r, repository.TableInvoices, &models.Invoice{},
			"account_id IN ?", accountIDs); err != nil {
			return err
		}
	}

	byAccount := []struct {
		table string
		model interface{}
	}{
		{repository.TableEstimates, &models.Estimate{}},
		{repository.TableProposals, &models.Proposal{}},
		{repository.TableContracts, &models.Contract{}},
		{repository.TableDeals, &models.Deal{}},
	}
	for _, dep := range byAccount {
		if err := d.remove(tx, r, dep.table, dep.model, "account_id IN ?", accountIDs); err != nil {
			return err
		}
	}

	if d.caps.Has(repository.TableProjects) {
		var projectIDs []uint
		if err := tx.Model(&models.Project{}).
			Where("account_id IN ?", accountIDs).
			Pluck("id", &projectIDs).Error; err != nil {
			return newStoreError("resolve projects", err)
		}
		if len(projectIDs) > 0 {
			if err := d.remove(tx, r, repository.TableProjectDiscussions, &models.ProjectDiscussion{},
				"project_id IN ?", projectIDs); err != nil {
				return err
			}
		}
		if err := d.remove(tx, r, repository.TableProjects, &models.Project{},
			"account_id IN ?", accountIDs); err != nil {
			return err
		}
	}

	return d.remove(tx, r, repository.TableAccounts, &models.Account{}, "id IN ?", accountIDs)
}

// remove deletes matching rows from table when the table exists and records
// the count.
func (d *CascadeDeleter) remove(tx *gorm.DB, r *DeletionReport, table string, model interface{}, query string, args ...interface{}) error {
	if !d.caps.Has(table) {
		return nil
	}
	result := tx.Where(query, args...).Delete(model)
	if result.Error != nil {
		return newStoreError("delete "+table, result.Error)
	}
	r.Rows[table] += result.RowsAffected
	return nil
}

type stringSet map[string]struct{}

func (s stringSet) add(v string) {
	if strings.TrimSpace(v) == "" {
		return
	}
	s[v] = struct{}{}
}

func (s stringSet) union(other stringSet) stringSet {
	out := stringSet{}
	for v := range s {
		out[v] = struct{}{}
	}
	for v := range other {
		out[v] = struct{}{}
	}
	return out
}

func (s stringSet) values() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func joinIDs(ids []uint) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	return strings.Join(parts, ",")
}
