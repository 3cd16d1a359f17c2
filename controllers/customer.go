package controllers

import (
	"context"
	"net/http"
	"strconv"

	"crm-backend/repository"
	"crm-backend/services"
	"crm-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// CustomerManager is the slice of the customer service the handlers need.
type CustomerManager interface {
	ListCustomers(ctx context.Context, f repository.CustomerFilter) ([]repository.CustomerListItem, error)
	GetCustomerByID(ctx context.Context, id uint) (*services.CustomerDetail, error)
	CreateCustomer(ctx context.Context, in services.CustomerInput, createdBy *uint) (*services.CustomerDetail, error)
	UpdateCustomer(ctx context.Context, id uint, in services.CustomerUpdate) (*services.CustomerDetail, error)
	UpdateCustomerScore(ctx context.Context, id uint, score int) (*services.CustomerDetail, error)
	DeleteCustomer(ctx context.Context, id uint) error
	BulkDeleteCustomers(ctx context.Context, ids []uint) (int64, error)
	GetCustomerSegments(ctx context.Context) (*services.SegmentBreakdown, error)
}

// CustomerController handles the customer endpoints
type CustomerController struct {
	customers CustomerManager
	logger    *logrus.Logger
}

func NewCustomerController(customers CustomerManager, logger *logrus.Logger) *CustomerController {
	if logger == nil {
		logger = logrus.New()
	}
	return &CustomerController{customers: customers, logger: logger}
}

// ScoreInput is the body of PUT /customers/:id/score
type ScoreInput struct {
	Score *int `json:"score"`
}

// BulkDeleteInput is the body of POST /customers/bulk-delete
type BulkDeleteInput struct {
	IDs []uint `json:"ids"`
}

// GetCustomers lists customers matching the query filters
func (cc *CustomerController) GetCustomers(c *gin.Context) {
	filter, err := parseCustomerFilter(c)
	if err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	customers, err := cc.customers.ListCustomers(c.Request.Context(), filter)
	if err != nil {
		cc.respondWithServiceError(c, err, "Failed to retrieve customers")
		return
	}

	c.JSON(http.StatusOK, customers)
}

// GetCustomer retrieves a customer with its related records
func (cc *CustomerController) GetCustomer(c *gin.Context) {
	id, ok := customerIDParam(c)
	if !ok {
		return
	}

	customer, err := cc.customers.GetCustomerByID(c.Request.Context(), id)
	if err != nil {
		cc.respondWithServiceError(c, err, "Failed to retrieve customer")
		return
	}

	c.JSON(http.StatusOK, customer)
}

// CreateCustomer creates a customer attributed to the calling user
func (cc *CustomerController) CreateCustomer(c *gin.Context) {
	var input services.CustomerInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	customer, err := cc.customers.CreateCustomer(c.Request.Context(), input, currentUserID(c))
	if err != nil {
		cc.respondWithServiceError(c, err, "Failed to create customer")
		return
	}

	c.JSON(http.StatusCreated, customer)
}

// UpdateCustomer updates the provided fields of a customer
func (cc *CustomerController) UpdateCustomer(c *gin.Context) {
	id, ok := customerIDParam(c)
	if !ok {
		return
	}

	var input services.CustomerUpdate
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	customer, err := cc.customers.UpdateCustomer(c.Request.Context(), id, input)
	if err != nil {
		cc.respondWithServiceError(c, err, "Failed to update customer")
		return
	}

	c.JSON(http.StatusOK, customer)
}

// UpdateCustomerScore sets a customer's score
func (cc *CustomerController) UpdateCustomerScore(c *gin.Context) {
	id, ok := customerIDParam(c)
	if !ok {
		return
	}

	var input ScoreInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	if input.Score == nil {
		utils.RespondWithError(c, http.StatusBadRequest, "score is required")
		return
	}

	customer, err := cc.customers.UpdateCustomerScore(c.Request.Context(), id, *input.Score)
	if err != nil {
		cc.respondWithServiceError(c, err, "Failed to update customer score")
		return
	}

	c.JSON(http.StatusOK, customer)
}

// DeleteCustomer removes a customer and its dependent records
func (cc *CustomerController) DeleteCustomer(c *gin.Context) {
	id, ok := customerIDParam(c)
	if !ok {
		return
	}

	if err := cc.customers.DeleteCustomer(c.Request.Context(), id); err != nil {
		cc.respondWithServiceError(c, err, "Failed to delete customer")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Customer deleted successfully"})
}

// BulkDeleteCustomers removes several customers in one cascade
func (cc *CustomerController) BulkDeleteCustomers(c *gin.Context) {
	var input BulkDeleteInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	deleted, err := cc.customers.BulkDeleteCustomers(c.Request.Context(), input.IDs)
	if err != nil {
		cc.respondWithServiceError(c, err, "Failed to delete customers")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Customers deleted successfully",
		"deleted": deleted,
	})
}

// GetCustomerSegments returns customer counts per customer model
func (cc *CustomerController) GetCustomerSegments(c *gin.Context) {
	segments, err := cc.customers.GetCustomerSegments(c.Request.Context())
	if err != nil {
		cc.respondWithServiceError(c, err, "Failed to retrieve customer segments")
		return
	}

	c.JSON(http.StatusOK, segments)
}

func (cc *CustomerController) respondWithServiceError(c *gin.Context, err error, fallback string) {
	if validationErr, ok := services.IsValidationError(err); ok {
		utils.RespondWithError(c, http.StatusBadRequest, validationErr.Error())
		return
	}
	if notFoundErr, ok := services.IsNotFoundError(err); ok {
		utils.RespondWithError(c, http.StatusNotFound, notFoundErr.Error())
		return
	}
	if conflictErr, ok := services.IsConflictError(err); ok {
		utils.RespondWithError(c, http.StatusConflict, conflictErr.Message)
		return
	}

	cc.logger.WithError(err).WithFields(logrus.Fields{
		"path":       c.Request.URL.Path,
		"request_id": c.GetString(utils.RequestIDKey),
	}).Error(fallback)
	utils.RespondWithError(c, http.StatusInternalServerError, fallback)
}

func customerIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid customer ID format")
		return 0, false
	}
	return uint(id), true
}

// currentUserID returns the authenticated user when the token subject is a
// numeric id.
func currentUserID(c *gin.Context) *uint {
	sub := c.GetString(utils.UserIDKey)
	if sub == "" {
		return nil
	}
	id, err := strconv.ParseUint(sub, 10, 64)
	if err != nil {
		return nil
	}
	userID := uint(id)
	return &userID
}
