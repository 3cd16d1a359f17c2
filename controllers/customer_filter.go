package controllers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"crm-backend/repository"
	"crm-backend/utils"

	"github.com/gin-gonic/gin"
)

// parseCustomerFilter reads the list filters from the query string. List
// parameters accept both repeated keys and comma separated values.
func parseCustomerFilter(c *gin.Context) (repository.CustomerFilter, error) {
	f := repository.CustomerFilter{
		Type:         strings.TrimSpace(c.Query("type")),
		Status:       strings.TrimSpace(c.Query("status")),
		Category:     strings.TrimSpace(c.Query("category")),
		Search:       strings.TrimSpace(c.Query("search")),
		JourneyStage: strings.TrimSpace(c.Query("journey_stage")),
	}

	tagIDs, err := utils.ParseUintList(c.QueryArray("tagIds")...)
	if err != nil {
		return f, fmt.Errorf("invalid tagIds: %w", err)
	}
	f.TagIDs = tagIDs

	models, err := utils.ParseIntList(c.QueryArray("customerModels")...)
	if err != nil {
		return f, fmt.Errorf("invalid customerModels: %w", err)
	}
	f.CustomerModels = models

	if f.CreatedByID, err = optionalUint(c.Query("createdById")); err != nil {
		return f, fmt.Errorf("invalid createdById: %w", err)
	}
	if f.CoachID, err = optionalUint(c.Query("coach_id")); err != nil {
		return f, fmt.Errorf("invalid coach_id: %w", err)
	}

	if f.DateFrom, err = optionalDate(c.Query("dateFrom")); err != nil {
		return f, errors.New("invalid dateFrom, expected YYYY-MM-DD")
	}
	if f.DateTo, err = optionalDate(c.Query("dateTo")); err != nil {
		return f, errors.New("invalid dateTo, expected YYYY-MM-DD")
	}

	return f, nil
}

func optionalUint(value string) (*uint, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return nil, err
	}
	id := uint(n)
	return &id, nil
}

func optionalDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	t, err := utils.ParseDate(value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
