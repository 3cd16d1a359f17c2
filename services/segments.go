package services

import (
	"context"
	"strconv"
	"time"

	"crm-backend/models"
)

const (
	segmentsCacheKey  = "crm:customers:segments"
	UnassignedSegment = "unassigned"
)

// SegmentBreakdown counts customers per customer model. Every model from 1 to
// 9 is present, plus UnassignedSegment for customers without one.
type SegmentBreakdown struct {
	Breakdown map[string]int64 `json:"breakdown"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

type segmentRow struct {
	CustomerModel *int  `gorm:"column:customer_model"`
	Total         int64 `gorm:"column:total"`
}

// GetCustomerSegments returns the per-model customer counts, served from the
// cache while it is warm.
func (s *CustomerService) GetCustomerSegments(ctx context.Context) (*SegmentBreakdown, error) {
	var cached SegmentBreakdown
	found, err := s.cache.GetJSON(ctx, segmentsCacheKey, &cached)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to read segments from cache")
	} else if found {
		return &cached, nil
	}

	var rows []segmentRow
	if err := s.db.WithContext(ctx).Model(&models.Customer{}).
		Select("customer_model, COUNT(*) AS total").
		Group("customer_model").
		Scan(&rows).Error; err != nil {
		return nil, newStoreError("count customer segments", err)
	}

	breakdown := make(map[string]int64, models.MaxCustomerModel+1)
	for m := models.MinCustomerModel; m <= models.MaxCustomerModel; m++ {
		breakdown[strconv.Itoa(m)] = 0
	}
	breakdown[UnassignedSegment] = 0
	for _, row := range rows {
		if row.CustomerModel == nil {
			breakdown[UnassignedSegment] += row.Total
			continue
		}
		breakdown[strconv.Itoa(*row.CustomerModel)] += row.Total
	}

	result := &SegmentBreakdown{Breakdown: breakdown, UpdatedAt: s.now().UTC()}
	if err := s.cache.SetJSON(ctx, segmentsCacheKey, result, s.segmentsTTL); err != nil {
		s.logger.WithError(err).Warn("Failed to store segments in cache")
	}
	return result, nil
}

func (s *CustomerService) invalidateSegments(ctx context.Context) {
	if err := s.cache.Delete(ctx, segmentsCacheKey); err != nil {
		s.logger.WithError(err).Warn("Failed to invalidate segments cache")
	}
}
