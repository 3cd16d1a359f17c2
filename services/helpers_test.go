package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"crm-backend/events"
	"crm-backend/metrics"
	"crm-backend/repository"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// memoryCache is an in-process Cache that counts its calls.
type memoryCache struct {
	mu      sync.Mutex
	values  map[string][]byte
	gets    int
	deletes int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string][]byte{}}
}

func (c *memoryCache) GetJSON(_ context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	data, ok := c.values[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, dest)
}

func (c *memoryCache) SetJSON(_ context.Context, key string, value interface{}, _ time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = data
	return nil
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes++
	delete(c.values, key)
	return nil
}

func (c *memoryCache) Close() error { return nil }

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.CustomersDeletedEvent
}

func (p *recordingPublisher) PublishCustomersDeleted(_ context.Context, event events.CustomersDeletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() {}

type serviceHarness struct {
	svc       *CustomerService
	db        *gorm.DB
	cache     *memoryCache
	publisher *recordingPublisher
	metrics   *metrics.Metrics
	logs      *test.Hook
}

func newHarness(t *testing.T, db *gorm.DB, dialect repository.Dialect, caps repository.Capabilities) *serviceHarness {
	t.Helper()
	require.NotNil(t, db)

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	h := &serviceHarness{
		db:        db,
		cache:     newMemoryCache(),
		publisher: &recordingPublisher{},
		metrics:   metrics.New(prometheus.NewRegistry()),
		logs:      hook,
	}
	h.svc = NewCustomerService(CustomerServiceDeps{
		DB:                  db,
		Dialect:             dialect,
		Capabilities:        caps,
		Cache:               h.cache,
		Publisher:           h.publisher,
		Metrics:             h.metrics,
		Logger:              logger,
		TransactionalDelete: true,
	})
	return h
}

func strPtr(v string) *string { return &v }
func intPtr(v int) *int       { return &v }
func uintPtr(v uint) *uint    { return &v }
