package events

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Tesseract-Nexus/go-shared/events"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"catalog-service/internal/models"
)

// Publisher wraps the go-shared events publisher for catalog events. It
// satisfies classifier.EventSink so the engine can announce category
// changes without knowing about NATS.
type Publisher struct {
	publisher *events.Publisher
	logger    *logrus.Entry
}

// NewPublisher connects to NATS and ensures the products stream exists.
func NewPublisher(natsURL string, logger *logrus.Logger) (*Publisher, error) {
	config := events.DefaultPublisherConfig(natsURL)
	config.Name = "catalog-service"

	publisher, err := events.NewPublisher(config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create events publisher: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := publisher.EnsureStream(ctx, events.StreamProducts, []string{"product.>"}); err != nil {
		logger.WithError(err).Warn("Failed to ensure products stream (may already exist)")
	}

	return &Publisher{
		publisher: publisher,
		logger:    logger.WithField("component", "catalog-events"),
	}, nil
}

// Close closes the NATS connection
func (p *Publisher) Close() {
	if p.publisher != nil {
		p.publisher.Close()
	}
}

// ProductClassified publishes a product.classified event when the engine
// installs or changes a primary category.
func (p *Publisher) ProductClassified(ctx context.Context, product *models.Product, categoryID uint, previousCategoryID *uint) {
	event := p.buildProductEvent("product.classified", product)
	event.ChangeType = "classified"
	event.CategoryID = strconv.FormatUint(uint64(categoryID), 10)
	event.NewValue = map[string]interface{}{"categoryId": categoryID}
	if previousCategoryID != nil {
		event.OldValue = map[string]interface{}{"categoryId": *previousCategoryID}
	}
	event.ChangedFields = []string{"categoryId"}
	p.publish(event)
}

// ProductsImported publishes a product.imported event summarizing a bulk
// ingest run.
func (p *Publisher) ProductsImported(ctx context.Context, created, updated, failed int) {
	event := events.NewProductEvent("product.imported", "")
	event.SourceID = uuid.New().String()
	event.ChangeType = "imported"
	event.NewValue = map[string]interface{}{
		"created": created,
		"updated": updated,
		"failed":  failed,
	}
	p.publish(event)
}

// buildProductEvent creates a ProductEvent from a product model
func (p *Publisher) buildProductEvent(eventType string, product *models.Product) *events.ProductEvent {
	event := events.NewProductEvent(eventType, "")
	event.SourceID = uuid.New().String()
	event.ProductID = product.ProductID
	event.ProductName = product.Name
	event.SKU = product.PartNumber
	event.Status = string(product.Status)
	return event
}

// publish sends the event asynchronously so catalog writes never wait on
// the broker.
func (p *Publisher) publish(event *events.ProductEvent) {
	go func() {
		pubCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := p.publisher.PublishProduct(pubCtx, event); err != nil {
			p.logger.WithFields(logrus.Fields{
				"eventType": event.EventType,
				"productID": event.ProductID,
			}).WithError(err).Error("Failed to publish product event")
			return
		}
		p.logger.WithFields(logrus.Fields{
			"eventType": event.EventType,
			"productID": event.ProductID,
		}).Debug("Product event published")
	}()
}
