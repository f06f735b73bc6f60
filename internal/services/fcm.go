package services

import (
	"context"
	"encoding/base64"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"logisync-backend/internal/events"
	"logisync-backend/internal/logger"
)

// messageSender is the part of the messaging client FCMService needs
type messageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMService pushes status changes to the organization's Firebase topic
type FCMService struct {
	client messageSender
}

// NewFCMService creates a new FCM service instance from a credentials file
func NewFCMService(credentialsFile string) (*FCMService, error) {
	return newFCMService(option.WithCredentialsFile(credentialsFile))
}

// NewFCMServiceFromBase64 creates a new FCM service instance from base64-encoded credentials.
// Useful on hosts where a credentials file cannot be uploaded.
func NewFCMServiceFromBase64(credentialsBase64 string) (*FCMService, error) {
	credentialsJSON, err := base64.StdEncoding.DecodeString(credentialsBase64)
	if err != nil {
		return nil, fmt.Errorf("error decoding base64 credentials: %w", err)
	}
	return newFCMService(option.WithCredentialsJSON(credentialsJSON))
}

func newFCMService(opt option.ClientOption) (*FCMService, error) {
	ctx := context.Background()

	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}

	return &FCMService{client: client}, nil
}

// Topic is the FCM topic an organization's devices subscribe to
func Topic(organizationID string) string {
	return "org_" + organizationID
}

// Publish sends a push for status changes and new shipments; other events are ignored
func (s *FCMService) Publish(ctx context.Context, evt events.Event) error {
	message := statusMessage(evt)
	if message == nil {
		return nil
	}

	response, err := s.client.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("error sending FCM message: %w", err)
	}

	logger.Get().Debug("FCM notification sent",
		zap.String("topic", message.Topic),
		zap.String("response", response))
	return nil
}

func statusMessage(evt events.Event) *messaging.Message {
	var title, body string
	switch evt.Type {
	case events.TypeStatusUpdated:
		title = "Package Update"
		body = fmt.Sprintf("Package %s is now %s", evt.TrackingNumber, evt.Status)
	case events.TypeShipmentCreated:
		title = "New Shipment"
		body = fmt.Sprintf("Shipment %s has been created", evt.ShipmentID)
	default:
		return nil
	}

	return &messaging.Message{
		Topic: Topic(evt.OrganizationID),
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: map[string]string{
			"type":            string(evt.Type),
			"shipment_id":     evt.ShipmentID,
			"tracking_number": evt.TrackingNumber,
			"status":          evt.Status,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					ContentAvailable: true,
					Sound:            "default",
				},
			},
		},
	}
}
