package services

import (
	"context"
	"database/sql"
	"log"
	"sync"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

var (
	messagingClient *messaging.Client
	once            sync.Once
	initError       error
)

// InitFirebase sets up the FCM messaging client. Push notifications are
// optional: when this is never called (or fails) the notify helpers no-op.
func InitFirebase(credentialsPath string) error {
	once.Do(func() {
		ctx := context.Background()

		opt := option.WithCredentialsFile(credentialsPath)
		app, err := firebase.NewApp(ctx, nil, opt)
		if err != nil {
			initError = err
			log.Printf("[FCM] Failed to init Firebase app: %v", err)
			return
		}

		messagingClient, err = app.Messaging(ctx)
		if err != nil {
			initError = err
			log.Printf("[FCM] Failed to get messaging client: %v", err)
			return
		}

		log.Println("[FCM] Firebase Messaging client initialized")
	})

	return initError
}

func NotificationsEnabled() bool {
	return messagingClient != nil
}

func SendNotification(deviceToken, title, body string, data map[string]string) error {
	if messagingClient == nil {
		return initError
	}

	message := &messaging.Message{
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data:  data,
		Token: deviceToken,
	}

	_, err := messagingClient.Send(context.Background(), message)
	if err != nil {
		log.Printf("[FCM] Send failed: %v", err)
	}
	return err
}

// SendMultipleNotifications multicasts to the given device tokens and prunes
// tokens FCM reports as unregistered.
func SendMultipleNotifications(
	db *sql.DB,
	tokens []string,
	title, body string,
	data map[string]string,
) (int, int, error) {

	if messagingClient == nil {
		return 0, 0, initError
	}

	message := &messaging.MulticastMessage{
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data:   data,
		Tokens: tokens,
	}

	response, err := messagingClient.SendEachForMulticast(context.Background(), message)
	if err != nil {
		log.Printf("[FCM] Multicast send failed: %v", err)
		return 0, 0, err
	}

	for i, resp := range response.Responses {
		if resp.Success {
			continue
		}

		token := tokens[i]
		log.Printf("[FCM] Token error: token=%s error=%v", token, resp.Error)

		if messaging.IsUnregistered(resp.Error) {
			if _, err := db.Exec(`DELETE FROM fcm_tokens WHERE token = $1`, token); err != nil {
				log.Printf("[FCM] Failed to delete dead token %s: %v", token, err)
			}
		}
	}

	return response.SuccessCount, response.FailureCount, nil
}
