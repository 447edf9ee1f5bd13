package service

import (
	"fmt"
	"log"
	"os"
	"strings"

	"fleetbook/internal/entities"
	"fleetbook/internal/repository"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// NotificationService delivers booking status changes to the requester by
// email and SMS. Dispatch runs on its own goroutine; a delivery failure is
// logged and never reaches the transition that emitted the event.
type NotificationService struct {
	users    repository.UserStore
	vehicles repository.VehicleStore
}

func NewNotificationService(users repository.UserStore, vehicles repository.VehicleStore) *NotificationService {
	return &NotificationService{users: users, vehicles: vehicles}
}

func (s *NotificationService) BookingStatusChanged(event entities.StatusChangeEvent) {
	go s.dispatch(event)
}

func (s *NotificationService) dispatch(event entities.StatusChangeEvent) {
	user, err := s.users.FindByID(event.RequesterID)
	if err != nil {
		log.Printf("notify: could not load user %d for booking %s: %v", event.RequesterID, event.BookingCode, err)
		return
	}
	vehicleName := fmt.Sprintf("vehicle %d", event.VehicleID)
	if vehicle, err := s.vehicles.GetVehicle(event.VehicleID); err == nil {
		vehicleName = vehicle.Name
	}

	subject := fmt.Sprintf("Your booking %s is %s", event.BookingCode, event.Status)
	body := fmt.Sprintf(
		"Hello %s,\n\nYour booking for %s is now %s.\n\n"+
			"Booking code: %s\n\n"+
			"Fleet Desk",
		user.Name, vehicleName, event.Status, event.BookingCode,
	)

	if err := SendEmailWithSendGrid(user.Email, user.Name, subject, body); err != nil {
		log.Printf("notify: email for booking %s failed: %v", event.BookingCode, err)
	}
	if user.Phone != "" {
		smsBody := fmt.Sprintf("FleetBook: booking %s for %s is %s. Details in your email.",
			event.BookingCode, vehicleName, event.Status)
		if err := SendSMS(user.Phone, smsBody); err != nil {
			log.Printf("notify: SMS for booking %s failed: %v", event.BookingCode, err)
		}
	}
}

func SendEmailWithSendGrid(toEmailAddress, toName, subject, plainTextContent string) error {
	sendgridAPIKey := os.Getenv("SENDGRID_API_KEY")
	if sendgridAPIKey == "" {
		return fmt.Errorf("SENDGRID_API_KEY is not set")
	}
	fromEmail := os.Getenv("SENDGRID_FROM_EMAIL")
	if fromEmail == "" {
		return fmt.Errorf("SENDGRID_FROM_EMAIL is not set")
	}
	fromName := os.Getenv("SENDGRID_FROM_NAME")
	if fromName == "" {
		fromName = "FleetBook"
	}

	from := mail.NewEmail(fromName, fromEmail)
	to := mail.NewEmail(toName, toEmailAddress)
	message := mail.NewSingleEmail(from, subject, to, plainTextContent, "")

	client := sendgrid.NewSendClient(sendgridAPIKey)
	response, err := client.Send(message)
	if err != nil {
		return fmt.Errorf("sendgrid send failed: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf("sendgrid returned status %d: %s", response.StatusCode, response.Body)
	}
	return nil
}

func SendSMS(toNumber, messageBody string) error {
	accountSid := os.Getenv("TWILIO_ACCOUNT_SID")
	authToken := os.Getenv("TWILIO_AUTH_TOKEN")
	fromNumber := os.Getenv("TWILIO_FROM_NUMBER")

	if accountSid == "" || authToken == "" || fromNumber == "" {
		return fmt.Errorf("twilio credentials are not fully configured")
	}
	if !strings.HasPrefix(toNumber, "+") {
		log.Printf("notify: destination number '%s' is not E.164, SMS may fail", toNumber)
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username:   accountSid,
		Password:   authToken,
		AccountSid: accountSid,
	})

	params := &openapi.CreateMessageParams{}
	params.SetTo(toNumber)
	params.SetFrom(fromNumber)
	params.SetBody(messageBody)

	if _, err := client.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("twilio send failed: %w", err)
	}
	return nil
}
