package main

import (
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	"fleetbook/internal/api"
	"fleetbook/internal/auth"
	"fleetbook/internal/repository"
	"fleetbook/internal/service"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
)

func main() {
	godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL not set")
	}
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}

	userRepo := repository.NewUserRepository(db)
	vehicleRepo := repository.NewVehicleRepository(db)
	bookingRepo := repository.NewBookingRepository(db)

	notifier := service.NewNotificationService(userRepo, vehicleRepo)
	engine := service.NewBookingService(bookingRepo, vehicleRepo, notifier)
	fleetSvc := service.NewFleetService(vehicleRepo, engine)
	authSvc := service.NewAuthService(userRepo, []byte(jwtSecret), time.Hour)
	jobSvc := service.NewJobService(vehicleRepo, engine)

	authHandler := api.NewAuthHandler(authSvc)
	bookingHandler := api.NewBookingHandler(engine, fleetSvc)
	adminHandler := api.NewAdminHandler(engine, fleetSvc, authSvc)

	mw := auth.NewMiddleware([]byte(jwtSecret))

	r := mux.NewRouter()

	// Public endpoints
	r.HandleFunc("/api/auth/register", authHandler.Register).Methods("POST")
	r.HandleFunc("/api/auth/login", authHandler.Login).Methods("POST")

	// Authenticated endpoints
	user := r.PathPrefix("/api").Subrouter()
	user.Use(mw.Authenticate)
	user.HandleFunc("/availability", bookingHandler.CheckAvailability).Methods("POST")
	user.HandleFunc("/bookings", bookingHandler.CreateBooking).Methods("POST")
	user.HandleFunc("/bookings", bookingHandler.ListMyBookings).Methods("GET")
	user.HandleFunc("/bookings/{code}", bookingHandler.GetBooking).Methods("GET")
	user.HandleFunc("/bookings/{code}/cancel", bookingHandler.CancelBooking).Methods("POST")
	user.HandleFunc("/bookings/{code}/start", bookingHandler.StartBooking).Methods("POST")
	user.HandleFunc("/bookings/{code}/complete", bookingHandler.CompleteBooking).Methods("POST")
	user.HandleFunc("/vehicles", bookingHandler.ListVehicles).Methods("GET")
	user.HandleFunc("/vehicle-types", bookingHandler.ListVehicleTypes).Methods("GET")

	// Admin endpoints (protected)
	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(mw.Authenticate, mw.RequireAdmin)
	admin.HandleFunc("/bookings", adminHandler.ListBookings).Methods("GET")
	admin.HandleFunc("/bookings/{code}/approve", adminHandler.ApproveBooking).Methods("POST")
	admin.HandleFunc("/bookings/{code}/reject", adminHandler.RejectBooking).Methods("POST")
	admin.HandleFunc("/vehicles", adminHandler.CreateVehicle).Methods("POST")
	admin.HandleFunc("/vehicles/{id}", adminHandler.UpdateVehicle).Methods("PUT")
	admin.HandleFunc("/vehicles/{id}/maintenance", adminHandler.SetMaintenance).Methods("PUT")
	admin.HandleFunc("/users", adminHandler.ListUsers).Methods("GET")
	admin.HandleFunc("/users/{id}/reset-password", adminHandler.ResetPassword).Methods("POST")
	admin.HandleFunc("/users/{id}/disable", adminHandler.DisableUser).Methods("POST")

	// Periodic sweep: flips derived vehicle statuses when a booking window
	// opens or lapses without an explicit transition.
	c := cron.New()
	if _, err := c.AddFunc("@every 5m", func() {
		if err := jobSvc.SyncVehicleStatuses(); err != nil {
			log.Printf("Vehicle status sweep: %v", err)
		}
	}); err != nil {
		log.Fatalf("Failed to schedule status sweep: %v", err)
	}
	c.Start()

	corsHandler := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)(r)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("Server running on port %s", port)
	log.Fatal(http.ListenAndServe(":"+port, handlers.LoggingHandler(os.Stdout, corsHandler)))
}
