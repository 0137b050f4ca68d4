package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/tagworks/servicedesk/internal/auth"
	"github.com/tagworks/servicedesk/internal/db"
	"github.com/tagworks/servicedesk/internal/directory"
	"github.com/tagworks/servicedesk/internal/handlers"
	"github.com/tagworks/servicedesk/internal/middleware"
	"github.com/tagworks/servicedesk/internal/resolver"
	"github.com/tagworks/servicedesk/internal/scan"
	"github.com/tagworks/servicedesk/internal/tickets"
	"github.com/tagworks/servicedesk/internal/tips"
	"github.com/tagworks/servicedesk/internal/users"
	"github.com/tagworks/servicedesk/internal/watch"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info("no .env file, using environment")
	}
	log.SetFormatter(&log.JSONFormatter{})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	mongoClient, err := db.ConnectMongo()
	if err != nil {
		log.WithError(err).Fatal("failed to connect to MongoDB")
	}
	database := db.Database(mongoClient)
	if err := db.EnsureIndexes(ctx, database); err != nil {
		log.WithError(err).Fatal("failed to create indexes")
	}
	log.Info("connected to MongoDB")

	revocations, err := auth.NewRedisRevocationStore(ctx)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to Redis")
	}
	log.Info("connected to Redis")

	authService, err := auth.NewService()
	if err != nil {
		log.WithError(err).Fatal("failed to create auth service")
	}

	ticketStore := db.NewMongoTicketStore(mongoClient, database)
	clientStore := db.NewMongoClientStore(mongoClient, database)
	userStore := db.NewMongoUserStore(mongoClient, database)

	ticketService := tickets.NewService(ticketStore, ticketStore)
	tagResolver := resolver.New(ticketStore)
	directoryService := directory.NewService(clientStore)
	userService := users.NewService(userStore, authService)
	tipClient := tips.NewClient()

	authMiddleware := middleware.NewAuthMiddleware(authService, revocations, userStore)
	authHandler := handlers.NewAuthHandler(authService, revocations, userStore)
	ticketHandler := handlers.NewTicketHandler(ticketService, tagResolver, tipClient)
	clientHandler := handlers.NewClientHandler(directoryService)
	userHandler := handlers.NewUserHandler(userService)
	eventHandler := handlers.NewEventHandler(watch.NewWatcher(database))

	if broker := os.Getenv("MQTT_BROKER"); broker != "" {
		gateway, err := scan.NewGateway(broker, "servicedesk-gateway", tagResolver)
		if err != nil {
			log.WithError(err).Fatal("failed to connect scan gateway")
		}
		if err := gateway.Start(); err != nil {
			log.WithError(err).Fatal("failed to start scan gateway")
		}
		defer gateway.Stop()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/logout", authHandler.Logout)

	mux.HandleFunc("POST /api/scan/resolve", ticketHandler.Resolve)
	mux.HandleFunc("POST /api/tickets", ticketHandler.Create)
	mux.HandleFunc("GET /api/tickets", ticketHandler.List)
	mux.HandleFunc("GET /api/tickets/{id}", ticketHandler.Get)
	mux.HandleFunc("PUT /api/tickets/{id}", ticketHandler.Update)
	mux.HandleFunc("POST /api/tickets/{id}/quick-update", ticketHandler.QuickUpdate)
	mux.HandleFunc("DELETE /api/tickets/{id}", ticketHandler.Delete)
	mux.HandleFunc("GET /api/tickets/{id}/history", ticketHandler.History)
	mux.HandleFunc("GET /api/tickets/{id}/tips", ticketHandler.Tips)
	mux.HandleFunc("GET /api/history", ticketHandler.OrgHistory)
	mux.HandleFunc("GET /api/events", eventHandler.Stream)

	mux.HandleFunc("POST /api/clients", clientHandler.Save)
	mux.HandleFunc("GET /api/clients", clientHandler.List)
	mux.HandleFunc("GET /api/clients/{id}", clientHandler.Get)
	mux.HandleFunc("GET /api/clients/{id}/snapshot", clientHandler.Snapshot)
	mux.HandleFunc("DELETE /api/clients/{id}", clientHandler.Delete)
	mux.HandleFunc("POST /api/clients/{id}/contacts", clientHandler.SaveContact)
	mux.HandleFunc("GET /api/clients/{id}/contacts", clientHandler.ListContacts)
	mux.HandleFunc("DELETE /api/clients/{id}/contacts/{contactId}", clientHandler.DeleteContact)

	mux.HandleFunc("POST /api/users", userHandler.Create)
	mux.HandleFunc("GET /api/users", userHandler.List)
	mux.HandleFunc("PUT /api/users/{id}/permissions", userHandler.UpdatePermissions)
	mux.HandleFunc("DELETE /api/users/{id}", userHandler.Delete)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.WithField("port", port).Info("HTTP server listening")
	if err := http.ListenAndServe(":"+port, authMiddleware.Authenticate(mux)); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}
