package main

import (
	"log"
	"net/http"
	"os"

	gorilla "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"socialbase.com/social-media-be/database"
	"socialbase.com/social-media-be/middleware"
	"socialbase.com/social-media-be/routes"
	"socialbase.com/social-media-be/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using process environment")
	}

	if os.Getenv("JWT_SECRET") == "" {
		log.Fatal("JWT_SECRET not set")
	}

	db, err := database.ConnectDB()
	if err != nil {
		log.Fatal("DB connection failed:", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal("Migrations failed:", err)
	}

	if path := os.Getenv("FIREBASE_CREDENTIALS_PATH"); path != "" {
		if err := services.InitFirebase(path); err != nil {
			log.Printf("Firebase init failed, push notifications disabled: %v", err)
		}
	}

	router := mux.NewRouter()
	router.Use(middleware.Metrics)

	routes.CreateUserRoutes(db, router)
	routes.CreatePostRoutes(db, router)
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	origin := os.Getenv("FRONTEND_ORIGIN")
	if origin == "" {
		origin = "http://127.0.0.1:5500"
	}
	cors := gorilla.CORS(
		gorilla.AllowedOrigins([]string{origin}),
		gorilla.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorilla.AllowedHeaders([]string{"Content-Type"}),
		gorilla.AllowCredentials(),
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3001"
	}

	log.Printf("Server is running on http://localhost:%s", port)
	log.Fatal(http.ListenAndServe(":"+port, cors(router)))
}
