package config

import (
	"fmt"
	"net/http"
	"os"

	"go.uber.org/zap"
)

// Config holds the project config values
type Config struct {
	URL                 string
	DatabaseName        string
	BaseURL             string
	PublicWebBaseURL    string
	Port                string
	Environment         string
	SendgridAPIKey      string
	StripeSecretKey     string
	JWTSecret           string
	UploadSigningSecret string
}

// New sets up all config related services
func New() *Config {

	environment := os.Getenv("APP_ENV")

	//setup zap logger and replace default logger
	logger, err := setLogger(environment)
	if err != nil {
		logger = zap.NewExample()
	}
	defer logger.Sync()
	_ = zap.ReplaceGlobals(logger)

	// Links in outbound email point at the web app, which may live on a
	// different origin than the API.
	webBase := os.Getenv("PUBLIC_WEB_BASE_URL")
	if webBase == "" {
		webBase = os.Getenv("BASE_URL")
	}

	return &Config{
		URL:                 os.Getenv("DB_URI"),
		DatabaseName:        os.Getenv("DB_NAME"),
		BaseURL:             os.Getenv("BASE_URL"),
		PublicWebBaseURL:    webBase,
		Port:                os.Getenv("PORT"),
		Environment:         environment,
		SendgridAPIKey:      os.Getenv("SENDGRID_API_KEY"),
		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		UploadSigningSecret: os.Getenv("UPLOAD_SIGNING_SECRET"),
	}

}

// ErrorStatus is a useful function that will log, write http headers and body for a
// give message, status code and err
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error) {
	zap.S().With(err).Error(message)
	w.WriteHeader(httpStatusCode)
	w.Write([]byte(fmt.Sprintf(`{"response": "%s, %v"}`, message, err)))
	return
}
