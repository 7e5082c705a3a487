package config

import (
	"log"
	"os"
	"strings"

	"ai-force-assess/internal/datastore"
)

// GetDataStoreConfig returns the data store configuration based on environment variables
func GetDataStoreConfig() datastore.Config {
	storeType := os.Getenv("ASSESS_STORE_TYPE")
	if storeType == "" {
		storeType = "postgres" // Default to PostgreSQL
	}

	config := datastore.Config{}

	switch strings.ToLower(storeType) {
	case "mock":
		config.Type = datastore.MockStore
		config.MockDataPath = getMockDataPath()
	case "postgres", "postgresql", "db":
		config.Type = datastore.PostgresStore
		config.ConnectionString = getConnectionString()
	default:
		// Default to PostgreSQL if unknown type
		config.Type = datastore.PostgresStore
		config.ConnectionString = getConnectionString()
	}

	return config
}

// GetAPIKey looks for GEMINI_API_KEY first, then falls back to GOOGLE_API_KEY.
// Empty means no LLM access; callers fall back to the mock crew agent.
func GetAPIKey() string {
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		return apiKey
	}
	if apiKey := os.Getenv("GOOGLE_API_KEY"); apiKey != "" {
		log.Println("using GOOGLE_API_KEY for Gemini API (consider setting GEMINI_API_KEY)")
		return apiKey
	}
	return ""
}

// getMockDataPath returns the path to mock data files
func getMockDataPath() string {
	path := os.Getenv("ASSESS_MOCK_DATA_PATH")
	if path == "" {
		return "data/mocks" // Default path
	}
	return path
}

// getConnectionString returns the database connection string
func getConnectionString() string {
	connStr := os.Getenv("DB_CONN_STRING")
	if connStr == "" {
		// Default connection string for local development
		return "postgres://localhost:5432/postgres?sslmode=disable"
	}
	return connStr
}

// IsMockMode returns true if running in mock mode
func IsMockMode() bool {
	storeType := os.Getenv("ASSESS_STORE_TYPE")
	return strings.EqualFold(storeType, "mock")
}
