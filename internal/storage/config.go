package storage

import "os"

// Mode selects the persistence backend for audit records
type Mode string

const (
	ModeNone   Mode = "none"
	ModeDynamo Mode = "dynamo"
	ModeMongo  Mode = "mongo"
)

// DynamoMode represents the DynamoDB connection mode
type DynamoMode string

const (
	DynamoModeLocal DynamoMode = "local"
	DynamoModeAWS   DynamoMode = "aws"
)

// Config selects and configures the storage backend
type Config struct {
	Mode   Mode
	Dynamo DynamoConfig
	Mongo  MongoConfig
}

// DynamoConfig holds DynamoDB configuration
type DynamoConfig struct {
	Mode             DynamoMode
	Endpoint         string // for local mode
	Region           string
	ChatRecordsTable string
	EscalationsTable string
}

// MongoConfig holds MongoDB configuration
type MongoConfig struct {
	URI                   string
	Database              string
	ChatRecordsCollection string
	EscalationsCollection string
}

// LoadConfig loads storage config from environment
func LoadConfig() Config {
	mode := Mode(getEnv("STORAGE_MODE", "none"))
	if mode != ModeDynamo && mode != ModeMongo {
		mode = ModeNone
	}

	dynamoMode := DynamoMode(getEnv("DYNAMO_MODE", "local"))
	if dynamoMode != DynamoModeAWS {
		dynamoMode = DynamoModeLocal
	}

	return Config{
		Mode: mode,
		Dynamo: DynamoConfig{
			Mode:             dynamoMode,
			Endpoint:         getEnv("DYNAMO_ENDPOINT", "http://localhost:8000"),
			Region:           getEnv("DYNAMO_REGION", "eu-central-1"),
			ChatRecordsTable: getEnv("DYNAMO_CHAT_RECORDS_TABLE", "chatrouter-chat-records"),
			EscalationsTable: getEnv("DYNAMO_ESCALATIONS_TABLE", "chatrouter-escalations"),
		},
		Mongo: MongoConfig{
			URI:                   getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database:              getEnv("MONGO_DATABASE", "chatrouter"),
			ChatRecordsCollection: getEnv("MONGO_CHAT_RECORDS_COLLECTION", "chat-records"),
			EscalationsCollection: getEnv("MONGO_ESCALATIONS_COLLECTION", "escalations"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
