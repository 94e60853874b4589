package storage

import (
	"context"
	"os"
	"testing"

	"github.com/rs/zerolog"
)

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		check func(*testing.T, Config)
	}{
		{
			name: "defaults",
			env:  map[string]string{},
			check: func(t *testing.T, cfg Config) {
				if cfg.Mode != ModeNone {
					t.Errorf("expected mode none, got %s", cfg.Mode)
				}
				if cfg.Dynamo.Mode != DynamoModeLocal {
					t.Errorf("expected local dynamo mode, got %s", cfg.Dynamo.Mode)
				}
				if cfg.Mongo.Database != "chatrouter" {
					t.Errorf("expected chatrouter database, got %s", cfg.Mongo.Database)
				}
			},
		},
		{
			name: "unknown mode falls back to none",
			env:  map[string]string{"STORAGE_MODE": "postgres"},
			check: func(t *testing.T, cfg Config) {
				if cfg.Mode != ModeNone {
					t.Errorf("expected mode none, got %s", cfg.Mode)
				}
			},
		},
		{
			name: "dynamo on aws",
			env: map[string]string{
				"STORAGE_MODE":              "dynamo",
				"DYNAMO_MODE":               "aws",
				"DYNAMO_CHAT_RECORDS_TABLE": "chats",
			},
			check: func(t *testing.T, cfg Config) {
				if cfg.Mode != ModeDynamo || cfg.Dynamo.Mode != DynamoModeAWS {
					t.Errorf("expected dynamo on aws, got %s/%s", cfg.Mode, cfg.Dynamo.Mode)
				}
				if cfg.Dynamo.ChatRecordsTable != "chats" {
					t.Errorf("expected table override, got %s", cfg.Dynamo.ChatRecordsTable)
				}
			},
		},
		{
			name: "mongo",
			env:  map[string]string{"STORAGE_MODE": "mongo", "MONGO_URI": "mongodb://db:27017"},
			check: func(t *testing.T, cfg Config) {
				if cfg.Mode != ModeMongo || cfg.Mongo.URI != "mongodb://db:27017" {
					t.Errorf("unexpected mongo config: %+v", cfg)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range tt.env {
				os.Setenv(k, v)
			}
			tt.check(t, LoadConfig())
		})
	}
}

func TestNewStoreDisabled(t *testing.T) {
	store, err := NewStore(context.Background(), Config{Mode: ModeNone}, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := store.(*NoopStore); !ok {
		t.Fatalf("expected NoopStore, got %T", store)
	}

	records, err := store.GetAgentChatsByDate("a1", "2024-03-01")
	if err != nil || records != nil {
		t.Errorf("noop store should return nothing, got %v, %v", records, err)
	}
}
