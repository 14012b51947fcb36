package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Backend names accepted by PRANK_STORE.
const (
	StoreNone     = "none"
	StoreMemory   = "memory"
	StoreWS       = "ws"
	StoreDynamo   = "dynamo"
	StorePostgres = "postgres"
)

// Config is the runtime configuration shared by the app and the commands.
type Config struct {
	Store       string
	ServerURL   string
	DynamoTable string
	AWSRegion   string
	DatabaseURL string
	PollEvery   time.Duration

	BaseURL  string
	Link     string
	Listen   string
	LogLevel slog.Level
	Debug    bool
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Store:       StoreNone,
		ServerURL:   "ws://localhost:8090/ws",
		DynamoTable: "prank_records",
		AWSRegion:   "us-east-1",
		PollEvery:   time.Second,
		BaseURL:     "https://sayyes.example/",
		Listen:      ":8090",
		LogLevel:    slog.LevelInfo,
	}
}

// Load reads an optional .env file and PRANK_* variables on top of Default.
func Load(files ...string) Config {
	if err := godotenv.Load(files...); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not read env file", "err", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) Config {
	cfg := Default()
	if v := getenv("PRANK_STORE"); v != "" {
		cfg.Store = strings.ToLower(v)
	}
	if v := getenv("PRANK_SERVER_URL"); v != "" {
		cfg.ServerURL = v
	}
	if v := getenv("PRANK_DYNAMO_TABLE"); v != "" {
		cfg.DynamoTable = v
	}
	if v := getenv("PRANK_AWS_REGION"); v != "" {
		cfg.AWSRegion = v
	}
	if v := getenv("PRANK_DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := getenv("PRANK_POLL_EVERY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.PollEvery = d
		}
	}
	if v := getenv("PRANK_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := getenv("PRANK_LINK"); v != "" {
		cfg.Link = v
	}
	if v := getenv("PRANK_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := getenv("PRANK_LOG_LEVEL"); v != "" {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(v)); err == nil {
			cfg.LogLevel = lvl
		}
	}
	if v := getenv("PRANK_DEBUG"); v == "1" || strings.EqualFold(v, "true") {
		cfg.Debug = true
	}
	return cfg
}
