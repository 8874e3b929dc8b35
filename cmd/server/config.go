package main

import "time"

type Config struct {
	Host                 string        `env:"HOST,default=localhost"`
	Port                 int           `env:"PORT,default=8080"`
	LogLevel             string        `env:"LOG_LEVEL,required=true"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	TokenSecret          string        `env:"TOKEN_SECRET,required=true"`
	TokenTTL             time.Duration `env:"TOKEN_TTL,default=24h"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	MaxTextLength        int           `env:"MAX_TEXT_LENGTH,default=65535"`
	MaxFrameBytes        int           `env:"MAX_FRAME_BYTES,default=1048576"`
	AuthTimeout          time.Duration `env:"AUTH_TIMEOUT,default=10s"`
	WriteTimeout         time.Duration `env:"WRITE_TIMEOUT,default=10s"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	BadgerGCInterval     time.Duration `env:"BADGER_GC_INTERVAL,default=5m"`
	TelemetryInterval    time.Duration `env:"TELEMETRY_INTERVAL,default=30s"`
}
