// Command token mints a bearer token for local testing.
//
//	go run ./cmd/token -user 42
package main

import (
	"dm-chat/auth"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

type config struct {
	JWTSecret         string        `env:"JWT_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
}

func main() {
	userID := flag.String("user", "", "User id the token is issued for")
	flag.Parse()

	_ = godotenv.Load()
	var cfg config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.AuthTokenDuration)
	token, err := tokens.GenerateToken(*userID, nil)
	if err != nil {
		log.Fatalf("Unable to mint token: %v", err)
	}
	fmt.Println(token)
}
