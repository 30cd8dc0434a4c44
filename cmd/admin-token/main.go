package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/lk2023060901/serp-gateway/internal/auth"
	"github.com/lk2023060901/serp-gateway/internal/conf"
)

var (
	configFile = flag.String("config", "configs/config.yaml", "config file path")
	subject    = flag.String("subject", "", "token subject, e.g. the operator's email")
	role       = flag.String("role", auth.RoleAdmin, "token role")
	ttl        = flag.Duration("ttl", 0, "token lifetime, defaults to admin.token_ttl")
)

// admin-token 签发访问 /admin 接口的 JWT
func main() {
	flag.Parse()

	config, err := conf.LoadConfig(*configFile)
	if err != nil {
		fail("failed to load config: %v", err)
	}
	if config.Admin.JWTSecret == "" {
		fail("admin.jwt_secret is not set (SERP_ADMIN_JWT_SECRET)")
	}
	if *subject == "" {
		fail("-subject is required")
	}

	lifetime := config.Admin.TokenTTL
	if *ttl > 0 {
		lifetime = *ttl
	}

	manager := auth.NewJWTManager(config.Admin.JWTSecret, config.Admin.JWTIssuer, lifetime)
	token, expiresAt, err := manager.GenerateToken(*subject, *role)
	if err != nil {
		fail("failed to generate token: %v", err)
	}

	fmt.Fprintf(os.Stderr, "expires at %s\n", expiresAt.Format(time.RFC3339))
	fmt.Println(token)
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
