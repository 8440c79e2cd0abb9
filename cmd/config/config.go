package config

import (
	"flag"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

var (
	RunAddress         string
	DatabaseURI        string
	LogLevel           string
	JWTSecret          string
	CORSOrigin         string
	ReservationTTLMin  int
	DrawSize           int
	PriceCents         int
	MercadoPagoToken   string
	MercadoPagoBaseURL string
	AdminEmail         string
	AdminPassword      string
)

func ParseFlags() {
	_ = godotenv.Load()

	flag.StringVar(&RunAddress, "a", ":8080", "address to run server")
	flag.StringVar(&DatabaseURI, "d", "", "database uri")
	flag.StringVar(&LogLevel, "l", "info", "log level")
	flag.StringVar(&JWTSecret, "s", "change-me-in-env", "jwt signing secret")
	flag.StringVar(&CORSOrigin, "o", "*", "allowed cors origin")
	flag.IntVar(&ReservationTTLMin, "t", 15, "reservation ttl in minutes")
	flag.IntVar(&DrawSize, "n", 100, "numbers per draw")
	flag.IntVar(&PriceCents, "p", 5500, "price per number in cents")
	flag.StringVar(&MercadoPagoToken, "mp-token", "", "mercado pago access token")
	flag.StringVar(&MercadoPagoBaseURL, "mp-url", "https://api.mercadopago.com", "mercado pago api base url")
	flag.StringVar(&AdminEmail, "admin-email", "", "seeded admin email")
	flag.StringVar(&AdminPassword, "admin-password", "", "seeded admin password")
	flag.Parse()

	if envRunAddr := os.Getenv("RUN_ADDRESS"); envRunAddr != "" {
		RunAddress = envRunAddr
	}
	if databaseURI := os.Getenv("DATABASE_URL"); databaseURI != "" {
		DatabaseURI = databaseURI
	}
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		LogLevel = logLevel
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		JWTSecret = secret
	}
	if origin := os.Getenv("CORS_ORIGIN"); origin != "" {
		CORSOrigin = origin
	}
	if ttl := os.Getenv("RESERVATION_TTL_MIN"); ttl != "" {
		if v, err := strconv.Atoi(ttl); err == nil && v > 0 {
			ReservationTTLMin = v
		}
	}
	if size := os.Getenv("DRAW_SIZE"); size != "" {
		if v, err := strconv.Atoi(size); err == nil && v > 0 {
			DrawSize = v
		}
	}
	if price := os.Getenv("PRICE_CENTS"); price != "" {
		if v, err := strconv.Atoi(price); err == nil && v > 0 {
			PriceCents = v
		}
	}
	if token := os.Getenv("MP_ACCESS_TOKEN"); token != "" {
		MercadoPagoToken = token
	}
	if baseURL := os.Getenv("MP_BASE_URL"); baseURL != "" {
		MercadoPagoBaseURL = baseURL
	}
	if email := os.Getenv("ADMIN_EMAIL"); email != "" {
		AdminEmail = email
	}
	if password := os.Getenv("ADMIN_PASSWORD"); password != "" {
		AdminPassword = password
	}
}
