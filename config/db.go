package config

import (
	"fmt"
	"log"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"form-consent/models"
)

var DB *gorm.DB

func envOrDefault(key, def string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	return value
}

func baseMySQLConfig() *mysqldriver.Config {
	c := mysqldriver.NewConfig()
	c.Net = "tcp"
	c.ParseTime = true
	c.Loc = time.Local
	c.Params = map[string]string{"charset": "utf8mb4"}
	return c
}

func mysqlDSNFromURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}

	dbName := strings.TrimPrefix(u.Path, "/")
	if dbName == "" {
		return "", fmt.Errorf("mysql url missing database name")
	}

	port := u.Port()
	if port == "" {
		port = "3306"
	}

	c := baseMySQLConfig()
	c.User = u.User.Username()
	c.Passwd, _ = u.User.Password()
	c.Addr = net.JoinHostPort(u.Hostname(), port)
	c.DBName = dbName
	for k, vals := range u.Query() {
		if len(vals) > 0 {
			c.Params[k] = vals[0]
		}
	}
	return c.FormatDSN(), nil
}

// ResolveMySQLDSN builds the DSN from MYSQL_URL / DATABASE_URL or, failing
// that, from the individual DB_* variables.
func ResolveMySQLDSN() (string, error) {
	raw := strings.TrimSpace(os.Getenv("MYSQL_URL"))
	if raw == "" {
		raw = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}

	if raw != "" {
		if strings.HasPrefix(raw, "mysql://") {
			return mysqlDSNFromURL(raw)
		}
		if _, err := mysqldriver.ParseDSN(raw); err != nil {
			return "", fmt.Errorf("invalid mysql dsn: %w", err)
		}
		return raw, nil
	}

	c := baseMySQLConfig()
	c.User = envOrDefault("DB_USER", "root")
	c.Passwd = envOrDefault("DB_PASS", "")
	c.Addr = net.JoinHostPort(envOrDefault("DB_HOST", "127.0.0.1"), envOrDefault("DB_PORT", "3306"))
	c.DBName = envOrDefault("DB_NAME", "form_consent")
	return c.FormatDSN(), nil
}

func ConnectDatabase() error {
	dsn, err := ResolveMySQLDSN()
	if err != nil {
		return err
	}

	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Warn,
			Colorful:      true,
		},
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: newLogger})
	if err != nil {
		return err
	}

	DB = db

	if err := DB.AutoMigrate(
		&models.FormSetting{},
		&models.StoredFile{},
		&models.Consent{},
		&models.ConsentLog{},
	); err != nil {
		return err
	}
	return nil
}
