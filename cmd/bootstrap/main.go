// Command bootstrap creates or repairs the initial admin account and prints
// its API key, which every /api/v1/admin route requires.
package main

import (
	"errors"
	"flag"
	"log"

	"gorm.io/gorm"

	"github.com/blockforge/blockforge/app/models"
	"github.com/blockforge/blockforge/internal/pkg/database"
	"github.com/blockforge/blockforge/internal/pkg/env"
)

func main() {
	var (
		name     = flag.String("name", "Admin", "display name for the admin account")
		email    = flag.String("email", "", "email address for the admin account")
		password = flag.String("password", "", "password for the admin account")
	)
	flag.Parse()

	if *email == "" || *password == "" {
		log.Fatal("bootstrap: -email and -password are required")
	}

	env.SetupEnvFile()
	database.SetupDatabase()
	db := database.GetDB()

	user, err := findOrCreateAdmin(db, *name, *email, *password)
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}

	settings, err := models.GetOrCreateUserSettings(db, user.ID)
	if err != nil {
		log.Fatalf("bootstrap: loading user settings: %v", err)
	}
	rawKey, err := settings.IssueAPIKey()
	if err != nil {
		log.Fatalf("bootstrap: generating API key: %v", err)
	}
	if err := db.Save(settings).Error; err != nil {
		log.Fatalf("bootstrap: storing API key: %v", err)
	}

	log.Printf("bootstrap: admin %s (user %d) is ready", user.Email, user.ID)
	log.Printf("bootstrap: API key (shown once, only its hash is stored): %s", rawKey)
}

// findOrCreateAdmin creates the account, or reuses an existing one after the
// provided password checks out, so a rerun rotates the key instead of failing.
func findOrCreateAdmin(db *gorm.DB, name, email, password string) (*models.User, error) {
	var existing models.User
	err := db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		if !models.CheckPasswordHash(password, existing.Password) {
			return nil, errors.New("password does not match the existing account")
		}
		if existing.Role != models.ROLE_ADMIN || existing.Status != models.STATUS_ACTIVE {
			existing.Role = models.ROLE_ADMIN
			existing.Status = models.STATUS_ACTIVE
			if err := db.Save(&existing).Error; err != nil {
				return nil, err
			}
		}
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user, err := models.CreateUser(name, email, password)
	if err != nil {
		return nil, err
	}
	user.Role = models.ROLE_ADMIN
	user.Status = models.STATUS_ACTIVE
	if err := db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}
