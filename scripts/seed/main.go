// Command seed loads the schema and inserts a demo data set: one teacher, two
// students and a handful of projects in different workflow states.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/project-review-api/internal/models"
	"github.com/noah-isme/project-review-api/internal/repository"
	"github.com/noah-isme/project-review-api/pkg/config"
	"github.com/noah-isme/project-review-api/pkg/database"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	if schema, err := os.ReadFile("scripts/schema.sql"); err == nil {
		if _, err := db.ExecContext(ctx, string(schema)); err != nil {
			log.Fatalf("failed to apply schema: %v", err)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("changeme"), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("failed to hash demo password: %v", err)
	}

	users := []struct {
		id, email, name string
		role            models.UserRole
	}{
		{uuid.NewString(), "profesor@example.com", "Prof. Díaz", models.RoleTeacher},
		{uuid.NewString(), "ana@example.com", "Ana García", models.RoleStudent},
		{uuid.NewString(), "luis@example.com", "Luis Pérez", models.RoleStudent},
	}
	for _, u := range users {
		const query = `INSERT INTO users (id, email, password_hash, full_name, role, active, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5, TRUE, NOW(), NOW()) ON CONFLICT (email) DO NOTHING`
		if _, err := db.ExecContext(ctx, query, u.id, u.email, string(hash), u.name, u.role); err != nil {
			log.Fatalf("failed to insert user %s: %v", u.email, err)
		}
	}

	projects := repository.NewProjectRepository(db)
	grade := 4.5
	now := time.Now().UTC()
	demo := []*models.Project{
		{Title: "Sistema de riego automatizado", StudentID: users[1].id, DocumentPath: "uploads/riego.pdf", State: models.StateApproved, Grade: &grade, ReviewedAt: &now},
		{Title: "Analizador léxico", StudentID: users[1].id, DocumentPath: "uploads/lexer.pdf", State: models.StateInReview},
		{Title: "Tienda en línea", StudentID: users[2].id, DocumentPath: "uploads/tienda.pdf", State: models.StateSubmitted},
	}
	for _, p := range demo {
		if err := projects.Create(ctx, p); err != nil {
			log.Fatalf("failed to insert project %q: %v", p.Title, err)
		}
	}

	log.Printf("seeded %d users and %d projects", len(users), len(demo))
}
