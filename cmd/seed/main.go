package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/kiwari-pos/console/internal/backend"
	"github.com/kiwari-pos/console/internal/model"
	"github.com/shopspring/decimal"
)

// seedMenu maps category names to their dishes and prices.
var seedMenu = []struct {
	Category string
	Dishes   []struct {
		Name  string
		Price string
	}
}{
	{"Nasi Bakar", []struct{ Name, Price string }{
		{"Nasi Bakar Ayam", "25000"},
		{"Nasi Bakar Cumi", "28000"},
	}},
	{"Minuman", []struct{ Name, Price string }{
		{"Es Teh Manis", "5000"},
		{"Es Jeruk", "8000"},
	}},
}

func main() {
	// CLI flags
	email := flag.String("email", "", "Admin email address")
	password := flag.String("password", "", "Admin password")
	name := flag.String("name", "", "Admin full name")
	tables := flag.Int("tables", 6, "Number of tables to create")
	flag.Parse()

	// Fall back to environment variables
	if *email == "" {
		*email = os.Getenv("SEED_EMAIL")
	}
	if *password == "" {
		*password = os.Getenv("SEED_PASSWORD")
	}
	if *name == "" {
		*name = os.Getenv("SEED_NAME")
	}

	// Fall back to defaults
	if *email == "" {
		*email = "admin@kiwari.com"
	}
	if *password == "" {
		*password = "password123"
		log.Println("WARNING: Using default password 'password123'. Change immediately in production!")
	}
	if *name == "" {
		*name = "Admin Kiwari"
	}

	backendURL := os.Getenv("BACKEND_URL")
	if backendURL == "" {
		backendURL = "http://localhost:5000/api"
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	client := backend.New(backendURL, nil)

	token, admin, err := seedAdmin(ctx, client, *email, *password, *name)
	if err != nil {
		log.Fatalf("Failed to seed admin: %v", err)
	}
	client = client.WithToken(token)

	if err := seedCatalog(ctx, client); err != nil {
		log.Fatalf("Failed to seed menu: %v", err)
	}

	if err := seedTables(ctx, client, *tables); err != nil {
		log.Fatalf("Failed to seed tables: %v", err)
	}

	log.Println("Seed completed successfully")
	log.Printf("Admin ID: %s", admin.ID)
}

// seedAdmin registers the admin, or logs in if the email is already taken.
func seedAdmin(ctx context.Context, client *backend.Client, email, password, name string) (string, model.Admin, error) {
	token, admin, err := client.Register(ctx, backend.RegisterAdminRequest{
		Name:           name,
		Email:          email,
		Password:       password,
		RestaurantName: "Kiwari Nasi Bakar",
	})
	if err == nil {
		log.Printf("Registered admin '%s' (ID: %s)", email, admin.ID)
		return token, admin, nil
	}

	var apiErr *backend.APIError
	if !errors.As(err, &apiErr) || (apiErr.Status != http.StatusConflict && apiErr.Status != http.StatusBadRequest) {
		return "", model.Admin{}, fmt.Errorf("register: %w", err)
	}

	log.Printf("Admin '%s' already exists, logging in", email)
	token, admin, err = client.Login(ctx, email, password)
	if err != nil {
		return "", model.Admin{}, fmt.Errorf("login: %w", err)
	}
	return token, admin, nil
}

// seedCatalog creates the categories and dishes that don't exist yet.
func seedCatalog(ctx context.Context, client *backend.Client) error {
	categories, err := client.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}
	dishes, err := client.ListDishes(ctx)
	if err != nil {
		return fmt.Errorf("list dishes: %w", err)
	}

	byName := make(map[string]string, len(categories))
	for _, c := range categories {
		byName[c.Name] = c.ID
	}
	haveDish := make(map[string]bool, len(dishes))
	for _, d := range dishes {
		haveDish[d.Name] = true
	}

	for _, group := range seedMenu {
		categoryID, ok := byName[group.Category]
		if ok {
			log.Printf("Category '%s' already exists, skipping", group.Category)
		} else {
			c, err := client.CreateCategory(ctx, group.Category)
			if err != nil {
				return fmt.Errorf("create category %s: %w", group.Category, err)
			}
			categoryID = c.ID
			log.Printf("Created category '%s' (ID: %s)", c.Name, c.ID)
		}

		for _, d := range group.Dishes {
			if haveDish[d.Name] {
				log.Printf("Dish '%s' already exists, skipping", d.Name)
				continue
			}
			dish, err := client.CreateDish(ctx, backend.CreateDishRequest{
				Name:        d.Name,
				Price:       decimal.RequireFromString(d.Price),
				CategoryID:  categoryID,
				IsAvailable: true,
			})
			if err != nil {
				return fmt.Errorf("create dish %s: %w", d.Name, err)
			}
			log.Printf("Created dish '%s' (ID: %s)", dish.Name, dish.ID)
		}
	}
	return nil
}

// seedTables creates tables until there are at least n.
func seedTables(ctx context.Context, client *backend.Client, n int) error {
	existing, err := client.ListTables(ctx)
	if err != nil {
		return fmt.Errorf("list tables: %w", err)
	}
	if len(existing) >= n {
		log.Printf("%d tables already exist, skipping", len(existing))
		return nil
	}

	for i := len(existing) + 1; i <= n; i++ {
		t, err := client.CreateTable(ctx, fmt.Sprintf("%d", i))
		if err != nil {
			return fmt.Errorf("create table %d: %w", i, err)
		}
		log.Printf("Created table %s (ID: %s)", t.Label, t.ID)
	}
	return nil
}
