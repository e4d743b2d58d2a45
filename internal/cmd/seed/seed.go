// Package seed parses seed command flags and loads demo data into the
// configured stores.
package seed

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"

	entrypoint "github.com/quillhub/quillhub.press/internal/platform/cmd"
	apperrors "github.com/quillhub/quillhub.press/internal/platform/errors"
	"github.com/quillhub/quillhub.press/internal/platform/id"
	"github.com/quillhub/quillhub.press/internal/platform/requestctx"
	"github.com/quillhub/quillhub.press/internal/services/content/cache/memory"
	contentdomain "github.com/quillhub/quillhub.press/internal/services/content/domain"
	"github.com/quillhub/quillhub.press/internal/services/content/storage"
	contentpostgres "github.com/quillhub/quillhub.press/internal/services/content/storage/postgres"
	contentsqlite "github.com/quillhub/quillhub.press/internal/services/content/storage/sqlite"
	identitydomain "github.com/quillhub/quillhub.press/internal/services/identity/domain"
	identitystorage "github.com/quillhub/quillhub.press/internal/services/identity/storage"
	identitysqlite "github.com/quillhub/quillhub.press/internal/services/identity/storage/sqlite"
)

// Config holds seed command configuration.
type Config struct {
	DataDir       string `env:"QUILLHUB_DATA_DIR" envDefault:"data"`
	DatabaseURL   string `env:"QUILLHUB_DATABASE_URL"`
	HashCost      int    `env:"QUILLHUB_HASH_COST" envDefault:"10"`
	AdminEmail    string `env:"QUILLHUB_SEED_ADMIN_EMAIL" envDefault:"admin@quillhub.local"`
	AdminPassword string `env:"QUILLHUB_SEED_ADMIN_PASSWORD" envDefault:"admin-password"`
	Posts         int
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "The directory for SQLite database files")
	fs.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "The Postgres connection URL (SQLite when empty)")
	fs.StringVar(&cfg.AdminEmail, "admin-email", cfg.AdminEmail, "The demo administrator email")
	fs.StringVar(&cfg.AdminPassword, "admin-password", cfg.AdminPassword, "The demo administrator password")
	fs.IntVar(&cfg.Posts, "posts", 12, "The number of demo posts to create")

	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes the seed command.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "data"
	}

	userStore, err := identitysqlite.Open(filepath.Join(cfg.DataDir, "identity.db"))
	if err != nil {
		return fmt.Errorf("open identity store: %w", err)
	}
	defer func() {
		if closeErr := userStore.Close(); closeErr != nil {
			log.Printf("close identity store: %v", closeErr)
		}
	}()

	postStore, closePosts, err := openPostStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closePosts()

	users := identitydomain.NewService(userStore, id.NewID, identitydomain.Config{HashCost: cfg.HashCost})

	admin, err := ensureUser(ctx, users, userStore, cfg.AdminEmail, cfg.AdminPassword, requestctx.RoleAdmin)
	if err != nil {
		return err
	}
	editor, err := ensureUser(ctx, users, userStore, "editor@quillhub.local", "editor-password", requestctx.RoleEditor)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "seeded users: %s (admin), %s (editor)\n", admin.Email, editor.Email)

	posts := contentdomain.NewService(postStore, memory.New(), id.NewID, contentdomain.Config{})
	created := 0
	for i := 0; i < cfg.Posts; i++ {
		author := editor
		if i%3 == 0 {
			author = admin
		}
		_, err := posts.CreatePost(ctx, contentdomain.CreateInput{
			Title:   fmt.Sprintf("Demo post %02d", i+1),
			Content: fmt.Sprintf("Body of demo post %02d, long enough to pass validation.", i+1),
			Tags:    demoTags(i),
		}, requestctx.Principal{ID: author.ID, Email: author.Email, Role: author.Role})
		if err != nil {
			return fmt.Errorf("seed post %d: %w", i+1, err)
		}
		created++
	}
	fmt.Fprintf(out, "seeded %d posts\n", created)
	return nil
}

// ensureUser registers an account or loads it when it already exists, then
// aligns its role.
func ensureUser(ctx context.Context, users *identitydomain.Service, store identitystorage.UserStore, email, password string, role requestctx.Role) (identitydomain.User, error) {
	registered, err := users.Register(ctx, identitydomain.RegisterInput{
		Email:     email,
		Password:  password,
		FirstName: "Demo",
		LastName:  string(role),
	})
	if err != nil {
		if apperrors.CodeOf(err) != apperrors.CodeEmailExists {
			return identitydomain.User{}, fmt.Errorf("register %s: %w", email, err)
		}
		record, lookupErr := store.GetUserByEmail(ctx, email)
		if lookupErr != nil {
			return identitydomain.User{}, fmt.Errorf("load existing %s: %w", email, lookupErr)
		}
		registered, err = users.GetUser(ctx, record.ID)
		if err != nil {
			return identitydomain.User{}, fmt.Errorf("load existing %s: %w", email, err)
		}
	}

	if registered.Role != role {
		record, err := store.GetUser(ctx, registered.ID)
		if err != nil {
			return identitydomain.User{}, fmt.Errorf("load %s for promotion: %w", email, err)
		}
		record.Role = string(role)
		if err := store.SaveUser(ctx, record); err != nil {
			return identitydomain.User{}, fmt.Errorf("promote %s: %w", email, err)
		}
		registered.Role = role
	}
	return registered, nil
}

func openPostStore(ctx context.Context, cfg Config) (storage.PostStore, func(), error) {
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		store, err := contentpostgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres post store: %w", err)
		}
		return store, func() {
			if closeErr := store.Close(); closeErr != nil {
				log.Printf("close post store: %v", closeErr)
			}
		}, nil
	}

	store, err := contentsqlite.Open(filepath.Join(cfg.DataDir, "content.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite post store: %w", err)
	}
	return store, func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close post store: %v", closeErr)
		}
	}, nil
}

func demoTags(index int) []string {
	catalog := [][]string{
		{"go", "tutorial"},
		{"writing"},
		{"go", "releases"},
		{"meta"},
	}
	return catalog[index%len(catalog)]
}
